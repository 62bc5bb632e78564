package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/libreviews/revdal/internal/dal/model"
	"github.com/libreviews/revdal/internal/models"
)

// ErrUnknownTable is returned by schema for a table no entity declares.
var ErrUnknownTable = errors.New("unknown table")

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(schemaCmd)
}

var schemaCmd = &cobra.Command{
	Use:   "schema [table]",
	Short: "Print the column layout of every table, or of one, for the configured engine",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		found := false

		for _, def := range models.Definitions() {
			if len(args) == 1 && def.Table != args[0] {
				continue
			}

			found = true

			cols, err := model.Columns(cfg.DB.Engine, def)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(out, "%s\n", def.Table)

			for _, c := range cols {
				_, _ = fmt.Fprintf(out, "  %s\n", c)
			}
		}

		if !found {
			return fmt.Errorf("%w: %q", ErrUnknownTable, args[0])
		}

		return nil
	},
}
