package app

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/libreviews/revdal/internal/bootstrap"
	"github.com/libreviews/revdal/internal/db/migrate"
)

var migrateStatus bool

func init() { //nolint:gochecknoinits
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "list every recorded step after migrating")
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or extend every table and report what changed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dal, err := bootstrap.InitializeDAL(cmd.Context(), &cfg)
		if err != nil {
			return err
		}
		defer dal.Close() //nolint:errcheck

		out := cmd.OutOrStdout()

		if len(dal.Applied) == 0 {
			_, _ = fmt.Fprintln(out, "schema is up to date")
		}

		for _, step := range dal.Applied {
			_, _ = fmt.Fprintln(out, "applied", step)
		}

		if !migrateStatus {
			return nil
		}

		records, err := migrate.GetAll(dal.DB)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0) //nolint:mnd
		_, _ = fmt.Fprintln(tw, "STEP\tCHECKSUM\tAPPLIED")

		for _, r := range records {
			_, _ = fmt.Fprintf(tw, "%s\t%.12s\t%s\n", r.ID, r.Checksum, r.AppliedAt.UTC().Format(time.RFC3339))
		}

		return tw.Flush() //nolint:wrapcheck
	},
}
