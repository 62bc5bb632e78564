package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/libreviews/revdal/internal/bootstrap"
	"github.com/libreviews/revdal/internal/dal/model"
	"github.com/libreviews/revdal/internal/dal/revision"
	"github.com/libreviews/revdal/internal/models"
)

// ErrNotRevisioned is returned for a table without revision history.
var ErrNotRevisioned = errors.New("table has no revision history")

type chain interface {
	History(ctx context.Context, id string) ([]*model.Instance, error)
	VerifyChain(ctx context.Context, id string) (revision.ChainReport, error)
}

func chains() map[string]chain {
	return map[string]chain{
		models.Things.Table():  models.Things,
		models.Reviews.Table(): models.Reviews,
		models.Files.Table():   models.Files,
	}
}

func chainFor(table string) (chain, error) {
	c, ok := chains()[table]
	if !ok {
		names := make([]string, 0, len(chains()))
		for name := range chains() {
			names = append(names, name)
		}

		sort.Strings(names)

		return nil, fmt.Errorf("%w: %q (one of %s)", ErrNotRevisioned, table, strings.Join(names, ", "))
	}

	return c, nil
}

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(historyCmd, verifyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history <table> <id>",
	Short: "Print the revisions of an entity, newest first",
	Args:  cobra.ExactArgs(2), //nolint:mnd
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := chainFor(args[0])
		if err != nil {
			return err
		}

		dal, err := bootstrap.InitializeDAL(cmd.Context(), &cfg)
		if err != nil {
			return err
		}
		defer dal.Close() //nolint:errcheck

		revs, err := c.History(cmd.Context(), args[1])
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0) //nolint:mnd
		_, _ = fmt.Fprintln(tw, "REVISION\tDATE\tUSER\tTAGS\tDELETED")

		for _, r := range revs {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n",
				r.String(revision.FieldRevID),
				r.Time(revision.FieldRevDate).Format(time.RFC3339),
				r.String(revision.FieldRevUser),
				strings.Join(r.Strings(revision.FieldRevTags), ","),
				r.Bool(revision.FieldRevDeleted),
			)
		}

		return tw.Flush() //nolint:wrapcheck
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <table> <id>",
	Short: "Check that the revision chain of an entity has one head, no forks and no cycles",
	Args:  cobra.ExactArgs(2), //nolint:mnd
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := chainFor(args[0])
		if err != nil {
			return err
		}

		dal, err := bootstrap.InitializeDAL(cmd.Context(), &cfg)
		if err != nil {
			return err
		}
		defer dal.Close() //nolint:errcheck

		report, err := c.VerifyChain(cmd.Context(), args[1])
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d revisions, %d head(s), deleted=%t\n",
			args[0], report.ID, report.Revisions, report.Heads, report.Deleted)

		if report.Heads != 1 {
			return fmt.Errorf("%w: %d heads", revision.ErrChainFork, report.Heads)
		}

		return nil
	},
}
