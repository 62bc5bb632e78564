package revision

import (
	"context"
	"errors"
	"fmt"

	"github.com/libreviews/revdal/internal/dal/dalerr"
	"github.com/libreviews/revdal/internal/dal/model"
)

var (
	// ErrChainFork is reported when two archived rows claim the same superseding revision.
	ErrChainFork = errors.New("revision chain forks")

	// ErrChainCycle is reported when walking the chain revisits a revision.
	ErrChainCycle = errors.New("revision chain has a cycle")
)

// History returns every revision of the entity, head first, walking back through oldRevOf.
// Deleted heads are included so history survives deletion.
func (m *Model) History(ctx context.Context, id string) ([]*model.Instance, error) {
	head, err := m.Filter(model.Criteria{m.PrimaryKey(): id, FieldOldRevOf: nil}).First(ctx)
	if err != nil {
		if errors.Is(err, dalerr.ErrNotFound) {
			return nil, &dalerr.NotFoundError{Table: m.Table(), ID: id}
		}

		return nil, err
	}

	out := []*model.Instance{head}
	seen := map[string]bool{}
	cur := head.String(FieldRevID)

	for cur != "" {
		if seen[cur] {
			return out, fmt.Errorf("%w: %s %s at revision %s", ErrChainCycle, m.Table(), id, cur)
		}

		seen[cur] = true

		prev, err := m.Filter(model.Criteria{FieldOldRevOf: cur}).Limit(2).Run(ctx) //nolint:mnd
		if err != nil {
			return nil, err
		}

		switch len(prev) {
		case 0:
			return out, nil
		case 1:
			out = append(out, prev[0])
			cur = prev[0].String(FieldRevID)
		default:
			return out, fmt.Errorf("%w: %s %s at revision %s", ErrChainFork, m.Table(), id, cur)
		}
	}

	return out, nil
}

// ChainReport summarizes a chain verification.
type ChainReport struct {
	ID        string
	Revisions int
	Deleted   bool
	Heads     int64
}

// VerifyChain checks that the entity has exactly one head and that walking back from it
// terminates without forks or cycles.
func (m *Model) VerifyChain(ctx context.Context, id string) (ChainReport, error) {
	report := ChainReport{ID: id}

	heads, err := m.Filter(model.Criteria{m.PrimaryKey(): id, FieldOldRevOf: nil}).Count(ctx)
	if err != nil {
		return report, err
	}

	report.Heads = heads

	history, err := m.History(ctx, id)
	report.Revisions = len(history)

	if len(history) > 0 {
		report.Deleted = history[0].Bool(FieldRevDeleted)
	}

	return report, err
}
