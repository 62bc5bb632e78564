// Package revision adds wiki-style edit history to models.
//
// The head row of an entity keeps the entity's primary key. Each edit copies the previous
// head into an archived row with a fresh primary key whose oldRevOf points at the revision
// that replaced it, then rewrites the head in place. The copy and the guarded head update
// run in one transaction, so a concurrent edit based on the same head fails with
// dalerr.ErrStaleRevision instead of forking the chain.
package revision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/libreviews/revdal/internal/dal/cache"
	"github.com/libreviews/revdal/internal/dal/dalerr"
	"github.com/libreviews/revdal/internal/dal/model"
	"github.com/libreviews/revdal/internal/dal/schema"
)

// Envelope field names.
const (
	FieldRevID      = "revID"
	FieldRevUser    = "revUser"
	FieldRevDate    = "revDate"
	FieldRevTags    = "revTags"
	FieldOldRevOf   = "oldRevOf"
	FieldRevDeleted = "revDeleted"
)

// DefaultCacheTTL is used when Options.Cache is set without a TTL.
const DefaultCacheTTL = 5 * time.Minute

// Current matches head rows that are not deleted.
func Current() model.Criteria {
	return model.Criteria{FieldOldRevOf: nil, FieldRevDeleted: false}
}

// Define returns a copy of def extended with the revision envelope.
func Define(def model.Definition) model.Definition {
	out := def.Clone()

	out.Fields[FieldRevID] = schema.String().UUID(4).Required()
	out.Fields[FieldRevUser] = schema.String().UUID(4)
	out.Fields[FieldRevDate] = schema.Date().Required()
	out.Fields[FieldRevTags] = schema.Array(schema.String())
	out.Fields[FieldOldRevOf] = schema.String().UUID(4)
	out.Fields[FieldRevDeleted] = schema.Boolean().Default(false)

	if out.Options.Columns == nil {
		out.Options.Columns = map[string]string{}
	}

	out.Options.Columns[FieldRevID] = "_rev_id"
	out.Options.Columns[FieldRevUser] = "_rev_user"
	out.Options.Columns[FieldRevDate] = "_rev_date"
	out.Options.Columns[FieldRevTags] = "_rev_tags"
	out.Options.Columns[FieldOldRevOf] = "_old_rev_of"
	out.Options.Columns[FieldRevDeleted] = "_rev_deleted"

	out.Options.Indexes = append(out.Options.Indexes,
		model.Index{Fields: []string{FieldRevID}},
		// one archived row per superseding revision, so the chain cannot fork
		model.Index{Fields: []string{FieldOldRevOf}, Unique: true},
		model.Index{Fields: []string{FieldRevDeleted}},
	)

	return out
}

// Options configures a revisioned model.
type Options struct {
	// Cache holds current heads for GetNotStaleOrDeleted. Nil disables caching.
	Cache    cache.Store
	CacheTTL time.Duration
	// Clock stamps revision dates. Defaults to time.Now.
	Clock func() time.Time
}

// Model is a model with revision history.
type Model struct {
	*model.Model

	cache cache.Store
	ttl   time.Duration
	clock func() time.Time
}

// New builds a revisioned model. def must already carry the envelope (see Define).
func New(db *gorm.DB, def model.Definition, opts Options) (*Model, error) {
	if _, ok := def.Fields[FieldRevID]; !ok {
		return nil, fmt.Errorf("%w: %s: missing revision envelope", model.ErrInvalidDefinition, def.Table)
	}

	base, err := model.New(db, def)
	if err != nil {
		return nil, err
	}

	m := &Model{Model: base, cache: opts.Cache, ttl: opts.CacheTTL, clock: opts.Clock}

	if m.clock == nil {
		m.clock = time.Now
	}

	if m.cache != nil {
		if m.ttl == 0 {
			m.ttl = DefaultCacheTTL
		}

		base.AfterSave(m.invalidate)
	}

	return m, nil
}

func (m *Model) now() time.Time {
	return m.clock().UTC()
}

func (m *Model) envelope(userID string, tags []string) map[string]any {
	if tags == nil {
		tags = []string{}
	}

	env := map[string]any{
		FieldRevID:   m.NewID(),
		FieldRevDate: m.now(),
		FieldRevTags: tags,
	}

	if userID != "" {
		env[FieldRevUser] = userID
	}

	return env
}

// CreateFirstRevision returns an unsaved head with a fresh identity and revision envelope.
// The caller fills in the content fields and saves it.
func (m *Model) CreateFirstRevision(userID string, tags ...string) *model.Instance {
	values := m.envelope(userID, tags)
	values[m.PrimaryKey()] = m.NewID()
	values[FieldRevDeleted] = false

	return m.New(values)
}

// NewRevision re-reads the current head of the entity and returns an editable copy carrying
// a new revision envelope. Saving it archives the previous head and updates the head row in
// one transaction. It fails with a NotFoundError when the entity has no active head and with
// dalerr.ErrStaleRevision when head is no longer the current revision.
func (m *Model) NewRevision(ctx context.Context, head *model.Instance, userID string, tags ...string) (*model.Instance, error) {
	current, err := m.Filter(model.Criteria{m.PrimaryKey(): head.ID()}).Filter(Current()).First(ctx)
	if err != nil {
		if errors.Is(err, dalerr.ErrNotFound) {
			return nil, &dalerr.NotFoundError{Table: m.Table(), ID: head.ID()}
		}

		return nil, err
	}

	prevRev := current.String(FieldRevID)
	if known := head.String(FieldRevID); known != "" && known != prevRev {
		return nil, dalerr.ErrStaleRevision
	}

	rev := current.Clone()
	env := m.envelope(userID, tags)

	for k, v := range env {
		rev.Set(k, v)
	}

	if userID == "" {
		rev.Set(FieldRevUser, nil)
	}

	newRev := env[FieldRevID]
	id := head.ID()

	rev.Guard(FieldRevID, prevRev)
	rev.BeforeWrite(func(ctx context.Context, tx *gorm.DB) error {
		n, err := m.Copy(ctx, tx,
			model.Criteria{m.PrimaryKey(): id, FieldRevID: prevRev},
			map[string]any{m.PrimaryKey(): m.NewID(), FieldOldRevOf: newRev},
		)

		switch {
		case dalerr.IsDuplicate(err):
			return dalerr.ErrStaleRevision
		case err != nil:
			return err
		case n == 0:
			return dalerr.ErrStaleRevision
		}

		return nil
	})

	return rev, nil
}

// DeleteAllRevisions soft deletes the entity by saving a new revision flagged as deleted.
// Archived revisions stay untouched.
func (m *Model) DeleteAllRevisions(ctx context.Context, head *model.Instance, userID string, tags ...string) (*model.Instance, error) {
	rev, err := m.NewRevision(ctx, head, userID, tags...)
	if err != nil {
		return nil, err
	}

	rev.Set(FieldRevDeleted, true)

	if err := rev.Save(ctx); err != nil {
		return nil, err
	}

	log.Debug().Str("table", m.Table()).Str("id", rev.ID()).Msg("revision deleted")

	return rev, nil
}

// FilterNotStaleOrDeleted starts a query over active heads restricted by c.
func (m *Model) FilterNotStaleOrDeleted(c model.Criteria) *model.Query {
	return m.Filter(c).Filter(Current())
}

// GetNotStaleOrDeleted returns the active head of the entity or a NotFoundError. A cached
// head is returned only while its revision id is still the active one.
func (m *Model) GetNotStaleOrDeleted(ctx context.Context, id string) (*model.Instance, error) {
	if in, ok := m.cached(ctx, id); ok {
		return in, nil
	}

	in, err := m.FilterNotStaleOrDeleted(model.Criteria{m.PrimaryKey(): id}).First(ctx)
	if err != nil {
		if errors.Is(err, dalerr.ErrNotFound) {
			return nil, &dalerr.NotFoundError{Table: m.Table(), ID: id}
		}

		return nil, err
	}

	m.store(ctx, in)

	return in, nil
}

// GetMultipleNotStaleOrDeleted returns the active heads of ids in input order. Ids without
// an active head are left out.
func (m *Model) GetMultipleNotStaleOrDeleted(ctx context.Context, ids []string) ([]*model.Instance, error) {
	if len(ids) == 0 {
		return []*model.Instance{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := m.FilterNotStaleOrDeleted(nil).In(m.PrimaryKey(), args...).Run(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*model.Instance, len(rows))
	for _, r := range rows {
		byID[r.ID()] = r
	}

	out := make([]*model.Instance, 0, len(ids))

	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}

	return out, nil
}
