package models

import (
	"context"

	"github.com/libreviews/revdal/internal/dal/model"
	"github.com/libreviews/revdal/internal/dal/registry"
	"github.com/libreviews/revdal/internal/dal/revision"
)

// plainHandle forwards to a model without revision history. Every method fails with an
// InitializationError until Init has bound the module.
type plainHandle struct {
	module *registry.Module[*model.Model]
}

// Table returns the handle's table name. It works before Init.
func (h plainHandle) Table() string { return h.module.Table() }

// Bound reports whether Init has bound the handle.
func (h plainHandle) Bound() bool { return h.module.Bound() }

// Model returns the live model.
func (h plainHandle) Model() (*model.Model, error) { return h.module.Model() }

// New returns an unsaved instance.
func (h plainHandle) New(values map[string]any) (*model.Instance, error) {
	m, err := h.module.Model()
	if err != nil {
		return nil, err
	}

	return m.New(values), nil
}

// Create builds and saves an instance.
func (h plainHandle) Create(ctx context.Context, values map[string]any) (*model.Instance, error) {
	m, err := h.module.Model()
	if err != nil {
		return nil, err
	}

	return m.Create(ctx, values)
}

// Get returns the row with primary key id.
func (h plainHandle) Get(ctx context.Context, id string) (*model.Instance, error) {
	m, err := h.module.Model()
	if err != nil {
		return nil, err
	}

	return m.Get(ctx, id)
}

// Filter starts a query matching c.
func (h plainHandle) Filter(c model.Criteria) (*model.Query, error) {
	m, err := h.module.Model()
	if err != nil {
		return nil, err
	}

	return m.Filter(c), nil
}

// Save writes in.
func (h plainHandle) Save(ctx context.Context, in *model.Instance) error {
	if _, err := h.module.Model(); err != nil {
		return err
	}

	return in.Save(ctx)
}

// Delete removes in from storage.
func (h plainHandle) Delete(ctx context.Context, in *model.Instance) error {
	if _, err := h.module.Model(); err != nil {
		return err
	}

	return in.Delete(ctx)
}

// Load resolves relations for instances.
func (h plainHandle) Load(ctx context.Context, instances []*model.Instance, names ...string) error {
	m, err := h.module.Model()
	if err != nil {
		return err
	}

	return m.Load(ctx, instances, names...)
}

// revisionHandle forwards to a revisioned model.
type revisionHandle struct {
	module *registry.Module[*revision.Model]
}

// Table returns the handle's table name. It works before Init.
func (h revisionHandle) Table() string { return h.module.Table() }

// Bound reports whether Init has bound the handle.
func (h revisionHandle) Bound() bool { return h.module.Bound() }

// Model returns the live model.
func (h revisionHandle) Model() (*revision.Model, error) { return h.module.Model() }

// CreateFirstRevision returns an unsaved head for a new entity.
func (h revisionHandle) CreateFirstRevision(userID string, tags ...string) (*model.Instance, error) {
	m, err := h.module.Model()
	if err != nil {
		return nil, err
	}

	return m.CreateFirstRevision(userID, tags...), nil
}

// NewRevision returns an editable copy of the current head.
func (h revisionHandle) NewRevision(ctx context.Context, head *model.Instance, userID string,
	tags ...string,
) (*model.Instance, error) {
	m, err := h.module.Model()
	if err != nil {
		return nil, err
	}

	return m.NewRevision(ctx, head, userID, tags...)
}

// DeleteAllRevisions soft deletes the entity of head.
func (h revisionHandle) DeleteAllRevisions(ctx context.Context, head *model.Instance, userID string,
	tags ...string,
) (*model.Instance, error) {
	m, err := h.module.Model()
	if err != nil {
		return nil, err
	}

	return m.DeleteAllRevisions(ctx, head, userID, tags...)
}

// GetNotStaleOrDeleted returns the current head of entity id.
func (h revisionHandle) GetNotStaleOrDeleted(ctx context.Context, id string) (*model.Instance, error) {
	m, err := h.module.Model()
	if err != nil {
		return nil, err
	}

	return m.GetNotStaleOrDeleted(ctx, id)
}

// GetMultipleNotStaleOrDeleted returns the current heads of ids in input order.
func (h revisionHandle) GetMultipleNotStaleOrDeleted(ctx context.Context, ids []string) ([]*model.Instance, error) {
	m, err := h.module.Model()
	if err != nil {
		return nil, err
	}

	return m.GetMultipleNotStaleOrDeleted(ctx, ids)
}

// FilterNotStaleOrDeleted starts a query over current heads matching c.
func (h revisionHandle) FilterNotStaleOrDeleted(c model.Criteria) (*model.Query, error) {
	m, err := h.module.Model()
	if err != nil {
		return nil, err
	}

	return m.FilterNotStaleOrDeleted(c), nil
}

// Filter starts a query over every row, archived revisions included.
func (h revisionHandle) Filter(c model.Criteria) (*model.Query, error) {
	m, err := h.module.Model()
	if err != nil {
		return nil, err
	}

	return m.Filter(c), nil
}

// Save writes in.
func (h revisionHandle) Save(ctx context.Context, in *model.Instance) error {
	if _, err := h.module.Model(); err != nil {
		return err
	}

	return in.Save(ctx)
}

// History returns every revision of entity id, newest first.
func (h revisionHandle) History(ctx context.Context, id string) ([]*model.Instance, error) {
	m, err := h.module.Model()
	if err != nil {
		return nil, err
	}

	return m.History(ctx, id)
}

// VerifyChain checks the revision chain of entity id.
func (h revisionHandle) VerifyChain(ctx context.Context, id string) (revision.ChainReport, error) {
	m, err := h.module.Model()
	if err != nil {
		return revision.ChainReport{}, err
	}

	return m.VerifyChain(ctx, id)
}

// Load resolves relations for instances.
func (h revisionHandle) Load(ctx context.Context, instances []*model.Instance, names ...string) error {
	m, err := h.module.Model()
	if err != nil {
		return err
	}

	return m.Load(ctx, instances, names...)
}
