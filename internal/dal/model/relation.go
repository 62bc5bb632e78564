package model

import (
	"context"
	"fmt"

	"github.com/libreviews/revdal/internal/dal/dalerr"
)

// Cardinality tells whether a relation yields one instance or many.
type Cardinality int

const (
	// One relations hold at most one target instance.
	One Cardinality = iota + 1
	// Many relations hold a list of target instances.
	Many
)

// Through describes a join table linking source and target.
type Through struct {
	Table string
	// SourceKey is the join table field holding the source's key.
	SourceKey string
	// TargetKey is the join table field holding the target's primary key.
	TargetKey string
}

// Relation is declared data resolved by follow-up queries, never by SQL joins.
type Relation struct {
	Name   string
	Target string
	// SourceKey is the source field whose value identifies the related rows.
	SourceKey string
	// TargetKey is the target field matched against SourceKey. Ignored with Through, which
	// always matches the target's primary key.
	TargetKey   string
	Cardinality Cardinality
	Through     *Through
	// Filter restricts the target rows, e.g. to current revisions.
	Filter Criteria
}

func (m *Model) addRelation(rel Relation) error {
	switch {
	case rel.Name == "":
		return fmt.Errorf("%w: %s: relation without name", ErrInvalidDefinition, m.def.Table)
	case rel.Target == "":
		return fmt.Errorf("%w: %s: relation %q without target", ErrInvalidDefinition, m.def.Table, rel.Name)
	case !m.isStored(rel.SourceKey):
		return fmt.Errorf("%w: %s: relation %q uses unknown source key %q",
			ErrInvalidDefinition, m.def.Table, rel.Name, rel.SourceKey)
	case rel.Through == nil && rel.TargetKey == "":
		return fmt.Errorf("%w: %s: relation %q without target key", ErrInvalidDefinition, m.def.Table, rel.Name)
	case rel.Cardinality != One && rel.Cardinality != Many:
		return fmt.Errorf("%w: %s: relation %q without cardinality", ErrInvalidDefinition, m.def.Table, rel.Name)
	}

	if _, ok := m.relations[rel.Name]; ok {
		return fmt.Errorf("%w: %s: duplicate relation %q", ErrInvalidDefinition, m.def.Table, rel.Name)
	}

	m.relations[rel.Name] = rel

	return nil
}

// Relations returns the declared relations by name.
func (m *Model) Relations() map[string]Relation {
	out := make(map[string]Relation, len(m.relations))
	for k, v := range m.relations {
		out[k] = v
	}

	return out
}

func (m *Model) lookup(table string) (*Model, error) {
	m.mu.RLock()
	r := m.resolver
	m.mu.RUnlock()

	if r == nil {
		return nil, &dalerr.InitializationError{Table: table, Reason: "no registry attached to " + m.def.Table}
	}

	return r.Lookup(table)
}

// Load resolves the named relations for instances with one follow-up query per relation
// (two for join-table relations). Results are read back with RelatedOne and RelatedMany.
func (m *Model) Load(ctx context.Context, instances []*Instance, names ...string) error {
	if len(instances) == 0 {
		return nil
	}

	for _, name := range names {
		rel, ok := m.relations[name]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownRelation, m.def.Table, name)
		}

		target, err := m.lookup(rel.Target)
		if err != nil {
			return err
		}

		if rel.Through != nil {
			err = m.loadThrough(ctx, target, rel, instances)
		} else {
			err = m.loadDirect(ctx, target, rel, instances)
		}

		if err != nil {
			return fmt.Errorf("loading %s.%s: %w", m.def.Table, name, err)
		}
	}

	return nil
}

func (m *Model) loadDirect(ctx context.Context, target *Model, rel Relation, instances []*Instance) error {
	keys := sourceKeys(rel.SourceKey, instances)

	rows, err := target.Filter(rel.Filter).In(rel.TargetKey, keys...).Run(ctx)
	if err != nil {
		return err
	}

	byKey := make(map[string][]*Instance, len(rows))
	for _, row := range rows {
		k := keyString(row.Get(rel.TargetKey))
		byKey[k] = append(byKey[k], row)
	}

	for _, in := range instances {
		in.setRelated(rel.Name, byKey[keyString(in.Get(rel.SourceKey))])
	}

	return nil
}

func (m *Model) loadThrough(ctx context.Context, target *Model, rel Relation, instances []*Instance) error {
	join, err := m.lookup(rel.Through.Table)
	if err != nil {
		return err
	}

	links, err := join.Query().In(rel.Through.SourceKey, sourceKeys(rel.SourceKey, instances)...).Run(ctx)
	if err != nil {
		return err
	}

	targetIDs := make([]any, 0, len(links))
	seen := make(map[string]bool, len(links))

	for _, l := range links {
		k := keyString(l.Get(rel.Through.TargetKey))
		if !seen[k] {
			seen[k] = true
			targetIDs = append(targetIDs, l.Get(rel.Through.TargetKey))
		}
	}

	rows, err := target.Filter(rel.Filter).In(target.pk, targetIDs...).Run(ctx)
	if err != nil {
		return err
	}

	byID := make(map[string]*Instance, len(rows))
	for _, row := range rows {
		byID[row.ID()] = row
	}

	bySource := make(map[string][]*Instance, len(instances))

	for _, l := range links {
		if row, ok := byID[keyString(l.Get(rel.Through.TargetKey))]; ok {
			k := keyString(l.Get(rel.Through.SourceKey))
			bySource[k] = append(bySource[k], row)
		}
	}

	for _, in := range instances {
		in.setRelated(rel.Name, bySource[keyString(in.Get(rel.SourceKey))])
	}

	return nil
}

func sourceKeys(field string, instances []*Instance) []any {
	out := make([]any, 0, len(instances))
	seen := make(map[string]bool, len(instances))

	for _, in := range instances {
		v := in.Get(field)
		if v == nil {
			continue
		}

		k := keyString(v)
		if !seen[k] {
			seen[k] = true
			out = append(out, v)
		}
	}

	return out
}

func keyString(v any) string {
	if v == nil {
		return ""
	}

	return fmt.Sprint(v)
}
