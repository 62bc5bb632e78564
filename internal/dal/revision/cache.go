package revision

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/libreviews/revdal/internal/dal/model"
)

func (m *Model) cacheKey(id string) string {
	return "revdal:" + m.Table() + ":" + id
}

func (m *Model) cached(ctx context.Context, id string) (*model.Instance, bool) {
	if m.cache == nil {
		return nil, false
	}

	b, ok, err := m.cache.Get(ctx, m.cacheKey(id))
	if err != nil {
		log.Warn().Err(err).Str("table", m.Table()).Str("id", id).Msg("head cache read failed")
		return nil, false
	}

	if !ok {
		return nil, false
	}

	in, err := m.Unmarshal(b)
	if err != nil {
		log.Warn().Err(err).Str("table", m.Table()).Str("id", id).Msg("discarding undecodable head cache entry")
		m.evict(ctx, id)

		return nil, false
	}

	// an entry may have been filled from a read that raced an edit, or outlived an edit
	// made by another process; it is only served while its revision is still the head
	current, err := m.FilterNotStaleOrDeleted(model.Criteria{
		m.PrimaryKey(): id,
		FieldRevID:     in.String(FieldRevID),
	}).Count(ctx)
	if err != nil {
		log.Warn().Err(err).Str("table", m.Table()).Str("id", id).Msg("head cache check failed")
		return nil, false
	}

	if current == 0 {
		m.evict(ctx, id)
		return nil, false
	}

	return in, true
}

func (m *Model) store(ctx context.Context, in *model.Instance) {
	if m.cache == nil {
		return
	}

	b, err := m.Marshal(in)
	if err != nil {
		log.Warn().Err(err).Str("table", m.Table()).Msg("head cache encode failed")
		return
	}

	if err := m.cache.Set(ctx, m.cacheKey(in.ID()), b, m.ttl); err != nil {
		log.Warn().Err(err).Str("table", m.Table()).Str("id", in.ID()).Msg("head cache write failed")
	}
}

func (m *Model) invalidate(ctx context.Context, in *model.Instance) {
	m.evict(ctx, in.ID())
}

func (m *Model) evict(ctx context.Context, id string) {
	if m.cache == nil {
		return
	}

	if err := m.cache.Delete(ctx, m.cacheKey(id)); err != nil {
		log.Warn().Err(err).Str("table", m.Table()).Str("id", id).Msg("head cache invalidation failed")
	}
}
