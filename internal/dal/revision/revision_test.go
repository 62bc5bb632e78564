package revision

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/libreviews/revdal/internal/dal/cache"
	"github.com/libreviews/revdal/internal/dal/dalerr"
	"github.com/libreviews/revdal/internal/dal/model"
	"github.com/libreviews/revdal/internal/dal/schema"
)

func notesDefinition() model.Definition {
	return Define(model.Definition{
		Table: "notes",
		Fields: schema.Fields{
			"id":    schema.String().UUID(4),
			"title": schema.String().Max(10),
		},
	})
}

type testEnv struct {
	db    *gorm.DB
	notes *Model
	cache *cache.Memory
}

// setupTestDB creates an in-memory SQLite database with the notes table.
func setupTestDB(t *testing.T) testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err, "failed to create test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	def := notesDefinition()
	require.NoError(t, model.EnsureTable(context.Background(), db, def))

	tick := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := cache.NewMemory()

	notes, err := New(db, def, Options{
		Cache: store,
		Clock: func() time.Time {
			tick = tick.Add(time.Second)
			return tick
		},
	})
	require.NoError(t, err)

	return testEnv{db: db, notes: notes, cache: store}
}

func createNote(t *testing.T, m *Model, user, title string) *model.Instance {
	t.Helper()

	head := m.CreateFirstRevision(user, "create")
	head.Set("title", title)
	require.NoError(t, head.Save(context.Background()))

	return head
}

func edit(t *testing.T, m *Model, head *model.Instance, user, title string) *model.Instance {
	t.Helper()

	rev, err := m.NewRevision(context.Background(), head, user, "edit")
	require.NoError(t, err)

	rev.Set("title", title)
	require.NoError(t, rev.Save(context.Background()))

	return rev
}

func TestDefineAddsEnvelope(t *testing.T) {
	def := notesDefinition()

	for _, f := range []string{FieldRevID, FieldRevUser, FieldRevDate, FieldRevTags, FieldOldRevOf, FieldRevDeleted} {
		assert.Contains(t, def.Fields, f)
	}

	assert.Equal(t, "_old_rev_of", def.Options.Columns[FieldOldRevOf])

	_, err := New(setupTestDB(t).db, model.Definition{
		Table:  "plain",
		Fields: schema.Fields{"id": schema.String()},
	}, Options{})
	require.ErrorIs(t, err, model.ErrInvalidDefinition)
}

func TestCreateAndEditScenario(t *testing.T) {
	ctx := context.Background()
	env := setupTestDB(t)
	m := env.notes
	userA := uuid.NewString()

	head := createNote(t, m, userA, "A")
	id := head.ID()
	assert.Equal(t, []string{"create"}, head.Strings(FieldRevTags))
	assert.Equal(t, userA, head.String(FieldRevUser))

	got, err := m.GetNotStaleOrDeleted(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A", got.String("title"))
	assert.Equal(t, 1, env.cache.Len())

	rev := edit(t, m, got, userA, "B")
	assert.Equal(t, id, rev.ID())
	assert.Zero(t, env.cache.Len(), "save must invalidate the cached head")

	got, err = m.GetNotStaleOrDeleted(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "B", got.String("title"))
	assert.Equal(t, []string{"edit"}, got.Strings(FieldRevTags))
	assert.True(t, got.Time(FieldRevDate).After(head.Time(FieldRevDate)))

	history, err := m.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)

	archived := history[1]
	assert.Equal(t, "A", archived.String("title"))
	assert.Equal(t, rev.String(FieldRevID), archived.String(FieldOldRevOf))
	assert.Equal(t, head.String(FieldRevID), archived.String(FieldRevID))
	assert.NotEqual(t, id, archived.ID())
}

func TestChainIntegrity(t *testing.T) {
	ctx := context.Background()
	m := setupTestDB(t).notes
	user := uuid.NewString()

	head := createNote(t, m, user, "v0")
	for _, title := range []string{"v1", "v2", "v3", "v4"} {
		head = edit(t, m, head, user, title)
	}

	report, err := m.VerifyChain(ctx, head.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Heads)
	assert.Equal(t, 5, report.Revisions)
	assert.False(t, report.Deleted)

	history, err := m.History(ctx, head.ID())
	require.NoError(t, err)

	titles := make([]string, len(history))
	for i, h := range history {
		titles[i] = h.String("title")
	}

	assert.Equal(t, []string{"v4", "v3", "v2", "v1", "v0"}, titles)

	// exactly one row ends the walk in each direction
	active, err := m.FilterNotStaleOrDeleted(nil).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)

	total, err := m.Query().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

func TestSoftDeleteKeepsHistory(t *testing.T) {
	ctx := context.Background()
	m := setupTestDB(t).notes
	user := uuid.NewString()

	head := createNote(t, m, user, "A")
	head = edit(t, m, head, user, "B")

	before, err := m.Filter(model.Criteria{FieldOldRevOf: head.String(FieldRevID)}).First(ctx)
	require.NoError(t, err)

	_, err = m.GetNotStaleOrDeleted(ctx, head.ID())
	require.NoError(t, err)

	deleted, err := m.DeleteAllRevisions(ctx, head, user, "delete")
	require.NoError(t, err)
	assert.True(t, deleted.Bool(FieldRevDeleted))

	_, err = m.GetNotStaleOrDeleted(ctx, head.ID())
	require.ErrorIs(t, err, dalerr.ErrNotFound)

	history, err := m.History(ctx, head.ID())
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].Bool(FieldRevDeleted))
	assert.Equal(t, "B", history[1].String("title"))
	assert.Equal(t, "A", history[2].String("title"))
	assert.Equal(t, before.Snapshot(), history[2].Snapshot())

	_, err = m.NewRevision(ctx, head, user)
	require.ErrorIs(t, err, dalerr.ErrNotFound)

	report, err := m.VerifyChain(ctx, head.ID())
	require.NoError(t, err)
	assert.True(t, report.Deleted)
}

func TestConcurrentEditsAreRejected(t *testing.T) {
	ctx := context.Background()
	m := setupTestDB(t).notes
	user := uuid.NewString()

	head := createNote(t, m, user, "A")

	first, err := m.NewRevision(ctx, head, user)
	require.NoError(t, err)

	second, err := m.NewRevision(ctx, head, user)
	require.NoError(t, err)

	first.Set("title", "B")
	require.NoError(t, first.Save(ctx))

	second.Set("title", "C")
	require.ErrorIs(t, second.Save(ctx), dalerr.ErrStaleRevision)

	// the losing writer left nothing behind
	history, err := m.History(ctx, head.ID())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "B", history[0].String("title"))

	// editing from an outdated copy fails before any write
	_, err = m.NewRevision(ctx, head, user)
	require.ErrorIs(t, err, dalerr.ErrStaleRevision)
}

func TestGetMultipleNotStaleOrDeleted(t *testing.T) {
	ctx := context.Background()
	m := setupTestDB(t).notes
	user := uuid.NewString()

	a := createNote(t, m, user, "a")
	b := createNote(t, m, user, "b")
	c := createNote(t, m, user, "c")

	_, err := m.DeleteAllRevisions(ctx, b, user)
	require.NoError(t, err)

	got, err := m.GetMultipleNotStaleOrDeleted(ctx, []string{c.ID(), uuid.NewString(), b.ID(), a.ID()})
	require.NoError(t, err)

	titles := make([]string, len(got))
	for i, in := range got {
		titles[i] = in.String("title")
	}

	assert.Equal(t, []string{"c", "a"}, titles)

	got, err = m.GetMultipleNotStaleOrDeleted(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestValidationStillApplies(t *testing.T) {
	m := setupTestDB(t).notes

	head := m.CreateFirstRevision(uuid.NewString())
	head.Set("title", "far too long for ten")

	var ve *dalerr.ValidationError
	require.ErrorAs(t, head.Save(context.Background()), &ve)
	assert.Equal(t, "title", ve.Path)
}

// racingStore runs onSet once before storing, so the value it stores has already been
// superseded when it lands.
type racingStore struct {
	*cache.Memory
	onSet func()
}

func (s *racingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if fn := s.onSet; fn != nil {
		s.onSet = nil
		fn()
	}

	return s.Memory.Set(ctx, key, value, ttl)
}

func TestHeadCacheNeverServesSupersededRevisions(t *testing.T) {
	testCases := []struct {
		name    string
		change  func(t *testing.T, m *Model, head *model.Instance, user string)
		want    string
		deleted bool
	}{
		{
			name: "edit",
			change: func(t *testing.T, m *Model, head *model.Instance, user string) {
				t.Helper()
				edit(t, m, head, user, "B")
			},
			want: "B",
		},
		{
			name: "delete",
			change: func(t *testing.T, m *Model, head *model.Instance, user string) {
				t.Helper()

				_, err := m.DeleteAllRevisions(context.Background(), head, user, "delete")
				require.NoError(t, err)
			},
			deleted: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			env := setupTestDB(t)
			store := &racingStore{Memory: cache.NewMemory()}

			m, err := New(env.db, notesDefinition(), Options{Cache: store, CacheTTL: time.Hour})
			require.NoError(t, err)

			user := uuid.NewString()
			head := createNote(t, m, user, "A")

			// the change commits between the database read and the cache fill
			store.onSet = func() { tc.change(t, m, head, user) }

			got, err := m.GetNotStaleOrDeleted(ctx, head.ID())
			require.NoError(t, err)
			assert.Equal(t, "A", got.String("title"))
			assert.Equal(t, 1, store.Len())

			got, err = m.GetNotStaleOrDeleted(ctx, head.ID())
			if tc.deleted {
				require.ErrorIs(t, err, dalerr.ErrNotFound)
				assert.Zero(t, store.Len())

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String("title"))

			current, err := m.FilterNotStaleOrDeleted(model.Criteria{m.PrimaryKey(): head.ID()}).First(ctx)
			require.NoError(t, err)
			assert.Equal(t, current.String(FieldRevID), got.String(FieldRevID))
		})
	}
}

func TestHeadCacheFollowsEditsFromOtherWriters(t *testing.T) {
	ctx := context.Background()
	env := setupTestDB(t)
	user := uuid.NewString()

	head := createNote(t, env.notes, user, "A")

	_, err := env.notes.GetNotStaleOrDeleted(ctx, head.ID())
	require.NoError(t, err)
	require.Equal(t, 1, env.cache.Len())

	// a second model without the cache stands in for another process sharing the database
	other, err := New(env.db, notesDefinition(), Options{})
	require.NoError(t, err)
	edit(t, other, head, user, "B")
	require.Equal(t, 1, env.cache.Len(), "the other writer cannot reach this cache")

	got, err := env.notes.GetNotStaleOrDeleted(ctx, head.ID())
	require.NoError(t, err)
	assert.Equal(t, "B", got.String("title"))
}
