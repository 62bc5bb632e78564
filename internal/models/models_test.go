package models

import (
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/libreviews/revdal/internal/dal/cache"
	"github.com/libreviews/revdal/internal/dal/dalerr"
	"github.com/libreviews/revdal/internal/dal/mlstring"
	"github.com/libreviews/revdal/internal/dal/model"
	"github.com/libreviews/revdal/internal/dal/registry"
	"github.com/libreviews/revdal/internal/dal/revision"
	"github.com/libreviews/revdal/internal/db/migrate"
)

// setupTestDB creates an in-memory SQLite database with every table and binds the handles.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err, "failed to create test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		registry.Release(db)
		_ = sqlDB.Close()
	})

	steps := make([]migrate.Step, 0, len(Definitions()))
	for _, def := range Definitions() {
		step, err := migrate.TableStep(db.Dialector.Name(), def)
		require.NoError(t, err)

		steps = append(steps, step)
	}

	_, err = migrate.Run(ctx, db, steps)
	require.NoError(t, err, "failed to migrate test database")

	require.NoError(t, Init(ctx, db, Options{Cache: cache.NewMemory()}))

	return db
}

func createUser(t *testing.T, name string) *model.Instance {
	t.Helper()

	user, err := Users.Create(context.Background(), name, "secret-password", "")
	require.NoError(t, err)

	return user
}

func createThing(t *testing.T, user *model.Instance, url string) *model.Instance {
	t.Helper()

	thing, err := Things.Create(context.Background(), user.ID(), []string{url}, mlstring.Value{"en": "A book"})
	require.NoError(t, err)

	return thing
}

func reportedKey(t *testing.T, err error) string {
	t.Helper()

	var re *dalerr.ReportedError
	require.ErrorAs(t, err, &re)

	return re.Key
}

func TestHandlesFailBeforeInit(t *testing.T) {
	ctx := context.Background()
	thingsBefore := &ThingHandle{revisionHandle{registry.NewModule[*revision.Model]("things")}}
	usersBefore := &UserHandle{plainHandle{registry.NewModule[*model.Model]("users")}}

	assert.Equal(t, "things", thingsBefore.Table())
	assert.False(t, thingsBefore.Bound())

	calls := map[string]func() error{
		"CreateFirstRevision": func() error { _, err := thingsBefore.CreateFirstRevision(uuid.NewString()); return err },
		"GetNotStaleOrDeleted": func() error {
			_, err := thingsBefore.GetNotStaleOrDeleted(ctx, uuid.NewString())
			return err
		},
		"FilterNotStaleOrDeleted": func() error { _, err := thingsBefore.FilterNotStaleOrDeleted(nil); return err },
		"GetMultiple": func() error {
			_, err := thingsBefore.GetMultipleNotStaleOrDeleted(ctx, []string{"a"})
			return err
		},
		"History":      func() error { _, err := thingsBefore.History(ctx, "a"); return err },
		"Thing.Create": func() error { _, err := thingsBefore.Create(ctx, "u", []string{"https://x"}, nil); return err },
		"User.Create":  func() error { _, err := usersBefore.Create(ctx, "ann", "secret-password", ""); return err },
		"User.Get":     func() error { _, err := usersBefore.Get(ctx, "a"); return err },
		"User.Filter":  func() error { _, err := usersBefore.Filter(nil); return err },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, call(), dalerr.ErrInitialization)
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	before, err := Things.Model()
	require.NoError(t, err)

	require.NoError(t, Init(ctx, db, Options{}))

	after, err := Things.Model()
	require.NoError(t, err)
	assert.Same(t, before, after)

	for _, h := range []interface{ Bound() bool }{Users, Things, Reviews, Files, ThingFiles, InviteLinks} {
		assert.True(t, h.Bound())
	}

	assert.Equal(t,
		[]string{"files", "invite_links", "reviews", "thing_files", "things", "users"},
		registry.For(db).Tables())
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	setupTestDB(t)

	ann := createUser(t, "Ann Smith")
	assert.Equal(t, "ANN SMITH", ann.String("canonicalName"))
	assert.Equal(t, "Ann_Smith", ann.Get("urlName"))
	assert.False(t, ann.Time("registrationDate").IsZero())

	_, err := Users.Create(ctx, "ann smith", "another-password", "")
	assert.Equal(t, KeyUsernameExists, reportedKey(t, err))
	assert.True(t, dalerr.IsDuplicate(err))

	_, err = Users.Create(ctx, "Bob", "short", "")
	var ve *dalerr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "password", ve.Path)

	found, err := Users.FindByName(ctx, "ANN smith")
	require.NoError(t, err)
	assert.Equal(t, ann.ID(), found.ID())
	assert.Nil(t, found.Get("password"), "password is sensitive")

	testCases := []struct {
		name     string
		user     string
		password string
		wantKey  string
	}{
		{name: "correct password", user: "ann smith", password: "secret-password"},
		{name: "wrong password", user: "Ann Smith", password: "nope-nope", wantKey: KeyInvalidCredentials},
		{name: "unknown user", user: "Carol", password: "secret-password", wantKey: KeyInvalidCredentials},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			user, err := Users.Authenticate(ctx, tc.user, tc.password)
			if tc.wantKey != "" {
				assert.Equal(t, tc.wantKey, reportedKey(t, err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, ann.ID(), user.ID())
		})
	}
}

func TestThingsAndFiles(t *testing.T) {
	ctx := context.Background()
	setupTestDB(t)

	ann := createUser(t, "Ann")
	thing := createThing(t, ann, "https://example.com/book")
	assert.Equal(t, thing.ID(), thing.Get("urlID"))
	assert.Equal(t, "A book", Label(thing, "de"))

	_, err := Things.Create(ctx, ann.ID(), nil, nil)
	var ve *dalerr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "urls", ve.Path)

	fm, err := Files.Model()
	require.NoError(t, err)

	var fileIDs []string

	for _, name := range []string{"cover.jpg", "back.jpg"} {
		f, err := Files.CreateFirstRevision(ann.ID(), "upload")
		require.NoError(t, err)

		f.Set("name", name)
		f.Set("license", "cc-by")
		f.Set("completed", true)
		require.NoError(t, Files.Save(ctx, f))

		require.NoError(t, ThingFiles.Attach(ctx, thing.ID(), f.ID()))
		fileIDs = append(fileIDs, f.ID())
	}

	err = ThingFiles.Attach(ctx, thing.ID(), fileIDs[0])
	assert.Equal(t, KeyFileAlreadyAttached, reportedKey(t, err))

	// a deleted file drops out of the relation
	back, err := fm.GetNotStaleOrDeleted(ctx, fileIDs[1])
	require.NoError(t, err)
	_, err = Files.DeleteAllRevisions(ctx, back, ann.ID(), "delete")
	require.NoError(t, err)

	head, err := Things.GetNotStaleOrDeleted(ctx, thing.ID())
	require.NoError(t, err)
	require.NoError(t, Things.Load(ctx, []*model.Instance{head}, "files", "creator"))

	attached := head.RelatedMany("files")
	require.Len(t, attached, 1)
	assert.Equal(t, "cover.jpg", attached[0].String("name"))

	creator, ok := head.RelatedOne("creator")
	require.True(t, ok)
	assert.Equal(t, "Ann", creator.String("displayName"))

	// an edit keeps the relations of the entity id
	rev, err := Things.NewRevision(ctx, head, ann.ID(), "edit")
	require.NoError(t, err)
	rev.Set("label", mlstring.Value{"en": "A book", "de": "Ein Buch"})
	require.NoError(t, Things.Save(ctx, rev))

	head, err = Things.GetNotStaleOrDeleted(ctx, thing.ID())
	require.NoError(t, err)
	assert.Equal(t, "Ein Buch", Label(head, "de"))

	history, err := Things.History(ctx, thing.ID())
	require.NoError(t, err)
	assert.Len(t, history, 2)

	report, err := Things.VerifyChain(ctx, thing.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Revisions)
}

func TestReviews(t *testing.T) {
	ctx := context.Background()
	setupTestDB(t)

	ann := createUser(t, "Ann")
	bob := createUser(t, "Bob")
	thing := createThing(t, ann, "https://example.com/book")

	input := ReviewInput{
		ThingID:          thing.ID(),
		Title:            mlstring.Value{"en": "Great"},
		HTML:             mlstring.Value{"en": "<p>Really <em>great</em> book</p>"},
		StarRating:       5,
		OriginalLanguage: "en",
	}

	review, err := Reviews.Create(ctx, ann.ID(), input)
	require.NoError(t, err)

	_, err = Reviews.Create(ctx, ann.ID(), input)
	assert.Equal(t, KeyPreviouslyReviewed, reportedKey(t, err))
	assert.Equal(t, "Du hast dieses Thema bereits bewertet.", Localize(err, "de"))

	_, err = Reviews.Create(ctx, bob.ID(), input)
	require.NoError(t, err, "another user may review the same thing")

	testCases := []struct {
		name  string
		input ReviewInput
		path  string
	}{
		{name: "rating too high", input: ReviewInput{ThingID: thing.ID(), Title: input.Title, StarRating: 6}, path: "starRating"},
		{name: "missing title", input: ReviewInput{ThingID: thing.ID(), StarRating: 3}, path: "title"},
		{
			name:  "markup in plain text",
			input: ReviewInput{ThingID: thing.ID(), Title: mlstring.Value{"en": "<b>x</b>"}, StarRating: 3},
			path:  "title.en",
		},
		{
			name:  "unknown language",
			input: ReviewInput{ThingID: thing.ID(), Title: input.Title, StarRating: 3, OriginalLanguage: "xx"},
			path:  "originalLanguage",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Reviews.Create(ctx, uuid.NewString(), tc.input)

			var ve *dalerr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.path, ve.Path)
		})
	}

	doc := NewSearchDocument(review)
	assert.Equal(t, "Really great book", doc.Text["en"])
	assert.Equal(t, int64(5), doc.StarRating)
	assert.Equal(t, thing.ID(), doc.ThingID)

	head, err := Reviews.GetNotStaleOrDeleted(ctx, review.ID())
	require.NoError(t, err)
	require.NoError(t, Reviews.Load(ctx, []*model.Instance{head}, "thing", "creator"))

	related, ok := head.RelatedOne("thing")
	require.True(t, ok)
	assert.Equal(t, thing.ID(), related.ID())

	// deleting the review frees the slot for a new one
	_, err = Reviews.DeleteAllRevisions(ctx, head, ann.ID(), "delete")
	require.NoError(t, err)

	_, err = Reviews.Create(ctx, ann.ID(), input)
	require.NoError(t, err)
}

func TestConcurrentReviewsByOneUser(t *testing.T) {
	ctx := context.Background()
	setupTestDB(t)

	ann := createUser(t, "Ann")
	thing := createThing(t, ann, "https://example.com/book")
	input := ReviewInput{ThingID: thing.ID(), Title: mlstring.Value{"en": "Great"}, StarRating: 4}

	const writers = 8

	var wg sync.WaitGroup

	errs := make([]error, writers)

	for i := range writers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, errs[i] = Reviews.Create(ctx, ann.ID(), input)
		}()
	}

	wg.Wait()

	created := 0

	for _, err := range errs {
		if err == nil {
			created++
			continue
		}

		assert.Equal(t, KeyPreviouslyReviewed, reportedKey(t, err))
	}

	assert.Equal(t, 1, created)

	q, err := Reviews.FilterNotStaleOrDeleted(model.Criteria{"thingID": thing.ID(), "createdBy": ann.ID()})
	require.NoError(t, err)

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestActiveReviewIsUniqueInStorage(t *testing.T) {
	ctx := context.Background()
	setupTestDB(t)

	ann := createUser(t, "Ann")
	thing := createThing(t, ann, "https://example.com/book")

	m, err := Reviews.Model()
	require.NoError(t, err)

	// written around Reviews.Create, so only the index stands in the way
	insert := func() (*model.Instance, error) {
		review := m.CreateFirstRevision(ann.ID(), "create")
		review.Set("thingID", thing.ID())
		review.Set("title", mlstring.Value{"en": "Fine"})
		review.Set("starRating", 3)
		review.Set("createdBy", ann.ID())
		review.Set("createdOn", review.Time(revision.FieldRevDate))

		return review, review.Save(ctx)
	}

	first, err := insert()
	require.NoError(t, err)

	_, err = insert()
	require.Error(t, err)
	assert.True(t, dalerr.IsDuplicate(err), "got %v", err)

	// archived copies repeat the author without tripping the index
	edit, err := Reviews.NewRevision(ctx, first, ann.ID(), "edit")
	require.NoError(t, err)
	edit.Set("title", mlstring.Value{"en": "Better"})
	require.NoError(t, edit.Save(ctx))

	_, err = Reviews.DeleteAllRevisions(ctx, edit, ann.ID(), "delete")
	require.NoError(t, err)

	_, err = insert()
	require.NoError(t, err, "a deleted review leaves the index")
}

func TestInviteLinks(t *testing.T) {
	ctx := context.Background()
	setupTestDB(t)

	ann := createUser(t, "Ann")

	_, err := InviteLinks.Generate(ctx, ann)
	assert.Equal(t, KeyNoInvitesLeft, reportedKey(t, err))

	ann.Set("inviteLinkCount", 1)
	require.NoError(t, Users.Save(ctx, ann))

	link, err := InviteLinks.Generate(ctx, ann)
	require.NoError(t, err)
	assert.Len(t, link.ID(), InviteCodeLen)

	// ann still claims one invite in memory, storage says otherwise
	_, err = InviteLinks.Generate(ctx, ann)
	require.ErrorIs(t, err, dalerr.ErrStaleRevision)

	reloaded, err := Users.Get(ctx, ann.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(0), reloaded.Int("inviteLinkCount"))

	all, err := InviteLinks.Filter(model.Criteria{"createdBy": ann.ID()})
	require.NoError(t, err)
	n, err := all.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "the failed attempt left no link behind")

	bob := createUser(t, "Bob")

	used, err := InviteLinks.Redeem(ctx, link.ID(), bob.ID())
	require.NoError(t, err)
	assert.Equal(t, bob.ID(), used.String("usedBy"))

	_, err = InviteLinks.Redeem(ctx, link.ID(), bob.ID())
	assert.Equal(t, KeyInvalidInviteCode, reportedKey(t, err))

	_, err = InviteLinks.Redeem(ctx, "missing", bob.ID())
	assert.Equal(t, KeyInvalidInviteCode, reportedKey(t, err))
}

func TestMessages(t *testing.T) {
	testCases := []struct {
		key, lang, want string
	}{
		{KeyUsernameExists, "de", "Ein Benutzer mit diesem Namen existiert bereits."},
		{KeyUsernameExists, "pt", "A user with this name already exists."},
		{KeyFileAlreadyAttached, "fr", "This file is already attached to this item."},
		{"no such key", "en", "no such key"},
	}

	for _, tc := range testCases {
		t.Run(tc.key+"/"+tc.lang, func(t *testing.T) {
			assert.Equal(t, tc.want, Message(tc.key, tc.lang))
		})
	}

	assert.Equal(t, "plain", Localize(plainErr("plain"), "de"))
}

type plainErr string

func (e plainErr) Error() string { return string(e) }
