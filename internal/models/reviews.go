package models

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/libreviews/revdal/internal/dal/dalerr"
	"github.com/libreviews/revdal/internal/dal/mlstring"
	"github.com/libreviews/revdal/internal/dal/model"
	"github.com/libreviews/revdal/internal/dal/registry"
	"github.com/libreviews/revdal/internal/dal/revision"
	"github.com/libreviews/revdal/internal/dal/schema"
)

var reviews = registry.NewModule[*revision.Model]("reviews") //nolint:gochecknoglobals

// Reviews is the handle of the reviews table.
var Reviews = &ReviewHandle{revisionHandle{reviews}} //nolint:gochecknoglobals

// ReviewHandle adds review creation to the revisioned handle.
type ReviewHandle struct {
	revisionHandle
}

func languageEnum() []any {
	langs := mlstring.Languages()
	out := make([]any, len(langs))

	for i, l := range langs {
		out[i] = l
	}

	return out
}

func reviewDefinition() model.Definition {
	return revision.Define(model.Definition{
		Table: "reviews",
		Fields: schema.Fields{
			"id":               schema.String().UUID(4),
			"thingID":          schema.String().UUID(4).Required(),
			"title":            mlstring.Schema(mlstring.Options{MaxLength: 255}).Required(),
			"text":             mlstring.Schema(mlstring.Options{}),
			"html":             mlstring.Schema(mlstring.Options{AllowHTML: true}),
			"starRating":       schema.Number().Integer().Min(1).Max(5).Required(),
			"createdOn":        schema.Date().Required(),
			"createdBy":        schema.String().UUID(4).Required(),
			"originalLanguage": schema.String().Enum(languageEnum()...),
			"socialImageID":    schema.String().UUID(4),
		},
		Options: model.Options{
			Columns: map[string]string{
				"thingID":          "thing_id",
				"starRating":       "star_rating",
				"createdOn":        "created_on",
				"createdBy":        "created_by",
				"originalLanguage": "original_language",
				"socialImageID":    "social_image_id",
			},
			Relations: []model.Relation{
				{
					Name: "thing", Target: "things", SourceKey: "thingID", TargetKey: "id",
					Cardinality: model.One, Filter: revision.Current(),
				},
				{Name: "creator", Target: "users", SourceKey: "createdBy", TargetKey: "id", Cardinality: model.One},
				{
					Name: "socialImage", Target: "files", SourceKey: "socialImageID", TargetKey: "id",
					Cardinality: model.One, Filter: revision.Current(),
				},
			},
			Indexes: []model.Index{
				{Fields: []string{"thingID"}},
				{Fields: []string{"createdBy"}},
				{
					// archived copies repeat the author, so only active heads are unique
					Name:   "uniq_reviews_active_author",
					Fields: []string{"thingID", "createdBy"},
					Unique: true,
					Where:  model.Criteria{revision.FieldOldRevOf: nil, revision.FieldRevDeleted: false},
				},
			},
		},
	})
}

// ReviewInput holds the content of a new review.
type ReviewInput struct {
	ThingID          string
	Title            mlstring.Value
	Text             mlstring.Value
	HTML             mlstring.Value
	StarRating       int
	OriginalLanguage string
	SocialImageID    string
}

// Create saves the first revision of a review by userID. A user reviews each thing at most
// once; a second attempt is reported as "previously reviewed". The check runs in the insert
// transaction with the thing row locked, and a partial unique index backs it on engines
// that have one.
func (h *ReviewHandle) Create(ctx context.Context, userID string, in ReviewInput) (*model.Instance, error) {
	m, err := h.module.Model()
	if err != nil {
		return nil, err
	}

	tm, err := things.Model()
	if err != nil {
		return nil, err
	}

	author := model.Criteria{"thingID": in.ThingID, "createdBy": userID}

	n, err := m.FilterNotStaleOrDeleted(author).Count(ctx)
	if err != nil {
		return nil, err
	}

	if n > 0 {
		return nil, dalerr.Report(KeyPreviouslyReviewed, nil)
	}

	review := m.CreateFirstRevision(userID, "create")
	review.Set("thingID", in.ThingID)
	review.Set("title", in.Title)
	review.Set("starRating", in.StarRating)
	review.Set("createdBy", userID)
	review.Set("createdOn", review.Time(revision.FieldRevDate))

	if in.Text != nil {
		review.Set("text", in.Text)
	}

	if in.HTML != nil {
		review.Set("html", in.HTML)
	}

	if in.OriginalLanguage != "" {
		review.Set("originalLanguage", in.OriginalLanguage)
	}

	if in.SocialImageID != "" {
		review.Set("socialImageID", in.SocialImageID)
	}

	review.BeforeWrite(func(ctx context.Context, tx *gorm.DB) error {
		// reviews of one thing are created one at a time
		_, err := tm.FilterNotStaleOrDeleted(model.Criteria{tm.PrimaryKey(): in.ThingID}).Using(tx).ForUpdate().Run(ctx)
		if err != nil {
			return err
		}

		n, err := m.FilterNotStaleOrDeleted(author).Using(tx).Count(ctx)
		if err != nil {
			return err
		}

		if n > 0 {
			return dalerr.Report(KeyPreviouslyReviewed, nil)
		}

		return nil
	})

	if err := review.Save(ctx); err != nil {
		if dalerr.IsDuplicate(err) {
			return nil, dalerr.Report(KeyPreviouslyReviewed, err)
		}

		return nil, err
	}

	return review, nil
}

// SearchDocument is the flattened form of a review handed to the search index.
type SearchDocument struct {
	ID         string         `json:"id"`
	ThingID    string         `json:"thingID"`
	Title      mlstring.Value `json:"title"`
	Text       mlstring.Value `json:"text"`
	StarRating int64          `json:"starRating"`
	CreatedOn  time.Time      `json:"createdOn"`
	CreatedBy  string         `json:"createdBy"`
}

// NewSearchDocument flattens review. The text is taken from the rendered HTML with markup
// removed, or from the plain text when no HTML exists.
func NewSearchDocument(review *model.Instance) SearchDocument {
	doc := SearchDocument{
		ID:         review.ID(),
		ThingID:    review.String("thingID"),
		StarRating: review.Int("starRating"),
		CreatedOn:  review.Time("createdOn"),
		CreatedBy:  review.String("createdBy"),
	}

	doc.Title, _ = review.Get("title").(mlstring.Value)

	if html, ok := review.Get("html").(mlstring.Value); ok && len(html) > 0 {
		doc.Text = mlstring.StripHTML(html)
	} else {
		doc.Text, _ = review.Get("text").(mlstring.Value)
	}

	return doc
}
