package models

import (
	"context"

	"github.com/libreviews/revdal/internal/dal/mlstring"
	"github.com/libreviews/revdal/internal/dal/model"
	"github.com/libreviews/revdal/internal/dal/registry"
	"github.com/libreviews/revdal/internal/dal/revision"
	"github.com/libreviews/revdal/internal/dal/schema"
)

var things = registry.NewModule[*revision.Model]("things") //nolint:gochecknoglobals

// Things is the handle of the things table: the subjects reviews are about.
var Things = &ThingHandle{revisionHandle{things}} //nolint:gochecknoglobals

// ThingHandle adds thing lookups to the revisioned handle.
type ThingHandle struct {
	revisionHandle
}

func thingDefinition() model.Definition {
	return revision.Define(model.Definition{
		Table: "things",
		Fields: schema.Fields{
			"id":          schema.String().UUID(4),
			"urls":        schema.Array(schema.String().URL()).Required().Min(1),
			"label":       mlstring.Schema(mlstring.Options{MaxLength: 256}),
			"aliases":     mlstring.Schema(mlstring.Options{MaxLength: 256, Array: true}),
			"description": mlstring.Schema(mlstring.Options{MaxLength: 512}),
			"createdOn":   schema.Date().Required(),
			"createdBy":   schema.String().UUID(4).Required(),
			"urlID": schema.Virtual().DefaultFunc(func(t schema.Getter) any {
				return t.Get("id")
			}),
		},
		Options: model.Options{
			Columns: map[string]string{
				"createdOn": "created_on",
				"createdBy": "created_by",
			},
			Relations: []model.Relation{
				{
					Name:        "files",
					Target:      "files",
					SourceKey:   "id",
					Cardinality: model.Many,
					Through:     &model.Through{Table: "thing_files", SourceKey: "thingID", TargetKey: "fileID"},
					Filter:      revision.Current(),
				},
				{
					Name:        "creator",
					Target:      "users",
					SourceKey:   "createdBy",
					TargetKey:   "id",
					Cardinality: model.One,
				},
			},
			Indexes: []model.Index{
				{Fields: []string{"createdBy"}},
			},
		},
	})
}

// Create saves the first revision of a thing known under urls.
func (h *ThingHandle) Create(ctx context.Context, userID string, urls []string,
	label mlstring.Value,
) (*model.Instance, error) {
	m, err := h.module.Model()
	if err != nil {
		return nil, err
	}

	thing := m.CreateFirstRevision(userID, "create")
	thing.Set("urls", urls)
	thing.Set("createdBy", userID)
	thing.Set("createdOn", thing.Time(revision.FieldRevDate))

	if label != nil {
		thing.Set("label", label)
	}

	if err := thing.Save(ctx); err != nil {
		return nil, err
	}

	return thing, nil
}

// Label resolves the label of thing for lang, falling back to its first URL.
func Label(thing *model.Instance, lang string) string {
	if v, ok := thing.Get("label").(mlstring.Value); ok {
		if r, ok := mlstring.Resolve(lang, v); ok {
			return r.Str
		}
	}

	if urls := thing.Strings("urls"); len(urls) > 0 {
		return urls[0]
	}

	return ""
}
