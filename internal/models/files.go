package models

import (
	"github.com/libreviews/revdal/internal/dal/mlstring"
	"github.com/libreviews/revdal/internal/dal/model"
	"github.com/libreviews/revdal/internal/dal/registry"
	"github.com/libreviews/revdal/internal/dal/revision"
	"github.com/libreviews/revdal/internal/dal/schema"
)

// Licenses accepted for uploaded media.
var Licenses = []any{"cc-0", "cc-by", "cc-by-sa", "fair-use"} //nolint:gochecknoglobals

var files = registry.NewModule[*revision.Model]("files") //nolint:gochecknoglobals

// Files is the handle of the files table: uploaded media and their metadata.
var Files = &FileHandle{revisionHandle{files}} //nolint:gochecknoglobals

// FileHandle is the revisioned handle of files.
type FileHandle struct {
	revisionHandle
}

func fileDefinition() model.Definition {
	return revision.Define(model.Definition{
		Table: "files",
		Fields: schema.Fields{
			"id":          schema.String().UUID(4),
			"name":        schema.String().Max(512),
			"description": mlstring.Schema(mlstring.Options{}),
			"uploadedBy":  schema.String().UUID(4),
			"uploadedOn":  schema.Date(),
			"mimeType":    schema.String().Max(255),
			"license":     schema.String().Enum(Licenses...),
			"creator":     mlstring.Schema(mlstring.Options{}),
			"source":      mlstring.Schema(mlstring.Options{}),
			// false until the upload finished and the metadata was confirmed
			"completed": schema.Boolean().Default(false),
		},
		Options: model.Options{
			Columns: map[string]string{
				"uploadedBy": "uploaded_by",
				"uploadedOn": "uploaded_on",
				"mimeType":   "mime_type",
			},
		},
	})
}
