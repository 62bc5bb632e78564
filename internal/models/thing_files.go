package models

import (
	"context"

	"github.com/libreviews/revdal/internal/dal/dalerr"
	"github.com/libreviews/revdal/internal/dal/model"
	"github.com/libreviews/revdal/internal/dal/registry"
	"github.com/libreviews/revdal/internal/dal/schema"
)

var thingFiles = registry.NewModule[*model.Model]("thing_files") //nolint:gochecknoglobals

// ThingFiles is the handle of the join table between things and files.
var ThingFiles = &ThingFileHandle{plainHandle{thingFiles}} //nolint:gochecknoglobals

// ThingFileHandle links files to things.
type ThingFileHandle struct {
	plainHandle
}

func thingFileDefinition() model.Definition {
	return model.Definition{
		Table: "thing_files",
		Fields: schema.Fields{
			"id":      schema.String().UUID(4),
			"thingID": schema.String().UUID(4).Required(),
			"fileID":  schema.String().UUID(4).Required(),
		},
		Options: model.Options{
			Columns: map[string]string{"thingID": "thing_id", "fileID": "file_id"},
			Indexes: []model.Index{
				{Fields: []string{"thingID", "fileID"}, Unique: true},
			},
		},
	}
}

// Attach links file fileID to thing thingID.
func (h *ThingFileHandle) Attach(ctx context.Context, thingID, fileID string) error {
	_, err := h.Create(ctx, map[string]any{"thingID": thingID, "fileID": fileID})
	if dalerr.IsDuplicate(err) {
		return dalerr.Report(KeyFileAlreadyAttached, err)
	}

	return err
}
