package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/libreviews/revdal/internal/dal/dalerr"
	"github.com/libreviews/revdal/internal/dal/model"
	"github.com/libreviews/revdal/internal/dal/registry"
	"github.com/libreviews/revdal/internal/dal/schema"
	"github.com/libreviews/revdal/internal/uniuri"
)

// InviteCodeLen is the length of generated invite codes.
const InviteCodeLen = 12

var inviteLinks = registry.NewModule[*model.Model]("invite_links") //nolint:gochecknoglobals

// InviteLinks is the handle of the invite_links table.
var InviteLinks = &InviteLinkHandle{plainHandle{inviteLinks}} //nolint:gochecknoglobals

// InviteLinkHandle issues and redeems invite codes.
type InviteLinkHandle struct {
	plainHandle
}

func inviteLinkDefinition() model.Definition {
	return model.Definition{
		Table: "invite_links",
		Fields: schema.Fields{
			"id":        schema.String().Max(32),
			"createdBy": schema.String().UUID(4).Required(),
			"createdOn": schema.Date().Required(),
			"usedBy":    schema.String().UUID(4),
		},
		Options: model.Options{
			Columns: map[string]string{
				"createdBy": "created_by",
				"createdOn": "created_on",
				"usedBy":    "used_by",
			},
			Indexes: []model.Index{
				{Fields: []string{"createdBy"}},
			},
		},
	}
}

// Generate issues an invite code on behalf of user, spending one of the user's invites.
// The link insert and the spend run in one transaction; a concurrent spend of the same
// invite makes one of the two fail with dalerr.ErrStaleRevision. user itself is left as it
// was; reload it to see the remaining count.
func (h *InviteLinkHandle) Generate(ctx context.Context, user *model.Instance) (*model.Instance, error) {
	m, err := h.module.Model()
	if err != nil {
		return nil, err
	}

	left := user.Int("inviteLinkCount")
	if left < 1 {
		return nil, dalerr.Report(KeyNoInvitesLeft, nil)
	}

	code, err := uniuri.NewLenChars(InviteCodeLen, uniuri.ReadableChars)
	if err != nil {
		return nil, err
	}

	link := m.New(map[string]any{
		"id":        code,
		"createdBy": user.ID(),
		"createdOn": time.Now().UTC(),
	})

	spend := user.Clone()
	spend.Set("inviteLinkCount", left-1)
	spend.Guard("inviteLinkCount", left)

	link.BeforeWrite(func(ctx context.Context, tx *gorm.DB) error {
		return spend.SaveWith(ctx, tx)
	})

	if err := link.Save(ctx); err != nil {
		return nil, err
	}

	return link, nil
}

// Redeem marks code as used by userID. Unknown codes and codes used already are both
// reported as "invalid invite code".
func (h *InviteLinkHandle) Redeem(ctx context.Context, code, userID string) (*model.Instance, error) {
	link, err := h.Get(ctx, code)
	if err != nil {
		if errors.Is(err, dalerr.ErrNotFound) {
			return nil, dalerr.Report(KeyInvalidInviteCode, err)
		}

		return nil, err
	}

	if link.String("usedBy") != "" {
		return nil, dalerr.Report(KeyInvalidInviteCode, nil)
	}

	link.Set("usedBy", userID)
	link.Guard("usedBy", nil)

	if err := link.Save(ctx); err != nil {
		if errors.Is(err, dalerr.ErrStaleRevision) {
			return nil, dalerr.Report(KeyInvalidInviteCode, err)
		}

		return nil, err
	}

	return link, nil
}
