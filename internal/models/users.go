package models

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"

	"github.com/libreviews/revdal/internal/dal/dalerr"
	"github.com/libreviews/revdal/internal/dal/model"
	"github.com/libreviews/revdal/internal/dal/registry"
	"github.com/libreviews/revdal/internal/dal/schema"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var users = registry.NewModule[*model.Model]("users") //nolint:gochecknoglobals

// Users is the handle of the users table.
var Users = &UserHandle{plainHandle{users}} //nolint:gochecknoglobals

// UserHandle adds account operations to the users handle.
type UserHandle struct {
	plainHandle
}

func userDefinition() model.Definition {
	return model.Definition{
		Table: "users",
		Fields: schema.Fields{
			"id":            schema.String().UUID(4),
			"displayName":   schema.String().Max(128).Required(),
			"canonicalName": schema.String().Max(128).Required(),
			"urlName": schema.Virtual().DefaultFunc(func(u schema.Getter) any {
				name, _ := u.Get("displayName").(string)
				return url.PathEscape(strings.ReplaceAll(name, " ", "_"))
			}),
			"email":    schema.String().Email().Max(128),
			"password": schema.String().Max(255),
			"registrationDate": schema.Date().DefaultFunc(func(schema.Getter) any {
				return time.Now().UTC()
			}),
			"isTrusted":         schema.Boolean().Default(false),
			"isSiteModerator":   schema.Boolean().Default(false),
			"isSuperUser":       schema.Boolean().Default(false),
			"suppressedNotices": schema.Array(schema.String().Max(64)),
			"inviteLinkCount":   schema.Number().Integer().Min(0).Default(0),
		},
		Options: model.Options{
			Columns: map[string]string{
				"displayName":       "display_name",
				"canonicalName":     "canonical_name",
				"registrationDate":  "registration_date",
				"isTrusted":         "is_trusted",
				"isSiteModerator":   "is_site_moderator",
				"isSuperUser":       "is_super_user",
				"suppressedNotices": "suppressed_notices",
				"inviteLinkCount":   "invite_link_count",
			},
			Sensitive: []string{"password", "email"},
			Indexes: []model.Index{
				{Fields: []string{"canonicalName"}, Unique: true},
			},
		},
	}
}

// CanonicalName is the case-insensitive form user names are compared in.
func CanonicalName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// HashPassword hashes a plaintext password using the Argon2id algorithm.
func HashPassword(password string) (string, error) {
	if len([]rune(password)) < MinPasswordLength {
		return "", dalerr.Invalid("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return hash, nil
}

// Create registers a user. A name that differs from an existing one only in case is
// reported as "username exists".
func (h *UserHandle) Create(ctx context.Context, name, password, email string) (*model.Instance, error) {
	m, err := h.module.Model()
	if err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	values := map[string]any{
		"displayName":   name,
		"canonicalName": CanonicalName(name),
		"password":      hash,
	}

	if email != "" {
		values["email"] = email
	}

	user, err := m.Create(ctx, values)
	if err != nil {
		if dalerr.IsDuplicate(err) {
			return nil, dalerr.Report(KeyUsernameExists, err)
		}

		return nil, err
	}

	log.Info().Str("user", user.ID()).Msg("user created")

	return user, nil
}

// FindByName returns the user called name, compared case-insensitively.
func (h *UserHandle) FindByName(ctx context.Context, name string) (*model.Instance, error) {
	q, err := h.Filter(model.Criteria{"canonicalName": CanonicalName(name)})
	if err != nil {
		return nil, err
	}

	return q.First(ctx)
}

// Authenticate returns the user called name when password matches. Unknown names and
// wrong passwords are both reported as "invalid credentials".
func (h *UserHandle) Authenticate(ctx context.Context, name, password string) (*model.Instance, error) {
	q, err := h.Filter(model.Criteria{"canonicalName": CanonicalName(name)})
	if err != nil {
		return nil, err
	}

	user, err := q.IncludeSensitive("password").First(ctx)
	if err != nil {
		if errors.Is(err, dalerr.ErrNotFound) {
			return nil, dalerr.Report(KeyInvalidCredentials, err)
		}

		return nil, err
	}

	match, err := argon2id.ComparePasswordAndHash(password, user.String("password"))
	if err != nil {
		log.Error().Err(err).Str("user", user.ID()).Msg("failed to verify password")
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}

	if !match {
		return nil, dalerr.Report(KeyInvalidCredentials, nil)
	}

	return user, nil
}

// IsAdmin reports whether user may moderate the whole site.
func IsAdmin(user *model.Instance) bool {
	return user.Bool("isSuperUser") || user.Bool("isSiteModerator")
}
