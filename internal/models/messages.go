package models

import (
	"errors"

	"github.com/libreviews/revdal/internal/dal/dalerr"
	"github.com/libreviews/revdal/internal/dal/mlstring"
)

// Message keys of reported errors.
const (
	KeyUsernameExists      = "username exists"
	KeyInvalidCredentials  = "invalid credentials"
	KeyPreviouslyReviewed  = "previously reviewed"
	KeyFileAlreadyAttached = "file already attached"
	KeyNoInvitesLeft       = "no invites left"
	KeyInvalidInviteCode   = "invalid invite code"
)

var messages = map[string]mlstring.Value{ //nolint:gochecknoglobals
	KeyUsernameExists: {
		"en": "A user with this name already exists.",
		"de": "Ein Benutzer mit diesem Namen existiert bereits.",
		"fr": "Un utilisateur portant ce nom existe déjà.",
	},
	KeyInvalidCredentials: {
		"en": "The user name or password is incorrect.",
		"de": "Benutzername oder Passwort ist falsch.",
	},
	KeyPreviouslyReviewed: {
		"en": "You have previously reviewed this item.",
		"de": "Du hast dieses Thema bereits bewertet.",
		"fr": "Vous avez déjà évalué cet élément.",
	},
	KeyFileAlreadyAttached: {
		"en": "This file is already attached to this item.",
	},
	KeyNoInvitesLeft: {
		"en": "You have no invite links left.",
		"de": "Du hast keine Einladungslinks mehr.",
	},
	KeyInvalidInviteCode: {
		"en": "This invite code is invalid or has already been used.",
	},
}

// Message returns the text of key in lang, falling back along the language fallbacks.
// Unknown keys are returned unchanged.
func Message(key, lang string) string {
	if v, ok := messages[key]; ok {
		if r, ok := mlstring.Resolve(lang, v); ok {
			return r.Str
		}
	}

	return key
}

// Localize returns the user-facing text of err in lang. Errors that are not reported errors
// keep their own message.
func Localize(err error, lang string) string {
	var re *dalerr.ReportedError
	if errors.As(err, &re) {
		return Message(re.Key, lang)
	}

	return err.Error()
}
