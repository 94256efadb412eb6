package profile

import (
	"errors"
	"strings"
	"time"
)

var ErrDisplayNameRequired = errors.New("displayName is required")

// Patch carries the fields of a write. Nil (or empty string) means "not supplied".
// Links is the exception: a non-nil empty slice is a supplied value.
type Patch struct {
	DisplayName  *string
	Title        *string
	Bio          *string
	AvatarURL    *string
	Phone        *string
	Email        *string
	Instagram    *string
	LinkedIn     *string
	AuthProvider *string
	Links        []Link
	Theme        *string
	IsPublic     *bool
}

// Merge builds the next version of a record. Every field is resolved on its own:
// the supplied value, else the previous value, else the field default.
// prev may be nil, in which case a display name is mandatory.
func Merge(prev *Profile, username string, patch Patch, now time.Time) (*Profile, error) {
	existed := prev != nil
	if !existed && supplied(patch.DisplayName) == "" {
		return nil, ErrDisplayNameRequired
	}
	if !existed {
		prev = &Profile{}
	}

	next := &Profile{
		Username:        NormalizeUsername(username),
		Name:            pick(supplied(patch.DisplayName), prev.Name),
		Bio:             pick(supplied(patch.Bio), prev.Bio),
		Phone:           pick(supplied(patch.Phone), prev.Phone),
		Email:           pick(trimmed(patch.Email), prev.Email),
		Instagram:       pick(supplied(patch.Instagram), prev.Instagram),
		LinkedIn:        pick(supplied(patch.LinkedIn), prev.LinkedIn),
		AuthProvider:    pick(trimmed(patch.AuthProvider), prev.AuthProvider),
		Theme:           pick(supplied(patch.Theme), prev.Theme, DefaultTheme),
		StripeAccountID: prev.StripeAccountID,
		CreatedAt:       prev.CreatedAt,
		UpdatedAt:       now,
	}

	next.Title = pick(supplied(patch.Title), TitleFromBio(supplied(patch.Bio)), prev.Title, DefaultTitle)

	if avatar := supplied(patch.AvatarURL); avatar != "" {
		next.AvatarURL = avatar
		next.Image = avatar
	} else {
		next.AvatarURL = prev.AvatarURL
		next.Image = pick(prev.Image, DefaultImage)
	}

	if patch.Links != nil {
		next.Links = copyLinks(patch.Links)
	} else {
		next.Links = copyLinks(prev.Links)
	}

	switch {
	case patch.IsPublic != nil:
		next.IsPublic = *patch.IsPublic
	case existed:
		next.IsPublic = prev.IsPublic
	default:
		next.IsPublic = true
	}

	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	return next, nil
}

// TitleFromBio returns the first 100 characters of bio.
func TitleFromBio(bio string) string {
	runes := []rune(bio)
	if len(runes) > titleMaxRunes {
		runes = runes[:titleMaxRunes]
	}
	return string(runes)
}

func copyLinks(links []Link) []Link {
	out := make([]Link, len(links))
	copy(out, links)
	return out
}

// supplied treats nil and blank strings as absent. The value itself is kept as sent.
func supplied(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return ""
	}
	return *s
}

// trimmed is supplied without surrounding whitespace. Identity fields are stored this way.
func trimmed(s *string) string {
	return strings.TrimSpace(supplied(s))
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
