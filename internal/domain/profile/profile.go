package profile

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"
)

const (
	DefaultTitle = "Tap User"
	DefaultImage = "/default-profile.jpg"
	DefaultTheme = "default"

	ProviderGoogle = "google"
	ProviderApple  = "apple"

	titleMaxRunes = 100
)

var ErrCollectionNotFound = errors.New("profile collection not found")

type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Icon  string `json:"icon,omitempty"`
}

type Profile struct {
	Username        string    `json:"username"`
	Name            string    `json:"name"`
	Title           string    `json:"title"`
	Image           string    `json:"image"`
	AvatarURL       string    `json:"avatarURL,omitempty"`
	Bio             string    `json:"bio"`
	Phone           string    `json:"phone,omitempty"`
	Email           string    `json:"email,omitempty"`
	Instagram       string    `json:"instagram,omitempty"`
	LinkedIn        string    `json:"linkedin,omitempty"`
	AuthProvider    string    `json:"authProvider,omitempty"`
	Links           []Link    `json:"links"`
	Theme           string    `json:"theme"`
	IsPublic        bool      `json:"isPublic"`
	StripeAccountID string    `json:"stripeAccountId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// UnmarshalJSON fills the defaults older records were written without.
func (p *Profile) UnmarshalJSON(data []byte) error {
	type plain Profile
	aux := struct {
		*plain
		IsPublic *bool `json:"isPublic"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.IsPublic = aux.IsPublic == nil || *aux.IsPublic
	if p.Links == nil {
		p.Links = []Link{}
	}
	if p.Theme == "" {
		p.Theme = DefaultTheme
	}
	return nil
}

// Collection maps normalized username to profile. It is persisted as one unit.
type Collection map[string]*Profile

type Repository interface {
	// LoadAll returns ErrCollectionNotFound when nothing was ever saved.
	LoadAll(ctx context.Context) (Collection, error)
	SaveAll(ctx context.Context, profiles Collection) error
	Ping(ctx context.Context) error
}

func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// FindByIdentity scans for a profile linked to (email, provider). Email is compared
// case-insensitively, provider exactly, both ignoring surrounding whitespace. The
// oldest record wins when several match.
func (c Collection) FindByIdentity(email, provider string) (*Profile, bool) {
	email = strings.TrimSpace(email)
	provider = strings.TrimSpace(provider)
	if email == "" || provider == "" {
		return nil, false
	}

	var match *Profile
	for _, p := range c {
		if p == nil || strings.TrimSpace(p.AuthProvider) != provider || !strings.EqualFold(strings.TrimSpace(p.Email), email) {
			continue
		}
		if match == nil || olderThan(p, match) {
			match = p
		}
	}
	return match, match != nil
}

// Usernames returns the keys in a stable order.
func (c Collection) Usernames() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func olderThan(a, b *Profile) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Username < b.Username
}
