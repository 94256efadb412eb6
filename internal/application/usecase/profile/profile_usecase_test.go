package profile

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapcards/tap/adapters/event"
	"github.com/tapcards/tap/internal/domain/profile"
	"github.com/tapcards/tap/pkg/apperror"
	"github.com/tapcards/tap/pkg/logger"
)

// fakeRepo round-trips through JSON so tests see what a real backend would return.
type fakeRepo struct {
	mu      sync.Mutex
	blob    []byte
	loadErr error
	saveErr error
	saves   int
}

func (r *fakeRepo) LoadAll(context.Context) (profile.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if r.blob == nil {
		return nil, profile.ErrCollectionNotFound
	}
	out := profile.Collection{}
	if err := json.Unmarshal(r.blob, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fakeRepo) SaveAll(_ context.Context, profiles profile.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	data, err := json.Marshal(profiles)
	if err != nil {
		return err
	}
	r.blob = data
	r.saves++
	return nil
}

func (r *fakeRepo) Ping(context.Context) error { return r.loadErr }

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.ProfileEventPayload
}

func (p *recordingPublisher) PublishProfileEvent(_ context.Context, payload event.ProfileEventPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, payload)
	return nil
}

func (p *recordingPublisher) types() []event.ProfileEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.ProfileEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

func str(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func emptyRepo() *fakeRepo {
	return &fakeRepo{blob: []byte(`{}`)}
}

func newUseCase(repo profile.Repository, opts Options) *ProfileUseCase {
	if opts.PublicBaseURL == "" {
		opts.PublicBaseURL = "https://tapcards.us"
	}
	uc := NewProfileUseCase(repo, nil, logger.NewNopLogger(), opts)
	clock := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	uc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return uc
}

func upsert(t *testing.T, uc *ProfileUseCase, username string, patch profile.Patch) *UpsertProfileOutput {
	t.Helper()
	out, err := uc.ExecuteUpsertProfile(context.Background(), UpsertProfileInput{Username: username, Patch: patch})
	require.NoError(t, err)
	return out
}

func TestUpsert_ThenGetReturnsDisplayName(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})

	for _, name := range []string{"alice", "Bob", "  CAROL  "} {
		upsert(t, uc, name, profile.Patch{DisplayName: str("Name of " + name)})

		p, err := uc.ExecuteGetProfile(context.Background(), GetProfileInput{Username: profile.NormalizeUsername(name)})
		require.NoError(t, err)
		assert.Equal(t, "Name of "+name, p.Name)
	}
}

func TestUpsert_Scenario(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})

	first := upsert(t, uc, "aadikatyal", profile.Patch{DisplayName: str("Aadi Katyal"), Bio: str("i build tap")})
	assert.Equal(t, ActionCreated, first.Action)
	assert.Equal(t, "aadikatyal", first.Profile.Username)
	assert.Equal(t, "i build tap", first.Profile.Title)
	assert.Equal(t, "https://tapcards.us/aadikatyal", first.URL)

	second := upsert(t, uc, "aadikatyal", profile.Patch{DisplayName: str("Aadi K.")})
	assert.Equal(t, ActionUpdated, second.Action)
	assert.Equal(t, "i build tap", second.Profile.Bio)
	assert.Equal(t, "Aadi K.", second.Profile.Name)
}

func TestUpsert_IdempotentOnUnspecifiedFields(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})
	upsert(t, uc, "alice", profile.Patch{
		DisplayName: str("Alice"),
		Bio:         str("bio"),
		Links:       []profile.Link{{Title: "site", URL: "https://alice.dev"}},
		Theme:       str("dark"),
		IsPublic:    boolPtr(false),
	})

	first := upsert(t, uc, "alice", profile.Patch{DisplayName: str("Alice")})
	second := upsert(t, uc, "alice", profile.Patch{DisplayName: str("Alice")})

	assert.Equal(t, first.Profile.Bio, second.Profile.Bio)
	assert.Equal(t, first.Profile.Links, second.Profile.Links)
	assert.Equal(t, first.Profile.Theme, second.Profile.Theme)
	assert.Equal(t, first.Profile.IsPublic, second.Profile.IsPublic)
	assert.False(t, second.Profile.IsPublic)
}

func TestUpsert_TimestampsMonotonic(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})

	created := upsert(t, uc, "alice", profile.Patch{DisplayName: str("Alice")}).Profile
	prev := created
	for i := 0; i < 3; i++ {
		next := upsert(t, uc, "alice", profile.Patch{DisplayName: str("Alice")}).Profile
		assert.True(t, next.CreatedAt.Equal(created.CreatedAt))
		assert.False(t, next.UpdatedAt.Before(prev.UpdatedAt))
		prev = next
	}
}

func TestUpsert_TitleFromBio(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})
	bio := strings.Repeat("a", 140)

	withBio := upsert(t, uc, "alice", profile.Patch{DisplayName: str("Alice"), Bio: str(bio)}).Profile
	assert.Equal(t, bio[:100], withBio.Title)

	later := upsert(t, uc, "alice", profile.Patch{DisplayName: str("Alice")}).Profile
	assert.Equal(t, bio[:100], later.Title)
}

func TestUpsert_NormalizesUsername(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})
	upsert(t, uc, "Alice", profile.Patch{DisplayName: str("Alice")})

	p, err := uc.ExecuteGetProfile(context.Background(), GetProfileInput{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)

	again := upsert(t, uc, "ALICE", profile.Patch{DisplayName: str("Alice 2")})
	assert.Equal(t, ActionUpdated, again.Action)
}

func TestUpsert_RequiredFields(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})
	ctx := context.Background()

	_, err := uc.ExecuteUpsertProfile(ctx, UpsertProfileInput{Username: " ", Patch: profile.Patch{DisplayName: str("A")}})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = uc.ExecuteUpsertProfile(ctx, UpsertProfileInput{Username: "alice"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestUpsert_DuplicateAccount(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})
	upsert(t, uc, "first", profile.Patch{
		DisplayName:  str("First"),
		Email:        str("same@example.com"),
		AuthProvider: str(profile.ProviderGoogle),
	})

	_, err := uc.ExecuteUpsertProfile(context.Background(), UpsertProfileInput{
		Username: "second",
		Patch: profile.Patch{
			DisplayName:  str("Second"),
			Email:        str("SAME@example.com"),
			AuthProvider: str(profile.ProviderGoogle),
		},
	})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	// a different provider is a different identity
	upsert(t, uc, "third", profile.Patch{
		DisplayName:  str("Third"),
		Email:        str("same@example.com"),
		AuthProvider: str(profile.ProviderApple),
	})

	// updates of the owner itself are not checked
	upsert(t, uc, "first", profile.Patch{
		DisplayName:  str("First"),
		Email:        str("same@example.com"),
		AuthProvider: str(profile.ProviderGoogle),
	})
}

func TestUpsert_DuplicateAccountIgnoresWhitespace(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})
	first := upsert(t, uc, "first", profile.Patch{
		DisplayName:  str("First"),
		Email:        str(" Dup@x.com "),
		AuthProvider: str(" google"),
	})
	assert.Equal(t, "Dup@x.com", first.Profile.Email)
	assert.Equal(t, profile.ProviderGoogle, first.Profile.AuthProvider)

	_, err := uc.ExecuteUpsertProfile(context.Background(), UpsertProfileInput{
		Username: "second",
		Patch: profile.Patch{
			DisplayName:  str("Second"),
			Email:        str("dup@x.com"),
			AuthProvider: str(profile.ProviderGoogle),
		},
	})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestFindByIdentity_LegacyUntrimmedRecord(t *testing.T) {
	profiles := profile.Collection{
		"legacy": {Username: "legacy", Email: " Old@x.com ", AuthProvider: "apple "},
	}

	p, ok := profiles.FindByIdentity("old@x.com", profile.ProviderApple)

	require.True(t, ok)
	assert.Equal(t, "legacy", p.Username)
}

func TestUpsert_SaveFailureIsStorageError(t *testing.T) {
	repo := emptyRepo()
	repo.saveErr = errors.New("disk full")
	uc := newUseCase(repo, Options{})

	_, err := uc.ExecuteUpsertProfile(context.Background(), UpsertProfileInput{
		Username: "alice",
		Patch:    profile.Patch{DisplayName: str("Alice")},
	})

	assert.ErrorIs(t, err, apperror.ErrStorage)
}

func TestUpsert_ReadFailureDoesNotOverwrite(t *testing.T) {
	repo := &fakeRepo{blob: []byte(`{"keep":{"username":"keep","name":"Keep"}}`), loadErr: errors.New("timeout")}
	uc := newUseCase(repo, Options{FailOpen: true})

	_, err := uc.ExecuteUpsertProfile(context.Background(), UpsertProfileInput{
		Username: "alice",
		Patch:    profile.Patch{DisplayName: str("Alice")},
	})

	assert.ErrorIs(t, err, apperror.ErrStorage)
	assert.Zero(t, repo.saves)
}

func TestUpsert_PublishesEvents(t *testing.T) {
	pub := &recordingPublisher{}
	uc := NewProfileUseCase(emptyRepo(), pub, logger.NewNopLogger(), Options{})

	upsert(t, uc, "alice", profile.Patch{DisplayName: str("Alice")})
	upsert(t, uc, "alice", profile.Patch{DisplayName: str("Alice")})

	assert.Eventually(t, func() bool { return len(pub.types()) == 2 }, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t,
		[]event.ProfileEventType{event.ProfileEventTypeCreated, event.ProfileEventTypeUpdated},
		pub.types())
}

func TestGetProfile_ByIdentity(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})
	upsert(t, uc, "alice", profile.Patch{
		DisplayName:  str("Alice"),
		Email:        str("alice@example.com"),
		AuthProvider: str(profile.ProviderApple),
	})
	ctx := context.Background()

	p, err := uc.ExecuteGetProfile(ctx, GetProfileInput{Email: "Alice@Example.com", AuthProvider: profile.ProviderApple})
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)

	_, err = uc.ExecuteGetProfile(ctx, GetProfileInput{Email: "alice@example.com", AuthProvider: profile.ProviderGoogle})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = uc.ExecuteGetProfile(ctx, GetProfileInput{Email: "alice@example.com"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = uc.ExecuteGetProfile(ctx, GetProfileInput{})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestGetProfile_NotFound(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})

	_, err := uc.ExecuteGetProfile(context.Background(), GetProfileInput{Username: "ghost"})

	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestLoadAll_SeedsAndWritesThrough(t *testing.T) {
	repo := &fakeRepo{}
	uc := newUseCase(repo, Options{SeedDefaults: true})

	profiles, err := uc.LoadAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"aadikatyal", "monty"}, profiles.Usernames())
	assert.Equal(t, 1, repo.saves)

	stored, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestLoadAll_SeedPersistFailureStillReturnsSeeds(t *testing.T) {
	repo := &fakeRepo{saveErr: errors.New("read only")}
	uc := newUseCase(repo, Options{SeedDefaults: true})

	profiles, err := uc.LoadAll(context.Background())

	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestLoadAll_FailOpen(t *testing.T) {
	repo := &fakeRepo{loadErr: errors.New("connection refused")}

	open := newUseCase(repo, Options{FailOpen: true})
	profiles, err := open.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, profiles)

	closed := newUseCase(repo, Options{FailOpen: false})
	_, err = closed.LoadAll(context.Background())
	assert.ErrorIs(t, err, apperror.ErrStorage)
}

func TestCheckAvailability(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})
	ctx := context.Background()

	out, err := uc.ExecuteCheckAvailability(ctx, "newuser")
	require.NoError(t, err)
	assert.True(t, out.Available)

	upsert(t, uc, "newuser", profile.Patch{DisplayName: str("New")})

	out, err = uc.ExecuteCheckAvailability(ctx, "NewUser")
	require.NoError(t, err)
	assert.False(t, out.Available)
	assert.Equal(t, "newuser", out.Username)

	_, err = uc.ExecuteCheckAvailability(ctx, "  ")
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestCheckAvailability_BackendDownReportsAvailable(t *testing.T) {
	uc := newUseCase(&fakeRepo{loadErr: errors.New("unreachable")}, Options{FailOpen: true})

	out, err := uc.ExecuteCheckAvailability(context.Background(), "anyone")

	require.NoError(t, err)
	assert.True(t, out.Available)
}

func TestUpdateProfile(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})
	ctx := context.Background()

	_, err := uc.ExecuteUpdateProfile(ctx, UpdateProfileInput{Username: "ghost", Patch: profile.Patch{Bio: str("x")}})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	upsert(t, uc, "alice", profile.Patch{DisplayName: str("Alice"), Theme: str("dark")})

	p, err := uc.ExecuteUpdateProfile(ctx, UpdateProfileInput{Username: "alice", Patch: profile.Patch{Bio: str("hello")}})
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, "hello", p.Bio)
	assert.Equal(t, "hello", p.Title)
	assert.Equal(t, "dark", p.Theme)
}

func TestGetPublicProfile_HidesPrivate(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})
	ctx := context.Background()
	upsert(t, uc, "open", profile.Patch{DisplayName: str("Open")})
	upsert(t, uc, "hidden", profile.Patch{DisplayName: str("Hidden"), IsPublic: boolPtr(false)})

	p, err := uc.ExecuteGetPublicProfile(ctx, "Open")
	require.NoError(t, err)
	assert.Equal(t, "open", p.Username)

	_, err = uc.ExecuteGetPublicProfile(ctx, "hidden")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestSetAvatar(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})
	ctx := context.Background()
	upsert(t, uc, "alice", profile.Patch{DisplayName: str("Alice")})

	ok, err := uc.SetAvatar(ctx, SetAvatarInput{Username: "alice", AvatarURL: "https://cdn/a.png"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = uc.SetAvatar(ctx, SetAvatarInput{Username: "alice", AvatarURL: "https://cdn/a-square.png", KeepImage: true})
	require.NoError(t, err)
	assert.True(t, ok)

	p, err := uc.ExecuteGetProfile(ctx, GetProfileInput{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/a.png", p.Image)
	assert.Equal(t, "https://cdn/a-square.png", p.AvatarURL)

	ok, err = uc.SetAvatar(ctx, SetAvatarInput{Username: "ghost", AvatarURL: "https://cdn/g.png"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLinkPaymentAccount(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})
	ctx := context.Background()
	upsert(t, uc, "alice", profile.Patch{DisplayName: str("Alice")})

	require.NoError(t, uc.LinkPaymentAccount(ctx, "Alice", "acct_123"))

	p, err := uc.ExecuteGetProfile(ctx, GetProfileInput{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "acct_123", p.StripeAccountID)

	// later writes keep the linked account
	next := upsert(t, uc, "alice", profile.Patch{DisplayName: str("Alice")})
	assert.Equal(t, "acct_123", next.Profile.StripeAccountID)

	err = uc.LinkPaymentAccount(ctx, "ghost", "acct_1")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestProfileExists(t *testing.T) {
	uc := newUseCase(emptyRepo(), Options{})
	upsert(t, uc, "alice", profile.Patch{DisplayName: str("Alice")})

	ok, err := uc.ProfileExists(context.Background(), " ALICE ")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = uc.ProfileExists(context.Background(), "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}
