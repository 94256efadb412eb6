package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/tapcards/tap/adapters/event"
	"github.com/tapcards/tap/internal/application/service"
	"github.com/tapcards/tap/internal/domain/profile"
	"github.com/tapcards/tap/pkg/apperror"
	"github.com/tapcards/tap/pkg/logger"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

var tracer = otel.Tracer("profile_usecase")

type Options struct {
	// FailOpen turns backend read errors into an empty collection.
	FailOpen      bool
	SeedDefaults  bool
	PublicBaseURL string
}

type ProfileUseCase struct {
	profileRepo profile.Repository
	publisher   service.EventPublisher
	logger      logger.Logger
	opts        Options
	now         func() time.Time
}

func NewProfileUseCase(repo profile.Repository, publisher service.EventPublisher, log logger.Logger, opts Options) *ProfileUseCase {
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	return &ProfileUseCase{
		profileRepo: repo,
		publisher:   publisher,
		logger:      log,
		opts:        opts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// LoadAll returns the whole collection, seeding it on first access.
func (uc *ProfileUseCase) LoadAll(ctx context.Context) (profile.Collection, error) {
	ctx, span := tracer.Start(ctx, "LoadAll")
	defer span.End()

	profiles, err := uc.load(ctx, false)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("profile_count", len(profiles)))
	return profiles, nil
}

// load reads the collection. With strict set, backend errors are always returned
// so a write never replaces data it could not read.
func (uc *ProfileUseCase) load(ctx context.Context, strict bool) (profile.Collection, error) {
	profiles, err := uc.profileRepo.LoadAll(ctx)
	if err == nil {
		return profiles, nil
	}

	if errors.Is(err, profile.ErrCollectionNotFound) {
		if !uc.opts.SeedDefaults {
			return profile.Collection{}, nil
		}
		seeds := profile.SeedCollection(uc.now())
		if saveErr := uc.profileRepo.SaveAll(ctx, seeds); saveErr != nil {
			uc.logger.Error("Failed to persist seed profiles", saveErr)
		} else {
			uc.logger.Info("Seeded default profiles", zap.Strings("usernames", seeds.Usernames()))
		}
		return seeds, nil
	}

	if strict || !uc.opts.FailOpen {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperror.NewStorage("failed to load profiles", err)
	}

	uc.logger.Warn("Profile backend unavailable, serving empty collection", zap.Error(err))
	return profile.Collection{}, nil
}

func (uc *ProfileUseCase) save(ctx context.Context, profiles profile.Collection) error {
	if err := uc.profileRepo.SaveAll(ctx, profiles); err != nil {
		uc.logger.Error("Failed to save profiles", err)
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return apperror.NewStorage("failed to save profiles", err)
	}
	return nil
}

type GetProfileInput struct {
	Username     string
	Email        string
	AuthProvider string
}

// ExecuteGetProfile looks up by username when one is given, else by (email, authProvider).
func (uc *ProfileUseCase) ExecuteGetProfile(ctx context.Context, input GetProfileInput) (*profile.Profile, error) {
	ctx, span := tracer.Start(ctx, "ExecuteGetProfile")
	defer span.End()

	username := profile.NormalizeUsername(input.Username)
	email := strings.TrimSpace(input.Email)
	provider := strings.TrimSpace(input.AuthProvider)

	if username == "" && (email == "" || provider == "") {
		err := apperror.NewInvalidInput("Username or email with authProvider is required", nil)
		span.RecordError(err)
		return nil, err
	}

	profiles, err := uc.load(ctx, false)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if username != "" {
		span.SetAttributes(attribute.String("username", username))
		p, ok := profiles[username]
		if !ok {
			return nil, apperror.NewNotFound("Profile", username)
		}
		return p, nil
	}

	span.SetAttributes(attribute.String("auth_provider", provider))
	p, ok := profiles.FindByIdentity(email, provider)
	if !ok {
		return nil, apperror.NewNotFound("Profile", email)
	}
	return p, nil
}

type UpsertProfileInput struct {
	Username string
	Patch    profile.Patch
}

type UpsertProfileOutput struct {
	Profile *profile.Profile
	Action  string
	URL     string
}

func (uc *ProfileUseCase) ExecuteUpsertProfile(ctx context.Context, input UpsertProfileInput) (*UpsertProfileOutput, error) {
	ctx, span := tracer.Start(ctx, "ExecuteUpsertProfile")
	defer span.End()

	username := profile.NormalizeUsername(input.Username)
	if username == "" {
		return nil, apperror.NewInvalidInput("Username is required", nil)
	}
	if input.Patch.DisplayName == nil || strings.TrimSpace(*input.Patch.DisplayName) == "" {
		return nil, apperror.NewInvalidInput("Display name is required", profile.ErrDisplayNameRequired)
	}
	span.SetAttributes(attribute.String("username", username))

	profiles, err := uc.load(ctx, true)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	prev, existed := profiles[username]
	if !existed {
		if err := checkDuplicateIdentity(profiles, input.Patch); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	next, err := profile.Merge(prev, username, input.Patch, uc.now())
	if err != nil {
		return nil, apperror.NewInvalidInput("Display name is required", err)
	}

	profiles[username] = next
	if err := uc.save(ctx, profiles); err != nil {
		span.RecordError(err)
		return nil, err
	}

	action := ActionUpdated
	eventType := event.ProfileEventTypeUpdated
	if !existed {
		action = ActionCreated
		eventType = event.ProfileEventTypeCreated
	}
	uc.logger.Info("Profile saved", zap.String("username", username), zap.String("action", action))
	uc.publish(ctx, eventType, next)

	return &UpsertProfileOutput{
		Profile: next,
		Action:  action,
		URL:     uc.PublicURL(username),
	}, nil
}

type UpdateProfileInput struct {
	Username string
	Patch    profile.Patch
}

// ExecuteUpdateProfile applies a partial update to an existing record.
func (uc *ProfileUseCase) ExecuteUpdateProfile(ctx context.Context, input UpdateProfileInput) (*profile.Profile, error) {
	ctx, span := tracer.Start(ctx, "ExecuteUpdateProfile")
	defer span.End()

	username := profile.NormalizeUsername(input.Username)
	if username == "" {
		return nil, apperror.NewInvalidInput("Username is required", nil)
	}
	span.SetAttributes(attribute.String("username", username))

	profiles, err := uc.load(ctx, true)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	prev, ok := profiles[username]
	if !ok {
		return nil, apperror.NewNotFound("Profile", username)
	}

	next, err := profile.Merge(prev, username, input.Patch, uc.now())
	if err != nil {
		return nil, apperror.NewInvalidInput(err.Error(), err)
	}

	profiles[username] = next
	if err := uc.save(ctx, profiles); err != nil {
		span.RecordError(err)
		return nil, err
	}

	uc.publish(ctx, event.ProfileEventTypeUpdated, next)
	return next, nil
}

type CheckAvailabilityOutput struct {
	Username  string
	Available bool
}

func (uc *ProfileUseCase) ExecuteCheckAvailability(ctx context.Context, username string) (*CheckAvailabilityOutput, error) {
	ctx, span := tracer.Start(ctx, "ExecuteCheckAvailability")
	defer span.End()

	username = profile.NormalizeUsername(username)
	if username == "" {
		return nil, apperror.NewInvalidInput("Username is required", nil)
	}

	profiles, err := uc.load(ctx, false)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	_, taken := profiles[username]
	return &CheckAvailabilityOutput{Username: username, Available: !taken}, nil
}

// ExecuteGetPublicProfile hides private profiles behind NotFound.
func (uc *ProfileUseCase) ExecuteGetPublicProfile(ctx context.Context, username string) (*profile.Profile, error) {
	p, err := uc.ExecuteGetProfile(ctx, GetProfileInput{Username: username})
	if err != nil {
		return nil, err
	}
	if !p.IsPublic {
		return nil, apperror.NewNotFound("Profile", p.Username)
	}
	return p, nil
}

type SetAvatarInput struct {
	Username  string
	AvatarURL string
	// KeepImage leaves the legacy image field untouched.
	KeepImage bool
}

// SetAvatar records a new avatar URL. It reports false when no such profile exists.
func (uc *ProfileUseCase) SetAvatar(ctx context.Context, input SetAvatarInput) (bool, error) {
	ctx, span := tracer.Start(ctx, "SetAvatar")
	defer span.End()

	username := profile.NormalizeUsername(input.Username)
	if username == "" || strings.TrimSpace(input.AvatarURL) == "" {
		return false, apperror.NewInvalidInput("Username and avatar URL are required", nil)
	}

	profiles, err := uc.load(ctx, true)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	p, ok := profiles[username]
	if !ok {
		return false, nil
	}

	p.AvatarURL = input.AvatarURL
	if !input.KeepImage {
		p.Image = input.AvatarURL
	}
	p.UpdatedAt = uc.now()

	if err := uc.save(ctx, profiles); err != nil {
		span.RecordError(err)
		return false, err
	}
	return true, nil
}

// ProfileExists reports whether username has a stored record. A backend failure is
// an error, not a false.
func (uc *ProfileUseCase) ProfileExists(ctx context.Context, username string) (bool, error) {
	username = profile.NormalizeUsername(username)
	if username == "" {
		return false, nil
	}
	profiles, err := uc.load(ctx, true)
	if err != nil {
		return false, err
	}
	_, ok := profiles[username]
	return ok, nil
}

// LinkPaymentAccount stores the connected payout account on the profile.
func (uc *ProfileUseCase) LinkPaymentAccount(ctx context.Context, username, accountID string) error {
	ctx, span := tracer.Start(ctx, "LinkPaymentAccount")
	defer span.End()

	username = profile.NormalizeUsername(username)
	if username == "" || accountID == "" {
		return apperror.NewInvalidInput("Username and account id are required", nil)
	}

	profiles, err := uc.load(ctx, true)
	if err != nil {
		span.RecordError(err)
		return err
	}

	p, ok := profiles[username]
	if !ok {
		return apperror.NewNotFound("Profile", username)
	}
	p.StripeAccountID = accountID
	p.UpdatedAt = uc.now()

	if err := uc.save(ctx, profiles); err != nil {
		span.RecordError(err)
		return err
	}
	uc.logger.Info("Payment account linked", zap.String("username", username), zap.String("account_id", accountID))
	return nil
}

// Ping reports whether the backend is reachable.
func (uc *ProfileUseCase) Ping(ctx context.Context) error {
	return uc.profileRepo.Ping(ctx)
}

func (uc *ProfileUseCase) PublicURL(username string) string {
	return strings.TrimRight(uc.opts.PublicBaseURL, "/") + "/" + username
}

func checkDuplicateIdentity(profiles profile.Collection, patch profile.Patch) error {
	if patch.Email == nil || patch.AuthProvider == nil {
		return nil
	}
	email := strings.TrimSpace(*patch.Email)
	provider := strings.TrimSpace(*patch.AuthProvider)
	if owner, ok := profiles.FindByIdentity(email, provider); ok {
		return apperror.NewDuplicateAccount(email, provider, owner.Username)
	}
	return nil
}

func (uc *ProfileUseCase) publish(ctx context.Context, eventType event.ProfileEventType, p *profile.Profile) {
	payload := event.ProfileEventPayload{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		Username:   p.Username,
		AssetURL:   p.AvatarURL,
		OccurredAt: p.UpdatedAt,
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := uc.publisher.PublishProfileEvent(ctx, payload); err != nil {
			uc.logger.Warn("Failed to publish profile event", zap.String("username", payload.Username), zap.Error(err))
		}
	}()
}
