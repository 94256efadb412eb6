package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tapcards/tap/adapters/event"
	"github.com/tapcards/tap/internal/application/service"
	profileUC "github.com/tapcards/tap/internal/application/usecase/profile"
	"github.com/tapcards/tap/internal/domain/media"
	"github.com/tapcards/tap/pkg/apperror"
	"github.com/tapcards/tap/pkg/logger"
)

// AvatarSetter is the part of the profile store the media flows write to.
type AvatarSetter interface {
	SetAvatar(ctx context.Context, input profileUC.SetAvatarInput) (bool, error)
}

type UploadAvatarUseCase struct {
	profiles  AvatarSetter
	uploader  service.Uploader
	publisher service.EventPublisher
	logger    logger.Logger
	folder    string
	maxBytes  int64
	now       func() time.Time
}

func NewUploadAvatarUseCase(
	profiles AvatarSetter,
	u service.Uploader,
	p service.EventPublisher,
	log logger.Logger,
	folder string,
	maxSizeMB int64,
) *UploadAvatarUseCase {
	if p == nil {
		p = event.NopPublisher{}
	}
	return &UploadAvatarUseCase{
		profiles:  profiles,
		uploader:  u,
		publisher: p,
		logger:    log,
		folder:    folder,
		maxBytes:  maxSizeMB * media.MB,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type UploadAvatarInput struct {
	Username    string
	ContentType string
	Size        int64
	File        io.Reader
}

func (uc *UploadAvatarUseCase) Execute(ctx context.Context, input UploadAvatarInput) (*media.Avatar, error) {
	if input.File == nil {
		return nil, apperror.NewInvalidInput("No image file provided", nil)
	}
	if strings.TrimSpace(input.Username) == "" {
		return nil, apperror.NewInvalidInput("Username is required", nil)
	}
	if err := media.ValidateImage(input.ContentType, input.Size, uc.maxBytes); err != nil {
		return nil, apperror.NewInvalidInput(err.Error(), err)
	}

	ext, _ := media.Extension(input.ContentType)
	now := uc.now()
	baseName := fmt.Sprintf("%s-%d", input.Username, now.UnixMilli())

	l := uc.logger.With(zap.String("username", input.Username), zap.String("asset", baseName))

	uploaded, err := uc.uploader.Upload(ctx, input.File, uc.folder, baseName)
	if err != nil {
		l.Error("Failed to upload avatar", err)
		if errors.Is(err, apperror.ErrUnavailable) {
			return nil, err
		}
		return nil, apperror.NewInternal("failed to upload image", err)
	}

	// A failed profile update does not fail the upload.
	updated, err := uc.profiles.SetAvatar(ctx, profileUC.SetAvatarInput{
		Username:  input.Username,
		AvatarURL: uploaded.URL,
	})
	switch {
	case err != nil:
		l.Error("Failed to update profile with new avatar", err)
	case !updated:
		l.Info("No existing profile, image uploaded but profile not updated")
	default:
		l.Info("Profile updated with new avatar", zap.String("url", uploaded.URL))
	}

	avatar := &media.Avatar{
		Filename:       baseName + "." + ext,
		URL:            uploaded.URL,
		PublicID:       uploaded.PublicID,
		Size:           input.Size,
		Type:           input.ContentType,
		Username:       input.Username,
		UploadedAt:     now,
		ProfileUpdated: updated,
	}

	if updated {
		uc.publishUploaded(ctx, avatar)
	}
	return avatar, nil
}

func (uc *UploadAvatarUseCase) publishUploaded(ctx context.Context, avatar *media.Avatar) {
	payload := event.ProfileEventPayload{
		EventID:    uuid.NewString(),
		EventType:  event.ProfileEventTypeAvatarUploaded,
		Username:   avatar.Username,
		AssetURL:   avatar.URL,
		PublicID:   avatar.PublicID,
		OccurredAt: avatar.UploadedAt,
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := uc.publisher.PublishProfileEvent(ctx, payload); err != nil {
			uc.logger.Error("Failed to publish Kafka 'avatar.uploaded' event", err, zap.String("username", payload.Username))
		}
	}()
}
