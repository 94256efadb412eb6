package media

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tapcards/tap/adapters/event"
	"github.com/tapcards/tap/internal/application/service"
	profileUC "github.com/tapcards/tap/internal/application/usecase/profile"
	"github.com/tapcards/tap/pkg/apperror"
	"github.com/tapcards/tap/pkg/logger"
)

const AvatarTransformation = "c_fill,g_face,w_400,h_400"

var errMissingPublicID = errors.New("event has no public id")

type ProcessAvatarUseCase struct {
	profiles AvatarSetter
	uploader service.Uploader
	logger   logger.Logger
}

func NewProcessAvatarUseCase(profiles AvatarSetter, u service.Uploader, log logger.Logger) *ProcessAvatarUseCase {
	return &ProcessAvatarUseCase{profiles: profiles, uploader: u, logger: log}
}

// Execute swaps the profile's avatar for a square face-cropped rendition. The
// legacy image field keeps the original upload.
func (uc *ProcessAvatarUseCase) Execute(ctx context.Context, payload event.ProfileEventPayload) error {
	l := uc.logger.With(zap.String("username", payload.Username), zap.String("event_type", string(payload.EventType)))

	if payload.EventType != event.ProfileEventTypeAvatarUploaded {
		l.Debug("Ignoring event")
		return nil
	}
	if payload.PublicID == "" {
		l.Warn("Avatar event without public id, skipping")
		return apperror.NewInvalidInput("avatar event is missing the asset id", errMissingPublicID)
	}

	l.Info("Worker UseCase processing avatar event")

	squareURL, err := uc.uploader.TransformURL(payload.PublicID, AvatarTransformation)
	if err != nil {
		return apperror.NewInternal("failed to build avatar URL", err)
	}

	updated, err := uc.profiles.SetAvatar(ctx, profileUC.SetAvatarInput{
		Username:  payload.Username,
		AvatarURL: squareURL,
		KeepImage: true,
	})
	if err != nil {
		return err
	}
	if !updated {
		l.Warn("Profile not found, skipping event")
		return nil
	}

	l.Info("Successfully processed avatar", zap.String("url", squareURL))
	return nil
}
