package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tapcards/tap/internal/application/service"
	"github.com/tapcards/tap/internal/domain/profile"
	"github.com/tapcards/tap/pkg/apperror"
	"github.com/tapcards/tap/pkg/logger"
)

const Folder = "backups/profiles"

type BackupUseCase struct {
	profileRepo profile.Repository
	uploader    service.Uploader
	logger      logger.Logger
	now         func() time.Time
}

func NewBackupUseCase(repo profile.Repository, uploader service.Uploader, log logger.Logger) *BackupUseCase {
	return &BackupUseCase{
		profileRepo: repo,
		uploader:    uploader,
		logger:      log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type BackupOutput struct {
	URL      string
	PublicID string
	Count    int
}

// Execute uploads a JSON snapshot of the whole collection. It reads the backend
// directly so an unreachable store is reported instead of snapshotting nothing.
func (uc *BackupUseCase) Execute(ctx context.Context) (*BackupOutput, error) {
	uc.logger.Info("Starting profile backup...")

	profiles, err := uc.profileRepo.LoadAll(ctx)
	if err != nil {
		uc.logger.Error("Failed to read profiles for backup", err)
		return nil, err
	}

	snapshot, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return nil, apperror.NewInternal("failed to encode backup", err)
	}

	timestamp := uc.now().Format("2006-01-02_15-04-05")
	publicID := fmt.Sprintf("backup-%s.json", timestamp)

	uploaded, err := uc.uploader.UploadRaw(ctx, bytes.NewReader(snapshot), Folder, publicID)
	if err != nil {
		uc.logger.Error("Failed to upload backup to Cloudinary", err)
		return nil, apperror.NewInternal("failed to upload backup", err)
	}

	uc.logger.Info("Profile backup completed and uploaded successfully",
		zap.String("url", uploaded.URL),
		zap.String("public_id", uploaded.PublicID),
		zap.Int("count", len(profiles)),
	)
	return &BackupOutput{URL: uploaded.URL, PublicID: uploaded.PublicID, Count: len(profiles)}, nil
}
