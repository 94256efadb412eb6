package media_storage

import (
	"context"
	"io"

	"github.com/tapcards/tap/internal/application/service"
	"github.com/tapcards/tap/pkg/apperror"
)

// unavailableUploader stands in when Cloudinary is not configured.
type unavailableUploader struct {
	reason string
}

func NewUnavailableUploader(reason string) service.Uploader {
	return unavailableUploader{reason: reason}
}

func (u unavailableUploader) err() error {
	return apperror.NewUnavailable("Image storage is not configured: " + u.reason)
}

func (u unavailableUploader) Upload(context.Context, io.Reader, string, string) (*service.UploadResult, error) {
	return nil, u.err()
}

func (u unavailableUploader) UploadRaw(context.Context, io.Reader, string, string) (*service.UploadResult, error) {
	return nil, u.err()
}

func (u unavailableUploader) Delete(context.Context, string) error {
	return u.err()
}

func (u unavailableUploader) TransformURL(string, string) (string, error) {
	return "", u.err()
}
