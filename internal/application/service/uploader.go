package service

import (
	"context"
	"io"
)

type UploadResult struct {
	URL      string
	PublicID string
}

type Uploader interface {
	Upload(ctx context.Context, file io.Reader, folder string, publicID string) (*UploadResult, error)
	UploadRaw(ctx context.Context, file io.Reader, folder string, publicID string) (*UploadResult, error)
	Delete(ctx context.Context, publicID string) error
	// TransformURL builds a delivery URL for an uploaded image with the given transformation.
	TransformURL(publicID string, transformation string) (string, error)
}
