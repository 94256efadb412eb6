package media

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const MB = 1024 * 1024

var (
	ErrUnsupportedType = errors.New("invalid file type. Only JPEG, PNG, WebP, and GIF images are allowed")
	ErrFileTooLarge    = errors.New("file size too large")
)

var allowedTypes = map[string]string{
	"image/jpeg": "jpeg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// Avatar describes an uploaded profile image.
type Avatar struct {
	Filename       string    `json:"filename"`
	URL            string    `json:"url"`
	PublicID       string    `json:"-"`
	Size           int64     `json:"size"`
	Type           string    `json:"type"`
	Username       string    `json:"username"`
	UploadedAt     time.Time `json:"uploadedAt"`
	ProfileUpdated bool      `json:"profileUpdated"`
}

// Extension maps an allowed content type to the file extension used for the asset name.
func Extension(contentType string) (string, bool) {
	ext, ok := allowedTypes[strings.ToLower(strings.TrimSpace(contentType))]
	return ext, ok
}

func ValidateImage(contentType string, size, maxBytes int64) error {
	if _, ok := Extension(contentType); !ok {
		return ErrUnsupportedType
	}
	if size > maxBytes {
		return fmt.Errorf("%w. Maximum size is %dMB", ErrFileTooLarge, maxBytes/MB)
	}
	return nil
}
