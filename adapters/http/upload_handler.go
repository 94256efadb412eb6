package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	mediaUC "github.com/tapcards/tap/internal/application/usecase/media"
	"github.com/tapcards/tap/internal/domain/media"
	"github.com/tapcards/tap/pkg/apperror"
	"github.com/tapcards/tap/pkg/logger"
)

// multipartOverhead leaves room for the form fields and part headers around the image.
const multipartOverhead = 1 * media.MB

type UploadHandler struct {
	uploadAvatarUC *mediaUC.UploadAvatarUseCase
	logger         logger.Logger
	maxSizeMB      int64
}

func NewUploadHandler(uploadUC *mediaUC.UploadAvatarUseCase, log logger.Logger, maxSizeMB int64) *UploadHandler {
	return &UploadHandler{
		uploadAvatarUC: uploadUC,
		logger:         log,
		maxSizeMB:      maxSizeMB,
	}
}

// UploadImage takes multipart fields "image" and "username".
func (h *UploadHandler) UploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSizeMB*media.MB+multipartOverhead)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg := fmt.Sprintf("File size too large. Maximum size is %dMB", h.maxSizeMB)
			c.Error(apperror.NewInvalidInput(msg, err))
			return
		}
		c.Error(apperror.NewInvalidInput("No image file provided", err))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.Error(apperror.NewInternal("failed to open file", err))
		return
	}
	defer file.Close()

	avatar, err := h.uploadAvatarUC.Execute(c.Request.Context(), mediaUC.UploadAvatarInput{
		Username:    c.PostForm("username"),
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		File:        file,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, UploadResponse{
		Success: true,
		Message: "Image uploaded successfully",
		Data:    avatar,
	})
}
