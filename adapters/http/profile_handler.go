package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	profileUC "github.com/tapcards/tap/internal/application/usecase/profile"
	"github.com/tapcards/tap/pkg/apperror"
	"github.com/tapcards/tap/pkg/logger"
)

type ProfileHandler struct {
	profileUseCase *profileUC.ProfileUseCase
	logger         logger.Logger
}

func NewProfileHandler(uc *profileUC.ProfileUseCase, log logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		profileUseCase: uc,
		logger:         log,
	}
}

// GetProfile accepts ?username= or ?email=&authProvider=.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	input := profileUC.GetProfileInput{
		Username:     c.Query("username"),
		Email:        c.Query("email"),
		AuthProvider: c.Query("authProvider"),
	}
	p, err := h.profileUseCase.ExecuteGetProfile(c.Request.Context(), input)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) GetPublicProfile(c *gin.Context) {
	p, err := h.profileUseCase.ExecuteGetPublicProfile(c.Request.Context(), c.Param("username"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) UpsertProfile(c *gin.Context) {
	var req ProfileWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewInvalidInput("invalid JSON body for profile", err))
		return
	}

	output, err := h.profileUseCase.ExecuteUpsertProfile(c.Request.Context(), profileUC.UpsertProfileInput{
		Username: req.Username,
		Patch:    req.ToPatch(),
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, UpsertProfileResponse{
		Success: true,
		Profile: output.Profile,
		URL:     output.URL,
		Action:  output.Action,
	})
}

func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var req ProfileWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewInvalidInput("invalid JSON body for profile update", err))
		return
	}

	p, err := h.profileUseCase.ExecuteUpdateProfile(c.Request.Context(), profileUC.UpdateProfileInput{
		Username: req.Username,
		Patch:    req.ToPatch(),
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, UpdateProfileResponse{Success: true, Profile: p})
}

func (h *ProfileHandler) CheckUsername(c *gin.Context) {
	output, err := h.profileUseCase.ExecuteCheckAvailability(c.Request.Context(), c.Query("username"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, AvailabilityResponse{Available: output.Available, Username: output.Username})
}
