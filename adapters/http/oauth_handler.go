package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	paymentUC "github.com/tapcards/tap/internal/application/usecase/payment"
	"github.com/tapcards/tap/pkg/logger"
)

type OAuthHandler struct {
	connectUseCase *paymentUC.ConnectUseCase
	logger         logger.Logger
}

func NewOAuthHandler(uc *paymentUC.ConnectUseCase, log logger.Logger) *OAuthHandler {
	return &OAuthHandler{
		connectUseCase: uc,
		logger:         log,
	}
}

// Authorize redirects to the provider unless ?redirect=false asks for the URL as JSON.
func (h *OAuthHandler) Authorize(c *gin.Context) {
	url, err := h.connectUseCase.AuthorizeURL(c.Request.Context(), c.Query("username"))
	if err != nil {
		c.Error(err)
		return
	}
	if c.Query("redirect") == "false" {
		c.JSON(http.StatusOK, gin.H{"url": url})
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (h *OAuthHandler) Callback(c *gin.Context) {
	output, err := h.connectUseCase.Callback(c.Request.Context(), paymentUC.CallbackInput{
		Code:          c.Query("code"),
		State:         c.Query("state"),
		ProviderError: c.Query("error"),
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"username":          output.Username,
		"stripe_account_id": output.AccountID,
	})
}
