package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/tapcards/tap/pkg/logger"
)

type Handlers struct {
	Profile *ProfileHandler
	Upload  *UploadHandler
	Payment *PaymentHandler
	OAuth   *OAuthHandler
	Health  *HealthHandler
}

func NewRouter(h Handlers, log logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(log), ErrorMiddleware(log))

	api := router.Group("/api")
	{
		api.GET("/health", h.Health.Health)
		api.GET("/ready", h.Health.Ready)

		profiles := api.Group("/profiles")
		{
			profiles.GET("", h.Profile.GetProfile)
			profiles.POST("", h.Profile.UpsertProfile)
			profiles.PUT("", h.Profile.UpdateProfile)
			profiles.GET("/check-username", h.Profile.CheckUsername)
		}
		api.GET("/public/profiles/:username", h.Profile.GetPublicProfile)

		api.POST("/upload-image", h.Upload.UploadImage)

		api.POST("/create-payment-intent", h.Payment.CreatePaymentIntent)
		api.POST("/create-send-money-intent", h.Payment.CreateSendMoneyIntent)
		api.POST("/confirm-apple-pay", h.Payment.ConfirmApplePay)
		api.POST("/create-payment-method", h.Payment.CreatePaymentMethod)
		api.POST("/create-invoice", h.Payment.CreateInvoice)
		api.POST("/terminal-connection-token", h.Payment.CreateTerminalConnectionToken)
		api.POST("/create-location", h.Payment.CreateLocation)

		api.GET("/stripe-oauth/authorize", h.OAuth.Authorize)
		api.GET("/stripe-oauth-callback", h.OAuth.Callback)
	}

	return router
}

// WithCORS answers preflight requests before they reach gin.
func WithCORS(handler http.Handler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(handler)
}
