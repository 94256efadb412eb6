package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tapcards/tap/adapters/event"
	httpAdapter "github.com/tapcards/tap/adapters/http"
	"github.com/tapcards/tap/adapters/media_storage"
	paymentAdapter "github.com/tapcards/tap/adapters/payment"
	"github.com/tapcards/tap/adapters/persistence"
	"github.com/tapcards/tap/internal/application/service"
	mediaUC "github.com/tapcards/tap/internal/application/usecase/media"
	paymentUC "github.com/tapcards/tap/internal/application/usecase/payment"
	profileUC "github.com/tapcards/tap/internal/application/usecase/profile"
	"github.com/tapcards/tap/internal/config"
	"github.com/tapcards/tap/pkg/auth"
	"github.com/tapcards/tap/pkg/logger"
	"github.com/tapcards/tap/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fmt.Println("Start Tap API Server...")

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: cannot load config: %v", err)
	}

	appLogger := logger.NewZapLogger(cfg.App.Env)
	defer appLogger.Sync()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := tracing.Init(cfg, appLogger, "tap-api")
	if err != nil {
		appLogger.Fatal("cannot init tracing", err)
	}

	ctx := context.Background()

	// Storage
	store, closeStore, err := persistence.OpenStore(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("cannot open storage backend", err, zap.String("driver", cfg.Storage.Driver))
	}
	defer closeStore()
	profileRepo := persistence.NewCollectionRepo(store, cfg.Storage.Key, appLogger)

	// Events
	var publisher service.EventPublisher = event.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaClient, err := event.NewKafkaProducerClient(cfg)
		if err != nil {
			appLogger.Fatal("cannot init Kafka", err)
		}
		defer kafkaClient.Close()
		publisher = kafkaClient
	} else {
		appLogger.Warn("No Kafka brokers configured, profile events are dropped")
	}

	// Services
	// The profile API runs without media or payment credentials; those routes answer 503.
	uploader, err := media_storage.NewCloudinaryAdapter(cfg, appLogger)
	if err != nil {
		appLogger.Warn("Image uploads disabled", zap.Error(err))
		uploader = media_storage.NewUnavailableUploader(err.Error())
	}
	gateway, err := paymentAdapter.NewStripeAdapter(cfg, appLogger)
	if err != nil {
		appLogger.Warn("Payments disabled", zap.Error(err))
		gateway = paymentAdapter.NewUnavailableGateway(err.Error())
	}
	stateSvc := auth.NewStateService(cfg.Auth.StateSecret, cfg.Auth.StateLifespan)

	// Use Cases
	profileUseCase := profileUC.NewProfileUseCase(profileRepo, publisher, appLogger, profileUC.Options{
		FailOpen:      cfg.Storage.FailOpen,
		SeedDefaults:  cfg.Storage.SeedDefaults,
		PublicBaseURL: cfg.App.PublicBaseURL,
	})
	uploadAvatarUseCase := mediaUC.NewUploadAvatarUseCase(profileUseCase, uploader, publisher, appLogger, cfg.Upload.Folder, cfg.Upload.MaxSizeMB)
	paymentUseCase := paymentUC.NewPaymentUseCase(gateway, appLogger, cfg.App.PublicBaseURL)
	connectUseCase := paymentUC.NewConnectUseCase(gateway, stateSvc, profileUseCase, appLogger, cfg.Stripe.OAuthEnabled)

	// HTTP Handlers
	router := httpAdapter.NewRouter(httpAdapter.Handlers{
		Profile: httpAdapter.NewProfileHandler(profileUseCase, appLogger),
		Upload:  httpAdapter.NewUploadHandler(uploadAvatarUseCase, appLogger, cfg.Upload.MaxSizeMB),
		Payment: httpAdapter.NewPaymentHandler(paymentUseCase, appLogger),
		OAuth:   httpAdapter.NewOAuthHandler(connectUseCase, appLogger),
		Health:  httpAdapter.NewHealthHandler(profileUseCase),
	}, appLogger)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           httpAdapter.WithCORS(router, cfg.CORS.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("Server running", zap.String("port", cfg.App.Port), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Cannot run server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		appLogger.Error("Failed to flush traces", err)
	}
}
