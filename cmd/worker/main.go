package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/tapcards/tap/adapters/event"
	"github.com/tapcards/tap/adapters/media_storage"
	"github.com/tapcards/tap/adapters/persistence"
	backupUC "github.com/tapcards/tap/internal/application/usecase/backup"
	mediaUC "github.com/tapcards/tap/internal/application/usecase/media"
	profileUC "github.com/tapcards/tap/internal/application/usecase/profile"
	"github.com/tapcards/tap/internal/config"
	"github.com/tapcards/tap/pkg/apperror"
	"github.com/tapcards/tap/pkg/logger"
	"github.com/tapcards/tap/pkg/tracing"
)

func main() {
	fmt.Println("Starting Tap Worker...")

	// Configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: cannot load config: %v", err)
	}

	appLogger := logger.NewZapLogger(cfg.App.Env)
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(cfg, appLogger, "tap-worker")
	if err != nil {
		appLogger.Fatal("cannot init tracing", err)
	}
	defer shutdownTracing(context.Background())

	// Storage
	store, closeStore, err := persistence.OpenStore(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("cannot open storage backend", err, zap.String("driver", cfg.Storage.Driver))
	}
	defer closeStore()
	profileRepo := persistence.NewCollectionRepo(store, cfg.Storage.Key, appLogger)

	// Cloudinary Uploader
	uploader, err := media_storage.NewCloudinaryAdapter(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize uploader", err)
	}

	// Worker Use Cases
	profileUseCase := profileUC.NewProfileUseCase(profileRepo, event.NopPublisher{}, appLogger, profileUC.Options{
		SeedDefaults:  cfg.Storage.SeedDefaults,
		PublicBaseURL: cfg.App.PublicBaseURL,
	})
	processAvatarUC := mediaUC.NewProcessAvatarUseCase(profileUseCase, uploader, appLogger)
	backupUseCase := backupUC.NewBackupUseCase(profileRepo, uploader, appLogger)

	if cfg.Backup.Interval > 0 {
		go runBackups(ctx, backupUseCase, cfg.Backup.Interval, appLogger)
	}

	if len(cfg.Kafka.Brokers) == 0 {
		appLogger.Warn("No Kafka brokers configured, avatar processing disabled")
		<-ctx.Done()
		return
	}

	// Kafka Consumer
	consumer := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    event.TopicProfileEvents,
		GroupID:  cfg.Kafka.GroupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer consumer.Close()

	appLogger.Info("Worker listening", zap.String("topic", event.TopicProfileEvents), zap.String("group_id", cfg.Kafka.GroupID))
	consume(ctx, consumer, processAvatarUC, appLogger)
}

const fetchRetryDelay = 2 * time.Second

type retryPolicy struct {
	initial time.Duration
	max     time.Duration
}

var eventRetry = retryPolicy{initial: time.Second, max: 30 * time.Second}

func consume(ctx context.Context, consumer *kafka.Reader, uc *mediaUC.ProcessAvatarUseCase, log logger.Logger) {
	for {
		msg, err := consumer.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				log.Info("Worker stopped")
				return
			}
			log.Error("Failed to read message from Kafka", err)
			if !sleep(ctx, fetchRetryDelay) {
				return
			}
			continue
		}

		l := log.With(zap.String("key", string(msg.Key)), zap.Int64("offset", msg.Offset))

		payload, err := event.DecodeProfileEvent(msg)
		if err != nil {
			l.Error("Failed to decode event, skipping", err)
			commitMessage(ctx, consumer, msg, l)
			continue
		}

		l = l.With(zap.String("event_id", payload.EventID))
		process := func(ctx context.Context) error { return uc.Execute(ctx, payload) }
		if !processUntilDone(ctx, process, eventRetry, l) {
			// Shutting down: the message stays uncommitted and is redelivered.
			return
		}
		commitMessage(ctx, consumer, msg, l)
	}
}

// processUntilDone retries process in place, since committing a later offset would
// also commit a failed message. It reports whether the message may be committed:
// true on success or on a permanent (invalid input) failure, false once ctx ends.
func processUntilDone(ctx context.Context, process func(context.Context) error, policy retryPolicy, log logger.Logger) bool {
	delay := policy.initial
	for attempt := 1; ; attempt++ {
		err := process(ctx)
		if err == nil {
			return true
		}
		if errors.Is(err, apperror.ErrInvalidInput) {
			log.Warn("Dropping invalid event", zap.Error(err))
			return true
		}

		log.Error("Failed to process event, retrying", err, zap.Int("attempt", attempt), zap.Duration("backoff", delay))
		if !sleep(ctx, delay) {
			return false
		}
		delay = min(delay*2, policy.max)
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func commitMessage(ctx context.Context, consumer *kafka.Reader, msg kafka.Message, log logger.Logger) {
	if err := consumer.CommitMessages(ctx, msg); err != nil {
		log.Error("Failed to commit message", err)
	}
}

func runBackups(ctx context.Context, uc *backupUC.BackupUseCase, interval time.Duration, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("Profile backups scheduled", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			out, err := uc.Execute(ctx)
			if err != nil {
				log.Error("Profile backup failed", err)
				continue
			}
			log.Info("Profile backup stored", zap.String("url", out.URL), zap.Int("count", out.Count))
		}
	}
}
