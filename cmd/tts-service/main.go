// main package for the tts-service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/tts-engine/internal/audio"
	"github.com/book-expert/tts-engine/internal/config"
	"github.com/book-expert/tts-engine/internal/engine"
	"github.com/book-expert/tts-engine/internal/manager"
	"github.com/book-expert/tts-engine/internal/objectstore"
	edgeprovider "github.com/book-expert/tts-engine/internal/provider/edge"
	espeakprovider "github.com/book-expert/tts-engine/internal/provider/espeak"
	"github.com/book-expert/tts-engine/internal/resource"
	"github.com/book-expert/tts-engine/internal/textproc"
	"github.com/book-expert/tts-engine/internal/voice"
	"github.com/book-expert/tts-engine/internal/worker"
)

// jobTimeoutMargin is added on top of the engine's conversion timeout so a
// job deadline never fires before the engine's own deadline.
const jobTimeoutMargin = 30 * time.Second

func setupLogger(logPath, name string) (*logger.Logger, error) {
	log, err := logger.New(logPath, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func buildEngine(ctx context.Context, cfg *config.Config, log *logger.Logger) (*engine.Engine, *resource.Manager) {
	mgr := manager.New(
		log,
		manager.NewFallbackStrategy(),
		manager.NewHealthChecker(
			cfg.Engine.HealthThreshold,
			time.Duration(cfg.Engine.HealthCooldownSeconds)*time.Second,
		),
		manager.NewBreakerRegistry(
			log,
			cfg.Engine.BreakerThreshold,
			time.Duration(cfg.Engine.BreakerCooldownSeconds)*time.Second,
		),
	)

	mgr.Register(edgeprovider.New(ctx, log))
	mgr.Register(espeakprovider.New(log))

	resources := resource.NewManager(log)

	eng := engine.New(
		cfg.Engine,
		textproc.NewPipeline(log),
		voice.NewResolver(mgr, cfg.Engine.Voice, log),
		mgr,
		audio.NewMerger(log),
		resources,
		log,
	)

	return eng, resources
}

func outputExtension(provider string) string {
	if provider == "espeak" {
		return ".wav"
	}

	return ".mp3"
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir(), "tts-service-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := setupLogger(cfg.Paths.BaseLogsDir, "tts-service.log")
	if err != nil {
		bootstrapLog.Error("Failed to create service logger: %v", err)

		return err
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at '%s': %w", cfg.NATS.URL, err)
	}

	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket, log)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	eng, resources := buildEngine(ctx, cfg, log)

	defer resources.CleanupAll()
	defer eng.Stop()

	jobTimeout := time.Duration(cfg.Engine.TimeoutSeconds)*time.Second + jobTimeoutMargin

	natsWorker, err := worker.New(
		natsConnection,
		cfg.NATS.TextProcessedSubject,
		store,
		eng,
		resources,
		outputExtension(cfg.Engine.Provider),
		jobTimeout,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	log.System("TTS engine initialized. Listening for jobs on subject: %s", cfg.NATS.TextProcessedSubject)

	err = natsWorker.Run(ctx)
	if err != nil {
		return fmt.Errorf("worker stopped with error: %w", err)
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
