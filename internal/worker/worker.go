// Package worker provides the NATS worker that turns text-processed events
// into audio-chunk-created events by running the conversion engine.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/tts-engine/internal/core"
	"github.com/book-expert/tts-engine/internal/resource"
)

var (
	// ErrTextKeyEmpty indicates an event without a source text key.
	ErrTextKeyEmpty = errors.New("event text key cannot be empty")
	// ErrConversionFailed indicates the engine reported a failed conversion.
	ErrConversionFailed = errors.New("conversion failed")
	// ErrSubjectEmpty indicates a worker configured without a subject.
	ErrSubjectEmpty = errors.New("subject cannot be empty")
)

// ConversionEngine is the coordinator surface the worker drives.
type ConversionEngine interface {
	Convert(ctx context.Context, req *core.ConversionRequest) *core.ConversionResult
}

// Worker subscribes to text-processed events, converts the referenced text
// and replies with an audio-chunk-created event carrying the uploaded key.
type Worker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	engine         ConversionEngine
	resources      *resource.Manager
	outputExt      string
	jobTimeout     time.Duration
	log            *logger.Logger
}

// New creates a worker. outputExt decides the artifact container and the
// uploaded key's extension; jobTimeout bounds one event end to end, so it
// must exceed the engine's own conversion timeout.
func New(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	eng ConversionEngine,
	resources *resource.Manager,
	outputExt string,
	jobTimeout time.Duration,
	log *logger.Logger,
) (*Worker, error) {
	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	if outputExt == "" {
		outputExt = ".mp3"
	}

	return &Worker{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		engine:         eng,
		resources:      resources,
		outputExt:      outputExt,
		jobTimeout:     jobTimeout,
		log:            log,
	}, nil
}

// Run subscribes and blocks until ctx is cancelled, then drains the
// subscription.
func (w *Worker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.System("Worker listening on subject '%s'", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *Worker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), w.jobTimeout)
	defer cancel()

	event, err := parseEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse text-processed event: %v", err)

		return
	}

	audioKey, err := w.processJob(ctx, event)
	if err != nil {
		w.log.Error("Failed to process job for workflow %s: %v", event.Header.WorkflowID, err)

		return
	}

	reply := &events.AudioChunkCreatedEvent{
		Header:     event.Header,
		AudioKey:   audioKey,
		PageNumber: event.PageNumber,
		TotalPages: event.TotalPages,
	}

	err = w.publishReply(msg, reply)
	if err != nil {
		w.log.Error("Failed to publish reply for workflow %s: %v", event.Header.WorkflowID, err)
	}
}

// processJob downloads the source text, converts it in a scoped temp
// directory and uploads the finished audio under a fresh key.
func (w *Worker) processJob(ctx context.Context, event *events.TextProcessedEvent) (string, error) {
	textData, err := w.store.Download(ctx, event.TextKey)
	if err != nil {
		return "", fmt.Errorf("failed to download text for key '%s': %w", event.TextKey, err)
	}

	var audioKey string

	err = w.resources.WithTempDir("tts-job", func(dir string) error {
		outputPath := filepath.Join(dir, "audio"+w.outputExt)

		result := w.engine.Convert(ctx, &core.ConversionRequest{
			Text:       string(textData),
			OutputPath: outputPath,
			Voice:      event.Voice,
			Provider:   "",
			Rate:       0,
			Pitch:      0,
			Volume:     0,
		})
		if !result.Success {
			return fmt.Errorf("%w: %s", ErrConversionFailed, result.ErrorMessage)
		}

		audioData, readErr := os.ReadFile(outputPath)
		if readErr != nil {
			return fmt.Errorf("failed to read conversion output: %w", readErr)
		}

		key := uuid.NewString() + w.outputExt

		uploadErr := w.store.Upload(ctx, key, audioData)
		if uploadErr != nil {
			return fmt.Errorf("failed to upload audio for key '%s': %w", key, uploadErr)
		}

		audioKey = key

		return nil
	})
	if err != nil {
		return "", err
	}

	w.log.Info("Converted text '%s' to audio '%s' (page %d/%d)",
		event.TextKey, audioKey, event.PageNumber, event.TotalPages)

	return audioKey, nil
}

func (w *Worker) publishReply(msg *nats.Msg, reply *events.AudioChunkCreatedEvent) error {
	replyData, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to respond with reply event: %w", err)
	}

	return nil
}

func parseEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.TextKey == "" {
		return nil, ErrTextKeyEmpty
	}

	return &event, nil
}
