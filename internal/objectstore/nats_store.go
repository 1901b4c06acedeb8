// Package objectstore provides the NATS JetStream backed blob store the
// worker reads source text from and writes finished audio to.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Store implements core.ObjectStore on a single JetStream object store bucket.
type Store struct {
	bucket string
	store  nats.ObjectStore
	log    *logger.Logger
}

// New creates the bucket if it does not exist yet, or binds to it when it
// does, and returns a store over it.
func New(jetstreamContext nats.JetStreamContext, bucketName string, log *logger.Logger) (*Store, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Text and audio artifacts for the %s bucket.", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to object store bucket '%s': %w", bucketName, err)
		}
	}

	return &Store{bucket: bucketName, store: store, log: log}, nil
}

// Download retrieves an object by key.
func (s *Store) Download(_ context.Context, key string) ([]byte, error) {
	object, err := s.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, s.bucket, err)
	}

	data, readErr := io.ReadAll(object)
	closeErr := object.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	s.log.Info("Downloaded object '%s' (%d bytes) from bucket '%s'", key, len(data), s.bucket)

	return data, nil
}

// Upload stores data under key, replacing any previous object with that key.
func (s *Store) Upload(_ context.Context, key string, data []byte) error {
	_, err := s.store.Put(&nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers:     nil,
		Metadata:    nil,
		Opts:        nil,
	}, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, s.bucket, err)
	}

	s.log.Info("Uploaded object '%s' (%d bytes) to bucket '%s'", key, len(data), s.bucket)

	return nil
}
