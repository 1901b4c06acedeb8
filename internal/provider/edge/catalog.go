package edge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/tts-engine/internal/core"
)

const (
	voiceListURL = "https://speech.platform.bing.com/consumer/speech/synthesize/" +
		"readaloud/voices/list?trustedclienttoken=6A5AA1D4EAFF4E9FB37E23D68491D6F4"

	defaultCatalogTTL     = 1 * time.Hour
	catalogRequestTimeout = 15 * time.Second
)

// ErrCatalogUnavailable indicates the voice list endpoint could not be read.
var ErrCatalogUnavailable = errors.New("edge voice catalog unavailable")

// voiceListEntry mirrors the fields of the readaloud voice list response that
// the engine consumes.
type voiceListEntry struct {
	Name      string `json:"Name"`
	ShortName string `json:"ShortName"`
	Gender    string `json:"Gender"`
	Locale    string `json:"Locale"`
	VoiceType string `json:"VoiceType"`
}

// catalog caches the remote voice list with a TTL. A successful fetch also
// serves as the provider's availability probe.
type catalog struct {
	client *http.Client
	url    string
	ttl    time.Duration
	log    *logger.Logger

	mu        sync.RWMutex
	voices    []core.Voice
	fetchedAt time.Time
}

func newCatalog(log *logger.Logger, listURL string, ttl time.Duration) *catalog {
	return &catalog{
		client:    &http.Client{Timeout: catalogRequestTimeout},
		url:       listURL,
		ttl:       ttl,
		log:       log,
		mu:        sync.RWMutex{},
		voices:    nil,
		fetchedAt: time.Time{},
	}
}

// Voices returns the cached catalog, refreshing it first when the cache is
// empty or past its TTL.
func (c *catalog) Voices(ctx context.Context) ([]core.Voice, error) {
	c.mu.RLock()
	fresh := c.voices != nil && time.Since(c.fetchedAt) < c.ttl
	cached := c.voices
	c.mu.RUnlock()

	if fresh {
		return cached, nil
	}

	return c.refresh(ctx)
}

// Refresh discards the cache and fetches the catalog again.
func (c *catalog) Refresh(ctx context.Context) error {
	_, err := c.refresh(ctx)

	return err
}

func (c *catalog) refresh(ctx context.Context) ([]core.Voice, error) {
	entries, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	voices := make([]core.Voice, 0, len(entries))
	for _, entry := range entries {
		voices = append(voices, core.Voice{
			ID:       entry.ShortName,
			Name:     entry.Name,
			Language: entry.Locale,
			Gender:   entry.Gender,
			Quality:  entry.VoiceType,
			Provider: "edge",
		})
	}

	c.mu.Lock()
	c.voices = voices
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	c.log.Info("Refreshed edge voice catalog: %d voices", len(voices))

	return voices, nil
}

func (c *catalog) fetch(ctx context.Context) ([]voiceListEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build voice list request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			c.log.Warn("Failed to close voice list response body: %v", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrCatalogUnavailable, resp.StatusCode)
	}

	var entries []voiceListEntry

	err = json.NewDecoder(resp.Body).Decode(&entries)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed voice list: %w", ErrCatalogUnavailable, err)
	}

	return entries, nil
}
