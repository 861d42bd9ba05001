// Package camera provides classroom frames for the attendance loop.
package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Frames yields one classroom frame per call.
type Frames interface {
	Next(ctx context.Context) ([]byte, error)
}

// SnapshotClient pulls JPEG snapshots from an HTTP camera endpoint. When a
// fetch fails or returns an empty body it falls back to the last good frame,
// so a camera hiccup degrades to a stale observation instead of a lost cycle.
type SnapshotClient struct {
	url        string
	httpClient *http.Client
	log        *logrus.Entry

	mu        sync.Mutex
	lastFrame []byte
}

// NewSnapshotClient creates a snapshot camera client.
func NewSnapshotClient(url string, log *logrus.Entry) *SnapshotClient {
	return &SnapshotClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// Next fetches a frame, falling back to the previous frame on failure. It
// errors only when no frame has ever been captured.
func (c *SnapshotClient) Next(ctx context.Context) ([]byte, error) {
	frame, err := c.fetch(ctx)
	if err == nil && len(frame) > 0 {
		c.mu.Lock()
		c.lastFrame = frame
		c.mu.Unlock()
		return frame, nil
	}

	c.mu.Lock()
	last := c.lastFrame
	c.mu.Unlock()

	if len(last) == 0 {
		if err != nil {
			return nil, fmt.Errorf("no frame available: %w", err)
		}
		return nil, errors.New("camera returned an empty frame and no previous frame exists")
	}

	if err != nil {
		c.log.WithError(err).Warn("camera fetch failed, reusing previous frame")
	} else {
		c.log.Warn("camera returned an empty frame, reusing previous frame")
	}
	return last, nil
}

func (c *SnapshotClient) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create camera request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("camera request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	frame, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read camera frame: %w", err)
	}
	return frame, nil
}
