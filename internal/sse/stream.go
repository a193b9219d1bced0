// Package sse reads the backend's Server-Sent Events notification streams.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/polisee/polisee/internal/model"
	"github.com/polisee/polisee/internal/service"
)

// Subscription is one live event-stream connection. The owner must call Close
// before opening another subscription for the same policy.
type Subscription struct {
	events chan model.ProcessingEvent
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

// Subscribe opens an authenticated event-stream connection and decodes
// processing events until the stream ends or the subscription is closed.
func Subscribe(ctx context.Context, client *http.Client, streamURL string) (*Subscription, error) {
	if client == nil {
		client = http.DefaultClient
	}

	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, streamURL, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open notification stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("notification stream rejected: status %d", resp.StatusCode)
	}

	sub := &Subscription{
		events: make(chan model.ProcessingEvent, 4),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go sub.read(streamCtx, resp.Body)

	return sub, nil
}

// Events yields decoded processing events. The channel is closed when the
// stream terminates for any reason; Err distinguishes transport failure from
// a clean close.
func (s *Subscription) Events() <-chan model.ProcessingEvent {
	return s.events
}

// Err reports the transport error that ended the stream, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close cancels the underlying stream reader. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}

// read is the stream loop: newline-delimited frames, "data: <json>" payloads,
// comment lines ignored.
func (s *Subscription) read(ctx context.Context, body io.ReadCloser) {
	defer close(s.events)
	defer close(s.done)
	defer func() { _ = body.Close() }()

	logger := slog.Default().With("component", "sse")

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case line == "":
			// frame boundary
		case strings.HasPrefix(line, ":"):
			// heartbeat comment
		case strings.HasPrefix(line, "data:"):
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			event, ok := decodeFrame(payload)
			if !ok {
				// A single bad frame never kills the stream
				logger.Debug("Skipping unparseable frame", "payload", payload)
				continue
			}
			select {
			case s.events <- event:
			case <-ctx.Done():
				return
			}
		default:
			logger.Debug("Ignoring non-data line", "line", line)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		logger.Warn("Notification stream ended with error", "error", err)
	}
}

// decodeFrame parses one data payload into a ProcessingEvent.
func decodeFrame(payload string) (model.ProcessingEvent, bool) {
	var frame struct {
		Type model.ProcessingEventType `json:"type"`
		Data struct {
			Error string `json:"error"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return model.ProcessingEvent{}, false
	}

	switch frame.Type {
	case model.EventProcessingStarted, model.EventProcessingCompleted, model.EventProcessingFailed:
		return model.ProcessingEvent{Type: frame.Type, Error: frame.Data.Error}, true
	default:
		return model.ProcessingEvent{}, false
	}
}

// Ensure Subscription implements the service contract.
var _ service.Subscription = (*Subscription)(nil)
