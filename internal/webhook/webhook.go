// Package webhook posts checkpoint obligations to HTTP endpoints.
// A Webhook implements sink.Sink; delivery is synchronous so failures are
// handed back to the caller for retry.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ppiankov/budgetwatch/internal/model"
)

const (
	requestTimeout = 5 * time.Second
	maxRetries     = 3
	timeFormat     = "2006-01-02T15:04:05.000Z"
)

// Webhook delivers obligations to one endpoint.
type Webhook struct {
	cfg     Config
	client  *http.Client
	backoff time.Duration

	mu   sync.Mutex
	sent map[string]bool
}

// New creates a webhook sink for cfg.
func New(cfg Config) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook: url is required")
	}
	switch cfg.Format {
	case "", "generic", "slack", "pagerduty":
	default:
		return nil, fmt.Errorf("webhook: unknown format %q", cfg.Format)
	}
	return &Webhook{
		cfg:     cfg,
		client:  &http.Client{Timeout: requestTimeout},
		backoff: time.Second,
		sent:    make(map[string]bool),
	}, nil
}

// Matches reports whether ob is selected by the configured events.
func (w *Webhook) Matches(ob model.Obligation) bool {
	if len(w.cfg.Events) == 0 {
		return true
	}
	for _, e := range w.cfg.Events {
		if e == ob.Tier || e == string(ob.Document.TierKind) {
			return true
		}
		if e == "emergency" && ob.IsEmergency {
			return true
		}
	}
	return false
}

// Deliver posts ob with retry on 5xx. Unmatched obligations and ids already
// posted by this process succeed without a request; the obligation id is
// sent as Idempotency-Key for receivers to dedupe on.
func (w *Webhook) Deliver(ctx context.Context, ob model.Obligation) error {
	if !w.Matches(ob) {
		return nil
	}
	w.mu.Lock()
	done := w.sent[ob.ID]
	w.mu.Unlock()
	if done {
		return nil
	}

	if err := w.send(ctx, ob.ID, NewEvent(ob)); err != nil {
		return err
	}

	w.mu.Lock()
	w.sent[ob.ID] = true
	w.mu.Unlock()
	return nil
}

// Close implements sink.Sink.
func (w *Webhook) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

// NewEvent flattens an obligation into the generic payload.
func NewEvent(ob model.Obligation) Event {
	ts := ob.EmittedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return Event{
		Timestamp:      ts.UTC().Format(timeFormat),
		ObligationID:   ob.ID,
		SessionID:      ob.SessionID,
		ProfileID:      ob.Document.ProfileID,
		Tier:           ob.Tier,
		UsageAtTrigger: ob.UsageAtTrigger,
		MaxBudget:      ob.Document.MaxBudget,
		Zone:           ob.ZoneAtTrigger.String(),
		IsEmergency:    ob.IsEmergency,
		Reason:         ob.Reason,
		Completed:      ob.Document.Completed,
		InProgress:     ob.Document.InProgress,
		NextSteps:      ob.Document.NextSteps,
	}
}

func (w *Webhook) send(ctx context.Context, key string, event Event) error {
	body, err := FormatPayload(w.cfg.Format, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * w.backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", key)
		for k, v := range w.cfg.Headers {
			req.Header.Set(k, v)
		}

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("webhook rejected: HTTP %d", resp.StatusCode)
		}
		// 5xx: retry
		lastErr = fmt.Errorf("webhook server error: HTTP %d", resp.StatusCode)
	}
	return fmt.Errorf("webhook failed after %d attempts: %w", maxRetries, lastErr)
}
