// Package sink defines where checkpoint obligations go once emitted.
// Implementations must be idempotent on Obligation.ID: delivering the same
// obligation twice records it once.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ppiankov/budgetwatch/internal/model"
)

// Sink durably records checkpoint obligations.
type Sink interface {
	Deliver(ctx context.Context, ob model.Obligation) error
	Close() error
}

// Deliver hands each obligation to s in order. Obligations that could not be
// delivered are returned to the caller for retry, together with the joined
// delivery errors. A nil sink delivers nothing and reports nothing undelivered.
func Deliver(ctx context.Context, s Sink, obs []model.Obligation) ([]model.Obligation, error) {
	if s == nil || len(obs) == 0 {
		return nil, nil
	}
	var undelivered []model.Obligation
	var errs []error
	for _, ob := range obs {
		if err := ctx.Err(); err != nil {
			undelivered = append(undelivered, ob)
			errs = append(errs, fmt.Errorf("%s: %w", ob.ID, err))
			continue
		}
		if err := s.Deliver(ctx, ob); err != nil {
			undelivered = append(undelivered, ob)
			errs = append(errs, fmt.Errorf("%s: %w", ob.ID, err))
		}
	}
	return undelivered, errors.Join(errs...)
}

// Multi fans an obligation out to every sink. Delivery succeeds only when
// every sink accepted it; sinks are idempotent, so a retry is safe even
// when some of them already recorded it.
type Multi []Sink

// Deliver implements Sink.
func (m Multi) Deliver(ctx context.Context, ob model.Obligation) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, ob); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps obligations in process. Used by tests and the SDK default.
type Memory struct {
	mu   sync.Mutex
	seen map[string]bool
	obs  []model.Obligation

	// Fail, when set, is consulted before each delivery.
	Fail func(model.Obligation) error
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{seen: make(map[string]bool)}
}

// Deliver implements Sink.
func (m *Memory) Deliver(_ context.Context, ob model.Obligation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		if err := m.Fail(ob); err != nil {
			return err
		}
	}
	if m.seen[ob.ID] {
		return nil
	}
	m.seen[ob.ID] = true
	m.obs = append(m.obs, ob)
	return nil
}

// Obligations returns a copy of everything delivered so far, in order.
func (m *Memory) Obligations() []model.Obligation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Obligation(nil), m.obs...)
}

// Close implements Sink.
func (m *Memory) Close() error { return nil }
