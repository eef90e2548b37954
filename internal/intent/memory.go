package intent

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryTracker struct {
	mu      sync.RWMutex
	intents map[string]Intent
}

// NewMemoryTracker constructs an in-memory tracker for development and tests.
func NewMemoryTracker() Tracker {
	return &memoryTracker{intents: make(map[string]Intent)}
}

func (t *memoryTracker) Open(_ context.Context, in Intent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	t.intents[in.ExternalPaymentID] = in
	return nil
}

func (t *memoryTracker) Find(_ context.Context, externalPaymentID string) (Intent, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	in, ok := t.intents[externalPaymentID]
	if !ok {
		return Intent{}, ErrNotFound
	}
	return in, nil
}

func (t *memoryTracker) Close(_ context.Context, externalPaymentID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.intents, externalPaymentID)
	return nil
}

func (t *memoryTracker) ListOrphaned(_ context.Context, olderThan time.Duration) ([]Intent, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Intent
	for _, in := range t.intents {
		if in.CreatedAt.Before(cutoff) {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
