// Package queuetest provides an in-memory event publisher for tests.
package queuetest

import (
	"context"
	"sync"

	"github.com/iliyamo/storefront-auth/internal/queue"
)

// Recorder keeps every published event in order.
type Recorder struct {
	mu         sync.Mutex
	Registered []queue.UserRegisteredEvent
	Verified   []queue.UserVerifiedEvent
}

func (r *Recorder) UserRegistered(_ context.Context, ev queue.UserRegisteredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Registered = append(r.Registered, ev)
	return nil
}

func (r *Recorder) UserVerified(_ context.Context, ev queue.UserVerifiedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Verified = append(r.Verified, ev)
	return nil
}

// Counts returns the number of registered and verified events seen.
func (r *Recorder) Counts() (registered, verified int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Registered), len(r.Verified)
}
