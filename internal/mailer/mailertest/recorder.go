// Package mailertest provides a recording Mailer for tests.
package mailertest

import (
	"context"
	"sync"

	"github.com/iliyamo/storefront-auth/internal/mailer"
)

// Recorder stores every message it is asked to send and answers with
// Result.
type Recorder struct {
	mu     sync.Mutex
	Result bool
	sent   []mailer.Message
}

// New returns a Recorder that reports successful delivery.
func New() *Recorder { return &Recorder{Result: true} }

func (r *Recorder) Send(_ context.Context, msg mailer.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.Result
}

// Fail makes subsequent sends report failure.
func (r *Recorder) Fail() {
	r.mu.Lock()
	r.Result = false
	r.mu.Unlock()
}

// Sent returns a copy of the recorded messages.
func (r *Recorder) Sent() []mailer.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mailer.Message(nil), r.sent...)
}

// Last returns the most recent message, or false when none was sent.
func (r *Recorder) Last() (mailer.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return mailer.Message{}, false
	}
	return r.sent[len(r.sent)-1], true
}
