// Package queue defines the user lifecycle events published to the
// message broker and the consumer that records them in the audit log.
package queue

// Routing keys on the users exchange.
const (
    RoutingUserRegistered = "user.registered"
    RoutingUserVerified   = "user.verified"
)

// UserRegisteredEvent is published after a new account is persisted.
// VerificationSent reports whether the activation email went out, so a
// consumer can retry delivery without querying the store.
type UserRegisteredEvent struct {
    UserID           string `json:"user_id"`
    Username         string `json:"username"`
    Email            string `json:"email"`
    Role             string `json:"role"`
    VerificationSent bool   `json:"verification_sent"`
    OccurredAt       string `json:"occurred_at"`
}

// UserVerifiedEvent is published the first time an account redeems its
// verification link.
type UserVerifiedEvent struct {
    UserID     string `json:"user_id"`
    Email      string `json:"email"`
    OccurredAt string `json:"occurred_at"`
}
