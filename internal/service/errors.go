package service

import "errors"

// Errors returned by the auth services.  Handlers map them to HTTP
// statuses with errors.Is; anything else is an internal failure.
var (
	ErrConflict              = errors.New("username or email already in use")
	ErrUnauthenticated       = errors.New("authentication required")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrNotFound              = errors.New("not found")
	ErrValidation            = errors.New("validation failed")
	ErrUpstream              = errors.New("upstream service failed")

	// ErrBadCredentials is a validation-class failure: unknown account or
	// wrong password, deliberately indistinguishable.
	ErrBadCredentials = errors.New("incorrect credentials")
	// ErrUnverified is a forbidden-class failure: the password matched but
	// the email address has not been confirmed.
	ErrUnverified = errors.New("email address not verified")
	// ErrEmailDelivery means the mail transport did not accept a message.
	ErrEmailDelivery = errors.New("email delivery failed")
)
