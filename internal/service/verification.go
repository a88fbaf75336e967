package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/storefront-auth/internal/mailer"
	"github.com/iliyamo/storefront-auth/internal/model"
	"github.com/iliyamo/storefront-auth/internal/queue"
	"github.com/iliyamo/storefront-auth/internal/repository"
	"github.com/iliyamo/storefront-auth/internal/utils"
)

// VerifyPath is where activation links point.
const VerifyPath = "/auth/verify"

// Verifier sends activation links and redeems them.  Verification
// tokens carry only the user id, so a session token is never mailed.
type Verifier struct {
	users  repository.UserStore
	tokens *utils.TokenService
	mail   mailer.Mailer
	events EventPublisher
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewVerifier(users repository.UserStore, tokens *utils.TokenService, mail mailer.Mailer, events EventPublisher, ttl time.Duration, log *zap.SugaredLogger) *Verifier {
	return &Verifier{users: users, tokens: tokens, mail: mail, events: events, ttl: ttl, log: log}
}

// Link builds the activation URL for token under origin.
func Link(origin, token string) string {
	return strings.TrimRight(origin, "/") + VerifyPath + "?token=" + url.QueryEscape(token)
}

// Start mails an activation link for u to address.  origin is the scheme
// and host the link should point at.
func (v *Verifier) Start(ctx context.Context, u *model.User, address, origin string) error {
	tok, err := v.tokens.Issue(u.ID, "", v.ttl)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}
	link := Link(origin, tok.Token)
	msg := mailer.Message{
		To:      address,
		Subject: "Verify your email address",
		HTML: fmt.Sprintf(
			`<h1>Welcome, %s</h1><p>Confirm your email address by following the link below.</p><p><a href="%s">Activate account</a></p><p>The link expires in %s.</p>`,
			html.EscapeString(u.Username), html.EscapeString(link), v.ttl),
	}
	if !v.mail.Send(ctx, msg) {
		return ErrEmailDelivery
	}
	return nil
}

// Redeem marks the token's subject as verified.  Redeeming an already
// verified account succeeds without writing.
func (v *Verifier) Redeem(ctx context.Context, token string) (*model.User, error) {
	claims, err := v.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrExpiredToken, err)
	}
	if claims.Role != "" {
		return nil, fmt.Errorf("%w: session token", ErrInvalidOrExpiredToken)
	}
	u, err := v.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u.Verified {
		return u, nil
	}
	verified := true
	u, err = v.users.UpdateByID(ctx, u.ID, model.UserPatch{Verified: &verified})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	if err := v.events.UserVerified(ctx, queue.UserVerifiedEvent{
		UserID:     u.ID,
		Email:      u.Email,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		v.log.Warnw("publish user.verified failed", "user_id", u.ID, "err", err)
	}
	return u, nil
}
