// Package service holds the authentication and authorization logic:
// registration with the role-escalation policy, login gated on email
// verification, profile and role changes under the self-or-admin rule,
// and the product proxy's role checks.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/storefront-auth/internal/model"
	"github.com/iliyamo/storefront-auth/internal/queue"
	"github.com/iliyamo/storefront-auth/internal/repository"
	"github.com/iliyamo/storefront-auth/internal/utils"
)

// EventPublisher receives user lifecycle events.  Publishing is best
// effort; failures are logged and never fail the request.
type EventPublisher interface {
	UserRegistered(ctx context.Context, ev queue.UserRegisteredEvent) error
	UserVerified(ctx context.Context, ev queue.UserVerifiedEvent) error
}

// RegisterInput is a validated registration request.
type RegisterInput struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Address   string
	Phone     string
	Password  string
	Role      string // requested role, may be empty

	Bearer string // raw Authorization token, may be empty
	Origin string // scheme://host used in the activation link
}

// RegisterResult reports the new account and whether its activation
// email was accepted by the transport.
type RegisterResult struct {
	User             *model.User
	VerificationSent bool
}

// LoginResult is a session token for an authenticated user.
type LoginResult struct {
	User  *model.User
	Token utils.IssuedToken
}

// AuthService implements the account operations.
type AuthService struct {
	users      repository.UserStore
	codec      utils.PasswordCodec
	tokens     *utils.TokenService
	policy     *RolePolicy
	verifier   *Verifier
	events     EventPublisher
	sessionTTL time.Duration
	log        *zap.SugaredLogger
}

func NewAuthService(users repository.UserStore, codec utils.PasswordCodec, tokens *utils.TokenService, verifier *Verifier, events EventPublisher, sessionTTL time.Duration, log *zap.SugaredLogger) *AuthService {
	return &AuthService{
		users:      users,
		codec:      codec,
		tokens:     tokens,
		policy:     NewRolePolicy(users, tokens),
		verifier:   verifier,
		events:     events,
		sessionTTL: sessionTTL,
		log:        log,
	}
}

// Register creates an unverified account and mails its activation link.
// A failed email does not undo the account; it is reported in the result.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	email := model.NormalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)

	switch _, err := s.users.FindByHandleOrEmail(ctx, username, email); {
	case err == nil:
		return RegisterResult{}, ErrConflict
	case !errors.Is(err, repository.ErrNotFound):
		return RegisterResult{}, fmt.Errorf("uniqueness check: %w", err)
	}

	var requested model.Role
	if strings.TrimSpace(in.Role) != "" {
		r, err := model.ParseRole(in.Role)
		if err != nil {
			return RegisterResult{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		requested = r
	}
	role, err := s.policy.DecideRole(ctx, requested, in.Bearer)
	if err != nil {
		return RegisterResult{}, err
	}

	hash, err := s.codec.Hash(in.Password)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		Username:     username,
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Address:      strings.TrimSpace(in.Address),
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Insert(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return RegisterResult{}, ErrConflict
		}
		return RegisterResult{}, fmt.Errorf("insert user: %w", err)
	}

	res := RegisterResult{User: u}
	if err := s.verifier.Start(ctx, u, u.Email, in.Origin); err != nil {
		s.log.Warnw("verification email not sent", "user_id", u.ID, "err", err)
	} else {
		res.VerificationSent = true
	}

	if err := s.events.UserRegistered(ctx, queue.UserRegisteredEvent{
		UserID:           u.ID,
		Username:         u.Username,
		Email:            u.Email,
		Role:             u.Role.String(),
		VerificationSent: res.VerificationSent,
		OccurredAt:       u.CreatedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		s.log.Warnw("publish user.registered failed", "user_id", u.ID, "err", err)
	}
	s.log.Infow("user registered", "user_id", u.ID, "role", u.Role)
	return res, nil
}

// Login checks credentials and issues a session token.  The account is
// looked up by email when one is given and by username otherwise; the two
// are never matched against each other.
func (s *AuthService) Login(ctx context.Context, username, email, password string) (LoginResult, error) {
	username, email = strings.TrimSpace(username), model.NormalizeEmail(email)
	if email != "" {
		username = ""
	}
	if username == "" && email == "" {
		return LoginResult{}, ErrBadCredentials
	}
	u, err := s.users.FindByHandleOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, ErrBadCredentials
		}
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}
	if !s.codec.Verify(password, u.PasswordHash) {
		return LoginResult{}, ErrBadCredentials
	}
	if !u.Verified {
		return LoginResult{}, ErrUnverified
	}
	tok, err := s.tokens.Issue(u.ID, u.Role, s.sessionTTL)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue session token: %w", err)
	}
	return LoginResult{User: u, Token: tok}, nil
}

// Verify redeems an activation token.
func (s *AuthService) Verify(ctx context.Context, token string) (*model.User, error) {
	return s.verifier.Redeem(ctx, token)
}

// UpdateUser changes profile fields of id.  Role and verification state
// are not editable here.
func (s *AuthService) UpdateUser(ctx context.Context, actor model.Identity, id string, patch model.UserPatch) (*model.User, error) {
	if err := CanActOn(actor, id); err != nil {
		return nil, err
	}
	patch.Role, patch.Verified = nil, nil
	if patch.Empty() {
		return nil, fmt.Errorf("%w: no updatable fields", ErrValidation)
	}
	return s.update(ctx, id, patch)
}

// ChangeRole assigns role to id.  Only admins may call it.
func (s *AuthService) ChangeRole(ctx context.Context, actor model.Identity, id string, role model.Role) (*model.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrValidation, model.ErrInvalidRole)
	}
	return s.update(ctx, id, model.UserPatch{Role: &role})
}

// DeleteUser removes id and returns the deleted account.
func (s *AuthService) DeleteUser(ctx context.Context, actor model.Identity, id string) (*model.User, error) {
	if err := CanActOn(actor, id); err != nil {
		return nil, err
	}
	u, err := s.users.DeleteByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete user: %w", err)
	}
	s.log.Infow("user deleted", "user_id", id, "by", actor.ID)
	return u, nil
}

// Profile returns the stored account of the caller.
func (s *AuthService) Profile(ctx context.Context, actor model.Identity) (*model.User, error) {
	u, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (s *AuthService) update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	u, err := s.users.UpdateByID(ctx, id, patch)
	switch {
	case err == nil:
		return u, nil
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return nil, ErrConflict
	}
	return nil, fmt.Errorf("update user: %w", err)
}
