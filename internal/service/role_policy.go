package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/storefront-auth/internal/model"
	"github.com/iliyamo/storefront-auth/internal/repository"
	"github.com/iliyamo/storefront-auth/internal/utils"
)

// RolePolicy decides which role a new account receives.
type RolePolicy struct {
	users  repository.UserStore
	tokens *utils.TokenService
}

func NewRolePolicy(users repository.UserStore, tokens *utils.TokenService) *RolePolicy {
	return &RolePolicy{users: users, tokens: tokens}
}

// DecideRole resolves the requested role.  bearer is the raw token from
// the Authorization header, or empty.
//
//   - empty or customer: customer, no token needed
//   - admin while no admin exists: admin (first-admin bootstrap)
//   - anything else needs an admin session: ErrForbidden without one,
//     ErrUnauthenticated when the token does not verify
//
// Two concurrent bootstrap registrations can both observe "no admin";
// this is accepted.
func (p *RolePolicy) DecideRole(ctx context.Context, requested model.Role, bearer string) (model.Role, error) {
	if requested == "" || requested == model.RoleCustomer {
		return model.RoleCustomer, nil
	}
	if !requested.Valid() {
		return "", fmt.Errorf("%w: %v", ErrValidation, model.ErrInvalidRole)
	}
	if requested == model.RoleAdmin {
		exists, err := p.users.ExistsByRole(ctx, model.RoleAdmin)
		if err != nil {
			return "", fmt.Errorf("check admin exists: %w", err)
		}
		if !exists {
			return model.RoleAdmin, nil
		}
	}
	if bearer == "" {
		return "", fmt.Errorf("%w: only admins may assign role %s", ErrForbidden, requested)
	}
	claims, err := p.tokens.Verify(bearer)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Role != model.RoleAdmin {
		return "", fmt.Errorf("%w: only admins may assign role %s", ErrForbidden, requested)
	}
	return requested, nil
}
