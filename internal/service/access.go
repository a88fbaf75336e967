package service

import "github.com/iliyamo/storefront-auth/internal/model"

// CanActOn allows an actor to modify the account targetID when it is
// their own account or when they hold the admin role.
func CanActOn(actor model.Identity, targetID string) error {
	if actor.ID != "" && actor.ID == targetID {
		return nil
	}
	if actor.IsAdmin() {
		return nil
	}
	return ErrForbidden
}
