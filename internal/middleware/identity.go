package middleware

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/storefront-auth/internal/model"
)

const identityKey = "identity"

func setIdentity(c echo.Context, id string, role model.Role) {
    c.Set(identityKey, model.Identity{ID: id, Role: role})
    // plain keys for handlers and logs that only need one value
    c.Set("user_id", id)
    c.Set("role", role)
}

// IdentityFrom returns the caller stored by Authenticate.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
    id, ok := c.Get(identityKey).(model.Identity)
    return id, ok && id.ID != ""
}

// userID identifies the caller for rate-limit keys and access logs.
func userID(c echo.Context) string {
    if id, ok := IdentityFrom(c); ok {
        return id.ID
    }
    return "anon"
}
