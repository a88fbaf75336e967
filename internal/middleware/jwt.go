package middleware // reusable HTTP middleware: authentication, role checks, rate limiting, caching, logging

import (
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/storefront-auth/internal/utils"
)

// BearerToken returns the token from an "Authorization: Bearer <token>"
// header, or "" when the header is absent or uses another scheme.
func BearerToken(c echo.Context) string {
    auth := c.Request().Header.Get(echo.HeaderAuthorization)
    const prefix = "Bearer "
    if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
        return ""
    }
    return strings.TrimSpace(auth[len(prefix):])
}

// Authenticate validates the bearer session token and stores the caller's
// identity in the context.  Tokens without a valid role claim, such as
// emailed verification tokens, are not sessions and are refused.
func Authenticate(tokens *utils.TokenService) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := BearerToken(c)
            if raw == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            claims, err := tokens.Verify(raw)
            if err != nil {
                msg := "invalid token"
                if errors.Is(err, utils.ErrTokenExpired) {
                    msg = "token expired"
                }
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
            }
            if !claims.Role.Valid() {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            setIdentity(c, claims.Subject, claims.Role)
            return next(c)
        }
    }
}
