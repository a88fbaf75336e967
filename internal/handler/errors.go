package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/storefront-auth/internal/catalog"
    "github.com/iliyamo/storefront-auth/internal/service"
    "github.com/iliyamo/storefront-auth/internal/validation"
)

// respondError maps service errors onto HTTP statuses.  Unknown errors
// are logged and answered with a generic 500.
func respondError(c echo.Context, err error) error {
    if fields := validation.Fields(err); fields != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": fields})
    }
    var upstream *catalog.StatusError
    switch {
    case errors.Is(err, service.ErrBadCredentials):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "incorrect credentials"})
    case errors.Is(err, service.ErrValidation):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrInvalidOrExpiredToken):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired verification link"})
    case errors.Is(err, service.ErrUnauthenticated):
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
    case errors.Is(err, service.ErrUnverified):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "email address not verified"})
    case errors.Is(err, service.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, service.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "username or email already in use"})
    case errors.As(err, &upstream) && upstream.Status >= 400 && upstream.Status < 500:
        // the catalog refused the request itself; relay its status only
        return c.JSON(upstream.Status, echo.Map{"error": "catalog rejected the request"})
    case errors.Is(err, service.ErrUpstream):
        c.Logger().Errorf("catalog: %v", err)
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "catalog unavailable"})
    }
    c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}
