package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger func(ctx context.Context) error

// Health answers load balancer probes.  With a pinger it also checks the
// user store and reports 503 when the store is down.
func Health(ping Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        if ping == nil {
            return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
        }
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if err := ping(ctx); err != nil {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "store": err.Error()})
        }
        return c.JSON(http.StatusOK, echo.Map{"status": "ok", "store": "ok"})
    }
}
