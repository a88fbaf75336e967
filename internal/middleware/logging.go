package middleware

import (
    "time"

    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "github.com/segmentio/ksuid"
    "go.uber.org/zap"
)

// RequestID tags every request with a KSUID unless the client already
// sent an X-Request-ID.
func RequestID() echo.MiddlewareFunc {
    return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
        Generator: func() string { return ksuid.New().String() },
    })
}

// RequestLogger writes one structured access log line per request.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogStatus:    true,
        LogURI:       true,
        LogMethod:    true,
        LogLatency:   true,
        LogRemoteIP:  true,
        LogRequestID: true,
        LogError:     true,
        HandleError:  true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            fields := []zap.Field{
                zap.String("method", v.Method),
                zap.String("uri", v.URI),
                zap.Int("status", v.Status),
                zap.Duration("latency", v.Latency.Round(time.Microsecond)),
                zap.String("remote_ip", v.RemoteIP),
                zap.String("request_id", v.RequestID),
                zap.String("user_id", userID(c)),
            }
            switch {
            case v.Error != nil:
                log.Error("request", append(fields, zap.Error(v.Error))...)
            case v.Status >= 500:
                log.Error("request", fields...)
            case v.Status >= 400:
                log.Warn("request", fields...)
            default:
                log.Info("request", fields...)
            }
            return nil
        },
    })
}
