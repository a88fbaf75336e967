package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/storefront-auth/internal/config"
)

// ResponseCache keeps successful catalog responses in Redis.  Entries are
// shared by every caller, so it is only mounted on routes whose body does
// not depend on who is asking.
type ResponseCache struct {
    cfg config.CacheConfig
    rdb *redis.Client
    log *zap.SugaredLogger
}

func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.SugaredLogger) *ResponseCache {
    if cfg.TTL <= 0 {
        cfg.TTL = 30 * time.Second
    }
    return &ResponseCache{cfg: cfg, rdb: rdb, log: log}
}

func (rc *ResponseCache) enabled() bool { return rc != nil && rc.cfg.Enabled && rc.rdb != nil }

// captureWriter tees the response body into buf, up to limit bytes.
type captureWriter struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    limit     int
    truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if !cw.truncated {
        if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
            cw.truncated = true
        } else {
            cw.buf.Write(b)
        }
    }
    return cw.ResponseWriter.Write(b)
}

// Middleware serves cached bodies for the configured methods and stores
// fresh 200 responses.  Responses carry X-Cache: HIT or MISS.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
    if !rc.enabled() {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !rc.cfg.Methods[c.Request().Method] {
                return next(c)
            }
            ctx := c.Request().Context()
            key := cacheKey(rc.cfg, c)

            if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
                if status, ctype, body, ok := decodeEntry(bs); ok {
                    c.Response().Header().Set("X-Cache", "HIT")
                    return c.Blob(status, ctype, body)
                }
            } else if err != redis.Nil {
                rc.log.Warnw("cache read failed", "key", key, "err", err)
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: rc.cfg.MaxBodyBytes}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.truncated {
                return nil
            }
            entry := encodeEntry(cw.status, c.Response().Header().Get(echo.HeaderContentType), cw.buf.Bytes())
            if err := rc.rdb.Set(context.WithoutCancel(ctx), key, entry, rc.cfg.TTL).Err(); err != nil {
                rc.log.Warnw("cache write failed", "key", key, "err", err)
            }
            return nil
        }
    }
}

// Invalidate drops every cached entry after a successful mutation so the
// next listing reflects it.
func (rc *ResponseCache) Invalidate() echo.MiddlewareFunc {
    if !rc.enabled() {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            err := next(c)
            if status := c.Response().Status; err == nil && status >= 200 && status < 300 {
                rc.purge(context.WithoutCancel(c.Request().Context()))
            }
            return err
        }
    }
}

func (rc *ResponseCache) purge(ctx context.Context) {
    iter := rc.rdb.Scan(ctx, 0, rc.cfg.Prefix+":*", 100).Iterator()
    var keys []string
    for iter.Next(ctx) {
        keys = append(keys, iter.Val())
    }
    if err := iter.Err(); err != nil {
        rc.log.Warnw("cache purge scan failed", "err", err)
        return
    }
    if len(keys) == 0 {
        return
    }
    if err := rc.rdb.Del(ctx, keys...).Err(); err != nil {
        rc.log.Warnw("cache purge failed", "keys", len(keys), "err", err)
    }
}

func cacheKey(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    var parts []string
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = []string{"route", c.Path()}
    case "method_route":
        parts = []string{"method", r.Method, "route", c.Path()}
    default: // route_query
        parts = []string{"route", c.Path(), "q", r.URL.RawQuery}
    }
    sum := sha1.Sum([]byte(strings.Join(parts, ":")))
    return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// Entry layout: [4 bytes status][2 bytes content-type length][content-type][body]
func encodeEntry(status int, ctype string, body []byte) []byte {
    out := make([]byte, 6+len(ctype)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint16(out[4:6], uint16(len(ctype)))
    copy(out[6:], ctype)
    copy(out[6+len(ctype):], body)
    return out
}

func decodeEntry(bs []byte) (status int, ctype string, body []byte, ok bool) {
    if len(bs) < 6 {
        return 0, "", nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    n := int(binary.BigEndian.Uint16(bs[4:6]))
    if 6+n > len(bs) {
        return 0, "", nil, false
    }
    if n == 0 {
        ctype = echo.MIMEApplicationJSON
    } else {
        ctype = string(bs[6 : 6+n])
    }
    return status, ctype, bs[6+n:], true
}
