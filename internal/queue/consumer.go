package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "sync"
    "time"

    rotatelogs "github.com/lestrrat-go/file-rotatelogs"
    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/storefront-auth/internal/config"
)

const auditQueueName = "users.audit"

// OpenAuditLog returns a daily-rotated writer under dir.  audit.log always
// links to the current file.
func OpenAuditLog(dir string) (io.WriteCloser, error) {
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return nil, fmt.Errorf("mkdir %s: %w", dir, err)
    }
    rl, err := rotatelogs.New(
        filepath.Join(dir, "audit.%Y%m%d.log"),
        rotatelogs.WithLinkName(filepath.Join(dir, "audit.log")),
        rotatelogs.WithRotationTime(24*time.Hour),
        rotatelogs.WithMaxAge(30*24*time.Hour),
    )
    if err != nil {
        return nil, fmt.Errorf("rotatelogs: %w", err)
    }
    return rl, nil
}

// AuditSink serializes audit lines onto a writer.
type AuditSink struct {
    mu  sync.Mutex
    w   io.Writer
    now func() time.Time
}

func NewAuditSink(w io.Writer) *AuditSink {
    return &AuditSink{w: w, now: time.Now}
}

// Record formats one delivery and appends it to the log.
func (s *AuditSink) Record(routingKey string, body []byte) error {
    line, err := FormatAuditLine(routingKey, body, s.now())
    if err != nil {
        return err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    _, err = io.WriteString(s.w, line)
    return err
}

// FormatAuditLine renders an event as a single human-readable line.
// Unknown routing keys are rejected.
func FormatAuditLine(routingKey string, body []byte, now time.Time) (string, error) {
    ts := now.UTC().Format(time.RFC3339)
    switch routingKey {
    case RoutingUserRegistered:
        var ev UserRegisteredEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal: %w", err)
        }
        if ev.OccurredAt != "" {
            ts = ev.OccurredAt
        }
        return fmt.Sprintf("[%s] User registered | user_id=%s | username=%q | email=%q | role=%s | verification_sent=%t\n",
            ts, ev.UserID, ev.Username, ev.Email, ev.Role, ev.VerificationSent), nil
    case RoutingUserVerified:
        var ev UserVerifiedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal: %w", err)
        }
        if ev.OccurredAt != "" {
            ts = ev.OccurredAt
        }
        return fmt.Sprintf("[%s] User verified | user_id=%s | email=%q\n", ts, ev.UserID, ev.Email), nil
    }
    return "", fmt.Errorf("unknown routing key %q", routingKey)
}

// StartAuditConsumer binds the audit queue to the users exchange and
// records every delivery in sink.  It reconnects with backoff until ctx
// is cancelled.
func StartAuditConsumer(ctx context.Context, cfg config.QueueConfig, sink *AuditSink, log *zap.SugaredLogger) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(cfg.URL)
        if err != nil {
            log.Warnw("audit consumer: dial failed", "err", err, "retry_in", backoff)
            select {
            case <-ctx.Done():
                return ctx.Err()
            case <-time.After(backoff):
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, cfg.Exchange, sink, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warnw("audit consumer: loop ended, reconnecting", "err", err)
        select {
        case <-ctx.Done():
            return ctx.Err()
        case <-time.After(2 * time.Second):
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, exchange string, sink *AuditSink, log *zap.SugaredLogger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warnw("audit consumer: set QoS failed", "err", err)
    }
    if err := declareExchange(ch, exchange); err != nil {
        return err
    }
    if _, err := ch.QueueDeclare(auditQueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    if err := ch.QueueBind(auditQueueName, "user.*", exchange, false, nil); err != nil {
        return fmt.Errorf("queue bind: %w", err)
    }

    msgs, err := ch.Consume(auditQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := sink.Record(d.RoutingKey, d.Body); err != nil {
                log.Warnw("audit consumer: record failed", "routing_key", d.RoutingKey, "err", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}
