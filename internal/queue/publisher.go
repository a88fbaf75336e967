package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// dialTimeout caps broker connection setup; a request deadline shortens it.
const dialTimeout = 5 * time.Second

// Publisher sends events to a durable topic exchange.  Each publish dials
// its own connection.
type Publisher struct {
    url      string
    exchange string
    log      *zap.SugaredLogger
}

func NewPublisher(url, exchange string, log *zap.SugaredLogger) *Publisher {
    return &Publisher{url: url, exchange: exchange, log: log}
}

func (p *Publisher) UserRegistered(ctx context.Context, ev UserRegisteredEvent) error {
    return p.publish(ctx, RoutingUserRegistered, ev)
}

func (p *Publisher) UserVerified(ctx context.Context, ev UserVerifiedEvent) error {
    return p.publish(ctx, RoutingUserVerified, ev)
}

func (p *Publisher) publish(ctx context.Context, key string, event any) error {
    body, err := json.Marshal(event)
    if err != nil {
        return fmt.Errorf("marshal %s: %w", key, err)
    }

    timeout, err := dialBudget(ctx)
    if err != nil {
        return fmt.Errorf("publish %s: %w", key, err)
    }
    conn, err := amqp.DialConfig(p.url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(timeout),
    })
    if err != nil {
        p.log.Warnw("rabbitmq dial failed", "routing_key", key, "err", err)
        return fmt.Errorf("dial: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := declareExchange(ch, p.exchange); err != nil {
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         key,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, p.exchange, key, false, false, pub); err != nil {
        p.log.Warnw("rabbitmq publish failed", "routing_key", key, "err", err)
        return fmt.Errorf("publish %s: %w", key, err)
    }
    return nil
}

// dialBudget returns how long a dial may take under ctx.
func dialBudget(ctx context.Context) (time.Duration, error) {
    if err := ctx.Err(); err != nil {
        return 0, err
    }
    if dl, ok := ctx.Deadline(); ok {
        left := time.Until(dl)
        if left <= 0 {
            return 0, context.DeadlineExceeded
        }
        if left < dialTimeout {
            return left, nil
        }
    }
    return dialTimeout, nil
}

func declareExchange(ch *amqp.Channel, name string) error {
    if err := ch.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
        return fmt.Errorf("exchange declare: %w", err)
    }
    return nil
}

// NopPublisher drops every event.  It is used when EVENTS_ENABLED is off.
type NopPublisher struct{}

func (NopPublisher) UserRegistered(context.Context, UserRegisteredEvent) error { return nil }
func (NopPublisher) UserVerified(context.Context, UserVerifiedEvent) error     { return nil }
