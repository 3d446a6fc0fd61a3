package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// Sink records a consumed event.  The MySQL event repository implements
// it; LogSink is used when no audit database is configured.
type Sink interface {
    Record(ctx context.Context, ev ViewingEvent) error
}

// LogSink writes each event as a structured log line.
type LogSink struct {
    Logger *zap.Logger
}

func (s LogSink) Record(_ context.Context, ev ViewingEvent) error {
    s.Logger.Info("viewing event",
        zap.String("event_id", ev.EventID),
        zap.String("kind", ev.Kind),
        zap.String("reservation_id", ev.ReservationID),
        zap.String("slot_id", ev.SlotID),
        zap.Time("start_time", ev.StartTime),
        zap.String("viewer_name", ev.ViewerName),
        zap.String("property", ev.Property),
        zap.Time("occurred_at", ev.OccurredAt),
    )
    return nil
}

// Consumer reads booking events from a durable queue and hands them to a
// Sink.  Run keeps reconnecting with exponential backoff until ctx is
// cancelled.
type Consumer struct {
    URL    string
    Queue  string
    Sink   Sink
    Logger *zap.Logger
}

// Run blocks until ctx is done.  Messages that cannot be decoded or
// recorded are rejected without requeue so a poison message never loops.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            c.Logger.Warn("event consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Logger.Warn("event consumer: consume loop ended, reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Logger.Warn("event consumer: set QoS failed", zap.Error(err))
    }
    if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }
    c.Logger.Info("event consumer: listening", zap.String("queue", c.Queue))

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.Handle(ctx, d.Body); err != nil {
                c.Logger.Error("event consumer: handle message failed", zap.Error(err))
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle decodes one message body and records it.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
    var ev ViewingEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.EventID == "" || ev.Kind == "" || ev.ReservationID == "" {
        return fmt.Errorf("incomplete event: %q", body)
    }
    if err := c.Sink.Record(ctx, ev); err != nil {
        return fmt.Errorf("record event %s: %w", ev.EventID, err)
    }
    return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
