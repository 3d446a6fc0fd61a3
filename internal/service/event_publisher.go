// Package service connects the booking store to RabbitMQ.  Publishing is
// best effort: failures are logged and never undo a booking.
package service

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/viewing-scheduler/internal/queue"
    "github.com/iliyamo/viewing-scheduler/internal/schedule"
    "github.com/iliyamo/viewing-scheduler/internal/store"
)

// EventPublisher implements store.Notifier by publishing a
// queue.ViewingEvent for every booking and cancellation.
type EventPublisher struct {
    URL      string
    Queue    string
    Timezone string
    Timeout  time.Duration
    NewID    schedule.IDFunc
    Logger   *zap.Logger

    wg sync.WaitGroup
}

// ToViewingEvent converts a store event into the wire payload.
func ToViewingEvent(id, timezone string, ev store.Event) queue.ViewingEvent {
    return queue.ViewingEvent{
        EventID:       id,
        Kind:          string(ev.Kind),
        ReservationID: ev.Reservation.ID,
        SlotID:        ev.Slot.ID,
        StartTime:     ev.Reservation.StartTime,
        EndTime:       ev.Slot.EndTime,
        ViewerName:    ev.Reservation.ViewerName,
        Property:      ev.Reservation.Property,
        Timezone:      timezone,
        OccurredAt:    ev.At,
    }
}

// Notify publishes in the background so the HTTP request that triggered
// the change is not held up by the broker.
func (p *EventPublisher) Notify(ctx context.Context, ev store.Event) {
    newID := p.NewID
    if newID == nil {
        newID = schedule.NewUUID
    }
    msg := ToViewingEvent(newID(), p.Timezone, ev)
    timeout := p.Timeout
    if timeout <= 0 {
        timeout = 5 * time.Second
    }

    p.wg.Add(1)
    go func() {
        defer p.wg.Done()
        pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
        defer cancel()
        if err := p.Publish(pubCtx, msg); err != nil {
            p.Logger.Warn("viewing event not published",
                zap.String("event_id", msg.EventID),
                zap.String("kind", msg.Kind),
                zap.Error(err),
            )
        }
    }()
}

// Wait blocks until in-flight publishes have finished.
func (p *EventPublisher) Wait() { p.wg.Wait() }

// Publish sends one event to the durable queue.  Messages are marked
// persistent.
func (p *EventPublisher) Publish(ctx context.Context, ev queue.ViewingEvent) error {
    conn, err := amqp.Dial(p.URL)
    if err != nil {
        return fmt.Errorf("rabbitmq dial: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("rabbitmq channel: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(
        p.Queue, // name
        true,    // durable
        false,   // autoDelete
        false,   // exclusive
        false,   // noWait
        nil,     // args
    ); err != nil {
        return fmt.Errorf("rabbitmq queue declare: %w", err)
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    ev.EventID,
        Type:         ev.Kind,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
        return fmt.Errorf("rabbitmq publish: %w", err)
    }
    return nil
}
