package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/viewing-scheduler/internal/queue"
)

// viewingEventsDDL creates the append-only audit table.  event_id is unique
// so a redelivered message is stored once.
const viewingEventsDDL = `CREATE TABLE IF NOT EXISTS viewing_events (
	id             BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
	event_id       VARCHAR(64)  NOT NULL,
	kind           VARCHAR(32)  NOT NULL,
	reservation_id VARCHAR(64)  NOT NULL,
	slot_id        VARCHAR(64)  NOT NULL,
	start_time     DATETIME(3)  NOT NULL,
	end_time       DATETIME(3)  NOT NULL,
	viewer_name    VARCHAR(255) NOT NULL,
	property       VARCHAR(255) NOT NULL,
	timezone       VARCHAR(64)  NOT NULL,
	occurred_at    DATETIME(3)  NOT NULL,
	UNIQUE KEY uq_viewing_events_event_id (event_id),
	KEY idx_viewing_events_reservation (reservation_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// EventRepo stores booking events consumed from RabbitMQ.  It is an audit
// trail only; the schedule itself is never rebuilt from it.
type EventRepo struct{ DB *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{DB: db} }

// EnsureSchema creates the viewing_events table if it is missing.
func (r *EventRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, viewingEventsDDL); err != nil {
		return fmt.Errorf("create viewing_events: %w", err)
	}
	return nil
}

// Record inserts one event.  Duplicates (same event_id) are ignored.
func (r *EventRepo) Record(ctx context.Context, ev queue.ViewingEvent) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT IGNORE INTO viewing_events
		 (event_id, kind, reservation_id, slot_id, start_time, end_time, viewer_name, property, timezone, occurred_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		ev.EventID, ev.Kind, ev.ReservationID, ev.SlotID,
		ev.StartTime.UTC(), ev.EndTime.UTC(), ev.ViewerName, ev.Property, ev.Timezone, ev.OccurredAt.UTC())
	if err != nil {
		return fmt.Errorf("insert viewing event: %w", err)
	}
	return nil
}

// ListRecent returns up to limit events, newest first.  A reservationID
// narrows the result to one booking's history.
func (r *EventRepo) ListRecent(ctx context.Context, reservationID string, limit int) ([]queue.ViewingEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT event_id, kind, reservation_id, slot_id, start_time, end_time, viewer_name, property, timezone, occurred_at
		FROM viewing_events`
	args := []interface{}{}
	if reservationID != "" {
		query += " WHERE reservation_id = ?"
		args = append(args, reservationID)
	}
	query += " ORDER BY occurred_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query viewing events: %w", err)
	}
	defer rows.Close()

	var out []queue.ViewingEvent
	for rows.Next() {
		var ev queue.ViewingEvent
		if err := rows.Scan(&ev.EventID, &ev.Kind, &ev.ReservationID, &ev.SlotID,
			&ev.StartTime, &ev.EndTime, &ev.ViewerName, &ev.Property, &ev.Timezone, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan viewing event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate viewing events: %w", err)
	}
	return out, nil
}
