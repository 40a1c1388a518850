package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/safar/congress-merch/internal/models"
)

// RecordWebhookEvent appends a notification to the audit log. Bodies that are
// not valid JSON are stored without payload.
func RecordWebhookEvent(ctx context.Context, db *sql.DB, event models.WebhookEvent) error {
	var payload interface{}
	if len(event.Payload) > 0 && json.Valid(event.Payload) {
		payload = string(event.Payload)
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO mp_webhook_events (request_id, event_type, action, payment_id, outcome, http_status, payload, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, NOW())`,
		event.RequestID, event.Type, event.Action, event.PaymentID, event.Outcome, event.HTTPStatus, payload)
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}

	return nil
}

func ListWebhookEvents(ctx context.Context, db *sql.DB, paymentID string) ([]models.WebhookEvent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT request_id, event_type, action, payment_id, outcome, http_status, COALESCE(payload::text, '')
		 FROM mp_webhook_events
		 WHERE payment_id = $1
		 ORDER BY received_at, id`,
		paymentID)
	if err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}
	defer rows.Close()

	var events []models.WebhookEvent
	for rows.Next() {
		var e models.WebhookEvent
		var payload string
		if err := rows.Scan(&e.RequestID, &e.Type, &e.Action, &e.PaymentID, &e.Outcome, &e.HTTPStatus, &payload); err != nil {
			return nil, fmt.Errorf("scan webhook event: %w", err)
		}
		if payload != "" {
			e.Payload = []byte(payload)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}
