package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appoutbox "glampstay/internal/app/outbox"
	infraoutbox "glampstay/internal/infra/outbox"
)

type outboxWriter struct {
	tx pgx.Tx
}

func (w outboxWriter) Add(ctx context.Context, record appoutbox.EventRecord) error {
	headers := record.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	_, err := w.tx.Exec(ctx, `INSERT INTO app_outbox (id, name, payload, occurred_at, aggregate, headers, state, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		record.ID, record.Name, record.Payload, record.OccurredAt, record.Aggregate, headers, infraoutbox.StateNew)
	return translate(err)
}

// OutboxStore is the relay side of app_outbox. Concurrent relays skip rows
// another relay has locked.
type OutboxStore struct {
	Pool *pgxpool.Pool
}

func (s OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	row := s.Pool.QueryRow(ctx, `UPDATE app_outbox SET state = $1, claimed_by = $2, claimed_at = now()
		WHERE id = (
			SELECT id FROM app_outbox
			WHERE state IN ($3, $4) AND next_attempt_at <= now()
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, name, payload, occurred_at, aggregate, headers, attempts`,
		infraoutbox.StateClaimed, workerID, infraoutbox.StateNew, infraoutbox.StateFailed)
	var msg infraoutbox.Message
	err := row.Scan(&msg.ID, &msg.Name, &msg.Payload, &msg.OccurredAt, &msg.Aggregate, &msg.Headers, &msg.Attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	msg.OccurredAt = msg.OccurredAt.UTC()
	return &msg, nil
}

func (s OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE app_outbox SET state = $2, sent_at = now() WHERE id = $1`, id, infraoutbox.StateSent)
	return err
}

func (s OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE app_outbox SET state = $2, next_attempt_at = $3, last_error = $4, attempts = attempts + 1
		WHERE id = $1`, id, infraoutbox.StateFailed, next, errMsg)
	return err
}

var _ infraoutbox.Store = OutboxStore{}
