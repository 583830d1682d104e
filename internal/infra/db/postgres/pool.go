package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a pgx pool and checks the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("postgres: database URL cannot be empty")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS bookings (
	id             TEXT PRIMARY KEY,
	glamp_id       TEXT NOT NULL,
	agent_id       TEXT NOT NULL DEFAULT '',
	customer_name  TEXT NOT NULL,
	check_in       TIMESTAMPTZ NOT NULL,
	check_out      TIMESTAMPTZ NOT NULL,
	guests         INTEGER NOT NULL CHECK (guests > 0),
	status         TEXT NOT NULL,
	currency       TEXT NOT NULL,
	total_minor    BIGINT NOT NULL CHECK (total_minor > 0),
	paid_minor     BIGINT NOT NULL CHECK (paid_minor >= 0 AND paid_minor <= total_minor),
	proof_ref      TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	version        BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS commissions (
	id            TEXT PRIMARY KEY,
	booking_id    TEXT NOT NULL REFERENCES bookings (id),
	agent_id      TEXT NOT NULL,
	currency      TEXT NOT NULL,
	amount_minor  BIGINT NOT NULL CHECK (amount_minor >= 0),
	rate_percent  NUMERIC(9, 4) NOT NULL,
	status        TEXT NOT NULL,
	generated_at  TIMESTAMPTZ NOT NULL,
	paid_at       TIMESTAMPTZ,
	paid_by       TEXT NOT NULL DEFAULT '',
	updated_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (booking_id, agent_id)
);
CREATE INDEX IF NOT EXISTS commissions_agent_idx ON commissions (agent_id, generated_at);

CREATE TABLE IF NOT EXISTS audit_log (
	seq          BIGSERIAL PRIMARY KEY,
	id           TEXT NOT NULL UNIQUE,
	entity_type  TEXT NOT NULL,
	entity_id    TEXT NOT NULL,
	from_state   TEXT NOT NULL DEFAULT '',
	to_state     TEXT NOT NULL,
	actor        TEXT NOT NULL,
	note         TEXT NOT NULL DEFAULT '',
	at           TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_log_entity_idx ON audit_log (entity_type, entity_id, at, seq);

CREATE TABLE IF NOT EXISTS app_outbox (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	payload          BYTEA NOT NULL,
	occurred_at      TIMESTAMPTZ NOT NULL,
	aggregate        TEXT NOT NULL,
	headers          JSONB NOT NULL DEFAULT '{}',
	state            TEXT NOT NULL,
	attempts         INTEGER NOT NULL DEFAULT 0,
	next_attempt_at  TIMESTAMPTZ NOT NULL,
	claimed_by       TEXT NOT NULL DEFAULT '',
	claimed_at       TIMESTAMPTZ,
	sent_at          TIMESTAMPTZ,
	last_error       TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS app_outbox_due_idx ON app_outbox (state, next_attempt_at);

CREATE TABLE IF NOT EXISTS app_inbox (
	event_id     TEXT NOT NULL,
	consumer     TEXT NOT NULL,
	received_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (event_id, consumer)
);

CREATE TABLE IF NOT EXISTS receipt_reviews (
	booking_id  TEXT NOT NULL,
	proof_ref   TEXT NOT NULL,
	verified    BOOLEAN NOT NULL,
	decided_at  TIMESTAMPTZ NOT NULL,
	event_id    TEXT NOT NULL,
	PRIMARY KEY (booking_id, proof_ref)
);
`
