package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"glampstay/internal/domain/audit"
)

type auditLog struct {
	tx pgx.Tx
}

func (l auditLog) Append(ctx context.Context, e audit.Entry) error {
	_, err := l.tx.Exec(ctx, `INSERT INTO audit_log (id, entity_type, entity_id, from_state, to_state, actor, note, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.EntityType, e.EntityID, e.FromState, e.ToState, e.Actor, e.Note, e.At)
	return translate(err)
}

func (l auditLog) ListByEntity(ctx context.Context, entityType, entityID string) ([]audit.Entry, error) {
	rows, err := l.tx.Query(ctx, `SELECT id, entity_type, entity_id, from_state, to_state, actor, note, at
		FROM audit_log WHERE entity_type = $1 AND entity_id = $2 ORDER BY at, seq`, entityType, entityID)
	if err != nil {
		return nil, translate(err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (audit.Entry, error) {
		var e audit.Entry
		err := row.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.FromState, &e.ToState, &e.Actor, &e.Note, &e.At)
		e.At = e.At.UTC()
		return e, err
	})
	return entries, translate(err)
}
