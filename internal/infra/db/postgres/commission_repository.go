package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"glampstay/internal/domain/commission"
	"glampstay/internal/domain/shared/money"
)

type commissionRepository struct {
	tx pgx.Tx
}

const commissionColumns = `id, booking_id, agent_id, currency, amount_minor, rate_percent::text, status,
	generated_at, paid_at, paid_by, updated_at`

func (r commissionRepository) ByID(ctx context.Context, id commission.CommissionID) (*commission.Commission, error) {
	return r.queryOne(ctx, `SELECT `+commissionColumns+` FROM commissions WHERE id = $1`, string(id))
}

func (r commissionRepository) ByBookingAndAgent(ctx context.Context, bookingID, agentID string) (*commission.Commission, error) {
	return r.queryOne(ctx, `SELECT `+commissionColumns+` FROM commissions WHERE booking_id = $1 AND agent_id = $2`, bookingID, agentID)
}

func (r commissionRepository) ListByAgent(ctx context.Context, agentID string) ([]*commission.Commission, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+commissionColumns+` FROM commissions WHERE agent_id = $1 ORDER BY generated_at, id`, agentID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	var out []*commission.Commission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, translate(rows.Err())
}

func (r commissionRepository) Insert(ctx context.Context, c *commission.Commission) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO commissions
		(id, booking_id, agent_id, currency, amount_minor, rate_percent, status, generated_at, paid_at, paid_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11)`,
		string(c.ID), c.BookingID, c.AgentID, c.Amount.Currency, c.Amount.Amount, c.Rate.String(), string(c.Status),
		c.GeneratedAt, c.PaidAt, c.PaidBy, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return commission.ErrDuplicate
		}
		return translate(err)
	}
	return nil
}

func (r commissionRepository) UpdateStatus(ctx context.Context, c *commission.Commission, expected commission.Status) error {
	tag, err := r.tx.Exec(ctx, `UPDATE commissions SET status = $3, paid_at = $4, paid_by = $5, updated_at = $6
		WHERE id = $1 AND status = $2`,
		string(c.ID), string(expected), string(c.Status), c.PaidAt, c.PaidBy, c.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return commission.ErrStatusConflict
	}
	return nil
}

func (r commissionRepository) queryOne(ctx context.Context, sql string, args ...any) (*commission.Commission, error) {
	c, err := scanCommission(r.tx.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, commission.ErrCommissionNotFound
	}
	return c, err
}

func scanCommission(row pgx.Row) (*commission.Commission, error) {
	var (
		c                             commission.Commission
		rawID, currency, rate, status string
		amount                        int64
		paidAt                        *time.Time
	)
	if err := row.Scan(&rawID, &c.BookingID, &c.AgentID, &currency, &amount, &rate, &status,
		&c.GeneratedAt, &paidAt, &c.PaidBy, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, translate(err)
	}
	c.ID = commission.CommissionID(rawID)
	var err error
	if c.Amount, err = money.New(amount, currency); err != nil {
		return nil, err
	}
	if c.Rate, err = decimal.NewFromString(rate); err != nil {
		return nil, err
	}
	if c.Status, err = commission.ParseStatus(status); err != nil {
		return nil, err
	}
	if paidAt != nil {
		at := paidAt.UTC()
		c.PaidAt = &at
	}
	c.GeneratedAt, c.UpdatedAt = c.GeneratedAt.UTC(), c.UpdatedAt.UTC()
	return &c, nil
}
