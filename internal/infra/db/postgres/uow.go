package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"glampstay/internal/app/outbox"
	"glampstay/internal/app/uow"
	"glampstay/internal/domain/audit"
	"glampstay/internal/domain/booking"
	"glampstay/internal/domain/commission"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing pool")

// Factory begins RepeatableRead transactions on the pool.
type Factory struct {
	Pool *pgxpool.Pool
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Pool == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	txOpts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead}
	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
	}
	tx, err := f.Pool.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin tx: %w", err)
	}
	return &Unit{tx: tx}, nil
}

func (f Factory) Ping(ctx context.Context) error {
	if f.Pool == nil {
		return ErrUnitOfWorkNotConfigured
	}
	return f.Pool.Ping(ctx)
}

type Unit struct {
	tx pgx.Tx
}

func (u *Unit) Bookings() booking.Repository       { return bookingRepository{tx: u.tx} }
func (u *Unit) Commissions() commission.Repository { return commissionRepository{tx: u.tx} }
func (u *Unit) Audit() audit.Log                   { return auditLog{tx: u.tx} }
func (u *Unit) Outbox() outbox.Outbox              { return outboxWriter{tx: u.tx} }

func (u *Unit) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		return translate(err)
	}
	return nil
}

// Rollback is a no-op after Commit.
func (u *Unit) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

var _ uow.UoWFactory = Factory{}
