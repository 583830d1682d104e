package uow

import (
	"context"

	"glampstay/internal/app/outbox"
	"glampstay/internal/domain/audit"
	"glampstay/internal/domain/booking"
	"glampstay/internal/domain/commission"
)

// UnitOfWork coordinates repositories inside a transaction boundary. Writes
// made through any of its repositories become visible together on Commit.
type UnitOfWork interface {
	Bookings() booking.Repository
	Commissions() commission.Repository
	Audit() audit.Log
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
