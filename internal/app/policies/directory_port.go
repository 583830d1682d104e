package policies

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"glampstay/internal/apperrors"
	"glampstay/internal/domain/booking"
)

var ErrUnknownAgent = fmt.Errorf("%w: unknown agent", apperrors.ErrInvalidInput)

// AgentDirectory provides an agent's current commission rate in percent.
type AgentDirectory interface {
	CommissionRate(ctx context.Context, agentID string) (decimal.Decimal, error)
}

type Role string

const (
	RoleFinance  Role = "finance"
	RoleOperator Role = "operator"
)

// ActorDirectory resolves which roles an actor holds.
type ActorDirectory interface {
	HasRole(ctx context.Context, actor string, role Role) (bool, error)
}

// CancellationPolicy supplies the window inside which a confirmed booking may
// still be cancelled.
type CancellationPolicy interface {
	Window(ctx context.Context, b *booking.Booking) (booking.CancellationWindow, error)
}
