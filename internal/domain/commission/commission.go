package commission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"glampstay/internal/apperrors"
	"glampstay/internal/domain/shared/events"
	"glampstay/internal/domain/shared/money"
)

var (
	ErrCommissionNotFound = fmt.Errorf("commission: %w", apperrors.ErrNotFound)
	// ErrStatusConflict is returned by a conditional status write when the stored
	// status is no longer the one the change was computed from.
	ErrStatusConflict = fmt.Errorf("commission: %w", apperrors.ErrConcurrentModification)
	// ErrDuplicate is returned when a commission already exists for the booking and agent.
	ErrDuplicate     = fmt.Errorf("%w: commission already generated for booking and agent", apperrors.ErrConcurrentModification)
	ErrAgentRequired = fmt.Errorf("%w: commission agent id required", apperrors.ErrInvalidInput)
	ErrActorRequired = fmt.Errorf("%w: commission actor required", apperrors.ErrInvalidInput)
	ErrUnknownStatus = fmt.Errorf("%w: unknown commission status", apperrors.ErrInvalidInput)
)

type CommissionID string

type Status string

const (
	StatusUnpaid Status = "UNPAID"
	StatusPaid   Status = "PAID"
)

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusUnpaid, StatusPaid:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

// Commission is the amount owed to a referring agent for one confirmed booking.
// Amount and Rate are frozen when the commission is generated.
type Commission struct {
	ID          CommissionID
	BookingID   string
	AgentID     string
	Amount      money.Money
	Rate        decimal.Decimal
	Status      Status
	GeneratedAt time.Time
	PaidAt      *time.Time
	PaidBy      string
	UpdatedAt   time.Time
	events.EventRecorder
}

// Repository persists commissions.
//
// Insert fails with ErrDuplicate when a commission exists for the same
// (BookingID, AgentID). UpdateStatus writes only if the stored status still
// equals expected, otherwise it returns ErrStatusConflict.
type Repository interface {
	ByID(ctx context.Context, id CommissionID) (*Commission, error)
	ByBookingAndAgent(ctx context.Context, bookingID, agentID string) (*Commission, error)
	ListByAgent(ctx context.Context, agentID string) ([]*Commission, error)
	Insert(ctx context.Context, c *Commission) error
	UpdateStatus(ctx context.Context, c *Commission, expected Status) error
}

type GenerateParams struct {
	ID        CommissionID
	BookingID string
	AgentID   string
	Total     money.Money
	Rate      decimal.Decimal
	At        time.Time
}

// Generate computes the snapshot commission for a booking total at rate percent.
func Generate(params GenerateParams) (*Commission, error) {
	if strings.TrimSpace(params.AgentID) == "" {
		return nil, ErrAgentRequired
	}
	amount, err := params.Total.PercentageOf(params.Rate)
	if err != nil {
		return nil, err
	}
	now := params.At.UTC()
	c := &Commission{
		ID:          params.ID,
		BookingID:   params.BookingID,
		AgentID:     strings.TrimSpace(params.AgentID),
		Amount:      amount,
		Rate:        params.Rate,
		Status:      StatusUnpaid,
		GeneratedAt: now,
		UpdatedAt:   now,
	}
	c.Record(CommissionGenerated{CommissionID: c.ID, BookingID: c.BookingID, AgentID: c.AgentID, Amount: c.Amount, Rate: c.Rate.String(), At: now})
	return c, nil
}

// MarkPaid moves UNPAID -> PAID and reports whether anything changed. A
// commission that is already PAID is left untouched.
func (c *Commission) MarkPaid(actor string, now time.Time) (bool, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return false, ErrActorRequired
	}
	if c.Status == StatusPaid {
		return false, nil
	}
	at := now.UTC()
	c.Status = StatusPaid
	c.PaidAt = &at
	c.PaidBy = actor
	c.UpdatedAt = at
	c.Record(CommissionPaid{CommissionID: c.ID, BookingID: c.BookingID, AgentID: c.AgentID, Amount: c.Amount, PaidBy: actor, At: at})
	return true, nil
}

// MarkUnpaid reverses a payment, PAID -> UNPAID. An UNPAID commission is left untouched.
func (c *Commission) MarkUnpaid(actor string, now time.Time) (bool, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return false, ErrActorRequired
	}
	if c.Status == StatusUnpaid {
		return false, nil
	}
	at := now.UTC()
	previous := c.PaidBy
	c.Status = StatusUnpaid
	c.PaidAt = nil
	c.PaidBy = ""
	c.UpdatedAt = at
	c.Record(CommissionUnpaid{CommissionID: c.ID, BookingID: c.BookingID, AgentID: c.AgentID, Amount: c.Amount, ReversedBy: actor, PreviouslyPaidBy: previous, At: at})
	return true, nil
}
