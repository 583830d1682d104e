package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"glampstay/internal/apperrors"
	"glampstay/internal/domain/shared/daterange"
	"glampstay/internal/domain/shared/events"
	"glampstay/internal/domain/shared/money"
)

var (
	ErrInvalidGuests     = fmt.Errorf("%w: booking guests count must be positive", apperrors.ErrInvalidInput)
	ErrCustomerRequired  = fmt.Errorf("%w: booking customer name required", apperrors.ErrInvalidInput)
	ErrGlampRequired     = fmt.Errorf("%w: booking glamp id required", apperrors.ErrInvalidInput)
	ErrInvalidTotal      = fmt.Errorf("%w: booking total must be positive", apperrors.ErrInvalidInput)
	ErrInvalidPayment    = fmt.Errorf("%w: payment amount must be positive", apperrors.ErrInvalidInput)
	ErrProofRefRequired  = fmt.Errorf("%w: payment proof reference required", apperrors.ErrInvalidInput)
	ErrUnknownStatus     = fmt.Errorf("%w: unknown booking status", apperrors.ErrInvalidInput)
	ErrBookingNotFound   = fmt.Errorf("booking: %w", apperrors.ErrNotFound)
	ErrOverpayment       = fmt.Errorf("booking: %w", apperrors.ErrOverpayment)
	ErrInvalidTransition = fmt.Errorf("booking: %w", apperrors.ErrInvalidTransition)
	ErrVersionConflict   = fmt.Errorf("booking: %w", apperrors.ErrConcurrentModification)

	ErrNoPaymentRecorded        = fmt.Errorf("%w: no payment recorded", ErrInvalidTransition)
	ErrProofNotVerified         = fmt.Errorf("%w: payment proof not verified", ErrInvalidTransition)
	ErrStayNotFinished          = fmt.Errorf("%w: check-out date has not passed", ErrInvalidTransition)
	ErrCancellationWindowClosed = fmt.Errorf("%w: cancellation window has closed", ErrInvalidTransition)
	ErrBookingClosed            = fmt.Errorf("%w: booking is closed", ErrInvalidTransition)
)

type BookingID string

type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusConfirmed      Status = "CONFIRMED"
	StatusCompleted      Status = "COMPLETED"
	StatusCancelled      Status = "CANCELLED"
)

// transitions is the complete table of legal status changes.
var transitions = map[Status][]Status{
	StatusPendingPayment: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusCompleted, StatusCancelled},
}

// ParseStatus validates a status received from a client.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusPendingPayment, StatusConfirmed, StatusCompleted, StatusCancelled:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

// CanTransition reports whether from -> to appears in the transition table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

type Booking struct {
	ID           BookingID
	GlampID      string
	AgentID      string
	CustomerName string
	Stay         daterange.DateRange
	Guests       int
	Status       Status
	Total        money.Money
	Paid         money.Money
	ProofRef     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int64
	events.EventRecorder
}

// Repository persists bookings. Save inserts a booking whose Version is zero and
// otherwise writes conditioned on the stored version still equalling Version.
// On success Version is incremented; a stale Version is ErrVersionConflict.
type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, booking *Booking) error
}

type CreateParams struct {
	ID           BookingID
	GlampID      string
	AgentID      string
	CustomerName string
	Stay         daterange.DateRange
	Guests       int
	Total        money.Money
	CreatedAt    time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(params.GlampID) == "" {
		return nil, ErrGlampRequired
	}
	if strings.TrimSpace(params.CustomerName) == "" {
		return nil, ErrCustomerRequired
	}
	if params.Guests <= 0 {
		return nil, ErrInvalidGuests
	}
	if err := params.Stay.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if err := params.Total.Validate(); err != nil {
		return nil, err
	}
	if params.Total.IsZero() {
		return nil, ErrInvalidTotal
	}
	paid, err := money.Zero(params.Total.Currency)
	if err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:           params.ID,
		GlampID:      strings.TrimSpace(params.GlampID),
		AgentID:      strings.TrimSpace(params.AgentID),
		CustomerName: strings.TrimSpace(params.CustomerName),
		Stay:         params.Stay,
		Guests:       params.Guests,
		Status:       StatusPendingPayment,
		Total:        params.Total,
		Paid:         paid,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	b.Record(BookingCreated{BookingID: b.ID, GlampID: b.GlampID, AgentID: b.AgentID, Total: b.Total, At: now})
	return b, nil
}

// Remaining is the outstanding balance, Total - Paid.
func (b *Booking) Remaining() money.Money {
	return money.Money{Amount: b.Total.Amount - b.Paid.Amount, Currency: b.Total.Currency}
}

func (b *Booking) HasAgent() bool {
	return b.AgentID != ""
}

// RecordPayment adds amount to Paid. Status is not changed; confirmation is a
// separate transition gated on proof verification.
func (b *Booking) RecordPayment(amount money.Money, proofRef string, now time.Time) error {
	if b.Status.Terminal() {
		return fmt.Errorf("%w: status %s", ErrBookingClosed, b.Status)
	}
	if err := amount.Validate(); err != nil {
		return err
	}
	if amount.IsZero() {
		return ErrInvalidPayment
	}
	proofRef = strings.TrimSpace(proofRef)
	if proofRef == "" {
		return ErrProofRefRequired
	}
	remaining := b.Remaining()
	cmp, err := remaining.Compare(amount)
	if err != nil {
		return err
	}
	if cmp < 0 {
		return fmt.Errorf("%w: payment %s exceeds remaining %s", ErrOverpayment, amount, remaining)
	}
	paid, err := b.Paid.Add(amount)
	if err != nil {
		return err
	}
	b.Paid = paid
	b.ProofRef = proofRef
	b.UpdatedAt = now.UTC()
	b.Record(PaymentRecorded{BookingID: b.ID, Amount: amount, Paid: b.Paid, Remaining: b.Remaining(), ProofRef: proofRef, At: b.UpdatedAt})
	return nil
}

// TransitionInput carries the externally decided facts a transition is gated on.
type TransitionInput struct {
	ProofVerified bool
	Override      bool
	Window        CancellationWindow
	Reason        string
	At            time.Time
}

// TransitionTo moves the booking to target if the table and the gates allow it.
func (b *Booking) TransitionTo(target Status, in TransitionInput) error {
	if !CanTransition(b.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, target)
	}
	switch target {
	case StatusConfirmed:
		return b.confirm(in.ProofVerified, in.At)
	case StatusCompleted:
		return b.complete(in.Override, in.At)
	case StatusCancelled:
		return b.cancel(in.Window, in.Reason, in.At)
	}
	return errors.New("booking: unreachable transition")
}

func (b *Booking) confirm(proofVerified bool, now time.Time) error {
	if b.Paid.IsZero() {
		return ErrNoPaymentRecorded
	}
	if b.ProofRef == "" || !proofVerified {
		return ErrProofNotVerified
	}
	b.Status = StatusConfirmed
	b.UpdatedAt = now.UTC()
	b.Record(BookingConfirmed{BookingID: b.ID, AgentID: b.AgentID, Total: b.Total, Paid: b.Paid, ProofRef: b.ProofRef, At: b.UpdatedAt})
	return nil
}

func (b *Booking) complete(override bool, now time.Time) error {
	if !override && !b.Stay.Ended(now) {
		return fmt.Errorf("%w: check-out %s", ErrStayNotFinished, b.Stay.CheckOut.Format(time.RFC3339))
	}
	b.Status = StatusCompleted
	b.UpdatedAt = now.UTC()
	b.Record(BookingCompleted{BookingID: b.ID, Override: override, At: b.UpdatedAt})
	return nil
}

func (b *Booking) cancel(window CancellationWindow, reason string, now time.Time) error {
	from := b.Status
	if from == StatusConfirmed && !window.Allows(b.Stay.CheckIn, now) {
		return fmt.Errorf("%w: deadline %s", ErrCancellationWindowClosed, window.Deadline(b.Stay.CheckIn).Format(time.RFC3339))
	}
	b.Status = StatusCancelled
	b.UpdatedAt = now.UTC()
	b.Record(BookingCancelled{BookingID: b.ID, From: from, Reason: strings.TrimSpace(reason), Paid: b.Paid, At: b.UpdatedAt})
	return nil
}
