package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"glampstay/internal/app/outbox"
	"glampstay/internal/app/policies"
	"glampstay/internal/app/uow"
	"glampstay/internal/apperrors"
	"glampstay/internal/domain/audit"
	"glampstay/internal/domain/booking"
	"glampstay/internal/domain/commission"
	"glampstay/internal/domain/shared/daterange"
	"glampstay/internal/domain/shared/events"
	"glampstay/internal/domain/shared/money"
)

const (
	intakeActor  = "booking-intake"
	paymentActor = "payment-intake"
)

var (
	ErrServiceMisconfigured = errors.New("settlement: service dependencies missing")
	ErrFinanceRoleRequired  = fmt.Errorf("%w: finance role required", apperrors.ErrAuthorizationDenied)
	ErrOperatorRoleRequired = fmt.Errorf("%w: operator role required for override", apperrors.ErrAuthorizationDenied)
	ErrStaleVersion         = fmt.Errorf("%w: booking changed since it was read", booking.ErrVersionConflict)
)

// Recorder receives one observation per finished operation.
type Recorder interface {
	ObserveOperation(op, outcome string, elapsed time.Duration)
}

// Service performs every mutation of bookings and commissions. Each operation
// runs in one unit of work: the unit found in ctx, or one it begins and commits.
type Service struct {
	UoW          uow.UoWFactory
	Proofs       policies.ProofVerifier
	Agents       policies.AgentDirectory
	Actors       policies.ActorDirectory
	Cancellation policies.CancellationPolicy
	Encoder      outbox.EventEncoder
	Metrics      Recorder
	Logger       *slog.Logger
	Now          func() time.Time
	NewID        func() string
}

type CreateBookingParams struct {
	GlampID      string
	AgentID      string
	CustomerName string
	CheckIn      time.Time
	CheckOut     time.Time
	Guests       int
	Total        money.Money
	Actor        string
}

type RecordPaymentParams struct {
	BookingID booking.BookingID
	Amount    money.Money
	ProofRef  string
	Actor     string
}

type TransitionParams struct {
	BookingID       booking.BookingID
	Target          booking.Status
	Actor           string
	Override        bool
	Reason          string
	ExpectedVersion *int64
}

// TransitionResult carries the commission generated by a confirmation, if any.
type TransitionResult struct {
	Booking    *booking.Booking
	Commission *commission.Commission
}

func (s *Service) CreateBooking(ctx context.Context, params CreateBookingParams) (_ *booking.Booking, err error) {
	defer s.observe("create_booking", time.Now(), &err)
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	stay, err := daterange.New(params.CheckIn, params.CheckOut)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	agentID := strings.TrimSpace(params.AgentID)
	if agentID != "" {
		if _, err := s.Agents.CommissionRate(ctx, agentID); err != nil {
			return nil, err
		}
	}
	b, err := booking.NewBooking(booking.CreateParams{
		ID:           booking.BookingID(s.newID()),
		GlampID:      params.GlampID,
		AgentID:      agentID,
		CustomerName: params.CustomerName,
		Stay:         stay,
		Guests:       params.Guests,
		Total:        params.Total,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return nil, err
	}
	actor := actorOr(params.Actor, intakeActor)
	err = s.withUnit(ctx, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		if err := s.appendAudit(ctx, unit, audit.Entry{
			EntityType: audit.EntityBooking,
			EntityID:   string(b.ID),
			ToState:    string(b.Status),
			Actor:      actor,
			Note:       "created total " + b.Total.String(),
			At:         b.CreatedAt,
		}); err != nil {
			return err
		}
		return s.publish(ctx, unit, b.Drain())
	})
	if err != nil {
		return nil, err
	}
	s.logger().Info("booking created", "booking_id", b.ID, "agent_id", b.AgentID, "total", b.Total.String(), "actor", actor)
	return b, nil
}

// RecordPayment adds a verified-later payment to the booking. The status is unchanged.
func (s *Service) RecordPayment(ctx context.Context, params RecordPaymentParams) (_ *booking.Booking, err error) {
	defer s.observe("record_payment", time.Now(), &err)
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	actor := actorOr(params.Actor, paymentActor)
	var updated *booking.Booking
	err = s.withUnit(ctx, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, params.BookingID)
		if err != nil {
			return err
		}
		if err := b.RecordPayment(params.Amount, params.ProofRef, s.now()); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		if err := s.appendAudit(ctx, unit, audit.Entry{
			EntityType: audit.EntityBooking,
			EntityID:   string(b.ID),
			FromState:  string(b.Status),
			ToState:    string(b.Status),
			Actor:      actor,
			Note:       fmt.Sprintf("payment %s proof %s", params.Amount, b.ProofRef),
			At:         b.UpdatedAt,
		}); err != nil {
			return err
		}
		if err := s.publish(ctx, unit, b.Drain()); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		s.logRejection("payment rejected", err, "booking_id", params.BookingID, "amount", params.Amount.String())
		return nil, err
	}
	s.logger().Info("payment recorded", "booking_id", updated.ID, "amount", params.Amount.String(), "paid", updated.Paid.String(), "remaining", updated.Remaining().String(), "actor", actor)
	return updated, nil
}

// TransitionBooking moves a booking through the status table. Entering
// CONFIRMED with an agent attached generates the agent's commission in the
// same unit of work.
func (s *Service) TransitionBooking(ctx context.Context, params TransitionParams) (_ *TransitionResult, err error) {
	defer s.observe("transition_booking", time.Now(), &err)
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	actor := strings.TrimSpace(params.Actor)
	if actor == "" {
		return nil, fmt.Errorf("%w: actor required", apperrors.ErrAuthorizationDenied)
	}
	if params.Override {
		if params.Target != booking.StatusCompleted {
			return nil, fmt.Errorf("%w: override applies to completion only", apperrors.ErrInvalidInput)
		}
		if err := s.requireRole(ctx, actor, policies.RoleOperator, ErrOperatorRoleRequired); err != nil {
			return nil, err
		}
	}

	// Collaborators are consulted against a snapshot read outside the write
	// unit; the write unit then requires that snapshot to still be current.
	snapshot, err := s.Booking(ctx, params.BookingID)
	if err != nil {
		return nil, err
	}
	if params.ExpectedVersion != nil && *params.ExpectedVersion != snapshot.Version {
		return nil, ErrStaleVersion
	}
	input := booking.TransitionInput{Override: params.Override, Reason: params.Reason}
	var rate *commissionRate
	switch {
	case params.Target == booking.StatusConfirmed && snapshot.Status == booking.StatusPendingPayment:
		if snapshot.ProofRef != "" {
			verified, err := s.Proofs.Verified(ctx, string(snapshot.ID), snapshot.ProofRef)
			if err != nil {
				return nil, err
			}
			input.ProofVerified = verified
		}
		if snapshot.HasAgent() {
			pct, err := s.Agents.CommissionRate(ctx, snapshot.AgentID)
			if err != nil {
				return nil, err
			}
			rate = &commissionRate{agentID: snapshot.AgentID, percent: pct}
		}
	case params.Target == booking.StatusCancelled && snapshot.Status == booking.StatusConfirmed:
		window, err := s.Cancellation.Window(ctx, snapshot)
		if err != nil {
			return nil, err
		}
		input.Window = window
	}

	result := &TransitionResult{}
	var from booking.Status
	err = s.withUnit(ctx, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, params.BookingID)
		if err != nil {
			return err
		}
		if b.Version != snapshot.Version {
			return ErrStaleVersion
		}
		from = b.Status
		input.At = s.now()
		if err := b.TransitionTo(params.Target, input); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		note := strings.TrimSpace(params.Reason)
		if params.Override {
			note = joinNote(audit.NoteOperatorOverride, note)
		}
		if err := s.appendAudit(ctx, unit, audit.Entry{
			EntityType: audit.EntityBooking,
			EntityID:   string(b.ID),
			FromState:  string(from),
			ToState:    string(b.Status),
			Actor:      actor,
			Note:       note,
			At:         b.UpdatedAt,
		}); err != nil {
			return err
		}
		if err := s.publish(ctx, unit, b.Drain()); err != nil {
			return err
		}
		result.Booking = b
		if b.Status != booking.StatusConfirmed || rate == nil {
			return nil
		}
		generated, err := s.generateCommission(ctx, unit, b, *rate, actor)
		if err != nil {
			return err
		}
		result.Commission = generated
		return nil
	})
	if err != nil {
		s.logRejection("booking transition rejected", err, "booking_id", params.BookingID, "target", params.Target, "actor", actor)
		return nil, err
	}
	s.logger().Info("booking transitioned", "booking_id", result.Booking.ID, "from", from, "to", result.Booking.Status, "override", params.Override, "actor", actor)
	if result.Commission != nil {
		s.logger().Info("commission generated", "commission_id", result.Commission.ID, "booking_id", result.Booking.ID, "agent_id", result.Commission.AgentID, "amount", result.Commission.Amount.String())
	}
	return result, nil
}

type commissionRate struct {
	agentID string
	percent decimal.Decimal
}

// generateCommission creates the booking's commission unless the pair already
// has one, which keeps a retried confirmation from producing a second record.
func (s *Service) generateCommission(ctx context.Context, unit uow.UnitOfWork, b *booking.Booking, rate commissionRate, actor string) (*commission.Commission, error) {
	existing, err := unit.Commissions().ByBookingAndAgent(ctx, string(b.ID), rate.agentID)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}
	c, err := commission.Generate(commission.GenerateParams{
		ID:        commission.CommissionID(s.newID()),
		BookingID: string(b.ID),
		AgentID:   rate.agentID,
		Total:     b.Total,
		Rate:      rate.percent,
		At:        b.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Commissions().Insert(ctx, c); err != nil {
		return nil, err
	}
	if err := s.appendAudit(ctx, unit, audit.Entry{
		EntityType: audit.EntityCommission,
		EntityID:   string(c.ID),
		ToState:    string(c.Status),
		Actor:      actor,
		Note:       fmt.Sprintf("generated %s at %s%% of %s", c.Amount, c.Rate.String(), b.Total),
		At:         c.GeneratedAt,
	}); err != nil {
		return nil, err
	}
	if err := s.publish(ctx, unit, c.Drain()); err != nil {
		return nil, err
	}
	return c, nil
}

// MarkCommissionPaid is idempotent: a commission that is already PAID is
// returned unchanged and no audit entry is written.
func (s *Service) MarkCommissionPaid(ctx context.Context, id commission.CommissionID, actor string) (_ *commission.Commission, err error) {
	defer s.observe("mark_commission_paid", time.Now(), &err)
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	return s.settleCommission(ctx, id, actor, commission.StatusPaid)
}

// MarkCommissionUnpaid reverses a payment and is restricted to finance actors.
func (s *Service) MarkCommissionUnpaid(ctx context.Context, id commission.CommissionID, actor string) (_ *commission.Commission, err error) {
	defer s.observe("mark_commission_unpaid", time.Now(), &err)
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, actor, policies.RoleFinance, ErrFinanceRoleRequired); err != nil {
		return nil, err
	}
	return s.settleCommission(ctx, id, actor, commission.StatusUnpaid)
}

func (s *Service) settleCommission(ctx context.Context, id commission.CommissionID, actor string, target commission.Status) (*commission.Commission, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, fmt.Errorf("%w: actor required", apperrors.ErrAuthorizationDenied)
	}
	_, ambient := uow.FromContext(ctx)
	var (
		settled *commission.Commission
		changed bool
		from    commission.Status
	)
	err := s.withUnit(ctx, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		c, err := unit.Commissions().ByID(ctx, id)
		if err != nil {
			return err
		}
		from = c.Status
		now := s.now()
		if target == commission.StatusPaid {
			changed, err = c.MarkPaid(actor, now)
		} else {
			changed, err = c.MarkUnpaid(actor, now)
		}
		if err != nil {
			return err
		}
		settled = c
		if !changed {
			return nil
		}
		if err := unit.Commissions().UpdateStatus(ctx, c, from); err != nil {
			return err
		}
		if err := s.appendAudit(ctx, unit, audit.Entry{
			EntityType: audit.EntityCommission,
			EntityID:   string(c.ID),
			FromState:  string(from),
			ToState:    string(c.Status),
			Actor:      actor,
			At:         c.UpdatedAt,
		}); err != nil {
			return err
		}
		return s.publish(ctx, unit, c.Drain())
	})
	if errors.Is(err, apperrors.ErrConcurrentModification) && !ambient {
		// Another request committed first. If it reached the same state this
		// request is a duplicate and succeeds without a second audit entry.
		current, readErr := s.Commission(ctx, id)
		if readErr == nil && current.Status == target {
			s.logger().Debug("commission already settled by concurrent request", "commission_id", id, "status", target, "actor", actor)
			return current, nil
		}
	}
	if err != nil {
		s.logRejection("commission update rejected", err, "commission_id", id, "target", target, "actor", actor)
		return nil, err
	}
	if changed {
		s.logger().Info("commission status changed", "commission_id", settled.ID, "from", from, "to", settled.Status, "actor", actor)
	}
	return settled, nil
}

func (s *Service) Booking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	var out *booking.Booking
	err := s.withUnit(ctx, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, id)
		out = b
		return err
	})
	return out, err
}

func (s *Service) Commission(ctx context.Context, id commission.CommissionID) (*commission.Commission, error) {
	var out *commission.Commission
	err := s.withUnit(ctx, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		c, err := unit.Commissions().ByID(ctx, id)
		out = c
		return err
	})
	return out, err
}

func (s *Service) AgentCommissions(ctx context.Context, agentID string) ([]*commission.Commission, error) {
	var out []*commission.Commission
	err := s.withUnit(ctx, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		list, err := unit.Commissions().ListByAgent(ctx, strings.TrimSpace(agentID))
		out = list
		return err
	})
	return out, err
}

// AuditTrail returns the entity's entries oldest first. An entity without
// entries does not exist, since creation always writes one.
func (s *Service) AuditTrail(ctx context.Context, entityType, entityID string) ([]audit.Entry, error) {
	var out []audit.Entry
	err := s.withUnit(ctx, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		entries, err := unit.Audit().ListByEntity(ctx, entityType, entityID)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("%s %s: %w", entityType, entityID, apperrors.ErrNotFound)
		}
		out = entries
		return nil
	})
	return out, err
}

func (s *Service) withUnit(ctx context.Context, opts uow.TxOptions, fn func(ctx context.Context, unit uow.UnitOfWork) error) error {
	if unit, ok := uow.FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	if s.UoW == nil {
		return ErrServiceMisconfigured
	}
	unit, err := s.UoW.Begin(ctx, opts)
	if err != nil {
		return err
	}
	execCtx := uow.Bind(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()
	if err := fn(execCtx, unit); err != nil {
		return err
	}
	if opts.ReadOnly {
		return nil
	}
	if err := unit.Commit(execCtx); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Service) appendAudit(ctx context.Context, unit uow.UnitOfWork, entry audit.Entry) error {
	entry.ID = s.newID()
	if entry.At.IsZero() {
		entry.At = s.now()
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	return unit.Audit().Append(ctx, entry)
}

func (s *Service) publish(ctx context.Context, unit uow.UnitOfWork, evs []events.DomainEvent) error {
	return outbox.RecordDomainEvents(ctx, unit.Outbox(), s.Encoder, evs)
}

func (s *Service) requireRole(ctx context.Context, actor string, role policies.Role, denied error) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return fmt.Errorf("%w: actor required", apperrors.ErrAuthorizationDenied)
	}
	ok, err := s.Actors.HasRole(ctx, actor, role)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: actor %q", denied, actor)
	}
	return nil
}

func (s *Service) ensureDependencies() error {
	if s.UoW == nil || s.Proofs == nil || s.Agents == nil || s.Actors == nil || s.Cancellation == nil {
		return ErrServiceMisconfigured
	}
	return nil
}

func (s *Service) observe(op string, started time.Time, err *error) {
	if s.Metrics == nil {
		return
	}
	outcome := "ok"
	if *err != nil {
		outcome = apperrors.Code(*err)
	}
	s.Metrics.ObserveOperation(op, outcome, time.Since(started))
}

// logRejection keeps expected rejections quiet and reports storage failures loudly.
func (s *Service) logRejection(msg string, err error, attrs ...any) {
	attrs = append(attrs, "error", err)
	if apperrors.IsRecoverable(err) {
		s.logger().Debug(msg, attrs...)
		return
	}
	s.logger().Error(msg, attrs...)
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func actorOr(actor, fallback string) string {
	if trimmed := strings.TrimSpace(actor); trimmed != "" {
		return trimmed
	}
	return fallback
}

func joinNote(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ": ")
}
