package settlement_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glampstay/internal/app/policies"
	"glampstay/internal/app/services/settlement"
	"glampstay/internal/app/uow"
	"glampstay/internal/apperrors"
	"glampstay/internal/domain/audit"
	"glampstay/internal/domain/booking"
	"glampstay/internal/domain/commission"
	"glampstay/internal/domain/shared/money"
	"glampstay/internal/infra/directory"
	"glampstay/internal/infra/proofs"
	"glampstay/internal/infra/storage/memory"
)

var (
	today    = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	checkIn  = time.Date(2026, 11, 1, 14, 0, 0, 0, time.UTC)
	checkOut = time.Date(2026, 11, 4, 11, 0, 0, 0, time.UTC)
)

type mutableRates struct {
	mu    sync.Mutex
	rates map[string]decimal.Decimal
}

func (m *mutableRates) set(agentID string, pct int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[agentID] = decimal.NewFromInt(pct)
}

func (m *mutableRates) CommissionRate(_ context.Context, agentID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pct, ok := m.rates[agentID]
	if !ok {
		return decimal.Decimal{}, policies.ErrUnknownAgent
	}
	return pct, nil
}

type fixture struct {
	svc    *settlement.Service
	store  *memory.Store
	proofs *proofs.Registry
	rates  *mutableRates
	clock  *atomic.Int64
	ids    *atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.NewStore(),
		proofs: proofs.NewRegistry(),
		rates:  &mutableRates{rates: map[string]decimal.Decimal{}},
		clock:  &atomic.Int64{},
		ids:    &atomic.Int64{},
	}
	f.rates.set("A1", 10)
	f.clock.Store(today.UnixNano())
	f.svc = &settlement.Service{
		UoW:          f.store,
		Proofs:       f.proofs,
		Agents:       f.rates,
		Actors:       directory.NewActors([]string{"fin-1"}, []string{"ops-1"}),
		Cancellation: directory.Cancellation{Cutoff: 48 * time.Hour},
		Now:          func() time.Time { return time.Unix(0, f.clock.Load()).UTC() },
		NewID:        func() string { return fmt.Sprintf("id-%d", f.ids.Add(1)) },
	}
	return f
}

func (f *fixture) setNow(t time.Time) {
	f.clock.Store(t.UnixNano())
}

func (f *fixture) create(t *testing.T, total int64, agentID string) *booking.Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), settlement.CreateBookingParams{
		GlampID:      "dome-7",
		AgentID:      agentID,
		CustomerName: "Sana Malik",
		CheckIn:      checkIn,
		CheckOut:     checkOut,
		Guests:       2,
		Total:        money.Must(total, "PKR"),
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) pay(t *testing.T, id booking.BookingID, amount int64, proofRef string) *booking.Booking {
	t.Helper()
	b, err := f.svc.RecordPayment(context.Background(), settlement.RecordPaymentParams{
		BookingID: id,
		Amount:    money.Must(amount, "PKR"),
		ProofRef:  proofRef,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) verify(t *testing.T, id booking.BookingID, proofRef string) {
	t.Helper()
	_, err := f.proofs.Apply(context.Background(), proofs.Review{
		EventID:   "review-" + string(id) + "-" + proofRef,
		BookingID: string(id),
		ProofRef:  proofRef,
		Verified:  true,
		DecidedAt: today,
	})
	require.NoError(t, err)
}

func (f *fixture) transition(id booking.BookingID, target booking.Status, actor string) (*settlement.TransitionResult, error) {
	return f.svc.TransitionBooking(context.Background(), settlement.TransitionParams{BookingID: id, Target: target, Actor: actor})
}

func (f *fixture) confirmed(t *testing.T, total, paid int64) (*booking.Booking, *commission.Commission) {
	t.Helper()
	b := f.create(t, total, "A1")
	f.pay(t, b.ID, paid, "rcpt-"+string(b.ID))
	f.verify(t, b.ID, "rcpt-"+string(b.ID))
	res, err := f.transition(b.ID, booking.StatusConfirmed, "admin-1")
	require.NoError(t, err)
	require.NotNil(t, res.Commission)
	return res.Booking, res.Commission
}

func (f *fixture) trail(t *testing.T, entityType, id string) []audit.Entry {
	t.Helper()
	entries, err := f.svc.AuditTrail(context.Background(), entityType, id)
	require.NoError(t, err)
	return entries
}

func assertAmountsBalance(t *testing.T, b *booking.Booking) {
	t.Helper()
	assert.Equal(t, b.Total.Amount, b.Paid.Amount+b.Remaining().Amount)
	assert.GreaterOrEqual(t, b.Paid.Amount, int64(0))
	assert.LessOrEqual(t, b.Paid.Amount, b.Total.Amount)
}

func TestSettlementScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.create(t, 2500000, "A1")
	assert.Equal(t, booking.StatusPendingPayment, b.Status)

	b = f.pay(t, b.ID, 1250000, "rcpt-77")
	assert.Equal(t, money.Must(1250000, "PKR"), b.Remaining())
	f.verify(t, b.ID, "rcpt-77")

	res, err := f.transition(b.ID, booking.StatusConfirmed, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, res.Booking.Status)
	require.NotNil(t, res.Commission)
	assert.Equal(t, money.Must(250000, "PKR"), res.Commission.Amount)
	assert.Equal(t, commission.StatusUnpaid, res.Commission.Status)
	assert.Equal(t, "A1", res.Commission.AgentID)

	f.setNow(today.Add(time.Hour))
	paid, err := f.svc.MarkCommissionPaid(ctx, res.Commission.ID, "fin-1")
	require.NoError(t, err)
	assert.Equal(t, commission.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, today.Add(time.Hour), *paid.PaidAt)
	assert.Equal(t, "fin-1", paid.PaidBy)

	f.setNow(today.Add(2 * time.Hour))
	again, err := f.svc.MarkCommissionPaid(ctx, res.Commission.ID, "fin-1")
	require.NoError(t, err)
	assert.Equal(t, paid.Status, again.Status)
	assert.Equal(t, *paid.PaidAt, *again.PaidAt)
	assert.Equal(t, paid.PaidBy, again.PaidBy)
	assert.Equal(t, paid.Amount, again.Amount)

	entries := f.trail(t, audit.EntityCommission, string(res.Commission.ID))
	require.Len(t, entries, 2)
	assert.Equal(t, "UNPAID", entries[0].ToState)
	assert.Equal(t, "UNPAID", entries[1].FromState)
	assert.Equal(t, "PAID", entries[1].ToState)
	assert.Equal(t, "fin-1", entries[1].Actor)

	var names []string
	for _, msg := range f.store.Pending() {
		names = append(names, msg.Name)
	}
	assert.Equal(t, []string{
		"booking.created",
		"booking.payment_recorded",
		"booking.confirmed",
		"commission.generated",
		"commission.paid",
	}, names)
}

func TestPaidPlusRemainingEqualsTotal(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, 500000, "")
	assertAmountsBalance(t, b)
	for _, amount := range []int64{1, 99999, 250000, 150000} {
		b = f.pay(t, b.ID, amount, "rcpt")
		assertAmountsBalance(t, b)
	}
	stored, err := f.svc.Booking(context.Background(), b.ID)
	require.NoError(t, err)
	assertAmountsBalance(t, stored)
	assert.True(t, stored.Remaining().IsZero())
}

func TestCommissionIsASnapshot(t *testing.T) {
	f := newFixture(t)
	b, c := f.confirmed(t, 500000, 100000)
	assert.Equal(t, money.Must(50000, "PKR"), c.Amount)
	assert.True(t, c.Rate.Equal(decimal.NewFromInt(10)))

	f.rates.set("A1", 25)
	f.pay(t, b.ID, 400000, "rcpt-final")

	stored, err := f.svc.Commission(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, money.Must(50000, "PKR"), stored.Amount)
	assert.True(t, stored.Rate.Equal(decimal.NewFromInt(10)))
}

func TestConfirmWithoutPaymentFails(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, 500000, "A1")

	_, err := f.transition(b.ID, booking.StatusConfirmed, "admin-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.ErrorIs(t, err, booking.ErrNoPaymentRecorded)

	stored, err := f.svc.Booking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPendingPayment, stored.Status)
	list, err := f.svc.AgentCommissions(context.Background(), "A1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConfirmRequiresVerifiedProof(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, 500000, "A1")
	f.pay(t, b.ID, 100000, "rcpt-1")

	_, err := f.transition(b.ID, booking.StatusConfirmed, "admin-1")
	assert.ErrorIs(t, err, booking.ErrProofNotVerified)

	// verification of an older receipt does not count for the latest one
	f.verify(t, b.ID, "rcpt-0")
	_, err = f.transition(b.ID, booking.StatusConfirmed, "admin-1")
	assert.ErrorIs(t, err, booking.ErrProofNotVerified)

	f.verify(t, b.ID, "rcpt-1")
	_, err = f.transition(b.ID, booking.StatusConfirmed, "admin-1")
	require.NoError(t, err)
}

func TestOverpaymentLeavesBookingUnchanged(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, 500000, "")

	_, err := f.svc.RecordPayment(context.Background(), settlement.RecordPaymentParams{
		BookingID: b.ID,
		Amount:    money.Must(600000, "PKR"),
		ProofRef:  "rcpt-1",
	})
	assert.ErrorIs(t, err, apperrors.ErrOverpayment)
	assert.Equal(t, apperrors.CodeOverpayment, apperrors.Code(err))

	stored, err := f.svc.Booking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, stored.Paid.IsZero())
	assert.Equal(t, b.Version, stored.Version)
	assert.Len(t, f.trail(t, audit.EntityBooking, string(b.ID)), 1)
}

func TestPaymentRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, 500000, "")

	_, err := f.svc.RecordPayment(ctx, settlement.RecordPaymentParams{BookingID: "missing", Amount: money.Must(1, "PKR"), ProofRef: "r"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.RecordPayment(ctx, settlement.RecordPaymentParams{BookingID: b.ID, Amount: money.Must(1, "USD"), ProofRef: "r"})
	assert.ErrorIs(t, err, money.ErrCurrencyMismatch)
}

func TestCancelledBookingIsTerminal(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, 500000, "A1")
	f.pay(t, b.ID, 100000, "rcpt-1")
	f.verify(t, b.ID, "rcpt-1")

	res, err := f.transition(b.ID, booking.StatusCancelled, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, res.Booking.Status)

	_, err = f.transition(b.ID, booking.StatusConfirmed, "admin-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = f.svc.RecordPayment(context.Background(), settlement.RecordPaymentParams{BookingID: b.ID, Amount: money.Must(1, "PKR"), ProofRef: "rcpt-2"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestCompletionNeedsCheckoutOrOperatorOverride(t *testing.T) {
	f := newFixture(t)
	b, _ := f.confirmed(t, 500000, 500000)

	_, err := f.transition(b.ID, booking.StatusCompleted, "admin-1")
	assert.ErrorIs(t, err, booking.ErrStayNotFinished)

	_, err = f.svc.TransitionBooking(context.Background(), settlement.TransitionParams{BookingID: b.ID, Target: booking.StatusCompleted, Actor: "admin-1", Override: true})
	assert.ErrorIs(t, err, apperrors.ErrAuthorizationDenied)

	res, err := f.svc.TransitionBooking(context.Background(), settlement.TransitionParams{BookingID: b.ID, Target: booking.StatusCompleted, Actor: "ops-1", Override: true, Reason: "early departure"})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, res.Booking.Status)

	entries := f.trail(t, audit.EntityBooking, string(b.ID))
	last := entries[len(entries)-1]
	assert.Equal(t, "CONFIRMED", last.FromState)
	assert.Equal(t, "COMPLETED", last.ToState)
	assert.Equal(t, "operator-override: early departure", last.Note)
	assert.Equal(t, "ops-1", last.Actor)

	other, _ := f.confirmed(t, 500000, 500000)
	f.setNow(checkOut)
	res, err = f.transition(other.ID, booking.StatusCompleted, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, res.Booking.Status)
}

func TestCancelConfirmedBookingWithinWindow(t *testing.T) {
	f := newFixture(t)
	b, c := f.confirmed(t, 500000, 100000)

	f.setNow(checkIn.Add(-47 * time.Hour))
	_, err := f.transition(b.ID, booking.StatusCancelled, "admin-1")
	assert.ErrorIs(t, err, booking.ErrCancellationWindowClosed)

	f.setNow(checkIn.Add(-72 * time.Hour))
	res, err := f.transition(b.ID, booking.StatusCancelled, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, res.Booking.Status)

	stored, err := f.svc.Commission(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, commission.StatusUnpaid, stored.Status)
}

func TestStaleExpectedVersionIsRejected(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, 500000, "")
	stale := b.Version
	f.pay(t, b.ID, 1000, "rcpt-1")

	_, err := f.svc.TransitionBooking(context.Background(), settlement.TransitionParams{
		BookingID:       b.ID,
		Target:          booking.StatusCancelled,
		Actor:           "admin-1",
		ExpectedVersion: &stale,
	})
	assert.ErrorIs(t, err, apperrors.ErrConcurrentModification)
	assert.Equal(t, apperrors.CodeConcurrentModification, apperrors.Code(err))
}

func TestMarkPaidConcurrentlyConvergesToOneTransition(t *testing.T) {
	f := newFixture(t)
	_, c := f.confirmed(t, 2500000, 1250000)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(actor string) {
			defer wg.Done()
			got, err := f.svc.MarkCommissionPaid(context.Background(), c.ID, actor)
			if err == nil && got.Status != commission.StatusPaid {
				err = fmt.Errorf("status %s", got.Status)
			}
			errs <- err
		}(fmt.Sprintf("fin-%d", i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	var paidEntries int
	for _, e := range f.trail(t, audit.EntityCommission, string(c.ID)) {
		if e.ToState == "PAID" {
			paidEntries++
		}
	}
	assert.Equal(t, 1, paidEntries)
}

// staleFactory hands out units whose first commission read reports UNPAID,
// reproducing a request that lost the race to a concurrent markPaid.
type staleFactory struct {
	*memory.Store
	stale atomic.Bool
}

func (f *staleFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.Store.Begin(ctx, opts)
	if err != nil || opts.ReadOnly || !f.stale.CompareAndSwap(true, false) {
		return unit, err
	}
	return staleUnit{UnitOfWork: unit}, nil
}

type staleUnit struct{ uow.UnitOfWork }

func (u staleUnit) Commissions() commission.Repository {
	return staleCommissions{Repository: u.UnitOfWork.Commissions()}
}

type staleCommissions struct{ commission.Repository }

func (r staleCommissions) ByID(ctx context.Context, id commission.CommissionID) (*commission.Commission, error) {
	c, err := r.Repository.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Status = commission.StatusUnpaid
	c.PaidAt = nil
	c.PaidBy = ""
	return c, nil
}

func TestMarkPaidLosingRaceReturnsCurrentState(t *testing.T) {
	f := newFixture(t)
	_, c := f.confirmed(t, 500000, 100000)
	first, err := f.svc.MarkCommissionPaid(context.Background(), c.ID, "fin-1")
	require.NoError(t, err)

	factory := &staleFactory{Store: f.store}
	factory.stale.Store(true)
	f.svc.UoW = factory

	got, err := f.svc.MarkCommissionPaid(context.Background(), c.ID, "fin-2")
	require.NoError(t, err)
	assert.Equal(t, commission.StatusPaid, got.Status)
	assert.Equal(t, "fin-1", got.PaidBy)
	assert.Equal(t, *first.PaidAt, *got.PaidAt)
	assert.Len(t, f.trail(t, audit.EntityCommission, string(c.ID)), 2)
}

func TestMarkUnpaidIsRestrictedAndAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, c := f.confirmed(t, 500000, 100000)
	_, err := f.svc.MarkCommissionPaid(ctx, c.ID, "fin-1")
	require.NoError(t, err)

	_, err = f.svc.MarkCommissionUnpaid(ctx, c.ID, "agent-1")
	assert.ErrorIs(t, err, apperrors.ErrAuthorizationDenied)
	assert.Equal(t, apperrors.CodeAuthorizationDenied, apperrors.Code(err))

	got, err := f.svc.MarkCommissionUnpaid(ctx, c.ID, "fin-1")
	require.NoError(t, err)
	assert.Equal(t, commission.StatusUnpaid, got.Status)
	assert.Nil(t, got.PaidAt)

	entries := f.trail(t, audit.EntityCommission, string(c.ID))
	require.Len(t, entries, 3)
	assert.Equal(t, "PAID", entries[2].FromState)
	assert.Equal(t, "UNPAID", entries[2].ToState)
	assert.Equal(t, "fin-1", entries[2].Actor)

	_, err = f.svc.MarkCommissionPaid(ctx, "missing", "fin-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// failingFactory rejects commission inserts to prove confirmation is atomic.
type failingFactory struct{ *memory.Store }

func (f failingFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.Store.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return failingUnit{UnitOfWork: unit}, nil
}

type failingUnit struct{ uow.UnitOfWork }

func (u failingUnit) Commissions() commission.Repository {
	return failingCommissions{Repository: u.UnitOfWork.Commissions()}
}

type failingCommissions struct{ commission.Repository }

func (failingCommissions) Insert(context.Context, *commission.Commission) error {
	return fmt.Errorf("disk full")
}

func TestConfirmationAndCommissionAreAtomic(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, 500000, "A1")
	f.pay(t, b.ID, 100000, "rcpt-1")
	f.verify(t, b.ID, "rcpt-1")
	before := len(f.store.Pending())

	f.svc.UoW = failingFactory{Store: f.store}
	_, err := f.transition(b.ID, booking.StatusConfirmed, "admin-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInternal, apperrors.Code(err))

	f.svc.UoW = f.store
	stored, err := f.svc.Booking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPendingPayment, stored.Status)
	assert.Len(t, f.store.Pending(), before)
	assert.Len(t, f.trail(t, audit.EntityBooking, string(b.ID)), 2)

	res, err := f.transition(b.ID, booking.StatusConfirmed, "admin-1")
	require.NoError(t, err)
	require.NotNil(t, res.Commission)
}

func TestCreateBookingRejectsUnknownAgent(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateBooking(context.Background(), settlement.CreateBookingParams{
		GlampID:      "dome-7",
		AgentID:      "A404",
		CustomerName: "Sana Malik",
		CheckIn:      checkIn,
		CheckOut:     checkOut,
		Guests:       2,
		Total:        money.Must(500000, "PKR"),
	})
	assert.ErrorIs(t, err, policies.ErrUnknownAgent)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.Code(err))
}

func TestBookingWithoutAgentGeneratesNoCommission(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, 500000, "")
	f.pay(t, b.ID, 100000, "rcpt-1")
	f.verify(t, b.ID, "rcpt-1")

	res, err := f.transition(b.ID, booking.StatusConfirmed, "admin-1")
	require.NoError(t, err)
	assert.Nil(t, res.Commission)
}

func TestAuditTrailOfUnknownEntityIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AuditTrail(context.Background(), audit.EntityBooking, "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
