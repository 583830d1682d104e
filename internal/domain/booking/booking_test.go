package booking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glampstay/internal/apperrors"
	"glampstay/internal/domain/booking"
	"glampstay/internal/domain/shared/daterange"
	"glampstay/internal/domain/shared/money"
)

var (
	checkIn  = time.Date(2026, 11, 1, 14, 0, 0, 0, time.UTC)
	checkOut = time.Date(2026, 11, 4, 11, 0, 0, 0, time.UTC)
	created  = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
)

func newBooking(t *testing.T, total int64) *booking.Booking {
	t.Helper()
	stay, err := daterange.New(checkIn, checkOut)
	require.NoError(t, err)
	b, err := booking.NewBooking(booking.CreateParams{
		ID:           "bk-1",
		GlampID:      "dome-7",
		AgentID:      "A1",
		CustomerName: "Sana Malik",
		Stay:         stay,
		Guests:       2,
		Total:        money.Must(total, "PKR"),
		CreatedAt:    created,
	})
	require.NoError(t, err)
	return b
}

func TestNewBooking(t *testing.T) {
	b := newBooking(t, 500000)
	assert.Equal(t, booking.StatusPendingPayment, b.Status)
	assert.Equal(t, money.Must(0, "PKR"), b.Paid)
	assert.Equal(t, money.Must(500000, "PKR"), b.Remaining())
	require.Len(t, b.PendingEvents(), 1)
	assert.Equal(t, "booking.created", b.PendingEvents()[0].EventName())

	stay, _ := daterange.New(checkIn, checkOut)
	tests := []struct {
		name   string
		params booking.CreateParams
		want   error
	}{
		{name: "zero total", params: booking.CreateParams{GlampID: "g", CustomerName: "c", Guests: 1, Stay: stay, Total: money.Must(0, "PKR")}, want: booking.ErrInvalidTotal},
		{name: "no guests", params: booking.CreateParams{GlampID: "g", CustomerName: "c", Stay: stay, Total: money.Must(1, "PKR")}, want: booking.ErrInvalidGuests},
		{name: "no customer", params: booking.CreateParams{GlampID: "g", Guests: 1, Stay: stay, Total: money.Must(1, "PKR")}, want: booking.ErrCustomerRequired},
		{name: "no glamp", params: booking.CreateParams{CustomerName: "c", Guests: 1, Stay: stay, Total: money.Must(1, "PKR")}, want: booking.ErrGlampRequired},
		{name: "bad stay", params: booking.CreateParams{GlampID: "g", CustomerName: "c", Guests: 1, Total: money.Must(1, "PKR")}, want: apperrors.ErrInvalidInput},
		{name: "negative total", params: booking.CreateParams{GlampID: "g", CustomerName: "c", Guests: 1, Stay: stay, Total: money.Money{Amount: -5, Currency: "PKR"}}, want: money.ErrNegativeAmount},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := booking.NewBooking(tc.params)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRecordPayment(t *testing.T) {
	b := newBooking(t, 500000)
	now := created.Add(time.Hour)

	require.NoError(t, b.RecordPayment(money.Must(200000, "PKR"), "rcpt-1", now))
	assert.Equal(t, int64(200000), b.Paid.Amount)
	assert.Equal(t, int64(300000), b.Remaining().Amount)
	assert.Equal(t, "rcpt-1", b.ProofRef)
	assert.Equal(t, booking.StatusPendingPayment, b.Status)

	err := b.RecordPayment(money.Must(300001, "PKR"), "rcpt-2", now)
	assert.ErrorIs(t, err, booking.ErrOverpayment)
	assert.ErrorIs(t, err, apperrors.ErrOverpayment)
	assert.Equal(t, int64(200000), b.Paid.Amount)

	assert.ErrorIs(t, b.RecordPayment(money.Must(10, "USD"), "rcpt-3", now), money.ErrCurrencyMismatch)
	assert.ErrorIs(t, b.RecordPayment(money.Must(0, "PKR"), "rcpt-3", now), booking.ErrInvalidPayment)
	assert.ErrorIs(t, b.RecordPayment(money.Must(1, "PKR"), " ", now), booking.ErrProofRefRequired)

	require.NoError(t, b.RecordPayment(money.Must(300000, "PKR"), "rcpt-4", now))
	assert.True(t, b.Remaining().IsZero())
	assert.Equal(t, b.Total.Amount, b.Paid.Amount+b.Remaining().Amount)
}

func TestOverpaymentOnFreshBooking(t *testing.T) {
	b := newBooking(t, 500000)
	err := b.RecordPayment(money.Must(600000, "PKR"), "rcpt-1", created)
	assert.ErrorIs(t, err, booking.ErrOverpayment)
	assert.True(t, b.Paid.IsZero())
}

func TestConfirmGates(t *testing.T) {
	b := newBooking(t, 500000)
	now := created.Add(time.Hour)

	err := b.TransitionTo(booking.StatusConfirmed, booking.TransitionInput{ProofVerified: true, At: now})
	assert.ErrorIs(t, err, booking.ErrNoPaymentRecorded)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, booking.StatusPendingPayment, b.Status)

	require.NoError(t, b.RecordPayment(money.Must(100000, "PKR"), "rcpt-1", now))
	err = b.TransitionTo(booking.StatusConfirmed, booking.TransitionInput{ProofVerified: false, At: now})
	assert.ErrorIs(t, err, booking.ErrProofNotVerified)

	require.NoError(t, b.TransitionTo(booking.StatusConfirmed, booking.TransitionInput{ProofVerified: true, At: now}))
	assert.Equal(t, booking.StatusConfirmed, b.Status)
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from booking.Status
		to   booking.Status
		want bool
	}{
		{booking.StatusPendingPayment, booking.StatusConfirmed, true},
		{booking.StatusPendingPayment, booking.StatusCancelled, true},
		{booking.StatusPendingPayment, booking.StatusCompleted, false},
		{booking.StatusConfirmed, booking.StatusCompleted, true},
		{booking.StatusConfirmed, booking.StatusCancelled, true},
		{booking.StatusConfirmed, booking.StatusPendingPayment, false},
		{booking.StatusCompleted, booking.StatusCancelled, false},
		{booking.StatusCancelled, booking.StatusConfirmed, false},
		{booking.StatusCancelled, booking.StatusPendingPayment, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, booking.CanTransition(tc.from, tc.to))
		})
	}
	assert.True(t, booking.StatusCompleted.Terminal())
	assert.True(t, booking.StatusCancelled.Terminal())
	assert.False(t, booking.StatusConfirmed.Terminal())
}

func TestCancelledIsTerminal(t *testing.T) {
	b := newBooking(t, 500000)
	require.NoError(t, b.TransitionTo(booking.StatusCancelled, booking.TransitionInput{At: created}))

	err := b.TransitionTo(booking.StatusConfirmed, booking.TransitionInput{ProofVerified: true, At: created})
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
	assert.ErrorIs(t, b.RecordPayment(money.Must(1, "PKR"), "r", created), booking.ErrBookingClosed)
}

func TestCompleteRequiresCheckoutOrOverride(t *testing.T) {
	confirmed := func() *booking.Booking {
		b := newBooking(t, 500000)
		require.NoError(t, b.RecordPayment(money.Must(500000, "PKR"), "rcpt", created))
		require.NoError(t, b.TransitionTo(booking.StatusConfirmed, booking.TransitionInput{ProofVerified: true, At: created}))
		return b
	}

	b := confirmed()
	err := b.TransitionTo(booking.StatusCompleted, booking.TransitionInput{At: checkOut.Add(-time.Minute)})
	assert.ErrorIs(t, err, booking.ErrStayNotFinished)

	require.NoError(t, b.TransitionTo(booking.StatusCompleted, booking.TransitionInput{At: checkOut}))
	assert.Equal(t, booking.StatusCompleted, b.Status)

	b = confirmed()
	require.NoError(t, b.TransitionTo(booking.StatusCompleted, booking.TransitionInput{Override: true, At: checkIn}))
	events := b.PendingEvents()
	last := events[len(events)-1].(booking.BookingCompleted)
	assert.True(t, last.Override)
}

func TestCancelConfirmedWithinWindow(t *testing.T) {
	window := booking.CancellationWindow{Cutoff: 48 * time.Hour}
	confirmed := func() *booking.Booking {
		b := newBooking(t, 500000)
		require.NoError(t, b.RecordPayment(money.Must(100, "PKR"), "rcpt", created))
		require.NoError(t, b.TransitionTo(booking.StatusConfirmed, booking.TransitionInput{ProofVerified: true, At: created}))
		return b
	}

	b := confirmed()
	err := b.TransitionTo(booking.StatusCancelled, booking.TransitionInput{Window: window, At: checkIn.Add(-47 * time.Hour)})
	assert.ErrorIs(t, err, booking.ErrCancellationWindowClosed)
	assert.Equal(t, booking.StatusConfirmed, b.Status)

	b = confirmed()
	require.NoError(t, b.TransitionTo(booking.StatusCancelled, booking.TransitionInput{Window: window, Reason: "weather", At: checkIn.Add(-48 * time.Hour)}))
	assert.Equal(t, booking.StatusCancelled, b.Status)
}

func TestParseStatus(t *testing.T) {
	s, err := booking.ParseStatus(" confirmed ")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, s)

	_, err = booking.ParseStatus("ACCEPTED")
	assert.ErrorIs(t, err, booking.ErrUnknownStatus)
}
