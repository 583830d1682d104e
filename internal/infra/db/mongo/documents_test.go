package mongo

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"glampstay/internal/apperrors"
	"glampstay/internal/domain/booking"
	"glampstay/internal/domain/commission"
	"glampstay/internal/domain/shared/daterange"
	"glampstay/internal/domain/shared/money"
	"glampstay/internal/infra/proofs"
)

func TestBookingDocumentKeepsMinorUnits(t *testing.T) {
	stay, err := daterange.New(time.Date(2026, 11, 1, 14, 0, 0, 0, time.UTC), time.Date(2026, 11, 4, 11, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	b, err := booking.NewBooking(booking.CreateParams{
		ID: "bk-1", GlampID: "dome-7", AgentID: "A1", CustomerName: "Sana Malik",
		Stay: stay, Guests: 2, Total: money.Must(2500000, "PKR"),
		CreatedAt: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, b.RecordPayment(money.Must(100050, "PKR"), "rcpt-1", b.CreatedAt))
	b.Version = 3

	got, err := newBookingDocument(b).toAggregate()
	require.NoError(t, err)
	assert.Equal(t, b.Total, got.Total)
	assert.Equal(t, b.Paid, got.Paid)
	assert.Equal(t, b.Stay, got.Stay)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, int64(2399950), got.Remaining().Amount)

	doc := newBookingDocument(b)
	doc.Paid.Amount = -1
	_, err = doc.toAggregate()
	assert.ErrorIs(t, err, money.ErrNegativeAmount)

	doc = newBookingDocument(b)
	doc.Status = "ACCEPTED"
	_, err = doc.toAggregate()
	assert.ErrorIs(t, err, booking.ErrUnknownStatus)
}

func TestCommissionDocumentKeepsRateAndPayment(t *testing.T) {
	at := time.Date(2026, 10, 2, 10, 0, 0, 0, time.UTC)
	c, err := commission.Generate(commission.GenerateParams{
		ID: "cm-1", BookingID: "bk-1", AgentID: "A1",
		Total: money.Must(500000, "PKR"), Rate: decimal.RequireFromString("12.5"), At: at,
	})
	require.NoError(t, err)
	_, err = c.MarkPaid("fin-1", at.Add(time.Hour))
	require.NoError(t, err)

	got, err := newCommissionDocument(c).toAggregate()
	require.NoError(t, err)
	assert.Equal(t, money.Must(62500, "PKR"), got.Amount)
	assert.True(t, got.Rate.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, commission.StatusPaid, got.Status)
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, at.Add(time.Hour), *got.PaidAt)
}

func TestTranslateConflicts(t *testing.T) {
	conflict := mongo.CommandError{Code: writeConflictCode, Message: "WriteConflict"}
	assert.ErrorIs(t, translate(conflict), apperrors.ErrConcurrentModification)

	labeled := mongo.CommandError{Code: 251, Labels: []string{transientTransactionLabel}}
	assert.ErrorIs(t, translate(labeled), apperrors.ErrConcurrentModification)

	writeConflict := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: writeConflictCode}}}
	assert.ErrorIs(t, translate(writeConflict), apperrors.ErrConcurrentModification)

	other := errors.New("socket closed")
	assert.Equal(t, other, translate(other))
	assert.NoError(t, translate(nil))
}

func TestReviewDocumentKeyedByReceipt(t *testing.T) {
	at := time.Date(2026, 10, 2, 15, 0, 0, 0, time.FixedZone("PKT", 5*3600))
	doc := newReviewDocument(proofs.Review{EventID: "e1", BookingID: "bk-1", ProofRef: "rcpt-1", Verified: true, DecidedAt: at})
	assert.Equal(t, "bk-1/rcpt-1", doc.ID)
	assert.Equal(t, reviewID("bk-1", "rcpt-1"), doc.ID)
	assert.True(t, doc.Verified)
	assert.Equal(t, time.UTC, doc.DecidedAt.Location())
	assert.True(t, doc.DecidedAt.Equal(at))
	assert.NotEqual(t, reviewID("bk-1", "rcpt-1"), reviewID("bk-2", "rcpt-1"))
}
