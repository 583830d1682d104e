package commission_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glampstay/internal/domain/commission"
	"glampstay/internal/domain/shared/money"
)

var generatedAt = time.Date(2026, 10, 2, 10, 0, 0, 0, time.UTC)

func generate(t *testing.T, total int64, rate string) *commission.Commission {
	t.Helper()
	c, err := commission.Generate(commission.GenerateParams{
		ID:        "cm-1",
		BookingID: "bk-1",
		AgentID:   "A1",
		Total:     money.Must(total, "PKR"),
		Rate:      decimal.RequireFromString(rate),
		At:        generatedAt,
	})
	require.NoError(t, err)
	return c
}

func TestGenerate(t *testing.T) {
	c := generate(t, 500000, "10")
	assert.Equal(t, money.Must(50000, "PKR"), c.Amount)
	assert.Equal(t, commission.StatusUnpaid, c.Status)
	assert.Nil(t, c.PaidAt)
	assert.Equal(t, generatedAt, c.GeneratedAt)
	require.Len(t, c.PendingEvents(), 1)
	assert.Equal(t, "commission.generated", c.PendingEvents()[0].EventName())

	_, err := commission.Generate(commission.GenerateParams{Total: money.Must(1, "PKR"), Rate: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, commission.ErrAgentRequired)

	_, err = commission.Generate(commission.GenerateParams{AgentID: "A1", Total: money.Must(1, "PKR"), Rate: decimal.NewFromInt(-10)})
	assert.ErrorIs(t, err, money.ErrInvalidRate)
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	c := generate(t, 2500000, "10")
	c.Drain()
	paidAt := generatedAt.Add(24 * time.Hour)

	changed, err := c.MarkPaid("fin-1", paidAt)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, commission.StatusPaid, c.Status)
	require.NotNil(t, c.PaidAt)
	assert.Equal(t, paidAt, *c.PaidAt)
	assert.Equal(t, "fin-1", c.PaidBy)

	changed, err = c.MarkPaid("fin-2", paidAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "fin-1", c.PaidBy)
	assert.Equal(t, paidAt, *c.PaidAt)
	assert.Len(t, c.PendingEvents(), 1)
}

func TestMarkUnpaid(t *testing.T) {
	c := generate(t, 2500000, "10")

	changed, err := c.MarkUnpaid("fin-1", generatedAt)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = c.MarkPaid("fin-1", generatedAt)
	require.NoError(t, err)
	changed, err = c.MarkUnpaid("fin-2", generatedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, commission.StatusUnpaid, c.Status)
	assert.Nil(t, c.PaidAt)
	assert.Empty(t, c.PaidBy)
	assert.Equal(t, money.Must(250000, "PKR"), c.Amount)

	_, err = c.MarkPaid(" ", generatedAt)
	assert.ErrorIs(t, err, commission.ErrActorRequired)
}

func TestParseStatus(t *testing.T) {
	s, err := commission.ParseStatus("paid")
	require.NoError(t, err)
	assert.Equal(t, commission.StatusPaid, s)

	_, err = commission.ParseStatus("SETTLED")
	assert.ErrorIs(t, err, commission.ErrUnknownStatus)
}
