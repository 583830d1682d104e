package directory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glampstay/internal/app/policies"
	"glampstay/internal/infra/directory"
)

func TestParseAgentRates(t *testing.T) {
	agents, err := directory.ParseAgentRates(" A1=10, A2=7.5 ,")
	require.NoError(t, err)
	assert.Equal(t, 2, agents.Len())

	rate, err := agents.CommissionRate(context.Background(), "A2")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("7.5")))

	_, err = agents.CommissionRate(context.Background(), "A9")
	assert.ErrorIs(t, err, policies.ErrUnknownAgent)

	for _, raw := range []string{"A1", "=5", "A1=ten", "A1=101", "A1=-1"} {
		_, err := directory.ParseAgentRates(raw)
		assert.Error(t, err, raw)
	}
}

func TestActorsAndCancellation(t *testing.T) {
	actors := directory.NewActors([]string{"fin-1", " "}, []string{"ops-1"})
	ok, err := actors.HasRole(context.Background(), "fin-1", policies.RoleFinance)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = actors.HasRole(context.Background(), "fin-1", policies.RoleOperator)
	assert.False(t, ok)
	ok, _ = actors.HasRole(context.Background(), "", policies.RoleFinance)
	assert.False(t, ok)

	window, err := directory.Cancellation{Cutoff: 48 * time.Hour}.Window(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, window.Cutoff)
}
