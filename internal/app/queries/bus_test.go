package queries_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glampstay/internal/app/queries"
	"glampstay/internal/apperrors"
)

type ledgerQuery struct{ Agent string }

func (ledgerQuery) Key() string { return "test.ledger" }

type auditQuery struct{}

func (auditQuery) Key() string { return "test.audit" }

func TestAskRoutesAndReportsWiringFaults(t *testing.T) {
	ctx := context.Background()
	bus := queries.NewInMemoryBus()
	queries.RegisterHandler[ledgerQuery, []string](bus, "test.ledger", queries.HandlerFunc[ledgerQuery, []string](
		func(ctx context.Context, q ledgerQuery) ([]string, error) {
			return []string{q.Agent}, nil
		}))

	got, err := queries.Ask[ledgerQuery, []string](ctx, bus, ledgerQuery{Agent: "A1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, got)

	_, err = bus.Ask(ctx, auditQuery{})
	assert.ErrorIs(t, err, queries.ErrHandlerNotFound)
	assert.Equal(t, apperrors.CodeInternal, apperrors.Code(err))

	_, err = queries.Ask[ledgerQuery, string](ctx, bus, ledgerQuery{})
	assert.ErrorIs(t, err, queries.ErrResultType)

	assert.Panics(t, func() {
		queries.RegisterHandler[ledgerQuery, []string](bus, "test.ledger", queries.HandlerFunc[ledgerQuery, []string](
			func(context.Context, ledgerQuery) ([]string, error) { return nil, nil }))
	})
	assert.Equal(t, []string{"test.ledger"}, bus.Keys())
}
