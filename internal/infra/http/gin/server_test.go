package ginserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glampstay/internal/app/commands"
	"glampstay/internal/app/dto"
	settlementapp "glampstay/internal/app/handlers/settlement"
	"glampstay/internal/app/middleware"
	"glampstay/internal/app/queries"
	svc "glampstay/internal/app/services/settlement"
	"glampstay/internal/infra/directory"
	ginserver "glampstay/internal/infra/http/gin"
	"glampstay/internal/infra/obs"
	"glampstay/internal/infra/proofs"
	"glampstay/internal/infra/storage/memory"
)

var now = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

type testAPI struct {
	router http.Handler
	proofs *proofs.Registry
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	registry := proofs.NewRegistry()
	agents, err := directory.ParseAgentRates("A1=10")
	require.NoError(t, err)
	metrics := obs.NewMetrics()
	var seq atomic.Int64
	service := &svc.Service{
		UoW:          store,
		Proofs:       registry,
		Agents:       agents,
		Actors:       directory.NewActors([]string{"fin-1"}, []string{"ops-1"}),
		Cancellation: directory.Cancellation{Cutoff: 48 * time.Hour},
		Metrics:      metrics,
		Now:          func() time.Time { return now },
		NewID:        func() string { return fmt.Sprintf("id-%d", seq.Add(1)) },
	}

	commandBus := commands.NewInMemoryBus()
	settlementapp.RegisterCommands(commandBus, service)
	queryBus := queries.NewInMemoryBus()
	settlementapp.RegisterQueries(queryBus, service)
	validator := middleware.NewStructValidator()

	handler := ginserver.SettlementHandler{
		Commands: middleware.ChainCommands(commandBus,
			middleware.Validation(validator),
			middleware.Authorization(middleware.ActorRequired{}),
			middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil),
		),
		Queries: middleware.ChainQueries(queryBus,
			middleware.QueryValidation(validator),
			middleware.ReadOnlyTransaction(store),
		),
	}
	health := obs.HealthHandlers{Checks: map[string]obs.Check{"store": store.Ping}, Metrics: metrics}
	router := ginserver.NewRouter(obs.Middleware{Metrics: metrics}, health, ginserver.Handlers{Settlement: handler})
	return &testAPI{router: router, proofs: registry}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func money(amount int64) map[string]any {
	return map[string]any{"amountMinorUnits": amount, "currency": "PKR"}
}

func createBody(total int64) map[string]any {
	return map[string]any{
		"glampId":      "dome-7",
		"agentId":      "A1",
		"customerName": "Sana Malik",
		"checkInDate":  "2026-11-01T14:00:00Z",
		"checkOutDate": "2026-11-04T11:00:00Z",
		"guests":       2,
		"totalAmount":  money(total),
	}
}

func TestSettlementLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/bookings", createBody(2500000), map[string]string{"Idempotency-Key": "create-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dto.Booking](t, rec)
	assert.Equal(t, "PENDING_PAYMENT", created.Status)
	assert.Equal(t, int64(2500000), created.RemainingAmount.Amount)

	replayed := api.do(t, http.MethodPost, "/bookings", createBody(2500000), map[string]string{"Idempotency-Key": "create-1"})
	require.Equal(t, http.StatusCreated, replayed.Code)
	assert.Equal(t, created.ID, decode[dto.Booking](t, replayed).ID)

	rec = api.do(t, http.MethodPost, "/bookings/"+created.ID+"/payments", map[string]any{"amount": money(2500000), "proofRef": "rcpt-9"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decode[dto.Booking](t, rec)
	assert.True(t, paid.RemainingAmount.IsZero())

	_, err := api.proofs.Apply(context.Background(), proofs.Review{EventID: "review-1", BookingID: created.ID, ProofRef: "rcpt-9", Verified: true, DecidedAt: now})
	require.NoError(t, err)
	rec = api.do(t, http.MethodPatch, "/bookings/"+created.ID+"/status", map[string]any{"status": "CONFIRMED", "actor": "ops-1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[dto.TransitionResult](t, rec)
	assert.Equal(t, "CONFIRMED", result.Booking.Status)
	require.NotNil(t, result.Commission)
	assert.Equal(t, int64(250000), result.Commission.Amount.Amount)
	assert.Equal(t, "UNPAID", result.Commission.Status)

	rec = api.do(t, http.MethodPatch, "/commissions/"+result.Commission.ID, map[string]any{"status": "PAID", "actor": "fin-1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "PAID", decode[dto.Commission](t, rec).Status)

	rec = api.do(t, http.MethodGet, "/commissions/"+result.Commission.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fin-1", decode[dto.Commission](t, rec).PaidBy)

	rec = api.do(t, http.MethodGet, "/agents/A1/commissions", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[dto.CommissionCollection](t, rec).Items, 1)

	rec = api.do(t, http.MethodGet, "/bookings/"+created.ID+"/audit", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trail := decode[dto.AuditTrail](t, rec)
	require.Len(t, trail.Entries, 3)
	assert.Equal(t, "CONFIRMED", trail.Entries[2].ToState)
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/bookings", createBody(500000), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[dto.Booking](t, rec).ID

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"overpayment", http.MethodPost, "/bookings/" + id + "/payments", map[string]any{"amount": money(600000), "proofRef": "r"}, http.StatusUnprocessableEntity, "OverpaymentError"},
		{"negative amount", http.MethodPost, "/bookings/" + id + "/payments", map[string]any{"amount": money(-5), "proofRef": "r"}, http.StatusUnprocessableEntity, "NegativeAmount"},
		{"currency mismatch", http.MethodPost, "/bookings/" + id + "/payments", map[string]any{"amount": map[string]any{"amountMinorUnits": 100, "currency": "USD"}, "proofRef": "r"}, http.StatusUnprocessableEntity, "CurrencyMismatch"},
		{"confirm without payment", http.MethodPatch, "/bookings/" + id + "/status", map[string]any{"status": "CONFIRMED", "actor": "ops-1"}, http.StatusConflict, "InvalidTransition"},
		{"missing actor", http.MethodPatch, "/bookings/" + id + "/status", map[string]any{"status": "CANCELLED"}, http.StatusForbidden, "AuthorizationDenied"},
		{"unknown booking", http.MethodGet, "/bookings/nope", nil, http.StatusNotFound, "NotFound"},
		{"unknown commission", http.MethodPatch, "/commissions/nope", map[string]any{"status": "PAID", "actor": "fin-1"}, http.StatusNotFound, "NotFound"},
		{"unknown status", http.MethodPatch, "/bookings/" + id + "/status", map[string]any{"status": "ACCEPTED", "actor": "ops-1"}, http.StatusBadRequest, "InvalidInput"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := api.do(t, tc.method, tc.path, tc.body, nil)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, decode[map[string]string](t, rec)["code"])
		})
	}

	rec = api.do(t, http.MethodGet, "/bookings/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[dto.Booking](t, rec).AmountPaid.IsZero())
}

func TestActorHeaderAndHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/bookings", createBody(500000), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[dto.Booking](t, rec).ID

	rec = api.do(t, http.MethodPatch, "/bookings/"+id+"/status", map[string]any{"status": "CANCELLED"}, map[string]string{"X-Actor-ID": "ops-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CANCELLED", decode[dto.TransitionResult](t, rec).Booking.Status)

	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/livez", nil, nil).Code)
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/readyz", nil, nil).Code)
	metrics := api.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "glampstay_settlement_operations_total")
}
