package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"glampstay/internal/app/commands"
	"glampstay/internal/app/dto"
	settlementapp "glampstay/internal/app/handlers/settlement"
	"glampstay/internal/app/queries"
	"glampstay/internal/apperrors"
	"glampstay/internal/domain/audit"
	"glampstay/internal/domain/shared/money"
)

var errBusUnavailable = errors.New("settlement buses unavailable")

type SettlementHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	GlampID      string      `json:"glampId"`
	AgentID      string      `json:"agentId"`
	CustomerName string      `json:"customerName"`
	CheckInDate  time.Time   `json:"checkInDate"`
	CheckOutDate time.Time   `json:"checkOutDate"`
	Guests       int         `json:"guests"`
	TotalAmount  money.Money `json:"totalAmount"`
	Actor        string      `json:"actor"`
}

type recordPaymentRequest struct {
	Amount   money.Money `json:"amount"`
	ProofRef string      `json:"proofRef"`
	Actor    string      `json:"actor"`
}

type transitionRequest struct {
	Status          string `json:"status"`
	Actor           string `json:"actor"`
	Override        bool   `json:"override"`
	Reason          string `json:"reason"`
	ExpectedVersion *int64 `json:"expectedVersion"`
}

type commissionStatusRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

func (h SettlementHandler) CreateBooking(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	cmd := settlementapp.CreateBookingCommand{
		GlampID:         req.GlampID,
		AgentID:         req.AgentID,
		CustomerName:    req.CustomerName,
		CheckIn:         req.CheckInDate,
		CheckOut:        req.CheckOutDate,
		Guests:          req.Guests,
		Total:           req.TotalAmount,
		Actor:           resolveActor(c, req.Actor),
		IdempotencyKeyV: idempotencyKey(c),
	}
	result, err := commands.Dispatch[settlementapp.CreateBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h SettlementHandler) RecordPayment(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	cmd := settlementapp.RecordPaymentCommand{
		BookingID:       strings.TrimSpace(c.Param("id")),
		Amount:          req.Amount,
		ProofRef:        req.ProofRef,
		Actor:           resolveActor(c, req.Actor),
		IdempotencyKeyV: idempotencyKey(c),
	}
	result, err := commands.Dispatch[settlementapp.RecordPaymentCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SettlementHandler) TransitionBooking(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	cmd := settlementapp.TransitionBookingCommand{
		BookingID:       strings.TrimSpace(c.Param("id")),
		Status:          req.Status,
		Actor:           resolveActor(c, req.Actor),
		Override:        req.Override,
		Reason:          req.Reason,
		ExpectedVersion: req.ExpectedVersion,
	}
	result, err := commands.Dispatch[settlementapp.TransitionBookingCommand, *dto.TransitionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SettlementHandler) SetCommissionStatus(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req commissionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	cmd := settlementapp.SetCommissionStatusCommand{
		CommissionID:    strings.TrimSpace(c.Param("id")),
		Status:          req.Status,
		Actor:           resolveActor(c, req.Actor),
		IdempotencyKeyV: idempotencyKey(c),
	}
	result, err := commands.Dispatch[settlementapp.SetCommissionStatusCommand, *dto.Commission](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SettlementHandler) GetBooking(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	q := settlementapp.GetBookingQuery{BookingID: strings.TrimSpace(c.Param("id"))}
	result, err := queries.Ask[settlementapp.GetBookingQuery, *dto.Booking](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SettlementHandler) GetCommission(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	q := settlementapp.GetCommissionQuery{CommissionID: strings.TrimSpace(c.Param("id"))}
	result, err := queries.Ask[settlementapp.GetCommissionQuery, *dto.Commission](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SettlementHandler) BookingAudit(c *gin.Context) {
	h.auditTrail(c, audit.EntityBooking)
}

func (h SettlementHandler) CommissionAudit(c *gin.Context) {
	h.auditTrail(c, audit.EntityCommission)
}

func (h SettlementHandler) AgentCommissions(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	q := settlementapp.AgentCommissionsQuery{AgentID: strings.TrimSpace(c.Param("id"))}
	result, err := queries.Ask[settlementapp.AgentCommissionsQuery, *dto.CommissionCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SettlementHandler) auditTrail(c *gin.Context, entityType string) {
	if !h.ready(c) {
		return
	}
	q := settlementapp.AuditTrailQuery{EntityType: entityType, EntityID: strings.TrimSpace(c.Param("id"))}
	result, err := queries.Ask[settlementapp.AuditTrailQuery, *dto.AuditTrail](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SettlementHandler) ready(c *gin.Context) bool {
	if h.Commands == nil || h.Queries == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Code: apperrors.CodeInternal, Error: errBusUnavailable.Error()})
		return false
	}
	return true
}

func idempotencyKey(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("Idempotency-Key"))
}

var _ SettlementHTTP = SettlementHandler{}
