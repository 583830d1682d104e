package settlement

import (
	"context"
	"time"

	"glampstay/internal/app/commands"
	"glampstay/internal/app/dto"
	"glampstay/internal/app/middleware"
	svc "glampstay/internal/app/services/settlement"
	"glampstay/internal/domain/booking"
	"glampstay/internal/domain/commission"
	"glampstay/internal/domain/shared/money"
)

const (
	CreateBookingKey       = "settlement.create_booking"
	RecordPaymentKey       = "settlement.record_payment"
	TransitionBookingKey   = "settlement.transition_booking"
	SetCommissionStatusKey = "settlement.set_commission_status"
)

type CreateBookingCommand struct {
	GlampID         string      `json:"glampId" validate:"required"`
	AgentID         string      `json:"agentId"`
	CustomerName    string      `json:"customerName" validate:"required"`
	CheckIn         time.Time   `json:"checkInDate" validate:"required"`
	CheckOut        time.Time   `json:"checkOutDate" validate:"required,gtfield=CheckIn"`
	Guests          int         `json:"guests" validate:"gte=1"`
	Total           money.Money `json:"totalAmount"`
	Actor           string      `json:"actor"`
	IdempotencyKeyV string      `json:"-"`
}

func (c CreateBookingCommand) Key() string            { return CreateBookingKey }
func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c CreateBookingCommand) ResultPrototype() any   { return &dto.Booking{} }

type RecordPaymentCommand struct {
	BookingID       string      `json:"bookingId" validate:"required"`
	Amount          money.Money `json:"amount"`
	ProofRef        string      `json:"proofRef" validate:"required"`
	Actor           string      `json:"actor"`
	IdempotencyKeyV string      `json:"-"`
}

func (c RecordPaymentCommand) Key() string            { return RecordPaymentKey }
func (c RecordPaymentCommand) TargetID() string       { return c.BookingID }
func (c RecordPaymentCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c RecordPaymentCommand) ResultPrototype() any   { return &dto.Booking{} }

type TransitionBookingCommand struct {
	BookingID       string `json:"bookingId" validate:"required"`
	Status          string `json:"status" validate:"required"`
	Actor           string `json:"actor"`
	Override        bool   `json:"override"`
	Reason          string `json:"reason" validate:"max=500"`
	ExpectedVersion *int64 `json:"expectedVersion" validate:"omitempty,gte=1"`
}

func (c TransitionBookingCommand) Key() string      { return TransitionBookingKey }
func (c TransitionBookingCommand) TargetID() string { return c.BookingID }
func (c TransitionBookingCommand) ActorID() string  { return c.Actor }

type SetCommissionStatusCommand struct {
	CommissionID    string `json:"commissionId" validate:"required"`
	Status          string `json:"status" validate:"required"`
	Actor           string `json:"actor"`
	IdempotencyKeyV string `json:"-"`
}

func (c SetCommissionStatusCommand) Key() string            { return SetCommissionStatusKey }
func (c SetCommissionStatusCommand) TargetID() string       { return c.CommissionID }
func (c SetCommissionStatusCommand) ActorID() string        { return c.Actor }
func (c SetCommissionStatusCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c SetCommissionStatusCommand) ResultPrototype() any   { return &dto.Commission{} }

type CreateBookingHandler struct {
	Service *svc.Service
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	b, err := h.Service.CreateBooking(ctx, svc.CreateBookingParams{
		GlampID:      cmd.GlampID,
		AgentID:      cmd.AgentID,
		CustomerName: cmd.CustomerName,
		CheckIn:      cmd.CheckIn,
		CheckOut:     cmd.CheckOut,
		Guests:       cmd.Guests,
		Total:        cmd.Total,
		Actor:        cmd.Actor,
	})
	if err != nil {
		return nil, err
	}
	return dto.BookingFrom(b), nil
}

type RecordPaymentHandler struct {
	Service *svc.Service
}

func (h *RecordPaymentHandler) Handle(ctx context.Context, cmd RecordPaymentCommand) (*dto.Booking, error) {
	b, err := h.Service.RecordPayment(ctx, svc.RecordPaymentParams{
		BookingID: booking.BookingID(cmd.BookingID),
		Amount:    cmd.Amount,
		ProofRef:  cmd.ProofRef,
		Actor:     cmd.Actor,
	})
	if err != nil {
		return nil, err
	}
	return dto.BookingFrom(b), nil
}

type TransitionBookingHandler struct {
	Service *svc.Service
}

func (h *TransitionBookingHandler) Handle(ctx context.Context, cmd TransitionBookingCommand) (*dto.TransitionResult, error) {
	target, err := booking.ParseStatus(cmd.Status)
	if err != nil {
		return nil, err
	}
	res, err := h.Service.TransitionBooking(ctx, svc.TransitionParams{
		BookingID:       booking.BookingID(cmd.BookingID),
		Target:          target,
		Actor:           cmd.Actor,
		Override:        cmd.Override,
		Reason:          cmd.Reason,
		ExpectedVersion: cmd.ExpectedVersion,
	})
	if err != nil {
		return nil, err
	}
	return &dto.TransitionResult{
		Booking:    dto.BookingFrom(res.Booking),
		Commission: dto.CommissionFrom(res.Commission),
	}, nil
}

type SetCommissionStatusHandler struct {
	Service *svc.Service
}

func (h *SetCommissionStatusHandler) Handle(ctx context.Context, cmd SetCommissionStatusCommand) (*dto.Commission, error) {
	target, err := commission.ParseStatus(cmd.Status)
	if err != nil {
		return nil, err
	}
	id := commission.CommissionID(cmd.CommissionID)
	var c *commission.Commission
	if target == commission.StatusPaid {
		c, err = h.Service.MarkCommissionPaid(ctx, id, cmd.Actor)
	} else {
		c, err = h.Service.MarkCommissionUnpaid(ctx, id, cmd.Actor)
	}
	if err != nil {
		return nil, err
	}
	return dto.CommissionFrom(c), nil
}

// RegisterCommands wires the settlement command handlers onto bus.
func RegisterCommands(bus *commands.InMemoryBus, service *svc.Service) {
	commands.RegisterHandler[CreateBookingCommand, *dto.Booking](bus, CreateBookingKey, &CreateBookingHandler{Service: service})
	commands.RegisterHandler[RecordPaymentCommand, *dto.Booking](bus, RecordPaymentKey, &RecordPaymentHandler{Service: service})
	commands.RegisterHandler[TransitionBookingCommand, *dto.TransitionResult](bus, TransitionBookingKey, &TransitionBookingHandler{Service: service})
	commands.RegisterHandler[SetCommissionStatusCommand, *dto.Commission](bus, SetCommissionStatusKey, &SetCommissionStatusHandler{Service: service})
}

var (
	_ middleware.IdempotentCommand = CreateBookingCommand{}
	_ middleware.IdempotentCommand = RecordPaymentCommand{}
	_ middleware.IdempotentCommand = SetCommissionStatusCommand{}
	_ middleware.ActorCommand      = TransitionBookingCommand{}
	_ middleware.ActorCommand      = SetCommissionStatusCommand{}
)
