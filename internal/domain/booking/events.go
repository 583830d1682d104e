package booking

import (
	"time"

	"glampstay/internal/domain/shared/money"
)

type BookingCreated struct {
	BookingID BookingID   `json:"bookingId"`
	GlampID   string      `json:"glampId"`
	AgentID   string      `json:"agentId,omitempty"`
	Total     money.Money `json:"totalAmount"`
	At        time.Time   `json:"at"`
}

func (e BookingCreated) EventName() string     { return "booking.created" }
func (e BookingCreated) AggregateID() string   { return string(e.BookingID) }
func (e BookingCreated) OccurredAt() time.Time { return e.At }

type PaymentRecorded struct {
	BookingID BookingID   `json:"bookingId"`
	Amount    money.Money `json:"amount"`
	Paid      money.Money `json:"amountPaid"`
	Remaining money.Money `json:"remainingAmount"`
	ProofRef  string      `json:"proofRef"`
	At        time.Time   `json:"at"`
}

func (e PaymentRecorded) EventName() string     { return "booking.payment_recorded" }
func (e PaymentRecorded) AggregateID() string   { return string(e.BookingID) }
func (e PaymentRecorded) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID BookingID   `json:"bookingId"`
	AgentID   string      `json:"agentId,omitempty"`
	Total     money.Money `json:"totalAmount"`
	Paid      money.Money `json:"amountPaid"`
	ProofRef  string      `json:"proofRef"`
	At        time.Time   `json:"at"`
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingCompleted struct {
	BookingID BookingID `json:"bookingId"`
	Override  bool      `json:"override"`
	At        time.Time `json:"at"`
}

func (e BookingCompleted) EventName() string     { return "booking.completed" }
func (e BookingCompleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingCompleted) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID BookingID   `json:"bookingId"`
	From      Status      `json:"from"`
	Reason    string      `json:"reason,omitempty"`
	Paid      money.Money `json:"amountPaid"`
	At        time.Time   `json:"at"`
}

func (e BookingCancelled) EventName() string     { return "booking.cancelled" }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }
