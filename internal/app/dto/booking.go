package dto

import (
	"time"

	"glampstay/internal/domain/booking"
	"glampstay/internal/domain/shared/money"
)

type Booking struct {
	ID              string      `json:"id"`
	GlampID         string      `json:"glampId"`
	AgentID         string      `json:"agentId,omitempty"`
	CustomerName    string      `json:"customerName"`
	CheckInDate     time.Time   `json:"checkInDate"`
	CheckOutDate    time.Time   `json:"checkOutDate"`
	Guests          int         `json:"guests"`
	Status          string      `json:"status"`
	TotalAmount     money.Money `json:"totalAmount"`
	AmountPaid      money.Money `json:"amountPaid"`
	RemainingAmount money.Money `json:"remainingAmount"`
	ProofRef        string      `json:"proofRef,omitempty"`
	Version         int64       `json:"version"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

func BookingFrom(b *booking.Booking) *Booking {
	if b == nil {
		return nil
	}
	return &Booking{
		ID:              string(b.ID),
		GlampID:         b.GlampID,
		AgentID:         b.AgentID,
		CustomerName:    b.CustomerName,
		CheckInDate:     b.Stay.CheckIn,
		CheckOutDate:    b.Stay.CheckOut,
		Guests:          b.Guests,
		Status:          string(b.Status),
		TotalAmount:     b.Total,
		AmountPaid:      b.Paid,
		RemainingAmount: b.Remaining(),
		ProofRef:        b.ProofRef,
		Version:         b.Version,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// TransitionResult is the booking after a status change plus the commission a
// confirmation generated.
type TransitionResult struct {
	Booking    *Booking    `json:"booking"`
	Commission *Commission `json:"commission,omitempty"`
}
