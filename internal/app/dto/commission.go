package dto

import (
	"time"

	"glampstay/internal/domain/commission"
	"glampstay/internal/domain/shared/money"
)

type Commission struct {
	ID          string      `json:"id"`
	BookingID   string      `json:"bookingId"`
	AgentID     string      `json:"agentId"`
	Amount      money.Money `json:"amount"`
	RatePercent string      `json:"ratePercent"`
	Status      string      `json:"status"`
	GeneratedAt time.Time   `json:"generatedAt"`
	PaidAt      *time.Time  `json:"paidAt,omitempty"`
	PaidBy      string      `json:"paidBy,omitempty"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func CommissionFrom(c *commission.Commission) *Commission {
	if c == nil {
		return nil
	}
	return &Commission{
		ID:          string(c.ID),
		BookingID:   c.BookingID,
		AgentID:     c.AgentID,
		Amount:      c.Amount,
		RatePercent: c.Rate.String(),
		Status:      string(c.Status),
		GeneratedAt: c.GeneratedAt,
		PaidAt:      c.PaidAt,
		PaidBy:      c.PaidBy,
		UpdatedAt:   c.UpdatedAt,
	}
}

type CommissionCollection struct {
	Items []*Commission `json:"items"`
}
