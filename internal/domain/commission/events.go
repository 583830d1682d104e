package commission

import (
	"time"

	"glampstay/internal/domain/shared/money"
)

type CommissionGenerated struct {
	CommissionID CommissionID `json:"commissionId"`
	BookingID    string       `json:"bookingId"`
	AgentID      string       `json:"agentId"`
	Amount       money.Money  `json:"amount"`
	Rate         string       `json:"ratePercent"`
	At           time.Time    `json:"at"`
}

func (e CommissionGenerated) EventName() string     { return "commission.generated" }
func (e CommissionGenerated) AggregateID() string   { return string(e.CommissionID) }
func (e CommissionGenerated) OccurredAt() time.Time { return e.At }

type CommissionPaid struct {
	CommissionID CommissionID `json:"commissionId"`
	BookingID    string       `json:"bookingId"`
	AgentID      string       `json:"agentId"`
	Amount       money.Money  `json:"amount"`
	PaidBy       string       `json:"paidBy"`
	At           time.Time    `json:"at"`
}

func (e CommissionPaid) EventName() string     { return "commission.paid" }
func (e CommissionPaid) AggregateID() string   { return string(e.CommissionID) }
func (e CommissionPaid) OccurredAt() time.Time { return e.At }

type CommissionUnpaid struct {
	CommissionID     CommissionID `json:"commissionId"`
	BookingID        string       `json:"bookingId"`
	AgentID          string       `json:"agentId"`
	Amount           money.Money  `json:"amount"`
	ReversedBy       string       `json:"reversedBy"`
	PreviouslyPaidBy string       `json:"previouslyPaidBy,omitempty"`
	At               time.Time    `json:"at"`
}

func (e CommissionUnpaid) EventName() string     { return "commission.unpaid" }
func (e CommissionUnpaid) AggregateID() string   { return string(e.CommissionID) }
func (e CommissionUnpaid) OccurredAt() time.Time { return e.At }
