package settlement

import (
	"context"

	"glampstay/internal/app/dto"
	"glampstay/internal/app/queries"
	svc "glampstay/internal/app/services/settlement"
	"glampstay/internal/domain/booking"
	"glampstay/internal/domain/commission"
)

const (
	GetBookingKey       = "settlement.get_booking"
	GetCommissionKey    = "settlement.get_commission"
	AuditTrailKey       = "settlement.audit_trail"
	AgentCommissionsKey = "settlement.agent_commissions"
)

type GetBookingQuery struct {
	BookingID string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return GetBookingKey }

type GetCommissionQuery struct {
	CommissionID string `validate:"required"`
}

func (q GetCommissionQuery) Key() string { return GetCommissionKey }

type AuditTrailQuery struct {
	EntityType string `validate:"required,oneof=booking commission"`
	EntityID   string `validate:"required"`
}

func (q AuditTrailQuery) Key() string { return AuditTrailKey }

type AgentCommissionsQuery struct {
	AgentID string `validate:"required"`
}

func (q AgentCommissionsQuery) Key() string { return AgentCommissionsKey }

// RegisterQueries wires the settlement read side onto bus.
func RegisterQueries(bus *queries.InMemoryBus, service *svc.Service) {
	queries.RegisterHandler[GetBookingQuery, *dto.Booking](bus, GetBookingKey,
		queries.HandlerFunc[GetBookingQuery, *dto.Booking](func(ctx context.Context, q GetBookingQuery) (*dto.Booking, error) {
			b, err := service.Booking(ctx, booking.BookingID(q.BookingID))
			if err != nil {
				return nil, err
			}
			return dto.BookingFrom(b), nil
		}))
	queries.RegisterHandler[GetCommissionQuery, *dto.Commission](bus, GetCommissionKey,
		queries.HandlerFunc[GetCommissionQuery, *dto.Commission](func(ctx context.Context, q GetCommissionQuery) (*dto.Commission, error) {
			c, err := service.Commission(ctx, commission.CommissionID(q.CommissionID))
			if err != nil {
				return nil, err
			}
			return dto.CommissionFrom(c), nil
		}))
	queries.RegisterHandler[AuditTrailQuery, *dto.AuditTrail](bus, AuditTrailKey,
		queries.HandlerFunc[AuditTrailQuery, *dto.AuditTrail](func(ctx context.Context, q AuditTrailQuery) (*dto.AuditTrail, error) {
			entries, err := service.AuditTrail(ctx, q.EntityType, q.EntityID)
			if err != nil {
				return nil, err
			}
			return &dto.AuditTrail{EntityType: q.EntityType, EntityID: q.EntityID, Entries: entries}, nil
		}))
	queries.RegisterHandler[AgentCommissionsQuery, *dto.CommissionCollection](bus, AgentCommissionsKey,
		queries.HandlerFunc[AgentCommissionsQuery, *dto.CommissionCollection](func(ctx context.Context, q AgentCommissionsQuery) (*dto.CommissionCollection, error) {
			list, err := service.AgentCommissions(ctx, q.AgentID)
			if err != nil {
				return nil, err
			}
			out := &dto.CommissionCollection{Items: make([]*dto.Commission, 0, len(list))}
			for _, c := range list {
				out.Items = append(out.Items, dto.CommissionFrom(c))
			}
			return out, nil
		}))
}
