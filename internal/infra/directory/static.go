package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"glampstay/internal/app/policies"
	"glampstay/internal/domain/booking"
	"glampstay/internal/domain/shared/money"
)

// Agents is a fixed agent -> commission rate table loaded from configuration.
type Agents struct {
	rates map[string]decimal.Decimal
}

// ParseAgentRates reads "A1=10,A2=7.5" into an agent table. Rates are percents.
func ParseAgentRates(raw string) (*Agents, error) {
	rates := make(map[string]decimal.Decimal)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, rate, ok := strings.Cut(part, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("directory: agent rate %q must look like ID=PERCENT", part)
		}
		pct, err := decimal.NewFromString(strings.TrimSpace(rate))
		if err != nil {
			return nil, fmt.Errorf("directory: agent %s rate: %w", id, err)
		}
		if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			return nil, fmt.Errorf("directory: agent %s: %w", id, money.ErrInvalidRate)
		}
		rates[id] = pct
	}
	return &Agents{rates: rates}, nil
}

func (a *Agents) CommissionRate(_ context.Context, agentID string) (decimal.Decimal, error) {
	pct, ok := a.rates[strings.TrimSpace(agentID)]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", policies.ErrUnknownAgent, agentID)
	}
	return pct, nil
}

func (a *Agents) Len() int {
	return len(a.rates)
}

// Actors maps actor ids to the roles configured for them.
type Actors struct {
	roles map[policies.Role]map[string]struct{}
}

func NewActors(finance, operators []string) *Actors {
	return &Actors{roles: map[policies.Role]map[string]struct{}{
		policies.RoleFinance:  toSet(finance),
		policies.RoleOperator: toSet(operators),
	}}
}

func (a *Actors) HasRole(_ context.Context, actor string, role policies.Role) (bool, error) {
	_, ok := a.roles[role][strings.TrimSpace(actor)]
	return ok, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// Cancellation applies one cutoff before check-in to every booking.
type Cancellation struct {
	Cutoff time.Duration
}

func (c Cancellation) Window(_ context.Context, _ *booking.Booking) (booking.CancellationWindow, error) {
	return booking.CancellationWindow{Cutoff: c.Cutoff}, nil
}

var (
	_ policies.AgentDirectory     = (*Agents)(nil)
	_ policies.ActorDirectory     = (*Actors)(nil)
	_ policies.CancellationPolicy = Cancellation{}
)
