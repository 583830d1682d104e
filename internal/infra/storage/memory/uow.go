package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"glampstay/internal/app/outbox"
	"glampstay/internal/app/uow"
	"glampstay/internal/domain/audit"
	"glampstay/internal/domain/booking"
	"glampstay/internal/domain/commission"
	"glampstay/internal/domain/shared/events"
	infraoutbox "glampstay/internal/infra/outbox"
)

var (
	ErrUnitClosed = errors.New("memory: unit of work already finished")
	ErrReadOnly   = errors.New("memory: write in read-only unit of work")
)

// Store holds every table of the settlement core. A write unit holds the
// store lock from Begin until Commit or Rollback, so write units are
// serialised and read-only units see no half-applied change.
type Store struct {
	mu          sync.RWMutex
	bookings    map[booking.BookingID]booking.Booking
	commissions map[commission.CommissionID]commission.Commission
	pairs       map[string]commission.CommissionID
	audit       []audit.Entry
	outbox      []*outboxRow
}

func NewStore() *Store {
	return &Store{
		bookings:    make(map[booking.BookingID]booking.Booking),
		commissions: make(map[commission.CommissionID]commission.Commission),
		pairs:       make(map[string]commission.CommissionID),
	}
}

// lockPoll is how often a blocked Begin retries the store lock.
const lockPoll = time.Millisecond

// Begin starts a unit of work. It waits while another write unit is open and
// gives up with ctx's error once ctx is done.
func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	acquire := s.mu.TryLock
	if opts.ReadOnly {
		acquire = s.mu.TryRLock
	}
	if !acquire() {
		ticker := time.NewTicker(lockPoll)
		defer ticker.Stop()
		for !acquire() {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
			}
		}
	}
	return &Unit{store: s, readOnly: opts.ReadOnly}, nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// Unit applies writes directly to the store and keeps an undo log for Rollback.
type Unit struct {
	store    *Store
	readOnly bool
	undo     []func()
	done     bool
}

func (u *Unit) Bookings() booking.Repository       { return bookingRepo{u} }
func (u *Unit) Commissions() commission.Repository { return commissionRepo{u} }
func (u *Unit) Audit() audit.Log                   { return auditLog{u} }
func (u *Unit) Outbox() outbox.Outbox              { return outboxWriter{u} }

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return ErrUnitClosed
	}
	u.finish()
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.finish()
	return nil
}

func (u *Unit) finish() {
	u.done = true
	u.undo = nil
	if u.readOnly {
		u.store.mu.RUnlock()
		return
	}
	u.store.mu.Unlock()
}

func (u *Unit) writable() error {
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (u *Unit) readable() error {
	if u.done {
		return ErrUnitClosed
	}
	return nil
}

type bookingRepo struct{ u *Unit }

func (r bookingRepo) ByID(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	if err := r.u.readable(); err != nil {
		return nil, err
	}
	row, ok := r.u.store.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return &row, nil
}

func (r bookingRepo) Save(ctx context.Context, b *booking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	s := r.u.store
	prev, exists := s.bookings[b.ID]
	switch {
	case b.Version == 0 && exists:
		return booking.ErrVersionConflict
	case b.Version != 0 && !exists:
		return booking.ErrBookingNotFound
	case exists && prev.Version != b.Version:
		return booking.ErrVersionConflict
	}
	row := *b
	row.EventRecorder = events.EventRecorder{}
	row.Version = b.Version + 1
	s.bookings[b.ID] = row
	r.u.undo = append(r.u.undo, func() {
		if exists {
			s.bookings[b.ID] = prev
			return
		}
		delete(s.bookings, b.ID)
	})
	b.Version = row.Version
	return nil
}

type commissionRepo struct{ u *Unit }

func pairKey(bookingID, agentID string) string {
	return bookingID + "\x00" + agentID
}

func (r commissionRepo) ByID(ctx context.Context, id commission.CommissionID) (*commission.Commission, error) {
	if err := r.u.readable(); err != nil {
		return nil, err
	}
	row, ok := r.u.store.commissions[id]
	if !ok {
		return nil, commission.ErrCommissionNotFound
	}
	return copyCommission(row), nil
}

func (r commissionRepo) ByBookingAndAgent(ctx context.Context, bookingID, agentID string) (*commission.Commission, error) {
	if err := r.u.readable(); err != nil {
		return nil, err
	}
	id, ok := r.u.store.pairs[pairKey(bookingID, agentID)]
	if !ok {
		return nil, commission.ErrCommissionNotFound
	}
	return copyCommission(r.u.store.commissions[id]), nil
}

func (r commissionRepo) ListByAgent(ctx context.Context, agentID string) ([]*commission.Commission, error) {
	if err := r.u.readable(); err != nil {
		return nil, err
	}
	var out []*commission.Commission
	for _, row := range r.u.store.commissions {
		if row.AgentID == agentID {
			out = append(out, copyCommission(row))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].GeneratedAt.Before(out[j].GeneratedAt)
	})
	return out, nil
}

func (r commissionRepo) Insert(ctx context.Context, c *commission.Commission) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	s := r.u.store
	key := pairKey(c.BookingID, c.AgentID)
	if _, ok := s.pairs[key]; ok {
		return commission.ErrDuplicate
	}
	if _, ok := s.commissions[c.ID]; ok {
		return commission.ErrDuplicate
	}
	s.commissions[c.ID] = *copyCommission(*c)
	s.pairs[key] = c.ID
	r.u.undo = append(r.u.undo, func() {
		delete(s.commissions, c.ID)
		delete(s.pairs, key)
	})
	return nil
}

func (r commissionRepo) UpdateStatus(ctx context.Context, c *commission.Commission, expected commission.Status) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	s := r.u.store
	prev, ok := s.commissions[c.ID]
	if !ok {
		return commission.ErrCommissionNotFound
	}
	if prev.Status != expected {
		return commission.ErrStatusConflict
	}
	row := *copyCommission(prev)
	row.Status = c.Status
	row.PaidAt = copyTime(c.PaidAt)
	row.PaidBy = c.PaidBy
	row.UpdatedAt = c.UpdatedAt
	s.commissions[c.ID] = row
	r.u.undo = append(r.u.undo, func() {
		s.commissions[c.ID] = prev
	})
	return nil
}

func copyCommission(c commission.Commission) *commission.Commission {
	out := c
	out.EventRecorder = events.EventRecorder{}
	out.PaidAt = copyTime(c.PaidAt)
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

type auditLog struct{ u *Unit }

func (l auditLog) Append(ctx context.Context, entry audit.Entry) error {
	if err := l.u.writable(); err != nil {
		return err
	}
	s := l.u.store
	n := len(s.audit)
	s.audit = append(s.audit, entry)
	l.u.undo = append(l.u.undo, func() {
		s.audit = s.audit[:n]
	})
	return nil
}

func (l auditLog) ListByEntity(ctx context.Context, entityType, entityID string) ([]audit.Entry, error) {
	if err := l.u.readable(); err != nil {
		return nil, err
	}
	var out []audit.Entry
	for _, e := range l.u.store.audit {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

type outboxWriter struct{ u *Unit }

func (w outboxWriter) Add(ctx context.Context, record outbox.EventRecord) error {
	if err := w.u.writable(); err != nil {
		return err
	}
	s := w.u.store
	n := len(s.outbox)
	now := time.Now().UTC()
	s.outbox = append(s.outbox, &outboxRow{msg: infraoutbox.Message{EventRecord: record}, state: infraoutbox.StateNew, nextAttempt: now})
	w.u.undo = append(w.u.undo, func() {
		s.outbox = s.outbox[:n]
	})
	return nil
}

var (
	_ uow.UoWFactory = (*Store)(nil)
	_ uow.UnitOfWork = (*Unit)(nil)
)
