package proofs

import (
	"context"
	"sync"
	"time"

	"glampstay/internal/app/policies"
)

// Review is one receipt review outcome, delivered as event EventID.
type Review struct {
	EventID   string
	BookingID string
	ProofRef  string
	Verified  bool
	DecidedAt time.Time
}

// Reviews stores receipt review outcomes where every instance can read them.
//
// Apply records the event id and the decision atomically. A repeated event id
// is ignored, and so is a decision older than the stored one for the same
// receipt; in both cases applied is false. Unknown receipts are unverified.
type Reviews interface {
	policies.ProofVerifier
	Apply(ctx context.Context, r Review) (applied bool, err error)
}

// Supersedes reports whether incoming replaces stored. Ties go to the later delivery.
func Supersedes(stored, incoming time.Time) bool {
	return !stored.After(incoming)
}

type key struct {
	bookingID string
	proofRef  string
}

type decision struct {
	verified  bool
	decidedAt time.Time
}

// Registry is the in-process Reviews used by the memory storage driver.
type Registry struct {
	mu        sync.RWMutex
	seen      map[string]struct{}
	decisions map[key]decision
}

func NewRegistry() *Registry {
	return &Registry{seen: make(map[string]struct{}), decisions: make(map[key]decision)}
}

func (r *Registry) Apply(ctx context.Context, review Review) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[review.EventID]; ok {
		return false, nil
	}
	r.seen[review.EventID] = struct{}{}
	k := key{bookingID: review.BookingID, proofRef: review.ProofRef}
	if prev, ok := r.decisions[k]; ok && !Supersedes(prev.decidedAt, review.DecidedAt) {
		return false, nil
	}
	r.decisions[k] = decision{verified: review.Verified, decidedAt: review.DecidedAt}
	return true, nil
}

func (r *Registry) Verified(_ context.Context, bookingID, proofRef string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.decisions[key{bookingID: bookingID, proofRef: proofRef}].verified, nil
}

var _ Reviews = (*Registry)(nil)
