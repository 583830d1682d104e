package booking

import "time"

// CancellationWindow is the externally configured policy for cancelling a
// confirmed booking: allowed until Cutoff before check-in. A zero Cutoff
// allows cancellation up to the check-in moment itself.
type CancellationWindow struct {
	Cutoff time.Duration
}

// Deadline is the last instant a confirmed booking checking in at checkIn may be cancelled.
func (w CancellationWindow) Deadline(checkIn time.Time) time.Time {
	return checkIn.UTC().Add(-w.Cutoff)
}

func (w CancellationWindow) Allows(checkIn, now time.Time) bool {
	return !now.UTC().After(w.Deadline(checkIn))
}
