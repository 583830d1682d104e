package outbox

import (
	"context"
	"time"

	appoutbox "glampstay/internal/app/outbox"
)

// Record states shared by the outbox store drivers.
const (
	StateNew     = "NEW"
	StateClaimed = "CLAIMED"
	StateSent    = "SENT"
	StateFailed  = "FAILED"
)

// Message is a claimed outbox record.
type Message struct {
	appoutbox.EventRecord
	Attempts int
}

// Store is the relay side of the outbox. Claim returns nil when nothing is due.
type Store interface {
	Claim(ctx context.Context, workerID string) (*Message, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}
