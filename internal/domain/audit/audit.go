package audit

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	EntityBooking    = "booking"
	EntityCommission = "commission"
)

const NoteOperatorOverride = "operator-override"

var ErrIncompleteEntry = errors.New("audit: entity, target state and actor are required")

// Entry is one state change. Entries are appended and never rewritten.
type Entry struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	FromState  string    `json:"fromState"`
	ToState    string    `json:"toState"`
	Actor      string    `json:"actor"`
	Note       string    `json:"note,omitempty"`
	At         time.Time `json:"timestamp"`
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.EntityType) == "" || strings.TrimSpace(e.EntityID) == "" ||
		strings.TrimSpace(e.ToState) == "" || strings.TrimSpace(e.Actor) == "" {
		return ErrIncompleteEntry
	}
	return nil
}

// Log is the append-only audit trail. ListByEntity returns entries oldest first.
type Log interface {
	Append(ctx context.Context, entry Entry) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]Entry, error)
}
