package memory

import (
	"context"
	"time"

	infraoutbox "glampstay/internal/infra/outbox"
)

type outboxRow struct {
	msg         infraoutbox.Message
	state       string
	nextAttempt time.Time
	claimedBy   string
	lastError   string
}

// Claim hands the oldest due record to workerID.
func (s *Store) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, row := range s.outbox {
		if row.state != infraoutbox.StateNew && row.state != infraoutbox.StateFailed {
			continue
		}
		if row.nextAttempt.After(now) {
			continue
		}
		row.state = infraoutbox.StateClaimed
		row.claimedBy = workerID
		msg := row.msg
		return &msg, nil
	}
	return nil, nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row := s.outboxRow(id); row != nil {
		row.state = infraoutbox.StateSent
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row := s.outboxRow(id); row != nil {
		row.state = infraoutbox.StateFailed
		row.nextAttempt = next
		row.lastError = errMsg
		row.msg.Attempts++
	}
	return nil
}

// Pending lists records not yet published, oldest first.
func (s *Store) Pending() []infraoutbox.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []infraoutbox.Message
	for _, row := range s.outbox {
		if row.state != infraoutbox.StateSent {
			out = append(out, row.msg)
		}
	}
	return out
}

func (s *Store) outboxRow(id string) *outboxRow {
	for _, row := range s.outbox {
		if row.msg.ID == id {
			return row
		}
	}
	return nil
}

var _ infraoutbox.Store = (*Store)(nil)
