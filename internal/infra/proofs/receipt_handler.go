package proofs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

const (
	TypeReceiptVerified = "receipt.verified.v1"
	TypeReceiptRejected = "receipt.rejected.v1"
)

var ErrMalformedReceiptEvent = errors.New("proofs: malformed receipt event")

type receiptEnvelope struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data struct {
		BookingID string `json:"bookingId"`
		ProofRef  string `json:"proofRef"`
	} `json:"data"`
}

// ReceiptHandler applies receipt review CloudEvents to a Reviews store. It
// holds no state of its own, so any consumer instance may handle any event.
type ReceiptHandler struct {
	Reviews Reviews
	Logger  *slog.Logger
}

func (h *ReceiptHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	env, err := decodeReceipt(msg.Value)
	if err != nil {
		// Poison messages are logged and skipped.
		h.logger().Warn("receipt event dropped", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	review := Review{
		EventID:   env.ID,
		BookingID: env.Data.BookingID,
		ProofRef:  env.Data.ProofRef,
		Verified:  env.Type == TypeReceiptVerified,
		DecidedAt: env.Time.UTC(),
	}
	applied, err := h.Reviews.Apply(ctx, review)
	if err != nil {
		return fmt.Errorf("proofs: apply review %s: %w", env.ID, err)
	}
	if !applied {
		h.logger().Debug("receipt review ignored", "event_id", env.ID, "booking_id", review.BookingID, "proof_ref", review.ProofRef)
		return nil
	}
	h.logger().Info("receipt review applied", "booking_id", review.BookingID, "proof_ref", review.ProofRef, "verified", review.Verified)
	return nil
}

func decodeReceipt(raw []byte) (receiptEnvelope, error) {
	var env receiptEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformedReceiptEvent, err)
	}
	if env.Type != TypeReceiptVerified && env.Type != TypeReceiptRejected {
		return env, fmt.Errorf("%w: type %q", ErrMalformedReceiptEvent, env.Type)
	}
	env.Data.BookingID = strings.TrimSpace(env.Data.BookingID)
	env.Data.ProofRef = strings.TrimSpace(env.Data.ProofRef)
	if env.ID == "" || env.Data.BookingID == "" || env.Data.ProofRef == "" {
		return env, fmt.Errorf("%w: id, bookingId and proofRef required", ErrMalformedReceiptEvent)
	}
	if env.Time.IsZero() {
		env.Time = time.Now().UTC()
	}
	return env, nil
}

func (h *ReceiptHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
