package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"glampstay/internal/infra/proofs"
)

const (
	insertInboxSQL = `INSERT INTO app_inbox (event_id, consumer) VALUES ($1, $2)
		ON CONFLICT (event_id, consumer) DO NOTHING`

	// The conditional DO UPDATE keeps a newer stored decision; ties go to the later delivery.
	upsertReviewSQL = `INSERT INTO receipt_reviews (booking_id, proof_ref, verified, decided_at, event_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (booking_id, proof_ref) DO UPDATE
		SET verified = EXCLUDED.verified, decided_at = EXCLUDED.decided_at, event_id = EXCLUDED.event_id
		WHERE receipt_reviews.decided_at <= EXCLUDED.decided_at`
)

// ReceiptReviewStore keeps receipt review outcomes in receipt_reviews and
// deduplicates their events through app_inbox, both in one transaction.
type ReceiptReviewStore struct {
	Pool     *pgxpool.Pool
	Consumer string
}

func (s ReceiptReviewStore) Apply(ctx context.Context, r proofs.Review) (bool, error) {
	applied := false
	err := pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertInboxSQL, r.EventID, s.Consumer)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		tag, err = tx.Exec(ctx, upsertReviewSQL, r.BookingID, r.ProofRef, r.Verified, r.DecidedAt.UTC(), r.EventID)
		if err != nil {
			return err
		}
		applied = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, translate(err)
	}
	return applied, nil
}

func (s ReceiptReviewStore) Verified(ctx context.Context, bookingID, proofRef string) (bool, error) {
	var verified bool
	err := s.Pool.QueryRow(ctx, `SELECT verified FROM receipt_reviews WHERE booking_id = $1 AND proof_ref = $2`,
		bookingID, proofRef).Scan(&verified)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return verified, nil
}

var _ proofs.Reviews = ReceiptReviewStore{}
