package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"glampstay/internal/domain/booking"
	"glampstay/internal/domain/shared/money"
)

type bookingRepository struct {
	tx pgx.Tx
}

const selectBooking = `SELECT id, glamp_id, agent_id, customer_name, check_in, check_out, guests, status,
	currency, total_minor, paid_minor, proof_ref, created_at, updated_at, version
	FROM bookings WHERE id = $1`

func (r bookingRepository) ByID(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	var (
		b                     booking.Booking
		rawID, status, curr   string
		totalMinor, paidMinor int64
	)
	err := r.tx.QueryRow(ctx, selectBooking, string(id)).Scan(
		&rawID, &b.GlampID, &b.AgentID, &b.CustomerName, &b.Stay.CheckIn, &b.Stay.CheckOut, &b.Guests, &status,
		&curr, &totalMinor, &paidMinor, &b.ProofRef, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, translate(err)
	}
	b.ID = booking.BookingID(rawID)
	if b.Status, err = booking.ParseStatus(status); err != nil {
		return nil, err
	}
	if b.Total, err = money.New(totalMinor, curr); err != nil {
		return nil, err
	}
	if b.Paid, err = money.New(paidMinor, curr); err != nil {
		return nil, err
	}
	b.Stay.CheckIn, b.Stay.CheckOut = b.Stay.CheckIn.UTC(), b.Stay.CheckOut.UTC()
	b.CreatedAt, b.UpdatedAt = b.CreatedAt.UTC(), b.UpdatedAt.UTC()
	return &b, nil
}

func (r bookingRepository) Save(ctx context.Context, b *booking.Booking) error {
	if b.Version == 0 {
		_, err := r.tx.Exec(ctx, `INSERT INTO bookings
			(id, glamp_id, agent_id, customer_name, check_in, check_out, guests, status,
			 currency, total_minor, paid_minor, proof_ref, created_at, updated_at, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1)`,
			string(b.ID), b.GlampID, b.AgentID, b.CustomerName, b.Stay.CheckIn, b.Stay.CheckOut, b.Guests, string(b.Status),
			b.Total.Currency, b.Total.Amount, b.Paid.Amount, b.ProofRef, b.CreatedAt, b.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return booking.ErrVersionConflict
			}
			return translate(err)
		}
		b.Version = 1
		return nil
	}
	tag, err := r.tx.Exec(ctx, `UPDATE bookings SET status = $3, paid_minor = $4, proof_ref = $5,
		updated_at = $6, version = version + 1
		WHERE id = $1 AND version = $2`,
		string(b.ID), b.Version, string(b.Status), b.Paid.Amount, b.ProofRef, b.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrVersionConflict
	}
	b.Version++
	return nil
}
