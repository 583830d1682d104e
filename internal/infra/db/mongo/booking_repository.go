package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	domainbooking "glampstay/internal/domain/booking"
	"glampstay/internal/domain/shared/daterange"
	"glampstay/internal/domain/shared/money"
)

type bookingRepository struct {
	col     *mongo.Collection
	session mongo.Session
}

func (r bookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(sessionContext(ctx, r.session), bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, translate(err)
	}
	return doc.toAggregate()
}

// Save inserts a new booking or replaces the stored one only if its version
// still matches b.Version.
func (r bookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	ctx = sessionContext(ctx, r.session)
	doc := newBookingDocument(b)
	doc.Version = b.Version + 1
	if b.Version == 0 {
		if _, err := r.col.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return domainbooking.ErrVersionConflict
			}
			return translate(err)
		}
		b.Version = doc.Version
		return nil
	}
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": b.Version}, doc)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return domainbooking.ErrVersionConflict
	}
	b.Version = doc.Version
	return nil
}

type moneyDocument struct {
	Amount   int64  `bson:"amount_minor"`
	Currency string `bson:"currency"`
}

func toMoneyDocument(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) toMoney() (money.Money, error) {
	m := money.Money{Amount: d.Amount, Currency: d.Currency}
	if err := m.Validate(); err != nil {
		return money.Money{}, err
	}
	return m, nil
}

type bookingDocument struct {
	ID           string        `bson:"_id"`
	GlampID      string        `bson:"glamp_id"`
	AgentID      string        `bson:"agent_id,omitempty"`
	CustomerName string        `bson:"customer_name"`
	Range        rangeDocument `bson:"range"`
	Guests       int           `bson:"guests"`
	Status       string        `bson:"status"`
	Total        moneyDocument `bson:"total"`
	Paid         moneyDocument `bson:"paid"`
	ProofRef     string        `bson:"proof_ref,omitempty"`
	CreatedAt    int64         `bson:"created_at"`
	UpdatedAt    int64         `bson:"updated_at"`
	Version      int64         `bson:"version"`
}

type rangeDocument struct {
	CheckIn  int64 `bson:"check_in"`
	CheckOut int64 `bson:"check_out"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:           string(b.ID),
		GlampID:      b.GlampID,
		AgentID:      b.AgentID,
		CustomerName: b.CustomerName,
		Range:        rangeDocument{CheckIn: b.Stay.CheckIn.UnixMilli(), CheckOut: b.Stay.CheckOut.UnixMilli()},
		Guests:       b.Guests,
		Status:       string(b.Status),
		Total:        toMoneyDocument(b.Total),
		Paid:         toMoneyDocument(b.Paid),
		ProofRef:     b.ProofRef,
		CreatedAt:    b.CreatedAt.UnixMilli(),
		UpdatedAt:    b.UpdatedAt.UnixMilli(),
		Version:      b.Version,
	}
}

func (d bookingDocument) toAggregate() (*domainbooking.Booking, error) {
	total, err := d.Total.toMoney()
	if err != nil {
		return nil, err
	}
	paid, err := d.Paid.toMoney()
	if err != nil {
		return nil, err
	}
	status, err := domainbooking.ParseStatus(d.Status)
	if err != nil {
		return nil, err
	}
	return &domainbooking.Booking{
		ID:           domainbooking.BookingID(d.ID),
		GlampID:      d.GlampID,
		AgentID:      d.AgentID,
		CustomerName: d.CustomerName,
		Stay:         daterange.DateRange{CheckIn: timestampToTime(d.Range.CheckIn), CheckOut: timestampToTime(d.Range.CheckOut)},
		Guests:       d.Guests,
		Status:       status,
		Total:        total,
		Paid:         paid,
		ProofRef:     d.ProofRef,
		CreatedAt:    timestampToTime(d.CreatedAt),
		UpdatedAt:    timestampToTime(d.UpdatedAt),
		Version:      d.Version,
	}, nil
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
