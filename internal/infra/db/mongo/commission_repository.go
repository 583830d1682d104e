package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"glampstay/internal/domain/commission"
)

type commissionRepository struct {
	col     *mongo.Collection
	session mongo.Session
}

func (r commissionRepository) ByID(ctx context.Context, id commission.CommissionID) (*commission.Commission, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r commissionRepository) ByBookingAndAgent(ctx context.Context, bookingID, agentID string) (*commission.Commission, error) {
	return r.findOne(ctx, bson.M{"booking_id": bookingID, "agent_id": agentID})
}

func (r commissionRepository) ListByAgent(ctx context.Context, agentID string) ([]*commission.Commission, error) {
	ctx = sessionContext(ctx, r.session)
	opts := options.Find().SetSort(bson.D{{Key: "generated_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"agent_id": agentID}, opts)
	if err != nil {
		return nil, translate(err)
	}
	defer cur.Close(ctx)
	var docs []commissionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err)
	}
	out := make([]*commission.Commission, 0, len(docs))
	for _, doc := range docs {
		c, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r commissionRepository) Insert(ctx context.Context, c *commission.Commission) error {
	if _, err := r.col.InsertOne(sessionContext(ctx, r.session), newCommissionDocument(c)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return commission.ErrDuplicate
		}
		return translate(err)
	}
	return nil
}

// UpdateStatus writes the payment fields only while the stored status is expected.
func (r commissionRepository) UpdateStatus(ctx context.Context, c *commission.Commission, expected commission.Status) error {
	doc := newCommissionDocument(c)
	update := bson.M{"$set": bson.M{
		"status":     doc.Status,
		"paid_at":    doc.PaidAt,
		"paid_by":    doc.PaidBy,
		"updated_at": doc.UpdatedAt,
	}}
	res, err := r.col.UpdateOne(sessionContext(ctx, r.session), bson.M{"_id": doc.ID, "status": string(expected)}, update)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return commission.ErrStatusConflict
	}
	return nil
}

func (r commissionRepository) findOne(ctx context.Context, filter bson.M) (*commission.Commission, error) {
	var doc commissionDocument
	if err := r.col.FindOne(sessionContext(ctx, r.session), filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, commission.ErrCommissionNotFound
		}
		return nil, translate(err)
	}
	return doc.toAggregate()
}

type commissionDocument struct {
	ID          string        `bson:"_id"`
	BookingID   string        `bson:"booking_id"`
	AgentID     string        `bson:"agent_id"`
	Amount      moneyDocument `bson:"amount"`
	Rate        string        `bson:"rate_percent"`
	Status      string        `bson:"status"`
	GeneratedAt time.Time     `bson:"generated_at"`
	PaidAt      *time.Time    `bson:"paid_at"`
	PaidBy      string        `bson:"paid_by"`
	UpdatedAt   time.Time     `bson:"updated_at"`
}

func newCommissionDocument(c *commission.Commission) commissionDocument {
	return commissionDocument{
		ID:          string(c.ID),
		BookingID:   c.BookingID,
		AgentID:     c.AgentID,
		Amount:      toMoneyDocument(c.Amount),
		Rate:        c.Rate.String(),
		Status:      string(c.Status),
		GeneratedAt: c.GeneratedAt,
		PaidAt:      c.PaidAt,
		PaidBy:      c.PaidBy,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (d commissionDocument) toAggregate() (*commission.Commission, error) {
	amount, err := d.Amount.toMoney()
	if err != nil {
		return nil, err
	}
	rate, err := decimal.NewFromString(d.Rate)
	if err != nil {
		return nil, err
	}
	status, err := commission.ParseStatus(d.Status)
	if err != nil {
		return nil, err
	}
	c := &commission.Commission{
		ID:          commission.CommissionID(d.ID),
		BookingID:   d.BookingID,
		AgentID:     d.AgentID,
		Amount:      amount,
		Rate:        rate,
		Status:      status,
		GeneratedAt: d.GeneratedAt.UTC(),
		PaidBy:      d.PaidBy,
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if d.PaidAt != nil {
		at := d.PaidAt.UTC()
		c.PaidAt = &at
	}
	return c, nil
}
