package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"glampstay/internal/infra/proofs"
)

// ReceiptReviewStore keeps receipt review outcomes in receipt_reviews and
// deduplicates their events through app_inbox, both in one transaction.
type ReceiptReviewStore struct {
	db       *mongo.Database
	inbox    *mongo.Collection
	reviews  *mongo.Collection
	consumer string
}

type reviewDocument struct {
	ID        string    `bson:"_id"`
	BookingID string    `bson:"booking_id"`
	ProofRef  string    `bson:"proof_ref"`
	Verified  bool      `bson:"verified"`
	DecidedAt time.Time `bson:"decided_at"`
	EventID   string    `bson:"event_id"`
}

func reviewID(bookingID, proofRef string) string {
	return bookingID + "/" + proofRef
}

func newReviewDocument(r proofs.Review) reviewDocument {
	return reviewDocument{
		ID:        reviewID(r.BookingID, r.ProofRef),
		BookingID: r.BookingID,
		ProofRef:  r.ProofRef,
		Verified:  r.Verified,
		DecidedAt: r.DecidedAt.UTC(),
		EventID:   r.EventID,
	}
}

func NewReceiptReviewStore(ctx context.Context, db *mongo.Database, consumer string) (*ReceiptReviewStore, error) {
	inbox := db.Collection(inboxCollection)
	_, err := inbox.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return &ReceiptReviewStore{db: db, inbox: inbox, reviews: db.Collection(reviewsCollection), consumer: consumer}, nil
}

func (s *ReceiptReviewStore) Apply(ctx context.Context, r proofs.Review) (bool, error) {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return false, err
	}
	defer session.EndSession(ctx)
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		inboxFilter := bson.M{"event_id": r.EventID, "consumer": s.consumer}
		err := s.inbox.FindOne(sc, inboxFilter).Err()
		switch {
		case err == nil:
			return false, nil
		case !errors.Is(err, mongo.ErrNoDocuments):
			return nil, err
		}
		if _, err := s.inbox.InsertOne(sc, bson.M{"event_id": r.EventID, "consumer": s.consumer, "received_at": time.Now().UTC()}); err != nil {
			return nil, err
		}
		doc := newReviewDocument(r)
		var stored reviewDocument
		err = s.reviews.FindOne(sc, bson.M{"_id": doc.ID}).Decode(&stored)
		switch {
		case err == nil:
			if !proofs.Supersedes(stored.DecidedAt, doc.DecidedAt) {
				return false, nil
			}
		case !errors.Is(err, mongo.ErrNoDocuments):
			return nil, err
		}
		if _, err := s.reviews.ReplaceOne(sc, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true)); err != nil {
			return nil, err
		}
		return true, nil
	}, txnOpts)
	if err != nil {
		return false, translate(err)
	}
	applied, _ := result.(bool)
	return applied, nil
}

func (s *ReceiptReviewStore) Verified(ctx context.Context, bookingID, proofRef string) (bool, error) {
	var doc reviewDocument
	err := s.reviews.FindOne(ctx, bson.M{"_id": reviewID(bookingID, proofRef)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return doc.Verified, nil
}

var _ proofs.Reviews = (*ReceiptReviewStore)(nil)
