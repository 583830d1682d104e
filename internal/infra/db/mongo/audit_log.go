package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"glampstay/internal/domain/audit"
)

type auditLog struct {
	col     *mongo.Collection
	session mongo.Session
}

type auditDocument struct {
	ID         string             `bson:"_id"`
	Seq        primitive.ObjectID `bson:"seq"`
	EntityType string             `bson:"entity_type"`
	EntityID   string             `bson:"entity_id"`
	FromState  string             `bson:"from_state"`
	ToState    string             `bson:"to_state"`
	Actor      string             `bson:"actor"`
	Note       string             `bson:"note,omitempty"`
	At         time.Time          `bson:"at"`
}

func (l auditLog) Append(ctx context.Context, e audit.Entry) error {
	doc := auditDocument{
		ID:         e.ID,
		Seq:        primitive.NewObjectID(),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		FromState:  e.FromState,
		ToState:    e.ToState,
		Actor:      e.Actor,
		Note:       e.Note,
		At:         e.At,
	}
	_, err := l.col.InsertOne(sessionContext(ctx, l.session), doc)
	return translate(err)
}

func (l auditLog) ListByEntity(ctx context.Context, entityType, entityID string) ([]audit.Entry, error) {
	ctx = sessionContext(ctx, l.session)
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: 1}, {Key: "seq", Value: 1}})
	cur, err := l.col.Find(ctx, bson.M{"entity_type": entityType, "entity_id": entityID}, opts)
	if err != nil {
		return nil, translate(err)
	}
	defer cur.Close(ctx)
	var docs []auditDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err)
	}
	entries := make([]audit.Entry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, audit.Entry{
			ID:         d.ID,
			EntityType: d.EntityType,
			EntityID:   d.EntityID,
			FromState:  d.FromState,
			ToState:    d.ToState,
			Actor:      d.Actor,
			Note:       d.Note,
			At:         d.At.UTC(),
		})
	}
	return entries, nil
}
