package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"glampstay/internal/app/outbox"
	"glampstay/internal/app/uow"
	"glampstay/internal/domain/audit"
	"glampstay/internal/domain/booking"
	"glampstay/internal/domain/commission"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a MongoDB session/transaction. Every unit reads from a
// snapshot; write units commit with majority write concern.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetReadPreference(readpref.Primary()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{db: f.DB, session: session}, nil
}

type Unit struct {
	db      *mongo.Database
	session mongo.Session
}

func (u *Unit) Bookings() booking.Repository {
	return bookingRepository{col: u.db.Collection(bookingsCollection), session: u.session}
}

func (u *Unit) Commissions() commission.Repository {
	return commissionRepository{col: u.db.Collection(commissionsCollection), session: u.session}
}

func (u *Unit) Audit() audit.Log {
	return auditLog{col: u.db.Collection(auditCollection), session: u.session}
}

func (u *Unit) Outbox() outbox.Outbox {
	return outboxWriter{col: u.db.Collection(outboxCollection), session: u.session}
}

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return translate(u.session.CommitTransaction(ctx))
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

// sessionContext binds ctx to session unless a session is already attached.
func sessionContext(ctx context.Context, session mongo.Session) context.Context {
	if session == nil || mongo.SessionFromContext(ctx) != nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, session)
}

var _ uow.UoWFactory = Factory{}
