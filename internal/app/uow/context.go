package uow

import "context"

type ctxKey struct{}

// ContextInjector is implemented by units whose driver carries the
// transaction on the context (mongo sessions).
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}

// Bind makes unit the ambient unit of work for ctx. Settlement operations
// called with the returned context join unit instead of opening their own.
func Bind(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(ContextInjector); ok {
		ctx = injector.InjectContext(ctx)
	}
	return context.WithValue(ctx, ctxKey{}, unit)
}

// FromContext returns the unit bound by Bind.
func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(ctxKey{}).(UnitOfWork)
	return unit, ok
}
