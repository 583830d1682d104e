package middleware

import (
	"context"

	"glampstay/internal/app/queries"
	"glampstay/internal/app/uow"
)

// ReadOnlyTransaction runs each query inside a read-only unit of work so every
// repository read it makes sees one consistent snapshot. Commands open their
// own write units inside the settlement service.
func ReadOnlyTransaction(factory uow.UoWFactory) QueryMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if _, ok := uow.FromContext(ctx); ok {
				return nextFn(ctx, q)
			}
			unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
			if err != nil {
				return nil, err
			}
			execCtx := uow.Bind(ctx, unit)
			defer func() {
				_ = unit.Rollback(execCtx)
			}()
			return nextFn(execCtx, q)
		})
	}
}
