package queries

import (
	"context"
	"fmt"

	"glampstay/internal/apperrors"
)

// Query is a settlement read request. Queries run in a read-only unit of work.
type Query interface {
	Key() string
}

type Handler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

type HandlerFunc[Q Query, R any] func(ctx context.Context, query Q) (R, error)

func (f HandlerFunc[Q, R]) Handle(ctx context.Context, query Q) (R, error) {
	return f(ctx, query)
}

type Bus interface {
	Ask(ctx context.Context, query Query) (any, error)
}

var (
	ErrHandlerNotFound = fmt.Errorf("queries: handler not found: %w", apperrors.ErrInternal)
	ErrInvalidQuery    = fmt.Errorf("queries: invalid query for handler: %w", apperrors.ErrInternal)
	ErrResultType      = fmt.Errorf("queries: result type mismatch: %w", apperrors.ErrInternal)
	ErrNilBus          = fmt.Errorf("queries: nil bus: %w", apperrors.ErrInternal)
)

// Ask sends query through bus and asserts the handler's result type.
func Ask[Q Query, R any](ctx context.Context, bus Bus, query Q) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Ask(ctx, query)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	value, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("%w: %s returned %T", ErrResultType, query.Key(), res)
	}
	return value, nil
}
