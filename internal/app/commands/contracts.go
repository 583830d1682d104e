package commands

import (
	"context"
	"fmt"

	"glampstay/internal/apperrors"
)

// Command is a settlement write intent. Key names the handler it routes to.
type Command interface {
	Key() string
}

// Targeted is implemented by commands that change an existing booking or
// commission. TargetID scopes idempotency keys and log lines to that record.
type Targeted interface {
	TargetID() string
}

// Handler processes a command and returns a value (if any).
type Handler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

type HandlerFunc[C Command, R any] func(ctx context.Context, cmd C) (R, error)

func (f HandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	return f(ctx, cmd)
}

// Bus dispatches commands, usually through a middleware chain.
type Bus interface {
	Dispatch(ctx context.Context, cmd Command) (any, error)
}

// Routing failures are wiring defects and surface as internal errors.
var (
	ErrHandlerNotFound = fmt.Errorf("commands: handler not found: %w", apperrors.ErrInternal)
	ErrInvalidCommand  = fmt.Errorf("commands: invalid command for handler: %w", apperrors.ErrInternal)
	ErrResultType      = fmt.Errorf("commands: result type mismatch: %w", apperrors.ErrInternal)
	ErrNilBus          = fmt.Errorf("commands: nil bus: %w", apperrors.ErrInternal)
)

// TargetOf returns the record a command changes, or "" for creations.
func TargetOf(cmd Command) string {
	if t, ok := cmd.(Targeted); ok {
		return t.TargetID()
	}
	return ""
}

// Dispatch sends cmd through bus and asserts the handler's result type.
func Dispatch[C Command, R any](ctx context.Context, bus Bus, cmd C) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Dispatch(ctx, cmd)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	value, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("%w: %s returned %T", ErrResultType, cmd.Key(), res)
	}
	return value, nil
}
