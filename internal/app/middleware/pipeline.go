package middleware

import (
	"context"
	"log/slog"
	"time"

	"glampstay/internal/app/commands"
	"glampstay/internal/app/queries"
	"glampstay/internal/apperrors"
)

type CommandMiddleware func(next commands.Bus) commands.Bus

type QueryMiddleware func(next queries.Bus) queries.Bus

// ChainCommands wraps base with mws, the first middleware outermost.
func ChainCommands(base commands.Bus, mws ...CommandMiddleware) commands.Bus {
	wrapped := base
	for i := len(mws) - 1; i >= 0; i-- {
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

func ChainQueries(base queries.Bus, mws ...QueryMiddleware) queries.Bus {
	wrapped := base
	for i := len(mws) - 1; i >= 0; i-- {
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

type commandFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f commandFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	return f(ctx, cmd)
}

func wrapCommand(next commands.Bus) commandFunc {
	return func(ctx context.Context, cmd commands.Command) (any, error) {
		return next.Dispatch(ctx, cmd)
	}
}

type queryFunc func(ctx context.Context, query queries.Query) (any, error)

func (f queryFunc) Ask(ctx context.Context, q queries.Query) (any, error) {
	return f(ctx, q)
}

func wrapQuery(next queries.Bus) queryFunc {
	return func(ctx context.Context, q queries.Query) (any, error) {
		return next.Ask(ctx, q)
	}
}

// Recorder receives one observation per dispatched message.
type Recorder interface {
	ObserveOperation(op, outcome string, elapsed time.Duration)
}

// InstrumentCommands records every command under "command:<key>" with its
// error code as outcome, and logs it with the target and actor it names.
func InstrumentCommands(rec Recorder, logger *slog.Logger) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			started := time.Now()
			res, err := nextFn(ctx, cmd)
			attrs := []any{"command", cmd.Key()}
			if target := commands.TargetOf(cmd); target != "" {
				attrs = append(attrs, "target_id", target)
			}
			if a, ok := cmd.(ActorCommand); ok && a.ActorID() != "" {
				attrs = append(attrs, "actor", a.ActorID())
			}
			observe(ctx, rec, logger, "command:"+cmd.Key(), started, err, attrs)
			return res, err
		})
	}
}

func InstrumentQueries(rec Recorder, logger *slog.Logger) QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			started := time.Now()
			res, err := nextFn(ctx, q)
			observe(ctx, rec, logger, "query:"+q.Key(), started, err, []any{"query", q.Key()})
			return res, err
		})
	}
}

func observe(ctx context.Context, rec Recorder, logger *slog.Logger, op string, started time.Time, err error, attrs []any) {
	elapsed := time.Since(started)
	outcome := "ok"
	if err != nil {
		outcome = apperrors.Code(err)
	}
	if rec != nil {
		rec.ObserveOperation(op, outcome, elapsed)
	}
	if logger == nil {
		return
	}
	attrs = append(attrs, "outcome", outcome, "elapsed_ms", elapsed.Milliseconds())
	level := slog.LevelDebug
	if outcome == apperrors.CodeInternal {
		level = slog.LevelError
		attrs = append(attrs, "error", err)
	}
	logger.Log(ctx, level, "bus message handled", attrs...)
}
