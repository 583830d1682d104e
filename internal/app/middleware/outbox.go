package middleware

import (
	"context"

	"glampstay/internal/app/commands"
	"glampstay/internal/app/outbox"
)

// OutboxFlush nudges the relay after a successful command. The events are
// already committed, so a failed nudge only delays publication.
func OutboxFlush(flusher outbox.Flusher, onError func(error)) CommandMiddleware {
	if flusher == nil {
		panic("middleware: outbox flusher required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := flusher.Flush(ctx); err != nil && onError != nil {
				onError(err)
			}
			return res, nil
		})
	}
}
