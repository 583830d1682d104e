package middleware

import (
	"context"
	"fmt"
	"strings"

	"glampstay/internal/app/commands"
	"glampstay/internal/apperrors"
)

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// ActorCommand is implemented by commands performed on behalf of a named actor.
type ActorCommand interface {
	ActorID() string
}

// ActorRequired rejects actor commands that do not name their actor. Role
// checks that depend on the command payload stay with the service.
type ActorRequired struct{}

func (ActorRequired) Authorize(_ context.Context, message any) error {
	cmd, ok := message.(ActorCommand)
	if !ok {
		return nil
	}
	if strings.TrimSpace(cmd.ActorID()) == "" {
		return fmt.Errorf("%w: actor required", apperrors.ErrAuthorizationDenied)
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}
