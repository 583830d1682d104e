package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"glampstay/internal/app/commands"
	"glampstay/internal/apperrors"
)

// IdempotentCommand must be implemented by commands that want idempotency guarantees.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // should match the handler result type
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	OccurredAt time.Time
}

// IdempotencyStore keeps completed results and in-flight reservations.
//
// Reserve claims key for one in-flight execution and reports false when the
// key is already reserved or completed. Save replaces the reservation with the
// final result; Release drops a reservation whose execution failed.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Reserve(ctx context.Context, key string) (bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
	Release(ctx context.Context, key string) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var (
	errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")
	// ErrRequestInProgress is returned to a duplicate that arrives while the
	// first request with the same key is still executing.
	ErrRequestInProgress = fmt.Errorf("middleware: %w", apperrors.ErrRequestInProgress)
)

// Idempotency replays the stored result of a completed command with the same
// key. Failed executions are not stored, so a retry runs the command again.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok {
				return nextFn(ctx, cmd)
			}
			if idCmd.IdempotencyKey() == "" {
				return nextFn(ctx, cmd)
			}
			key := idempotencyScope(cmd, idCmd.IdempotencyKey())
			if res, found, err := replay(ctx, store, codec, idCmd, key); err != nil || found {
				return res, err
			}
			reserved, err := store.Reserve(ctx, key)
			if err != nil {
				return nil, err
			}
			if !reserved {
				if res, found, err := replay(ctx, store, codec, idCmd, key); err != nil || found {
					return res, err
				}
				return nil, ErrRequestInProgress
			}

			result, err := nextFn(ctx, cmd)
			if err != nil {
				if relErr := store.Release(context.WithoutCancel(ctx), key); relErr != nil {
					return nil, errors.Join(err, relErr)
				}
				return nil, err
			}
			record := IdempotencyRecord{Key: key, OccurredAt: time.Now().UTC()}
			if result != nil {
				payload, encErr := codec.Encode(result)
				if encErr != nil {
					return nil, encErr
				}
				record.Payload = payload
			}
			if saveErr := store.Save(context.WithoutCancel(ctx), record); saveErr != nil {
				return nil, saveErr
			}
			return result, nil
		})
	}
}

// idempotencyScope namespaces a client key by command and target record, so
// reusing a key against another booking runs that command instead of
// replaying the first record's result.
func idempotencyScope(cmd commands.Command, clientKey string) string {
	if target := commands.TargetOf(cmd); target != "" {
		return cmd.Key() + ":" + target + ":" + clientKey
	}
	return cmd.Key() + ":" + clientKey
}

func replay(ctx context.Context, store IdempotencyStore, codec ResultCodec, cmd IdempotentCommand, key string) (any, bool, error) {
	rec, found, err := store.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, true, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return nil, true, nil
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, true, err
	}
	return normalizePrototype(proto), true, nil
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
