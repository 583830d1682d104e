package mongo

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"glampstay/internal/apperrors"
)

const (
	writeConflictCode         = 112
	transientTransactionLabel = "TransientTransactionError"
)

// translate maps transaction conflicts onto the concurrent modification kind
// and leaves every other driver error untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if isConflict(err) {
		return fmt.Errorf("mongo: %w: %w", apperrors.ErrConcurrentModification, err)
	}
	return err
}

func isConflict(err error) bool {
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) && labeled.HasErrorLabel(transientTransactionLabel) {
		return true
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == writeConflictCode {
		return true
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if we.Code == writeConflictCode {
				return true
			}
		}
	}
	return false
}
