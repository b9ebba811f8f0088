package sqlstore

import (
	"errors"

	"github.com/cenkalti/backoff/v5"

	syncErrors "github.com/c0deZ3R0/go-sync-engine/errors"
)

// backoffPermanent marks failures that will not go away on retry, such as a
// record that cannot be encoded.
func backoffPermanent(err error) error {
	return backoff.Permanent(err)
}

// wrapStoreErr tags err with the store's op and component. Database errors
// stay retryable; permanent ones keep their marker so the retry coordinator
// gives up on them.
func wrapStoreErr(err error, op string) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return backoff.Permanent(syncErrors.WrapOpComponent(perm.Err, op, component))
	}
	if syncErrors.IsContextError(err) {
		return syncErrors.WrapOpComponent(err, op, component)
	}
	return syncErrors.E(syncErrors.Op(op), syncErrors.Component(component), syncErrors.NewStorageError(syncErrors.OpStore, err))
}
