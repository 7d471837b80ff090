package syncer

import "errors"

var (
	// ErrUnauthorized means there is no valid session; sync is not attempted.
	ErrUnauthorized = errors.New("not authenticated")

	// ErrMigrationRequired blocks sync until the local replica is migrated.
	ErrMigrationRequired = errors.New("local migration required before sync")

	// ErrNetworkFailure is a transient transport error; the next natural
	// trigger retries the same window.
	ErrNetworkFailure = errors.New("network failure")

	// ErrRemoteRejected is a non-2xx application error from the remote.
	// Treated like a network failure for retry purposes.
	ErrRemoteRejected = errors.New("remote rejected request")

	// ErrNotFound is returned by a replica read for an unknown record.
	ErrNotFound = errors.New("record not found")
)
