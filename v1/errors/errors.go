// Package errors holds the sentinel errors shared by the store backends and
// the lock protocol. Match them with errors.Is.
package errors

import "errors"

var (
	// ErrTimeout reports that an operation ran past its deadline, either a
	// single backend call or a whole lock acquisition.
	ErrTimeout = errors.New("fastmutex: timeout")
	// ErrConnectionClosed reports that the backend connection was closed.
	ErrConnectionClosed = errors.New("fastmutex: connection closed")
	// ErrStoreUnavailable reports that a backend is refusing calls, for
	// instance because its circuit breaker is open.
	ErrStoreUnavailable = errors.New("fastmutex: store unavailable")
)
