package lock

import (
	"errors"
	"fmt"
	"strings"
	"time"

	fmerrors "github.com/mirkobrombin/go-fastmutex/v1/errors"
)

var (
	// ErrAcquireTimeout matches every *TimeoutError.
	ErrAcquireTimeout = errors.New("fastmutex: lock acquisition timed out")
	// ErrEmptyKey is returned for empty or blank lock keys.
	ErrEmptyKey = errors.New("fastmutex: key must not be empty")
	// ErrAlreadyHeld is returned by Lock when this client already holds the key.
	ErrAlreadyHeld = errors.New("fastmutex: lock already held by this client")
	// ErrLockInProgress is returned by Lock when this client is already
	// acquiring the same key.
	ErrLockInProgress = errors.New("fastmutex: lock acquisition already in progress for key")
)

// TimeoutError is returned by Lock when the lock could not be acquired
// within the configured timeout. It carries the stats of the failed chain.
type TimeoutError struct {
	Key     string
	Timeout time.Duration
	Stats   Stats
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fastmutex: lock %q could not be acquired within %s", e.Key, e.Timeout)
}

// Is reports whether target is ErrAcquireTimeout or the generic ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrAcquireTimeout || target == fmerrors.ErrTimeout
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	return nil
}
