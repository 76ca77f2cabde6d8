package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuthentication covers a bad tenant secret, a missing session and
	// a wrong bootstrap token.
	ErrAuthentication   = errors.New("authentication failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	// ErrExpired is deliberately the same value as ErrNotFound: an expired
	// record cannot be told apart from a missing one.
	ErrExpired          = ErrNotFound
	ErrConflict         = errors.New("conflict")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrIdentityMismatch = errors.New("identity does not match the bound account")

	ErrStorageUnavailable = errors.New("storage unavailable")
)

// StorageError is returned whenever the store fails for a reason other than
// a business outcome. It matches ErrStorageUnavailable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage unavailable: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorageUnavailable }

var businessErrors = []error{
	ErrAuthentication,
	ErrPermissionDenied,
	ErrNotFound,
	ErrConflict,
	ErrInvalidRequest,
	ErrIdentityMismatch,
	ErrStorageUnavailable,
}

// storageErr passes service errors through and wraps everything else
// (driver errors, failed commits, cancelled contexts) in a StorageError.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return &StorageError{Op: op, Err: err}
}

// nowFrom reads an injected clock, falling back to the wall clock.
func nowFrom(clock func() time.Time) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock().UTC()
}
