package session

import "errors"

var (
	// ErrNotFound is returned when no record exists for a session id.
	ErrNotFound = errors.New("session not found")
	// ErrInactive is returned when a command targets an ended session.
	ErrInactive = errors.New("session is not active")
	// ErrAlreadyExists is returned when creating a record that already exists.
	ErrAlreadyExists = errors.New("session already exists")
	// ErrForbidden is returned when a principal lacks owner/admin rights
	// for a state transition.
	ErrForbidden = errors.New("admin privileges required")
	// ErrVersionConflict is returned by Save when the stored version does
	// not match the expected one (lost optimistic-update race).
	ErrVersionConflict = errors.New("session version conflict")
	// ErrStoreUnavailable wraps durable-store failures. No partial state
	// is committed when it is returned.
	ErrStoreUnavailable = errors.New("session store unavailable")
)
