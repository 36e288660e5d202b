package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a unique constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
	// ErrUnavailable indicates the backing store could not be reached or failed mid-query.
	ErrUnavailable = errors.New("repository: unavailable")
)
