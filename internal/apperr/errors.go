// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrReadOnly    = errors.New("read-only")
	ErrInvalidDate = errors.New("invalid date")
	ErrSaveFailed  = errors.New("save failed")
	ErrInvalidTask = errors.New("invalid task")
)
