// Package services implements the business logic of the anonymous comment
// subsystem. This file centralizes the service-level error values so they
// can be consistently returned by service methods and checked by callers.
//
// These errors are internal to the application; translation into HTTP
// statuses and user-facing messages happens at the handler layer.
package services

import "errors"

var (
	// ErrEmptyPostID is returned when an operation is invoked without a post
	// identifier (or with one that is all whitespace).
	ErrEmptyPostID = errors.New("post id is empty")

	// ErrEmptyText is returned when a comment's text is empty after trimming
	// surrounding whitespace.
	ErrEmptyText = errors.New("comment text is empty")

	// ErrStoreUnavailable indicates the key-value store failed to respond.
	// The operation is not retried internally; callers may retry the whole
	// request.
	ErrStoreUnavailable = errors.New("comment store unavailable")
)
