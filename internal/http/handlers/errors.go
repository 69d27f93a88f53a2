// Package handlers defines the HTTP-layer error codes used across the
// comment API.
//
// Codes are lowercase snake_case and give clients a stable, machine-readable
// taxonomy alongside the HTTP status: 4xx codes mark client-caused failures
// (bad input, wrong method, unknown route), 5xx codes mark infrastructure
// failures. Handlers pick the most specific code and pass it to fail().
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// ErrCodeStorage marks transient key-value store failures. The request
	// was not retried server-side; clients may retry the whole operation.
	ErrCodeStorage = "storage_unavailable"
)
