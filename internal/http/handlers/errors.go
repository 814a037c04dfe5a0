// Package handlers defines the HTTP-layer error codes used across the API.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status
// semantics; domain-specific codes mark business failures that the status
// alone cannot convey, most importantly the generation error taxonomy that
// clients surface to users verbatim.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeGenerationFailed = "generation_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeDeleteFailed     = "delete_failed"
	ErrCodeDownloadFailed   = "download_failed"
)
