// Package services defines the business logic for story generation and the
// story library. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer. Generation failures carry richer classification
// and are returned as *generation.ClassifiedError rather than sentinels.
package services

import "errors"

// Story-related errors.
var (
	// ErrStoryNotFound indicates that the requested story does not exist.
	ErrStoryNotFound = errors.New("story not found")

	// ErrEmptyPrompt is returned when a request to generate a story contains
	// an empty prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when a prompt exceeds the maximum configured
	// length limit.
	ErrTooLong = errors.New("prompt too long")
)
