// Package generation implements the content pipeline stages: story text via
// a chat-completion provider, scene images with a procedural fallback,
// narration audio, and the supporting text normalization. Stages are
// independent of each other; the orchestrator in services wires them in
// order.
//
// This file defines the classified error contract for the text stage. The
// provider surfaces failures as free text, so classification is a
// best-effort substring match against an enumerated table. Providers do not
// guarantee these substrings long-term; the table below is the single place
// to amend when they drift. Unmatched errors land in KindUnknown.
package generation

import (
	"errors"
	"fmt"
	"strings"
)

// Kind enumerates the terminal failure classes of the text stage.
type Kind string

// Classification buckets. Timeout and unknown failures are retryable up to
// the generator's attempt bound; quota and permission failures are terminal
// on first occurrence.
const (
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindPermissionDenied   Kind = "permission_denied"
	KindTimeout            Kind = "timeout"
	KindJSONError          Kind = "json_error"
	KindUnknown            Kind = "unknown_error"
	KindMaxRetriesExceeded Kind = "max_retries_exceeded"
)

// classRule maps a provider-error substring to a Kind. Rules are evaluated
// in order; the first match wins.
type classRule struct {
	substr string
	kind   Kind
}

// "deadline" outranks the bare "exceeded" so "context deadline exceeded"
// classifies as a retryable timeout, not a quota failure.
var classRules = []classRule{
	{"429", KindQuotaExceeded},
	{"quota", KindQuotaExceeded},
	{"403", KindPermissionDenied},
	{"permission", KindPermissionDenied},
	{"timeout", KindTimeout},
	{"deadline", KindTimeout},
	{"exceeded", KindQuotaExceeded},
}

// userMessages maps each Kind to the message surfaced to callers.
var userMessages = map[Kind]string{
	KindQuotaExceeded:      "AI Service Quota Exceeded: The AI service has reached its daily limit. Please try again tomorrow or upgrade your plan.",
	KindPermissionDenied:   "AI Service Access Denied: There's an issue with the AI service configuration. Please contact support.",
	KindTimeout:            "AI Service Timeout: The AI service took too long to respond. Please try again.",
	KindJSONError:          "AI Service Error: The AI service returned a malformed response. Please try again.",
	KindUnknown:            "AI Service Error: An unexpected error occurred. Please try again.",
	KindMaxRetriesExceeded: "AI Service Error: The AI service failed repeatedly. Please try again later.",
}

// ClassifiedError is a text-stage failure tagged with its Kind. It wraps
// the provider error (if any) for logs while exposing a stable user-facing
// message for the HTTP layer.
type ClassifiedError struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying provider error to errors.Is/As.
func (e *ClassifiedError) Unwrap() error { return e.Err }

// UserMessage returns the caller-facing message for the error's Kind.
func (e *ClassifiedError) UserMessage() string {
	if m, ok := userMessages[e.Kind]; ok {
		return m
	}
	return userMessages[KindUnknown]
}

// Retryable reports whether the generator may attempt again after this
// error, subject to its attempt bound.
func (e *ClassifiedError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindJSONError, KindUnknown:
		return true
	}
	return false
}

// Classify wraps a provider error with its Kind derived from the rule
// table. A nil error returns nil. Errors already classified pass through
// unchanged.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}
	low := strings.ToLower(err.Error())
	for _, r := range classRules {
		if strings.Contains(low, r.substr) {
			return &ClassifiedError{Kind: r.kind, Err: err}
		}
	}
	return &ClassifiedError{Kind: KindUnknown, Err: err}
}
