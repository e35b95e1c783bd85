package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested record was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates an explicit throttling signal from a source.
	ErrRateLimited = errors.New("rate limited")

	// ErrSourceUnavailable indicates a transient network or server failure
	// from a source after retries were exhausted.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceDisabled indicates a call against a source that is disabled
	// by configuration.
	ErrSourceDisabled = errors.New("source disabled")

	// ErrMalformedRecord indicates a fetched record lacking the minimum
	// required fields. Such records are dropped, never stored.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrCacheBackend indicates a cache read or write failure. Callers fall
	// back to direct fetch; this never fails an aggregation.
	ErrCacheBackend = errors.New("cache backend error")

	// ErrAllSourcesFailed indicates that every enabled source failed. This is
	// the only per-aggregation condition surfaced to callers as a hard error.
	ErrAllSourcesFailed = errors.New("all sources failed")
)

// NotFoundError provides details about a record that was not found.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError provides details about a throttling signal from a source.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// MalformedRecordError provides details about a record that failed ingestion
// validation.
type MalformedRecordError struct {
	Source string
	Reason string
}

// Error implements the error interface.
func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record from %s: %s", e.Source, e.Reason)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}

// CacheBackendError wraps a failure from the cache backend.
type CacheBackendError struct {
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *CacheBackendError) Error() string {
	return fmt.Sprintf("cache %s failed: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *CacheBackendError) Unwrap() error {
	return ErrCacheBackend
}

// ExternalAPIError provides details about an external API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Source: source, RetryAfter: retryAfter}
}

// NewMalformedRecordError creates a new MalformedRecordError.
func NewMalformedRecordError(source, reason string) *MalformedRecordError {
	return &MalformedRecordError{Source: source, Reason: reason}
}

// NewCacheBackendError creates a new CacheBackendError.
func NewCacheBackendError(op string, cause error) *CacheBackendError {
	return &CacheBackendError{Op: op, Cause: cause}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{Source: source, StatusCode: statusCode, Message: message, Cause: cause}
}
