// Package errors provides centralized error definitions and error handling
// utilities for taskdash. It defines domain-specific errors, semantic error
// types, error constructors with context wrapping, and error classification
// helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - ParseError: errors and warnings surfaced while parsing a task plan
//     or an event log line
//   - WatchError: errors from the filesystem watcher, including the
//     terminal "exhausted retries" condition
//   - WriteError: errors from the plan writer's status-tag splice
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewWatchError("plan directory removed", errors.ErrWatchExhausted)
//	err = err.WithTarget("/home/me/TASKS.md").WithAttempt(3)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrWatchExhausted) { ... }
//
//	var watchErr *errors.WatchError
//	if errors.As(err, &watchErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Append accumulates non-fatal issues (parse warnings, malformed lines) from
// a single pass without short-circuiting on the first one. It is a thin
// wrapper over multierr.Append so callers never hand-roll an []error slice.
func Append(into error, err error) error {
	return multierr.Append(into, err)
}

// Errors splits an aggregated error back into its components, in the order
// they were appended. A nil or non-aggregate error yields a one- or
// zero-element slice.
func Errors(err error) []error {
	return multierr.Errors(err)
}

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Parse-related sentinel errors
var (
	// ErrDuplicateTaskID indicates a task id appeared more than once in a plan.
	ErrDuplicateTaskID = New("duplicate task id")
	// ErrUnknownStatusTag indicates a status tag literal was not recognized.
	ErrUnknownStatusTag = New("unknown status tag")
	// ErrMissingTaskID indicates a task heading had no id field.
	ErrMissingTaskID = New("task heading missing id")
	// ErrMalformedEventLine indicates a JSONL event line could not be parsed.
	ErrMalformedEventLine = New("malformed event line")
)

// Watch-related sentinel errors
var (
	// ErrWatchTransient indicates a recoverable watcher failure (retry in progress).
	ErrWatchTransient = New("watcher failure, retrying")
	// ErrWatchExhausted indicates the watcher exhausted its reconnect attempts.
	ErrWatchExhausted = New("watcher exhausted reconnect attempts")
)

// Plan-write sentinel errors
var (
	// ErrTaskNotFound indicates set_status was called for an unknown task id.
	ErrTaskNotFound = New("task not found")
	// ErrStaleWrite indicates the captured status-tag range no longer matches
	// the on-disk plan; the caller must re-parse and retry.
	ErrStaleWrite = New("plan changed since last parse; write is stale")
)

// General sentinel errors
var (
	// ErrTimeout indicates an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// TaskdashError is the base interface for all taskdash errors. It extends
// the standard error interface with additional methods for classification.
type TaskdashError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) IsRetryable() bool  { return e.retryable }
func (e *baseError) IsUserFacing() bool { return e.userFacing }

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ParseErrorKind categorizes a plan or event parse issue.
type ParseErrorKind string

const (
	ParseErrKindDuplicateTaskID  ParseErrorKind = "duplicate_task_id"
	ParseErrKindUnknownStatus    ParseErrorKind = "unknown_status_tag"
	ParseErrKindMissingTaskID    ParseErrorKind = "missing_task_id"
	ParseErrKindUnrecognized     ParseErrorKind = "unrecognized_construct"
	ParseErrKindInvalidUTF8      ParseErrorKind = "invalid_utf8"
	ParseErrKindMalformedEvent   ParseErrorKind = "malformed_event_line"
	ParseErrKindUnparseableStamp ParseErrorKind = "unparseable_timestamp"
)

// ParseError is a non-fatal parse warning scoped to a byte span of the
// source file. The plan parser and event parser never return ParseError as
// a hard failure; it is accumulated into PlanFile.Warnings /
// the tail reader's malformed-line counter instead.
//
// Example:
//
//	warn := errors.NewParseError(errors.ParseErrKindDuplicateTaskID, "duplicate task id \"P1-T1\"", 412, 430)
type ParseError struct {
	baseError
	Kind       ParseErrorKind
	SpanStart  int
	SpanEnd    int
	LineNumber int
}

// NewParseError creates a new ParseError scoped to [spanStart, spanEnd) bytes.
func NewParseError(kind ParseErrorKind, message string, spanStart, spanEnd int) *ParseError {
	return &ParseError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		Kind:      kind,
		SpanStart: spanStart,
		SpanEnd:   spanEnd,
	}
}

// WithLine records the 1-based line number the issue was found on, when known.
func (e *ParseError) WithLine(n int) *ParseError {
	e.LineNumber = n
	return e
}

func (e *ParseError) Error() string {
	if e.LineNumber > 0 {
		return fmt.Sprintf("parse warning [line %d, bytes %d:%d]: %s", e.LineNumber, e.SpanStart, e.SpanEnd, e.message)
	}
	return fmt.Sprintf("parse warning [bytes %d:%d]: %s", e.SpanStart, e.SpanEnd, e.message)
}

func (e *ParseError) Is(target error) bool {
	if _, ok := target.(*ParseError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WatchError represents a filesystem-watcher failure (spec §4.3/§7):
// resource exhaustion, a deleted watch root, or an event-queue overflow.
// Up to 3 reconnect attempts are retryable; the 4th is terminal.
type WatchError struct {
	baseError
	Target  string
	Attempt int
}

// NewWatchError creates a new WatchError. Use WithRetryable(true) while
// reconnect attempts remain, and wrap ErrWatchExhausted once they don't.
func NewWatchError(message string, cause error) *WatchError {
	return &WatchError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: true,
		},
	}
}

// WithTarget records the watch target (file or directory) that failed.
func (e *WatchError) WithTarget(target string) *WatchError {
	e.Target = target
	return e
}

// WithAttempt records which reconnect attempt (1-based) produced this error.
func (e *WatchError) WithAttempt(n int) *WatchError {
	e.Attempt = n
	return e
}

// WithRetryable overrides the default retryable=true (set false once
// reconnect attempts are exhausted).
func (e *WatchError) WithRetryable(r bool) *WatchError {
	e.retryable = r
	return e
}

func (e *WatchError) Error() string {
	var parts []string
	if e.Target != "" {
		parts = append(parts, fmt.Sprintf("target=%s", e.Target))
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}

	prefix := "watch error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("watch error [%s]", strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

func (e *WatchError) Is(target error) bool {
	if _, ok := target.(*WatchError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WriteErrorKind categorizes a plan-writer failure (spec §4.6).
type WriteErrorKind string

const (
	WriteErrKindNotFound WriteErrorKind = "not_found"
	WriteErrKindStale    WriteErrorKind = "stale"
	WriteErrKindIO       WriteErrorKind = "io_error"
)

// WriteError represents a set_status failure: NotFound, Stale, or IoError
// per spec §4.6/§7.
type WriteError struct {
	baseError
	Kind   WriteErrorKind
	TaskID string
}

// NewWriteError creates a new WriteError of the given kind for taskID.
func NewWriteError(kind WriteErrorKind, taskID string, cause error) *WriteError {
	retryable := kind == WriteErrKindStale || kind == WriteErrKindIO
	return &WriteError{
		baseError: baseError{
			message:    string(kind),
			cause:      cause,
			severity:   SeverityError,
			retryable:  retryable,
			userFacing: true,
		},
		Kind:   kind,
		TaskID: taskID,
	}
}

func (e *WriteError) Error() string {
	base := fmt.Sprintf("write error [task=%s, kind=%s]", e.TaskID, e.Kind)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

func (e *WriteError) Is(target error) bool {
	if _, ok := target.(*WriteError); ok {
		return true
	}
	switch e.Kind {
	case WriteErrKindNotFound:
		if errors.Is(target, ErrTaskNotFound) {
			return true
		}
	case WriteErrKindStale:
		if errors.Is(target, ErrStaleWrite) {
			return true
		}
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state (e.g. a malformed CLI flag).
type ValidationError struct {
	baseError
	Field string
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error [field=%s]: %s", e.Field, e.message)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
}

func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var td TaskdashError
	if As(err, &td) {
		return td.IsRetryable()
	}
	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var td TaskdashError
	if As(err, &td) {
		return td.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error, defaulting to
// SeverityError for errors that don't implement TaskdashError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var td TaskdashError
	if As(err, &td) {
		return td.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
