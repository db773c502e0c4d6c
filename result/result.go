// Package result provides the success/failure envelope returned by every
// operation that can fail in the order core.
package result

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Symbolic error codes. HTTP failures use the status code as text ("401").
const (
	CodeNetwork           = "NETWORK_ERROR"
	CodeOffline           = "OFFLINE"
	CodeReservationFailed = "ID_RESERVATION_FAILED"
	CodeSyncAborted       = "SYNC_ABORTED"
	CodeSyncInProgress    = "SYNC_IN_PROGRESS"
	CodeLocalStorage      = "LOCAL_STORAGE_ERROR"
	CodeValidation        = "VALIDATION_ERROR"
)

// Error is the failure half of the envelope.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Status  int    `json:"status,omitempty"` // HTTP status, 0 for symbolic codes
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Result is either {OK: true, Value} or {OK: false, Err}.
type Result[T any] struct {
	OK    bool   `json:"ok"`
	Value T      `json:"value,omitempty"`
	Err   *Error `json:"error,omitempty"`
}

// Ok wraps a value.
func Ok[T any](v T) Result[T] {
	return Result[T]{OK: true, Value: v}
}

// Fail wraps an error. A nil error is turned into a generic failure so that
// a failed Result always carries an Err.
func Fail[T any](err *Error) Result[T] {
	if err == nil {
		err = &Error{Message: "unknown failure", Code: "UNKNOWN"}
	}
	return Result[T]{Err: err}
}

// Forward re-types a failed result, e.g. Result[[]X] into Result[int].
func Forward[T, U any](r Result[U]) Result[T] {
	return Fail[T](r.Err)
}

// Unwrap returns the value and a nil error, or the zero value and the error.
func (r Result[T]) Unwrap() (T, error) {
	if r.OK {
		return r.Value, nil
	}
	var zero T
	return zero, r.Err
}

// Network is returned when a request could not be sent or its response
// could not be read.
func Network(cause error) *Error {
	return &Error{Message: "network request failed", Code: CodeNetwork, Cause: cause}
}

// HTTP is returned when the server answered with a non-2xx status.
func HTTP(status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{Message: message, Code: strconv.Itoa(status), Status: status}
}

// Offline is returned when an operation needs connectivity (or a session)
// that is currently absent.
func Offline(message string) *Error {
	return &Error{Message: message, Code: CodeOffline}
}

// ReservationExhausted is returned when the ID reservation loop ran out of
// attempts.
func ReservationExhausted(attempts int) *Error {
	return &Error{
		Message: fmt.Sprintf("could not reserve an order id after %d attempts", attempts),
		Code:    CodeReservationFailed,
	}
}

// SyncAborted is returned when a sync batch stopped at an order it could not
// process. Synced orders before it stay synced.
func SyncAborted(synced, total int, orderID string, cause error) *Error {
	return &Error{
		Message: fmt.Sprintf("sync stopped at order %s after %d of %d orders", orderID, synced, total),
		Code:    CodeSyncAborted,
		Cause:   cause,
	}
}

// SyncInProgress is returned when a batch is requested while one is running.
func SyncInProgress() *Error {
	return &Error{Message: "a sync is already running", Code: CodeSyncInProgress}
}

// LocalStorage wraps a durable store failure.
func LocalStorage(cause error) *Error {
	return &Error{Message: "local storage failure", Code: CodeLocalStorage, Cause: cause}
}

// Validation is returned for rejected input.
func Validation(message string) *Error {
	return &Error{Message: message, Code: CodeValidation}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// HasStatus reports whether any *Error in err's cause chain carries status.
func HasStatus(err error, status int) bool {
	for err != nil {
		if re, ok := err.(*Error); ok {
			if re == nil {
				return false
			}
			if re.Status == status {
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsUnauthorized reports whether err (or any cause) is a 401.
func IsUnauthorized(err error) bool { return HasStatus(err, http.StatusUnauthorized) }

// IsNotFound reports whether err (or any cause) is a 404.
func IsNotFound(err error) bool { return HasStatus(err, http.StatusNotFound) }

// HasCode reports whether err (or any cause) carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		if re, ok := err.(*Error); ok {
			if re == nil {
				return false
			}
			if re.Code == code {
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}
