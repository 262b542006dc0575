package tracker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pereirasil/corrida-app-sub000/internal/arbiter"
)

// Kind classifies session-level failures.
type Kind string

const (
	KindPermissionDenied   Kind = "permission_denied"
	KindResourceConflict   Kind = "resource_conflict"
	KindAcquisitionTimeout Kind = "acquisition_timeout"
	KindInvalidTransition  Kind = "invalid_transition"
)

// Error is a classified tracker failure. Fixes rejected by the quality
// classifier are never reported as errors; they only show up in GPSStats.
type Error struct {
	Kind      Kind
	Message   string
	Hint      string
	Retryable bool
	// Conflicts lists the registrations that blocked the GPS resource.
	Conflicts []arbiter.Registration
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the Err* sentinels work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrPermissionDenied = &Error{
		Kind:    KindPermissionDenied,
		Message: "location permission denied",
		Hint:    "grant location access and start again",
	}
	ErrResourceConflict = &Error{
		Kind:    KindResourceConflict,
		Message: "gps resource busy",
		Hint:    "stop the conflicting feature and start again",
	}
	ErrAcquisitionTimeout = &Error{
		Kind:      KindAcquisitionTimeout,
		Message:   "no gps fix before timeout, using approximate location",
		Hint:      "move to open sky and retry",
		Retryable: true,
	}
	ErrInvalidTransition = &Error{
		Kind:    KindInvalidTransition,
		Message: "invalid state transition",
	}
)

func permissionDenied(err error) *Error {
	e := *ErrPermissionDenied
	e.Err = err
	return &e
}

func resourceConflict(blockers []arbiter.Registration) *Error {
	e := *ErrResourceConflict
	e.Conflicts = blockers
	if len(blockers) > 0 {
		held := make([]string, len(blockers))
		for i, b := range blockers {
			held[i] = fmt.Sprintf("%s (%s/%d)", b.ID, b.Type, b.Priority)
		}
		e.Message = "gps resource busy: held by " + strings.Join(held, ", ")
	}
	return &e
}

func acquisitionTimeout(err error) *Error {
	e := *ErrAcquisitionTimeout
	e.Err = err
	return &e
}

func invalidTransition(op string, from State) *Error {
	e := *ErrInvalidTransition
	e.Message = fmt.Sprintf("cannot %s while %s", op, from)
	return &e
}

// KindOf returns the Kind of err, or "" if err is not a tracker error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HintOf returns the user-facing hint attached to err, if any.
func HintOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Hint
	}
	return ""
}

// RetryableOf reports whether the operation that produced err may succeed
// if retried without user action.
func RetryableOf(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// ConflictsOf returns the blocking registrations carried by a resource
// conflict error.
func ConflictsOf(err error) []arbiter.Registration {
	var e *Error
	if errors.As(err, &e) {
		return e.Conflicts
	}
	return nil
}
