// Package apperr defines the typed error taxonomy shared by all business
// operations. Every failure a caller can act on is one of five classes;
// handlers map the class to an HTTP status and the metadata to a rendered
// message, so no operation ever surfaces a bare "access denied".
package apperr

import (
	"errors"
	"fmt"
)

// Class partitions failures by how the caller should react.
type Class string

const (
	// ClassForbidden: the principal lacks a required role or capability,
	// or the action is disabled by rules or a passed deadline.
	ClassForbidden Class = "forbidden"
	// ClassNotFound: a referenced course, assignment, group, or join code
	// does not resolve.
	ClassNotFound Class = "not_found"
	// ClassConflict: capacity exceeded, duplicate membership, or a join
	// code collision past the retry budget.
	ClassConflict Class = "conflict"
	// ClassBadRequest: the operation is invalid against the resolved
	// rules, e.g. a team operation on an individual-only assignment.
	ClassBadRequest Class = "bad_request"
	// ClassInternal: persistence or registry inconsistency.
	ClassInternal Class = "internal"
)

// Error is a classified failure with structured context for the caller.
type Error struct {
	Class   Class
	Message string
	// Meta carries the specific requirement that failed (entity id,
	// required role, rule flag, deadline) keyed by short field names.
	Meta map[string]string
	// Err is the wrapped cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match on class, so sentinel-style checks like
// errors.Is(err, apperr.ErrConflict) work across wrapped chains.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Class == e.Class && (t.Message == "" || t.Message == e.Message)
}

// Class sentinels for errors.Is checks.
var (
	ErrForbidden  = &Error{Class: ClassForbidden}
	ErrNotFound   = &Error{Class: ClassNotFound}
	ErrConflict   = &Error{Class: ClassConflict}
	ErrBadRequest = &Error{Class: ClassBadRequest}
	ErrInternal   = &Error{Class: ClassInternal}
)

// New creates a classified error.
func New(class Class, message string) *Error {
	return &Error{Class: class, Message: message}
}

// Forbidden creates a forbidden error with key/value context pairs.
func Forbidden(message string, kv ...string) *Error {
	return withMeta(ClassForbidden, message, kv)
}

// NotFound creates a not-found error with key/value context pairs.
func NotFound(message string, kv ...string) *Error {
	return withMeta(ClassNotFound, message, kv)
}

// Conflict creates a conflict error with key/value context pairs.
func Conflict(message string, kv ...string) *Error {
	return withMeta(ClassConflict, message, kv)
}

// BadRequest creates a bad-request error with key/value context pairs.
func BadRequest(message string, kv ...string) *Error {
	return withMeta(ClassBadRequest, message, kv)
}

// Internal wraps a defect-class cause.
func Internal(message string, err error) *Error {
	return &Error{Class: ClassInternal, Message: message, Err: err}
}

func withMeta(class Class, message string, kv []string) *Error {
	e := &Error{Class: class, Message: message}
	if len(kv) > 0 {
		e.Meta = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Meta[kv[i]] = kv[i+1]
		}
	}
	return e
}

// ClassOf extracts the taxonomy class of err, or ClassInternal for
// unclassified errors.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ClassInternal
}

// MetaOf extracts the structured context of err, if any.
func MetaOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Meta
	}
	return nil
}
