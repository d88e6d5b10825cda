package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error classes. Typed errors below match these via errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrCapacityExhausted = errors.New("no free capacity found in the near future")
	ErrPrecondition      = errors.New("precondition failed")
)

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

// Invalid returns a ValidationError for a single field.
func Invalid(field, msg string) *ValidationError {
	return (&ValidationError{}).Add(field, msg)
}

// Add records msg for field; an existing message for the same field is kept
// and the new one appended.
func (e *ValidationError) Add(field, msg string) *ValidationError {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if prev, ok := e.Fields[field]; ok {
		msg = prev + "; " + msg
	}
	e.Fields[field] = msg
	return e
}

func (e *ValidationError) Empty() bool { return e == nil || len(e.Fields) == 0 }

// OrNil returns nil when no field was recorded, so callers can collect
// violations and return the result directly.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a missing record. Records owned by another user are
// reported the same way.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(resource string, id int64) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// CapacityExhaustedError reports that no day within Days has Duration free.
// Days is 0 when Duration exceeds every single day's capacity.
type CapacityExhaustedError struct {
	Duration Hours
	Days     int
}

func (e *CapacityExhaustedError) Error() string {
	if e.Days == 0 {
		return fmt.Sprintf("%s: %sh does not fit into a single day", ErrCapacityExhausted, e.Duration)
	}
	return fmt.Sprintf("%s: no day within %d days has %sh free", ErrCapacityExhausted, e.Days, e.Duration)
}

func (e *CapacityExhaustedError) Is(target error) bool { return target == ErrCapacityExhausted }

type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return ErrPrecondition.Error() + ": " + e.Reason }

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

func Precondition(reason string) *PreconditionError {
	return &PreconditionError{Reason: reason}
}
