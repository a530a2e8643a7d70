package types

import (
	"errors"
	"fmt"
)

// Lifecycle errors.
var (
	ErrCacheClosed        = errors.New("cache is closed")
	ErrAlreadyInitialized = errors.New("cache is already open")
)

// Schema and value errors. A batch failing with one of these commits nothing.
var (
	ErrTypeMismatch      = errors.New("value does not match declared type")
	ErrSerialization     = errors.New("value cannot be serialized")
	ErrInvalidDescriptor = errors.New("invalid property descriptor")
	ErrInvalidCategory   = errors.New("invalid data model category")
)

// Query errors.
var (
	ErrInvalidMatcher = errors.New("invalid property matcher")
	ErrInvalidOrder   = errors.New("invalid order specifier")
)

// Update errors.
var (
	ErrIntervalConflict   = errors.New("overlapping interval value already stored")
	ErrTimeBudgetExceeded = errors.New("update time budget exceeded")
	ErrLengthMismatch     = errors.New("ids and objects differ in length")
)

// StoreError records the operation and category of a storage failure.
type StoreError struct {
	Op       string
	Category DataModelCategory
	Err      error
}

func (e *StoreError) Error() string {
	if e.Category.IsZero() {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Category, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
