package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Typed errors for the service layer. Handlers classify these into HTTP
// statuses via Classify; everything unrecognized maps to a generic 500.

// NotFoundError means the requested entity does not exist.
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

func NotFound(resource string, id any) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// AlreadyExistsError means a uniqueness rule was violated.
type AlreadyExistsError struct {
	Resource string
	Field    string
	Value    any
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s with %s %v already exists", e.Resource, e.Field, e.Value)
}

func AlreadyExists(resource, field string, value any) *AlreadyExistsError {
	return &AlreadyExistsError{Resource: resource, Field: field, Value: value}
}

// StoreError wraps any database failure with the failing statement context.
// The raw driver error stays inside Err and is never shown to clients.
type StoreError struct {
	Stmt string
	Args []any
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %v (stmt: %s)", e.Err, e.Stmt)
}

func (e *StoreError) Unwrap() error { return e.Err }

func Store(stmt string, args []any, err error) *StoreError {
	return &StoreError{Stmt: stmt, Args: args, Err: err}
}

// CacheError wraps any cache failure with the operation and key context.
// A missing key is not a CacheError; callers get a plain miss for that.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

func Cache(op, key string, err error) *CacheError {
	return &CacheError{Op: op, Key: key, Err: err}
}

// ValidationError carries field-level problems with a request payload.
// Normally produced by the binding layer, not the service.
type ValidationError struct {
	Details map[string]string
}

func (e *ValidationError) Error() string { return "validation failed" }

func Validation(details map[string]string) *ValidationError {
	return &ValidationError{Details: details}
}

// Classify maps an error to the envelope's (code, statusCode, details).
func Classify(err error) (code string, status int, details any) {
	var nf *NotFoundError
	var ae *AlreadyExistsError
	var ve *ValidationError
	var se *StoreError
	var ce *CacheError
	switch {
	case errors.As(err, &nf):
		return "NOT_FOUND", http.StatusNotFound, nil
	case errors.As(err, &ae):
		return "ALREADY_EXISTS", http.StatusConflict, map[string]string{ae.Field: "already in use"}
	case errors.As(err, &ve):
		return "VALIDATION_ERROR", http.StatusBadRequest, ve.Details
	case errors.As(err, &se):
		return "STORE_ERROR", http.StatusInternalServerError, nil
	case errors.As(err, &ce):
		return "CACHE_ERROR", http.StatusInternalServerError, nil
	default:
		return "INTERNAL_ERROR", http.StatusInternalServerError, nil
	}
}
