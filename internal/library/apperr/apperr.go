// Package apperr defines the error model shared by the library features.
// Handlers translate codes to HTTP statuses; messages are safe to show to
// callers, storage details stay behind this boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvalidState      Code = "INVALID_STATE"      // transition from a wrong state (approve non-pending, double return, double pay)
	CodePolicyViolation   Code = "POLICY_VIOLATION"   // borrow cap, outstanding fine, duplicate active borrow/reservation
	CodeResourceExhausted Code = "RESOURCE_EXHAUSTED" // no copies available
	CodeConflict          Code = "CONFLICT"           // transactional retries exhausted
	CodeInternal          Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError      { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError     { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrInvalidState(msg string) *APIError { return &APIError{Code: CodeInvalidState, Message: msg} }
func ErrPolicy(msg string) *APIError       { return &APIError{Code: CodePolicyViolation, Message: msg} }
func ErrExhausted(msg string) *APIError    { return &APIError{Code: CodeResourceExhausted, Message: msg} }
func ErrConflict(msg string) *APIError     { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError     { return &APIError{Code: CodeInternal, Message: msg} }

// CodeOf extracts the code, defaulting to INTERNAL for unknown errors.
func CodeOf(err error) Code {
	var api *APIError
	if errors.As(err, &api) {
		return api.Code
	}
	return CodeInternal
}

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeNotFound:
			return http.StatusNotFound
		case CodeInvalidState, CodeConflict:
			return http.StatusConflict
		case CodePolicyViolation:
			return http.StatusForbidden
		case CodeResourceExhausted:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
