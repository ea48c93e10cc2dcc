package util

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

const (
	CodeValidation     = "VALIDATION_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeConflict       = "CONFLICT"
	CodeTerminal       = "TICKET_TERMINAL"
	CodeAlreadyClaimed = "TICKET_ALREADY_CLAIMED"
	CodeMalformedToken = "MALFORMED_TOKEN"
	CodeInternal       = "INTERNAL_ERROR"
)

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewTerminal reports an attempt to move a ticket out of a terminal state.
func NewTerminal(ticketID string, status string) error {
	return NewDomainError(CodeTerminal, "ticket already closed", http.StatusConflict,
		map[string]any{"ticket_id": ticketID, "status": status})
}

// NewAlreadyClaimed reports a lost claim race.
func NewAlreadyClaimed(ticketID string, assignee string) error {
	return NewDomainError(CodeAlreadyClaimed, "ticket already claimed", http.StatusConflict,
		map[string]any{"ticket_id": ticketID, "assignee": assignee})
}

// NewMalformedToken reports a correlation token that does not match its call site.
func NewMalformedToken(actionID string, err error) error {
	return &DomainError{
		Code:       CodeMalformedToken,
		Message:    "malformed interaction payload",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"action_id": actionID},
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given DomainError code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

func MapError(err error) error {
	return ToDomainError(err)
}
