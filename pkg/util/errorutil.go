package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to callers.
const (
	CodeValidation      = "VALIDATION_FAILED"
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidState    = "INVALID_STATE_TRANSITION"
	CodeAlreadyClaimed  = "ALREADY_CLAIMED"
	CodePermission      = "PERMISSION_DENIED"
	CodeDuplicateMember = "DUPLICATE_MEMBER"
	CodeCapacity        = "CAPACITY_EXCEEDED"
	CodeLastMember      = "LAST_MEMBER"
	CodeBusy            = "BUSY"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeInternal        = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks; matching is by Code only.
var (
	ErrValidation      = &DomainError{Code: CodeValidation}
	ErrNotFound        = &DomainError{Code: CodeNotFound}
	ErrInvalidState    = &DomainError{Code: CodeInvalidState}
	ErrAlreadyClaimed  = &DomainError{Code: CodeAlreadyClaimed}
	ErrPermission      = &DomainError{Code: CodePermission}
	ErrDuplicateMember = &DomainError{Code: CodeDuplicateMember}
	ErrCapacity        = &DomainError{Code: CodeCapacity}
	ErrLastMember      = &DomainError{Code: CodeLastMember}
	ErrBusy            = &DomainError{Code: CodeBusy}
	ErrUnauthorized    = &DomainError{Code: CodeUnauthorized}
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
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

func NewInvalidTransition(resource, from, action string) error {
	return NewDomainError(CodeInvalidState,
		fmt.Sprintf("%s cannot %s from status %s", resource, action, from),
		http.StatusConflict,
		map[string]any{"status": from, "action": action})
}

func NewAlreadyClaimed(workOrderID string) error {
	return NewDomainError(CodeAlreadyClaimed, "work order already claimed", http.StatusConflict,
		map[string]any{"work_order_id": workOrderID})
}

func NewPermissionDenied(message string) error {
	return NewDomainError(CodePermission, message, http.StatusForbidden, nil)
}

func NewDuplicateMember(workOrderID, technicianID string) error {
	return NewDomainError(CodeDuplicateMember, "technician already on work order", http.StatusConflict,
		map[string]any{"work_order_id": workOrderID, "technician_id": technicianID})
}

func NewCapacityExceeded(workOrderID string, max int) error {
	return NewDomainError(CodeCapacity, "work order team is full", http.StatusConflict,
		map[string]any{"work_order_id": workOrderID, "max_team_size": max})
}

func NewLastMember(workOrderID string) error {
	return NewDomainError(CodeLastMember, "work order must keep at least one technician", http.StatusConflict,
		map[string]any{"work_order_id": workOrderID})
}

func NewBusy(err error) error {
	return &DomainError{
		Code:       CodeBusy,
		Message:    "resource busy, retry later",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsRetryable reports whether the caller may retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy)
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		if domainErr.HTTPStatus == 0 {
			copied := *domainErr
			copied.HTTPStatus = http.StatusInternalServerError
			return &copied
		}
		return domainErr
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	return ToDomainError(err)
}
