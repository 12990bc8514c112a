package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed       ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationMissingField ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrorCodeValidationAmount       ErrorCode = "VALIDATION_AMOUNT_INVALID"

	// Conflict Errors (CONFLICT_*) - illegal lifecycle transitions
	ErrorCodeConflictAlreadySubscribed ErrorCode = "CONFLICT_ALREADY_SUBSCRIBED"
	ErrorCodeConflictInvalidTransition ErrorCode = "CONFLICT_INVALID_TRANSITION"

	// Not Found Errors (NOT_FOUND_*)
	ErrorCodePlanNotFound         ErrorCode = "NOT_FOUND_PLAN"
	ErrorCodeSubscriptionNotFound ErrorCode = "NOT_FOUND_SUBSCRIPTION"
	ErrorCodePaymentNotFound      ErrorCode = "NOT_FOUND_PAYMENT"

	// Payment Gateway Errors (GATEWAY_*)
	ErrorCodeGatewayError    ErrorCode = "GATEWAY_ERROR"
	ErrorCodeGatewayTimeout  ErrorCode = "GATEWAY_TIMEOUT"
	ErrorCodeGatewayDeclined ErrorCode = "GATEWAY_DECLINED"

	// Webhook Errors (WEBHOOK_*)
	ErrorCodeWebhookMalformed ErrorCode = "WEBHOOK_MALFORMED"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail returns a copy of the error with an added detail field. The
// receiver is left untouched so the shared error instances stay immutable.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{
		Err:     e.Err,
		Details: details,
		Code:    e.Code,
		Message: e.Message,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsValidationError checks if an error is an input validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed ||
		code == ErrorCodeValidationMissingField ||
		code == ErrorCodeValidationAmount
}

// IsConflictError checks if an error represents an illegal lifecycle transition
func IsConflictError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeConflictAlreadySubscribed ||
		code == ErrorCodeConflictInvalidTransition
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodePlanNotFound ||
		code == ErrorCodeSubscriptionNotFound ||
		code == ErrorCodePaymentNotFound
}

// IsGatewayError checks if an error is a payment gateway error
func IsGatewayError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeGatewayError ||
		code == ErrorCodeGatewayTimeout ||
		code == ErrorCodeGatewayDeclined
}

// Structured error instances
var (
	ErrValidationFailed       = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrValidationMissingField = NewDomainError(ErrorCodeValidationMissingField, "required field missing")
	ErrValidationAmount       = NewDomainError(ErrorCodeValidationAmount, "invalid amount")

	ErrAlreadySubscribed = NewDomainError(ErrorCodeConflictAlreadySubscribed, "user already has a subscription")
	ErrInvalidTransition = NewDomainError(ErrorCodeConflictInvalidTransition, "operation is not legal in the current subscription status")

	ErrPlanNotFound         = NewDomainError(ErrorCodePlanNotFound, "plan not found")
	ErrSubscriptionNotFound = NewDomainError(ErrorCodeSubscriptionNotFound, "subscription not found")
	ErrPaymentNotFound      = NewDomainError(ErrorCodePaymentNotFound, "payment not found")

	ErrGatewayError    = NewDomainError(ErrorCodeGatewayError, "payment gateway error")
	ErrGatewayTimedOut = NewDomainError(ErrorCodeGatewayTimeout, "gateway call timed out, outcome unknown")
	ErrGatewayDeclined = NewDomainError(ErrorCodeGatewayDeclined, "payment declined by gateway")

	ErrWebhookMalformed = NewDomainError(ErrorCodeWebhookMalformed, "webhook payload could not be parsed")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
)
