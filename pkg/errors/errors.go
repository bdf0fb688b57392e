package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	// CodeCapacityExceeded signals a segment whose quota of open tickets is used up.
	CodeCapacityExceeded Code = "CAPACITY_EXCEEDED"
	CodeIdempotency      Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit        Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal         Code = "INTERNAL_ERROR"
	CodeDependency       Code = "DEPENDENCY_ERROR"
)

// Reason values narrow a code down to the specific rule that was broken.
// They travel in Details under the "reason" key.
const (
	ReasonMaxSchedulesExceeded     = "MAX_SCHEDULES_EXCEEDED"
	ReasonInvalidRule              = "INVALID_RULE"
	ReasonSegmentFull              = "SEGMENT_FULL"
	ReasonPastDatetime             = "PAST_DATETIME"
	ReasonTerminalStateViolation   = "TERMINAL_STATE_VIOLATION"
	ReasonAlreadyAcceptedBySibling = "ALREADY_ACCEPTED_BY_SIBLING"
	ReasonItemWithdrawn            = "ITEM_WITHDRAWN"
	ReasonItemFrozen               = "ITEM_FROZEN"
	ReasonAssignNotAccepted        = "ASSIGN_NOT_ACCEPTED"
	ReasonUnavailableInstant       = "UNAVAILABLE_INSTANT"
	ReasonLeadTime                 = "LEAD_TIME"
	ReasonDailyLimitReached        = "DAILY_LIMIT_REACHED"
	ReasonRequestInProgress        = "REQUEST_IN_PROGRESS"
	ReasonKeyFingerprintMismatch   = "KEY_FINGERPRINT_MISMATCH"
)

// Metadata is how a code is presented over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func meta(status int, public string, retryable, details bool) Metadata {
	return Metadata{HTTPStatus: status, Retryable: retryable, PublicMessage: public, DetailsAllowed: details}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:       meta(http.StatusBadRequest, "validation failed", false, true),
	CodeUnauthorized:     meta(http.StatusUnauthorized, "authentication required", false, false),
	CodeForbidden:        meta(http.StatusForbidden, "access denied", false, false),
	CodeNotFound:         meta(http.StatusNotFound, "resource not found", false, false),
	CodeConflict:         meta(http.StatusConflict, "conflict detected", false, false),
	CodeStateConflict:    meta(http.StatusConflict, "state transition disallowed", false, true),
	CodeCapacityExceeded: meta(http.StatusConflict, "capacity exceeded", false, true),
	CodeIdempotency:      meta(http.StatusConflict, "idempotency key reused", false, true),
	CodeRateLimit:        meta(http.StatusTooManyRequests, "rate limit exceeded", true, false),
	CodeInternal:         meta(http.StatusInternalServerError, "internal server error", true, false),
	CodeDependency:       meta(http.StatusServiceUnavailable, "dependency unavailable", true, true),
}

// MetadataFor returns the presentation of code. Unknown codes render as
// internal errors.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// WithReason attaches a reason to the error details, keeping any map details
// already present.
func (e *Error) WithReason(reason string) *Error {
	if e == nil {
		return nil
	}
	details, ok := e.details.(map[string]any)
	if !ok || details == nil {
		details = map[string]any{}
	}
	details["reason"] = reason
	e.details = details
	return e
}

// Reason returns the reason recorded by WithReason, if any.
func (e *Error) Reason() string {
	if e == nil {
		return ""
	}
	if details, ok := e.details.(map[string]any); ok {
		if reason, ok := details["reason"].(string); ok {
			return reason
		}
	}
	return ""
}

// Validation builds a CodeValidation error keyed by field name.
func Validation(field, message string) *Error {
	return New(CodeValidation, message).WithDetails(map[string]any{field: message})
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
