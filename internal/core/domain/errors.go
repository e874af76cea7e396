package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a rejected operation with a stable error code.
//
// Prefix is the first word of the RESP error reply ("ERR", "WRONGTYPE",
// "NOAUTH", ...); Message follows it verbatim, so messages match what Redis
// clients expect.
type DomainError struct {
	Code    string // Error code (e.g., "KV-STRM-4003")
	Prefix  string // Reply prefix, "ERR" when empty
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches another DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Reply renders the error as the payload of a RESP error reply.
func (e *DomainError) Reply() string {
	prefix := e.Prefix
	if prefix == "" {
		prefix = "ERR"
	}
	return prefix + " " + e.Message
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

func newPrefixed(code, prefix, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Prefix:  prefix,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return code == "" || de.Code == code
	}
	return false
}

// ReplyFor renders any error as a RESP error payload. DomainErrors keep their
// prefix and message; everything else becomes "ERR <err>".
func ReplyFor(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Reply()
	}
	return "ERR " + err.Error()
}

// Value errors.
var (
	ErrWrongType = newPrefixed("KV-TYPE-4000", "WRONGTYPE",
		"Operation against a key holding the wrong kind of value")

	ErrNotInteger = NewDomainError("KV-INT-4001", "value is not an integer or out of range")

	ErrNotFloat = NewDomainError("KV-FLT-4006", "value is not a valid float")

	ErrScoreNaN = NewDomainError("KV-FLT-4007", "resulting score is not a number (NaN)")

	ErrSyntax = NewDomainError("KV-ARG-4005", "syntax error")
)

// Stream errors.
var (
	ErrStreamIDTooSmall = NewDomainError("KV-STRM-4002",
		"The ID specified in XADD must be greater than 0-0")

	ErrStreamIDNotGreater = NewDomainError("KV-STRM-4003",
		"The ID specified in XADD is equal or smaller than the target stream top item")

	ErrStreamIDInvalid = NewDomainError("KV-STRM-4004",
		"Invalid stream ID specified as stream command argument")
)

// Connection errors.
var (
	ErrWrongPass = newPrefixed("KV-AUTH-4010", "WRONGPASS",
		"invalid username-password pair or user is disabled.")

	ErrNoAuth = newPrefixed("KV-AUTH-4011", "NOAUTH", "Authentication required.")

	ErrReadOnly = newPrefixed("KV-REPL-4030", "READONLY",
		"You can't write against a read only replica.")

	ErrRateLimited = NewDomainError("KV-SYS-4290", "rate limit exceeded")
)

// Transaction errors.
var (
	ErrExecAbort = newPrefixed("KV-TX-4009", "EXECABORT",
		"Transaction discarded because of previous errors.")

	ErrExecWithoutMulti = NewDomainError("KV-TX-4007", "EXEC without MULTI")

	ErrDiscardWithoutMulti = NewDomainError("KV-TX-4008", "DISCARD without MULTI")

	ErrNestedMulti = NewDomainError("KV-TX-4006", "MULTI calls can not be nested")
)
