package errs

import "errors"

type Code string

const (
	CodeValidation   Code = "validation_error"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnavailable  Code = "storage_unavailable"
	CodeInternal     Code = "internal_error"
)

// Error is the typed failure returned by every service package.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code Code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func Validation(message string) *Error {
	return New(CodeValidation, message, nil)
}

func NotFound(message string, err error) *Error {
	return New(CodeNotFound, message, err)
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, message, nil)
}

// Unavailable wraps a storage failure the caller may retry.
func Unavailable(message string, err error) *Error {
	return New(CodeUnavailable, message, err)
}

// CodeOf returns the code of the first *Error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
