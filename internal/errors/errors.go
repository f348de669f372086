package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code codes.Code

const (
	CodeInvalidArgument    = Code(codes.InvalidArgument)
	CodeNotFound           = Code(codes.NotFound)
	CodeAlreadyExists      = Code(codes.AlreadyExists)
	CodePermissionDenied   = Code(codes.PermissionDenied)
	CodeFailedPrecondition = Code(codes.FailedPrecondition)
	CodeUnavailable        = Code(codes.Unavailable)
	CodeInternal           = Code(codes.Internal)
	CodeUnauthenticated    = Code(codes.Unauthenticated)
)

var code2http = map[Code]int{
	CodeInvalidArgument:    http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeAlreadyExists:      http.StatusConflict,
	CodePermissionDenied:   http.StatusForbidden,
	CodeFailedPrecondition: http.StatusConflict,
	CodeUnavailable:        http.StatusServiceUnavailable,
	CodeInternal:           http.StatusInternalServerError,
	CodeUnauthenticated:    http.StatusUnauthorized,
}

var http2code = map[int]Code{
	http.StatusBadRequest:          CodeInvalidArgument,
	http.StatusNotFound:            CodeNotFound,
	http.StatusConflict:            CodeAlreadyExists,
	http.StatusForbidden:           CodePermissionDenied,
	http.StatusServiceUnavailable:  CodeUnavailable,
	http.StatusInternalServerError: CodeInternal,
	http.StatusUnauthorized:        CodeUnauthenticated,
}

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: codes.Code(code).String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.Code(e.Code), e.Message)
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

// CodeOf returns the code carried by err, or CodeInternal for foreign errors.
// A nil error maps to the OK code.
func CodeOf(err error) Code {
	if err == nil {
		return Code(codes.OK)
	}

	return Convert(err).Code
}

// FromHTTPStatus maps a response status back to a code for error envelopes
// that arrived without one.
func FromHTTPStatus(status int) Code {
	if c, ok := http2code[status]; ok {
		return c
	}

	return CodeInternal
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

// Unavailable marks a transport-level failure where the request may never
// have reached the backend.
func Unavailable(err error) *Error {
	return New(CodeUnavailable, WithCause(err))
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}
