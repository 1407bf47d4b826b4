package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Error codes. The numeric ranges follow HTTP semantics so the handler
// layer can map a CodeError to a response status without a lookup table.
const (
	CodeValidation   = 400
	CodeUnauthorized = 401
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeUpstream     = 502
)

var (
	ErrValidation   = NewCodeError(CodeValidation, "validation failed")
	ErrUnauthorized = NewCodeError(CodeUnauthorized, "unauthorized")
	ErrNotFound     = NewCodeError(CodeNotFound, "not found")
	ErrConflict     = NewCodeError(CodeConflict, "conflict")
	ErrUpstream     = NewCodeError(CodeUpstream, "upstream unavailable")
)

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

// WithDetail returns a copy carrying extra detail; the receiver is not
// mutated so the package-level sentinels stay clean.
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// Is matches on code, so WithDetail copies still compare equal to their
// sentinel under errors.Is.
func (e *CodeError) Is(err error) bool {
	var ce *CodeError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == e.Code
}

// Code extracts the numeric code from err, or 500 for plain errors.
func Code(err error) int {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return 500
}
