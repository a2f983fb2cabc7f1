package apperrors

import (
	"errors"
	"strings"
)

type appError struct {
	msg           string
	base          error
	wrappedErrors []error
	statuscode    int
	expandError   bool
	details       map[string][]string
}

func (e *appError) Error() string {
	return e.msg
}

// ErrorAll returns the message followed by the text of every wrapped error when
// expansion is enabled.
func (e *appError) ErrorAll() string {
	if !e.expandError {
		return e.Error()
	}
	var b strings.Builder
	b.WriteString(e.Error())
	for _, err := range e.wrappedErrors {
		if err == nil || err == e.base {
			continue
		}
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *appError) Unwrap() error {
	return e.base
}

func (e *appError) UnwrapAll() []error {
	return e.wrappedErrors
}

func (e *appError) derive(msg string, errs []error) *appError {
	return &appError{
		msg:           msg,
		base:          e,
		wrappedErrors: errs,
		statuscode:    e.statuscode,
		expandError:   e.expandError,
		details:       copyDetails(e.details),
	}
}

func (e *appError) New(msg string) Error {
	n := e.derive(msg, nil)
	n.details = nil
	return n
}

func (e *appError) Msg(msg string) Error {
	return e.derive(msg, append([]error{e}, e.wrappedErrors...))
}

func (e *appError) MsgErr(msg string, errs ...error) Error {
	return e.derive(msg, append([]error{e}, errs...))
}

func (e *appError) Err(errs ...error) Error {
	return e.derive(e.msg, append([]error{e}, errs...))
}

func (e *appError) SetExpandError(flag bool) Error {
	cp := *e
	cp.expandError = flag
	return &cp
}

func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statuscode = code
	return &cp
}

func (e *appError) StatusCode() int {
	return e.statuscode
}

// WithDetail returns a copy with msg appended to the details of field.
func (e *appError) WithDetail(field, msg string) Error {
	cp := *e
	cp.details = copyDetails(e.details)
	if cp.details == nil {
		cp.details = make(map[string][]string)
	}
	cp.details[field] = append(cp.details[field], msg)
	return &cp
}

func (e *appError) Details() map[string][]string {
	return e.details
}

// Is reports whether target is found in the template chain or among the wrapped errors.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.wrappedErrors {
		if err == e {
			continue
		}
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// New creates a root error.
func New(msg string) Error {
	return &appError{msg: msg}
}

func copyDetails(d map[string][]string) map[string][]string {
	if d == nil {
		return nil
	}
	cp := make(map[string][]string, len(d))
	for k, v := range d {
		cp[k] = append([]string(nil), v...)
	}
	return cp
}
