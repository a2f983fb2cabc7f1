// Package apperrors provides chained application errors that carry an HTTP status code
// and, for validation failures, per-field details. Errors are immutable: every method
// that changes an attribute returns a copy, so package-level error values can be used
// as templates.
package apperrors

// Error is the interface implemented by application errors. It extends error with
// chaining helpers, a status code and optional field details.
type Error interface {
	error
	Unwrap() error // errors.Is / errors.As walk the template chain

	New(msg string) Error                  // fresh error that uses the current one as its template
	Msg(msg string) Error                  // new message, current error kept in the chain
	MsgErr(msg string, err ...error) Error // new message and extra wrapped errors
	Err(err ...error) Error                // same message, extra wrapped errors
	SetExpandError(bool) Error             // whether ErrorAll appends wrapped error text
	SetStatusCode(int) Error               // HTTP status code
	StatusCode() int
	WithDetail(field, msg string) Error // adds a field-level detail
	Details() map[string][]string
	ErrorAll() string
	UnwrapAll() []error
}
