package couchreq

import (
	"fmt"
	"net/http"

	"github.com/go-kivik/kivik/v4"

	"github.com/go-kivik/couchreq/chttp"
)

// Error is returned for every reply whose status is not 200, 201 or 202.
type Error struct {
	// Status is the HTTP status code of the reply.
	Status int

	// Response is the normalized reply body. It is nil for HEAD requests,
	// which carry no body.
	Response *Response
}

var _ error = &Error{}

func (e *Error) Error() string {
	reason := e.reason()
	statusText := http.StatusText(e.Status)
	switch {
	case reason == "" && statusText == "":
		return fmt.Sprintf("couchreq: unexpected status %d", e.Status)
	case reason == "":
		return statusText
	case statusText == "":
		return reason
	}
	return fmt.Sprintf("%s: %s", statusText, reason)
}

func (e *Error) reason() string {
	if e.Response == nil {
		return ""
	}
	if e.Response.Reason != "" {
		return e.Response.Reason
	}
	return e.Response.Error
}

// HTTPStatus returns the HTTP status code of the failed reply.
func (e *Error) HTTPStatus() int {
	return e.Status
}

// StatusCode is an alias for HTTPStatus.
func (e *Error) StatusCode() int {
	return e.Status
}

// DecodeError is returned when a reply cannot be decoded, or a field holds a
// value of an unexpected JSON type.
type DecodeError struct {
	// Status is the HTTP status code of the reply being decoded.
	Status int

	// Field is the dotted path of the offending field. It is empty when the
	// body as a whole could not be decoded.
	Field string

	Err error
}

var _ error = &DecodeError{}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("couchreq: malformed response: %s", e.Err)
	}
	return fmt.Sprintf("couchreq: malformed response: field %q: %s", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// HTTPStatus always returns 502 (Bad Gateway): the server replied, but not
// with anything this client understands.
func (e *DecodeError) HTTPStatus() int {
	return http.StatusBadGateway
}

// StatusCode is an alias for HTTPStatus.
func (e *DecodeError) StatusCode() int {
	return e.HTTPStatus()
}

// StatusCode returns the HTTP status embedded in err, 0 for a nil error, or
// 500 if err carries no status.
func StatusCode(err error) int {
	return kivik.HTTPStatus(err)
}

func missingArg(arg string) error {
	return &chttp.HTTPError{Status: http.StatusBadRequest, Message: fmt.Sprintf("couchreq: %s required", arg)}
}
