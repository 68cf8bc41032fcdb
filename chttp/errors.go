package chttp

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-kivik/kivik/v4"
)

// HTTPError is an error which carries an HTTP status code, for failures
// which happen before or instead of a server reply.
type HTTPError struct {
	// Status is the HTTP status code associated with the error.
	Status int

	// Message, when set, replaces the message of Err.
	Message string

	// Err is the underlying error, if any.
	Err error
}

var _ interface{ HTTPStatus() int } = &HTTPError{}

func (e *HTTPError) Error() string {
	switch {
	case e.Err == nil && e.Message == "":
		return http.StatusText(e.Status)
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

// HTTPStatus returns the HTTP status code of the error.
func (e *HTTPError) HTTPStatus() int {
	return e.Status
}

// Unwrap returns the underlying error.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// IsSuccess reports whether status is one of the codes CouchDB uses to
// signal a successful request: 200, 201 or 202.
func IsSuccess(status int) bool {
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return true
	}
	return false
}

func fullError(httpStatus int, err error) error {
	return &HTTPError{
		Status: httpStatus,
		Err:    err,
	}
}

// netError classifies an error returned by the underlying *http.Client.
func netError(err error) error {
	if err == nil {
		return nil
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// If this error was generated by EncodeBody, it may have an emedded
		// status code (!= 500), which we should honor.
		status := kivik.HTTPStatus(urlErr.Err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		return fullError(status, err)
	}
	if status := kivik.HTTPStatus(err); status != http.StatusInternalServerError {
		return err
	}
	return fullError(http.StatusBadGateway, err)
}
