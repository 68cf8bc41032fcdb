package couchreq

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/go-kivik/kivik/v4"
	"gitlab.com/flimzy/testy"

	"github.com/go-kivik/couchreq/internal/couchtest"
)

// statusError fails the test unless err has the message want and carries
// status. An empty want expects a nil error.
func statusError(t *testing.T, want string, status int, err error) {
	t.Helper()
	if !testy.ErrorMatches(want, err) {
		t.Errorf("Unexpected error: %v (expected %q)", err, want)
	}
	if got := kivik.HTTPStatus(err); got != status {
		t.Errorf("Unexpected status code: %d (expected %d)", got, status)
	}
}

// statusErrorRE is like statusError, but matches the message against the
// regular expression pattern.
func statusErrorRE(t *testing.T, pattern string, status int, err error) {
	t.Helper()
	switch {
	case pattern == "" && err != nil:
		t.Errorf("Unexpected error: %s", err)
	case pattern != "" && !testy.ErrorMatchesRE(pattern, err):
		t.Errorf("Unexpected error: %v (expected match for %q)", err, pattern)
	}
	if got := kivik.HTTPStatus(err); got != status {
		t.Errorf("Unexpected status code: %d (expected %d)", got, status)
	}
}

type customTransport func(*http.Request) (*http.Response, error)

var _ http.RoundTripper = customTransport(nil)

func (c customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return c(req)
}

func newCustomClient(fn func(*http.Request) (*http.Response, error)) *Client {
	c, err := New(Config{Host: "example.com", Port: 5984},
		OptionHTTPClient(&http.Client{Transport: customTransport(fn)}))
	if err != nil {
		panic(err)
	}
	return c
}

func newTestClient(resp *http.Response, err error) *Client {
	return newCustomClient(func(req *http.Request) (*http.Response, error) {
		if resp != nil {
			resp.Request = req
		}
		return resp, err
	})
}

// Body returns a response body from s.
func Body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header: http.Header{
			"Content-Type": {"application/json"},
			"Server":       {"CouchDB/3.3.3 (Erlang OTP/24)"},
		},
		Body: Body(body),
	}
}

// newFakeServer starts an in-memory CouchDB, and returns a client connected
// to it as the admin user.
func newFakeServer(t *testing.T) (*couchtest.Server, *Client) {
	t.Helper()
	srv := couchtest.NewServer("admin", "abc123")
	t.Cleanup(srv.Close)
	host, port := srv.Host()
	c, err := New(Config{
		Host:     host,
		Port:     port,
		Username: "admin",
		Password: "abc123",
	})
	if err != nil {
		t.Fatal(err)
	}
	return srv, c
}
