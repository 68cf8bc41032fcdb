package chttp

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/go-kivik/kivik/v4"
	"gitlab.com/flimzy/testy"
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

type customTransport func(*http.Request) (*http.Response, error)

var _ http.RoundTripper = customTransport(nil)

func (c customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return c(req)
}

func newCustomClient(dsn string, fn func(*http.Request) (*http.Response, error)) *Client {
	c := &Client{
		Client: &http.Client{
			Transport: customTransport(fn),
		},
	}
	var err error
	if dsn == "" {
		dsn = "http://example.com/"
	}
	c.dsn, err = url.Parse(dsn)
	if err != nil {
		panic(err)
	}
	c.basePath = strings.TrimSuffix(c.dsn.Path, "/")
	return c
}

func newTestClient(resp *http.Response, err error) *Client {
	return newCustomClient("", func(_ *http.Request) (*http.Response, error) {
		return resp, err
	})
}

// Body returns a response body from s.
func Body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

type errReader struct {
	io.Reader
	err error
}

func (r *errReader) Read(p []byte) (int, error) {
	c, err := r.Reader.Read(p)
	if err == io.EOF {
		err = r.err
	}
	return c, err
}

type errCloser struct {
	io.Reader
	err error
}

func (r *errCloser) Close() error {
	return r.err
}
