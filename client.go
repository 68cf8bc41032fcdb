package couchreq

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-kivik/kivik/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/go-kivik/couchreq/chttp"
)

// Client issues requests to a single CouchDB server. A Client holds no
// mutable state, and is safe for concurrent use.
type Client struct {
	client *chttp.Client

	cfg        Config
	log        logrus.FieldLogger
	httpClient *http.Client
}

// New returns a client for the server described by cfg. Every call returns
// an independent client.
func New(cfg Config, options ...kivik.Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg: cfg,
		log: discardLogger(),
	}
	for _, opt := range options {
		opt.Apply(c)
	}
	hc := &http.Client{}
	if c.httpClient != nil {
		copied := *c.httpClient
		hc = &copied
	}
	if hc.Transport == nil {
		transport, err := cfg.transport()
		if err != nil {
			return nil, err
		}
		hc.Transport = transport
	}
	chttpClient, err := chttp.New(hc, cfg.URL(), options...)
	if err != nil {
		return nil, err
	}
	c.client = chttpClient
	c.httpClient = hc
	c.log.WithFields(logrus.Fields{
		"host": cfg.Host,
		"port": cfg.Port,
		"user": cfg.Username,
	}).Debug("couchdb client configured")
	return c, nil
}

// Config returns the configuration the client was built from.
func (c *Client) Config() Config {
	return c.cfg
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Head sends a HEAD request to path. A failed HEAD request's *Error carries
// only the status code. Use Do to send a HEAD request with a body.
func (c *Client) Head(ctx context.Context, path string, header http.Header) (*Response, error) {
	return c.Do(ctx, http.MethodHead, path, nil, header)
}

// Get sends a GET request to path. Use Do to send a GET request with a body.
func (c *Client) Get(ctx context.Context, path string, header http.Header) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, header)
}

// Put sends a PUT request to path, with body JSON encoded.
func (c *Client) Put(ctx context.Context, path string, body interface{}, header http.Header) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, header)
}

// Post sends a POST request to path, with body JSON encoded.
func (c *Client) Post(ctx context.Context, path string, body interface{}, header http.Header) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, header)
}

// Delete sends a DELETE request to path, with body JSON encoded.
func (c *Client) Delete(ctx context.Context, path string, body interface{}, header http.Header) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, body, header)
}

// Copy sends a COPY request to path. The copy target is named by the
// Destination header.
func (c *Client) Copy(ctx context.Context, path string, body interface{}, header http.Header) (*Response, error) {
	return c.Do(ctx, MethodCopy, path, body, header)
}

// Do sends a single request and normalizes the reply. It is the only way to
// send a body with a GET or HEAD request.
//
// Accept: application/json is always sent, and Content-Type:
// application/json is sent with PUT, POST, DELETE and COPY. Values in header
// are applied afterwards, and replace defaults of the same name. A non-nil
// body is JSON encoded, unless it is a string, []byte or json.RawMessage,
// which are sent unchanged.
//
// Replies with status 200, 201 or 202 are returned as a *Response. Any other
// status yields an *Error holding the status and the normalized reply.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}, header http.Header) (*Response, error) {
	return c.do(ctx, method, path, body, &chttp.Options{Header: header})
}

// doWithOptions sends a request with opts converted to URL parameters.
func (c *Client) doWithOptions(ctx context.Context, method, path string, body interface{}, opts map[string]interface{}) (*Response, error) {
	params, err := optionsToParams(opts)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, method, path, body, &chttp.Options{Query: params})
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, opts *chttp.Options) (*Response, error) {
	if sendsContentType(method) {
		opts.ContentType = chttp.TypeJSON
	}
	if body != nil {
		opts.GetBody = chttp.BodyEncoder(body)
	}
	log := c.log.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
	})
	start := time.Now()
	res, err := c.client.DoReq(ctx, method, path, opts)
	if err != nil {
		log.WithError(err).Debug("couchdb request failed")
		return nil, err
	}
	defer res.Body.Close() // nolint: errcheck
	log = log.WithFields(logrus.Fields{
		"status":   res.StatusCode,
		"duration": time.Since(start),
	})
	r, err := readResponse(method, res)
	if err != nil {
		log.WithError(err).Debug("couchdb request returned an error")
		return nil, err
	}
	log.Debug("couchdb request complete")
	return r, nil
}

func sendsContentType(method string) bool {
	switch method {
	case http.MethodPut, http.MethodPost, http.MethodDelete, MethodCopy:
		return true
	}
	return false
}

// readResponse buffers the whole reply body, then classifies and normalizes
// it.
func readResponse(method string, res *http.Response) (*Response, error) {
	var body []byte
	if method != http.MethodHead && res.Body != nil {
		var err error
		body, err = io.ReadAll(res.Body)
		if err != nil {
			return nil, &chttp.HTTPError{Status: http.StatusBadGateway, Err: errors.Wrap(err, "couchreq: read response body")}
		}
	}
	if chttp.IsSuccess(res.StatusCode) {
		return newResponse(method, res.StatusCode, res.Header, body)
	}
	if method == http.MethodHead {
		return nil, &Error{Status: res.StatusCode}
	}
	r, err := newResponse(method, res.StatusCode, res.Header, body)
	if err != nil {
		// The status is what matters; keep the undecodable body as text.
		r = rawResponse(res.StatusCode, res.Header, body)
	}
	return nil, &Error{Status: res.StatusCode, Response: r}
}
