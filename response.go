package couchreq

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/icza/dyno"
	"github.com/pkg/errors"

	"github.com/go-kivik/couchreq/chttp"
)

// Response is the normalized form of every CouchDB reply. The fields shared
// by most endpoints are extracted here; the endpoint-specific view of the
// reply is selected with the typed accessors (Document, View, Indexes, ...).
type Response struct {
	// StatusCode is the HTTP status of the reply.
	StatusCode int

	// Header holds the reply headers.
	Header http.Header

	// ContentType is the media type of the reply, without parameters.
	ContentType string

	// Raw is the decoded reply object, unaltered. Numbers are kept as
	// json.Number. Non-object replies are wrapped under KeyLimit, KeyResults
	// or KeyRaw.
	Raw map[string]interface{}

	OK bool

	// ID is taken from "id", falling back to "_id".
	ID string

	// Rev is taken from "rev", falling back to "_rev".
	Rev string

	Error  string
	Reason string

	data []byte
}

// newResponse normalizes a reply body.
func newResponse(method string, status int, header http.Header, body []byte) (*Response, error) {
	r := &Response{
		StatusCode:  status,
		Header:      header,
		ContentType: mediaType(header),
	}
	raw, verbatim, err := decodeBody(method, r.ContentType, body)
	if err != nil {
		return nil, &DecodeError{Status: status, Err: err}
	}
	if !verbatim {
		body = nil
	}
	if err := r.setRaw(raw, body); err != nil {
		return nil, err
	}
	r.extract()
	return r, nil
}

// rawResponse wraps body as text, whatever its content type.
func rawResponse(status int, header http.Header, body []byte) *Response {
	r := &Response{
		StatusCode:  status,
		Header:      header,
		ContentType: mediaType(header),
	}
	_ = r.setRaw(map[string]interface{}{KeyRaw: string(body)}, nil)
	return r
}

func mediaType(header http.Header) string {
	ct := header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	}
	return mt
}

// decodeBody returns the reply as a JSON object, wrapping the top-level
// shapes CouchDB uses besides objects. verbatim is true when body is the
// returned object's own encoding.
func decodeBody(method, contentType string, body []byte) (obj map[string]interface{}, verbatim bool, err error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]interface{}{}, false, nil
	}
	if contentType != "" && contentType != chttp.TypeJSON {
		return map[string]interface{}{KeyRaw: string(body)}, false, nil
	}
	v, err := decodeJSON(body)
	if err != nil {
		return nil, false, err
	}
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true, nil
	case []interface{}:
		if method == http.MethodGet || method == http.MethodPost {
			return map[string]interface{}{KeyResults: t}, false, nil
		}
	case json.Number:
		if method == http.MethodGet && !strings.ContainsAny(t.String(), ".eE") {
			return map[string]interface{}{KeyLimit: t}, false, nil
		}
	case string:
		return map[string]interface{}{KeyRaw: t}, false, nil
	}
	return nil, false, errors.Errorf("unexpected %s reply to %s", jsonKind(v), method)
}

// decodeJSON decodes a single JSON value, keeping numbers as json.Number.
func decodeJSON(body []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid data after top-level value")
	}
	return v, nil
}

func jsonKind(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case []interface{}:
		return "array"
	}
	return "JSON"
}

// setRaw stores the decoded object, and the JSON the typed accessors decode.
// body, when not nil, must be the encoding of obj.
func (r *Response) setRaw(obj map[string]interface{}, body []byte) error {
	r.Raw = obj
	if body != nil {
		r.data = body
		return nil
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return &DecodeError{Status: r.StatusCode, Err: err}
	}
	r.data = data
	return nil
}

// extract fills the common fields. Keys holding a value of another type are
// left to the typed accessors, since documents may use these names for their
// own data.
func (r *Response) extract() {
	r.OK, _ = r.Raw["ok"].(bool)
	r.ID = firstString(r.Raw, "id", "_id")
	r.Rev = firstString(r.Raw, "rev", "_rev")
	r.Error, _ = r.Raw["error"].(string)
	r.Reason, _ = r.Raw["reason"].(string)
}

// firstString returns the first of keys holding a string.
func firstString(obj map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok {
			return s
		}
	}
	return ""
}

// Has reports whether the reply has a top-level key, whatever its value.
func (r *Response) Has(key string) bool {
	_, ok := r.Raw[key]
	return ok
}

// Lookup returns the value at path in Raw. Path elements are object keys
// (string) or array indexes (int).
//
// Example:
//
//	r.Lookup("rows", 0, "value")
func (r *Response) Lookup(path ...interface{}) (interface{}, error) {
	v, err := dyno.Get(r.Raw, path...)
	if err != nil {
		return nil, &chttp.HTTPError{Status: http.StatusNotFound, Err: errors.Wrap(err, "couchreq: lookup")}
	}
	return v, nil
}

// Limit returns the integer reply of endpoints such as GET /{db}/_revs_limit.
// It returns false when the reply is not an integer, or does not fit in an
// int64.
func (r *Response) Limit() (int64, bool) {
	n, ok := r.Raw[KeyLimit].(json.Number)
	if !ok {
		return 0, false
	}
	limit, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return limit, true
}

// Results returns the array reply of endpoints such as GET /_all_dbs.
func (r *Response) Results() ([]interface{}, bool) {
	results, ok := r.Raw[KeyResults].([]interface{})
	return results, ok
}

// Text returns a non-JSON reply, or a bare JSON string, as text.
func (r *Response) Text() (string, bool) {
	s, ok := r.Raw[KeyRaw].(string)
	return s, ok
}

// Value decodes the reply into v, which should be a pointer, the way
// json.Unmarshal does. Wrapped replies decode as their wrapping object.
func (r *Response) Value(v interface{}) error {
	return r.decode(v)
}

func (r *Response) decode(v interface{}) error {
	if err := json.Unmarshal(r.data, v); err != nil {
		return decodeError(r.StatusCode, err)
	}
	return nil
}

// decodeError converts a json error into a *DecodeError, naming the field
// when the error does.
func decodeError(status int, err error) error {
	var decErr *DecodeError
	if errors.As(err, &decErr) {
		if decErr.Status == 0 {
			decErr.Status = status
		}
		return decErr
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &DecodeError{Status: status, Field: typeErr.Field, Err: err}
	}
	return &DecodeError{Status: status, Err: err}
}
