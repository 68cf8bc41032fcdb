package couchreq

import (
	"context"
	"net/http"

	"github.com/go-kivik/couchreq/chttp"
)

// BulkResult is the outcome of one document in a _bulk_docs request.
type BulkResult struct {
	ID     string `json:"id"`
	Rev    string `json:"rev"`
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// Err returns the document's failure as an error, or nil.
func (b *BulkResult) Err() error {
	if b.Error == "" {
		return nil
	}
	var status int
	switch b.Error {
	case "conflict":
		status = http.StatusConflict
	case "forbidden":
		status = http.StatusForbidden
	case "unauthorized":
		status = http.StatusUnauthorized
	case "not_implemented":
		status = http.StatusNotImplemented
	default:
		status = http.StatusInternalServerError
	}
	msg := b.Reason
	if msg == "" {
		msg = b.Error
	}
	return &chttp.HTTPError{Status: status, Message: msg}
}

// BulkResults returns an array reply as per-document bulk results.
func (r *Response) BulkResults() ([]BulkResult, error) {
	var result struct {
		Results []BulkResult `json:"results"`
	}
	if err := r.decode(&result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// BulkDocs creates, updates or deletes docs in a single request. opts are
// added to the request body (e.g. new_edits). Failures of individual
// documents are reported in the results, see BulkResult.Err.
func (d *DB) BulkDocs(ctx context.Context, docs []interface{}, opts map[string]interface{}) ([]BulkResult, error) {
	body := make(map[string]interface{}, len(opts)+1)
	for k, v := range opts {
		body[k] = v
	}
	body["docs"] = docs
	r, err := d.client.Post(ctx, d.path("_bulk_docs"), body, nil)
	if err != nil {
		return nil, err
	}
	return r.BulkResults()
}
