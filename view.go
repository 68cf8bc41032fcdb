package couchreq

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/go-kivik/couchreq/chttp"
)

// ViewResult is the reply of a view query (_all_docs, _design/.../_view/...)
// or of a Mango query (_find).
type ViewResult struct {
	TotalRows int64 `json:"total_rows"`
	Offset    int64 `json:"offset"`
	UpdateSeq Seq   `json:"update_seq"`
	Rows      []Row `json:"rows"`

	// Docs, Bookmark, Warning and ExecutionStats are set by _find.
	Docs           []json.RawMessage `json:"docs"`
	Bookmark       string            `json:"bookmark"`
	Warning        string            `json:"warning"`
	ExecutionStats *ExecutionStats   `json:"execution_stats"`
}

// Row is a single view row. Error is set, and the rest empty, for requested
// keys that do not exist.
type Row struct {
	ID    string          `json:"id"`
	Key   json.RawMessage `json:"key"`
	Value json.RawMessage `json:"value"`
	Doc   json.RawMessage `json:"doc"`
	Error string          `json:"error"`
}

// ScanValue decodes the row's value into dest.
func (r *Row) ScanValue(dest interface{}) error {
	return scanRaw("value", r.Value, dest)
}

// ScanDoc decodes the row's included document into dest.
func (r *Row) ScanDoc(dest interface{}) error {
	return scanRaw("doc", r.Doc, dest)
}

// ScanKey decodes the row's key into dest.
func (r *Row) ScanKey(dest interface{}) error {
	return scanRaw("key", r.Key, dest)
}

func scanRaw(field string, data json.RawMessage, dest interface{}) error {
	if len(data) == 0 {
		return &chttp.HTTPError{Status: http.StatusNotFound, Message: "couchreq: row has no " + field}
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return &DecodeError{Status: http.StatusOK, Field: field, Err: errors.WithStack(err)}
	}
	return nil
}

// ExecutionStats are returned by _find when execution_stats is requested.
type ExecutionStats struct {
	TotalKeysExamined       int64   `json:"total_keys_examined"`
	TotalDocsExamined       int64   `json:"total_docs_examined"`
	TotalQuorumDocsExamined int64   `json:"total_quorum_docs_examined"`
	ResultsReturned         int64   `json:"results_returned"`
	ExecutionTimeMs         float64 `json:"execution_time_ms"`
}

// View returns the reply as a view or _find result.
func (r *Response) View() (*ViewResult, error) {
	var result ViewResult
	if err := r.decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
