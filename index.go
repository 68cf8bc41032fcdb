package couchreq

import "encoding/json"

// IndexListResult is the reply of GET /{db}/_index.
type IndexListResult struct {
	TotalRows int64       `json:"total_rows"`
	Indexes   []IndexInfo `json:"indexes"`
}

// IndexInfo describes a Mango index. DesignDoc is empty for the special
// _all_docs index.
type IndexInfo struct {
	DesignDoc   string          `json:"ddoc"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Definition  json.RawMessage `json:"def"`
	Partitioned bool            `json:"partitioned"`
}

// IndexResult is the reply of POST /{db}/_index. Result is "created" or
// "exists".
type IndexResult struct {
	Result string `json:"result"`
	ID     string `json:"id"`
	Name   string `json:"name"`
}

// Indexes returns the reply as an index listing.
func (r *Response) Indexes() (*IndexListResult, error) {
	var result IndexListResult
	if err := r.decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Index returns the reply as an index creation result.
func (r *Response) Index() (*IndexResult, error) {
	var result IndexResult
	if err := r.decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
