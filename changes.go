package couchreq

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-kivik/couchreq/chttp"
)

// ChangesResult is the reply of a normal (non-continuous) changes feed.
type ChangesResult struct {
	LastSeq Seq      `json:"last_seq"`
	Pending int64    `json:"pending"`
	Results []Change `json:"results"`
}

// Change is a single entry of a changes feed.
type Change struct {
	ID      string `json:"id"`
	Seq     Seq    `json:"seq"`
	Deleted bool   `json:"deleted"`
	Changes []struct {
		Rev string `json:"rev"`
	} `json:"changes"`
	Doc json.RawMessage `json:"doc"`
}

// Revs returns the leaf revisions listed in the change.
func (c *Change) Revs() []string {
	revs := make([]string, len(c.Changes))
	for i, ch := range c.Changes {
		revs[i] = ch.Rev
	}
	return revs
}

// Changes returns the reply as a changes feed.
func (r *Response) Changes() (*ChangesResult, error) {
	var result ChangesResult
	if err := r.decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Changes reads the changes feed of the database as a single reply. Only the
// normal feed is supported; feed=continuous, longpoll and eventsource are
// rejected.
func (d *DB) Changes(ctx context.Context, opts map[string]interface{}) (*ChangesResult, error) {
	if feed, ok := opts["feed"]; ok && feed != "normal" {
		return nil, &chttp.HTTPError{Status: http.StatusBadRequest, Message: "couchreq: only the normal changes feed is supported"}
	}
	r, err := d.client.doWithOptions(ctx, http.MethodGet, d.path("_changes"), nil, opts)
	if err != nil {
		return nil, err
	}
	return r.Changes()
}
