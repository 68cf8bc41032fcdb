package couchreq

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-kivik/couchreq/chttp"
)

// DB issues requests against a single database.
type DB struct {
	client *Client
	name   string
}

// DB returns a handle to the named database. No request is made.
func (c *Client) DB(name string) *DB {
	return &DB{
		client: c,
		name:   name,
	}
}

// Name returns the database name.
func (d *DB) Name() string {
	return d.name
}

func (d *DB) path(path string) string {
	base := "/" + url.PathEscape(d.name)
	if path == "" {
		return base
	}
	return base + "/" + strings.TrimPrefix(path, "/")
}

func (d *DB) docPath(docID string) string {
	return d.path(chttp.EncodeDocID(docID))
}

// Exists reports whether the database exists.
func (d *DB) Exists(ctx context.Context) (bool, error) {
	if d.name == "" {
		return false, missingArg("dbName")
	}
	_, err := d.client.Head(ctx, d.path(""), nil)
	if StatusCode(err) == http.StatusNotFound {
		return false, nil
	}
	return err == nil, err
}

// Create creates the database. opts may set q, n and partitioned.
func (d *DB) Create(ctx context.Context, opts map[string]interface{}) error {
	if d.name == "" {
		return missingArg("dbName")
	}
	_, err := d.client.doWithOptions(ctx, http.MethodPut, d.path(""), nil, opts)
	return err
}

// Destroy deletes the database.
func (d *DB) Destroy(ctx context.Context) error {
	if d.name == "" {
		return missingArg("dbName")
	}
	_, err := d.client.Delete(ctx, d.path(""), nil, nil)
	return err
}

// Info returns the database information.
func (d *DB) Info(ctx context.Context) (*DBInfo, error) {
	if d.name == "" {
		return nil, missingArg("dbName")
	}
	r, err := d.client.Get(ctx, d.path(""), nil)
	if err != nil {
		return nil, err
	}
	return r.DBInfo()
}

// Get fetches a document. opts may set rev, revs, conflicts, attachments and
// the other document query parameters.
func (d *DB) Get(ctx context.Context, docID string, opts map[string]interface{}) (*DocumentResult, error) {
	if docID == "" {
		return nil, missingArg("docID")
	}
	r, err := d.client.doWithOptions(ctx, http.MethodGet, d.docPath(docID), nil, opts)
	if err != nil {
		return nil, err
	}
	return r.Document()
}

// Rev returns the current revision of a document, read from the ETag of a
// HEAD request.
func (d *DB) Rev(ctx context.Context, docID string) (string, error) {
	if docID == "" {
		return "", missingArg("docID")
	}
	r, err := d.client.Head(ctx, d.docPath(docID), nil)
	if err != nil {
		return "", err
	}
	rev, ok := chttp.ETag(r.Header)
	if !ok {
		return "", &DecodeError{Status: r.StatusCode, Err: errors.New("no ETag header in reply")}
	}
	return rev, nil
}

// Put creates or updates a document, returning the write result. The
// document ID in the reply must match docID.
func (d *DB) Put(ctx context.Context, docID string, doc interface{}, header http.Header) (*DocumentResult, error) {
	if docID == "" {
		return nil, missingArg("docID")
	}
	r, err := d.client.Put(ctx, d.docPath(docID), doc, header)
	if err != nil {
		return nil, err
	}
	result, err := r.Document()
	if err != nil {
		return nil, err
	}
	if result.ID != docID {
		return result, fmt.Errorf("modified document ID (%s) does not match that requested (%s)", result.ID, docID)
	}
	return result, nil
}

// CreateDoc creates a document with a server-assigned ID, unless doc has an
// _id.
func (d *DB) CreateDoc(ctx context.Context, doc interface{}, header http.Header) (*DocumentResult, error) {
	if d.name == "" {
		return nil, missingArg("dbName")
	}
	r, err := d.client.Post(ctx, d.path(""), doc, header)
	if err != nil {
		return nil, err
	}
	return r.Document()
}

// Delete marks a document revision deleted.
func (d *DB) Delete(ctx context.Context, docID, rev string, header http.Header) (*DocumentResult, error) {
	if docID == "" {
		return nil, missingArg("docID")
	}
	if rev == "" {
		return nil, missingArg("rev")
	}
	r, err := d.client.do(ctx, http.MethodDelete, d.docPath(docID), nil, &chttp.Options{
		Query:  url.Values{"rev": {rev}},
		Header: header,
	})
	if err != nil {
		return nil, err
	}
	return r.Document()
}

// Copy copies a document to targetID. To overwrite an existing target,
// targetID carries its revision: "target?rev=1-abc".
func (d *DB) Copy(ctx context.Context, targetID, sourceID string, header http.Header) (*DocumentResult, error) {
	if sourceID == "" {
		return nil, missingArg("sourceID")
	}
	if targetID == "" {
		return nil, missingArg("targetID")
	}
	r, err := d.client.do(ctx, MethodCopy, d.docPath(sourceID), nil, &chttp.Options{
		Destination: targetID,
		Header:      header,
	})
	if err != nil {
		return nil, err
	}
	return r.Document()
}

// AllDocs queries the _all_docs view.
func (d *DB) AllDocs(ctx context.Context, opts map[string]interface{}) (*ViewResult, error) {
	return d.rowsQuery(ctx, "_all_docs", opts)
}

// Query queries a view of a design document.
func (d *DB) Query(ctx context.Context, ddoc, view string, opts map[string]interface{}) (*ViewResult, error) {
	if ddoc == "" {
		return nil, missingArg("ddoc")
	}
	if view == "" {
		return nil, missingArg("view")
	}
	ddoc = strings.TrimPrefix(ddoc, "_design/")
	return d.rowsQuery(ctx, fmt.Sprintf("_design/%s/_view/%s", chttp.EncodeDocID(ddoc), chttp.EncodeDocID(view)), opts)
}

// rowsQuery performs a view query. A keys option is sent as a POST body, the
// rest as URL parameters.
func (d *DB) rowsQuery(ctx context.Context, path string, opts map[string]interface{}) (*ViewResult, error) {
	if d.name == "" {
		return nil, missingArg("dbName")
	}
	keys, hasKeys := opts["keys"]
	if hasKeys {
		rest := make(map[string]interface{}, len(opts))
		for k, v := range opts {
			if k != "keys" {
				rest[k] = v
			}
		}
		opts = rest
	}
	var r *Response
	var err error
	if hasKeys {
		r, err = d.client.doWithOptions(ctx, http.MethodPost, d.path(path), map[string]interface{}{"keys": keys}, opts)
	} else {
		r, err = d.client.doWithOptions(ctx, http.MethodGet, d.path(path), nil, opts)
	}
	if err != nil {
		return nil, err
	}
	return r.View()
}

// RevsLimit returns the database's revision limit.
func (d *DB) RevsLimit(ctx context.Context) (int64, error) {
	if d.name == "" {
		return 0, missingArg("dbName")
	}
	r, err := d.client.Get(ctx, d.path("_revs_limit"), nil)
	if err != nil {
		return 0, err
	}
	limit, ok := r.Limit()
	if !ok {
		return 0, &DecodeError{Status: r.StatusCode, Err: errors.New("expected an integer reply")}
	}
	return limit, nil
}

// SetRevsLimit sets the database's revision limit.
func (d *DB) SetRevsLimit(ctx context.Context, limit int64) error {
	if d.name == "" {
		return missingArg("dbName")
	}
	_, err := d.client.Put(ctx, d.path("_revs_limit"), strconv.FormatInt(limit, 10), nil)
	return err
}
