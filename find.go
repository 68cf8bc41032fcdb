package couchreq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/go-kivik/couchreq/chttp"
)

// CreateIndex creates a Mango index. index is the index definition, e.g.
// {"fields": ["foo"]}; ddoc and name are optional.
func (d *DB) CreateIndex(ctx context.Context, ddoc, name string, index interface{}) (*IndexResult, error) {
	if d.name == "" {
		return nil, missingArg("dbName")
	}
	indexObj, err := deJSONify(index)
	if err != nil {
		return nil, err
	}
	parameters := struct {
		Index interface{} `json:"index"`
		Ddoc  string      `json:"ddoc,omitempty"`
		Name  string      `json:"name,omitempty"`
	}{
		Index: indexObj,
		Ddoc:  ddoc,
		Name:  name,
	}
	r, err := d.client.Post(ctx, d.path("_index"), parameters, nil)
	if err != nil {
		return nil, err
	}
	return r.Index()
}

// Indexes lists the Mango indexes of the database.
func (d *DB) Indexes(ctx context.Context) (*IndexListResult, error) {
	if d.name == "" {
		return nil, missingArg("dbName")
	}
	r, err := d.client.Get(ctx, d.path("_index"), nil)
	if err != nil {
		return nil, err
	}
	return r.Indexes()
}

// DeleteIndex deletes a Mango index.
func (d *DB) DeleteIndex(ctx context.Context, ddoc, name string) error {
	if ddoc == "" {
		return missingArg("ddoc")
	}
	if name == "" {
		return missingArg("name")
	}
	path := fmt.Sprintf("_index/%s/json/%s", chttp.EncodeDocID(ddoc), chttp.EncodeDocID(name))
	_, err := d.client.Delete(ctx, d.path(path), nil, nil)
	return err
}

// Find runs a Mango query, e.g. {"selector": {"type": "post"}}.
func (d *DB) Find(ctx context.Context, query interface{}) (*ViewResult, error) {
	if d.name == "" {
		return nil, missingArg("dbName")
	}
	if query == nil {
		return nil, missingArg("query")
	}
	r, err := d.client.Post(ctx, d.path("_find"), query, nil)
	if err != nil {
		return nil, err
	}
	return r.View()
}

// deJSONify unmarshals a string, []byte, or json.RawMessage. All other types
// are returned as-is.
func deJSONify(i interface{}) (interface{}, error) {
	var data []byte
	switch t := i.(type) {
	case string:
		data = []byte(t)
	case []byte:
		data = t
	case json.RawMessage:
		data = []byte(t)
	default:
		return i, nil
	}
	var x interface{}
	if err := json.Unmarshal(data, &x); err != nil {
		return nil, &chttp.HTTPError{Status: http.StatusBadRequest, Err: errors.WithStack(err)}
	}
	return x, nil
}
