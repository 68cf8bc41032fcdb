package couchreq

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/go-kivik/couchreq/chttp"
)

// ServerInfo is the reply of GET /.
type ServerInfo struct {
	CouchDB  string   `json:"couchdb"`
	Version  string   `json:"version"`
	GitSHA   string   `json:"git_sha"`
	UUID     string   `json:"uuid"`
	Features []string `json:"features"`
	Vendor   struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"vendor"`
}

// ServerInfo returns the reply as server information.
func (r *Response) ServerInfo() (*ServerInfo, error) {
	var info ServerInfo
	if err := r.decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ServerInfo returns the server's welcome message.
func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	r, err := c.Get(ctx, "/", nil)
	if err != nil {
		return nil, err
	}
	return r.ServerInfo()
}

// Up reports whether the server is up and ready to serve requests. A server
// in maintenance mode returns an *Error with status 404.
func (c *Client) Up(ctx context.Context) error {
	_, err := c.Head(ctx, "/_up", nil)
	return err
}

// AllDBs lists the databases on the server.
func (c *Client) AllDBs(ctx context.Context, opts map[string]interface{}) ([]string, error) {
	r, err := c.doWithOptions(ctx, http.MethodGet, "/_all_dbs", nil, opts)
	if err != nil {
		return nil, err
	}
	var result struct {
		DBs []string `json:"results"`
	}
	if err := r.decode(&result); err != nil {
		return nil, err
	}
	return result.DBs, nil
}

// UUIDs returns count server-generated UUIDs.
func (c *Client) UUIDs(ctx context.Context, count int) ([]string, error) {
	var opts map[string]interface{}
	if count > 0 {
		opts = map[string]interface{}{"count": count}
	}
	r, err := c.doWithOptions(ctx, http.MethodGet, "/_uuids", nil, opts)
	if err != nil {
		return nil, err
	}
	var result struct {
		UUIDs []string `json:"uuids"`
	}
	if err := r.decode(&result); err != nil {
		return nil, err
	}
	return result.UUIDs, nil
}

// ConfigValue returns a single configuration value of node, e.g.
// ConfigValue(ctx, "_local", "couchdb", "max_document_size").
func (c *Client) ConfigValue(ctx context.Context, node, section, key string) (string, error) {
	if node == "" {
		return "", missingArg("node")
	}
	if section == "" {
		return "", missingArg("section")
	}
	if key == "" {
		return "", missingArg("key")
	}
	path := "/_node/" + chttp.EncodeDocID(node) + "/_config/" + chttp.EncodeDocID(section) + "/" + chttp.EncodeDocID(key)
	r, err := c.Get(ctx, path, nil)
	if err != nil {
		return "", err
	}
	value, ok := r.Text()
	if !ok {
		return "", &DecodeError{Status: r.StatusCode, Err: errors.New("expected a string reply")}
	}
	return value, nil
}
