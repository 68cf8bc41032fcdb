package couchreq

import (
	"context"
	"net/http"
)

// ClusterInfoResult is the reply of GET /_membership or GET /_cluster_setup.
type ClusterInfoResult struct {
	AllNodes     []string `json:"all_nodes"`
	ClusterNodes []string `json:"cluster_nodes"`

	// State is set by /_cluster_setup, e.g. "cluster_finished".
	State string `json:"state"`
}

// ClusterInfo returns the reply as cluster information.
func (r *Response) ClusterInfo() (*ClusterInfoResult, error) {
	var result ClusterInfoResult
	if err := r.decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Membership returns the nodes known to the server, and those in its
// cluster.
func (c *Client) Membership(ctx context.Context) (*ClusterInfoResult, error) {
	r, err := c.Get(ctx, "/_membership", nil)
	if err != nil {
		return nil, err
	}
	return r.ClusterInfo()
}

// ClusterStatus returns the cluster setup state. The ensure_dbs_exist
// option lists the system databases to check, e.g. []string{"_users"}.
func (c *Client) ClusterStatus(ctx context.Context, opts map[string]interface{}) (*ClusterInfoResult, error) {
	r, err := c.doWithOptions(ctx, http.MethodGet, "/_cluster_setup", nil, opts)
	if err != nil {
		return nil, err
	}
	return r.ClusterInfo()
}
