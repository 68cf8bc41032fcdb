package couchreq

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/icza/dyno"
	"github.com/pkg/errors"

	"github.com/go-kivik/couchreq/chttp"
)

// StatsResult is the reply of GET /_node/{node}/_stats, a tree of metrics
// grouped by subsystem (couchdb, fabric, mem3, ...).
type StatsResult struct {
	tree map[string]interface{}
}

// Stat is a single metric. Counters and gauges carry a number in Value;
// histograms carry an object of percentiles and summary values.
type Stat struct {
	Type  string
	Desc  string
	Value interface{}
}

// Number returns a counter or gauge value.
func (s *Stat) Number() (float64, bool) {
	n, ok := s.Value.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	return f, err == nil
}

// Int returns an integer counter value. It returns false for fractional
// values, and values which do not fit in an int64.
func (s *Stat) Int() (int64, bool) {
	n, ok := s.Value.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	return i, err == nil
}

// Stats returns the reply as a node statistics tree.
func (r *Response) Stats() (*StatsResult, error) {
	return &StatsResult{tree: r.Raw}, nil
}

// Stat returns the metric at path, e.g. Stat("couchdb", "open_databases").
func (s *StatsResult) Stat(path ...string) (*Stat, error) {
	p := make([]interface{}, len(path))
	for i, key := range path {
		p[i] = key
	}
	m, err := dyno.GetMapS(s.tree, p...)
	if err != nil {
		return nil, &chttp.HTTPError{Status: http.StatusNotFound, Err: errors.Wrapf(err, "couchreq: no stat %s", strings.Join(path, "."))}
	}
	value, ok := m["value"]
	if !ok {
		return nil, &chttp.HTTPError{Status: http.StatusNotFound, Message: "couchreq: not a metric: " + strings.Join(path, ".")}
	}
	stat := &Stat{Value: value}
	fields := map[string]*string{"type": &stat.Type, "desc": &stat.Desc}
	for key, dest := range fields {
		v, ok := m[key]
		if !ok {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return nil, &DecodeError{Status: http.StatusOK, Field: strings.Join(path, ".") + "." + key, Err: errors.Errorf("expected string, got %s", jsonKind(v))}
		}
		*dest = str
	}
	return stat, nil
}

// Groups returns the top-level stat groups.
func (s *StatsResult) Groups() []string {
	groups := make([]string, 0, len(s.tree))
	for k := range s.tree {
		groups = append(groups, k)
	}
	return groups
}

// ActiveTask is an entry of GET /_active_tasks.
type ActiveTask struct {
	Type           string `json:"type"`
	Node           string `json:"node"`
	PID            string `json:"pid"`
	Database       string `json:"database"`
	DesignDocument string `json:"design_document"`
	Progress       int64  `json:"progress"`
	ChangesDone    int64  `json:"changes_done"`
	TotalChanges   int64  `json:"total_changes"`
	StartedOn      int64  `json:"started_on"`
	UpdatedOn      int64  `json:"updated_on"`

	// Replication tasks only.
	ReplicationID string `json:"replication_id"`
	DocID         string `json:"doc_id"`
	Source        string `json:"source"`
	Target        string `json:"target"`
	Continuous    bool   `json:"continuous"`
	DocsRead      int64  `json:"docs_read"`
	DocsWritten   int64  `json:"docs_written"`
}

// ActiveTasks returns an array reply as active tasks.
func (r *Response) ActiveTasks() ([]ActiveTask, error) {
	var result struct {
		Tasks []ActiveTask `json:"results"`
	}
	if err := r.decode(&result); err != nil {
		return nil, err
	}
	return result.Tasks, nil
}

// ActiveTasks lists the tasks running on the server.
func (c *Client) ActiveTasks(ctx context.Context) ([]ActiveTask, error) {
	r, err := c.Get(ctx, "/_active_tasks", nil)
	if err != nil {
		return nil, err
	}
	return r.ActiveTasks()
}

// NodeStats returns the statistics of node. "_local" names the node
// answering the request.
func (c *Client) NodeStats(ctx context.Context, node string) (*StatsResult, error) {
	if node == "" {
		return nil, missingArg("node")
	}
	r, err := c.Get(ctx, "/_node/"+chttp.EncodeDocID(node)+"/_stats", nil)
	if err != nil {
		return nil, err
	}
	return r.Stats()
}
