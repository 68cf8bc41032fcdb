package couchreq

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/go-kivik/couchreq/chttp"
)

// ReplicationJobsResult is the reply of GET /_scheduler/jobs (Jobs) or
// GET /_scheduler/docs (Docs).
type ReplicationJobsResult struct {
	TotalRows int64            `json:"total_rows"`
	Offset    int64            `json:"offset"`
	Jobs      []ReplicationJob `json:"jobs"`
	Docs      []ReplicationDoc `json:"docs"`
}

// ReplicationJob is a running replication, as listed by /_scheduler/jobs.
type ReplicationJob struct {
	Database  string     `json:"database"`
	ID        string     `json:"id"`
	PID       string     `json:"pid"`
	Source    string     `json:"source"`
	Target    string     `json:"target"`
	User      string     `json:"user"`
	DocID     string     `json:"doc_id"`
	Node      string     `json:"node"`
	StartTime time.Time  `json:"start_time"`
	History   []JobEvent `json:"history"`
	Info      RepInfo    `json:"info"`
}

// JobEvent is an entry of a replication job's history.
type JobEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Reason    string    `json:"reason"`
}

// ReplicationDoc is the scheduler's view of a replication document, as
// listed by /_scheduler/docs.
type ReplicationDoc struct {
	Database      string    `json:"database"`
	DocID         string    `json:"doc_id"`
	ReplicationID string    `json:"id"`
	Node          string    `json:"node"`
	Source        string    `json:"source"`
	Target        string    `json:"target"`
	StartTime     time.Time `json:"start_time"`
	LastUpdated   time.Time `json:"last_updated"`
	State         string    `json:"state"`
	ErrorCount    int64     `json:"error_count"`
	Info          RepInfo   `json:"info"`
}

// EndTime returns LastUpdated for replications in a final state, and the
// zero time otherwise.
func (d *ReplicationDoc) EndTime() time.Time {
	switch d.State {
	case "failed", "completed":
		return d.LastUpdated
	}
	return time.Time{}
}

// RepInfo is the progress of a replication. CouchDB sends either an object,
// or, for failing replications, an error message; the latter sets Error.
type RepInfo struct {
	Error            string `json:"-"`
	DocsRead         int64  `json:"docs_read"`
	DocsWritten      int64  `json:"docs_written"`
	DocWriteFailures int64  `json:"doc_write_failures"`
	Pending          int64  `json:"changes_pending"`
	CheckpointedSeq  Seq    `json:"checkpointed_source_seq"`
	SourceSeq        Seq    `json:"source_seq"`
}

var _ json.Unmarshaler = &RepInfo{}

// UnmarshalJSON accepts an object, a string or null.
func (i *RepInfo) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
		return &DecodeError{Field: "info", Err: errors.New("empty value")}
	case string(data) == "null":
		return nil
	case data[0] == '{':
		type repInfoClone RepInfo
		var x repInfoClone
		if err := json.Unmarshal(data, &x); err != nil {
			return err
		}
		*i = RepInfo(x)
	case data[0] == '"':
		var msg string
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		*i = RepInfo{Error: msg}
	default:
		return &DecodeError{Field: "info", Err: errors.Errorf("unexpected value %s", data)}
	}
	return nil
}

// ReplicationResult is the reply of POST /_replicate.
type ReplicationResult struct {
	OK                   bool                 `json:"ok"`
	SessionID            string               `json:"session_id"`
	SourceLastSeq        Seq                  `json:"source_last_seq"`
	ReplicationIDVersion int64                `json:"replication_id_version"`
	History              []ReplicationHistory `json:"history"`
	NoChanges            bool                 `json:"no_changes"`

	// LocalID is set for continuous replications.
	LocalID string `json:"_local_id"`
}

// ReplicationHistory is an entry of a /_replicate reply's history.
type ReplicationHistory struct {
	SessionID        string `json:"session_id"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	StartLastSeq     Seq    `json:"start_last_seq"`
	EndLastSeq       Seq    `json:"end_last_seq"`
	RecordedSeq      Seq    `json:"recorded_seq"`
	MissingChecked   int64  `json:"missing_checked"`
	MissingFound     int64  `json:"missing_found"`
	DocsRead         int64  `json:"docs_read"`
	DocsWritten      int64  `json:"docs_written"`
	DocWriteFailures int64  `json:"doc_write_failures"`
}

// ReplicationJobs returns the reply as a scheduler listing.
func (r *Response) ReplicationJobs() (*ReplicationJobsResult, error) {
	var result ReplicationJobsResult
	if err := r.decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Replication returns the reply as a /_replicate result.
func (r *Response) Replication() (*ReplicationResult, error) {
	var result ReplicationResult
	if err := r.decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SchedulerJobs lists the running replication jobs.
func (c *Client) SchedulerJobs(ctx context.Context, opts map[string]interface{}) (*ReplicationJobsResult, error) {
	return c.schedulerList(ctx, "/_scheduler/jobs", opts)
}

// SchedulerDocs lists the replication documents known to the scheduler.
func (c *Client) SchedulerDocs(ctx context.Context, opts map[string]interface{}) (*ReplicationJobsResult, error) {
	return c.schedulerList(ctx, "/_scheduler/docs", opts)
}

// SchedulerDoc returns the scheduler state of a single replication document.
func (c *Client) SchedulerDoc(ctx context.Context, db, docID string) (*ReplicationDoc, error) {
	if db == "" {
		return nil, missingArg("db")
	}
	if docID == "" {
		return nil, missingArg("docID")
	}
	r, err := c.Get(ctx, "/_scheduler/docs/"+chttp.EncodeDocID(db)+"/"+chttp.EncodeDocID(docID), nil)
	if err != nil {
		return nil, err
	}
	var doc ReplicationDoc
	if err := r.decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) schedulerList(ctx context.Context, path string, opts map[string]interface{}) (*ReplicationJobsResult, error) {
	r, err := c.doWithOptions(ctx, http.MethodGet, path, nil, opts)
	if err != nil {
		return nil, err
	}
	return r.ReplicationJobs()
}

// Replicate starts a replication from source to target. Additional
// replication settings (continuous, create_target, doc_ids, ...) are passed
// in opts and sent in the request body.
func (c *Client) Replicate(ctx context.Context, target, source string, opts map[string]interface{}) (*ReplicationResult, error) {
	if target == "" {
		return nil, missingArg("target")
	}
	if source == "" {
		return nil, missingArg("source")
	}
	body := make(map[string]interface{}, len(opts)+2) // nolint: gomnd
	for k, v := range opts {
		body[k] = v
	}
	body["source"] = source
	body["target"] = target
	r, err := c.Post(ctx, "/_replicate", body, nil)
	if err != nil {
		return nil, err
	}
	return r.Replication()
}
