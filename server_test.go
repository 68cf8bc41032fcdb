package couchreq

import (
	"context"
	"net/http"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gitlab.com/flimzy/testy"

	"github.com/go-kivik/couchreq/internal/couchtest"
)

func TestServerInfo(t *testing.T) {
	_, c := newFakeServer(t)
	info, err := c.ServerInfo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.CouchDB != "Welcome" || info.Version != "3.3.3" {
		t.Errorf("Unexpected server info: %+v", info)
	}
	if info.Vendor.Name != "The Apache Software Foundation" {
		t.Errorf("Unexpected vendor: %s", info.Vendor.Name)
	}
	if len(info.Features) == 0 {
		t.Error("Expected features")
	}
}

func TestUp(t *testing.T) {
	srv, c := newFakeServer(t)
	if err := c.Up(context.Background()); err != nil {
		t.Fatal(err)
	}
	if req := srv.LastRequest(); req.Method != http.MethodHead || req.Path != "/_up" {
		t.Errorf("Unexpected request: %s %s", req.Method, req.Path)
	}

	srv.Handle(http.MethodGet, "/_up", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":"maintenance_mode"}`))
	})
	err := c.Up(context.Background())
	statusError(t, "Not Found", http.StatusNotFound, err)
}

func TestAllDBs(t *testing.T) {
	_, c := newFakeServer(t)
	ctx := context.Background()
	for _, name := range []string{"b", "a", "_users"} {
		if err := c.DB(name).Create(ctx, nil); err != nil {
			t.Fatal(err)
		}
	}
	dbs, err := c.AllDBs(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]string{"_users", "a", "b"}, dbs); d != "" {
		t.Error(d)
	}

	_, err = c.AllDBs(ctx, map[string]interface{}{"limit": 1.5})
	statusError(t, `couchreq: invalid type float64 for option "limit"`, http.StatusBadRequest, err)
}

func TestUUIDs(t *testing.T) {
	srv, c := newFakeServer(t)
	ctx := context.Background()
	uuids, err := c.UUIDs(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(uuids) != 3 || uuids[0] == uuids[1] {
		t.Errorf("Unexpected UUIDs: %v", uuids)
	}
	if got := srv.LastRequest().Query.Get("count"); got != "3" {
		t.Errorf("Unexpected count: %s", got)
	}
	uuids, err = c.UUIDs(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(uuids) != 1 {
		t.Errorf("Unexpected UUIDs: %v", uuids)
	}
}

func TestConfigValue(t *testing.T) {
	type tst struct {
		node, section, key string
		want               string
		status             int
		err                string
	}
	tests := testy.NewTable()
	tests.Add("local node", tst{
		node:    "_local",
		section: "couchdb",
		key:     "max_document_size",
		want:    "8000000",
	})
	tests.Add("named node", tst{
		node:    couchtest.Node,
		section: "replicator",
		key:     "interval",
		want:    "60000",
	})
	tests.Add("missing key", tst{
		node:    "_local",
		section: "couchdb",
		key:     "nope",
		status:  http.StatusNotFound,
		err:     "Not Found: unknown_config_value",
	})
	tests.Add("no node", tst{
		section: "couchdb",
		key:     "uuid",
		status:  http.StatusBadRequest,
		err:     "couchreq: node required",
	})
	tests.Add("no section", tst{
		node:   "_local",
		key:    "uuid",
		status: http.StatusBadRequest,
		err:    "couchreq: section required",
	})
	tests.Add("no key", tst{
		node:    "_local",
		section: "couchdb",
		status:  http.StatusBadRequest,
		err:     "couchreq: key required",
	})

	_, c := newFakeServer(t)
	tests.Run(t, func(t *testing.T, tt tst) {
		got, err := c.ConfigValue(context.Background(), tt.node, tt.section, tt.key)
		statusError(t, tt.err, tt.status, err)
		if err != nil {
			return
		}
		if got != tt.want {
			t.Errorf("Unexpected value: %q", got)
		}
	})
}

func TestConfigValueUnexpectedReply(t *testing.T) {
	c := newTestClient(jsonResponse(http.StatusOK, `{"unexpected":true}`), nil)
	got, err := c.ConfigValue(context.Background(), "_local", "couchdb", "uuid")
	statusError(t, "couchreq: malformed response: expected a string reply", http.StatusBadGateway, err)
	if got != "" {
		t.Errorf("Unexpected value: %q", got)
	}
}

func TestMembership(t *testing.T) {
	_, c := newFakeServer(t)
	got, err := c.Membership(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := &ClusterInfoResult{AllNodes: []string{couchtest.Node}, ClusterNodes: []string{couchtest.Node}}
	if d := cmp.Diff(want, got); d != "" {
		t.Error(d)
	}
}

func TestClusterStatus(t *testing.T) {
	srv, c := newFakeServer(t)
	ctx := context.Background()
	opts := map[string]interface{}{"ensure_dbs_exist": []string{"_users"}}
	got, err := c.ClusterStatus(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != "cluster_disabled" {
		t.Errorf("Unexpected state: %s", got.State)
	}
	if q := srv.LastRequest().Query.Get("ensure_dbs_exist"); q != `["_users"]` {
		t.Errorf("Unexpected query: %s", q)
	}
	if err := c.DB("_users").Create(ctx, nil); err != nil {
		t.Fatal(err)
	}
	got, err = c.ClusterStatus(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != "single_node_enabled" {
		t.Errorf("Unexpected state: %s", got.State)
	}
}

func TestClientActiveTasks(t *testing.T) {
	srv, c := newFakeServer(t)
	ctx := context.Background()
	tasks, err := c.ActiveTasks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Errorf("Unexpected tasks: %v", tasks)
	}
	srv.SetActiveTasks(map[string]interface{}{
		"type": "database_compaction", "database": "foo", "progress": 42, "node": couchtest.Node,
	})
	tasks, err = c.ActiveTasks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []ActiveTask{{Type: "database_compaction", Database: "foo", Progress: 42, Node: couchtest.Node}}
	if d := cmp.Diff(want, tasks); d != "" {
		t.Error(d)
	}
}

func TestNodeStats(t *testing.T) {
	_, c := newFakeServer(t)
	ctx := context.Background()
	if err := c.DB("foo").Create(ctx, nil); err != nil {
		t.Fatal(err)
	}
	stats, err := c.NodeStats(ctx, "_local")
	if err != nil {
		t.Fatal(err)
	}
	stat, err := stats.Stat("couchdb", "open_databases")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := stat.Number(); n != 1 || stat.Type != "counter" {
		t.Errorf("Unexpected stat: %+v", stat)
	}
	stat, err = stats.Stat("couch_replicator", "jobs", "running")
	if err != nil {
		t.Fatal(err)
	}
	if stat.Type != "gauge" {
		t.Errorf("Unexpected stat: %+v", stat)
	}
	groups := stats.Groups()
	sort.Strings(groups)
	if d := cmp.Diff([]string{"chttpd", "couch_replicator", "couchdb"}, groups); d != "" {
		t.Error(d)
	}

	_, err = c.NodeStats(ctx, "other@host")
	statusError(t, "Not Found: no such node", http.StatusNotFound, err)
	_, err = c.NodeStats(ctx, "")
	statusError(t, "couchreq: node required", http.StatusBadRequest, err)
}

func TestReplicate(t *testing.T) {
	_, c := newFakeServer(t)
	ctx := context.Background()
	source := c.DB("source")
	if err := source.Create(ctx, nil); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"a", "b"} {
		if _, err := source.Put(ctx, id, map[string]string{"id": id}, nil); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("one-shot", func(t *testing.T) {
		result, err := c.Replicate(ctx, "target", "source", map[string]interface{}{"create_target": true})
		if err != nil {
			t.Fatal(err)
		}
		if !result.OK || len(result.History) != 1 || result.History[0].DocsWritten != 2 {
			t.Errorf("Unexpected result: %+v", result)
		}
		info, err := c.DB("target").Info(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if info.DocCount != 2 {
			t.Errorf("Unexpected doc count: %d", info.DocCount)
		}
	})
	t.Run("continuous", func(t *testing.T) {
		result, err := c.Replicate(ctx, "target", "source", map[string]interface{}{"continuous": true})
		if err != nil {
			t.Fatal(err)
		}
		if result.LocalID == "" {
			t.Error("Expected a local ID")
		}
		jobs, err := c.SchedulerJobs(ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		if jobs.TotalRows != 1 || len(jobs.Jobs) != 1 {
			t.Fatalf("Unexpected jobs: %+v", jobs)
		}
		job := jobs.Jobs[0]
		if job.ID != result.LocalID || job.Source != "source" || job.Node != couchtest.Node {
			t.Errorf("Unexpected job: %+v", job)
		}
		if len(job.History) != 1 || job.History[0].Type != "started" {
			t.Errorf("Unexpected history: %+v", job.History)
		}
	})
	t.Run("missing source", func(t *testing.T) {
		_, err := c.Replicate(ctx, "target", "nope", nil)
		statusError(t, "Not Found: Database does not exist.", http.StatusNotFound, err)
	})
	t.Run("missing args", func(t *testing.T) {
		_, err := c.Replicate(ctx, "", "source", nil)
		statusError(t, "couchreq: target required", http.StatusBadRequest, err)
		_, err = c.Replicate(ctx, "target", "", nil)
		statusError(t, "couchreq: source required", http.StatusBadRequest, err)
	})
}

func TestSchedulerDocs(t *testing.T) {
	_, c := newFakeServer(t)
	ctx := context.Background()
	rep := c.DB("_replicator")
	if err := rep.Create(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.DB("a").Create(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := rep.Put(ctx, "good", map[string]string{"source": "a", "target": "b"}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := rep.Put(ctx, "bad", map[string]string{"source": "http://localhost:5984/missing", "target": "b"}, nil); err != nil {
		t.Fatal(err)
	}

	docs, err := c.SchedulerDocs(ctx, map[string]interface{}{"limit": 10})
	if err != nil {
		t.Fatal(err)
	}
	if docs.TotalRows != 2 || len(docs.Docs) != 2 {
		t.Fatalf("Unexpected docs: %+v", docs)
	}

	doc, err := c.SchedulerDoc(ctx, "_replicator", "bad")
	if err != nil {
		t.Fatal(err)
	}
	if doc.State != "failed" || doc.ErrorCount != 1 {
		t.Errorf("Unexpected doc: %+v", doc)
	}
	if want := "db_not_found: could not open http://localhost:5984/missing"; doc.Info.Error != want {
		t.Errorf("Unexpected info: %+v", doc.Info)
	}
	if doc.EndTime().IsZero() {
		t.Error("Failed replications should have an end time")
	}

	doc, err = c.SchedulerDoc(ctx, "_replicator", "good")
	if err != nil {
		t.Fatal(err)
	}
	if doc.State != "running" || doc.Info.Error != "" || !doc.EndTime().IsZero() {
		t.Errorf("Unexpected doc: %+v", doc)
	}

	_, err = c.SchedulerDoc(ctx, "_replicator", "unknown")
	statusError(t, "Not Found: unknown", http.StatusNotFound, err)
	_, err = c.SchedulerDoc(ctx, "", "good")
	statusError(t, "couchreq: db required", http.StatusBadRequest, err)
	_, err = c.SchedulerDoc(ctx, "_replicator", "")
	statusError(t, "couchreq: docID required", http.StatusBadRequest, err)
}
