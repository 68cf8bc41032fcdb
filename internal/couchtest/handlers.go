package couchtest

import (
	"net/http"
	"sort"
	"strings"
	"time"
)

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"couchdb":  "Welcome",
		"version":  "3.3.3",
		"git_sha":  "40afbcfc7",
		"uuid":     "a3eb8ff1e54f2fb5bd2d7b19b4fdbc5c",
		"features": []string{"access-ready", "partitioned", "pluggable-storage-engines", "reshard", "scheduler"},
		"vendor": map[string]string{
			"name": "The Apache Software Foundation",
		},
	})
}

func (s *Server) up(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "seeds": map[string]interface{}{}})
}

func (s *Server) allDBs(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	names := make([]string, 0, len(s.dbs))
	for name := range s.dbs {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) uuids(w http.ResponseWriter, r *http.Request) {
	count, ok := intParam(r, "count")
	if !ok {
		count = 1
	}
	ids := make([]string, count)
	for i := range ids {
		ids[i] = newUUID()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"uuids": ids})
}

func (s *Server) membership(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"all_nodes":     []string{Node},
		"cluster_nodes": []string{Node},
	})
}

func (s *Server) clusterSetup(w http.ResponseWriter, r *http.Request) {
	if _, ok := r.URL.Query()["ensure_dbs_exist"]; ok {
		dbs, _, err := jsonParam(r, "ensure_dbs_exist")
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid ensure_dbs_exist")
			return
		}
		list, _ := dbs.([]interface{})
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, name := range list {
			if n, _ := name.(string); s.dbs[n] == nil {
				writeJSON(w, http.StatusOK, map[string]string{"state": "cluster_disabled"})
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": "single_node_enabled"})
}

func (s *Server) activeTasks(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	tasks := s.activeTaskList
	s.mu.Unlock()
	if tasks == nil {
		tasks = []map[string]interface{}{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) validNode(w http.ResponseWriter, r *http.Request) bool {
	switch docIDParam(r, "node") {
	case "_local", Node:
		return true
	}
	writeError(w, http.StatusNotFound, "not_found", "no such node")
	return false
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	if !s.validNode(w, r) {
		return
	}
	s.mu.Lock()
	open := len(s.dbs)
	requests := len(s.requests)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"couchdb": map[string]interface{}{
			"open_databases": map[string]interface{}{
				"value": open,
				"type":  "counter",
				"desc":  "number of open databases",
			},
			"request_time": map[string]interface{}{
				"value": map[string]interface{}{
					"min":             0,
					"max":             1.5,
					"arithmetic_mean": 0.4,
					"percentile":      [][]float64{{50, 0.3}, {99, 1.5}},
				},
				"type": "histogram",
				"desc": "length of a request inside CouchDB without MochiWeb",
			},
		},
		"couch_replicator": map[string]interface{}{
			"jobs": map[string]interface{}{
				"running": map[string]interface{}{
					"value": 0,
					"type":  "gauge",
					"desc":  "replicator jobs running",
				},
			},
		},
		"chttpd": map[string]interface{}{
			"requests": map[string]interface{}{
				"value": requests,
				"type":  "counter",
				"desc":  "number of HTTP requests",
			},
		},
	})
}

func (s *Server) configValue(w http.ResponseWriter, r *http.Request) {
	if !s.validNode(w, r) {
		return
	}
	s.mu.Lock()
	value, ok := s.config[docIDParam(r, "section")][docIDParam(r, "key")]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown_config_value")
		return
	}
	writeJSON(w, http.StatusOK, value)
}

func (s *Server) setConfigValue(w http.ResponseWriter, r *http.Request) {
	if !s.validNode(w, r) {
		return
	}
	var value string
	if !decodeBody(w, r, &value) {
		return
	}
	section, key := docIDParam(r, "section"), docIDParam(r, "key")
	s.mu.Lock()
	old := s.config[section][key]
	if s.config[section] == nil {
		s.config[section] = map[string]string{}
	}
	s.config[section][key] = value
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, old)
}

// localDBName returns the database a replication endpoint refers to: either
// a plain name, or the last path element of a URL.
func localDBName(endpoint string) string {
	endpoint = strings.TrimSuffix(endpoint, "/")
	if i := strings.LastIndex(endpoint, "/"); i >= 0 && strings.Contains(endpoint, "://") {
		return endpoint[i+1:]
	}
	return endpoint
}

func (s *Server) replicate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source       string `json:"source"`
		Target       string `json:"target"`
		Continuous   bool   `json:"continuous"`
		CreateTarget bool   `json:"create_target"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	source := s.dbs[localDBName(req.Source)]
	if source == nil {
		writeError(w, http.StatusNotFound, "not_found", "Database does not exist.")
		return
	}
	targetName := localDBName(req.Target)
	target := s.dbs[targetName]
	if target == nil {
		if !req.CreateTarget {
			writeError(w, http.StatusNotFound, "not_found", "Database does not exist.")
			return
		}
		target = newDatabase(targetName)
		s.dbs[targetName] = target
	}
	repID := newUUID()
	if req.Continuous {
		s.jobs = append(s.jobs, map[string]interface{}{
			"database":   nil,
			"id":         repID + "+continuous",
			"pid":        "<0.1234.0>",
			"source":     req.Source,
			"target":     req.Target,
			"user":       s.Username,
			"doc_id":     nil,
			"node":       Node,
			"start_time": time.Now().UTC().Format(time.RFC3339),
			"history": []map[string]interface{}{
				{"timestamp": time.Now().UTC().Format(time.RFC3339), "type": "started"},
			},
			"info": map[string]interface{}{
				"docs_read":          0,
				"docs_written":       0,
				"doc_write_failures": 0,
				"changes_pending":    nil,
			},
		})
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"ok": true, "_local_id": repID + "+continuous"})
		return
	}
	var written int
	for _, dc := range source.docs {
		if cur, ok := target.docs[dc.id]; ok && cur.rev == dc.rev {
			continue
		}
		target.seq++
		copied := *dc
		copied.seq = target.seq
		target.docs[dc.id] = &copied
		written++
	}
	now := time.Now().UTC().Format(time.RFC1123)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":                     true,
		"session_id":             newUUID(),
		"source_last_seq":        seqString(source.seq),
		"replication_id_version": 4,
		"history": []map[string]interface{}{
			{
				"session_id":         newUUID(),
				"start_time":         now,
				"end_time":           now,
				"start_last_seq":     0,
				"end_last_seq":       seqString(source.seq),
				"recorded_seq":       seqString(source.seq),
				"missing_checked":    len(source.docs),
				"missing_found":      written,
				"docs_read":          written,
				"docs_written":       written,
				"doc_write_failures": 0,
			},
		},
	})
}

func (s *Server) schedulerJobs(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	jobs := append([]map[string]interface{}{}, s.jobs...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_rows": len(jobs),
		"offset":     0,
		"jobs":       jobs,
	})
}

// schedulerDocList describes the documents of the _replicator database. The
// fake server does not run them; they are reported as failing when their
// source does not exist, and running otherwise.
func (s *Server) schedulerDocList() []map[string]interface{} {
	rep := s.dbs["_replicator"]
	if rep == nil {
		return []map[string]interface{}{}
	}
	docs := make([]map[string]interface{}, 0, len(rep.docs))
	for _, dc := range rep.live() {
		source, _ := dc.body["source"].(string)
		target, _ := dc.body["target"].(string)
		entry := map[string]interface{}{
			"database":     "_replicator",
			"doc_id":       dc.id,
			"id":           nil,
			"node":         Node,
			"source":       source,
			"target":       target,
			"state":        "running",
			"start_time":   time.Now().UTC().Format(time.RFC3339),
			"last_updated": time.Now().UTC().Format(time.RFC3339),
			"error_count":  0,
			"info": map[string]interface{}{
				"docs_read":          0,
				"docs_written":       0,
				"doc_write_failures": 0,
				"changes_pending":    0,
			},
		}
		if s.dbs[localDBName(source)] == nil {
			entry["state"] = "failed"
			entry["error_count"] = 1
			entry["info"] = "db_not_found: could not open " + source
		}
		docs = append(docs, entry)
	}
	return docs
}

func (s *Server) schedulerDocs(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	docs := s.schedulerDocList()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_rows": len(docs),
		"offset":     0,
		"docs":       docs,
	})
}

func (s *Server) schedulerDoc(w http.ResponseWriter, r *http.Request) {
	docID := docIDParam(r, "docid")
	s.mu.Lock()
	docs := s.schedulerDocList()
	s.mu.Unlock()
	for _, d := range docs {
		if d["database"] == docIDParam(r, "db") && d["doc_id"] == docID {
			writeJSON(w, http.StatusOK, d)
			return
		}
	}
	writeError(w, http.StatusNotFound, "not_found", "unknown")
}
