package couchtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// withDB runs fn with the database named in the request path, holding the
// server lock. A missing database yields a 404 reply.
func (s *Server) withDB(w http.ResponseWriter, r *http.Request, fn func(*database)) {
	name := docIDParam(r, "db")
	s.mu.Lock()
	defer s.mu.Unlock()
	db := s.dbs[name]
	if db == nil {
		writeError(w, http.StatusNotFound, "not_found", "Database does not exist.")
		return
	}
	fn(db)
}

func (s *Server) dbInfo(w http.ResponseWriter, r *http.Request) {
	s.withDB(w, r, func(db *database) {
		writeJSON(w, http.StatusOK, db.info())
	})
}

func (s *Server) createDB(w http.ResponseWriter, r *http.Request) {
	name := docIDParam(r, "db")
	if !validDBName.MatchString(name) {
		writeError(w, http.StatusBadRequest, "illegal_database_name", fmt.Sprintf("Name: '%s'. Only lowercase characters (a-z), digits (0-9), and any of the characters _, $, (, ), +, -, and / are allowed. Must begin with a letter.", name))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dbs[name] != nil {
		writeError(w, http.StatusPreconditionFailed, "file_exists", "The database could not be created, the file already exists.")
		return
	}
	s.dbs[name] = newDatabase(name)
	writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
}

func (s *Server) deleteDB(w http.ResponseWriter, r *http.Request) {
	name := docIDParam(r, "db")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dbs[name] == nil {
		writeError(w, http.StatusNotFound, "not_found", "Database does not exist.")
		return
	}
	delete(s.dbs, name)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// docID returns the document ID addressed by the request path.
func docID(r *http.Request) string {
	pattern := chi.RouteContext(r.Context()).RoutePattern()
	switch {
	case strings.Contains(pattern, "/_design/"):
		return "_design/" + docIDParam(r, "ddoc")
	case strings.Contains(pattern, "/_local/"):
		return "_local/" + docIDParam(r, "ddoc")
	}
	return docIDParam(r, "docid")
}

func writeDocResult(w http.ResponseWriter, status int, dc *doc) {
	w.Header().Set("ETag", strconv.Quote(dc.rev))
	writeJSON(w, status, map[string]interface{}{"ok": true, "id": dc.id, "rev": dc.rev})
}

func conflict(w http.ResponseWriter) {
	writeError(w, http.StatusConflict, "conflict", "Document update conflict.")
}

func (s *Server) getDoc(w http.ResponseWriter, r *http.Request) {
	id := docID(r)
	s.withDB(w, r, func(db *database) {
		dc, ok := db.docs[id]
		switch {
		case !ok:
			writeError(w, http.StatusNotFound, "not_found", "missing")
			return
		case dc.deleted:
			writeError(w, http.StatusNotFound, "not_found", "deleted")
			return
		}
		if rev := r.URL.Query().Get("rev"); rev != "" && rev != dc.rev {
			writeError(w, http.StatusNotFound, "not_found", "missing")
			return
		}
		obj := dc.object()
		if boolParam(r, "local_seq") {
			obj["_local_seq"] = dc.seq
		}
		if boolParam(r, "revs_info") {
			obj["_revs_info"] = []map[string]string{{"rev": dc.rev, "status": "available"}}
		}
		if boolParam(r, "revs") {
			parts := strings.SplitN(dc.rev, "-", 2) // nolint: gomnd
			obj["_revisions"] = map[string]interface{}{
				"start": revGeneration(dc.rev),
				"ids":   []string{parts[1]},
			}
		}
		w.Header().Set("ETag", strconv.Quote(dc.rev))
		writeJSON(w, http.StatusOK, obj)
	})
}

func (s *Server) putDoc(w http.ResponseWriter, r *http.Request) {
	id := docID(r)
	var body map[string]interface{}
	if !decodeBody(w, r, &body) {
		return
	}
	rev, _ := body["_rev"].(string)
	if q := r.URL.Query().Get("rev"); q != "" {
		rev = q
	}
	deleted, _ := body["_deleted"].(bool)
	s.withDB(w, r, func(db *database) {
		dc, err := db.put(id, rev, body, deleted)
		if err != nil {
			conflict(w)
			return
		}
		writeDocResult(w, http.StatusCreated, dc)
	})
}

func (s *Server) postDoc(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if !decodeBody(w, r, &body) {
		return
	}
	id, _ := body["_id"].(string)
	if id == "" {
		id = newUUID()
	}
	rev, _ := body["_rev"].(string)
	s.withDB(w, r, func(db *database) {
		dc, err := db.put(id, rev, body, false)
		if err != nil {
			conflict(w)
			return
		}
		writeDocResult(w, http.StatusCreated, dc)
	})
}

func (s *Server) deleteDoc(w http.ResponseWriter, r *http.Request) {
	id := docID(r)
	rev := r.URL.Query().Get("rev")
	s.withDB(w, r, func(db *database) {
		cur, ok := db.docs[id]
		if !ok || cur.deleted {
			writeError(w, http.StatusNotFound, "not_found", "missing")
			return
		}
		dc, err := db.put(id, rev, nil, true)
		if err != nil {
			conflict(w)
			return
		}
		writeDocResult(w, http.StatusOK, dc)
	})
}

func (s *Server) copyDoc(w http.ResponseWriter, r *http.Request) {
	id := docID(r)
	dest := r.Header.Get("Destination")
	if dest == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "Destination header is mandatory for COPY.")
		return
	}
	var targetRev string
	if i := strings.Index(dest, "?"); i >= 0 {
		targetRev = strings.TrimPrefix(dest[i+1:], "rev=")
		dest = dest[:i]
	}
	s.withDB(w, r, func(db *database) {
		src, ok := db.docs[id]
		if !ok || src.deleted {
			writeError(w, http.StatusNotFound, "not_found", "missing")
			return
		}
		dc, err := db.put(dest, targetRev, src.body, false)
		if err != nil {
			conflict(w)
			return
		}
		writeDocResult(w, http.StatusCreated, dc)
	})
}

func (s *Server) allDocs(w http.ResponseWriter, r *http.Request) {
	var keys []interface{}
	hasKeys := false
	if r.Method == http.MethodPost {
		var body struct {
			Keys []interface{} `json:"keys"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		keys, hasKeys = body.Keys, body.Keys != nil
	}
	if v, ok, err := jsonParam(r, "keys"); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid keys")
		return
	} else if ok {
		keys, _ = v.([]interface{})
		hasKeys = true
	}
	includeDocs := boolParam(r, "include_docs")
	s.withDB(w, r, func(db *database) {
		rowOf := func(dc *doc) map[string]interface{} {
			row := map[string]interface{}{
				"id":    dc.id,
				"key":   dc.id,
				"value": map[string]interface{}{"rev": dc.rev},
			}
			if includeDocs {
				row["doc"] = dc.object()
			}
			return row
		}
		rows := []map[string]interface{}{}
		if hasKeys {
			for _, key := range keys {
				id, _ := key.(string)
				dc, ok := db.docs[id]
				if !ok || dc.deleted {
					rows = append(rows, map[string]interface{}{"key": key, "error": "not_found"})
					continue
				}
				rows = append(rows, rowOf(dc))
			}
		} else {
			start, end := keyRange(r)
			for _, dc := range db.live() {
				if (start != "" && dc.id < start) || (end != "" && dc.id > end) {
					continue
				}
				rows = append(rows, rowOf(dc))
			}
		}
		offset := 0
		if skip, ok := intParam(r, "skip"); ok && skip > 0 {
			offset = skip
			if skip > len(rows) {
				skip = len(rows)
			}
			rows = rows[skip:]
		}
		if limit, ok := intParam(r, "limit"); ok && limit >= 0 && limit < len(rows) {
			rows = rows[:limit]
		}
		result := map[string]interface{}{
			"total_rows": len(db.live()),
			"offset":     offset,
			"rows":       rows,
		}
		if boolParam(r, "update_seq") {
			result["update_seq"] = seqString(db.seq)
		}
		writeJSON(w, http.StatusOK, result)
	})
}

// keyRange returns the ID range selected by key, startkey and endkey.
func keyRange(r *http.Request) (start, end string) {
	for _, name := range []string{"startkey", "start_key"} {
		if v, ok, _ := jsonParam(r, name); ok {
			start, _ = v.(string)
		}
	}
	for _, name := range []string{"endkey", "end_key"} {
		if v, ok, _ := jsonParam(r, name); ok {
			end, _ = v.(string)
		}
	}
	if v, ok, _ := jsonParam(r, "key"); ok {
		start, _ = v.(string)
		end = start
	}
	return start, end
}

func (s *Server) find(w http.ResponseWriter, r *http.Request) {
	var query struct {
		Selector       map[string]interface{} `json:"selector"`
		Limit          *int                   `json:"limit"`
		ExecutionStats bool                   `json:"execution_stats"`
	}
	if !decodeBody(w, r, &query) {
		return
	}
	if query.Selector == nil {
		writeError(w, http.StatusBadRequest, "missing_required_key", "Missing required key: selector")
		return
	}
	s.withDB(w, r, func(db *database) {
		live := db.live()
		docs := []map[string]interface{}{}
		for _, dc := range live {
			obj := dc.object()
			if !matches(obj, query.Selector) {
				continue
			}
			if query.Limit != nil && len(docs) >= *query.Limit {
				break
			}
			docs = append(docs, obj)
		}
		result := map[string]interface{}{
			"docs":     docs,
			"bookmark": "nil",
		}
		if len(db.indexes) == 0 {
			result["warning"] = "No matching index found, create an index to optimize query time."
		}
		if query.ExecutionStats {
			result["execution_stats"] = map[string]interface{}{
				"total_keys_examined":        0,
				"total_docs_examined":        len(live),
				"total_quorum_docs_examined": 0,
				"results_returned":           len(docs),
				"execution_time_ms":          0.25,
			}
		}
		writeJSON(w, http.StatusOK, result)
	})
}

func (s *Server) indexes(w http.ResponseWriter, r *http.Request) {
	s.withDB(w, r, func(db *database) {
		list := []map[string]interface{}{{
			"ddoc": nil,
			"name": "_all_docs",
			"type": "special",
			"def":  map[string]interface{}{"fields": []map[string]string{{"_id": "asc"}}},
		}}
		for _, idx := range db.indexes {
			list = append(list, map[string]interface{}{
				"ddoc":        idx.ddoc,
				"name":        idx.name,
				"type":        "json",
				"partitioned": false,
				"def":         map[string]interface{}{"fields": idx.fields},
			})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"total_rows": len(list),
			"indexes":    list,
		})
	})
}

func (s *Server) createIndex(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index struct {
			Fields []interface{} `json:"fields"`
		} `json:"index"`
		Ddoc string `json:"ddoc"`
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Index.Fields) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "Index definition must include fields.")
		return
	}
	s.withDB(w, r, func(db *database) {
		fieldsJSON, _ := json.Marshal(req.Index.Fields)
		hash := fmt.Sprintf("%x", fieldsJSON)
		if len(hash) > 40 { // nolint: gomnd
			hash = hash[:40]
		}
		if req.Name == "" {
			req.Name = hash
		}
		if req.Ddoc == "" {
			req.Ddoc = hash
		}
		req.Ddoc = "_design/" + strings.TrimPrefix(req.Ddoc, "_design/")
		for _, idx := range db.indexes {
			if idx.ddoc == req.Ddoc && idx.name == req.Name {
				writeJSON(w, http.StatusOK, map[string]string{"result": "exists", "id": idx.ddoc, "name": idx.name})
				return
			}
		}
		db.indexes = append(db.indexes, index{ddoc: req.Ddoc, name: req.Name, fields: req.Index.Fields})
		writeJSON(w, http.StatusOK, map[string]string{"result": "created", "id": req.Ddoc, "name": req.Name})
	})
}

func (s *Server) deleteIndex(w http.ResponseWriter, r *http.Request) {
	ddoc := "_design/" + strings.TrimPrefix(docIDParam(r, "ddoc"), "_design/")
	name := docIDParam(r, "name")
	s.withDB(w, r, func(db *database) {
		for i, idx := range db.indexes {
			if idx.ddoc == ddoc && idx.name == name {
				db.indexes = append(db.indexes[:i], db.indexes[i+1:]...)
				writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
				return
			}
		}
		writeError(w, http.StatusNotFound, "not_found", "Index not found")
	})
}

func (s *Server) changes(w http.ResponseWriter, r *http.Request) {
	if feed := r.URL.Query().Get("feed"); feed != "" && feed != "normal" {
		writeError(w, http.StatusBadRequest, "bad_request", "unsupported feed")
		return
	}
	var since int64
	if v := r.URL.Query().Get("since"); v != "" && v != "now" {
		since = parseSeq(v)
	}
	includeDocs := boolParam(r, "include_docs")
	s.withDB(w, r, func(db *database) {
		if r.URL.Query().Get("since") == "now" {
			since = db.seq
		}
		docs := make([]*doc, 0, len(db.docs))
		for _, dc := range db.docs {
			if dc.seq > since {
				docs = append(docs, dc)
			}
		}
		sortBySeq(docs)
		results := make([]map[string]interface{}, 0, len(docs))
		for _, dc := range docs {
			ch := map[string]interface{}{
				"seq":     seqString(dc.seq),
				"id":      dc.id,
				"changes": []map[string]string{{"rev": dc.rev}},
			}
			if dc.deleted {
				ch["deleted"] = true
			}
			if includeDocs {
				ch["doc"] = dc.object()
			}
			results = append(results, ch)
		}
		pending := 0
		if limit, ok := intParam(r, "limit"); ok && limit >= 0 && limit < len(results) {
			pending = len(results) - limit
			results = results[:limit]
		}
		lastSeq := seqString(since)
		if len(results) > 0 {
			lastSeq = results[len(results)-1]["seq"].(string)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"results":  results,
			"last_seq": lastSeq,
			"pending":  pending,
		})
	})
}

func (s *Server) bulkDocs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Docs     []map[string]interface{} `json:"docs"`
		NewEdits *bool                    `json:"new_edits"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Docs == nil {
		writeError(w, http.StatusBadRequest, "bad_request", "POST body must include `docs` parameter.")
		return
	}
	s.withDB(w, r, func(db *database) {
		results := make([]map[string]interface{}, 0, len(req.Docs))
		for _, body := range req.Docs {
			id, _ := body["_id"].(string)
			if id == "" {
				id = newUUID()
			}
			rev, _ := body["_rev"].(string)
			deleted, _ := body["_deleted"].(bool)
			dc, err := db.put(id, rev, body, deleted)
			if err != nil {
				results = append(results, map[string]interface{}{
					"id":     id,
					"error":  "conflict",
					"reason": "Document update conflict.",
				})
				continue
			}
			results = append(results, map[string]interface{}{"ok": true, "id": dc.id, "rev": dc.rev})
		}
		writeJSON(w, http.StatusCreated, results)
	})
}

func (s *Server) revsLimit(w http.ResponseWriter, r *http.Request) {
	s.withDB(w, r, func(db *database) {
		writeJSON(w, http.StatusOK, db.revsLimit)
	})
}

func (s *Server) setRevsLimit(w http.ResponseWriter, r *http.Request) {
	var limit int
	if !decodeBody(w, r, &limit) {
		return
	}
	if limit <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "`revs_limit` must be a positive integer")
		return
	}
	s.withDB(w, r, func(db *database) {
		db.revsLimit = limit
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
}
