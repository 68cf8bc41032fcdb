// Package couchtest provides an in-memory stand-in for a CouchDB server, and
// a helper to start a real one in a container.
package couchtest

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func init() {
	chi.RegisterMethod("COPY")
}

// Node is the name the fake server reports for its single node.
const Node = "nonode@nohost"

// Request is a request received by the server.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Server is a fake CouchDB server. It keeps databases in memory, and answers
// the endpoints this module's client uses with replies shaped like CouchDB
// 3.x's.
type Server struct {
	*httptest.Server

	// Username and Password, when Username is set, are required by every
	// endpoint but / and /_up.
	Username string
	Password string

	mux *chi.Mux

	mu             sync.Mutex
	activeTaskList []map[string]interface{}
	dbs            map[string]*database
	config         map[string]map[string]string
	jobs           []map[string]interface{}
	requests       []Request
	seq            int64
}

// NewServer starts a fake server with the given credentials. Call Close when
// done.
func NewServer(username, password string) *Server {
	s := &Server{
		Username: username,
		Password: password,
		mux:      chi.NewMux(),
		dbs:      map[string]*database{},
		config: map[string]map[string]string{
			"couchdb":    {"max_document_size": "8000000", "uuid": "a3eb8ff1e54f2fb5bd2d7b19b4fdbc5c"},
			"replicator": {"interval": "60000"},
		},
	}
	s.routes()
	s.Server = httptest.NewServer(s.mux)
	return s
}

// Host returns the server's host and port.
func (s *Server) Host() (string, int) {
	u, _ := url.Parse(s.URL)
	host, port, _ := net.SplitHostPort(u.Host)
	p, _ := strconv.Atoi(port)
	return host, p
}

// Handle adds or replaces the handler of a route. pattern follows chi's
// routing syntax.
func (s *Server) Handle(method, pattern string, h http.HandlerFunc) {
	s.mux.MethodFunc(method, pattern, h)
}

// SetActiveTasks sets the reply of /_active_tasks.
func (s *Server) SetActiveTasks(tasks ...map[string]interface{}) {
	s.mu.Lock()
	s.activeTaskList = tasks
	s.mu.Unlock()
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest returns the most recent request, or nil.
func (s *Server) LastRequest() *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	r := s.requests[len(s.requests)-1]
	return &r
}

func (s *Server) routes() {
	s.mux.Use(
		s.record,
		middleware.GetHead,
		s.authenticate,
	)

	s.mux.Get("/", s.root)
	s.mux.Get("/_up", s.up)
	s.mux.Get("/_all_dbs", s.allDBs)
	s.mux.Get("/_uuids", s.uuids)
	s.mux.Get("/_membership", s.membership)
	s.mux.Get("/_cluster_setup", s.clusterSetup)
	s.mux.Get("/_active_tasks", s.activeTasks)
	s.mux.Get("/_node/{node}/_stats", s.stats)
	s.mux.Get("/_node/{node}/_config/{section}/{key}", s.configValue)
	s.mux.Put("/_node/{node}/_config/{section}/{key}", s.setConfigValue)
	s.mux.Post("/_replicate", s.replicate)
	s.mux.Get("/_scheduler/jobs", s.schedulerJobs)
	s.mux.Get("/_scheduler/docs", s.schedulerDocs)
	s.mux.Get("/_scheduler/docs/{db}/{docid}", s.schedulerDoc)

	s.mux.Get("/{db}", s.dbInfo)
	s.mux.Put("/{db}", s.createDB)
	s.mux.Delete("/{db}", s.deleteDB)
	s.mux.Post("/{db}", s.postDoc)
	s.mux.Get("/{db}/_all_docs", s.allDocs)
	s.mux.Post("/{db}/_all_docs", s.allDocs)
	s.mux.Post("/{db}/_find", s.find)
	s.mux.Get("/{db}/_index", s.indexes)
	s.mux.Post("/{db}/_index", s.createIndex)
	s.mux.Delete("/{db}/_index/{ddoc}/json/{name}", s.deleteIndex)
	s.mux.Delete("/{db}/_index/_design/{ddoc}/json/{name}", s.deleteIndex)
	s.mux.Get("/{db}/_changes", s.changes)
	s.mux.Post("/{db}/_bulk_docs", s.bulkDocs)
	s.mux.Get("/{db}/_revs_limit", s.revsLimit)
	s.mux.Put("/{db}/_revs_limit", s.setRevsLimit)
	s.mux.Get("/{db}/_design/{ddoc}/_view/{view}", s.notFound("missing_named_view"))
	for _, prefix := range []string{"/{db}/_design/{ddoc}", "/{db}/_local/{ddoc}", "/{db}/{docid}"} {
		s.mux.Get(prefix, s.getDoc)
		s.mux.Put(prefix, s.putDoc)
		s.mux.Delete(prefix, s.deleteDoc)
		s.mux.MethodFunc("COPY", prefix, s.copyDoc)
	}
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" || r.URL.Path == "/" || r.URL.Path == "/_up" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Name or password is incorrect.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Server", "CouchDB/3.3.3 (Erlang OTP/24)")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, name, reason string) {
	writeJSON(w, status, map[string]string{"error": name, "reason": reason})
}

func (s *Server) notFound(reason string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", reason)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid UTF-8 JSON")
		return false
	}
	return true
}

// jsonParam decodes a JSON-encoded query parameter.
func jsonParam(r *http.Request, key string) (interface{}, bool, error) {
	raw, ok := r.URL.Query()[key]
	if !ok {
		return nil, false, nil
	}
	var v interface{}
	err := json.Unmarshal([]byte(raw[0]), &v)
	return v, true, err
}

func boolParam(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

func intParam(r *http.Request, key string) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	return i, err == nil
}

// docIDParam returns a path parameter, decoded the way document IDs are
// encoded.
func docIDParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if unescaped, err := url.QueryUnescape(v); err == nil {
		return unescaped
	}
	return v
}
