package testkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/lakeshare/lakeshare/sharing"
)

// TableFixture is the served state of one table.
type TableFixture struct {
	Table sharing.Table
	// Version is the current table version, sent in the version header.
	Version int64
	// VersionAtTimestamp is served when a version query carries a
	// startingTimestamp; zero falls back to Version.
	VersionAtTimestamp int64
	Metadata           *sharing.TableMetadata
	// Files is the snapshot listing.
	Files []sharing.FileAction
	// AddFiles, RemoveFiles, and CDCFiles form the change-data-feed listing.
	AddFiles    []sharing.FileAction
	RemoveFiles []sharing.FileAction
	CDCFiles    []sharing.FileAction
	// HistoricalMetadata is interleaved into change listings on request.
	HistoricalMetadata []*sharing.TableMetadata
	// RefreshToken, when set, is appended to query responses as an
	// end-stream action.
	RefreshToken string
}

// QueryRecord is one observed POST query body.
type QueryRecord struct {
	Table              string
	JSONPredicateHints string `json:"jsonPredicateHints"`
	LimitHint          *int64 `json:"limitHint"`
	Version            *int64 `json:"version"`
	Timestamp          string `json:"timestamp"`
	RefreshToken       string `json:"refreshToken"`
}

// ChangeRecord is one observed GET changes query string.
type ChangeRecord struct {
	Table                     string
	StartingVersion           string
	EndingVersion             string
	StartingTimestamp         string
	EndingTimestamp           string
	IncludeHistoricalMetadata string
}

// Server is an in-memory sharing server for tests. It serves the catalog and
// table-query endpoints from fixtures and records every table query it sees.
type Server struct {
	httpServer *httptest.Server

	// URL is the server's base endpoint.
	URL string

	mu            sync.Mutex
	token         string
	shares        []sharing.Share
	schemas       map[string][]sharing.Schema
	tables        map[string][]sharing.Table
	fixtures      map[string]*TableFixture
	queries       []QueryRecord
	changes       []ChangeRecord
	failRemaining int
	failStatus    int
	requests      int
}

// NewServer starts a fake sharing server. A non-empty token makes every
// endpoint require that bearer token. Callers must Close it.
func NewServer(token string) *Server {
	s := &Server{
		token:    token,
		schemas:  make(map[string][]sharing.Schema),
		tables:   make(map[string][]sharing.Table),
		fixtures: make(map[string]*TableFixture),
	}

	r := chi.NewRouter()
	r.Use(s.intercept)
	r.Get("/shares", s.handleListShares)
	r.Get("/shares/{share}", s.handleGetShare)
	r.Get("/shares/{share}/schemas", s.handleListSchemas)
	r.Get("/shares/{share}/schemas/{schema}/tables", s.handleListTables)
	r.Get("/shares/{share}/all-tables", s.handleListAllTables)
	r.Get("/shares/{share}/schemas/{schema}/tables/{table}/version", s.handleVersion)
	r.Get("/shares/{share}/schemas/{schema}/tables/{table}/metadata", s.handleMetadata)
	r.Post("/shares/{share}/schemas/{schema}/tables/{table}/query", s.handleQuery)
	r.Get("/shares/{share}/schemas/{schema}/tables/{table}/changes", s.handleChanges)

	s.httpServer = httptest.NewServer(r)
	s.URL = s.httpServer.URL
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.httpServer.Close()
}

// AddTable registers a table fixture and lists it in the catalog.
func (s *Server) AddTable(fx *TableFixture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := fx.Table
	if !s.hasShare(t.Share) {
		s.shares = append(s.shares, sharing.Share{Name: t.Share})
	}
	if !s.hasSchema(t.Share, t.Schema) {
		s.schemas[t.Share] = append(s.schemas[t.Share], sharing.Schema{Name: t.Schema, Share: t.Share})
	}
	s.tables[t.Share+"."+t.Schema] = append(s.tables[t.Share+"."+t.Schema], t)
	s.fixtures[t.String()] = fx
}

// FailNext makes the next n requests fail with the given status before any
// routing happens.
func (s *Server) FailNext(status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
	s.failRemaining = n
}

// Queries returns the recorded table query bodies in arrival order.
func (s *Server) Queries() []QueryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]QueryRecord, len(s.queries))
	copy(out, s.queries)
	return out
}

// Changes returns the recorded change query parameters in arrival order.
func (s *Server) Changes() []ChangeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChangeRecord, len(s.changes))
	copy(out, s.changes)
	return out
}

// Requests returns the total number of requests seen, including failed ones.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *Server) hasShare(name string) bool {
	for _, sh := range s.shares {
		if sh.Name == name {
			return true
		}
	}
	return false
}

func (s *Server) hasSchema(share, name string) bool {
	for _, sc := range s.schemas[share] {
		if sc.Name == name {
			return true
		}
	}
	return false
}

// intercept counts requests, applies scripted failures, and checks auth.
func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		fail := 0
		if s.failRemaining > 0 {
			s.failRemaining--
			fail = s.failStatus
		}
		token := s.token
		s.mu.Unlock()

		if fail != 0 {
			writeError(w, fail, "SCRIPTED_FAILURE", "scripted failure")
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := make([]sharing.Share, len(s.shares))
	copy(items, s.shares)
	s.mu.Unlock()
	writePage(w, r, len(items), func(lo, hi int) any { return items[lo:hi] })
}

func (s *Server) handleGetShare(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "share")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range s.shares {
		if sh.Name == name {
			writeJSON(w, map[string]any{"share": sh})
			return
		}
	}
	writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "share "+name+" does not exist")
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	share := chi.URLParam(r, "share")
	s.mu.Lock()
	if !s.hasShare(share) {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "share "+share+" does not exist")
		return
	}
	items := make([]sharing.Schema, len(s.schemas[share]))
	copy(items, s.schemas[share])
	s.mu.Unlock()
	writePage(w, r, len(items), func(lo, hi int) any { return items[lo:hi] })
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	share, schema := chi.URLParam(r, "share"), chi.URLParam(r, "schema")
	s.mu.Lock()
	items := make([]sharing.Table, len(s.tables[share+"."+schema]))
	copy(items, s.tables[share+"."+schema])
	s.mu.Unlock()
	writePage(w, r, len(items), func(lo, hi int) any { return items[lo:hi] })
}

func (s *Server) handleListAllTables(w http.ResponseWriter, r *http.Request) {
	share := chi.URLParam(r, "share")
	s.mu.Lock()
	var items []sharing.Table
	for _, sc := range s.schemas[share] {
		items = append(items, s.tables[share+"."+sc.Name]...)
	}
	s.mu.Unlock()
	writePage(w, r, len(items), func(lo, hi int) any { return items[lo:hi] })
}

func (s *Server) fixture(r *http.Request) (*TableFixture, string) {
	name := chi.URLParam(r, "share") + "." + chi.URLParam(r, "schema") + "." + chi.URLParam(r, "table")
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fixtures[name], name
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	fx, name := s.fixture(r)
	if fx == nil {
		writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "table "+name+" does not exist")
		return
	}
	version := fx.Version
	if r.URL.Query().Get("startingTimestamp") != "" && fx.VersionAtTimestamp != 0 {
		version = fx.VersionAtTimestamp
	}
	w.Header().Set("Delta-Table-Version", strconv.FormatInt(version, 10))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	fx, name := s.fixture(r)
	if fx == nil {
		writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "table "+name+" does not exist")
		return
	}
	w.Header().Set("Delta-Table-Version", strconv.FormatInt(fx.Version, 10))
	nd := ndjsonWriter{w: w}
	nd.line(map[string]any{"protocol": sharing.Protocol{MinReaderVersion: 1}})
	nd.line(map[string]any{"metaData": fx.Metadata})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	fx, name := s.fixture(r)
	if fx == nil {
		writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "table "+name+" does not exist")
		return
	}
	var record QueryRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed query body")
		return
	}
	record.Table = name
	s.mu.Lock()
	s.queries = append(s.queries, record)
	s.mu.Unlock()

	w.Header().Set("Delta-Table-Version", strconv.FormatInt(fx.Version, 10))
	nd := ndjsonWriter{w: w}
	nd.line(map[string]any{"protocol": sharing.Protocol{MinReaderVersion: 1}})
	nd.line(map[string]any{"metaData": fx.Metadata})
	for _, f := range fx.Files {
		nd.line(map[string]any{"file": f})
	}
	if fx.RefreshToken != "" {
		nd.line(map[string]any{"endStreamAction": map[string]any{"refreshToken": fx.RefreshToken}})
	}
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	fx, name := s.fixture(r)
	if fx == nil {
		writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "table "+name+" does not exist")
		return
	}
	q := r.URL.Query()
	s.mu.Lock()
	s.changes = append(s.changes, ChangeRecord{
		Table:                     name,
		StartingVersion:           q.Get("startingVersion"),
		EndingVersion:             q.Get("endingVersion"),
		StartingTimestamp:         q.Get("startingTimestamp"),
		EndingTimestamp:           q.Get("endingTimestamp"),
		IncludeHistoricalMetadata: q.Get("includeHistoricalMetadata"),
	})
	s.mu.Unlock()

	w.Header().Set("Delta-Table-Version", strconv.FormatInt(fx.Version, 10))
	nd := ndjsonWriter{w: w}
	nd.line(map[string]any{"protocol": sharing.Protocol{MinReaderVersion: 1}})
	nd.line(map[string]any{"metaData": fx.Metadata})
	if q.Get("includeHistoricalMetadata") == "true" {
		for _, m := range fx.HistoricalMetadata {
			nd.line(map[string]any{"metaData": m})
		}
	}
	for _, f := range fx.AddFiles {
		nd.line(map[string]any{"add": f})
	}
	for _, f := range fx.RemoveFiles {
		nd.line(map[string]any{"remove": f})
	}
	for _, f := range fx.CDCFiles {
		nd.line(map[string]any{"cdf": f})
	}
}

type ndjsonWriter struct {
	w http.ResponseWriter
}

func (n ndjsonWriter) line(v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	n.w.Write(raw)          //nolint:errcheck
	n.w.Write([]byte("\n")) //nolint:errcheck
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"errorCode": code, "message": message}) //nolint:errcheck
}

// writePage slices [lo, hi) out of a listing according to maxResults and
// pageToken, and emits the standard page envelope. Page tokens are plain
// start offsets.
func writePage(w http.ResponseWriter, r *http.Request, total int, slice func(lo, hi int) any) {
	q := r.URL.Query()
	lo := 0
	if tok := q.Get("pageToken"); tok != "" {
		var err error
		lo, err = strconv.Atoi(tok)
		if err != nil || lo < 0 || lo > total {
			writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "invalid pageToken")
			return
		}
	}
	hi := total
	if raw := q.Get("maxResults"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && lo+n < hi {
			hi = lo + n
		}
	}
	resp := map[string]any{"items": slice(lo, hi)}
	if hi < total {
		resp["nextPageToken"] = strconv.Itoa(hi)
	}
	writeJSON(w, resp)
}
