// Package connecttest provides an in-memory stand-in for the platform API,
// served over httptest, for exercising code built on package connect.
package connecttest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"chart-extension/internal/connect"
	"chart-extension/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Asset is a subscription asset as far as the fake API needs to know it.
type Asset struct {
	ID            string
	MarketplaceID string
	Status        string
}

type failure struct {
	status int
	code   string
	errors []string
}

// Server is a fake platform API.
type Server struct {
	APIKey string

	srv *httptest.Server

	mu            sync.Mutex
	installations map[string]map[string]json.RawMessage
	marketplaces  []map[string]interface{}
	assets        []Asset
	failures      map[string]failure
	calls         map[string]int
	lastRequestID string
}

// New starts a fake API accepting apiKey. It is closed when the test ends.
func New(t testing.TB, apiKey string) *Server {
	t.Helper()
	s := &Server{
		APIKey:        apiKey,
		installations: make(map[string]map[string]json.RawMessage),
		failures:      make(map[string]failure),
		calls:         make(map[string]int),
	}
	s.srv = httptest.NewServer(s.routes())
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the base URL of the fake API.
func (s *Server) URL() string {
	return s.srv.URL
}

// NewClient returns a connect client pointed at the fake API.
func (s *Server) NewClient() *connect.Client {
	return connect.New(s.srv.URL, s.APIKey, 5*time.Second)
}

// AddInstallation registers an installation with the given settings blob.
func (s *Server) AddInstallation(id string, settings map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob := make(map[string]json.RawMessage, len(settings))
	for k, v := range settings {
		data, _ := json.Marshal(v)
		blob[k] = data
	}
	s.installations[id] = blob
}

// Installation returns the stored installation record.
func (s *Server) Installation(id string) (models.Installation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.installations[id]
	if !ok {
		return models.Installation{}, false
	}
	return models.Installation{ID: id, Settings: copyBlob(blob)}, true
}

// AddMarketplace appends a marketplace. Any fields may be given; "id" is required.
func (s *Server) AddMarketplace(fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marketplaces = append(s.marketplaces, fields)
}

// AddAssets appends subscription assets. Missing ids are generated.
func (s *Server) AddAssets(assets ...Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range assets {
		if a.ID == "" {
			a.ID = "AS-" + uuid.NewString()
		}
		s.assets = append(s.assets, a)
	}
}

// Fail makes every following request for method+path answer with status.
func (s *Server) Fail(method, path string, status int, code string, errs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, code: code, errors: errs}
}

// Calls reports how many requests reached method+path.
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

// LastRequestID is the X-Request-Id of the most recent request.
func (s *Server) LastRequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRequestID
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.track)
	r.Use(s.checkAuth)
	r.Get("/devops/installations/{id}", s.handleGetInstallation)
	r.Put("/devops/installations/{id}", s.handleUpdateInstallation)
	r.Get("/marketplaces", s.handleListMarketplaces)
	r.Get("/subscriptions/assets", s.handleListAssets)
	return r
}

func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.calls[key]++
		s.lastRequestID = r.Header.Get("X-Request-Id")
		f, failing := s.failures[key]
		s.mu.Unlock()
		if failing {
			writeJSON(w, f.status, map[string]interface{}{"error_code": f.code, "errors": f.errors})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "ApiKey ")
		if got == "" || got != strings.TrimPrefix(s.APIKey, "ApiKey ") {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"error_code": "AUTH_001",
				"errors":     []string{"API request is unauthorized."},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGetInstallation(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.Installation(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w, "installation")
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleUpdateInstallation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var payload struct {
		Settings map[string]json.RawMessage `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error_code": "VAL_001",
			"errors":     []string{"invalid payload"},
		})
		return
	}
	s.mu.Lock()
	_, ok := s.installations[id]
	if ok && payload.Settings != nil {
		s.installations[id] = copyBlob(payload.Settings)
	}
	s.mu.Unlock()
	if !ok {
		writeNotFound(w, "installation")
		return
	}
	inst, _ := s.Installation(id)
	writeJSON(w, http.StatusOK, inst)
}

var selectRE = regexp.MustCompile(`select\(([^)]*)\)`)

func (s *Server) handleListMarketplaces(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := make([]map[string]interface{}, len(s.marketplaces))
	copy(items, s.marketplaces)
	s.mu.Unlock()

	if m := selectRE.FindStringSubmatch(r.URL.RawQuery); m != nil {
		fields := strings.Split(m[1], ",")
		for i, item := range items {
			projected := make(map[string]interface{}, len(fields))
			for _, f := range fields {
				if v, ok := item[f]; ok {
					projected[f] = v
				}
			}
			items[i] = projected
		}
	}
	writePage(w, r, items)
}

var eqRE = regexp.MustCompile(`eq\(([^,()]+),([^,()]*)\)`)

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	var criteria [][2]string
	for _, m := range eqRE.FindAllStringSubmatch(r.URL.RawQuery, -1) {
		value, err := url.QueryUnescape(m[2])
		if err != nil {
			value = m[2]
		}
		criteria = append(criteria, [2]string{m[1], value})
	}

	s.mu.Lock()
	var matched []map[string]interface{}
	for _, a := range s.assets {
		if assetMatches(a, criteria) {
			matched = append(matched, map[string]interface{}{
				"id":          a.ID,
				"status":      a.Status,
				"marketplace": map[string]interface{}{"id": a.MarketplaceID},
			})
		}
	}
	s.mu.Unlock()
	writePage(w, r, matched)
}

func assetMatches(a Asset, criteria [][2]string) bool {
	for _, c := range criteria {
		var got string
		switch c[0] {
		case "id":
			got = a.ID
		case "status":
			got = a.Status
		case "marketplace.id":
			got = a.MarketplaceID
		default:
			return false
		}
		if got != c[1] {
			return false
		}
	}
	return true
}

// writePage applies limit/offset and sets Content-Range like the real API.
func writePage(w http.ResponseWriter, r *http.Request, items []map[string]interface{}) {
	q := r.URL.Query()
	limit := 100
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v >= 0 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	total := len(items)
	start := min(offset, total)
	end := min(start+limit, total)
	page := items[start:end]
	if page == nil {
		page = []map[string]interface{}{}
	}
	last := end - 1
	if last < start {
		last = start
	}
	w.Header().Set("Content-Range", fmt.Sprintf("items %d-%d/%d", start, last, total))
	writeJSON(w, http.StatusOK, page)
}

func copyBlob(in map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func writeNotFound(w http.ResponseWriter, kind string) {
	writeJSON(w, http.StatusNotFound, map[string]interface{}{
		"error_code": "NFND_000",
		"errors":     []string{kind + " not found"},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
