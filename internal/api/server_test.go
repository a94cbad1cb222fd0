package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chart-extension/internal/auth"
	"chart-extension/internal/config"
	"chart-extension/internal/connect/connecttest"
	"chart-extension/internal/models"
	"chart-extension/internal/ui"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

type testEnv struct {
	handler http.Handler
	api     *connecttest.Server
	auth    *auth.Service
	token   string
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := &config.Config{
		APIMountPath:        "/api",
		AllowedOrigins:      []string{"https://*"},
		MaxRequestBodyBytes: 1 << 20,
		ChartConcurrency:    2,
	}
	for _, m := range mutate {
		m(cfg)
	}
	api := connecttest.New(t, "SU-1:secret")
	api.AddInstallation("EIN-1", nil)
	pages, err := ui.DefaultRegistry()
	if err != nil {
		t.Fatalf("ui registry: %v", err)
	}
	logger := zerolog.Nop()
	authSvc := auth.New([]byte("test-secret"))
	srv := &Server{
		Config:   cfg,
		Platform: api.NewClient(),
		Auth:     authSvc,
		Pages:    pages,
		Logger:   &logger,
	}
	token := issue(t, authSvc, "EIN-1")
	return &testEnv{handler: srv.Routes(), api: api, auth: authSvc, token: token}
}

func issue(t *testing.T, svc *auth.Service, installationID string) string {
	t.Helper()
	token, err := svc.IssueToken(models.CallContext{InstallationID: installationID, AccountID: "VA-1", UserID: "UR-1"}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func body(rec *httptest.ResponseRecorder) string {
	return strings.TrimSpace(rec.Body.String())
}

func TestExtensionRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	for _, rt := range []struct{ method, path string }{
		{http.MethodGet, "/api/settings"},
		{http.MethodPost, "/api/settings"},
		{http.MethodGet, "/api/marketplaces"},
		{http.MethodGet, "/api/chart"},
	} {
		rec := env.do(t, rt.method, rt.path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", rt.method, rt.path, rec.Code)
		}
	}
	if rec := env.do(t, http.MethodGet, "/api/settings", issue(t, auth.New([]byte("other")), "EIN-1"), ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("foreign token: expected 401, got %d", rec.Code)
	}
}

func TestTokenWithoutInstallationRejected(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/marketplaces", issue(t, env.auth, ""), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, body(rec))
	}
}

func TestRetrieveSettingsDefault(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodGet, "/api/settings", env.token, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d: %s", rec.Code, body(rec))
		}
		if got := body(rec); got != `{"marketplaces":[]}` {
			t.Fatalf("unexpected body %s", got)
		}
	}
}

func TestSaveThenRetrieveSettings(t *testing.T) {
	env := newTestEnv(t)
	payload := `{"marketplaces":[{"id":"MP-1","name":"US","currency":"USD"},{"id":"MP-2"}]}`

	rec := env.do(t, http.MethodPost, "/api/settings", env.token, payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status %d: %s", rec.Code, body(rec))
	}
	var echoed, sent models.Settings
	_ = json.Unmarshal([]byte(payload), &sent)
	if err := json.Unmarshal(rec.Body.Bytes(), &echoed); err != nil {
		t.Fatalf("decode echo: %v", err)
	}
	if diff := cmp.Diff(sent, echoed); diff != "" {
		t.Fatalf("echo (-want +got):\n%s", diff)
	}

	rec = env.do(t, http.MethodGet, "/api/settings", env.token, "")
	var got models.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if diff := cmp.Diff(sent, got); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}

	inst, _ := env.api.Installation("EIN-1")
	if len(inst.Settings) != 1 {
		t.Fatalf("settings blob should hold only marketplaces, got %v", inst.Settings)
	}
}

func TestSaveSettingsLastWriteWins(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/settings", env.token, `{"marketplaces":[{"id":"MP-1"},{"id":"MP-2"}]}`)
	env.do(t, http.MethodPost, "/api/settings", env.token, `{"marketplaces":[{"id":"MP-3"}]}`)
	rec := env.do(t, http.MethodGet, "/api/settings", env.token, "")
	if got := body(rec); got != `{"marketplaces":[{"id":"MP-3"}]}` {
		t.Fatalf("unexpected settings %s", got)
	}
}

func TestSaveSettingsRejectsBadPayload(t *testing.T) {
	env := newTestEnv(t)
	for _, payload := range []string{
		`not json`,
		`{"marketplaces":"MP-1"}`,
		`{"marketplaces":[{"name":"no id"}]}`,
		`{"marketplaces":[{"id":""}]}`,
		`null`,
		`{}`,
		`{"marketplaces":null}`,
		`{"marketplaces":[]} trailing`,
	} {
		rec := env.do(t, http.MethodPost, "/api/settings", env.token, payload)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", payload, rec.Code)
		}
	}
	if calls := env.api.Calls(http.MethodPut, "/devops/installations/EIN-1"); calls != 0 {
		t.Fatalf("invalid payloads reached the platform %d times", calls)
	}
}

func TestStoredSelectionWithoutIDFails(t *testing.T) {
	env := newTestEnv(t)
	env.api.AddInstallation("EIN-1", map[string]interface{}{
		"marketplaces": []interface{}{map[string]interface{}{"id": 5}, map[string]interface{}{"id": "MP-1"}},
	})
	for _, path := range []string{"/api/chart", "/api/settings"} {
		if rec := env.do(t, http.MethodGet, path, env.token, ""); rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d: %s", path, rec.Code, body(rec))
		}
	}
	if calls := env.api.Calls(http.MethodGet, "/subscriptions/assets"); calls != 0 {
		t.Fatalf("no counts expected, got %d", calls)
	}
}

func TestSaveSettingsBodyLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.MaxRequestBodyBytes = 16 })
	rec := env.do(t, http.MethodPost, "/api/settings", env.token, `{"marketplaces":[{"id":"MP-1"},{"id":"MP-2"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", rec.Code)
	}
}

func TestListMarketplacesProjection(t *testing.T) {
	env := newTestEnv(t)
	env.api.AddMarketplace(map[string]interface{}{
		"id": "MP-2", "name": "Germany", "description": "DE", "icon": "/de.png",
		"currencies": []string{"EUR"}, "owner": map[string]interface{}{"id": "VA-1"},
	})
	env.api.AddMarketplace(map[string]interface{}{"id": "MP-1", "name": "USA"})

	for i := 1; i <= 2; i++ {
		rec := env.do(t, http.MethodGet, "/api/marketplaces", env.token, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d: %s", rec.Code, body(rec))
		}
		var items []map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
			t.Fatalf("decode: %v", err)
		}
		want := []map[string]interface{}{
			{"id": "MP-2", "name": "Germany", "description": "DE", "icon": "/de.png"},
			{"id": "MP-1", "name": "USA", "description": nil, "icon": nil},
		}
		if diff := cmp.Diff(want, items); diff != "" {
			t.Fatalf("marketplaces (-want +got):\n%s", diff)
		}
		if calls := env.api.Calls(http.MethodGet, "/marketplaces"); calls != i {
			t.Fatalf("expected %d catalog fetches, got %d", i, calls)
		}
	}
}

func TestListMarketplacesEmpty(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/marketplaces", env.token, "")
	if got := body(rec); rec.Code != http.StatusOK || got != `[]` {
		t.Fatalf("unexpected response %d %s", rec.Code, got)
	}
}

func TestGenerateChart(t *testing.T) {
	env := newTestEnv(t)
	env.api.AddAssets(
		connecttest.Asset{MarketplaceID: "A", Status: "active"},
		connecttest.Asset{MarketplaceID: "A", Status: "active"},
		connecttest.Asset{MarketplaceID: "A", Status: "active"},
		connecttest.Asset{MarketplaceID: "A", Status: "suspended"},
		connecttest.Asset{MarketplaceID: "B", Status: "terminated"},
	)
	env.do(t, http.MethodPost, "/api/settings", env.token, `{"marketplaces":[{"id":"A"},{"id":"B"}]}`)

	rec := env.do(t, http.MethodGet, "/api/chart", env.token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, body(rec))
	}
	want := `{"type":"bar","data":{"labels":["A","B"],"datasets":[{"label":"Subscriptions","data":[3,0]}]}}`
	if got := body(rec); got != want {
		t.Fatalf("got %s\nwant %s", got, want)
	}
}

func TestGenerateChartEmptySelection(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/chart", env.token, "")
	want := `{"type":"bar","data":{"labels":[],"datasets":[{"label":"Subscriptions","data":[]}]}}`
	if got := body(rec); rec.Code != http.StatusOK || got != want {
		t.Fatalf("unexpected response %d %s", rec.Code, got)
	}
	if calls := env.api.Calls(http.MethodGet, "/subscriptions/assets"); calls != 0 {
		t.Fatalf("no counts expected, got %d", calls)
	}
}

func TestPlatformErrorsPassThrough(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/settings", issue(t, env.auth, "EIN-404"), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing installation: expected 404, got %d", rec.Code)
	}
	var payload map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &payload)
	if payload["error_code"] != "NFND_000" || payload["error"] != "installation not found" {
		t.Fatalf("unexpected error payload %v", payload)
	}

	env.do(t, http.MethodPost, "/api/settings", env.token, `{"marketplaces":[{"id":"A"}]}`)
	env.api.Fail(http.MethodGet, "/subscriptions/assets", http.StatusInternalServerError, "SYS_001", "boom")
	rec = env.do(t, http.MethodGet, "/api/chart", env.token, "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("upstream 500: expected 502, got %d", rec.Code)
	}

	env.api.Fail(http.MethodPut, "/devops/installations/EIN-1", http.StatusForbidden, "AUTH_002", "not allowed")
	rec = env.do(t, http.MethodPost, "/api/settings", env.token, `{"marketplaces":[]}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("upstream 403: expected 403, got %d", rec.Code)
	}
}

func TestRequestIDEchoedAndPropagated(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/marketplaces", nil)
	req.Header.Set("Authorization", "Bearer "+env.token)
	req.Header.Set("X-Request-Id", "req-7")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-Id") != "req-7" {
		t.Fatalf("request id not echoed: %q", rec.Header().Get("X-Request-Id"))
	}
	if env.api.LastRequestID() != "req-7" {
		t.Fatalf("request id not propagated: %q", env.api.LastRequestID())
	}

	rec = env.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestRateLimitPerClientIP(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.APIRateLimitRPS = 1
		c.APIRateLimitBurst = 2
	})
	call := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/marketplaces", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set("Authorization", "Bearer "+env.token)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	codes := []int{call("192.0.2.1:1234"), call("192.0.2.1:1235"), call("192.0.2.1:1236"), call("192.0.2.2:1234")}
	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests, http.StatusOK}
	if diff := cmp.Diff(want, codes); diff != "" {
		t.Fatalf("status codes (-want +got):\n%s", diff)
	}
	if calls := env.api.Calls(http.MethodGet, "/marketplaces"); calls != 3 {
		t.Fatalf("limited request reached the platform: %d calls", calls)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 5; i++ {
		if code := env.do(t, http.MethodGet, "/api/marketplaces", env.token, "").Code; code != http.StatusOK {
			t.Fatalf("request %d: expected 200 without a limit, got %d", i, code)
		}
	}
}

func TestPublicEndpoints(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("readyz: %d %s", rec.Code, body(rec))
	}

	rec := env.do(t, http.MethodGet, "/ui/pages", "", "")
	var pages []ui.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &pages); err != nil {
		t.Fatalf("decode pages: %v", err)
	}
	want := []ui.Page{
		{Kind: ui.PageKindModule, Label: "Chart", URL: "/static/index.html"},
		{Kind: ui.PageKindAccountSettings, Label: "Chart settings", URL: "/static/settings.html"},
	}
	if diff := cmp.Diff(want, pages); diff != "" {
		t.Fatalf("pages (-want +got):\n%s", diff)
	}

	if rec := env.do(t, http.MethodGet, "/static/settings.html", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("static page: %d", rec.Code)
	}

	env.api.Fail(http.MethodGet, "/marketplaces", http.StatusServiceUnavailable, "", "maintenance")
	if rec := env.do(t, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with platform down: %d", rec.Code)
	}
}
