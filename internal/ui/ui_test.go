package ui

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultRegistry(t *testing.T) {
	reg, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}
	want := []Page{
		{Kind: PageKindModule, Label: "Chart", URL: "/static/index.html"},
		{Kind: PageKindAccountSettings, Label: "Chart settings", URL: "/static/settings.html"},
	}
	if diff := cmp.Diff(want, reg.Pages()); diff != "" {
		t.Fatalf("pages (-want +got):\n%s", diff)
	}
}

func TestRegisterRejectsUnknownAndDuplicatePages(t *testing.T) {
	reg := NewRegistry()
	if err := reg.ModulePage("Missing", "/static/missing.html"); err == nil {
		t.Fatalf("expected error for missing page")
	}
	if err := reg.ModulePage("", "/static/index.html"); err == nil {
		t.Fatalf("expected error for empty label")
	}
	if err := reg.ModulePage("Chart", "/static/index.html"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.ModulePage("Chart again", "/static/index.html"); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if len(reg.Pages()) != 1 {
		t.Fatalf("unexpected pages %v", reg.Pages())
	}
}

func TestStaticHandlerServesPages(t *testing.T) {
	h := StaticHandler()
	for _, path := range []string{"/static/index.html", "/static/settings.html", "/static/app.js"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
		body, _ := io.ReadAll(rec.Body)
		if len(body) == 0 {
			t.Fatalf("%s: empty body", path)
		}
		if strings.HasSuffix(path, ".html") && !strings.Contains(string(body), "app.js") {
			t.Fatalf("%s: page does not load app.js", path)
		}
	}
}

func TestStaticHandlerNotFound(t *testing.T) {
	h := StaticHandler()
	for _, path := range []string{"/static/", "/static/missing.js", "/static/../ui.go", "/ui.go"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}
