// Package ui holds the extension's static front-end pages and the list of
// pages the extension contributes to the platform's UI shell.
package ui

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"
)

//go:embed static
var staticFiles embed.FS

// PageKind says where in the platform UI a page is mounted.
type PageKind string

const (
	// PageKindModule is a top-level page of the extension module.
	PageKindModule PageKind = "module"
	// PageKindAccountSettings is shown in the account settings area.
	PageKindAccountSettings PageKind = "account_settings"
)

// Page is one registered UI page.
type Page struct {
	Kind  PageKind `json:"kind"`
	Label string   `json:"label"`
	URL   string   `json:"url"`
}

// Registry collects the pages registered at startup.
type Registry struct {
	mu    sync.RWMutex
	pages []Page
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a page. The URL must point at one of the embedded static files.
func (r *Registry) Register(kind PageKind, label, url string) error {
	if label == "" {
		return fmt.Errorf("page label required")
	}
	name := strings.TrimPrefix(url, "/")
	if _, err := fs.Stat(staticFiles, name); err != nil {
		return fmt.Errorf("page %q: %w", url, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pages {
		if p.Kind == kind && p.URL == url {
			return fmt.Errorf("page %q already registered as %s", url, kind)
		}
	}
	r.pages = append(r.pages, Page{Kind: kind, Label: label, URL: url})
	return nil
}

// ModulePage registers a module page.
func (r *Registry) ModulePage(label, url string) error {
	return r.Register(PageKindModule, label, url)
}

// AccountSettingsPage registers an account settings page.
func (r *Registry) AccountSettingsPage(label, url string) error {
	return r.Register(PageKindAccountSettings, label, url)
}

// Pages returns the registered pages in registration order.
func (r *Registry) Pages() []Page {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Page, len(r.pages))
	copy(out, r.pages)
	return out
}

// DefaultRegistry registers the chart module page and its settings page.
func DefaultRegistry() (*Registry, error) {
	reg := NewRegistry()
	if err := reg.ModulePage("Chart", "/static/index.html"); err != nil {
		return nil, err
	}
	if err := reg.AccountSettingsPage("Chart settings", "/static/settings.html"); err != nil {
		return nil, err
	}
	return reg, nil
}

// StaticHandler serves the embedded files; mount it at "/static/".
// Pages are served under their own name, index.html included.
func StaticHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if !strings.HasPrefix(name, "static/") {
			http.NotFound(w, r)
			return
		}
		f, err := staticFiles.Open(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		rs, ok := f.(io.ReadSeeker)
		if !ok {
			http.Error(w, "unreadable file", http.StatusInternalServerError)
			return
		}
		http.ServeContent(w, r, info.Name(), info.ModTime(), rs)
	})
}
