package api

import (
	"context"
	"net/http"
	"time"

	"chart-extension/internal/auth"
	"chart-extension/internal/config"
	"chart-extension/internal/extension"
	"chart-extension/internal/models"
	"chart-extension/internal/ui"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth/v5"
	"github.com/rs/zerolog"
)

// Platform is the slice of the platform API the handlers rely on.
type Platform interface {
	GetInstallation(ctx context.Context, id string) (models.Installation, error)
	extension.InstallationUpdater
	extension.MarketplaceLister
	extension.Counter
	Ping(ctx context.Context) error
}

// Server holds routing dependencies.
type Server struct {
	Config   *config.Config
	Platform Platform
	Auth     *auth.Service
	Pages    *ui.Registry
	Logger   *zerolog.Logger
}

// route is one entry of the extension's route table.
type route struct {
	method string
	path   string
	// installation resolves the caller's installation before the handler runs.
	installation bool
	handler      http.HandlerFunc
}

func (s *Server) extensionRoutes() []route {
	return []route{
		{method: http.MethodGet, path: "/settings", installation: true, handler: s.handleRetrieveSettings},
		{method: http.MethodPost, path: "/settings", handler: s.handleSaveSettings},
		{method: http.MethodGet, path: "/marketplaces", handler: s.handleListMarketplaces},
		{method: http.MethodGet, path: "/chart", installation: true, handler: s.handleGenerateChart},
	}
}

// Routes constructs the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.Config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/ui/pages", s.handleUIPages)
	r.Handle("/static/*", ui.StaticHandler())

	tokenAuth := s.Auth.TokenAuth()

	r.Route(s.Config.APIMountPath, func(r chi.Router) {
		if s.Config.APIRateLimitRPS > 0 {
			r.Use(httprate.LimitByIP(s.Config.APIRateLimitRPS, s.Config.APIRateLimitBurst))
		}
		r.Use(jwtauth.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator)
		r.Use(s.withCallContext)

		for _, rt := range s.extensionRoutes() {
			var h http.Handler = rt.handler
			if rt.installation {
				h = s.withInstallation(h)
			}
			r.Method(rt.method, rt.path, h)
		}
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.Platform.Ping(ctx); err != nil {
		loggerFrom(r).Warn().Err(err).Msg("platform api not reachable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleUIPages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Pages.Pages())
}
