package api

import (
	"context"
	"net/http"
	"time"

	"chart-extension/internal/auth"
	"chart-extension/internal/logging"
	"chart-extension/internal/models"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type callContextKey struct{}

type installationKey struct{}

func withCallContext(ctx context.Context, cc models.CallContext) context.Context {
	return context.WithValue(ctx, callContextKey{}, cc)
}

func callContextFrom(ctx context.Context) models.CallContext {
	if cc, ok := ctx.Value(callContextKey{}).(models.CallContext); ok {
		return cc
	}
	return models.CallContext{}
}

func installationFrom(ctx context.Context) models.Installation {
	if inst, ok := ctx.Value(installationKey{}).(models.Installation); ok {
		return inst
	}
	return models.Installation{}
}

func loggerFrom(r *http.Request) *zerolog.Logger {
	return logging.FromContext(r.Context())
}

// requestLogger assigns the request id, attaches a tagged logger and logs completion.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		ctx := logging.WithLogger(r.Context(), s.Logger)
		ctx = logging.WithRequestID(ctx, requestID)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logging.FromContext(ctx).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("http request")
	})
}

// withCallContext builds the request-scoped CallContext from the verified token.
func (s *Server) withCallContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		_, claims, err := jwtauth.FromContext(ctx)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		cc, err := auth.CallContextFromClaims(claims)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		cc.RequestID = logging.RequestID(ctx)
		ctx = logging.WithField(ctx, "installation_id", cc.InstallationID)
		ctx = withCallContext(ctx, cc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withInstallation fetches the caller's installation record for the handler.
func (s *Server) withInstallation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		cc := callContextFrom(ctx)
		inst, err := s.Platform.GetInstallation(ctx, cc.InstallationID)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, installationKey{}, inst)))
	})
}
