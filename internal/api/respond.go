package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"chart-extension/internal/connect"
	"chart-extension/internal/models"
)

// writeFailure translates an operation error into an HTTP response. Platform
// client errors keep their status; platform server errors surface as 502.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	log := loggerFrom(r)

	var verr models.ErrValidation
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}

	var apiErr *connect.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status < 400 || status > 499 {
			status = http.StatusBadGateway
		}
		log.Warn().Err(err).Int("upstream_status", apiErr.StatusCode).Msg("platform api call failed")
		writeJSON(w, status, map[string]string{
			"error":      apiErr.Message(),
			"error_code": apiErr.ErrorCode,
		})
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		log.Warn().Err(err).Msg("request timed out")
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}

	log.Error().Err(err).Msg("request failed")
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
