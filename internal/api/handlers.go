package api

import (
	"io"
	"net/http"

	"chart-extension/internal/extension"
	"chart-extension/internal/models"
)

func (s *Server) handleRetrieveSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := extension.RetrieveSettings(installationFrom(r.Context()))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	if s.Config.MaxRequestBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxRequestBodyBytes)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req, err := models.ParseSettings(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := extension.SaveSettings(r.Context(), s.Platform, callContextFrom(r.Context()), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleListMarketplaces(w http.ResponseWriter, r *http.Request) {
	marketplaces, err := extension.ListMarketplaces(r.Context(), s.Platform)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, marketplaces)
}

func (s *Server) handleGenerateChart(w http.ResponseWriter, r *http.Request) {
	chart, err := extension.GenerateChartData(r.Context(), s.Platform, installationFrom(r.Context()), s.Config.ChartConcurrency)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}
