package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chart-extension/internal/api"
	"chart-extension/internal/auth"
	"chart-extension/internal/config"
	"chart-extension/internal/connect"
	"chart-extension/internal/logging"
	"chart-extension/internal/ui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	logging.SetDefault(logger)

	client := connect.New(cfg.ConnectAPIURL, cfg.ConnectAPIKey, cfg.ConnectTimeout)
	client.SetPageSize(cfg.ConnectPageSize)

	pages, err := ui.DefaultRegistry()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to register ui pages")
	}

	server := &api.Server{
		Config:   cfg,
		Platform: client,
		Auth:     auth.New(cfg.JWTSecret),
		Pages:    pages,
		Logger:   &logger,
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.Routes(),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("api_mount_path", cfg.APIMountPath).
			Str("connect_api_url", cfg.ConnectAPIURL).
			Msg("chart extension listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
}
