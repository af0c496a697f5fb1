package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/bookcovers/internal/handlers"
)

func newServeCmd() *cobra.Command {
	var (
		port         string
		visual       bool
		providerList string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the cover resolution HTTP service",
		Long: `Starts the cover resolution API on the specified port.

Routes:
  POST   /api/covers         resolve a BookQuery JSON body
  GET    /api/cache/stats    cache statistics
  DELETE /api/cache/{key}    drop one cache entry
  DELETE /api/cache          clear the cache
  GET    /metrics            Prometheus metrics
  GET    /healthcheck        liveness`,
		Example: `  # Start server on default port 8888
  bookcovers serve

  # Start server on custom port with the visual check
  bookcovers serve --port 3000 --visual`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, visual, providerList)
			if err != nil {
				return err
			}
			r, err := buildResolver(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}

			handler := handlers.New(r, slog.Default())

			// Set up routes
			mux := http.NewServeMux()
			handler.Register(mux)
			mux.Handle("GET /metrics", promhttp.Handler())
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           handlers.RequestID(mux),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Bookcovers API available", "addr", addr, "url", "http://localhost"+addr, "providers", cfg.Providers, "visual", cfg.Visual)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	addResolverFlags(cmd, &visual, &providerList)

	return cmd
}
