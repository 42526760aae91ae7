package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/config"
	"github.com/MeKo-Tech/mathocr/internal/server"
	"github.com/MeKo-Tech/mathocr/internal/version"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service with the upload page",
	Long: `Start an HTTP server for expression detection.

Endpoints:
  GET  /             Upload page
  POST /detectar     Process an uploaded image (multipart field "file")
  GET  /ws/detectar  WebSocket, one binary image per message
  GET  /debug/...    Debug artifacts
  GET  /health       Health check
  GET  /metrics      Prometheus metrics

Examples:
  mathocr serve
  mathocr serve --host 0.0.0.0 --port 3000
  mathocr serve --backend tesseract --workers 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		return runServer(cmd.Context(), cfg)
	},
}

func runServer(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	p, pool, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	ocrServer, err := server.NewServer(server.Config{
		CORSOrigin:     cfg.Server.CORSOrigin,
		MaxUploadMB:    cfg.Server.MaxUploadMB,
		Timeout:        cfg.ServerTimeout(),
		DebugRoot:      cfg.DebugRoot(),
		DebugURLPrefix: cfg.Debug.URLPrefix,
		EngineName:     pool.Name(),
		Version:        version.Version,
		RateLimit: server.RateLimitConfig{
			Enabled:           cfg.Server.RateLimit.Enabled,
			RequestsPerMinute: cfg.Server.RateLimit.RequestsPerMinute,
			RequestsPerHour:   cfg.Server.RateLimit.RequestsPerHour,
			MaxRequestsPerDay: cfg.Server.RateLimit.MaxRequestsPerDay,
			MaxDataPerDay:     cfg.Server.RateLimit.MaxDataPerDayMB * 1024 * 1024,
		},
	}, p)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           ocrServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ServerTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting mathocr server", "addr", addr, "engine", pool.Name(), "workers", pool.Workers())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	slog.Info("Starting graceful shutdown", "timeout", cfg.ShutdownTimeout())
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	slog.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origin")
	serveCmd.Flags().Int64("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Bool("include-detections", false, "add per-detection details to responses")
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")

	bindFlag(serveCmd, "server.host", "host")
	bindFlag(serveCmd, "server.port", "port")
	bindFlag(serveCmd, "server.cors_origin", "cors-origin")
	bindFlag(serveCmd, "server.max_upload_mb", "max-upload-size")
	bindFlag(serveCmd, "server.timeout_sec", "timeout")
	bindFlag(serveCmd, "server.shutdown_timeout_sec", "shutdown-timeout")
	bindFlag(serveCmd, "server.include_detections", "include-detections")
	bindFlag(serveCmd, "server.rate_limit.enabled", "rate-limit-enabled")
	bindFlag(serveCmd, "server.rate_limit.requests_per_minute", "requests-per-minute")
	bindFlag(serveCmd, "server.rate_limit.requests_per_hour", "requests-per-hour")
}
