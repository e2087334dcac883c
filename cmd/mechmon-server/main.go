// Command mechmon-server runs the mechmon history server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kilupskalvis/mechmon/internal/history"
	"github.com/kilupskalvis/mechmon/internal/server"
)

func main() {
	listen := flag.String("listen", envOrDefault("MECHMON_LISTEN", "0.0.0.0:8630"), "Listen address")
	dataDir := flag.String("data-dir", envOrDefault("MECHMON_DATA_DIR", "/var/lib/mechmon-server"), "Data directory")
	authToken := flag.String("auth-token", os.Getenv("MECHMON_AUTH_TOKEN"), "Bearer token for API access (empty disables auth)")
	logLevel := flag.String("log-level", envOrDefault("MECHMON_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", envOrDefault("MECHMON_LOG_FORMAT", "json"), "Log format (json, text)")
	tlsCert := flag.String("tls-cert", os.Getenv("MECHMON_TLS_CERT"), "TLS certificate file")
	tlsKey := flag.String("tls-key", os.Getenv("MECHMON_TLS_KEY"), "TLS key file")
	webhookURLs := flag.String("webhook-urls", os.Getenv("MECHMON_WEBHOOK_URLS"), "Comma-separated webhook URLs to notify on new documents")
	flag.Parse()

	// Setup logger
	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if *logFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	// Validate data dir
	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		logger.Error("failed to create data directory", "error", err, "path", *dataDir)
		os.Exit(1)
	}

	// History store
	local, err := history.NewLocal(*dataDir)
	if err != nil {
		logger.Error("failed to open history store", "error", err, "path", *dataDir)
		os.Exit(1)
	}
	defer local.Close()

	// Server config
	cfg := server.DefaultServerConfig()
	cfg.AuthToken = *authToken
	if cfg.AuthToken == "" {
		logger.Warn("no auth token configured, authentication disabled")
	}

	// Webhooks
	if *webhookURLs != "" {
		urls := strings.Split(*webhookURLs, ",")
		var trimmed []string
		for _, u := range urls {
			u = strings.TrimSpace(u)
			if u != "" {
				trimmed = append(trimmed, u)
			}
		}
		if len(trimmed) > 0 {
			cfg.Webhooks = server.NewWebhookNotifier(&server.WebhookConfig{URLs: trimmed}, logger)
			logger.Info("webhooks configured", "count", len(trimmed))
		}
	}

	// Handler
	h, handlerCleanup := server.Handler(local, cfg, logger)
	defer handlerCleanup()

	// HTTP server
	srv := &http.Server{
		Addr:              *listen,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return context.Background() },
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting mechmon-server", "listen", *listen, "data_dir", *dataDir)
		var err error
		if *tlsCert != "" && *tlsKey != "" {
			err = srv.ListenAndServeTLS(*tlsCert, *tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
