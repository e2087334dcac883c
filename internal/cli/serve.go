package cli

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/mechmon/internal/history"
	"github.com/kilupskalvis/mechmon/internal/server"
)

var (
	serveListen      string
	serveDataDir     string
	serveLogLevel    string
	serveLogFormat   string
	serveTLSCert     string
	serveTLSKey      string
	serveWebhookURLs string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mechmon history server",
	Long: `Run the mechmon history server.

The server stores snapshot and document metadata in bbolt and payload
blobs on the local filesystem. The bearer token is read from the
MECHMON_AUTH_TOKEN environment variable; when unset, authentication is
disabled.

Examples:
  mechmon serve
  mechmon serve --listen 0.0.0.0:8630 --data-dir /var/lib/mechmon
  mechmon serve --tls-cert server.crt --tls-key server.key`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVar(&serveListen, "listen", envOrDefault("MECHMON_LISTEN", "127.0.0.1:8630"), "Listen address (host:port)")
	f.StringVar(&serveDataDir, "data-dir", envOrDefault("MECHMON_DATA_DIR", defaultDataDir()), "Directory for history data")
	f.StringVar(&serveLogLevel, "log-level", envOrDefault("MECHMON_LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")
	f.StringVar(&serveLogFormat, "log-format", envOrDefault("MECHMON_LOG_FORMAT", "json"), "Log format (json|text)")
	f.StringVar(&serveTLSCert, "tls-cert", os.Getenv("MECHMON_TLS_CERT"), "TLS certificate file")
	f.StringVar(&serveTLSKey, "tls-key", os.Getenv("MECHMON_TLS_KEY"), "TLS key file")
	f.StringVar(&serveWebhookURLs, "webhook-urls", os.Getenv("MECHMON_WEBHOOK_URLS"), "Comma-separated webhook URLs to notify on new documents")
}

func runServe(_ *cobra.Command, _ []string) {
	logger := newServeLogger(serveLogLevel, serveLogFormat)

	if err := os.MkdirAll(serveDataDir, 0755); err != nil {
		logger.Error("failed to create data directory", "error", err, "path", serveDataDir)
		os.Exit(1)
	}

	local, err := history.NewLocal(serveDataDir)
	if err != nil {
		logger.Error("failed to open history store", "error", err, "path", serveDataDir)
		os.Exit(1)
	}
	defer local.Close()

	cfg := server.DefaultServerConfig()
	cfg.AuthToken = os.Getenv("MECHMON_AUTH_TOKEN")
	if cfg.AuthToken == "" {
		logger.Warn("MECHMON_AUTH_TOKEN not set, authentication disabled")
	}

	if serveWebhookURLs != "" {
		var trimmed []string
		for _, u := range strings.Split(serveWebhookURLs, ",") {
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

	h, handlerCleanup := server.Handler(local, cfg, logger)
	defer handlerCleanup()

	srv := &http.Server{
		Addr:              serveListen,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return context.Background() },
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting mechmon server", "listen", serveListen, "data_dir", serveDataDir)
		var err error
		if serveTLSCert != "" && serveTLSKey != "" {
			err = srv.ListenAndServeTLS(serveTLSCert, serveTLSKey)
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

// newServeLogger builds the slog logger for server mode.
func newServeLogger(levelName, format string) *slog.Logger {
	var level slog.Level
	switch levelName {
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
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// defaultDataDir returns the default server data directory (~/.mechmon-server).
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/lib/mechmon-server"
	}
	return filepath.Join(home, ".mechmon-server")
}

// envOrDefault returns the value of the environment variable key, or defaultVal if unset.
func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
