// Command server starts the StreamGate API HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"streamgate/internal/api"
	"streamgate/internal/auth"
	"streamgate/internal/config"
	"streamgate/internal/observability/logging"
	"streamgate/internal/server"
	"streamgate/internal/serverutil"
	"streamgate/internal/storage"
)

const sweepInterval = 5 * time.Minute

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	dataPath := flag.String("data", "", "path to JSON datastore")
	storageDriver := flag.String("storage-driver", "", "datastore driver (json or postgres)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	mode := flag.String("mode", "", "server runtime mode (development or production)")
	publicBaseURL := flag.String("public-base-url", "", "base URL used when building stream links")
	cookieName := flag.String("cookie-name", "", "session cookie name")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	sessionTTL := flag.Duration("session-ttl", 0, "admin session token lifetime")
	capabilityTTL := flag.Duration("capability-ttl", 0, "stream capability token lifetime")
	rateWindow := flag.Duration("rate-window", 0, "fixed window for endpoint rate limits")
	streamMax := flag.Int("rate-stream-max", 0, "stream requests allowed per window for a single IP")
	viewMax := flag.Int("rate-view-max", 0, "view events allowed per window for a single IP")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	redisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed rate limiting")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Load()
	cfg.Addr = firstNonEmpty(*addr, cfg.Addr)
	cfg.Mode = modeValue(*mode, cfg.Mode)
	cfg.LogLevel = firstNonEmpty(*logLevel, cfg.LogLevel)
	cfg.PublicBaseURL = firstNonEmpty(*publicBaseURL, cfg.PublicBaseURL)
	cfg.CookieName = firstNonEmpty(*cookieName, cfg.CookieName)
	cfg.DataPath = firstNonEmpty(*dataPath, cfg.DataPath)
	cfg.PostgresDSN = firstNonEmpty(*postgresDSN, cfg.PostgresDSN)
	cfg.TLSCertFile = firstNonEmpty(*tlsCert, cfg.TLSCertFile)
	cfg.TLSKeyFile = firstNonEmpty(*tlsKey, cfg.TLSKeyFile)
	cfg.StorageDriver = resolveStorageDriver(*storageDriver, cfg.StorageDriver, cfg.PostgresDSN)
	if *sessionTTL > 0 {
		cfg.SessionTTL = *sessionTTL
	}
	if *capabilityTTL > 0 {
		cfg.CapabilityTTL = *capabilityTTL
	}
	if *rateWindow > 0 {
		cfg.RateWindow = *rateWindow
	}
	if *streamMax > 0 {
		cfg.StreamMax = *streamMax
	}
	if *viewMax > 0 {
		cfg.ViewMax = *viewMax
	}
	if *globalRPS > 0 {
		cfg.GlobalRPS = *globalRPS
	}
	if *globalBurst > 0 {
		cfg.GlobalBurst = *globalBurst
	}
	cfg.RedisAddr = firstNonEmpty(*redisAddr, cfg.RedisAddr)
	if cfg.Addr == "" {
		cfg.Addr = defaultListenForMode(cfg.Mode)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel})

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var tokenOpts []auth.TokenOption
	if cfg.SessionTTL > 0 {
		tokenOpts = append(tokenOpts, auth.WithSessionTTL(cfg.SessionTTL))
	}
	if cfg.CapabilityTTL > 0 {
		tokenOpts = append(tokenOpts, auth.WithCapabilityTTL(cfg.CapabilityTTL))
	}
	tokens, err := auth.NewTokenService(cfg.SessionSecret, cfg.CapabilitySecret, tokenOpts...)
	if err != nil {
		logger.Error("failed to configure token service", "error", err)
		os.Exit(1)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := openStore(startupCtx, cfg)
	cancelStartup()
	if err != nil {
		logger.Error("failed to open datastore", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(store, tokens, cfg.CookieName)
	handler.Logger = logging.WithComponent(logger, "api")
	handler.PublicBaseURL = cfg.PublicBaseURL
	if cfg.CookieMaxAge > 0 {
		handler.CookieMaxAge = cfg.CookieMaxAge
	}
	if cfg.Mode == "production" {
		handler.CookiePolicy.SecureMode = api.SessionCookieSecureAlways
	}

	srv, err := server.New(handler, server.Config{
		Addr: cfg.Addr,
		TLS:  server.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile},
		RateLimit: server.RateLimitConfig{
			Window:        cfg.RateWindow,
			StreamMax:     cfg.StreamMax,
			ViewMax:       cfg.ViewMax,
			GlobalRPS:     cfg.GlobalRPS,
			GlobalBurst:   cfg.GlobalBurst,
			RedisAddr:     cfg.RedisAddr,
			RedisUsername: cfg.RedisUsername,
			RedisPassword: cfg.RedisPassword,
			RedisTimeout:  cfg.RedisTimeout,
		},
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweepStop := startWindowSweepWorker(ctx, logging.WithComponent(logger, "rate-sweeper"), srv, sweepInterval)
	defer sweepStop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("StreamGate API listening", "addr", cfg.Addr, "mode", cfg.Mode)
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			logger.Info("TLS enabled", "cert_file", cfg.TLSCertFile)
		}
		logger.Info("metrics endpoint available", "path", "/metrics")
		return serverutil.Run(groupCtx, serverutil.Config{Server: srv})
	})

	if err := group.Wait(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
	}

	sweepStop()

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if closer, ok := store.(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(closeCtx); err != nil {
			logger.Warn("failed to close datastore", "error", err)
		}
	} else if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("failed to close datastore", "error", err)
		}
	}

	logger.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.Config) (storage.Repository, error) {
	switch cfg.StorageDriver {
	case "", "json":
		return storage.NewJSONRepository(resolveDataPath(cfg.DataPath))
	case "postgres":
		return storage.NewPostgresRepository(ctx, storage.PostgresConfig{
			DSN:             cfg.PostgresDSN,
			ApplicationName: "streamgate",
		})
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func resolveStorageDriver(flagValue, envValue, postgresDSN string) string {
	if driver := strings.ToLower(strings.TrimSpace(flagValue)); driver != "" {
		return driver
	}
	if driver := strings.ToLower(strings.TrimSpace(envValue)); driver != "" {
		return driver
	}
	if strings.TrimSpace(postgresDSN) != "" {
		return "postgres"
	}
	return "json"
}

func resolveDataPath(value string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return "data/store.json"
}

func modeValue(flagMode, envMode string) string {
	mode := strings.ToLower(strings.TrimSpace(flagMode))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(envMode))
	}
	if mode == "" {
		mode = "development"
	}
	return mode
}

func defaultListenForMode(mode string) string {
	if mode == "production" {
		return ":80"
	}
	return ":8080"
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
