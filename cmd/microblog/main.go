package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"microblog/internal/api"
	"microblog/internal/domain"
	"microblog/internal/observability"
	"microblog/internal/storage"
)

func main() {
	// Initialize structured logger from environment configuration
	logCfg := observability.ConfigFromEnv()
	logger := observability.NewLogger(logCfg)

	configPath := flag.String("config", os.Getenv("MICROBLOG_CONFIG"), "path to YAML config file")
	addrFlag := flag.String("addr", "", "listen address (host:port), overrides config")
	migrate := flag.String("migrate", "", "run migrations: 'up' to apply, 'status' to show status")
	seed := flag.Bool("seed", false, "insert demo users and posts, then exit")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if *addrFlag != "" {
		cfg.Addr = *addrFlag
	}

	// Initialize Sentry if DSN is provided
	sentryDSN := os.Getenv("SENTRY_DSN")
	sentryEnabled := false
	if sentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              sentryDSN,
			Environment:      envOr("SENTRY_ENVIRONMENT", "production"),
			Release:          envOr("APP_VERSION", "dev"),
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Warn("sentry initialization failed", "error", err)
		} else {
			logger.Info("sentry initialized",
				"environment", envOr("SENTRY_ENVIRONMENT", "production"),
				"release", envOr("APP_VERSION", "dev"),
			)
			sentryEnabled = true
		}
	}

	// Handle migrations CLI before starting server
	if *migrate != "" {
		runMigrationsCLI(logger, *migrate)
		return
	}

	// Select storage based on build tags and env (see store_*.go in this package).
	store := selectStore(logger)

	if *seed {
		seedDemoData(logger, store)
		_ = store.Close()
		return
	}

	// Initialize metrics
	metricsCfg := observability.MetricsConfigFromEnv()
	var metrics *observability.Metrics
	if metricsCfg.Enabled {
		metrics = observability.NewMetrics(metricsCfg)
		logger.Info("metrics enabled",
			"namespace", metricsCfg.Namespace,
			"version", metricsCfg.Version,
		)
	} else {
		logger.Info("metrics disabled")
	}

	rateCfg := api.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}
	if !rateCfg.Enabled() {
		logger.Info("rate limiting disabled")
	} else {
		logger.Info("rate limiting configured",
			"requests_per_second", rateCfg.RequestsPerSecond,
			"burst", rateCfg.Burst,
		)
	}

	// Parse trusted proxies so the limiter keys clients by the forwarded
	// address when requests arrive through one.
	if cfg.TrustedProxies != "" {
		proxyConfig, err := api.ParseTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			logger.Error("invalid trusted proxies", "error", err)
		} else {
			rateCfg.ProxyConfig = proxyConfig
			logger.Info("trusted proxies configured", "count", len(proxyConfig.CIDRs))
		}
	}

	mux := http.NewServeMux()
	srv := api.NewServer(mux, store, logger, metrics)
	srv.RegisterRoutes()

	// Apply middleware stack.
	// Order: metrics (outermost) -> requestID -> logging -> rateLimiting (innermost before handler)
	handler := api.ApplyMiddlewares(
		mux,
		observability.MetricsMiddleware(metrics),
		api.RequestIDMiddleware(),
		api.LoggingMiddleware(logger.Slog()),
		api.RateLimitMiddleware(rateCfg, logger.Slog()),
	)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("microblog listening", "addr", cfg.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	}

	logger.Info("shutting down server", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	} else {
		logger.Info("server stopped gracefully")
	}

	if err := store.Close(); err != nil {
		logger.Error("error closing store", "error", err)
	} else {
		logger.Info("store closed")
	}

	if sentryEnabled {
		logger.Info("flushing sentry events", "deadline", "2s")
		sentry.Flush(2 * time.Second)
	}

	logger.Info("shutdown complete")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// seedDemoData inserts a small set of users and posts for local development.
// It is idempotent in the sense that re-running against a store that already
// holds the demo emails just logs the conflicts and moves on.
func seedDemoData(logger observability.Logger, store storage.Store) {
	ctx := context.Background()

	alice := "Alice"
	bob := "Bob"
	users := []domain.CreateUser{
		{Email: "alice@example.com", Name: &alice},
		{Email: "bob@example.com", Name: &bob},
	}

	ids := make([]string, 0, len(users))
	for _, in := range users {
		u, err := store.CreateUser(ctx, in)
		if err != nil {
			logger.Warn("seed user skipped", "email", in.Email, "error", err)
			continue
		}
		ids = append(ids, u.ID)
		logger.Info("seed user created", "user_id", u.ID, "email", u.Email)
	}
	if len(ids) == 0 {
		return
	}

	hello := "Saying hello to everyone reading along."
	published := true
	posts := []domain.CreatePost{
		{Title: "Hello world", Content: &hello, Published: &published, AuthorID: ids[0]},
		{Title: "Draft thoughts", AuthorID: ids[0]},
	}
	if len(ids) > 1 {
		posts = append(posts, domain.CreatePost{Title: "Second author checking in", Published: &published, AuthorID: ids[1]})
	}
	for _, in := range posts {
		p, err := store.CreatePost(ctx, in)
		if err != nil {
			logger.Warn("seed post skipped", "title", in.Title, "error", err)
			continue
		}
		logger.Info("seed post created", "post_id", p.ID, "title", p.Title)
	}
}

// runMigrationsCLI executes migration commands.
func runMigrationsCLI(logger observability.Logger, cmd string) {
	switch cmd {
	case "up":
		// Initialize store (runs migrations automatically), then show status
		st := selectStore(logger)
		_ = st.Close()
		runMigrationsCLI(logger, "status")
	case "status":
		status := "migrations status not available in this build"
		dsn := os.Getenv("SQLITE_DSN")
		if dsn == "" {
			dsn = "file:microblog.db?cache=shared&_fk=1"
		}
		if s := sqliteStatus(dsn); s != "" {
			status = s
		}
		if s := postgresStatus(); s != "" {
			status = s
		}
		logger.Info("migrations status", "status", status)
	default:
		logger.Warn("unknown migrate command", "command", cmd)
	}
}
