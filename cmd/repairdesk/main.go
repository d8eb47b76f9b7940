// Command repairdesk serves the repair shop price list and its back office.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/celerix-dev/repairdesk/internal/api"
	"github.com/celerix-dev/repairdesk/internal/audit"
	"github.com/celerix-dev/repairdesk/internal/catalog"
	"github.com/celerix-dev/repairdesk/internal/config"
	"github.com/celerix-dev/repairdesk/internal/engine"
	"github.com/celerix-dev/repairdesk/internal/log"
	"github.com/celerix-dev/repairdesk/internal/metrics"
	"github.com/celerix-dev/repairdesk/internal/ratelimit"
	"github.com/celerix-dev/repairdesk/internal/session"
	"github.com/celerix-dev/repairdesk/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(log.Config{
		Level:  log.ParseLevel(cfg.LogLevel),
		Format: log.ParseFormat(cfg.LogFormat),
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("repairdesk stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	logger.Info("starting repairdesk", "addr", cfg.HTTPAddr, "tls", cfg.TLS)
	if cfg.SessionSecret == config.Defaults().SessionSecret {
		logger.Warn("using the default session secret; set REPAIRDESK_SESSION_SECRET")
	}

	store, closeStore, err := engine.Open(ctx, cfg.DatabaseURL, cfg.DataDir, logger)
	if err != nil {
		return err
	}
	defer func() {
		logger.Info("finalizing storage writes")
		if err := closeStore(); err != nil {
			logger.WithError(err).Error("closing storage failed")
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	limiter, closeLimiter := loginLimiter(ctx, cfg.RedisURL, logger)
	defer closeLimiter()

	sessions := session.NewManager([]byte(cfg.SessionSecret), cfg.SessionIssuer, cfg.SessionTTL())
	if cfg.CookieKey != "" {
		sealer, err := vault.NewSealerHex(cfg.CookieKey, "session-cookie")
		if err != nil {
			return fmt.Errorf("cookie key: %w", err)
		}
		sessions.WithSealer(sealer)
	}

	resolver := audit.NewResolver(sessions, store, logger, m)
	recorder := audit.NewRecorder(resolver, store, logger, m)

	h := &api.Handler{
		Catalog:  catalog.NewService(store, resolver, recorder, logger, m),
		Auth:     session.NewAuthenticator(store, sessions),
		Sessions: sessions,
		Resolver: resolver,
		Guard:    ratelimit.NewGuard(limiter, "login:", int64(cfg.LoginLimit), cfg.LoginWindow(), logger, m),
		Cookie: session.CookieConfig{
			Name:     cfg.CookieName,
			Secure:   cfg.CookieSecure || cfg.TLS,
			SameSite: session.ParseSameSite(cfg.CookieSameSite),
		},
		Logger:  logger,
		Metrics: m,
	}

	opts := api.RouterOptions{CORSOrigins: cfg.CORSOrigins}
	if cfg.MetricsEnabled {
		opts.Gatherer = registry
	}
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(h, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.TLS {
		logger.Info("generating self-signed certificate")
		cert, err := vault.GenerateSelfSignedCert()
		if err != nil {
			return fmt.Errorf("generate TLS certificate: %w", err)
		}
		srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLS {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Info("http server listening", "addr", cfg.HTTPAddr)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loginLimiter uses Redis when configured, otherwise a process-local
// limiter. An unreachable Redis is kept; the Guard lets attempts through
// while it is down.
func loginLimiter(ctx context.Context, redisURL string, logger *log.Logger) (ratelimit.Limiter, func()) {
	if redisURL == "" {
		return ratelimit.NewMemoryLimiter(), func() {}
	}
	rl, err := ratelimit.NewRedisLimiter(redisURL)
	if err != nil {
		logger.WithError(err).Warn("invalid redis url, using in-memory login limiter")
		return ratelimit.NewMemoryLimiter(), func() {}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rl.Ping(pingCtx); err != nil {
		logger.WithError(err).Warn("redis unreachable at startup; login attempts are not limited until it recovers")
	}
	return rl, func() { rl.Close() }
}
