package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetwise/internal/advisor"
	"budgetwise/internal/amqp"
	"budgetwise/internal/auth"
	"budgetwise/internal/cache"
	"budgetwise/internal/cli"
	"budgetwise/internal/config"
	"budgetwise/internal/core"
	apphttp "budgetwise/internal/http"
	"budgetwise/internal/log"
	"budgetwise/internal/middleware/ratelimit"
	"budgetwise/internal/middleware/security"
	"budgetwise/internal/services"
	"budgetwise/internal/stream"
)

func main() {
	cfg, logger := cli.Bootstrap(cli.RoleServer)
	ctx := context.Background()

	be := cli.OpenStore(ctx, cfg, logger)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Store cleanup failed", log.FieldError, err)
		}
	}()

	prefCache := cache.NewLRUCache[core.UserPreferences]("preferences", cfg.CacheSize, cfg.CacheTTL)
	dashCache := cache.NewLRUCache[services.Dashboard]("dashboard", cfg.CacheSize, cfg.CacheTTL)
	caches := cache.NewManager(logger)
	caches.Register("preferences", prefCache)
	caches.Register("dashboard", dashCache)

	hub := stream.NewHub(logger)

	// Keep events a nil interface when AMQP is off.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		events = client
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, transaction events will not be exported")
	}

	prefs := services.NewPreferencesService(be.Store, prefCache, logger)
	dashboard := services.NewDashboardService(be.Store, prefs, dashCache, logger)
	prefs.WithInvalidator(dashboard)
	txs := services.NewTransactionService(be.Store, events, hub, dashboard, logger)

	authn, err := auth.New(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		logger.Error("Failed to initialize authentication", log.FieldError, err)
		os.Exit(1)
	}

	limiter := newLimiter(ctx, cfg, logger)
	if m, ok := limiter.(*ratelimit.Memory); ok {
		defer m.Stop()
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Transactions:  txs,
		Preferences:   prefs,
		Dashboard:     dashboard,
		Advisor:       newAdvisor(cfg, logger),
		Auth:          authn,
		Hub:           hub,
		Limiter:       limiter,
		RateWindow:    cfg.RateLimitWindow,
		Detector:      security.NewDetector(cfg.BlockSuspicious, logger),
		Ready:         be.Store.Ping,
		AllowedOrigin: cfg.AllowedOrigin,
		Logger:        logger,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	shutdownCtx, done := cli.GracefulShutdown(runCtx, logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		// Close streams first: Shutdown does not wait for hijacked connections.
		hub.Close()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	caches.StartCleanup(shutdownCtx, time.Minute)
	defer caches.Stop()

	g, gctx := errgroup.WithContext(shutdownCtx)
	g.Go(func() error {
		logger.Info("Starting budgetwise server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"advisor", cfg.AdvisorProvider,
			"rate_limiter", limiter.Backend())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		cancel()
		<-done
		os.Exit(1)
	}
	<-done
	logger.Info("Server stopped gracefully")
}

// newAdvisor returns nil when no provider is configured.
func newAdvisor(cfg *config.Config, logger *log.Logger) *advisor.Service {
	var s advisor.Suggester
	switch cfg.AdvisorProvider {
	case "openai":
		s = advisor.NewOpenAI(advisor.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.AdvisorTimeout,
		})
	case "ollama":
		s = advisor.NewOllama(advisor.OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaModel,
			Timeout: cfg.AdvisorTimeout,
		}, nil)
	default:
		logger.Info("Budget advisor disabled")
		return nil
	}
	return advisor.NewService(s, logger)
}

// newLimiter prefers Redis when configured and reachable, so limits hold
// across replicas, and falls back to the in-process limiter.
func newLimiter(ctx context.Context, cfg *config.Config, logger *log.Logger) ratelimit.Limiter {
	rc := ratelimit.Config{Limit: cfg.RateLimit, Window: cfg.RateLimitWindow}
	if cfg.RedisURL != "" {
		client, err := ratelimit.DialRedis(ctx, cfg.RedisURL)
		if err == nil {
			return ratelimit.NewRedis(client, rc)
		}
		logger.Warn("Redis unavailable, using in-memory rate limiter", log.FieldError, err)
	}
	return ratelimit.NewMemory(rc)
}
