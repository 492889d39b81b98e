// Command searchd serves documentation search over HTTP for one or more
// documentation versions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/auth"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/consumer"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	instance, _ := os.Hostname()
	if instance == "" {
		instance = "searchd"
	}
	slog.Info("starting searchd",
		"port", cfg.Server.Port,
		"instance", instance,
		"versions", len(cfg.Docs.Versions),
		"default_version", cfg.Docs.DefaultVersion,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	names := make([]string, 0, len(cfg.Docs.Versions))
	sources := make(map[string]string, len(cfg.Docs.Versions))
	for _, v := range cfg.Docs.Versions {
		names = append(names, v.Name)
		sources[v.Name] = v.Source
	}
	cat, err := catalog.New(names, cfg.Docs.DefaultVersion, m)
	if err != nil {
		slog.Error("failed to create catalog", "error", err)
		os.Exit(1)
	}

	opts, err := executor.OptionsFromConfig(cfg.Search)
	if err != nil {
		slog.Error("invalid search configuration", "error", err)
		os.Exit(1)
	}
	svc := executor.NewService(cat, opts)

	var redisClient *pkgredis.Client
	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	agg := analytics.NewAggregator()
	var broadcaster ingesthandler.Broadcaster
	var analyticsPublisher analytics.Publisher = analytics.Direct(agg)
	if cfg.Kafka.Enabled {
		analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer analyticsProducer.Close()
		analyticsPublisher = analyticsProducer

		analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
		go func() {
			if err := analyticsConsumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()

		reloadProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexReload)
		defer reloadProducer.Close()
		broadcaster = publisher.New(reloadProducer)

		// every node applies every reload, so each gets its own group
		reloadGroup := cfg.Kafka.ConsumerGroup + "-reload-" + instance
		reloads := consumer.New(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexReload,
			consumer.HandleReload(cat, sources), kafka.WithGroupID(reloadGroup)))
		go func() {
			if err := reloads.Start(ctx); err != nil {
				slog.Error("reload consumer error", "error", err)
			}
		}()
		slog.Info("kafka enabled",
			"brokers", strings.Join(cfg.Kafka.Brokers, ","),
			"reload_topic", cfg.Kafka.Topics.IndexReload,
			"analytics_topic", cfg.Kafka.Topics.AnalyticsEvents,
		)
	}

	collector := analytics.NewCollector(analyticsPublisher, 10000)
	collector.Start(ctx)
	defer collector.Close()

	cat.OnReload(func(prev, next *indexer.Snapshot) {
		if queryCache != nil {
			// keys carry the generation; this only reclaims space early
			invalidateCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if _, err := queryCache.Invalidate(invalidateCtx, prev.Version); err != nil {
				slog.Warn("cache invalidation after reload failed", "version", prev.Version, "error", err)
			}
		}
		stats := next.Index.Stats()
		collector.TrackReload(analytics.ReloadEvent{
			Version:    next.Version,
			Generation: next.Generation,
			Entries:    stats.Entries,
			Terms:      stats.Terms,
			Status:     "success",
			Source:     sources[next.Version],
			Timestamp:  time.Now(),
		})
	})

	if err := cat.LoadAll(ctx, sources); err != nil {
		slog.Warn("some versions failed to load and start empty", "error", err)
	}
	if cfg.Docs.RefreshInterval > 0 {
		cat.StartRefresh(ctx, sources, cfg.Docs.RefreshInterval)
		slog.Info("payload refresh enabled", "interval", cfg.Docs.RefreshInterval)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if ready, pending := cat.Ready(); !ready {
			return health.ComponentHealth{
				Status:  health.StatusDown,
				Message: "not loaded: " + strings.Join(pending, ","),
			}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d versions loaded", len(names))}
	})
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, true))
	}

	static := apikey.NewStatic(cfg.Auth.Keys)
	validators := apikey.Chain{static}
	dbKeys := false

	analyticsH := analytics.NewHandler(agg, collector)
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
		} else {
			defer db.Close()
			store := aggregator.NewStore(db, instance)
			if err := store.EnsureSchema(ctx); err != nil {
				slog.Error("failed to prepare analytics schema", "error", err)
			} else {
				store.StartPeriodicSave(ctx, agg, cfg.Postgres.SnapshotInterval)
				analyticsH.WithHistory(store)
				slog.Info("analytics snapshots enabled", "interval", cfg.Postgres.SnapshotInterval)
			}
			keyStore := apikey.NewStore(db)
			if err := keyStore.EnsureSchema(ctx); err != nil {
				slog.Error("failed to prepare api key schema", "error", err)
			} else {
				validators = append(validators, keyStore)
				dbKeys = true
			}
			checker.Register("postgres", health.PingCheck(db.Ping, true))
		}
	}

	searchH := handler.New(svc, cat, queryCache, collector, m, handler.Limits{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
		Timeout:      cfg.Search.Timeout,
	})
	reloadH := ingesthandler.New(cat, broadcaster, cfg.Server.MaxPayloadBytes, sources)

	admin := func(h http.HandlerFunc) http.Handler { return h }
	if cfg.Auth.Enabled {
		if static.Len() == 0 && !dbKeys {
			slog.Warn("admin auth enabled but no api keys are available; admin endpoints will reject every request")
		}
		keyLimiter := middleware.NewLimiter(cfg.Auth.KeyRateLimit, cfg.RateLimit.Window)
		go sweepLimiter(ctx, keyLimiter, cfg.RateLimit.Window)
		requireKey := auth.Require(validators, auth.Limits{
			Limiter:      keyLimiter,
			DefaultLimit: cfg.Auth.KeyRateLimit,
		})
		admin = func(h http.HandlerFunc) http.Handler { return requireKey(h) }
		slog.Info("admin auth enabled", "static_keys", static.Len(), "database_keys", dbKeys)
	} else {
		slog.Warn("admin auth disabled; reload and cache invalidation are open to every client")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", searchH.Search)
	mux.HandleFunc("GET /api/v1/search/pages", searchH.Pages)
	mux.HandleFunc("GET /api/v1/index/stats", searchH.IndexStats)
	mux.Handle("POST /api/v1/index/reload", admin(reloadH.Reload))
	mux.HandleFunc("GET /api/v1/versions", searchH.Versions)
	mux.HandleFunc("GET /api/v1/cache/stats", searchH.CacheStats)
	mux.Handle("POST /api/v1/cache/invalidate", admin(searchH.CacheInvalidate))
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", analyticsH.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	if cfg.Tracing.Enabled {
		chain = tracing.Middleware(cfg.Tracing.SampleRate)(chain)
	}
	if cfg.RateLimit.Enabled {
		trusted, err := middleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
		if err != nil {
			slog.Error("invalid trusted proxies", "error", err)
			os.Exit(1)
		}
		limiter := middleware.NewLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		chain = middleware.RateLimit(limiter, trusted)(chain)
		go sweepLimiter(ctx, limiter, cfg.RateLimit.Window)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ListenAndServe returns as soon as Shutdown starts; handlers may still
	// be tracking analytics until shutdownDone closes.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("searchd listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	cat.Wait()
	slog.Info("searchd stopped")
}

func sweepLimiter(ctx context.Context, l *middleware.Limiter, window time.Duration) {
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				slog.Debug("rate limiter swept", "clients", n)
			}
		}
	}
}
