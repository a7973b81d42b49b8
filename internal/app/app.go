package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/nekogallery/internal/config"
	"github.com/MrSnakeDoc/nekogallery/internal/gallery"
	"github.com/MrSnakeDoc/nekogallery/internal/history"
	"github.com/MrSnakeDoc/nekogallery/internal/httpserver"
	"github.com/MrSnakeDoc/nekogallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/nekogallery/internal/imageinfo"
	"github.com/MrSnakeDoc/nekogallery/internal/logger"
	"github.com/MrSnakeDoc/nekogallery/internal/metrics"
	"github.com/MrSnakeDoc/nekogallery/internal/redis"
	"github.com/MrSnakeDoc/nekogallery/internal/scheduler"
	"github.com/MrSnakeDoc/nekogallery/internal/sources/upstream"
	"github.com/MrSnakeDoc/nekogallery/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/nekogallery/internal/store/redis"
	"github.com/MrSnakeDoc/nekogallery/internal/store/sqlite"
	"github.com/MrSnakeDoc/nekogallery/internal/utils"
	"github.com/MrSnakeDoc/nekogallery/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	db          *sqlite.DB
	redisClient *goredis.Client
	prefetcher  *scheduler.Prefetcher
	backfill    *scheduler.DimensionBackfill
}

func New() (*App, error) {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return nil, err
	}

	// The catalogue is required - fail fast if it cannot be opened
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	seeded, err := db.PopulateCategories(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to seed categories: %w", err)
	}
	loggerClient.Info("catalog ready",
		logger.String("path", cfg.DBPath),
		logger.Int("categories_seeded", seeded))

	sources, err := upstream.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load upstream sources: %w", err)
	}
	for _, src := range sources.Sources() {
		loggerClient.Info("upstream enabled",
			logger.String("source", string(src.Name())),
			logger.Int("categories", len(src.Categories())))
	}

	upstreamClient := &http.Client{Timeout: cfg.UpstreamTimeout}
	loop := gallery.NewLoop(sources, loggerClient,
		gallery.WithPageSize(cfg.PageSize),
		gallery.WithHTTPClient(upstreamClient),
		gallery.WithMetrics(m),
	)
	feed := gallery.New(loop, loggerClient,
		gallery.WithFeedLimit(cfg.FeedLimit),
		gallery.WithPageHook(scheduler.PersistPage(db, loggerClient)),
		gallery.WithGalleryMetrics(m),
	)

	var (
		backend     history.Backend
		redisClient *goredis.Client
		redisPinger deps.Pinger
	)
	switch cfg.HistoryBackend {
	case config.HistoryRedis:
		redisClient, err = redis.Connect(context.Background(), redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		store := redisstore.NewStore(redisClient)
		backend = redisstore.NewHistoryBackend(store)
		redisPinger = store
	case config.HistoryMemory:
		backend = memory.NewHistoryBackend()
	default:
		backend = sqlite.NewHistoryBackend(db)
	}
	loggerClient.Info("history backend selected",
		logger.String("backend", cfg.HistoryBackend),
		logger.Int("max", cfg.HistoryMax))

	historyStore := history.NewStore(backend, loggerClient,
		history.WithMax(cfg.HistoryMax),
		history.WithMetrics(m),
	)

	// Create manual prefetch trigger channel
	refreshTrigger := make(chan struct{}, 1)

	prefetcher := scheduler.NewPrefetcher(
		feed,
		loop,
		db,
		loggerClient,
		cfg.PrefetchInterval,
		cfg.OpportunisticSize,
		refreshTrigger,
	)

	backfill := scheduler.NewDimensionBackfill(
		db,
		imageinfo.NewInspector(&http.Client{Timeout: 30 * time.Second}),
		loggerClient,
		cfg.BackfillInterval,
		cfg.BackfillWorkers,
		cfg.BackfillBatch,
	)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		CORSOrigins:    cfg.CORSOrigins,
		TrustProxy:     cfg.TrustProxy,
		RequestTimeout: cfg.RequestTimeout,
		Registry:       sources,
		Loop:           loop,
		Gallery:        feed,
		History:        historyStore,
		HistoryBackend: cfg.HistoryBackend,
		Redis:          redisPinger,
		Catalog:        db,
		Prefetcher:     prefetcher,
		CategoryCache:  cache.New(10*time.Minute, 20*time.Minute),
		Metrics:        m,
		DownloadClient: &http.Client{Timeout: cfg.RequestTimeout},
		DownloadBurst:  cfg.DownloadBurst,
		DownloadPerMin: cfg.DownloadPerMin,
		RefreshTrigger: refreshTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		db:          db,
		redisClient: redisClient,
		prefetcher:  prefetcher,
		backfill:    backfill,
	}, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting gallery on %s", a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start prefetcher (fills the feed and refreshes it periodically)
	if err := a.prefetcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start prefetcher: %w", err)
	}
	a.logger.Info("prefetcher started",
		logger.Duration("interval", a.cfg.PrefetchInterval))

	// Start dimension backfill
	if err := a.backfill.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dimension backfill: %w", err)
	}
	a.logger.Info("dimension backfill started",
		logger.Duration("interval", a.cfg.BackfillInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	a.prefetcher.Stop()
	a.backfill.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, "redis", a.logger)
	}
	utils.CloseLogged(a.db, "catalog", a.logger)

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ gallery stopped cleanly")
	_ = a.logger.Sync()
	return nil
}
