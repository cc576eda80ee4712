package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"venuehours/internal/api"
	"venuehours/internal/cache"
	"venuehours/internal/config"
	"venuehours/internal/database"
	"venuehours/internal/events"
	"venuehours/internal/hours"
	"venuehours/internal/metrics"
	"venuehours/internal/service"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Msg("failed to read .env")
	}

	cfg, err := config.Load(os.Getenv("HOURS_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid engine config")
	}
	engine := hours.New(engineCfg)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	var rdb *redis.Client
	var statusCache *cache.StatusCache
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		statusCache = cache.NewStatusCache(rdb, cfg.CacheTTL())
	}

	bus := events.NewEventBus()
	var svcCache service.StatusCache
	if statusCache != nil {
		svcCache = statusCache
	}
	svc := service.NewHoursService(db, svcCache, engine, bus, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial load + hot reload of locations configuration
	if err := config.WatchLocations(ctx, cfg.LocationsConfigPath, cfg.LocationsReloadInterval(), &logger, func(updated *config.LocationsConfig, diff config.LocationsDiff) {
		if err := db.SyncLocationsFromConfig(ctx, updated); err != nil {
			metrics.IncConfigReload(false)
			logger.Error().Err(err).Msg("failed to apply locations config")
			return
		}
		metrics.IncConfigReload(true)
		if err := bus.Publish(events.NewLocationsEvent(events.LocationsReloaded, diff.Affected()...)); err != nil {
			logger.Error().Err(err).Msg("locations reload handlers failed")
		}
		logger.Info().Time("reloaded_at", time.Now()).Int("locations", len(updated.Locations)).Str("diff", diff.String()).Msg("locations config applied")
	}); err != nil {
		logger.Error().Err(err).Msg("locations watch failed")
	}

	checks := []api.ReadinessCheck{{Name: "db", Check: db.PingContext}}
	if statusCache != nil {
		checks = append(checks, api.ReadinessCheck{Name: "redis", Check: statusCache.Ping})
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go serve(ctx, "health", cfg.Monitoring.HealthCheckPort, api.HealthHandler(checks...), &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go serve(ctx, "metrics", cfg.Monitoring.PrometheusPort, mux, &logger)
	}

	backupService := database.NewBackupService(db, cfg.Backup, &logger)
	go backupService.Start(ctx)

	if !cfg.API.Enabled {
		logger.Info().Msg("API disabled, serving health and metrics only")
		<-ctx.Done()
		return
	}

	apiServer := api.NewHTTPServer(api.Options{
		Port:      cfg.API.Port,
		APIKey:    cfg.API.APIKey,
		RateLimit: cfg.API.RateLimit,
		RateBurst: cfg.API.RateBurst,
	}, svc, &logger, checks...)

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = apiServer.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("timezone", engineCfg.Location.String()).Msg("venue hours service started")
	if err := apiServer.Start(); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
}

func serve(ctx context.Context, name string, port int, handler http.Handler, logger *zerolog.Logger) {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msgf("%s server error", name)
	}
}
