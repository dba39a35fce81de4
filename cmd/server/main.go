package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/opsdash/internal/api"
	"github.com/andresuchdata/opsdash/internal/cache"
	"github.com/andresuchdata/opsdash/internal/catalog"
	"github.com/andresuchdata/opsdash/internal/config"
	"github.com/andresuchdata/opsdash/internal/orders"
	"github.com/andresuchdata/opsdash/internal/repository/postgres"
	"github.com/andresuchdata/opsdash/internal/service"
	"github.com/andresuchdata/opsdash/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	logger.SetLevel(cfg.LogLevel)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	snapshots, err := cache.NewCatalogSnapshotCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Catalog snapshot cache unavailable, reading the store directly")
		snapshots = cache.NewNoopCatalogSnapshotCache()
	}

	orderRepo := postgres.NewOrderRepository(db)
	loader := catalog.NewLoader(postgres.NewCatalogRepository(db), snapshots)
	fetcher := orders.NewFetcher(orderRepo, orders.FetcherConfigFrom(cfg.Dashboard))
	aggregator := orders.NewAggregator(fetcher, cfg.Dashboard.Location())

	router := api.NewRouter(&api.Services{
		ShipmentService: service.NewShipmentService(loader, aggregator, orderRepo,
			service.WithSessionTTL(cfg.Dashboard.SessionTTL()),
			service.WithMaxSessions(cfg.Dashboard.MaxSessions),
			service.WithWindowTTL(cfg.Dashboard.WindowTTL()),
		),
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Str("timezone", aggregator.Location().String()).Msg("Starting dashboard server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	logger.Log.Info().Msg("Server exiting")
}
