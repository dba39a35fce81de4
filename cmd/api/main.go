package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/andresuchdata/opsdash/internal/cache"
	"github.com/andresuchdata/opsdash/internal/catalog"
	"github.com/andresuchdata/opsdash/internal/config"
	"github.com/andresuchdata/opsdash/internal/drive"
	"github.com/andresuchdata/opsdash/internal/repository/postgres"
	"github.com/andresuchdata/opsdash/internal/storage"
	"github.com/andresuchdata/opsdash/pkg/logger"
	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	ctx := context.Background()

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to prepare schema")
	}

	repo := postgres.NewCatalogRepository(db)
	opts := []catalog.Option{catalog.WithWriteDelay(cfg.Dashboard.WriteDelay())}

	if snapshots, err := cache.NewCatalogSnapshotCache(cfg.Cache); err != nil {
		logger.Log.Warn().Err(err).Msg("Catalog snapshot cache unavailable")
	} else {
		opts = append(opts, catalog.WithSnapshotCache(snapshots))
	}

	if cfg.Storage.Enabled {
		store, err := storage.NewMinioClient(cfg.Storage)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize backup storage")
		}
		opts = append(opts, catalog.WithBackup(store, cfg.Storage.Prefix))
	}

	r := mux.NewRouter()
	catalog.NewHandler(catalog.NewJob(repo, opts...), repo).RegisterRoutes(r)

	if cfg.Drive.CredentialsJSON != "" {
		driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize Google Drive service")
		}
		drive.NewHandler(driveService, drive.NewImporter(driveService, repo), cfg.Drive.FolderID).RegisterRoutes(r)
	} else {
		logger.Log.Info().Msg("Google Drive credentials not set, drive routes disabled")
	}

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	addr := fmt.Sprintf(":%s", cfg.Server.AdminPort)
	logger.Log.Info().Str("addr", addr).Msg("Catalog admin server starting")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Log.Fatal().Err(err).Msg("Catalog admin server stopped")
	}
}
