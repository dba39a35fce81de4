package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/andresuchdata/opsdash/internal/cache"
	"github.com/andresuchdata/opsdash/internal/catalog"
	"github.com/andresuchdata/opsdash/internal/config"
	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/andresuchdata/opsdash/internal/drive"
	"github.com/andresuchdata/opsdash/internal/repository/postgres"
	"github.com/andresuchdata/opsdash/internal/storage"
	"github.com/andresuchdata/opsdash/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/urfave/cli/v2"
)

type dbKey struct{}

func newDBURLFlag(cfg *config.Config) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string",
		Value:   cfg.Database.DSN(),
		EnvVars: []string{"DATABASE_URL"},
	}
}

func initDB(c *cli.Context) error {
	sqlDB, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := sqlDB.PingContext(c.Context); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	db := postgres.Wrap(sqlDB, "pgx", config.Load().Database.MaxWriters)
	if err := db.EnsureSchema(c.Context); err != nil {
		return err
	}
	c.Context = context.WithValue(c.Context, dbKey{}, db)
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey{}).(*postgres.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func dbFrom(c *cli.Context) *postgres.DB {
	return c.Context.Value(dbKey{}).(*postgres.DB)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	dbCommand := func(cmd *cli.Command) *cli.Command {
		cmd.Flags = append(cmd.Flags, newDBURLFlag(cfg))
		cmd.Before = initDB
		cmd.After = closeDB
		return cmd
	}

	app := &cli.App{
		Name:  "catalog",
		Usage: "Import, normalize and verify the product catalog",
		Commands: []*cli.Command{
			dbCommand(&cli.Command{
				Name:  "import",
				Usage: "Load raw catalog records from a CSV/XLSX file or Google Drive",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "Local CSV or XLSX file"},
					&cli.StringFlag{Name: "drive-file", Usage: "Google Drive file id"},
					&cli.StringFlag{Name: "drive-folder", Usage: "Google Drive folder id", Value: cfg.Drive.FolderID},
				},
				Action: func(c *cli.Context) error { return runImport(c, cfg) },
			}),
			dbCommand(&cli.Command{
				Name:  "preview",
				Usage: "Show how records would normalize without writing",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "Preview a local file instead of the store"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of store records", Value: 50},
				},
				Action: runPreview,
			}),
			dbCommand(&cli.Command{
				Name:  "migrate",
				Usage: "Normalize every catalog record in place",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "delay", Usage: "Pause between writes", Value: cfg.Dashboard.WriteDelay()},
					&cli.BoolFlag{Name: "no-backup", Usage: "Skip the pre-migration backup"},
				},
				Action: func(c *cli.Context) error { return runMigrate(c, cfg) },
			}),
			dbCommand(&cli.Command{
				Name:   "verify",
				Usage:  "Report category distribution and attribute completeness",
				Action: runVerify,
			}),
			{
				Name:   "backups",
				Usage:  "List catalog backups in the backup bucket",
				Action: func(c *cli.Context) error { return runBackups(c, cfg) },
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("catalog command failed")
	}
}

func runImport(c *cli.Context, cfg *config.Config) error {
	repo := postgres.NewCatalogRepository(dbFrom(c))

	if path := c.String("file"); path != "" {
		records, err := parseLocalFile(path)
		if err != nil {
			return err
		}
		if err := repo.ImportRecords(c.Context, records); err != nil {
			return err
		}
		logger.Log.Info().Str("file", path).Int("count", len(records)).Msg("Catalog file imported")
		return nil
	}

	if cfg.Drive.CredentialsJSON == "" {
		return fmt.Errorf("--file is required when GOOGLE_CREDENTIALS_JSON is not set")
	}
	svc, err := drive.NewService(c.Context, cfg.Drive.CredentialsJSON)
	if err != nil {
		return err
	}
	importer := drive.NewImporter(svc, repo)

	if id := c.String("drive-file"); id != "" {
		res, err := importer.ImportFile(c.Context, id)
		if err != nil {
			return err
		}
		return printJSON(res)
	}

	results, err := importer.ImportFolder(c.Context, c.String("drive-folder"))
	if perr := printJSON(results); perr != nil {
		return perr
	}
	return err
}

func parseLocalFile(path string) ([]domain.RawProductRecord, error) {
	format, err := catalog.FormatFromName(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return catalog.ParseFile(f, format)
}

func runPreview(c *cli.Context) error {
	if path := c.String("file"); path != "" {
		records, err := parseLocalFile(path)
		if err != nil {
			return err
		}
		return printJSON(catalog.Preview(records))
	}

	job := catalog.NewJob(postgres.NewCatalogRepository(dbFrom(c)))
	report, err := job.PreviewStore(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runMigrate(c *cli.Context, cfg *config.Config) error {
	opts := []catalog.Option{catalog.WithWriteDelay(c.Duration("delay"))}

	if snapshots, err := cache.NewCatalogSnapshotCache(cfg.Cache); err != nil {
		logger.Log.Warn().Err(err).Msg("Catalog snapshot cache unavailable, it will not be invalidated")
	} else {
		opts = append(opts, catalog.WithSnapshotCache(snapshots))
	}

	if cfg.Storage.Enabled && !c.Bool("no-backup") {
		store, err := storage.NewMinioClient(cfg.Storage)
		if err != nil {
			return err
		}
		opts = append(opts, catalog.WithBackup(store, cfg.Storage.Prefix))
	}

	start := time.Now()
	result, err := catalog.NewJob(postgres.NewCatalogRepository(dbFrom(c)), opts...).Run(c.Context)
	if result != nil {
		logger.Log.Info().
			Int("success", result.SuccessCount).
			Int("errors", result.ErrorCount).
			Str("backup", result.BackupKey).
			Dur("elapsed", time.Since(start)).
			Msg("Catalog migration finished")
		if perr := printJSON(result); perr != nil {
			return perr
		}
	}
	return err
}

func runVerify(c *cli.Context) error {
	report, err := catalog.NewJob(postgres.NewCatalogRepository(dbFrom(c))).Verify(c.Context)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runBackups(c *cli.Context, cfg *config.Config) error {
	store, err := storage.NewMinioClient(cfg.Storage)
	if err != nil {
		return err
	}
	objects, err := store.ListObjects(c.Context, cfg.Storage.Prefix)
	if err != nil {
		return err
	}
	return printJSON(objects)
}
