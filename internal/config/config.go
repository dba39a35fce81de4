package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Storage   StorageConfig
	Drive     DriveConfig
	Dashboard DashboardConfig
	LogLevel  string
}

type ServerConfig struct {
	Port           string
	AdminPort      string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// MaxWriters caps concurrent write transactions.
	MaxWriters int64
}

// DSN returns the connection string, preferring DATABASE_URL when set.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type CacheConfig struct {
	Enabled            bool
	RedisURL           string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	CatalogTTLSeconds  int
	CatalogSnapshotKey string
}

// StorageConfig points at the S3-compatible bucket used for catalog backups.
type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
}

type DashboardConfig struct {
	Timezone         string
	SitePrefix       string
	LocationFormat   string
	FetchLimit       int
	WriteDelayMillis int
	SessionTTLSecs   int
	MaxSessions      int
	WindowTTLSecs    int
}

// Location resolves the configured timezone, falling back to the host zone.
func (c DashboardConfig) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SessionTTL is how long an idle dashboard session is kept.
func (c DashboardConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSecs) * time.Second
}

// WindowTTL is how long a fetched order window may be reused.
func (c DashboardConfig) WindowTTL() time.Duration {
	return time.Duration(c.WindowTTLSecs) * time.Second
}

// WriteDelay is the pause between migration writes.
func (c DashboardConfig) WriteDelay() time.Duration {
	return time.Duration(c.WriteDelayMillis) * time.Millisecond
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		_ = godotenv.Load()

		setDefaults()
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				AdminPort:      viper.GetString("ADMIN_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				URL:        viper.GetString("DATABASE_URL"),
				Host:       viper.GetString("DB_HOST"),
				Port:       viper.GetString("DB_PORT"),
				User:       viper.GetString("DB_USER"),
				Password:   viper.GetString("DB_PASSWORD"),
				DBName:     viper.GetString("DB_NAME"),
				SSLMode:    viper.GetString("DB_SSLMODE"),
				MaxWriters: viper.GetInt64("DB_MAX_WRITERS"),
			},
			Cache: CacheConfig{
				Enabled:            viper.GetBool("CACHE_ENABLED"),
				RedisURL:           viper.GetString("REDIS_URL"),
				RedisHost:          viper.GetString("REDIS_HOST"),
				RedisPort:          viper.GetString("REDIS_PORT"),
				RedisPassword:      viper.GetString("REDIS_PASSWORD"),
				RedisDB:            viper.GetInt("REDIS_DB"),
				CatalogTTLSeconds:  viper.GetInt("CACHE_CATALOG_TTL_SECONDS"),
				CatalogSnapshotKey: viper.GetString("CACHE_CATALOG_KEY"),
			},
			Storage: StorageConfig{
				Enabled:   viper.GetBool("BACKUP_ENABLED"),
				Endpoint:  viper.GetString("BACKUP_ENDPOINT"),
				AccessKey: viper.GetString("BACKUP_ACCESS_KEY"),
				SecretKey: viper.GetString("BACKUP_SECRET_KEY"),
				Bucket:    viper.GetString("BACKUP_BUCKET"),
				Region:    viper.GetString("BACKUP_REGION"),
				UseSSL:    viper.GetBool("BACKUP_USE_SSL"),
				Prefix:    viper.GetString("BACKUP_PREFIX"),
			},
			Drive: DriveConfig{
				CredentialsJSON: viper.GetString("GOOGLE_CREDENTIALS_JSON"),
				FolderID:        viper.GetString("DRIVE_CATALOG_FOLDER_ID"),
			},
			Dashboard: DashboardConfig{
				Timezone:         viper.GetString("DASHBOARD_TIMEZONE"),
				SitePrefix:       viper.GetString("DASHBOARD_SITE_PREFIX"),
				LocationFormat:   viper.GetString("DASHBOARD_LOCATION_FORMAT"),
				FetchLimit:       viper.GetInt("DASHBOARD_FETCH_LIMIT"),
				WriteDelayMillis: viper.GetInt("MIGRATION_WRITE_DELAY_MS"),
				SessionTTLSecs:   viper.GetInt("DASHBOARD_SESSION_TTL_SECONDS"),
				MaxSessions:      viper.GetInt("DASHBOARD_MAX_SESSIONS"),
				WindowTTLSecs:    viper.GetInt("DASHBOARD_WINDOW_TTL_SECONDS"),
			},
			LogLevel: viper.GetString("LOG_LEVEL"),
		}
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("ADMIN_PORT", "8081")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("SERVER_READ_TIMEOUT", 15)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "opsdash")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_WRITERS", 10)

	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_CATALOG_TTL_SECONDS", 600)
	viper.SetDefault("CACHE_CATALOG_KEY", "catalog:snapshot")

	viper.SetDefault("BACKUP_ENABLED", false)
	viper.SetDefault("BACKUP_REGION", "us-east-1")
	viper.SetDefault("BACKUP_USE_SSL", true)
	viper.SetDefault("BACKUP_PREFIX", "catalog-backups")

	viper.SetDefault("DASHBOARD_TIMEZONE", "Local")
	viper.SetDefault("DASHBOARD_SITE_PREFIX", "ABB")
	viper.SetDefault("DASHBOARD_LOCATION_FORMAT", "%s - %s")
	viper.SetDefault("DASHBOARD_FETCH_LIMIT", 500)
	viper.SetDefault("DASHBOARD_SESSION_TTL_SECONDS", 1800)
	viper.SetDefault("DASHBOARD_MAX_SESSIONS", 100)
	viper.SetDefault("DASHBOARD_WINDOW_TTL_SECONDS", 60)
	viper.SetDefault("MIGRATION_WRITE_DELAY_MS", 100)

	viper.SetDefault("LOG_LEVEL", "info")
}
