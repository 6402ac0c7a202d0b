package config

import (
	"os"
	"time"

	pkgconfig "github.com/Skotchmaster/school_admin/pkg/config"
	"github.com/Skotchmaster/school_admin/pkg/db"
	"github.com/Skotchmaster/school_admin/pkg/tokens"
	"github.com/Skotchmaster/school_admin/services/auth/internal/events"
	"github.com/Skotchmaster/school_admin/services/auth/internal/repo"
)

const (
	StoreGorm   = "gorm"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	ListenAddr string
	LogLevel   string

	DBDriver    string
	DatabaseURL string
	SQLitePath  string

	JWTSecret     []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string

	Store         string
	SessionPolicy repo.SessionPolicy
	RotateRefresh bool
	RedisURL      string
	RedisPrefix   string
	PurgeInterval time.Duration

	KafkaBrokers []string
	KafkaTopic   string
	ES           events.ESConfig

	EventQueueSize int
	EventTimeout   time.Duration

	LoginRateLimit  int
	LoginRateWindow time.Duration

	BootstrapAdminUser     string
	BootstrapAdminPassword string
}

func Load() *Config {
	cfg := &Config{
		ListenAddr: pkgconfig.EnvDefault("AUTH_ADDR", ":8081"),
		LogLevel:   pkgconfig.EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    pkgconfig.EnvDefault("AUTH_DB_DRIVER", db.DriverPostgres),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  pkgconfig.EnvDefault("SQLITE_PATH", "auth.db"),

		JWTSecret:     pkgconfig.MustNonEmptyBytes([]byte(os.Getenv("JWT_SECRET")), "JWT_SECRET"),
		RefreshSecret: pkgconfig.MustNonEmptyBytes([]byte(os.Getenv("JWT_REFRESH_SECRET")), "JWT_REFRESH_SECRET"),
		AccessTTL:     pkgconfig.EnvDurationDefault("JWT_ACCESS_TTL", tokens.DefaultAccessTTL),
		RefreshTTL:    pkgconfig.EnvDurationDefault("JWT_REFRESH_TTL", tokens.DefaultRefreshTTL),
		Issuer:        os.Getenv("JWT_ISSUER"),

		Store:         pkgconfig.EnvDefault("AUTH_STORE", StoreGorm),
		SessionPolicy: repo.ParsePolicy(os.Getenv("AUTH_SESSION_POLICY")),
		RotateRefresh: pkgconfig.EnvBoolDefault("AUTH_ROTATE_REFRESH", false),
		RedisURL:      os.Getenv("REDIS_URL"),
		RedisPrefix:   pkgconfig.EnvDefault("REDIS_PREFIX", "auth:"),
		PurgeInterval: pkgconfig.EnvDurationDefault("AUTH_PURGE_INTERVAL", time.Hour),

		KafkaBrokers: pkgconfig.CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   pkgconfig.EnvDefault("KAFKA_TOPIC", "auth_events"),
		ES: events.ESConfig{
			URL:      os.Getenv("ES_URL"),
			User:     os.Getenv("ES_USER"),
			Password: os.Getenv("ES_PASSWORD"),
			Index:    pkgconfig.EnvDefault("ES_INDEX", "auth-audit"),
		},
		EventQueueSize: pkgconfig.EnvIntDefault("EVENT_QUEUE_SIZE", 1024),
		EventTimeout:   pkgconfig.EnvDurationDefault("EVENT_PUBLISH_TIMEOUT", 5*time.Second),

		LoginRateLimit:  pkgconfig.EnvIntDefault("LOGIN_RATE_LIMIT", 10),
		LoginRateWindow: pkgconfig.EnvDurationDefault("LOGIN_RATE_WINDOW", time.Minute),

		BootstrapAdminUser:     os.Getenv("AUTH_BOOTSTRAP_ADMIN_USER"),
		BootstrapAdminPassword: os.Getenv("AUTH_BOOTSTRAP_ADMIN_PASSWORD"),
	}
	if cfg.DBDriver == db.DriverPostgres {
		pkgconfig.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	}
	if cfg.Store == StoreRedis {
		pkgconfig.MustNonEmpty(cfg.RedisURL, "REDIS_URL")
	}
	return cfg
}

func (c *Config) Tokens() tokens.Config {
	return tokens.Config{
		AccessSecret:  c.JWTSecret,
		RefreshSecret: c.RefreshSecret,
		AccessTTL:     c.AccessTTL,
		RefreshTTL:    c.RefreshTTL,
		Issuer:        c.Issuer,
	}
}

// DSN returns what db.Open expects for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == db.DriverSQLite {
		return c.SQLitePath
	}
	return c.DatabaseURL
}
