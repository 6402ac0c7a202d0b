package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	pkgconfig "github.com/Skotchmaster/school_admin/pkg/config"
	"github.com/Skotchmaster/school_admin/pkg/db"
	"github.com/Skotchmaster/school_admin/pkg/logging"
	loggingmw "github.com/Skotchmaster/school_admin/pkg/middleware/logging"
	"github.com/Skotchmaster/school_admin/pkg/tokens"
	"github.com/Skotchmaster/school_admin/services/auth/internal/config"
	"github.com/Skotchmaster/school_admin/services/auth/internal/events"
	"github.com/Skotchmaster/school_admin/services/auth/internal/httpserver"
	"github.com/Skotchmaster/school_admin/services/auth/internal/metrics"
	"github.com/Skotchmaster/school_admin/services/auth/internal/middleware"
	"github.com/Skotchmaster/school_admin/services/auth/internal/repo"
	"github.com/Skotchmaster/school_admin/services/auth/internal/service"
)

func main() {
	pkgconfig.LoadDotEnv()
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	issuer, err := tokens.NewIssuer(cfg.Tokens())
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}
	verifier, err := tokens.NewVerifier(cfg.Tokens())
	if err != nil {
		log.Fatalf("token verifier: %v", err)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		cancel()
		log.Fatalf("db init error: %v", err)
	}
	gormRepo := repo.NewGormRepo(gdb, cfg.SessionPolicy)
	if err := gormRepo.Migrate(initCtx); err != nil {
		cancel()
		log.Fatalf("db migrate error: %v", err)
	}
	if cfg.BootstrapAdminUser != "" {
		if err := gormRepo.EnsureUser(initCtx, cfg.BootstrapAdminUser, cfg.BootstrapAdminPassword, repo.RoleAdmin); err != nil {
			cancel()
			log.Fatalf("bootstrap admin: %v", err)
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			cancel()
			log.Fatalf("redis url: %v", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(initCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping: %v", err)
		}
	}

	m := metrics.New()
	publisher, closePublishers := newPublisher(initCtx, cfg, logger, m)
	cancel()

	var store repo.RefreshStore
	switch cfg.Store {
	case config.StoreMemory:
		store = repo.NewMemoryStore(cfg.SessionPolicy)
	case config.StoreRedis:
		store = repo.NewRedisStore(redisClient, cfg.RedisPrefix, cfg.SessionPolicy)
	default:
		store = gormRepo
	}

	var limiter middleware.Limiter = middleware.NewMemoryLimiter()
	if redisClient != nil {
		limiter = middleware.NewRedisLimiter(redisClient)
	}

	svc := &service.AuthService{
		Issuer:        issuer,
		Verifier:      verifier,
		Store:         store,
		Directory:     gormRepo,
		Users:         gormRepo,
		Events:        publisher,
		Metrics:       m,
		RotateRefresh: cfg.RotateRefresh,
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(ecM.Recover())
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler:   &httpserver.AuthHTTP{Svc: svc},
		Authenticator: svc,
		Metrics:       m,
		LoginLimiter:  limiter,
		LoginLimit:    cfg.LoginRateLimit,
		LoginWindow:   cfg.LoginRateWindow,
		Ready:         readiness(gdb, redisClient),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Store == config.StoreGorm {
		go purgeExpired(ctx, gormRepo, cfg.PurgeInterval, logger)
	}

	go func() {
		logger.Info("auth service listening", "addr", cfg.ListenAddr, "store", cfg.Store, "policy", cfg.SessionPolicy)
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown", "error", err)
	}
	closePublishers()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db close", "error", err)
	}
}

// newPublisher fans events out to the configured sinks behind a bounded queue.
// The returned func drains the queue before closing the sinks.
func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (events.Publisher, func()) {
	var pubs events.Multi
	var closers []func()

	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		pubs = append(pubs, kp)
		closers = append(closers, func() {
			if err := kp.Close(); err != nil {
				logger.Error("kafka close", "error", err)
			}
		})
	}
	if cfg.ES.URL != "" {
		es, err := events.NewESClient(ctx, cfg.ES)
		if err != nil {
			logger.Warn("audit sink disabled", "error", err)
		} else {
			pubs = append(pubs, events.NewAuditSink(es, cfg.ES.Index))
		}
	}

	if len(pubs) == 0 {
		return events.Nop{}, func() {}
	}

	async := events.NewAsync(pubs, cfg.EventQueueSize, cfg.EventTimeout, func(ev events.SessionEvent, err error) {
		logger.Warn("event_publish_failed", "type", ev.Type, "principal_id", ev.PrincipalID, "error", err)
		m.EventFailed(ev.Type)
	})
	closeAll := func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.EventTimeout+time.Second)
		defer cancel()
		if err := async.Close(drainCtx); err != nil {
			logger.Warn("event queue not drained", "error", err)
		}
		for _, c := range closers {
			c()
		}
	}
	return async, closeAll
}

func readiness(gdb *gorm.DB, rc *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		if rc != nil {
			return rc.Ping(ctx).Err()
		}
		return nil
	}
}

func purgeExpired(ctx context.Context, r *repo.GormRepo, every time.Duration, logger *slog.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := r.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge expired refresh tokens", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired refresh tokens", "count", n)
			}
		}
	}
}
