// -----------------------------------------------------------------------------
// Application Composition Root
// -----------------------------------------------------------------------------
// Bağımlılıklar tek bir yerde, açık constructor çağrılarıyla kurulur:
//
//	config → logger → DB → Redis (gerekirse) → cache → event bus →
//	repository → row cache → servis
//
// Close, kurulumun tersine kaynakları bırakır.
// -----------------------------------------------------------------------------

package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/biyonik/orgtree-api/internal/config"
	"github.com/biyonik/orgtree-api/internal/migrations"
	"github.com/biyonik/orgtree-api/internal/repositories"
	"github.com/biyonik/orgtree-api/internal/rowcache"
	"github.com/biyonik/orgtree-api/internal/rowmodel"
	"github.com/biyonik/orgtree-api/internal/services"
	"github.com/biyonik/orgtree-api/pkg/cache"
	"github.com/biyonik/orgtree-api/pkg/database"
	"github.com/biyonik/orgtree-api/pkg/database/migration"
	"github.com/biyonik/orgtree-api/pkg/events"
	"github.com/biyonik/orgtree-api/pkg/metrics"
)

// App, kurulmuş uygulama bileşenleridir.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	DB      *sql.DB
	Grammar database.Grammar
	Redis   *redis.Client
	Cache   cache.Cache
	Bus     events.Bus
	Metrics *metrics.Metrics

	Departments       *repositories.DepartmentRepository
	DepartmentService *services.DepartmentService

	dispatcher *events.Dispatcher
	bridge     *events.RedisBridge
}

// New, yapılandırmaya göre uygulamayı kurar. Hata durumunda o ana kadar
// açılan kaynaklar kapatılır.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Grammar, err = database.GrammarFor(cfg.DB.Driver)
	if err != nil {
		return nil, err
	}
	a.DB, err = database.Connect(ctx, database.Config{
		Driver:          cfg.DB.Driver,
		DSN:             cfg.DB.DSN,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("veritabanına bağlanılamadı: %w", err)
	}

	if cfg.Cache.Driver == cache.DriverRedis || cfg.Events.Driver == config.EventsRedis {
		rc := database.DefaultRedisConfig()
		rc.Host = cfg.Redis.Host
		rc.Port = cfg.Redis.Port
		rc.Password = cfg.Redis.Password
		rc.DB = cfg.Redis.DB
		a.Redis, err = database.NewRedisClient(ctx, rc, logger)
		if err != nil {
			return nil, err
		}
	}

	var client redis.UniversalClient
	if a.Redis != nil {
		client = a.Redis
	}
	a.Cache, err = cache.New(cache.Options{
		Driver:     cfg.Cache.Driver,
		Prefix:     cfg.Cache.Prefix,
		DefaultTTL: cfg.RowCache.TTL,
	}, client, logger)
	if err != nil {
		return nil, err
	}

	a.dispatcher = events.NewDispatcher(logger)
	a.Bus = a.dispatcher
	if cfg.Events.Driver == config.EventsRedis {
		a.bridge = events.NewRedisBridge(a.Redis, cfg.Events.Channel, a.dispatcher, logger)
		if err := a.bridge.Start(ctx); err != nil {
			return nil, err
		}
		a.Bus = a.bridge
	}

	a.Departments = repositories.NewDepartmentRepository(a.DB, a.Grammar, a.Bus, logger, repositories.Options{
		OrderInterval: cfg.Hierarchy.OrderInterval,
	})
	a.DepartmentService = services.NewDepartmentService(a.Departments, a.Cache, a.Bus, a.Metrics, logger, services.DepartmentServiceOptions{
		Compiler: rowmodel.Options{MaxPageSize: cfg.Grid.MaxPageSize},
		Cache:    rowcache.Options{Enabled: cfg.RowCache.Enabled, TTL: cfg.RowCache.TTL},
	})

	logger.Info().
		Str("db", cfg.DB.Driver).
		Str("cache", cfg.Cache.Driver).
		Str("events", cfg.Events.Driver).
		Msg("uygulama hazır")
	return a, nil
}

// Migrate, bekleyen şema migration'larını uygular.
func (a *App) Migrate(ctx context.Context) error {
	mg, err := migration.GrammarFor(a.Config.DB.Driver)
	if err != nil {
		return err
	}
	return migration.NewMigrator(a.DB, mg, a.Logger).Run(ctx, migrations.All())
}

// RebuildAncestry, departman closure tablosunu parentId kolonundan yeniden
// kurar ve önbelleği temizler.
func (a *App) RebuildAncestry(ctx context.Context) (int, error) {
	written, err := a.Departments.RebuildAncestry(ctx)
	if err != nil {
		return 0, err
	}
	if err := a.Cache.Flush(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("önbellek temizlenemedi")
	}
	return written, nil
}

// dispatcherShutdownTimeout, Close'un uzak event'leri bekleyeceği süredir.
const dispatcherShutdownTimeout = 5 * time.Second

// Close, kaynakları kurulumun tersine bırakır.
func (a *App) Close() error {
	var errs []error
	if a.bridge != nil {
		errs = append(errs, a.bridge.Close())
	}
	if a.dispatcher != nil {
		errs = append(errs, a.dispatcher.ShutdownWithTimeout(dispatcherShutdownTimeout))
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
