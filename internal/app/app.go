// app собирает blog-api из конфигурации: хранилища, кэш, лимитер, сервис и роутер.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/pribylovaa/go-blog/internal/cache"
	"github.com/pribylovaa/go-blog/internal/config"
	bloghttp "github.com/pribylovaa/go-blog/internal/http"
	"github.com/pribylovaa/go-blog/internal/http/middleware"
	"github.com/pribylovaa/go-blog/internal/migrate"
	"github.com/pribylovaa/go-blog/internal/ratelimit"
	"github.com/pribylovaa/go-blog/internal/service"
	"github.com/pribylovaa/go-blog/internal/storage"
	"github.com/pribylovaa/go-blog/internal/storage/minio"
	"github.com/pribylovaa/go-blog/internal/storage/mongo"
	"github.com/pribylovaa/go-blog/internal/storage/postgres"
)

const (
	redisCachePrefix   = "blog:refresh:"
	redisLimiterPrefix = "blog:rl:"

	// connectTimeout — суммарное время попыток подключиться к Postgres при старте.
	connectTimeout = 30 * time.Second
)

// App — собранное приложение.
type App struct {
	Service *service.Service
	Handler http.Handler

	cfg     *config.Config
	log     *slog.Logger
	pg      *postgres.Storage
	mongo   *mongo.Mongo
	rdb     *redis.Client
	memory  *ratelimit.Memory
	closers []func(context.Context) error
}

// New подключает зависимости и собирает роутер. reg — реестр метрик (nil — без метрик).
// При ошибке уже открытые соединения закрываются.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, reg prometheus.Registerer) (_ *App, err error) {
	const op = "app.New"

	a := &App{cfg: cfg, log: log}

	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if cfg.DB.Migrate {
		version, err := migrate.Up(ctx, cfg.DB.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("migrations_applied", slog.Int64("version", version))
	}

	if err := a.connectPostgres(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Остальные бэкенды независимы: подключаем параллельно.
	var media storage.MediaStorage

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Comments.Backend == "mongo" {
		g.Go(func() error {
			m, err := mongo.New(gctx, cfg.Comments.MongoURL)
			if err != nil {
				return err
			}
			a.mongo = m
			log.Info("mongo_connected")
			return nil
		})
	}

	if cfg.Redis.RedisURL != "" {
		g.Go(func() error {
			rdb, err := cache.Connect(gctx, cfg.Redis.RedisURL)
			if err != nil {
				return err
			}
			a.rdb = rdb
			log.Info("redis_connected")
			return nil
		})
	}

	if cfg.S3.Enabled() {
		g.Go(func() error {
			m, err := minio.New(gctx, cfg.S3)
			if err != nil {
				return err
			}
			media = m
			log.Info("s3_connected", slog.String("bucket", cfg.S3.Bucket))
			return nil
		})
	}

	werr := g.Wait()

	if a.mongo != nil {
		a.closers = append(a.closers, a.mongo.Close)
	}
	if a.rdb != nil {
		a.closers = append(a.closers, func(context.Context) error { return a.rdb.Close() })
	}

	if werr != nil {
		return nil, fmt.Errorf("%s: %w", op, werr)
	}

	var comments storage.CommentStorage = a.pg
	if a.mongo != nil {
		comments = a.mongo
	}

	a.Service = service.New(a.pg, comments, cfg.Auth, cfg.Limits)

	if a.rdb != nil {
		a.Service.SetRefreshCache(cache.NewRedis(a.rdb, redisCachePrefix))
	}

	if media != nil {
		a.Service.SetMedia(media)
	}

	limiter, err := a.limiter()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	opts := bloghttp.Options{
		Logger:       log,
		Timeout:      cfg.Timeouts.Request,
		BasePath:     cfg.HTTP.BasePath,
		BodyLimit:    cfg.HTTP.BodyLimit,
		TrustProxy:   cfg.HTTP.TrustProxy,
		CORSOrigins:  cfg.CORS.Origins,
		CORSAllowAny: cfg.Env == config.EnvLocal || cfg.Env == config.EnvDev,
		Limits:       cfg.Limits,
		Limiter:      limiter,
	}
	if reg != nil {
		opts.Metrics = middleware.NewMetrics(reg)
	}

	a.Handler = bloghttp.NewRouter(a.Service, opts)

	log.Info("app_initialized",
		slog.String("comments_backend", cfg.Comments.Backend),
		slog.String("rate_limit_backend", cfg.RateLimit.Backend),
		slog.Bool("refresh_cache", a.rdb != nil),
		slog.Bool("media", media != nil),
	)

	return a, nil
}

// connectPostgres повторяет подключение с экспоненциальной паузой:
// при совместном старте контейнеров БД поднимается не сразу.
func (a *App) connectPostgres(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = connectTimeout

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++

		pg, err := postgres.New(ctx, a.cfg.DB.DatabaseURL)
		if err != nil {
			a.log.Warn("postgres_connect_retry",
				slog.Int("attempt", attempt),
				slog.String("err", err.Error()),
			)
			return err
		}

		a.pg = pg
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return err
	}

	a.closers = append(a.closers, func(context.Context) error {
		a.pg.Close()
		return nil
	})

	a.log.Info("postgres_connected", slog.Int("attempts", attempt))
	return nil
}

func (a *App) limiter() (ratelimit.Limiter, error) {
	tiers := ratelimit.TiersFromConfig(a.cfg.RateLimit.Tiers)

	if a.cfg.RateLimit.Backend == "redis" {
		if a.rdb == nil {
			return nil, errors.New("redis rate limiter requires redis connection")
		}

		return ratelimit.NewRedis(a.rdb, tiers, redisLimiterPrefix)
	}

	mem, err := ratelimit.NewMemory(tiers)
	if err != nil {
		return nil, err
	}

	a.memory = mem
	return mem, nil
}

// Ready — готовность к приёму трафика: основная БД отвечает.
func (a *App) Ready(ctx context.Context) error {
	return a.pg.Ping(ctx)
}

// RunJanitor периодически чистит просроченные refresh-токены и простаивающие
// ключи лимитера в памяти. Блокируется до отмены ctx.
func (a *App) RunJanitor(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.sweep(ctx)
		}
	}
}

func (a *App) sweep(ctx context.Context) {
	n, err := a.Service.CleanupExpiredTokens(ctx)
	if err != nil {
		a.log.Warn("janitor_tokens_failed", slog.String("err", err.Error()))
	} else if n > 0 {
		a.log.Info("janitor_tokens_deleted", slog.Int64("count", n))
	}

	if a.memory != nil {
		if dropped := a.memory.Sweep(a.memory.LongestWindow()); dropped > 0 {
			a.log.Debug("janitor_limiter_swept", slog.Int("keys", dropped))
		}
	}
}

// Close закрывает соединения в обратном порядке открытия.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	a.closers = nil
	return errors.Join(errs...)
}
