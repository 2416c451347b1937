package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"lms-test-service/internal/app"
	"lms-test-service/internal/config"
	"lms-test-service/internal/infra/file"
	"lms-test-service/internal/infra/memory"
	pgstore "lms-test-service/internal/infra/postgres"
	pgmigrations "lms-test-service/internal/infra/postgres/migrations"
	infraredis "lms-test-service/internal/infra/redis"
)

// backends holds the connections opened for one command run.
type backends struct {
	redis *redis.Client
	pool  *pgxpool.Pool
	db    *bun.DB
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
		b.db = pgmigrations.Open(cfg.Postgres.URL)
	}
	return b, nil
}

func (b *backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}

// blobStore picks where test states are persisted.
func (b *backends) blobStore(cfg config.Config) (app.BlobStore, error) {
	switch backend := cfg.StoreBackend(); backend {
	case "memory":
		return memory.NewBlobStore(), nil
	case "file":
		return file.NewBlobStore(cfg.Store.Path), nil
	case "redis":
		if b.redis == nil {
			return nil, fmt.Errorf("redis backend selected but redis.addr is empty")
		}
		return infraredis.NewBlobStore(b.redis, cfg.Redis.Prefix), nil
	case "postgres":
		if b.db == nil {
			return nil, fmt.Errorf("postgres backend selected but postgres.url is empty")
		}
		return pgstore.NewBlobStore(b.db), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func (b *backends) stateStore(cfg config.Config, logger *log.Logger) (*app.TestStateStore, error) {
	blobs, err := b.blobStore(cfg)
	if err != nil {
		return nil, err
	}
	return app.NewTestStateStore(blobs, cfg.Store.Key, logger), nil
}

// testRepository caches definitions from Postgres when configured, or the
// built-in sample catalog otherwise.
func (b *backends) testRepository(cfg config.Config) app.TestRepository {
	var loader memory.TestLoader = memory.NewStaticTestLoader(sampleTests())
	if b.pool != nil {
		loader = pgstore.NewTestLoader(b.pool)
	}
	ttl := config.TTLDuration(cfg.Tests.CacheTTL, 10*time.Minute)
	if b.redis != nil {
		return infraredis.NewTestRepository(b.redis, loader, ttl)
	}
	return memory.NewTestRepository(loader, ttl)
}

type sessionRegistry interface {
	app.SessionRepository
	CloseAll()
}

func (b *backends) sessionRegistry(cfg config.Config) sessionRegistry {
	if b.redis != nil {
		return infraredis.NewSessionStore(b.redis, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	}
	return memory.NewSessionStore()
}
