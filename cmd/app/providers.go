package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/telembed/telembed/internal/domain/credential"
	"github.com/telembed/telembed/internal/domain/embedding"
	"github.com/telembed/telembed/internal/domain/qa"
	"github.com/telembed/telembed/internal/infra/backup"
	"github.com/telembed/telembed/internal/infra/config"
	"github.com/telembed/telembed/internal/infra/embedcache"
	"github.com/telembed/telembed/internal/infra/provider/deterministic"
	"github.com/telembed/telembed/internal/infra/provider/gemini"
	"github.com/telembed/telembed/internal/infra/qastore"
)

func provideQAConfig(cfg *config.Config) qa.Config {
	return qa.Config{
		SimilarityThreshold: cfg.Similarity.Threshold,
		Dimensions:          cfg.Embedding.Dimensions,
		RebuildPause:        cfg.RebuildPause(),
		MaxKeywordResults:   50,
	}
}

func provideCredentialPool(cfg *config.Config, logger *slog.Logger) *credential.Pool {
	limits := credential.Limits{
		RequestsPerMinute: cfg.Embedding.RequestsPerMinute,
		RequestsPerDay:    cfg.Embedding.RequestsPerDay,
	}
	return credential.NewPool(cfg.Embedding.APIKeys, limits, logger)
}

func provideEmbeddingProvider(cfg *config.Config, logger *slog.Logger) (embedding.Provider, error) {
	if cfg.Embedding.Offline {
		logger.Info("offline mode, using deterministic embedding provider")
		return deterministic.New(cfg.Embedding.Dimensions), nil
	}
	return gemini.NewClient(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.Dimensions)
}

func provideGenerator(pool *credential.Pool, provider embedding.Provider, logger *slog.Logger) *embedding.Generator {
	return embedding.NewGenerator(embedding.DefaultConfig(), pool, provider, logger)
}

// provideEmbeddingCache picks the durable cache backend, preferring remote
// ones when configured and healthy, and fronts it with an LRU layer.
func provideEmbeddingCache(cfg *config.Config, logger *slog.Logger) (embedding.Cache, error) {
	backing, err := provideDurableCache(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.MemoryEntries <= 0 {
		return backing, nil
	}
	return embedcache.NewMemoryLayer(cfg.Cache.MemoryEntries, backing)
}

func provideDurableCache(cfg *config.Config, logger *slog.Logger) (embedding.Cache, error) {
	if dsn := strings.TrimSpace(cfg.Cache.Postgres.DSN); dsn != "" {
		pool, err := newPgxPool(dsn, cfg.Cache.Postgres)
		if err != nil {
			logger.Error("postgres cache unavailable, falling back to file cache", "error", err)
		} else {
			cache, err := embedcache.NewPostgresCache(context.Background(), pool, cfg.Embedding.Model, cfg.Embedding.Dimensions)
			if err != nil {
				logger.Error("postgres cache init failed, falling back to file cache", "error", err)
				pool.Close()
			} else {
				logger.Info("postgres embedding cache enabled")
				return cache, nil
			}
		}
	}

	if cfg.Cache.Valkey.Enabled {
		opt, err := buildValkeyOptions(cfg.Cache.Valkey.Addr)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to file cache", "error", err)
		} else if client, err := valkey.NewClient(opt); err != nil {
			logger.Error("valkey client init failed, falling back to file cache", "error", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
				logger.Error("valkey ping failed, falling back to file cache", "error", err)
				client.Close()
			} else {
				logger.Info("valkey embedding cache enabled", "addr", cfg.Cache.Valkey.Addr)
				return embedcache.NewValkeyCache(client, cfg.Embedding.Model), nil
			}
		}
	}

	return embedcache.NewFileCache(cfg.Cache.Dir, cfg.Embedding.Model, logger)
}

func provideQAStore(cfg *config.Config, logger *slog.Logger) (qa.Store, error) {
	if dsn := strings.TrimSpace(cfg.QA.Postgres.DSN); dsn != "" {
		pool, err := newPgxPool(dsn, cfg.QA.Postgres)
		if err != nil {
			logger.Error("postgres qa store unavailable, falling back to file store", "error", err)
		} else {
			store, err := qastore.NewPostgresStore(context.Background(), pool)
			if err != nil {
				logger.Error("postgres qa store init failed, falling back to file store", "error", err)
				pool.Close()
			} else {
				logger.Info("postgres qa store enabled")
				return store, nil
			}
		}
	}
	return qastore.NewFileStore(cfg.QA.StorePath, logger), nil
}

func provideBackupScheduler(cfg *config.Config, logger *slog.Logger) *backup.Scheduler {
	if !cfg.Backup.Enabled {
		return backup.NewScheduler(nil, 0, logger)
	}
	snapshotter, err := backup.NewS3Snapshotter(
		cfg.Backup.Endpoint,
		cfg.Backup.AccessKey,
		cfg.Backup.SecretKey,
		cfg.Backup.Bucket,
		cfg.Backup.Region,
		cfg.QA.StorePath,
		logger,
	)
	if err != nil {
		logger.Error("backup disabled, snapshotter init failed", "error", err)
		return backup.NewScheduler(nil, 0, logger)
	}
	return backup.NewScheduler(snapshotter, cfg.Backup.Interval, logger)
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func newPgxPool(dsn string, pgCfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if pgCfg.MaxConns > 0 {
		poolConfig.MaxConns = pgCfg.MaxConns
	}
	if pgCfg.MinConns > 0 {
		poolConfig.MinConns = pgCfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
