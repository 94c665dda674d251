package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/config"
	"github.com/xkilldash9x/riskgate/internal/criticality"
	"github.com/xkilldash9x/riskgate/internal/llmclient"
	"github.com/xkilldash9x/riskgate/internal/nvd"
	"github.com/xkilldash9x/riskgate/internal/store"
)

// InitializeStore connects to PostgreSQL and prepares the audit tables. The
// caller owns the returned pool.
func InitializeStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*store.Store, *pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to parse database URL: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create database connection pool: %w", err)
	}

	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool, nil
}

// InitializeCache returns nil when the cache is disabled or unreachable; the
// NVD client then runs uncached.
func InitializeCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) *nvd.RedisCache {
	if !cfg.Enabled {
		return nil
	}
	cache := nvd.NewRedisCache(cfg)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx); err != nil {
		logger.Warn("NVD cache unreachable; continuing without it", zap.String("address", cfg.Address), zap.Error(err))
		_ = cache.Close()
		return nil
	}
	logger.Debug("NVD cache connected", zap.String("address", cfg.Address))
	return cache
}

// InitializeCriticality builds the criticality assessor: a consensus engine
// when consensus is enabled with at least two models, otherwise a single
// classifier on the router's powerful tier. Any clients it creates are
// returned so the caller can close them.
func InitializeCriticality(ctx context.Context, cfg config.LLMConfig, router schemas.LLMClient, search schemas.SearchClient, logger *zap.Logger) (*criticality.Assessor, []schemas.LLMClient, error) {
	if cfg.Consensus.Enabled && len(cfg.Consensus.Models) >= 2 {
		named, err := llmclient.NewNamedClients(ctx, cfg, cfg.Consensus.Models, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize consensus backends: %w", err)
		}
		backends := make([]criticality.Classifier, 0, len(named))
		clients := make([]schemas.LLMClient, 0, len(named))
		for _, nc := range named {
			backends = append(backends, criticality.NewLLMClassifier(nc.Name, nc.Client, ""))
			clients = append(clients, nc.Client)
		}
		engine, err := criticality.NewEngine(backends, cfg.Consensus.Timeout, logger)
		if err != nil {
			return nil, clients, err
		}
		assessor, err := criticality.NewAssessor(search, nil, engine, logger)
		return assessor, clients, err
	}

	if cfg.Consensus.Enabled {
		logger.Warn("Consensus needs at least two models; using a single classifier", zap.Strings("models", cfg.Consensus.Models))
	}
	classifier := criticality.NewLLMClassifier(cfg.DefaultPowerfulModel, router, schemas.TierPowerful)
	assessor, err := criticality.NewAssessor(search, classifier, nil, logger)
	return assessor, nil, err
}
