// Package service assembles the production pipeline and owns the lifecycle of
// its external resources.
package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/nvd"
	"github.com/xkilldash9x/riskgate/internal/observability"
	"github.com/xkilldash9x/riskgate/internal/orchestrator"
	"github.com/xkilldash9x/riskgate/internal/store"
)

// Pipeline is what the CLI and the HTTP API drive.
type Pipeline interface {
	Run(ctx context.Context, company, software string) (*schemas.AssessmentOutput, error)
	RunBatch(ctx context.Context, targets []orchestrator.Target) ([]orchestrator.BatchResult, error)
}

// Components holds everything one process needs to run assessments.
type Components struct {
	Pipeline Pipeline
	Store    *store.Store
	DBPool   *pgxpool.Pool
	Cache    *nvd.RedisCache

	// llmClients are closed on shutdown; the router and consensus backends may share entries.
	llmClients []schemas.LLMClient
}

// Shutdown releases every resource. It is safe to call on a partially built value.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()

	var errs []error
	for _, client := range c.llmClients {
		if client != nil {
			errs = append(errs, client.Close())
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("Error closing LLM clients", zap.Error(err))
	}

	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			logger.Warn("Error closing NVD cache", zap.Error(err))
		}
	}

	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}
	logger.Debug("All components shut down.")
}
