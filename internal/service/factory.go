package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/internal/config"
	"github.com/xkilldash9x/riskgate/internal/llmclient"
	"github.com/xkilldash9x/riskgate/internal/nvd"
	"github.com/xkilldash9x/riskgate/internal/orchestrator"
	"github.com/xkilldash9x/riskgate/internal/search"
	"github.com/xkilldash9x/riskgate/internal/vulnerability"
)

// ComponentFactory creates the components for a command. Commands depend on
// the interface so tests can substitute the pipeline.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

type concreteFactory struct{}

// NewComponentFactory creates the production factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create wires every client from configuration. On failure everything created
// so far is shut down.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (_ *Components, err error) {
	components := &Components{}
	defer func() {
		if err != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(err))
			components.Shutdown()
		}
	}()

	// 1. Evidence search
	searchClient := search.NewTavilyClient(cfg.Search(), logger)

	// 2. NVD, optionally cached
	var cache nvd.Cache
	if rc := InitializeCache(ctx, cfg.Cache(), logger); rc != nil {
		components.Cache = rc
		cache = rc
	}
	nvdClient := nvd.NewClient(cfg.NVD(), cache, logger)

	// 3. LLM router (fast tier extracts, powerful tier classifies)
	router, err := llmclient.NewClient(ctx, cfg.LLM(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	components.llmClients = append(components.llmClients, router)

	// 4. Assessors
	vulnAssessor := vulnerability.NewAssessor(nvdClient, searchClient, vulnerability.NewExtractor(router, logger), vulnerability.Options{
		DaysBack:         cfg.NVD().DaysBack,
		MaxResults:       cfg.NVD().MaxResults,
		EvidenceResults:  cfg.Search().MaxResults,
		ExistenceResults: cfg.Search().MaxResults,
	}, logger)

	critAssessor, consensusClients, err := InitializeCriticality(ctx, cfg.LLM(), router, searchClient, logger)
	components.llmClients = append(components.llmClients, consensusClients...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize criticality assessor: %w", err)
	}

	// 5. Optional audit store
	var opts []orchestrator.Option
	if url := cfg.Database().URL; url != "" {
		s, pool, err := InitializeStore(ctx, cfg.Database(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize audit store: %w", err)
		}
		components.Store, components.DBPool = s, pool
		opts = append(opts, orchestrator.WithRecorder(s))
		logger.Debug("Audit store initialized.")
	}

	// 6. Pipeline
	pipeline, err := orchestrator.New(vulnAssessor, critAssessor, logger, opts...)
	if err != nil {
		return nil, err
	}
	components.Pipeline = pipeline

	logger.Debug("Components initialized",
		zap.Bool("cache", components.Cache != nil),
		zap.Bool("audit_store", components.Store != nil),
		zap.Bool("consensus", len(consensusClients) > 0))
	return components, nil
}
