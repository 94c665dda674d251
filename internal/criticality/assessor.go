// Package criticality classifies how important a piece of software is to a company.
package criticality

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/riskgate/api/schemas"
)

const evidenceResults = 3

// Assessor gathers company and software context and classifies criticality,
// either with a single classifier or through the consensus engine.
type Assessor struct {
	search     schemas.SearchClient
	classifier Classifier
	engine     *Engine
	logger     *zap.Logger
}

// NewAssessor uses engine when it is non-nil and classifier otherwise.
func NewAssessor(search schemas.SearchClient, classifier Classifier, engine *Engine, logger *zap.Logger) (*Assessor, error) {
	if search == nil {
		return nil, fmt.Errorf("criticality assessor requires a search client")
	}
	if classifier == nil && engine == nil {
		return nil, fmt.Errorf("criticality assessor requires a classifier or a consensus engine")
	}
	return &Assessor{
		search:     search,
		classifier: classifier,
		engine:     engine,
		logger:     logger.Named("criticality"),
	}, nil
}

// Assess never fails. Search failures leave their context empty and
// classification failures fall back to MEDIUM with the error as reasoning.
func (a *Assessor) Assess(ctx context.Context, company, software string) (*schemas.CriticalityAssessment, []schemas.TraceEntry) {
	companyQuery := fmt.Sprintf("%s company business industry products services", company)
	softwareQuery := fmt.Sprintf("%s software tool purpose use case features", software)

	// The two searches are independent; both must finish before prompting.
	var companyResp, softwareResp *schemas.SearchResponse
	var g errgroup.Group
	g.Go(func() error {
		companyResp = a.search.Search(ctx, companyQuery, evidenceResults, schemas.SearchDepthBasic)
		return nil
	})
	g.Go(func() error {
		softwareResp = a.search.Search(ctx, softwareQuery, evidenceResults, schemas.SearchDepthBasic)
		return nil
	})
	_ = g.Wait()

	traces := []schemas.TraceEntry{
		searchTrace("company_search", companyQuery, companyResp),
		searchTrace("software_search", softwareQuery, softwareResp),
	}

	prompt := BuildPrompt(company, software, companyResp.Results, softwareResp.Results)

	start := time.Now()
	if a.engine != nil {
		result, votes := a.engine.Run(ctx, company, software, prompt)
		traces = append(traces, votes...)
		traces = append(traces, schemas.NewTraceEntry("criticality_analysis", "consensus", time.Since(start)).
			With("criticality", string(result.Criticality)).
			With("models", len(votes)))
		return result, traces
	}

	result, confidence, err := a.classifySingle(ctx, company, software, prompt)
	trace := schemas.NewTraceEntry("criticality_analysis", a.classifier.Name(), time.Since(start)).
		With("criticality", string(result.Criticality))
	if confidence != "" {
		trace = trace.With("confidence", confidence)
	}
	if err != nil {
		trace = trace.With("error", err.Error())
	}
	traces = append(traces, trace)
	return result, traces
}

func (a *Assessor) classifySingle(ctx context.Context, company, software, prompt string) (*schemas.CriticalityAssessment, string, error) {
	analysis, err := a.classifier.Classify(ctx, prompt)
	if err == nil && analysis == nil {
		err = ErrEmptyAnalysis
	}
	if err != nil {
		a.logger.Warn("Criticality classification failed; defaulting to medium",
			zap.String("company", company), zap.String("software", software), zap.Error(err))
		return &schemas.CriticalityAssessment{
			CompanyName:  company,
			SoftwareName: software,
			Criticality:  schemas.CriticalityMedium,
			Reasoning:    schemas.Truncate(fmt.Sprintf("Error assessing criticality: %v", err), schemas.ReasoningMaxLength),
		}, "", err
	}

	level, _ := schemas.ParseCriticality(analysis.CriticalityLevel)
	a.logger.Info("Criticality assessed",
		zap.String("company", company),
		zap.String("software", software),
		zap.String("criticality", string(level)))

	return &schemas.CriticalityAssessment{
		CompanyName:         company,
		SoftwareName:        software,
		Criticality:         level,
		Reasoning:           schemas.Truncate(analysis.Reasoning, schemas.ReasoningMaxLength),
		CompanyBusiness:     analysis.CompanyBusiness,
		SoftwarePurpose:     analysis.SoftwarePurpose,
		Relevance:           analysis.Relevance,
		ImpactIfUnavailable: analysis.ImpactIfUnavailable,
	}, analysis.Confidence, nil
}

func searchTrace(step, query string, resp *schemas.SearchResponse) schemas.TraceEntry {
	tr := schemas.NewTraceEntry(step, "tavily", resp.ElapsedTime).
		With("query", query).
		With("results_count", len(resp.Results))
	if resp.Error != "" {
		tr = tr.With("error", resp.Error)
	}
	return tr
}
