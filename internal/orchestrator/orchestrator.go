// Package orchestrator runs the risk pipeline for one (company, software) pair:
// vulnerability assessment, then criticality assessment, then the decision policy.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/policy"
)

// VulnerabilityAssessor produces the security half of the decision input.
type VulnerabilityAssessor interface {
	Assess(ctx context.Context, software string) (*schemas.VulnerabilityAssessment, []schemas.TraceEntry)
}

// CriticalityAssessor produces the business half of the decision input.
type CriticalityAssessor interface {
	Assess(ctx context.Context, company, software string) (*schemas.CriticalityAssessment, []schemas.TraceEntry)
}

// Recorder receives every finished output, e.g. for an audit table.
type Recorder interface {
	SaveAssessment(ctx context.Context, out *schemas.AssessmentOutput) error
}

// ErrInvalidInput is returned when a company or software name is blank.
var ErrInvalidInput = errors.New("company and software names are required")

// Pipeline is safe for concurrent use as long as its assessors are.
type Pipeline struct {
	vuln     VulnerabilityAssessor
	crit     CriticalityAssessor
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRecorder persists each output after the decision is made. Recorder
// failures are logged and never change the outcome.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline with its dependencies provided as interfaces.
func New(vuln VulnerabilityAssessor, crit CriticalityAssessor, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if vuln == nil || crit == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize pipeline with nil dependencies")
	}
	p := &Pipeline{
		vuln:   vuln,
		crit:   crit,
		logger: logger.Named("orchestrator"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type stage int

const (
	stageVulnerability stage = iota
	stageCriticality
	stageDecision
	stageDone
)

func (s stage) String() string {
	switch s {
	case stageVulnerability:
		return "vulnerability"
	case stageCriticality:
		return "criticality"
	case stageDecision:
		return "decision"
	default:
		return "done"
	}
}

// runState is passed by value from stage to stage; each stage fills in its own
// fields and returns the next state.
type runState struct {
	stage     stage
	company   string
	software  string
	vuln      *schemas.VulnerabilityAssessment
	crit      *schemas.CriticalityAssessment
	decision  schemas.Decision
	rationale string
	report    string
	traces    []schemas.TraceEntry
}

func (p *Pipeline) step(ctx context.Context, s runState) runState {
	switch s.stage {
	case stageVulnerability:
		vuln, traces := p.vuln.Assess(ctx, s.software)
		s.vuln = vuln
		s.traces = appendTraces(s.traces, traces)
		s.stage = stageCriticality
	case stageCriticality:
		crit, traces := p.crit.Assess(ctx, s.company, s.software)
		s.crit = crit
		s.traces = appendTraces(s.traces, traces)
		s.stage = stageDecision
	case stageDecision:
		s.decision, s.rationale = policy.Decide(s.vuln, s.crit)
		s.report = policy.GenerateReport(s.decision, s.rationale, s.vuln, s.crit)
		s.stage = stageDone
	}
	return s
}

// appendTraces never writes into the backing array of a previous state.
func appendTraces(prev, next []schemas.TraceEntry) []schemas.TraceEntry {
	out := make([]schemas.TraceEntry, 0, len(prev)+len(next))
	out = append(out, prev...)
	return append(out, next...)
}

// Run executes the pipeline. Source failures are folded into the output; an
// error is returned only for invalid input or a broken collaborator.
func (p *Pipeline) Run(ctx context.Context, company, software string) (*schemas.AssessmentOutput, error) {
	company, software = strings.TrimSpace(company), strings.TrimSpace(software)
	if company == "" || software == "" {
		return nil, ErrInvalidInput
	}

	runID := p.newID()
	log := p.logger.With(zap.String("run_id", runID), zap.String("company", company), zap.String("software", software))
	log.Info("Starting risk assessment")
	start := p.now()

	s := runState{stage: stageVulnerability, company: company, software: software}
	for s.stage != stageDone {
		current := s.stage
		s = p.step(ctx, s)
		if err := s.check(current); err != nil {
			log.Error("Pipeline stage produced no result", zap.Stringer("stage", current), zap.Error(err))
			return nil, err
		}
		log.Debug("Stage complete", zap.Stringer("stage", current))
	}

	out := buildOutput(runID, start, s)
	log.Info("Risk assessment complete",
		zap.String("decision", out.Decision.Upper()),
		zap.Int("vulnerabilities", s.vuln.TotalCount),
		zap.String("criticality", string(s.crit.Criticality)))

	if p.recorder != nil {
		if err := p.recorder.SaveAssessment(ctx, out); err != nil {
			log.Warn("Failed to record assessment", zap.Error(err))
		}
	}
	return out, nil
}

func (s runState) check(completed stage) error {
	switch completed {
	case stageVulnerability:
		if s.vuln == nil {
			return fmt.Errorf("vulnerability assessor returned no assessment")
		}
	case stageCriticality:
		if s.crit == nil {
			return fmt.Errorf("criticality assessor returned no assessment")
		}
	}
	return nil
}

func buildOutput(runID string, ts time.Time, s runState) *schemas.AssessmentOutput {
	return &schemas.AssessmentOutput{
		RunID:                runID,
		Timestamp:            ts,
		CompanyName:          s.company,
		SoftwareName:         s.software,
		Decision:             s.decision,
		DecisionReasoning:    s.rationale,
		VulnerabilitySummary: s.vuln.Summary,
		CriticalityLevel:     s.crit.Criticality,
		CriticalityReasoning: s.crit.Reasoning,
		ChainOfThought: schemas.ChainOfThought{
			CompanyBusiness:     s.crit.CompanyBusiness,
			SoftwarePurpose:     s.crit.SoftwarePurpose,
			Relevance:           s.crit.Relevance,
			ImpactIfUnavailable: s.crit.ImpactIfUnavailable,
		},
		FinalSummary:    s.report,
		Vulnerabilities: s.vuln.Vulnerabilities,
		SourceURLs:      s.vuln.SourceData,
		SoftwareVerification: schemas.SoftwareVerification{
			Exists:     s.vuln.SoftwareExists,
			Confidence: s.vuln.ExistenceConfidence,
		},
		Traces:                  s.traces,
		VulnerabilityAssessment: s.vuln,
		CriticalityAssessment:   s.crit,
	}
}

// Target is one entry of a batch.
type Target struct {
	Company  string `json:"company" yaml:"company"`
	Software string `json:"software" yaml:"software"`
}

// BatchResult pairs a target with its output or the error that stopped it.
type BatchResult struct {
	Target Target
	Output *schemas.AssessmentOutput
	Err    error
}

// RunBatch runs the targets one after another. A failed target does not stop
// the batch; a cancelled context does.
func (p *Pipeline) RunBatch(ctx context.Context, targets []Target) ([]BatchResult, error) {
	results := make([]BatchResult, 0, len(targets))
	for i, t := range targets {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("batch interrupted after %d of %d targets: %w", i, len(targets), err)
		}
		out, err := p.Run(ctx, t.Company, t.Software)
		if err != nil {
			p.logger.Error("Batch target failed", zap.Int("index", i), zap.String("company", t.Company), zap.String("software", t.Software), zap.Error(err))
		}
		results = append(results, BatchResult{Target: t, Output: out, Err: err})
	}
	return results, nil
}
