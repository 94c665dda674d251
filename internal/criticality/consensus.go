package criticality

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/riskgate/api/schemas"
)

const allFailedReasoning = "Consensus unavailable: all models failed to provide an assessment."

// ErrEmptyAnalysis is reported when a classifier returns neither an analysis
// nor an error.
var ErrEmptyAnalysis = errors.New("classifier returned no analysis")

// Engine fans one prompt out to every backend and reduces the votes.
type Engine struct {
	backends []Classifier
	timeout  time.Duration // Per-backend.
	logger   *zap.Logger
}

// NewEngine requires at least one backend. Declaration order is preserved in
// the combined rationale.
func NewEngine(backends []Classifier, timeout time.Duration, logger *zap.Logger) (*Engine, error) {
	if len(backends) == 0 {
		return nil, errors.New("consensus engine requires at least one backend")
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Engine{
		backends: append([]Classifier(nil), backends...),
		timeout:  timeout,
		logger:   logger.Named("consensus"),
	}, nil
}

// AssessWithConsensus returns the consensus classification for one pair.
func (e *Engine) AssessWithConsensus(ctx context.Context, company, software, prompt string) *schemas.CriticalityAssessment {
	out, _ := e.Run(ctx, company, software, prompt)
	return out
}

// Run is AssessWithConsensus plus one consensus_vote trace per backend, in
// declaration order.
func (e *Engine) Run(ctx context.Context, company, software, prompt string) (*schemas.CriticalityAssessment, []schemas.TraceEntry) {
	votes, elapsed := e.collect(ctx, prompt)

	traces := make([]schemas.TraceEntry, 0, len(votes))
	for i, v := range votes {
		tr := schemas.NewTraceEntry("consensus_vote", v.Model, elapsed[i]).
			With("criticality", string(v.Criticality)).
			With("success", v.Success)
		if !v.Success {
			tr = tr.With("error", strings.TrimPrefix(v.Reasoning, "Error: "))
		}
		traces = append(traces, tr)
	}

	result := Reduce(company, software, votes)
	e.logger.Info("Consensus reached",
		zap.String("company", company),
		zap.String("software", software),
		zap.String("criticality", string(result.Criticality)),
		zap.Int("backends", len(votes)))
	return result, traces
}

// collect queries every backend concurrently. Each call gets its own timeout
// and never cancels its siblings; slot i holds backend i's vote.
func (e *Engine) collect(ctx context.Context, prompt string) ([]schemas.ConsensusVote, []time.Duration) {
	votes := make([]schemas.ConsensusVote, len(e.backends))
	elapsed := make([]time.Duration, len(e.backends))

	var g errgroup.Group
	for i, b := range e.backends {
		g.Go(func() error {
			start := time.Now()
			votes[i] = e.vote(ctx, b, prompt)
			elapsed[i] = time.Since(start)
			return nil
		})
	}
	_ = g.Wait()
	return votes, elapsed
}

// vote asks one backend. Errors, empty analyses and panics all become a
// failed MEDIUM vote.
func (e *Engine) vote(ctx context.Context, b Classifier, prompt string) (v schemas.ConsensusVote) {
	name := b.Name()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Backend panicked while voting",
				zap.String("model", name),
				zap.Any("panicValue", r),
				zap.String("stack", string(debug.Stack())))
			v = failedVote(name, fmt.Errorf("backend panicked: %v", r))
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	analysis, err := b.Classify(callCtx, prompt)
	if err == nil && analysis == nil {
		err = ErrEmptyAnalysis
	}
	if err != nil {
		e.logger.Warn("Backend failed to vote", zap.String("model", name), zap.Error(err))
		return failedVote(name, err)
	}

	level, _ := schemas.ParseCriticality(analysis.CriticalityLevel)
	return schemas.ConsensusVote{
		Model:       name,
		Criticality: level,
		Reasoning:   analysis.Reasoning,
		Success:     true,
		Analysis:    analysis,
	}
}

func failedVote(model string, err error) schemas.ConsensusVote {
	return schemas.ConsensusVote{
		Model:       model,
		Criticality: schemas.CriticalityMedium,
		Reasoning:   fmt.Sprintf("Error: %v", err),
	}
}

// Reduce applies majority vote over successful backends. Ties go to the higher
// level. With no successful backend the result is MEDIUM. Every vote, failed
// or not, is tagged into the reasoning in the order given.
func Reduce(company, software string, votes []schemas.ConsensusVote) *schemas.CriticalityAssessment {
	out := &schemas.CriticalityAssessment{CompanyName: company, SoftwareName: software}

	var ok []schemas.ConsensusVote
	for _, v := range votes {
		if v.Success {
			ok = append(ok, v)
		}
	}

	if len(ok) == 0 {
		out.Criticality = schemas.CriticalityMedium
		out.Reasoning = allFailedReasoning
		if len(votes) > 0 {
			out.Reasoning = schemas.Truncate(allFailedReasoning+" | "+joinTagged(votes), schemas.ReasoningMaxLength)
		}
		return out
	}

	counts := make(map[schemas.Criticality]int, 3)
	for _, v := range ok {
		counts[v.Criticality]++
	}
	winner, best := schemas.CriticalityMedium, -1
	// Highest level first, so a strict comparison keeps the higher level on ties.
	for _, level := range []schemas.Criticality{schemas.CriticalityHigh, schemas.CriticalityMedium, schemas.CriticalityLow} {
		if counts[level] > best {
			winner, best = level, counts[level]
		}
	}
	out.Criticality = winner

	full := fmt.Sprintf("Consensus: %d/%d models agreed. %s", best, len(ok), joinTagged(votes))
	out.Reasoning = schemas.Truncate(full, schemas.ReasoningMaxLength)

	for _, v := range ok {
		if v.Criticality == winner && v.Analysis != nil {
			out.CompanyBusiness = v.Analysis.CompanyBusiness
			out.SoftwarePurpose = v.Analysis.SoftwarePurpose
			out.Relevance = v.Analysis.Relevance
			out.ImpactIfUnavailable = v.Analysis.ImpactIfUnavailable
			break
		}
	}
	return out
}

func joinTagged(votes []schemas.ConsensusVote) string {
	parts := make([]string, 0, len(votes))
	for _, v := range votes {
		parts = append(parts, tagged(v))
	}
	return strings.Join(parts, " | ")
}

func tagged(v schemas.ConsensusVote) string {
	return fmt.Sprintf("[%s]: %s", strings.ToUpper(v.Model), v.Reasoning)
}
