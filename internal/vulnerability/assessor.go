// Package vulnerability assesses the known vulnerabilities of a software product,
// using NVD as the authoritative source and web evidence as the fallback.
package vulnerability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/nvd"
)

// CVESource is the authoritative vulnerability database.
type CVESource interface {
	Search(ctx context.Context, software string, daysBack, maxResults int) *nvd.SearchResult
}

// Options tunes the assessor.
type Options struct {
	DaysBack         int
	MaxResults       int
	EvidenceResults  int // Search results fed to the extractor.
	ExistenceResults int // Search results used by the existence check.
}

// Assessor runs the full vulnerability assessment for one software name.
type Assessor struct {
	cves      CVESource
	search    schemas.SearchClient
	extractor *Extractor
	opts      Options
	logger    *zap.Logger
}

// NewAssessor wires the assessor. cves may be nil to rely on web evidence only.
func NewAssessor(cves CVESource, search schemas.SearchClient, extractor *Extractor, opts Options, logger *zap.Logger) *Assessor {
	if opts.DaysBack <= 0 {
		opts.DaysBack = 730
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 100
	}
	if opts.EvidenceResults <= 0 {
		opts.EvidenceResults = 5
	}
	if opts.ExistenceResults <= 0 {
		opts.ExistenceResults = 5
	}
	return &Assessor{
		cves:      cves,
		search:    search,
		extractor: extractor,
		opts:      opts,
		logger:    logger.Named("vulnerability"),
	}
}

// Assess never fails: every external failure is folded into the summary and
// the trace, and the returned assessment always satisfies its count invariants.
func (a *Assessor) Assess(ctx context.Context, software string) (*schemas.VulnerabilityAssessment, []schemas.TraceEntry) {
	var traces []schemas.TraceEntry

	// -- Existence --
	start := time.Now()
	ex := VerifyExistence(ctx, a.search, software, a.opts.ExistenceResults)
	trace := schemas.NewTraceEntry("existence_check", "tavily", time.Since(start)).
		With("software_exists", ex.Exists).
		With("existence_confidence", string(ex.Confidence)).
		With("mentions", ex.Mentions)
	if ex.Response.Error != "" {
		trace = trace.With("error", ex.Response.Error)
	}
	traces = append(traces, trace)

	if !ex.Exists {
		a.logger.Warn("Software could not be verified; skipping vulnerability search", zap.String("software", software))
		summary := fmt.Sprintf("Could not verify that %s exists: no search results mention it. "+
			"No vulnerability search was performed; check the software name.", software)
		return schemas.NewVulnerabilityAssessment(software, nil, schemas.VulnerabilityAssessmentOptions{
			Summary:             summary,
			SourceData:          recordsFromResults(ex.Response.Results),
			SoftwareExists:      false,
			ExistenceConfidence: ex.Confidence,
		}), traces
	}

	opts := schemas.VulnerabilityAssessmentOptions{
		SoftwareExists:      true,
		ExistenceConfidence: ex.Confidence,
		Cadence:             schemas.CadenceUnknown,
	}

	// -- Authoritative source --
	var nvdNote string
	if a.cves != nil {
		start = time.Now()
		res := a.cves.Search(ctx, software, a.opts.DaysBack, a.opts.MaxResults)
		trace := schemas.NewTraceEntry("nvd_search", "nvd_api", time.Since(start)).
			With("cves_found", len(res.Vulnerabilities)).
			With("total_results", res.TotalResults)
		if res.Error != "" {
			trace = trace.With("error", res.Error)
		}
		traces = append(traces, trace)

		if len(res.Vulnerabilities) > 0 {
			opts.Summary = a.summarize(software, len(res.Vulnerabilities),
				fmt.Sprintf("in the National Vulnerability Database (last %d days)", a.opts.DaysBack), "", ex.Confidence)
			opts.SourceData = recordsFromVulnerabilities(res.Vulnerabilities)
			return schemas.NewVulnerabilityAssessment(software, res.Vulnerabilities, opts), traces
		}
		nvdNote = "NVD returned no results"
		if res.Error != "" {
			nvdNote = "NVD unavailable: " + res.Error
		}
	} else {
		nvdNote = "NVD lookup disabled"
	}

	// -- Fallback evidence --
	start = time.Now()
	evidence := a.search.Search(ctx, fmt.Sprintf("%q security vulnerabilities CVE", software), a.opts.EvidenceResults, schemas.SearchDepthAdvanced)
	trace = schemas.NewTraceEntry("vulnerability_search", "tavily", time.Since(start)).
		With("results_found", len(evidence.Results))
	if evidence.Error != "" {
		trace = trace.With("error", evidence.Error)
	}
	traces = append(traces, trace)
	opts.SourceData = recordsFromResults(evidence.Results)

	if len(evidence.Results) == 0 {
		note := nvdNote
		if evidence.Error != "" {
			note += "; web search unavailable: " + evidence.Error
		} else {
			note += "; web search returned no results"
		}
		opts.Summary = a.summarize(software, 0, "", note, ex.Confidence)
		return schemas.NewVulnerabilityAssessment(software, nil, opts), traces
	}

	start = time.Now()
	extraction := a.extractor.Extract(ctx, software, evidence.Results)
	trace = schemas.NewTraceEntry("vulnerability_extraction", "llm", time.Since(start)).
		With("candidates", extraction.Candidates).
		With("vulnerabilities_kept", len(extraction.Vulnerabilities)).
		With("dropped_by_validation", extraction.Dropped).
		With("overall_confidence", extraction.OverallConfidence)
	if extraction.Error != "" {
		trace = trace.With("error", extraction.Error)
	}
	traces = append(traces, trace)

	note := nvdNote
	if extraction.Error != "" {
		note += "; evidence extraction failed: " + extraction.Error
	}
	opts.Cadence = extraction.Cadence
	opts.Summary = a.summarize(software, len(extraction.Vulnerabilities), "from web search evidence", note, ex.Confidence)
	return schemas.NewVulnerabilityAssessment(software, extraction.Vulnerabilities, opts), traces
}

func (a *Assessor) summarize(software string, n int, where, note string, conf schemas.ExistenceConfidence) string {
	var sb strings.Builder
	if n == 0 {
		fmt.Fprintf(&sb, "No vulnerabilities found for %s.", software)
	} else {
		fmt.Fprintf(&sb, "Found %d %s for %s %s.", n, pluralize(n, "vulnerability", "vulnerabilities"), software, where)
	}
	if note != "" {
		fmt.Fprintf(&sb, " (%s)", note)
	}
	if conf == schemas.ExistenceLow {
		sb.WriteString(" Existence confidence is low; results may refer to a different product.")
	}
	return sb.String()
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func recordsFromResults(results []schemas.SearchResult) []schemas.SourceRecord {
	out := make([]schemas.SourceRecord, 0, len(results))
	for _, r := range results {
		out = append(out, schemas.SourceRecord{Title: r.Title, URL: r.URL})
	}
	return out
}

func recordsFromVulnerabilities(vulns []schemas.Vulnerability) []schemas.SourceRecord {
	out := make([]schemas.SourceRecord, 0, len(vulns))
	for _, v := range vulns {
		if v.SourceURL == "" {
			continue
		}
		out = append(out, schemas.SourceRecord{Title: v.CVEID, URL: v.SourceURL})
	}
	return out
}
