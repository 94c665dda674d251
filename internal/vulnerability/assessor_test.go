package vulnerability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/mocks"
	"github.com/xkilldash9x/riskgate/internal/nvd"
)

type fixture struct {
	assessor *Assessor
	cves     *mocks.MockCVESource
	search   *mocks.MockSearchClient
	llm      *mocks.MockLLMClient
}

func setupAssessor(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cves:   new(mocks.MockCVESource),
		search: new(mocks.MockSearchClient),
		llm:    new(mocks.MockLLMClient),
	}
	f.assessor = NewAssessor(f.cves, f.search, NewExtractor(f.llm, zap.NewNop()),
		Options{DaysBack: 730, MaxResults: 50, EvidenceResults: 5, ExistenceResults: 5}, zap.NewNop())
	return f
}

func (f *fixture) exists(n int) {
	pairs := make([][2]string, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, [2]string{"Slack review", "Slack is a messaging platform"})
	}
	f.search.On("Search", mock.Anything, `"Slack" software`, 5, schemas.SearchDepthBasic).
		Return(mocks.SearchResponse(`"Slack" software`, pairs...))
}

func assertInvariants(t *testing.T, a *schemas.VulnerabilityAssessment) {
	t.Helper()
	sum := 0
	for _, n := range a.SeverityCounts {
		sum += n
	}
	assert.Equal(t, len(a.Vulnerabilities), a.TotalCount)
	assert.Equal(t, a.TotalCount, sum)
	assert.Equal(t, a.SeverityCounts[schemas.SeverityCritical] > 0, a.HasCritical)
	assert.Equal(t, a.SeverityCounts[schemas.SeverityHigh] > 0, a.HasHigh)
}

func steps(traces []schemas.TraceEntry) []string {
	out := make([]string, 0, len(traces))
	for _, tr := range traces {
		out = append(out, tr.Step)
	}
	return out
}

func TestAssess_NVDHit(t *testing.T) {
	f := setupAssessor(t)
	f.exists(3)
	f.cves.On("Search", mock.Anything, "Slack", 730, 50).Return(&nvd.SearchResult{
		Vulnerabilities: []schemas.Vulnerability{
			{CVEID: "CVE-2024-1", Severity: schemas.SeverityCritical, SourceURL: "https://nvd.nist.gov/vuln/detail/CVE-2024-1"},
			{CVEID: "CVE-2024-2", Severity: schemas.SeverityLow, SourceURL: "https://nvd.nist.gov/vuln/detail/CVE-2024-2"},
		},
		TotalResults: 2,
	})

	got, traces := f.assessor.Assess(context.Background(), "Slack")
	assertInvariants(t, got)
	assert.Equal(t, 2, got.TotalCount)
	assert.True(t, got.HasCritical)
	assert.True(t, got.SoftwareExists)
	assert.Equal(t, schemas.ExistenceHigh, got.ExistenceConfidence)
	assert.Contains(t, got.Summary, "National Vulnerability Database")
	assert.Len(t, got.SourceData, 2)
	assert.Equal(t, []string{"existence_check", "nvd_search"}, steps(traces))
	f.llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestAssess_NonexistentSoftwareShortCircuits(t *testing.T) {
	f := setupAssessor(t)
	f.search.On("Search", mock.Anything, `"Zorblax" software`, 5, schemas.SearchDepthBasic).
		Return(mocks.SearchResponse(`"Zorblax" software`, [2]string{"Unrelated", "nothing relevant"}))

	got, traces := f.assessor.Assess(context.Background(), "Zorblax")
	assertInvariants(t, got)
	assert.False(t, got.SoftwareExists)
	assert.Equal(t, schemas.ExistenceNone, got.ExistenceConfidence)
	assert.Empty(t, got.Vulnerabilities)
	assert.Contains(t, got.Summary, "Could not verify that Zorblax exists")
	assert.Equal(t, []string{"existence_check"}, steps(traces))
	f.cves.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAssess_FallbackExtraction(t *testing.T) {
	f := setupAssessor(t)
	f.exists(1)
	f.cves.On("Search", mock.Anything, "Slack", 730, 50).Return(&nvd.SearchResult{
		Vulnerabilities: []schemas.Vulnerability{},
		Error:           "NVD API returned status 503",
	})
	query := `"Slack" security vulnerabilities CVE`
	f.search.On("Search", mock.Anything, query, 5, schemas.SearchDepthAdvanced).
		Return(mocks.SearchResponse(query, [2]string{"Slack CVE", "CVE-2024-1111 affects Slack"}))
	f.llm.On("Generate", mock.Anything, mock.Anything).Return(`{"vulnerabilities":[
		{"cve_id":"CVE-2024-1111","severity":"medium","source_number":1,"confidence":"high","reasoning":"Named."}],
		"security_update_cadence":"moderate","overall_confidence":"high"}`, nil)

	got, traces := f.assessor.Assess(context.Background(), "Slack")
	assertInvariants(t, got)
	assert.Equal(t, 1, got.TotalCount)
	assert.Equal(t, schemas.ExistenceLow, got.ExistenceConfidence)
	assert.Equal(t, schemas.CadenceModerate, got.SecurityUpdateCadence)
	assert.Contains(t, got.Summary, "from web search evidence")
	assert.Contains(t, got.Summary, "NVD unavailable")
	assert.Contains(t, got.Summary, "Existence confidence is low")
	assert.Equal(t, "https://example.com/a", got.Vulnerabilities[0].SourceURL)
	assert.Equal(t, []string{"existence_check", "nvd_search", "vulnerability_search", "vulnerability_extraction"}, steps(traces))
	assert.Equal(t, "NVD API returned status 503", traces[1].Fields["error"])
}

func TestAssess_AllSourcesEmpty(t *testing.T) {
	f := setupAssessor(t)
	f.exists(2)
	f.cves.On("Search", mock.Anything, "Slack", 730, 50).Return(&nvd.SearchResult{Vulnerabilities: []schemas.Vulnerability{}})
	query := `"Slack" security vulnerabilities CVE`
	f.search.On("Search", mock.Anything, query, 5, schemas.SearchDepthAdvanced).Return(mocks.FailedSearch(query, "timeout"))

	got, traces := f.assessor.Assess(context.Background(), "Slack")
	assertInvariants(t, got)
	assert.Equal(t, 0, got.TotalCount)
	assert.Contains(t, got.Summary, "No vulnerabilities found for Slack.")
	assert.Contains(t, got.Summary, "web search unavailable: timeout")
	assert.Len(t, traces, 3)
	f.llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestAssess_ExistenceSearchFailureDoesNotBlock(t *testing.T) {
	f := setupAssessor(t)
	f.search.On("Search", mock.Anything, `"Slack" software`, 5, schemas.SearchDepthBasic).
		Return(mocks.FailedSearch(`"Slack" software`, "rate limited"))
	f.cves.On("Search", mock.Anything, "Slack", 730, 50).Return(&nvd.SearchResult{
		Vulnerabilities: []schemas.Vulnerability{{CVEID: "CVE-2024-1", Severity: schemas.SeverityHigh}},
		TotalResults:    1,
	})

	got, traces := f.assessor.Assess(context.Background(), "Slack")
	require.NotNil(t, got)
	assert.True(t, got.SoftwareExists)
	assert.Equal(t, schemas.ExistenceUnknown, got.ExistenceConfidence)
	assert.Equal(t, 1, got.TotalCount)
	assert.Equal(t, "rate limited", traces[0].Fields["error"])
}

func TestCountMentions(t *testing.T) {
	results := []schemas.SearchResult{
		{Title: "SLACK pricing", Content: "x"},
		{Title: "Other", Content: "we use slack daily"},
		{Title: "Teams", Content: "Microsoft Teams"},
	}
	assert.Equal(t, 2, CountMentions("Slack", results))
	assert.Equal(t, 0, CountMentions("  ", results))
}
