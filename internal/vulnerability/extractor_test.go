package vulnerability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/mocks"
)

func evidence() []schemas.SearchResult {
	return []schemas.SearchResult{
		{Title: "Slack advisory", URL: "https://slack.com/security", Content: "CVE-2024-1111 in Slack desktop"},
		{Title: "NVD entry", URL: "https://nvd.example/CVE-2023-2222", Content: "Slack token leak"},
	}
}

func score(v float64) *float64 { return &v }

func TestValidate(t *testing.T) {
	candidates := []Candidate{
		{CVEID: "CVE-2024-1111", Severity: "HIGH", CVSSScore: score(8.1), Description: "RCE", SourceNumber: 1, Confidence: "high", Reasoning: "Named in advisory."},
		{CVEID: "CVE-2024-9999", Severity: "critical", SourceNumber: 1, Confidence: "low", Reasoning: "Different product."},
		{CVEID: "CVE-2023-2222", Severity: "moderate", CVSSScore: score(14), SourceNumber: 2, Confidence: "Medium", Reasoning: "Listed in NVD."},
		{CVEID: "CVE-2024-1111", Severity: "high", SourceNumber: 2, Confidence: "high", Reasoning: "Duplicate."},
		{CVEID: "CVE-2024-3333", Severity: "low", SourceNumber: 3, Confidence: "high", Reasoning: "Out of range."},
		{CVEID: "CVE-2024-4444", Severity: "low", SourceNumber: 1, Confidence: "high", Reasoning: "  "},
		{CVEID: "GHSA-xxxx", Severity: "bogus", CVSSScore: score(-1), SourceNumber: 2, Confidence: "high", Reasoning: "Advisory without CVE."},
		{CVEID: "CVE-2024-5555", Severity: "low", SourceNumber: 1, Confidence: "certain", Reasoning: "Unrecognized confidence."},
	}

	got, dropped := Validate(candidates, evidence())
	require.Len(t, got, 3)
	assert.Equal(t, 5, dropped)

	assert.Equal(t, "CVE-2024-1111", got[0].CVEID)
	assert.Equal(t, schemas.SeverityHigh, got[0].Severity)
	assert.Equal(t, "https://slack.com/security", got[0].SourceURL)

	assert.Equal(t, "CVE-2023-2222", got[1].CVEID)
	assert.Equal(t, schemas.SeverityMedium, got[1].Severity)
	assert.Equal(t, 10.0, *got[1].CVSSScore)
	assert.Equal(t, "https://nvd.example/CVE-2023-2222", got[1].SourceURL)

	assert.Empty(t, got[2].CVEID, "malformed ids are blanked, not dropped")
	assert.Equal(t, schemas.SeverityUnknown, got[2].Severity)
	assert.Equal(t, 0.0, *got[2].CVSSScore)
	assert.Equal(t, "No description available", got[2].Description)
}

func TestValidate_NoAliasing(t *testing.T) {
	s := score(5)
	got, _ := Validate([]Candidate{{CVEID: "CVE-2024-1111", CVSSScore: s, SourceNumber: 1, Confidence: "high", Reasoning: "r"}}, evidence())
	*s = 9
	assert.Equal(t, 5.0, *got[0].CVSSScore)
}

func setupExtractor(t *testing.T) (*Extractor, *mocks.MockLLMClient) {
	t.Helper()
	llm := new(mocks.MockLLMClient)
	return NewExtractor(llm, zap.NewNop()), llm
}

func TestExtract_Success(t *testing.T) {
	ex, llm := setupExtractor(t)
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return req.Tier == schemas.TierFast && req.Options.ForceJSONFormat && req.UserPrompt != ""
	})).Return("```json\n"+`{"vulnerabilities":[
		{"cve_id":"CVE-2024-1111","severity":"high","cvss_score":8.1,"description":"RCE","source_number":1,"confidence":"high","reasoning":"Named."},
		{"cve_id":"CVE-2024-2222","severity":"low","source_number":2,"confidence":"low","reasoning":"Unsure."}],
		"security_update_cadence":"Frequent","overall_confidence":"medium"}`+"\n```", nil)

	got := ex.Extract(context.Background(), "Slack", evidence())
	assert.Empty(t, got.Error)
	require.Len(t, got.Vulnerabilities, 1)
	assert.Equal(t, 2, got.Candidates)
	assert.Equal(t, 1, got.Dropped)
	assert.Equal(t, schemas.CadenceFrequent, got.Cadence)
	assert.Equal(t, "medium", got.OverallConfidence)
	llm.AssertExpectations(t)
}

func TestExtract_Failures(t *testing.T) {
	t.Run("model error", func(t *testing.T) {
		ex, llm := setupExtractor(t)
		llm.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("quota"))

		got := ex.Extract(context.Background(), "Slack", evidence())
		assert.Contains(t, got.Error, "quota")
		assert.Empty(t, got.Vulnerabilities)
		assert.NotNil(t, got.Vulnerabilities)
		assert.Equal(t, schemas.CadenceUnknown, got.Cadence)
	})

	t.Run("malformed output", func(t *testing.T) {
		ex, llm := setupExtractor(t)
		llm.On("Generate", mock.Anything, mock.Anything).Return("I cannot help with that.", nil)

		got := ex.Extract(context.Background(), "Slack", evidence())
		assert.Contains(t, got.Error, "invalid model response")
		assert.Empty(t, got.Vulnerabilities)
	})

	t.Run("no evidence skips the model", func(t *testing.T) {
		ex, llm := setupExtractor(t)
		got := ex.Extract(context.Background(), "Slack", nil)
		assert.Empty(t, got.Vulnerabilities)
		llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})
}

func TestBuildExtractionPrompt(t *testing.T) {
	p := BuildExtractionPrompt("Slack", evidence())
	assert.Contains(t, p, "Software: Slack")
	assert.Contains(t, p, "[1] Slack advisory")
	assert.Contains(t, p, "[2] NVD entry")
	assert.Contains(t, p, "URL: https://slack.com/security")
}
