package reporting_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/orchestrator"
	"github.com/xkilldash9x/riskgate/internal/reporting"
)

const testToolVersion = "v1.0.0-test"

func score(f float64) *float64 { return &f }

func sampleOutput() *schemas.AssessmentOutput {
	published := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	vulns := []schemas.Vulnerability{
		{CVEID: "CVE-2025-0001", Severity: schemas.SeverityCritical, CVSSScore: score(9.8), Description: "Remote code execution in the upload handler", Published: &published, SourceURL: "https://nvd.nist.gov/vuln/detail/CVE-2025-0001"},
		{Severity: schemas.SeverityLow, Description: "Verbose error pages"},
	}
	va := schemas.NewVulnerabilityAssessment("Acme Chat/Pro", vulns, schemas.VulnerabilityAssessmentOptions{SoftwareExists: true, ExistenceConfidence: schemas.ExistenceHigh})
	return &schemas.AssessmentOutput{
		RunID:                "run-1",
		Timestamp:            time.Date(2025, 10, 26, 14, 5, 9, 0, time.UTC),
		CompanyName:          "Globex Corp",
		SoftwareName:         "Acme Chat/Pro",
		Decision:             schemas.DecisionDecline,
		DecisionReasoning:    "✗ DECLINED: Acme Chat/Pro has 1 critical.",
		CriticalityLevel:     schemas.CriticalityHigh,
		CriticalityReasoning: "Core messaging.",
		FinalSummary:         "# Risk Assessment Report\n",
		Vulnerabilities:      va.Vulnerabilities,
		SourceURLs:           []schemas.SourceRecord{{Title: "NVD", URL: "https://nvd.nist.gov"}},
		SoftwareVerification: schemas.SoftwareVerification{Exists: true, Confidence: schemas.ExistenceHigh},
		Traces:               []schemas.TraceEntry{schemas.NewTraceEntry("nvd_search", "nvd_api", time.Second).With("results_count", 1)},
	}
}

// -- Factory --

func TestNew_LoggerRequirement(t *testing.T) {
	r, err := reporting.New("json", "stdout", testToolVersion, nil)
	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestNew_Stdout(t *testing.T) {
	for _, format := range []string{"json", "sarif", "markdown"} {
		r, err := reporting.New(format, "", testToolVersion, zap.NewNop())
		require.NoError(t, err, format)
		assert.NotNil(t, r)
	}
}

func TestNew_UnsupportedFormatCreatesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pdf")
	r, err := reporting.New("pdf", path, testToolVersion, zap.NewNop())
	assert.Nil(t, r)
	assert.ErrorContains(t, err, "unsupported output format: pdf")

	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestNew_FileCreationFailure(t *testing.T) {
	r, err := reporting.New("json", t.TempDir(), testToolVersion, zap.NewNop())
	assert.Nil(t, r)
	assert.ErrorContains(t, err, "failed to create output file")
}

// -- Formats --

func TestJSONReporter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	r, err := reporting.New("json", path, testToolVersion, zaptest.NewLogger(t))
	require.NoError(t, err)

	original := sampleOutput()
	require.NoError(t, r.Write(original))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded schemas.AssessmentOutput
	require.NoError(t, json.Unmarshal(data, &decoded))

	// Trace fields come back as float64 after a JSON round trip.
	opts := cmpopts.IgnoreFields(schemas.AssessmentOutput{}, "Traces")
	if diff := cmp.Diff(original, &decoded, opts); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, decoded.Traces, 1)
	assert.Equal(t, "nvd_search", decoded.Traces[0].Step)
}

func TestJSONReporter_MultipleOutputsFormArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	r, err := reporting.New("json", path, testToolVersion, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, r.Write(sampleOutput()))
	require.NoError(t, r.Write(sampleOutput()))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded []schemas.AssessmentOutput
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 2)
}

func TestMarkdownReporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")
	r, err := reporting.New("markdown", path, testToolVersion, zap.NewNop())
	require.NoError(t, err)

	first, second := sampleOutput(), sampleOutput()
	second.FinalSummary = "# Second\n"
	require.NoError(t, r.Write(first))
	require.NoError(t, r.Write(second))
	assert.Error(t, r.Write(nil))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Risk Assessment Report\n\n---\n\n# Second\n", string(data))
}

func TestSARIFReporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.sarif")
	r, err := reporting.New("sarif", path, testToolVersion, zap.NewNop())
	require.NoError(t, err)

	out := sampleOutput()
	out.Vulnerabilities = append(out.Vulnerabilities, schemas.Vulnerability{Severity: schemas.SeverityUnknown, Description: "Another unidentified issue"})
	require.NoError(t, r.Write(out))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var log struct {
		Version string `json:"version"`
		Runs    []struct {
			Tool struct {
				Driver struct {
					Name    string `json:"name"`
					Version string `json:"version"`
					Rules   []struct {
						ID string `json:"id"`
					} `json:"rules"`
				} `json:"driver"`
			} `json:"tool"`
			AutomationDetails struct {
				ID string `json:"id"`
			} `json:"automationDetails"`
			Invocations []struct {
				ExecutionSuccessful bool      `json:"executionSuccessful"`
				EndTimeUTC          time.Time `json:"endTimeUtc"`
			} `json:"invocations"`
			Results []struct {
				RuleID              string            `json:"ruleId"`
				Level               string            `json:"level"`
				Rank                *float64          `json:"rank"`
				PartialFingerprints map[string]string `json:"partialFingerprints"`
				Locations           []struct {
					PhysicalLocation struct {
						ArtifactLocation struct {
							URI string `json:"uri"`
						} `json:"artifactLocation"`
					} `json:"physicalLocation"`
				} `json:"locations"`
			} `json:"results"`
			Properties map[string]any `json:"properties"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(data, &log))

	assert.Equal(t, reporting.SARIFVersion, log.Version)
	require.Len(t, log.Runs, 1)
	run := log.Runs[0]
	assert.Equal(t, reporting.ToolName, run.Tool.Driver.Name)
	assert.Equal(t, testToolVersion, run.Tool.Driver.Version)
	assert.Equal(t, "DECLINE", run.Properties["decision"])
	assert.Equal(t, "Globex Corp", run.Properties["company"])
	assert.Equal(t, "riskgate/run-1", run.AutomationDetails.ID)
	require.Len(t, run.Invocations, 1)
	assert.True(t, run.Invocations[0].ExecutionSuccessful)
	assert.True(t, run.Invocations[0].EndTimeUTC.Equal(out.Timestamp))

	require.Len(t, run.Results, 3)
	assert.Equal(t, "CVE-2025-0001", run.Results[0].RuleID)
	assert.Equal(t, "error", run.Results[0].Level)
	require.Len(t, run.Results[0].Locations, 1)
	assert.Equal(t, "https://nvd.nist.gov/vuln/detail/CVE-2025-0001", run.Results[0].Locations[0].PhysicalLocation.ArtifactLocation.URI)
	require.NotNil(t, run.Results[0].Rank)
	assert.InDelta(t, 98.0, *run.Results[0].Rank, 1e-9)
	assert.Len(t, run.Results[0].PartialFingerprints["riskgateFinding/v1"], 40)
	assert.Nil(t, run.Results[1].Rank)
	assert.NotEqual(t, run.Results[1].PartialFingerprints, run.Results[2].PartialFingerprints)

	assert.Equal(t, "RISKGATE-ACME-CHAT-PRO-UNIDENTIFIED", run.Results[1].RuleID)
	assert.Equal(t, "note", run.Results[1].Level)
	assert.Empty(t, run.Results[1].Locations)

	assert.Equal(t, "RISKGATE-ACME-CHAT-PRO-UNIDENTIFIED-1", run.Results[2].RuleID, "distinct findings must not share a rule")
	assert.Equal(t, "warning", run.Results[2].Level)
	assert.Len(t, run.Tool.Driver.Rules, 3)
}

// -- Files --

func TestReportFileName(t *testing.T) {
	out := sampleOutput()
	assert.Equal(t, "Acme_Chat_Pro_Globex_Corp_20251026_140509.json", reporting.ReportFileName(out, "json"))
	assert.Equal(t, "Acme_Chat_Pro_Globex_Corp_20251026_140509.md", reporting.ReportFileName(out, "markdown"))
	assert.Equal(t, "Acme_Chat_Pro_Globex_Corp_20251026_140509.sarif", reporting.ReportFileName(out, "sarif"))
}

func TestSaveJSON_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "outputs")
	path, err := reporting.SaveJSON(sampleOutput(), dir, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Acme_Chat_Pro_Globex_Corp_20251026_140509.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"decision": "decline"`)
	assert.Contains(t, string(data), `"run_id": "run-1"`)
}

// -- Tables --

func TestRenderSummaryTable(t *testing.T) {
	out := reporting.RenderSummaryTable(sampleOutput())
	for _, want := range []string{"Globex Corp", "Acme Chat/Pro", "DECLINE", "HIGH", "CVE-2025-0001", "CRITICAL", "9.8", "2025-03-01", "Verbose error pages"} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, out, "Remote code execution in the upload handler")

	clean := sampleOutput()
	clean.Vulnerabilities = nil
	assert.NotContains(t, reporting.RenderSummaryTable(clean), "CVSS")
}

func TestRenderBatchTable(t *testing.T) {
	approved := sampleOutput()
	approved.Decision = schemas.DecisionApprove
	results := []orchestrator.BatchResult{
		{Target: orchestrator.Target{Company: "Globex Corp", Software: "Acme Chat/Pro"}, Output: sampleOutput()},
		{Target: orchestrator.Target{Company: "Initech", Software: "Stapler"}, Output: approved},
		{Target: orchestrator.Target{Company: "", Software: "Ghost"}, Err: orchestrator.ErrInvalidInput},
	}
	out := reporting.RenderBatchTable(results)

	assert.Contains(t, out, "1 approved, 1 declined, 1 failed")
	assert.Contains(t, out, "ERROR: company and software names are required")
	assert.Equal(t, 1, strings.Count(out, "APPROVE"))
}
