package nvd

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/riskgate/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	noDescription = "No description available"
	detailURL     = "https://nvd.nist.gov/vuln/detail/"
	// publishedLayout is the timestamp layout NVD uses for published dates and query windows.
	publishedLayout = "2006-01-02T15:04:05.000"
)

// -- NVD 2.0 wire format (subset) --

type apiResponse struct {
	ResultsPerPage  int           `json:"resultsPerPage"`
	StartIndex      int           `json:"startIndex"`
	TotalResults    int           `json:"totalResults"`
	Vulnerabilities []cveEnvelope `json:"vulnerabilities"`
}

type cveEnvelope struct {
	CVE cveItem `json:"cve"`
}

type cveItem struct {
	ID           string        `json:"id"`
	Published    string        `json:"published"`
	Descriptions []description `json:"descriptions"`
	Metrics      Metrics       `json:"metrics"`
}

type description struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

// Metrics holds the CVSS scoring blocks of one CVE. Any of them may be absent.
type Metrics struct {
	V31 []cvssV3Metric `json:"cvssMetricV31"`
	V30 []cvssV3Metric `json:"cvssMetricV30"`
	V2  []cvssV2Metric `json:"cvssMetricV2"`
}

type cvssV3Metric struct {
	CVSSData struct {
		BaseScore    float64 `json:"baseScore"`
		BaseSeverity string  `json:"baseSeverity"`
	} `json:"cvssData"`
}

type cvssV2Metric struct {
	CVSSData struct {
		BaseScore float64 `json:"baseScore"`
	} `json:"cvssData"`
	BaseSeverity string `json:"baseSeverity"`
}

// Page is one parsed NVD response.
type Page struct {
	TotalResults    int
	Vulnerabilities []schemas.Vulnerability
}

// ParseResponse decodes a raw NVD 2.0 payload. It is pure: the same payload
// always yields the same page.
func ParseResponse(payload []byte) (*Page, error) {
	var resp apiResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode NVD response: %w", err)
	}

	page := &Page{
		TotalResults:    resp.TotalResults,
		Vulnerabilities: make([]schemas.Vulnerability, 0, len(resp.Vulnerabilities)),
	}
	for _, env := range resp.Vulnerabilities {
		page.Vulnerabilities = append(page.Vulnerabilities, toVulnerability(env.CVE))
	}
	return page, nil
}

func toVulnerability(item cveItem) schemas.Vulnerability {
	severity, score := ExtractSeverity(item.Metrics)

	v := schemas.Vulnerability{
		CVEID:       item.ID,
		Severity:    severity,
		CVSSScore:   score,
		Description: englishDescription(item.Descriptions),
	}
	if item.ID != "" {
		v.SourceURL = detailURL + item.ID
	}
	if ts, ok := parsePublished(item.Published); ok {
		v.Published = &ts
	}
	return v
}

// ExtractSeverity applies the scoring schemas in priority order v3.1, v3.0, v2.
// The first schema present wins even when a later one is also populated.
func ExtractSeverity(m Metrics) (schemas.Severity, *float64) {
	for _, block := range [][]cvssV3Metric{m.V31, m.V30} {
		if len(block) == 0 {
			continue
		}
		data := block[0].CVSSData
		score := data.BaseScore
		return schemas.ParseSeverity(strings.ToLower(data.BaseSeverity)), &score
	}
	if len(m.V2) > 0 {
		score := m.V2[0].CVSSData.BaseScore
		return V2ScoreToSeverity(score), &score
	}
	return schemas.SeverityUnknown, nil
}

// V2ScoreToSeverity converts a CVSS v2 base score to a label.
func V2ScoreToSeverity(score float64) schemas.Severity {
	switch {
	case score >= 7.0:
		return schemas.SeverityHigh
	case score >= 4.0:
		return schemas.SeverityMedium
	case score > 0:
		return schemas.SeverityLow
	default:
		return schemas.SeverityUnknown
	}
}

func englishDescription(descs []description) string {
	for _, d := range descs {
		if d.Lang == "en" {
			return d.Value
		}
	}
	return noDescription
}

func parsePublished(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{publishedLayout, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
