package vulnerability

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/llmutil"
)

// Candidate is one vulnerability proposed by the model, before validation.
type Candidate struct {
	CVEID        string   `json:"cve_id"`
	Severity     string   `json:"severity"`
	CVSSScore    *float64 `json:"cvss_score"`
	Description  string   `json:"description"`
	SourceNumber int      `json:"source_number"` // 1-based index into the evidence list.
	Confidence   string   `json:"confidence"`    // high, medium or low.
	Reasoning    string   `json:"reasoning"`
}

type analysisOutput struct {
	Vulnerabilities       []Candidate `json:"vulnerabilities"`
	SecurityUpdateCadence string      `json:"security_update_cadence"`
	OverallConfidence     string      `json:"overall_confidence"`
}

// Extraction is the validated result of one extraction pass.
type Extraction struct {
	Vulnerabilities   []schemas.Vulnerability
	Cadence           schemas.UpdateCadence
	OverallConfidence string
	Candidates        int    // Proposed by the model.
	Dropped           int    // Removed by validation.
	Error             string // Set when the model call or its output failed.
}

const extractionSystemPrompt = `You are a security analyst. You read web search results and identify
known vulnerabilities that affect one specific software product.

Rules:
- Only report vulnerabilities that clearly apply to the named product. Other
  products that merely share a word with its name do not count.
- Every vulnerability must cite the search result it came from using
  source_number (the 1-based number shown in brackets) and give a one-sentence
  reasoning tying it to that source.
- confidence is "high" when the source names the product and the CVE together,
  "medium" when the link is likely but indirect, and "low" when unsure.
- severity is one of critical, high, medium, low. Use the CVSS score when given.
- security_update_cadence is one of frequent, moderate, infrequent, unknown.

Respond with JSON only, using this schema:
{
  "vulnerabilities": [
    {"cve_id": "CVE-2024-1234", "severity": "high", "cvss_score": 7.5,
     "description": "...", "source_number": 1, "confidence": "high",
     "reasoning": "..."}
  ],
  "security_update_cadence": "frequent|moderate|infrequent|unknown",
  "overall_confidence": "high|medium|low"
}`

// Extractor turns free-text evidence into validated vulnerability records.
type Extractor struct {
	llm    schemas.LLMClient
	logger *zap.Logger
}

// NewExtractor creates an extractor that calls the fast model tier.
func NewExtractor(llm schemas.LLMClient, logger *zap.Logger) *Extractor {
	return &Extractor{llm: llm, logger: logger.Named("extractor")}
}

// Extract asks the model for candidates and runs them through Validate.
// Model and parsing failures yield an empty extraction with Error set.
func (e *Extractor) Extract(ctx context.Context, software string, evidence []schemas.SearchResult) *Extraction {
	empty := &Extraction{Vulnerabilities: []schemas.Vulnerability{}, Cadence: schemas.CadenceUnknown}
	if len(evidence) == 0 {
		return empty
	}

	raw, err := e.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: extractionSystemPrompt,
		UserPrompt:   BuildExtractionPrompt(software, evidence),
		Tier:         schemas.TierFast,
		Options:      schemas.GenerationOptions{Temperature: 0.1, ForceJSONFormat: true},
	})
	if err != nil {
		e.logger.Warn("Vulnerability extraction call failed", zap.String("software", software), zap.Error(err))
		empty.Error = fmt.Sprintf("extraction failed: %v", err)
		return empty
	}

	out, err := llmutil.ParseJSONResponse[analysisOutput](raw)
	if err != nil {
		e.logger.Warn("Vulnerability extraction returned invalid output", zap.String("software", software), zap.Error(err))
		empty.Error = err.Error()
		return empty
	}

	vulns, dropped := Validate(out.Vulnerabilities, evidence)
	e.logger.Info("Vulnerability extraction complete",
		zap.String("software", software),
		zap.Int("candidates", len(out.Vulnerabilities)),
		zap.Int("kept", len(vulns)),
		zap.Int("dropped", dropped))

	return &Extraction{
		Vulnerabilities:   vulns,
		Cadence:           schemas.ParseUpdateCadence(out.SecurityUpdateCadence),
		OverallConfidence: normalizeConfidence(out.OverallConfidence),
		Candidates:        len(out.Vulnerabilities),
		Dropped:           dropped,
	}
}

// BuildExtractionPrompt numbers the evidence so candidates can cite it.
func BuildExtractionPrompt(software string, evidence []schemas.SearchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Software: %s\n\nSearch results:\n", software)
	for i, r := range evidence {
		fmt.Fprintf(&sb, "\n[%d] %s\nURL: %s\n%s\n", i+1, r.Title, r.URL, r.Content)
	}
	fmt.Fprintf(&sb, "\nList the vulnerabilities that affect %s.", software)
	return sb.String()
}

var cveIDPattern = regexp.MustCompile(`^CVE-\d{4}-\d{4,}$`)

// Validate is the self-critique pass over model candidates. In order it drops
// low-confidence items, drops items without valid provenance, blanks malformed
// CVE ids, removes duplicate ids (first wins) and clamps scores to 0-10.
// It returns the surviving vulnerabilities and how many candidates were dropped.
func Validate(candidates []Candidate, evidence []schemas.SearchResult) ([]schemas.Vulnerability, int) {
	out := make([]schemas.Vulnerability, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	dropped := 0

	for _, c := range candidates {
		// Anything other than high or medium counts as low.
		if conf := normalizeConfidence(c.Confidence); conf != "high" && conf != "medium" {
			dropped++
			continue
		}
		if c.SourceNumber < 1 || c.SourceNumber > len(evidence) || strings.TrimSpace(c.Reasoning) == "" {
			dropped++
			continue
		}

		id := strings.ToUpper(strings.TrimSpace(c.CVEID))
		if !cveIDPattern.MatchString(id) {
			id = ""
		}
		if id != "" {
			if seen[id] {
				dropped++
				continue
			}
			seen[id] = true
		}

		desc := strings.TrimSpace(c.Description)
		if desc == "" {
			desc = "No description available"
		}

		out = append(out, schemas.Vulnerability{
			CVEID:       id,
			Severity:    schemas.ParseSeverity(c.Severity),
			CVSSScore:   clampScore(c.CVSSScore),
			Description: desc,
			SourceURL:   evidence[c.SourceNumber-1].URL,
		})
	}
	return out, dropped
}

func clampScore(s *float64) *float64 {
	if s == nil {
		return nil
	}
	v := *s
	switch {
	case v < 0:
		v = 0
	case v > 10:
		v = 10
	}
	return &v
}

func normalizeConfidence(s string) string {
	switch c := strings.ToLower(strings.TrimSpace(s)); c {
	case "high", "medium", "low":
		return c
	default:
		return "low"
	}
}
