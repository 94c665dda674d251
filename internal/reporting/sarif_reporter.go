package reporting

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/reporting/sarif"
)

const (
	ToolName     = "riskgate"
	ToolInfoURI  = "https://github.com/xkilldash9x/riskgate"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"

	fingerprintKey = "riskgateFinding/v1"
)

// ruleIDSanitizer keeps alphanumerics, underscore and dot; every other run of
// characters collapses into one hyphen.
var ruleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.]+`)

// RuleFingerprint identifies a rule definition by its content.
type RuleFingerprint string

func calculateFingerprint(v schemas.Vulnerability) RuleFingerprint {
	data := struct {
		CVEID       string
		Description string
	}{v.CVEID, v.Description}

	h := sha1.New()
	_ = json.NewEncoder(h).Encode(data)
	return RuleFingerprint(hex.EncodeToString(h.Sum(nil)))
}

// SARIFReporter emits one SARIF run per assessment, with each vulnerability as
// a result. It is thread safe.
type SARIFReporter struct {
	writer      io.WriteCloser
	toolVersion string
	logger      *zap.Logger
	log         *sarif.Log

	mu                 sync.Mutex
	rulesByFingerprint map[RuleFingerprint]string
	ruleIDUsage        map[string]int
}

// NewSARIFReporter takes ownership of writer.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string, logger *zap.Logger) *SARIFReporter {
	return &SARIFReporter{
		writer:      writer,
		toolVersion: toolVersion,
		logger:      logger.Named("sarif_reporter"),
		log: &sarif.Log{
			Version: SARIFVersion,
			Schema:  SARIFSchema,
			Runs:    []*sarif.Run{},
		},
		rulesByFingerprint: make(map[RuleFingerprint]string),
		ruleIDUsage:        make(map[string]int),
	}
}

func (r *SARIFReporter) newRun(out *schemas.AssessmentOutput) *sarif.Run {
	finished := out.Timestamp.UTC()
	return &sarif.Run{
		AutomationDetails: &sarif.AutomationDetails{ID: ToolName + "/" + out.RunID},
		Invocations: []*sarif.Invocation{{
			ExecutionSuccessful: true,
			EndTimeUTC:          &finished,
		}},
		Tool: &sarif.Tool{
			Driver: &sarif.ToolComponent{
				Name:           ToolName,
				Version:        pString(r.toolVersion),
				InformationURI: pString(ToolInfoURI),
				Rules:          []*sarif.ReportingDescriptor{},
			},
		},
		Results: []*sarif.Result{},
		Properties: &sarif.PropertyBag{
			"run_id":             out.RunID,
			"company":            out.CompanyName,
			"software":           out.SoftwareName,
			"decision":           out.Decision.Upper(),
			"decision_reasoning": out.DecisionReasoning,
			"criticality":        string(out.CriticalityLevel),
			"software_exists":    out.SoftwareVerification.Exists,
		},
	}
}

// Write converts an assessment into a SARIF run.
func (r *SARIFReporter) Write(out *schemas.AssessmentOutput) error {
	if out == nil {
		return fmt.Errorf("cannot write a nil assessment")
	}
	startTime := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.newRun(out)
	for _, v := range out.Vulnerabilities {
		ruleID := r.ensureRule(run, out.SoftwareName, v)

		message := v.Description
		if message == "" {
			message = fmt.Sprintf("%s vulnerability in %s", v.Severity, out.SoftwareName)
		}
		props := sarif.PropertyBag{"severity": string(v.Severity)}
		if v.CVSSScore != nil {
			props["cvss_score"] = *v.CVSSScore
		}
		result := &sarif.Result{
			RuleID:              ruleID,
			Message:             &sarif.Message{Text: pString(message)},
			Level:               mapSeverityToSARIFLevel(v.Severity),
			Locations:           createLocations(v),
			PartialFingerprints: map[string]string{fingerprintKey: string(calculateFingerprint(v))},
			Properties:          &props,
		}
		if v.CVSSScore != nil {
			rank := *v.CVSSScore * 10
			result.Rank = &rank
		}
		run.Results = append(run.Results, result)
	}
	r.log.Runs = append(r.log.Runs, run)

	r.logger.Debug("Wrote assessment to SARIF buffer",
		zap.String("software", out.SoftwareName),
		zap.Int("results", len(run.Results)),
		zap.Duration("duration", time.Since(startTime)))
	return nil
}

// Close writes the SARIF log and closes the writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("Finalizing SARIF report", zap.Int("runs", len(r.log.Runs)))

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	encodeErr := encoder.Encode(r.log)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode SARIF log to JSON", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

func sanitizeRuleName(name string) string {
	sanitized := strings.Trim(ruleIDSanitizer.ReplaceAllString(strings.ToUpper(name), "-"), "-")
	if sanitized == "" {
		return "UNKNOWN"
	}
	return sanitized
}

// ensureRule registers a rule for v in run and returns its ID. CVEs use their
// identifier; unidentified findings get a per-software ID with a numeric
// suffix on collision. Must be called while holding the mutex.
func (r *SARIFReporter) ensureRule(run *sarif.Run, software string, v schemas.Vulnerability) string {
	fingerprint := calculateFingerprint(v)
	if ruleID, exists := r.rulesByFingerprint[fingerprint]; exists {
		if !hasRule(run, ruleID) {
			run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, newRule(ruleID, v))
		}
		return ruleID
	}

	baseRuleID := v.CVEID
	if baseRuleID == "" {
		baseRuleID = "RISKGATE-" + sanitizeRuleName(software) + "-UNIDENTIFIED"
	}
	usage := r.ruleIDUsage[baseRuleID]
	r.ruleIDUsage[baseRuleID] = usage + 1

	ruleID := baseRuleID
	if usage > 0 {
		ruleID = fmt.Sprintf("%s-%d", baseRuleID, usage)
	}

	run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, newRule(ruleID, v))
	r.rulesByFingerprint[fingerprint] = ruleID
	return ruleID
}

func hasRule(run *sarif.Run, id string) bool {
	for _, rule := range run.Tool.Driver.Rules {
		if rule.ID == id {
			return true
		}
	}
	return false
}

func newRule(id string, v schemas.Vulnerability) *sarif.ReportingDescriptor {
	rule := &sarif.ReportingDescriptor{
		ID:               id,
		Name:             pString(id),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(id)},
		FullDescription:  &sarif.MultiformatMessageString{Text: pString(v.Description)},
		Properties: &sarif.PropertyBag{
			"tags":     []string{"security", "vulnerability"},
			"severity": string(v.Severity),
		},
	}
	if v.SourceURL != "" {
		rule.HelpURI = pString(v.SourceURL)
	}
	return rule
}

func createLocations(v schemas.Vulnerability) []*sarif.Location {
	if v.SourceURL == "" {
		return nil
	}
	return []*sarif.Location{{
		PhysicalLocation: &sarif.PhysicalLocation{
			ArtifactLocation: &sarif.ArtifactLocation{URI: pString(v.SourceURL)},
		},
		Message: &sarif.Message{Text: pString("Reported at " + v.SourceURL)},
	}}
}

// mapSeverityToSARIFLevel treats unknown severity as a warning, since it blocks approval.
func mapSeverityToSARIFLevel(severity schemas.Severity) sarif.Level {
	switch severity {
	case schemas.SeverityCritical, schemas.SeverityHigh:
		return sarif.LevelError
	case schemas.SeverityMedium, schemas.SeverityUnknown:
		return sarif.LevelWarning
	default:
		return sarif.LevelNote
	}
}

func pString(s string) *string {
	return &s
}
