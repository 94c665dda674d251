package schemas

import (
	"strings"
	"time"
)

// -- Vulnerability Schemas --

// Severity is the normalized severity label of a single vulnerability. Values are
// lowercase so they serialize the same way regardless of which scoring schema
// (CVSS v3.1, v3.0, v2) or extraction path produced them.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityUnknown  Severity = "unknown"
)

// AllSeverities lists every severity tier from most to least severe.
var AllSeverities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityUnknown}

// ParseSeverity normalizes a free-form severity label. Anything that is not a
// known tier maps to SeverityUnknown.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium, "moderate":
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityUnknown
	}
}

func (s Severity) String() string { return string(s) }

// UpdateCadence describes how often the vendor ships security fixes.
type UpdateCadence string

const (
	CadenceFrequent   UpdateCadence = "frequent"
	CadenceModerate   UpdateCadence = "moderate"
	CadenceInfrequent UpdateCadence = "infrequent"
	CadenceUnknown    UpdateCadence = "unknown"
)

// ParseUpdateCadence normalizes a cadence label, defaulting to CadenceUnknown.
func ParseUpdateCadence(s string) UpdateCadence {
	switch c := UpdateCadence(strings.ToLower(strings.TrimSpace(s))); c {
	case CadenceFrequent, CadenceModerate, CadenceInfrequent:
		return c
	default:
		return CadenceUnknown
	}
}

// ExistenceConfidence records how sure the pipeline is that the named software exists.
type ExistenceConfidence string

const (
	ExistenceHigh    ExistenceConfidence = "high"
	ExistenceLow     ExistenceConfidence = "low"
	ExistenceNone    ExistenceConfidence = "none"
	ExistenceUnknown ExistenceConfidence = "unknown"
)

// Vulnerability is one identified weakness. It is treated as immutable once built.
type Vulnerability struct {
	CVEID       string     `json:"cve_id,omitempty"`         // Canonical CVE-style identifier, if known.
	Severity    Severity   `json:"severity"`                 // Normalized severity tier.
	CVSSScore   *float64   `json:"cvss_score,omitempty"`     // Base score in the range 0.0-10.0.
	Description string     `json:"description"`              // Free-text description.
	Published   *time.Time `json:"published_date,omitempty"` // Publication timestamp.
	SourceURL   string     `json:"source_url,omitempty"`     // Where this record was found.
}

// SourceRecord is a raw evidentiary pointer kept for auditability.
type SourceRecord struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// VulnerabilityAssessment aggregates every vulnerability found for one software name.
//
// Always build it with NewVulnerabilityAssessment so that TotalCount,
// SeverityCounts, HasCritical and HasHigh agree with Vulnerabilities.
type VulnerabilityAssessment struct {
	SoftwareName          string              `json:"software_name"`
	Vulnerabilities       []Vulnerability     `json:"vulnerabilities"`
	TotalCount            int                 `json:"total_count"`
	SeverityCounts        map[Severity]int    `json:"severity_counts"`
	HasCritical           bool                `json:"has_critical"`
	HasHigh               bool                `json:"has_high"`
	SecurityUpdateCadence UpdateCadence       `json:"security_update_cadence"`
	Summary               string              `json:"summary"`
	SourceData            []SourceRecord      `json:"source_data"`
	SoftwareExists        bool                `json:"software_exists"`
	ExistenceConfidence   ExistenceConfidence `json:"existence_confidence"`
}

// VulnerabilityAssessmentOptions carries the fields of an assessment that are not
// derived from the vulnerability list.
type VulnerabilityAssessmentOptions struct {
	Cadence             UpdateCadence
	Summary             string
	SourceData          []SourceRecord
	SoftwareExists      bool
	ExistenceConfidence ExistenceConfidence
}

// NewVulnerabilityAssessment builds an assessment and derives its counts.
// When the software is reported as non-existent the vulnerability list is
// discarded, since nothing can be attributed to software that does not exist.
func NewVulnerabilityAssessment(software string, vulns []Vulnerability, opts VulnerabilityAssessmentOptions) *VulnerabilityAssessment {
	if !opts.SoftwareExists {
		vulns = nil
		if opts.ExistenceConfidence != ExistenceLow {
			opts.ExistenceConfidence = ExistenceNone
		}
	}
	if opts.Cadence == "" {
		opts.Cadence = CadenceUnknown
	}
	if opts.ExistenceConfidence == "" {
		opts.ExistenceConfidence = ExistenceUnknown
	}

	list := make([]Vulnerability, len(vulns))
	copy(list, vulns)
	sources := make([]SourceRecord, len(opts.SourceData))
	copy(sources, opts.SourceData)

	counts := make(map[Severity]int, len(AllSeverities))
	for _, s := range AllSeverities {
		counts[s] = 0
	}
	for i := range list {
		list[i].Severity = ParseSeverity(string(list[i].Severity))
		counts[list[i].Severity]++
	}

	return &VulnerabilityAssessment{
		SoftwareName:          software,
		Vulnerabilities:       list,
		TotalCount:            len(list),
		SeverityCounts:        counts,
		HasCritical:           counts[SeverityCritical] > 0,
		HasHigh:               counts[SeverityHigh] > 0,
		SecurityUpdateCadence: opts.Cadence,
		Summary:               opts.Summary,
		SourceData:            sources,
		SoftwareExists:        opts.SoftwareExists,
		ExistenceConfidence:   opts.ExistenceConfidence,
	}
}

// Count returns the number of vulnerabilities in a severity tier.
func (v *VulnerabilityAssessment) Count(s Severity) int {
	if v == nil || v.SeverityCounts == nil {
		return 0
	}
	return v.SeverityCounts[s]
}
