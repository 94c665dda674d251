package schemas

import (
	"strings"
	"time"
)

// Decision is the final adoption verdict.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDecline Decision = "decline"
)

func (d Decision) String() string { return string(d) }

// Upper returns the decision label as it appears in reports.
func (d Decision) Upper() string { return strings.ToUpper(string(d)) }

// ChainOfThought groups the rationale fields behind a criticality level.
type ChainOfThought struct {
	CompanyBusiness     string `json:"company_business,omitempty"`
	SoftwarePurpose     string `json:"software_purpose,omitempty"`
	Relevance           string `json:"relevance,omitempty"`
	ImpactIfUnavailable string `json:"impact_if_unavailable,omitempty"`
}

// SoftwareVerification reports the outcome of the existence check.
type SoftwareVerification struct {
	Exists     bool                `json:"exists"`
	Confidence ExistenceConfidence `json:"confidence"`
}

// AssessmentOutput is the finished object graph of one pipeline run, handed to
// the caller and to the persistence collaborators.
type AssessmentOutput struct {
	RunID                string               `json:"run_id"`
	Timestamp            time.Time            `json:"timestamp"`
	CompanyName          string               `json:"company_name"`
	SoftwareName         string               `json:"software_name"`
	Decision             Decision             `json:"decision"`
	DecisionReasoning    string               `json:"decision_reasoning"`
	VulnerabilitySummary string               `json:"vulnerability_summary"`
	CriticalityLevel     Criticality          `json:"criticality_level"`
	CriticalityReasoning string               `json:"criticality_reasoning"`
	ChainOfThought       ChainOfThought       `json:"chain_of_thought"`
	FinalSummary         string               `json:"final_summary"`
	Vulnerabilities      []Vulnerability      `json:"vulnerabilities"`
	SourceURLs           []SourceRecord       `json:"source_urls"`
	SoftwareVerification SoftwareVerification `json:"software_verification"`
	Traces               []TraceEntry         `json:"traces"`

	// The full assessments are kept for callers that need the severity breakdown.
	VulnerabilityAssessment *VulnerabilityAssessment `json:"vulnerability_assessment,omitempty"`
	CriticalityAssessment   *CriticalityAssessment   `json:"criticality_assessment,omitempty"`
}
