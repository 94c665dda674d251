package schemas

import (
	"fmt"
	"strings"
)

// -- Criticality Schemas --

// Criticality is the business importance of a piece of software to a company.
type Criticality string

const (
	CriticalityLow    Criticality = "low"
	CriticalityMedium Criticality = "medium"
	CriticalityHigh   Criticality = "high"
)

// ReasoningMaxLength caps every surfaced criticality rationale.
const ReasoningMaxLength = 500

// ParseCriticality converts a label into a Criticality, rejecting unknown values.
func ParseCriticality(s string) (Criticality, error) {
	switch c := Criticality(strings.ToLower(strings.TrimSpace(s))); c {
	case CriticalityLow, CriticalityMedium, CriticalityHigh:
		return c, nil
	default:
		return "", fmt.Errorf("unknown criticality level %q", s)
	}
}

// Rank orders criticality levels: low < medium < high. Unknown values rank 0.
func (c Criticality) Rank() int {
	switch c {
	case CriticalityLow:
		return 1
	case CriticalityMedium:
		return 2
	case CriticalityHigh:
		return 3
	default:
		return 0
	}
}

func (c Criticality) String() string { return string(c) }

// CriticalityAssessment is the result for one (company, software) pair.
type CriticalityAssessment struct {
	CompanyName  string      `json:"company_name"`
	SoftwareName string      `json:"software_name"`
	Criticality  Criticality `json:"criticality"`
	Reasoning    string      `json:"reasoning"`

	// Chain-of-thought fields.
	CompanyBusiness     string `json:"company_business,omitempty"`
	SoftwarePurpose     string `json:"software_purpose,omitempty"`
	Relevance           string `json:"relevance,omitempty"`
	ImpactIfUnavailable string `json:"impact_if_unavailable,omitempty"`
}

// CriticalityAnalysis is the structured response a classification backend must return.
type CriticalityAnalysis struct {
	CompanyBusiness     string `json:"company_business"`
	SoftwarePurpose     string `json:"software_purpose"`
	Relevance           string `json:"relevance"`
	ImpactIfUnavailable string `json:"impact_if_unavailable"`
	CriticalityLevel    string `json:"criticality_level"`
	Reasoning           string `json:"reasoning"`
	Confidence          string `json:"confidence,omitempty"`
}

// ConsensusVote is one backend's opinion inside the consensus engine.
type ConsensusVote struct {
	Model       string      `json:"model"`
	Criticality Criticality `json:"criticality"`
	Reasoning   string      `json:"reasoning"`
	Success     bool        `json:"success"`

	// Analysis holds the full structured response of a successful vote.
	Analysis *CriticalityAnalysis `json:"-"`
}

// Truncate shortens s to at most max bytes without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
