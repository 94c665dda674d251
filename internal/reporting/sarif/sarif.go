// Package sarif models the part of SARIF 2.1.0 that riskgate writes: one run per
// assessment, one rule per CVE, one result per vulnerability finding.
package sarif

import "time"

// Log is the top-level document.
type Log struct {
	Version string `json:"version"`
	Schema  string `json:"$schema"`
	Runs    []*Run `json:"runs"`
}

// Run is one assessment. AutomationDetails.ID carries the assessment run id and
// the property bag carries the decision.
type Run struct {
	Tool              *Tool              `json:"tool"`
	AutomationDetails *AutomationDetails `json:"automationDetails,omitempty"`
	Invocations       []*Invocation      `json:"invocations,omitempty"`
	Results           []*Result          `json:"results"`
	Properties        *PropertyBag       `json:"properties,omitempty"`
}

type Tool struct {
	Driver *ToolComponent `json:"driver"`
}

type ToolComponent struct {
	Name           string                 `json:"name"`
	Version        *string                `json:"version,omitempty"`
	InformationURI *string                `json:"informationUri,omitempty"`
	Rules          []*ReportingDescriptor `json:"rules,omitempty"`
}

// AutomationDetails.ID follows the "category/instance" convention.
type AutomationDetails struct {
	ID string `json:"id"`
}

// Invocation records when the assessment finished and whether it succeeded.
type Invocation struct {
	ExecutionSuccessful bool       `json:"executionSuccessful"`
	EndTimeUTC          *time.Time `json:"endTimeUtc,omitempty"`
}

// ReportingDescriptor is a rule. For NVD findings the ID is the CVE identifier
// and HelpURI points at the advisory.
type ReportingDescriptor struct {
	ID               string                    `json:"id"`
	Name             *string                   `json:"name,omitempty"`
	ShortDescription *MultiformatMessageString `json:"shortDescription,omitempty"`
	FullDescription  *MultiformatMessageString `json:"fullDescription,omitempty"`
	HelpURI          *string                   `json:"helpUri,omitempty"`
	Properties       *PropertyBag              `json:"properties,omitempty"`
}

// Result is one vulnerability. Rank is the CVSS base score scaled to 0-100.
type Result struct {
	RuleID              string            `json:"ruleId"`
	Message             *Message          `json:"message"`
	Level               Level             `json:"level,omitempty"`
	Rank                *float64          `json:"rank,omitempty"`
	Locations           []*Location       `json:"locations,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          *PropertyBag      `json:"properties,omitempty"`
}

type Location struct {
	PhysicalLocation *PhysicalLocation `json:"physicalLocation,omitempty"`
	Message          *Message          `json:"message,omitempty"`
}

type PhysicalLocation struct {
	ArtifactLocation *ArtifactLocation `json:"artifactLocation,omitempty"`
}

type ArtifactLocation struct {
	URI *string `json:"uri,omitempty"`
}

type Message struct {
	Text *string `json:"text,omitempty"`
}

type MultiformatMessageString struct {
	Text     *string `json:"text"`
	Markdown *string `json:"markdown,omitempty"`
}

type PropertyBag map[string]interface{}

type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelNote    Level = "note"
)
