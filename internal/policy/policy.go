// Package policy turns a vulnerability assessment and a criticality assessment
// into an APPROVE or DECLINE decision. Everything here is pure: no I/O, no clock.
package policy

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/riskgate/api/schemas"
)

// Decide applies the adoption rules in order, first match wins:
//  1. no vulnerabilities → APPROVE
//  2. MEDIUM or HIGH criticality with only low-severity findings → APPROVE
//  3. anything else → DECLINE
func Decide(vuln *schemas.VulnerabilityAssessment, crit *schemas.CriticalityAssessment) (schemas.Decision, string) {
	if vuln.TotalCount == 0 {
		return schemas.DecisionApprove, fmt.Sprintf(
			"✓ APPROVED: No vulnerabilities found for %s. The software appears to have a clean security record.",
			vuln.SoftwareName)
	}

	low := vuln.Count(schemas.SeverityLow)
	onlyLowRisk := !vuln.HasCritical && !vuln.HasHigh && vuln.Count(schemas.SeverityMedium) == 0 && low > 0

	if onlyLowRisk && (crit.Criticality == schemas.CriticalityMedium || crit.Criticality == schemas.CriticalityHigh) {
		return schemas.DecisionApprove, fmt.Sprintf(
			"✓ APPROVED: %s has %s business criticality for %s and only %d low-risk %s. "+
				"The security risk is acceptable given the business value.",
			vuln.SoftwareName, crit.Criticality, crit.CompanyName, low, plural(low))
	}

	return schemas.DecisionDecline, fmt.Sprintf(
		"✗ DECLINED: %s has %s. With %s business criticality for %s, the security risk outweighs the business benefit.",
		vuln.SoftwareName, riskSummary(vuln), crit.Criticality, crit.CompanyName)
}

// riskSummary lists the tiers that block approval. Low findings only appear
// when nothing else is present; they decline through the criticality check.
func riskSummary(vuln *schemas.VulnerabilityAssessment) string {
	var details []string
	for _, tier := range []struct {
		sev   schemas.Severity
		label string
	}{
		{schemas.SeverityCritical, "critical"},
		{schemas.SeverityHigh, "high"},
		{schemas.SeverityMedium, "medium"},
		{schemas.SeverityUnknown, "unknown severity"},
	} {
		if n := vuln.Count(tier.sev); n > 0 {
			details = append(details, fmt.Sprintf("%d %s", n, tier.label))
		}
	}
	if len(details) == 0 {
		low := vuln.Count(schemas.SeverityLow)
		return fmt.Sprintf("%d low-severity %s", low, plural(low))
	}
	return strings.Join(details, " and ")
}

func plural(n int) string {
	if n == 1 {
		return "vulnerability"
	}
	return "vulnerabilities"
}
