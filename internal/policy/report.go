package policy

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/riskgate/api/schemas"
)

// reportTiers is the fixed order of the severity distribution. Unknown is
// counted in the total but not broken out.
var reportTiers = []schemas.Severity{
	schemas.SeverityCritical,
	schemas.SeverityHigh,
	schemas.SeverityMedium,
	schemas.SeverityLow,
}

// GenerateReport formats the final markdown summary. It makes no decisions of
// its own; decision and rationale come from Decide.
func GenerateReport(decision schemas.Decision, rationale string, vuln *schemas.VulnerabilityAssessment, crit *schemas.CriticalityAssessment) string {
	var sb strings.Builder

	sb.WriteString("# Risk Assessment Report\n\n")
	fmt.Fprintf(&sb, "**Company:** %s\n", crit.CompanyName)
	fmt.Fprintf(&sb, "**Software:** %s\n", vuln.SoftwareName)
	fmt.Fprintf(&sb, "**Decision:** %s\n\n", decision.Upper())

	sb.WriteString("## Security Assessment\n")
	fmt.Fprintf(&sb, "%s\n\n", vuln.Summary)
	fmt.Fprintf(&sb, "**Vulnerabilities Found:** %d\n", vuln.TotalCount)
	if vuln.TotalCount > 0 {
		sb.WriteString("**Severity Distribution:**\n")
		for _, sev := range reportTiers {
			if n := vuln.Count(sev); n > 0 {
				fmt.Fprintf(&sb, "  - %s: %d\n", titleCase(string(sev)), n)
			}
		}
	}

	sb.WriteString("\n## Business Criticality Assessment\n")
	fmt.Fprintf(&sb, "**Criticality Level:** %s\n\n", strings.ToUpper(string(crit.Criticality)))
	fmt.Fprintf(&sb, "**Reasoning:** %s\n\n", crit.Reasoning)

	sb.WriteString("## Final Decision\n")
	fmt.Fprintf(&sb, "%s\n", rationale)

	return sb.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
