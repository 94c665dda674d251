package criticality

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/riskgate/api/schemas"
)

const classifierSystemPrompt = `You are a business analyst assessing how critical a piece of software is
to a company. Reason step by step before deciding, and fill in every field.

Respond with JSON only, using this schema:
{
  "company_business": "the company's primary business",
  "software_purpose": "what the software does",
  "relevance": "how the software relates to the company's business",
  "impact_if_unavailable": "what would happen if the software disappeared",
  "criticality_level": "low|medium|high",
  "reasoning": "2-3 sentences explaining the level",
  "confidence": "low|medium|high"
}`

// BuildPrompt renders the chain-of-thought classification prompt. The four
// analysis steps come before the level so the level is always backed by them.
func BuildPrompt(company, software string, companyInfo, softwareInfo []schemas.SearchResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "COMPANY: %s\nSOFTWARE: %s\n\n", company, software)
	sb.WriteString("COMPANY CONTEXT:\n")
	writeContext(&sb, companyInfo)
	sb.WriteString("\nSOFTWARE CONTEXT:\n")
	writeContext(&sb, softwareInfo)

	fmt.Fprintf(&sb, `
ANALYSIS PROCESS (think through each step):

STEP 1: COMPANY ANALYSIS
- What is %[1]s's primary business?
- What are their core revenue streams?
- What industry or sector do they operate in?

STEP 2: SOFTWARE ANALYSIS
- What does %[2]s do?
- What is its primary purpose?
- Who typically uses it?

STEP 3: RELEVANCE ASSESSMENT
- How would %[2]s be used at %[1]s?
- Is it core to their operations or supplementary?
- Would losing it significantly impact revenue or operations?

STEP 4: CRITICALITY DETERMINATION
- HIGH: core to revenue or to the security posture.
  Examples: IDE @ Software Company, Identity Management @ Bank, Payment Processor @ E-commerce
- MEDIUM: relevant to productivity but substitutable.
  Examples: Analytics Tool @ Any Company, Project Management @ Tech Company
- LOW: negligible operational impact if absent.
  Examples: Wallpaper App @ Bank, Entertainment Tool @ Enterprise

EXAMPLES:
- Okta Workforce Identity @ Bank -> HIGH (security-critical, regulatory requirement)
- IDE @ Software Company -> HIGH (core productivity tool for the primary business)
- Analytics Tool @ E-commerce -> MEDIUM (helpful insights but not essential)
- Wallpaper App @ Bank -> LOW (no business relevance)

Provide your complete chain-of-thought analysis and final assessment.`, company, software)

	return sb.String()
}

func writeContext(sb *strings.Builder, results []schemas.SearchResult) {
	if len(results) == 0 {
		sb.WriteString("(no information found)\n")
		return
	}
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		title := r.Title
		if title == "" {
			title = "Unknown"
		}
		fmt.Fprintf(sb, "Source: %s\nContent: %s\n", title, r.Content)
	}
}
