package reporting

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/table"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/orchestrator"
)

var asciiStyle = table.Style{
	Box: table.BoxStyle{
		BottomLeft:       "+",
		BottomRight:      "+",
		BottomSeparator:  "-",
		Left:             "|",
		LeftSeparator:    "+",
		Right:            "|",
		RightSeparator:   "+",
		MiddleHorizontal: "-",
		MiddleSeparator:  "+",
		MiddleVertical:   "|",
		PaddingLeft:      " ",
		PaddingRight:     " ",
		TopLeft:          "+",
		TopRight:         "+",
		TopSeparator:     "-",
		UnfinishedRow:    "+",
	},
	Options: table.Options{
		DrawBorder:      true,
		SeparateColumns: true,
		SeparateHeader:  true,
		SeparateFooter:  true,
	},
}

func newTable(buf *bytes.Buffer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(buf)
	t.SetStyle(asciiStyle)
	return t
}

// RenderSummaryTable renders the headline of one assessment followed by its
// vulnerabilities, if any.
func RenderSummaryTable(out *schemas.AssessmentOutput) string {
	var buf bytes.Buffer

	t := newTable(&buf)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"Company", out.CompanyName})
	t.AppendRow(table.Row{"Software", out.SoftwareName})
	t.AppendRow(table.Row{"Software verified", fmt.Sprintf("%t (%s)", out.SoftwareVerification.Exists, out.SoftwareVerification.Confidence)})
	t.AppendRow(table.Row{"Vulnerabilities", len(out.Vulnerabilities)})
	t.AppendRow(table.Row{"Criticality", strings.ToUpper(string(out.CriticalityLevel))})
	t.AppendFooter(table.Row{"Decision", out.Decision.Upper()})
	t.Render()

	if len(out.Vulnerabilities) == 0 {
		return buf.String()
	}

	v := newTable(&buf)
	v.AppendHeader(table.Row{"#", "CVE", "Severity", "CVSS", "Published", "Description"})
	for i, vuln := range out.Vulnerabilities {
		cvss, published := "-", "-"
		if vuln.CVSSScore != nil {
			cvss = fmt.Sprintf("%.1f", *vuln.CVSSScore)
		}
		if vuln.Published != nil {
			published = vuln.Published.Format("2006-01-02")
		}
		id := vuln.CVEID
		if id == "" {
			id = "-"
		}
		v.AppendRow(table.Row{i + 1, id, strings.ToUpper(string(vuln.Severity)), cvss, published, shorten(vuln.Description, 8)})
	}
	v.Render()
	return buf.String()
}

// RenderBatchTable renders one row per batch target with a decision tally.
func RenderBatchTable(results []orchestrator.BatchResult) string {
	var buf bytes.Buffer
	t := newTable(&buf)
	t.AppendHeader(table.Row{"#", "Company", "Software", "Vulnerabilities", "Criticality", "Decision"})

	var approved, declined, failed int
	for i, r := range results {
		if r.Err != nil || r.Output == nil {
			failed++
			msg := "unknown error"
			if r.Err != nil {
				msg = r.Err.Error()
			}
			t.AppendRow(table.Row{i + 1, r.Target.Company, r.Target.Software, "-", "-", "ERROR: " + msg})
			continue
		}
		if r.Output.Decision == schemas.DecisionApprove {
			approved++
		} else {
			declined++
		}
		t.AppendRow(table.Row{i + 1, r.Output.CompanyName, r.Output.SoftwareName, len(r.Output.Vulnerabilities),
			strings.ToUpper(string(r.Output.CriticalityLevel)), r.Output.Decision.Upper()})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total",
		fmt.Sprintf("%d approved, %d declined, %d failed", approved, declined, failed)})
	t.Render()
	return buf.String()
}

// shorten keeps the first n words of s.
func shorten(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + " ..."
}
