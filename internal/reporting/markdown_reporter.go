package reporting

import (
	"fmt"
	"io"
	"sync"

	"github.com/xkilldash9x/riskgate/api/schemas"
)

const markdownSeparator = "\n---\n\n"

// MarkdownReporter streams each assessment's final summary as it arrives.
type MarkdownReporter struct {
	writer  io.WriteCloser
	mu      sync.Mutex
	written int
}

func NewMarkdownReporter(writer io.WriteCloser) *MarkdownReporter {
	return &MarkdownReporter{writer: writer}
}

func (r *MarkdownReporter) Write(out *schemas.AssessmentOutput) error {
	if out == nil {
		return fmt.Errorf("cannot write a nil assessment")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.written > 0 {
		if _, err := io.WriteString(r.writer, markdownSeparator); err != nil {
			return fmt.Errorf("failed to write markdown report: %w", err)
		}
	}
	if _, err := io.WriteString(r.writer, out.FinalSummary); err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}
	r.written++
	return nil
}

func (r *MarkdownReporter) Close() error {
	return r.writer.Close()
}
