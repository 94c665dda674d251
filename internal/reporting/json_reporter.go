package reporting

import (
	"fmt"
	"io"
	"sync"

	"github.com/xkilldash9x/riskgate/api/schemas"
)

// JSONReporter buffers outputs and writes them on Close: a single object for
// one assessment, an array otherwise.
type JSONReporter struct {
	writer  io.WriteCloser
	mu      sync.Mutex
	outputs []*schemas.AssessmentOutput
}

func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{writer: writer}
}

func (r *JSONReporter) Write(out *schemas.AssessmentOutput) error {
	if out == nil {
		return fmt.Errorf("cannot write a nil assessment")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs = append(r.outputs, out)
	return nil
}

func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var payload any = r.outputs
	switch len(r.outputs) {
	case 0:
		payload = []*schemas.AssessmentOutput{}
	case 1:
		payload = r.outputs[0]
	}

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	encodeErr := enc.Encode(payload)
	closeErr := r.writer.Close()
	if encodeErr != nil {
		return fmt.Errorf("failed to encode JSON report: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
