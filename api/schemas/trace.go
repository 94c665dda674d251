package schemas

import (
	"encoding/json"
	"fmt"
	"time"
)

// -- Trace Schemas --

// TraceEntry records one pipeline step for auditability. It serializes as a flat
// object: {"step": ..., "tool": ..., "elapsed_time": ..., <fields>...}.
type TraceEntry struct {
	Step        string         // Name of the pipeline step (e.g. "nvd_search").
	Tool        string         // External tool or component used (e.g. "nvd_api").
	ElapsedTime time.Duration  // Wall time spent in the step.
	Fields      map[string]any // Step-specific outcome fields.
}

// NewTraceEntry creates a trace entry with an empty field set.
func NewTraceEntry(step, tool string, elapsed time.Duration) TraceEntry {
	return TraceEntry{Step: step, Tool: tool, ElapsedTime: elapsed, Fields: map[string]any{}}
}

// With returns a copy of the entry with one additional field.
func (t TraceEntry) With(key string, value any) TraceEntry {
	fields := make(map[string]any, len(t.Fields)+1)
	for k, v := range t.Fields {
		fields[k] = v
	}
	fields[key] = value
	t.Fields = fields
	return t
}

var reservedTraceKeys = map[string]struct{}{"step": {}, "tool": {}, "elapsed_time": {}}

// MarshalJSON flattens Fields next to the fixed keys. elapsed_time is in seconds.
func (t TraceEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Fields)+3)
	for k, v := range t.Fields {
		if _, reserved := reservedTraceKeys[k]; reserved {
			continue
		}
		out[k] = v
	}
	out["step"] = t.Step
	out["tool"] = t.Tool
	out["elapsed_time"] = t.ElapsedTime.Seconds()
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON.
func (t *TraceEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode trace entry: %w", err)
	}
	entry := TraceEntry{Fields: map[string]any{}}
	for k, v := range raw {
		switch k {
		case "step":
			s, _ := v.(string)
			entry.Step = s
		case "tool":
			s, _ := v.(string)
			entry.Tool = s
		case "elapsed_time":
			secs, _ := v.(float64)
			entry.ElapsedTime = time.Duration(secs * float64(time.Second))
		default:
			entry.Fields[k] = v
		}
	}
	*t = entry
	return nil
}
