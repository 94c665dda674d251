// internal/llmutil/parser.go
package llmutil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// ErrInvalidResponse marks model output that could not be decoded or failed
// schema checks. Callers treat it as a soft failure and fall back.
var ErrInvalidResponse = errors.New("invalid model response")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fencedRegex extracts the body of a markdown code fence. \x60 is a backtick.
var fencedRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json|JSON)?\\s*(.*?)\\s*\x60\x60\x60")

// ExtractJSON isolates the JSON document inside a model response. It handles
// markdown fences and conversational text surrounding a single object or array.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	if m := fencedRegex.FindStringSubmatch(response); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(response, "{") || strings.HasPrefix(response, "[") {
		return response
	}

	// Prefer an object; fall back to an array.
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		first := strings.Index(response, pair[0])
		last := strings.LastIndex(response, pair[1])
		if first != -1 && last > first {
			return response[first : last+1]
		}
	}
	return response
}

// ParseJSONResponse decodes a model response into T. Every failure wraps
// ErrInvalidResponse.
func ParseJSONResponse[T any](response string) (*T, error) {
	if strings.TrimSpace(response) == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}

	payload := ExtractJSON(response)
	var result T
	if err := json.UnmarshalFromString(payload, &result); err != nil {
		return nil, fmt.Errorf("%w: %s (extracted: %s)", ErrInvalidResponse,
			truncate(err.Error(), 120), truncate(payload, 300))
	}
	return &result, nil
}

// Invalidf builds an ErrInvalidResponse with context, for schema checks done after decoding.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidResponse, fmt.Sprintf(format, args...))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
