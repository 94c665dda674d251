package vulnerability

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/riskgate/api/schemas"
)

// Existence is the outcome of the existence check.
type Existence struct {
	Exists     bool
	Confidence schemas.ExistenceConfidence
	Mentions   int
	Response   *schemas.SearchResponse
}

// existenceQuery is the search issued to confirm a product exists.
func existenceQuery(software string) string {
	return fmt.Sprintf("%q software", software)
}

// VerifyExistence counts search results that mention the software by name.
// Two or more mentions give high confidence, one gives low, none means the
// software is treated as non-existent. A failed search cannot disprove
// existence, so it yields Exists with unknown confidence.
func VerifyExistence(ctx context.Context, client schemas.SearchClient, software string, maxResults int) Existence {
	resp := client.Search(ctx, existenceQuery(software), maxResults, schemas.SearchDepthBasic)
	if resp == nil {
		resp = &schemas.SearchResponse{Error: "search returned no response"}
	}
	if resp.Error != "" {
		return Existence{Exists: true, Confidence: schemas.ExistenceUnknown, Response: resp}
	}

	mentions := CountMentions(software, resp.Results)
	ex := Existence{Mentions: mentions, Response: resp}
	switch {
	case mentions >= 2:
		ex.Exists, ex.Confidence = true, schemas.ExistenceHigh
	case mentions == 1:
		ex.Exists, ex.Confidence = true, schemas.ExistenceLow
	default:
		ex.Exists, ex.Confidence = false, schemas.ExistenceNone
	}
	return ex
}

// CountMentions returns how many results name the software in their title or content.
func CountMentions(software string, results []schemas.SearchResult) int {
	name := strings.ToLower(strings.TrimSpace(software))
	if name == "" {
		return 0
	}
	n := 0
	for _, r := range results {
		if strings.Contains(strings.ToLower(r.Title), name) || strings.Contains(strings.ToLower(r.Content), name) {
			n++
		}
	}
	return n
}
