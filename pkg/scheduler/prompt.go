package scheduler

import (
	"fmt"
	"strings"

	"github.com/ultrai-run/ultrai/pkg/gateway"
)

const peersInstruction = "Do not assume any response is true. Review your peers' INITIAL drafts. " +
	"Revise your answer accordingly. List contradictions you resolved and what changed."

const peerDraftTruncateChars = 500

// BuildInitialPrompt returns the R1 prompt builder: every model receives
// an identical independent-draft request.
func BuildInitialPrompt(query string) PromptBuilder {
	return func(model string) []gateway.Message {
		return []gateway.Message{
			{Role: "system", Content: "independent draft round"},
			{Role: "user", Content: query},
		}
	}
}

// BuildMetaPrompt returns the R2 prompt builder: every model receives the
// query plus a peers block built from the non-error INITIAL records,
// truncated per spec section 4.6.
func BuildMetaPrompt(query string, initialRecords []Record) PromptBuilder {
	peers := peersBlock(initialRecords)
	user := query + "\n\n" + peersInstruction + "\n\n" + peers

	return func(model string) []gateway.Message {
		return []gateway.Message{
			{Role: "system", Content: "META revision round (R2)"},
			{Role: "user", Content: user},
		}
	}
}

func peersBlock(records []Record) string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		if r.Error {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", r.Model, truncate(r.Text, peerDraftTruncateChars)))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
