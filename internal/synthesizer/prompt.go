package synthesizer

import (
	"fmt"
	"strings"

	"github.com/mapwright/docexpert/internal/conversation"
	"github.com/mapwright/docexpert/internal/vectorindex"
)

// systemInstruction fixes the labeling contract the answer must follow.
const systemInstruction = `You are a documentation expert. Answer using ONLY the documentation excerpts provided below and the prior conversation.

ALWAYS label every claim with exactly one of:
  [DOCUMENTED]: information taken directly from the documentation excerpts
  [CONCEPTUAL]: a suggested approach that is not in the documentation
  [UNCERTAIN]: information that cannot be verified in the documentation

When the documentation does not cover the question, say so explicitly and label any suggestion as [CONCEPTUAL].

End every answer with a "### Sources" section listing the documentation URLs you actually used, one per line as "- <url>".`

// composePrompt builds the completion prompt: instruction, documentation
// context with source attribution, prior turns, then the question.
func composePrompt(query string, hits []vectorindex.ScoredChunk, history []conversation.Turn) string {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n\n## Documentation excerpts\n")

	if len(hits) == 0 {
		b.WriteString("\nNo relevant documentation was found for this question. State that clearly and label any guidance as [CONCEPTUAL].\n")
	}
	for _, hit := range hits {
		fmt.Fprintf(&b, "\n### %s (relevance %.0f%%)\nSource: %s\n\n%s\n",
			hit.Chunk.Title, hit.Score*100, hit.Chunk.SourceURL, hit.Chunk.Body)
	}

	if len(history) > 0 {
		b.WriteString("\n## Conversation so far\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "\nUser: %s\nAssistant: %s\n", turn.Query, turn.Response)
		}
	}

	b.WriteString("\n## Question\n\n")
	b.WriteString(query)
	b.WriteString("\n")
	return b.String()
}
