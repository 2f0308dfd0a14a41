package answer

import (
	"fmt"
	"strings"

	"github.com/nstepanov/docqa/internal/retrieval"
	"github.com/nstepanov/docqa/internal/session"
)

const promptPreamble = `You are an assistant answering questions about a private document collection.
Answer using only the numbered context passages below. If the context does not
contain the answer, say you do not know. Be concise.`

// buildPrompt assembles the generation prompt from retrieved chunks, recent
// conversation turns, and the question. Chunks are appended in fused-rank
// order until budget characters of context have been emitted; the chunk that
// crosses the boundary is truncated. It returns the prompt together with the
// IDs of the chunks that contributed context.
func buildPrompt(question string, chunks []retrieval.Chunk, history []session.Turn, budget int) (string, []string) {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\nContext:\n")

	var cited []string
	remaining := budget
	for i, c := range chunks {
		if remaining <= 0 {
			break
		}
		content := c.Content
		if len(content) > remaining {
			content = content[:remaining]
		}
		remaining -= len(content)
		fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, c.ID(), content)
		cited = append(cited, c.ID())
	}

	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", t.Query, t.Answer)
		}
	}

	fmt.Fprintf(&b, "\nQuestion: %s\nAnswer:", question)
	return b.String(), cited
}
