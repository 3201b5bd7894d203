package openai

import (
	"fmt"
	"strings"
)

const relevancePromptTemplate = `You judge whether a passage helps answer a question.

Output ONLY valid JSON of the form {"relevance": N} where N is an integer from 0 (unrelated)
to 10 (directly answers the question). Do not include any preamble, explanation, or text
outside the object.

Question: %s

Passage:
%s`

const followUpPromptTemplate = `Suggest up to %d short follow-up questions a reader might ask next.

Output ONLY valid JSON of the form {"questions": ["...", "..."]}. Each question must be a
single sentence ending in a question mark. Return {"questions": []} if nothing useful comes to mind.

Question: %s

Answer: %s`

// maxPassageChars bounds the passage sent to the relevance judge.
const maxPassageChars = 1200

func buildRelevancePrompt(query, passage string) string {
	if len(passage) > maxPassageChars {
		passage = passage[:maxPassageChars]
	}
	return fmt.Sprintf(relevancePromptTemplate, strings.TrimSpace(query), strings.TrimSpace(passage))
}

func buildFollowUpPrompt(question, answer string, n int) string {
	return fmt.Sprintf(followUpPromptTemplate, n, strings.TrimSpace(question), strings.TrimSpace(answer))
}
