package ollama

import (
	"fmt"
	"strings"

	"github.com/didembi/documind/internal/core/domain"
)

const answerInstruction = `You are a helpful assistant. Answer the question ONLY from the context below.
If the context does not contain the answer, reply with exactly this sentence, translated into the language of the question:
"` + domain.InsufficientContextAnswer + `"
When you use a passage, cite its location label such as [Page 2] or [Lines 4-9].
Answer in the same language as the question.`

func buildAnswerPrompt(question, contextText string) string {
	return fmt.Sprintf(`%s

Context:
%s

Question: %s

Answer:`, answerInstruction, contextText, strings.TrimSpace(question))
}

const shortSummaryTemplate = `Summarize the document %q.
Write one short overview paragraph, then exactly 5 bullet points with the key points.
Use only the content below and write in the language of the content.

Content:
%s

Summary:`

const longSummaryTemplate = `Write a detailed summary of the document %q with these four sections:
1) Overview
2) Main Topics
3) Key Points
4) Conclusion
Use only the content below and write in the language of the content.

Content:
%s

Summary:`

func buildSummaryPrompt(content string, mode domain.SummaryMode, documentName string) (string, error) {
	name := strings.TrimSpace(documentName)
	if name == "" {
		name = "document"
	}
	switch mode {
	case domain.SummaryShort:
		return fmt.Sprintf(shortSummaryTemplate, name, content), nil
	case domain.SummaryLong:
		return fmt.Sprintf(longSummaryTemplate, name, content), nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "build summary prompt", fmt.Errorf("unknown summary mode %q", mode))
	}
}
