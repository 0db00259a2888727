package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/docverse/core/internal/modules/ai"
	"github.com/docverse/core/internal/modules/retrieval"
)

func buildSystemPrompt(now time.Time) string {
	return strings.Join([]string{
		"You answer questions about a group's document collection.",
		"Ground every answer in the excerpts provided with the question.",
		"When the excerpts do not contain the answer, say so instead of guessing.",
		"Answer in the language of the question.",
		fmt.Sprintf("Today's date is %s.", now.Format("2006-01-02")),
	}, " ")
}

func buildAnswerPrompt(result *retrieval.Result, question string) string {
	var b strings.Builder

	if result != nil && len(result.Items) > 0 {
		b.WriteString("Excerpts from the document collection:\n\n")
		for i, item := range result.Items {
			title := strings.TrimSpace(item.Title)
			if title == "" {
				title = "Untitled document"
			}
			fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, title, strings.TrimSpace(item.Content))
		}
	} else {
		b.WriteString("The document collection produced no relevant excerpts.\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}

// fallbackAnswer is the user-facing text persisted when generation fails
// without producing any content.
func fallbackAnswer(kind ai.ErrorKind) string {
	switch kind {
	case ai.ErrorKindAuth:
		return "The answer service rejected the configured credentials. Please ask an administrator to check the AI provider settings."
	case ai.ErrorKindQuota:
		return "The answer service is over its usage limit right now. Please try again in a little while."
	case ai.ErrorKindTimeout:
		return "Generating the answer took too long and was aborted. Please try again, possibly with a narrower question."
	default:
		return "Something went wrong while generating the answer. Please try again."
	}
}
