package llm

import (
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Amit95688/TDS/internal/delivery/server/ports"
)

const systemPrompt = `You are a senior front-end engineer. You write complete, self-contained
single-file web applications: one index.html with inline CSS and JavaScript, loading
libraries only from public CDNs. The page is served from GitHub Pages, so it must work
as static content with relative paths. Reply with the HTML document only.`

func generateMessages(req ports.GenerationRequest) []openai.ChatCompletionMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\nBrief:\n%s\n", req.TaskID, strings.TrimSpace(req.Brief))
	writeList(&b, "The page will be evaluated against these checks", req.Checks)
	writeList(&b, "These files are committed next to index.html; load them by relative path", req.Attachments)

	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: b.String()},
	}
}

func reviseMessages(req ports.RevisionRequest) []openai.ChatCompletionMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\nCurrent index.html:\n```html\n%s\n```\n\n", req.TaskID, strings.TrimSpace(req.ExistingSource))
	fmt.Fprintf(&b, "Requested changes:\n%s\n", strings.TrimSpace(req.Feedback))
	writeList(&b, "The revised page will be evaluated against these checks", req.Checks)
	b.WriteString("\nKeep working features intact and return the full updated document.\n")

	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: b.String()},
	}
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", heading)
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			fmt.Fprintf(b, "- %s\n", item)
		}
	}
}
