package domain

import (
	"bytes"
	"strings"
	"text/template"
)

// continuationTemplate frames a new message with the transcript of earlier turns.
const continuationTemplate = `Here is the conversation so far:

{{.Transcript}}

Continue from where the conversation left off. New message from the user:

{{.Message}}`

var continuationTmpl = template.Must(template.New("continuation").Parse(continuationTemplate))

// RenderTranscript flattens a message log into "sender: content" lines in log order.
func RenderTranscript(messages []AgentMessage) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(m.Sender))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// BuildPrompt returns message alone, or message framed by the prior
// transcript when priorContext is non-empty.
func BuildPrompt(message, priorContext string) (string, error) {
	if strings.TrimSpace(priorContext) == "" {
		return message, nil
	}
	var buf bytes.Buffer
	err := continuationTmpl.Execute(&buf, struct {
		Transcript string
		Message    string
	}{
		Transcript: priorContext,
		Message:    message,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
