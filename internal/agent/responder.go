// Package agent holds the boundary to the natural-language responder. The
// core hands it structured context and a task description and reads back
// free text; it never depends on what happens in between.
package agent

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"familymatter/internal/store"
)

// Context is the structured snapshot a task carries.
type Context struct {
	EstateName   string
	ExecutorName string
	Alerts       []store.Alert
	Milestones   []store.Milestone
	Answers      map[string]string
	Activity     string
}

// Task is one request to the responder.
type Task struct {
	Description string
	Context     Context
}

// Responder produces human-facing text from a structured task.
type Responder interface {
	Respond(ctx context.Context, task Task) (string, error)
}

// GeminiResponder implements Responder against the Gemini API.
type GeminiResponder struct {
	client *genai.Client
	model  string
}

// NewGeminiResponder creates a responder. Model defaults to gemini-2.0-flash.
func NewGeminiResponder(ctx context.Context, apiKey, model string) (*GeminiResponder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiResponder{client: client, model: model}, nil
}

// Respond renders the task context into a prompt and returns the model's
// text. Callers treat any failure as a skipped cycle, never a crash.
func (r *GeminiResponder) Respond(ctx context.Context, task Task) (string, error) {
	prompt := renderPrompt(task)
	resp, err := r.client.Models.GenerateContent(ctx, r.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("responder call failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("responder returned no text")
	}
	return text, nil
}

func renderPrompt(task Task) string {
	var b strings.Builder
	b.WriteString(task.Description)
	c := task.Context
	if c.EstateName != "" {
		fmt.Fprintf(&b, "\n\nEstate: %s\nExecutor: %s", c.EstateName, c.ExecutorName)
	}
	if len(c.Milestones) > 0 {
		b.WriteString("\n\nMilestone plan:")
		for _, m := range c.Milestones {
			date := "TBD"
			if !m.TargetDate.IsZero() {
				date = m.TargetDate.Format("2006-01-02")
			}
			fmt.Fprintf(&b, "\n  %s: %s (%s)", m.Label, date, m.Status)
		}
	}
	if len(c.Alerts) > 0 {
		b.WriteString("\n\nActive alerts:")
		for _, a := range c.Alerts {
			fmt.Fprintf(&b, "\n  [%s] %s", a.Severity, a.Message)
		}
	}
	if len(c.Answers) > 0 {
		b.WriteString("\n\nConversation so far:")
		for k, v := range c.Answers {
			fmt.Fprintf(&b, "\n  %s: %s", k, v)
		}
	}
	if c.Activity != "" {
		b.WriteString("\n\nRecent activity:\n" + c.Activity)
	}
	return b.String()
}
