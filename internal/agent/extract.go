package agent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"familymatter/internal/schedule"
	"familymatter/internal/store"
)

// ScheduleExtraction is the structured outcome of the onboarding
// conversation.
type ScheduleExtraction struct {
	TargetEndDate  *time.Time
	Urgency        string
	LegalDeadlines string
	SpecialNotes   string
}

// DefaultExtraction is the safe fallback when extraction fails: no target
// date, normal urgency. Finalization must never block on a bad answer.
func DefaultExtraction() ScheduleExtraction {
	return ScheduleExtraction{Urgency: store.UrgencyNormal}
}

type rawExtraction struct {
	TargetEndDate  string `json:"target_end_date"`
	Urgency        string `json:"urgency"`
	LegalDeadlines string `json:"legal_deadlines"`
	SpecialNotes   string `json:"special_notes"`
}

const extractionTask = `Extract schedule information from this onboarding conversation.

Return a JSON object with these fields:
- target_end_date: ISO date string (YYYY-MM-DD) if mentioned, null if not
- urgency: one of "urgent", "normal", "relaxed"
- legal_deadlines: string describing any legal constraints, or null
- special_notes: any accommodation or other notes worth remembering

Return ONLY valid JSON, no other text.`

// ExtractSchedule asks the responder to turn conversational answers into
// structured schedule data. Any failure, including unparsable output,
// degrades to DefaultExtraction rather than surfacing an error.
func ExtractSchedule(ctx context.Context, r Responder, answers map[string]string) ScheduleExtraction {
	if r == nil {
		return DefaultExtraction()
	}
	text, err := r.Respond(ctx, Task{
		Description: extractionTask,
		Context:     Context{Answers: answers},
	})
	if err != nil {
		return DefaultExtraction()
	}

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var raw rawExtraction
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return DefaultExtraction()
	}

	out := ScheduleExtraction{
		Urgency:        store.NormalizeUrgency(raw.Urgency),
		LegalDeadlines: raw.LegalDeadlines,
		SpecialNotes:   raw.SpecialNotes,
	}
	if raw.TargetEndDate != "null" {
		out.TargetEndDate = schedule.ParseTargetDate(raw.TargetEndDate)
	}
	return out
}
