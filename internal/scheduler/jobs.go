package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"familymatter/internal/agent"
	"familymatter/internal/conversation"
	"familymatter/internal/notify"
	"familymatter/internal/steward"
	"familymatter/internal/store"
)

// nudgeEveryDays spaces out join reminders to pending members.
const nudgeEveryDays = 3

// EstateJobs builds the standard job set for one estate: the daily briefing
// and sweep, the suggestion and reminder polls, and the inbound chat poll.
type EstateJobs struct {
	Store     *store.Store
	Steward   *steward.Steward
	Machine   *conversation.Machine
	Responder agent.Responder
	Chat      *notify.TelegramClient
	Email     notify.EmailSender

	EstateID     int64
	EstateName   string
	ExecutorName string

	Logger *zap.Logger

	now func() time.Time
}

// Register adds every applicable job to the runner. Jobs whose collaborator
// is not configured (no chat client, no email sender) are skipped.
func (e *EstateJobs) Register(r *Runner, cfg JobTimes) error {
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}

	jobs := []Job{
		{Name: "morning_briefing", At: cfg.BriefingTime, Run: e.MorningBriefing},
		{Name: "steward_sweep", At: cfg.SweepTime, Run: e.RunSweep},
		{Name: "suggestion_notify", Interval: time.Duration(cfg.SuggestionPollMinutes) * time.Minute, Run: e.NotifySuggestions},
		{Name: "join_reminders", Interval: time.Minute, Run: e.SendJoinReminders},
	}
	if e.Chat != nil && e.Machine != nil {
		jobs = append(jobs, Job{
			Name:     "chat_poll",
			Interval: time.Duration(cfg.ChatPollSeconds) * time.Second,
			Run:      e.PollChat,
		})
	}
	for _, job := range jobs {
		if err := r.Add(job); err != nil {
			return err
		}
	}
	return nil
}

// JobTimes carries the trigger configuration for Register.
type JobTimes struct {
	BriefingTime          string
	SweepTime             string
	SuggestionPollMinutes int
	ChatPollSeconds       int
}

// Startup runs the one-time checks when the runtime comes up: if the estate
// has never completed schedule onboarding, the onboarding conversation opens.
func (e *EstateJobs) Startup(ctx context.Context) error {
	if e.Machine == nil {
		return nil
	}
	_, err := e.Store.Schedule(e.EstateID)
	if errors.Is(err, store.ErrNotFound) {
		return e.Machine.StartOnboarding(ctx)
	}
	return err
}

// RunSweep runs the steward sweep for the estate.
func (e *EstateJobs) RunSweep(ctx context.Context) error {
	alerts, err := e.Steward.Sweep(ctx, e.EstateID)
	if err != nil {
		return err
	}
	e.Logger.Info("sweep complete",
		zap.Int64("estate_id", e.EstateID),
		zap.Int("active_alerts", len(alerts)))
	return nil
}

// MorningBriefing composes the daily summary from the current alerts and
// milestones and sends it to the executor chat. When the responder is down
// the plain formatted alert list goes out instead.
func (e *EstateJobs) MorningBriefing(ctx context.Context) error {
	if e.Chat == nil {
		return nil
	}

	alerts, err := e.Store.ActiveAlerts(e.EstateID)
	if err != nil {
		return fmt.Errorf("failed to load alerts: %w", err)
	}
	milestones, err := e.Store.Milestones(e.EstateID)
	if err != nil {
		return fmt.Errorf("failed to load milestones: %w", err)
	}
	recent, err := e.Store.RecentAuditLog(e.EstateID, 10)
	if err != nil {
		return fmt.Errorf("failed to load recent activity: %w", err)
	}

	message := ""
	if e.Responder != nil {
		text, err := e.Responder.Respond(ctx, agent.Task{
			Description: "Compose a short good-morning briefing for the executor covering what needs attention today and recent family activity.",
			Context: agent.Context{
				EstateName:   e.EstateName,
				ExecutorName: e.ExecutorName,
				Alerts:       alerts,
				Milestones:   milestones,
				Activity:     summarizeActivity(recent),
			},
		})
		if err != nil {
			e.Logger.Warn("briefing responder failed, sending plain summary", zap.Error(err))
		} else {
			message = text
		}
	}
	if message == "" {
		message = steward.FormatAlerts(alerts)
	}
	if err := e.Chat.Send(ctx, message); err != nil {
		return err
	}

	// The briefing opens the day: the session leaves idle so the executor's
	// reply starts the preference workflow instead of falling through.
	if e.Machine != nil {
		if err := e.Machine.OpenDay(ctx); err != nil {
			e.Logger.Warn("failed to open the day", zap.Error(err))
		}
	}
	return nil
}

// NotifySuggestions surfaces each pending family suggestion to the executor
// once, flipping the persisted notified flag only after a successful send.
func (e *EstateJobs) NotifySuggestions(ctx context.Context) error {
	if e.Chat == nil {
		return nil
	}
	pending, err := e.Store.UnnotifiedSuggestions(e.EstateID)
	if err != nil {
		return err
	}
	for _, sug := range pending {
		msg := fmt.Sprintf("%s suggested adding %q to the inventory", sug.SuggestedByName, sug.Name)
		if sug.Description != "" {
			msg += ": " + sug.Description
		}
		if err := e.Chat.Send(ctx, msg); err != nil {
			e.Logger.Warn("suggestion notification failed",
				zap.Int64("suggestion_id", sug.ID), zap.Error(err))
			continue
		}
		if err := e.Store.MarkSuggestionNotified(sug.ID); err != nil {
			e.Logger.Warn("failed to mark suggestion notified",
				zap.Int64("suggestion_id", sug.ID), zap.Error(err))
		}
	}
	return nil
}

// SendJoinReminders emails pending members who have not been nudged recently.
func (e *EstateJobs) SendJoinReminders(ctx context.Context) error {
	if e.Email == nil {
		return nil
	}
	pending, err := e.Store.PendingMembers(e.EstateID)
	if err != nil {
		return err
	}
	now := e.now()
	for _, m := range pending {
		if m.Email == "" {
			continue
		}
		last := m.InvitedAt
		if m.LastNudgeAt.After(last) {
			last = m.LastNudgeAt
		}
		if last.IsZero() || int(now.Sub(last).Hours()/24) < nudgeEveryDays {
			continue
		}
		days := int(now.Sub(m.InvitedAt).Hours() / 24)
		subject, body := notify.ReminderBody(m.Name, e.EstateName, m.JoinCode, days)
		if err := e.Email.Send(ctx, m.Email, subject, body); err != nil {
			e.Logger.Warn("join reminder failed",
				zap.Int64("member_id", m.ID), zap.Error(err))
			continue
		}
		if err := e.Store.TouchMemberNudge(m.ID); err != nil {
			e.Logger.Warn("failed to record nudge",
				zap.Int64("member_id", m.ID), zap.Error(err))
		}
	}
	return nil
}

// PollChat pulls the latest inbound executor message, routes it through the
// conversation machine, and acknowledges the update offset.
func (e *EstateJobs) PollChat(ctx context.Context) error {
	update, err := e.Chat.Latest(ctx)
	if err != nil {
		return err
	}
	if update == nil {
		return nil
	}
	if strings.TrimSpace(update.Text) != "" {
		if err := e.Machine.HandleMessage(ctx, update.Text); err != nil {
			e.Logger.Warn("message handling failed", zap.Error(err))
		}
	}
	return e.Chat.Ack(ctx, update.UpdateID)
}

func summarizeActivity(entries []store.AuditEntry) string {
	if len(entries) == 0 {
		return "No recent activity."
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, fmt.Sprintf("%s: %s", entry.CreatedAt.Format("Jan 2"), entry.PublicSummary))
	}
	return strings.Join(lines, "\n")
}
