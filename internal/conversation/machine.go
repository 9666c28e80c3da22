// Package conversation is the finite state machine that gates which workflow
// may run next on a chat channel. One inbound event at a time drives it: a
// scheduled trigger or an inbound message. Collaborator failures never block
// a transition; the next scheduled tick retries naturally.
package conversation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"familymatter/internal/agent"
	"familymatter/internal/audit"
	"familymatter/internal/notify"
	"familymatter/internal/schedule"
	"familymatter/internal/store"
)

// Session states.
const (
	StateIdle                 = "idle"
	StateWaitingForPreference = "waiting_for_preference"
	StateWaitingForSelection  = "waiting_for_selection"
	StateConfirmed            = "confirmed"
	StateOnboardingQ1         = "onboarding_q1"
	StateOnboardingQ2         = "onboarding_q2"
	StateOnboardingQ3         = "onboarding_q3"
	StateOnboardingQ4         = "onboarding_q4"
)

// Answer keys accumulated during onboarding.
const (
	AnswerDeadline      = "q1_deadline"
	AnswerUrgency       = "q2_urgency"
	AnswerAccommodation = "q3_accommodation"
	AnswerOther         = "q4_other"
)

const answerOptions = "options"

// Machine routes inbound events for one estate's chat channel.
type Machine struct {
	store        *store.Store
	ledger       *audit.Ledger
	responder    agent.Responder
	sender       notify.ChatSender
	logger       *zap.Logger
	channel      string
	estateID     int64
	estateName   string
	executorName string
	now          func() time.Time
}

// Config wires a Machine to its estate and channel.
type Config struct {
	Channel      string
	EstateID     int64
	EstateName   string
	ExecutorName string
}

// New builds the state machine.
func New(s *store.Store, l *audit.Ledger, responder agent.Responder, sender notify.ChatSender, cfg Config, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Channel == "" {
		cfg.Channel = "telegram"
	}
	return &Machine{
		store:        s,
		ledger:       l,
		responder:    responder,
		sender:       sender,
		logger:       logger,
		channel:      cfg.Channel,
		estateID:     cfg.EstateID,
		estateName:   cfg.EstateName,
		executorName: cfg.ExecutorName,
		now:          time.Now,
	}
}

// State returns the channel's current state name.
func (m *Machine) State() (string, error) {
	st, err := m.store.SessionState(m.channel)
	if err != nil {
		return "", err
	}
	return st.State, nil
}

// OpenDay is the scheduled "open the day" trigger: idle becomes
// waiting_for_preference and the responder greets the executor.
func (m *Machine) OpenDay(ctx context.Context) error {
	st, err := m.store.SessionState(m.channel)
	if err != nil {
		return err
	}
	if st.State != StateIdle && st.State != StateConfirmed {
		m.logger.Debug("open-day trigger ignored", zap.String("state", st.State))
		return nil
	}

	m.speak(ctx, fmt.Sprintf(
		"Send %s a brief, warm morning message for the %s estate and ask what they would like to work on today.",
		m.executorName, m.estateName), nil)

	return m.store.SetSessionState(m.channel, StateWaitingForPreference, "", nil)
}

// StartOnboarding opens the schedule onboarding conversation and moves the
// channel to onboarding_q1.
func (m *Machine) StartOnboarding(ctx context.Context) error {
	m.speak(ctx, fmt.Sprintf(
		"Begin the schedule onboarding conversation with %s for the %s estate. "+
			"Explain you'd like to understand the timeline, then ask the first question: "+
			"is there a target date for completing distribution, or any legal or probate deadlines?",
		m.executorName, m.estateName), nil)

	return m.store.SetSessionState(m.channel, StateOnboardingQ1, "", nil)
}

// HandleMessage routes one inbound message by the channel's current state.
// States outside the known set are inert: the message is acknowledged with a
// fallback response and nothing changes.
func (m *Machine) HandleMessage(ctx context.Context, text string) error {
	st, err := m.store.SessionState(m.channel)
	if err != nil {
		return err
	}
	m.logger.Info("inbound message",
		zap.String("state", st.State),
		zap.Int("length", len(text)))

	switch st.State {
	case StateWaitingForPreference:
		return m.handlePreference(ctx, text)
	case StateWaitingForSelection:
		return m.handleSelection(ctx, st, text)
	case StateOnboardingQ1, StateOnboardingQ2, StateOnboardingQ3, StateOnboardingQ4:
		return m.handleOnboardingReply(ctx, st, text)
	default:
		if m.sender != nil {
			if err := m.sender.Send(ctx, "Got it. I'll check in again tomorrow morning."); err != nil {
				m.logger.Warn("fallback send failed", zap.Error(err))
			}
		}
		return nil
	}
}

func (m *Machine) handlePreference(ctx context.Context, text string) error {
	options := m.speak(ctx, fmt.Sprintf(
		"%s said they'd like to work on: %q. Offer a short numbered set of concrete next steps "+
			"for the %s estate and invite them to pick one.",
		m.executorName, text, m.estateName), nil)

	answers := map[string]string{answerOptions: options}
	return m.store.SetSessionState(m.channel, StateWaitingForSelection, text, answers)
}

func (m *Machine) handleSelection(ctx context.Context, st *store.SessionState, text string) error {
	m.speak(ctx, fmt.Sprintf(
		"%s was shown these options:\n%s\n\nThey chose: %q. Confirm the choice warmly and say what happens next.",
		m.executorName, st.Answers[answerOptions], text), nil)

	return m.store.SetSessionState(m.channel, StateConfirmed, text, st.Answers)
}

func (m *Machine) handleOnboardingReply(ctx context.Context, st *store.SessionState, text string) error {
	answers := st.Answers
	if answers == nil {
		answers = map[string]string{}
	}

	var nextState, nextQuestion string
	switch st.State {
	case StateOnboardingQ1:
		answers[AnswerDeadline] = text
		nextState = StateOnboardingQ2
		nextQuestion = "Acknowledge the answer, then ask: how would you describe the pace — " +
			"is there urgency to wrap this up, or does the family need time to move carefully?"
	case StateOnboardingQ2:
		answers[AnswerUrgency] = text
		nextState = StateOnboardingQ3
		nextQuestion = "Acknowledge the answer, then ask: are there any family members who might " +
			"need extra time or a lighter touch?"
	case StateOnboardingQ3:
		answers[AnswerAccommodation] = text
		nextState = StateOnboardingQ4
		nextQuestion = "Acknowledge what they've shared, then ask one last thing: is there anything " +
			"else about this family or this estate worth knowing before we get started?"
	case StateOnboardingQ4:
		answers[AnswerOther] = text
		return m.finalizeSchedule(ctx, answers)
	}

	m.speak(ctx, nextQuestion, answers)
	return m.store.SetSessionState(m.channel, nextState, text, answers)
}

// finalizeSchedule extracts structured data from the accumulated answers,
// saves the schedule, builds the milestone plan, and returns the channel to
// idle. Extraction failure degrades to safe defaults; it never blocks the
// transition.
func (m *Machine) finalizeSchedule(ctx context.Context, answers map[string]string) error {
	extracted := agent.ExtractSchedule(ctx, m.responder, answers)

	if err := m.store.SaveSchedule(store.ScheduleConfig{
		EstateID:           m.estateID,
		TargetEndDate:      extracted.TargetEndDate,
		Urgency:            extracted.Urgency,
		LegalDeadlines:     extracted.LegalDeadlines,
		Notes:              extracted.SpecialNotes,
		OnboardingComplete: true,
	}); err != nil {
		return err
	}

	plan := schedule.BuildPlan(m.estateID, m.now(), extracted.TargetEndDate, extracted.Urgency)
	if err := m.store.ReplaceMilestones(m.estateID, plan); err != nil {
		return err
	}

	if m.ledger != nil {
		if err := m.ledger.Record(store.AuditEntry{
			EstateID:      m.estateID,
			ActorName:     "Morris",
			ActionType:    "schedule_established",
			PublicSummary: "The estate schedule and milestone plan were established.",
			Metadata:      map[string]any{"urgency": extracted.Urgency},
		}); err != nil {
			m.logger.Warn("failed to audit schedule", zap.Error(err))
		}
	}

	milestones, err := m.store.Milestones(m.estateID)
	if err != nil {
		m.logger.Warn("failed to reload milestones for confirmation", zap.Error(err))
	}
	m.speakWithContext(ctx,
		"The onboarding conversation is complete. Send a warm, concise confirmation summarizing "+
			"the key dates in plain English, and say you'll flag anything that's at risk.",
		agent.Context{
			EstateName:   m.estateName,
			ExecutorName: m.executorName,
			Milestones:   milestones,
			Answers:      answers,
		})

	return m.store.SetSessionState(m.channel, StateIdle, "", nil)
}

// speak asks the responder for text and sends it. Any failure is logged and
// swallowed; the cycle simply produces no message.
func (m *Machine) speak(ctx context.Context, taskDescription string, answers map[string]string) string {
	return m.speakWithContext(ctx, taskDescription, agent.Context{
		EstateName:   m.estateName,
		ExecutorName: m.executorName,
		Answers:      answers,
	})
}

func (m *Machine) speakWithContext(ctx context.Context, taskDescription string, c agent.Context) string {
	if m.responder == nil {
		return ""
	}
	text, err := m.responder.Respond(ctx, agent.Task{Description: taskDescription, Context: c})
	if err != nil {
		m.logger.Warn("responder failed", zap.Error(err))
		return ""
	}
	if m.sender != nil {
		if err := m.sender.Send(ctx, text); err != nil {
			m.logger.Warn("chat send failed", zap.Error(err))
		}
	}
	return text
}
