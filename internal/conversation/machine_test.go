package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familymatter/internal/agent"
	"familymatter/internal/audit"
	"familymatter/internal/notify"
	"familymatter/internal/store"
)

// scriptedResponder returns canned replies in order, then repeats the last.
type scriptedResponder struct {
	replies []string
	err     error
	calls   int
}

func (r *scriptedResponder) Respond(ctx context.Context, task agent.Task) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	if len(r.replies) == 0 {
		return "ok", nil
	}
	i := r.calls - 1
	if i >= len(r.replies) {
		i = len(r.replies) - 1
	}
	return r.replies[i], nil
}

type recordingSender struct {
	sent []string
	err  error
}

func (s *recordingSender) Send(ctx context.Context, message string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, message)
	return nil
}

func newTestMachine(t *testing.T, responder agent.Responder, sender notify.ChatSender) (*Machine, *store.Store, int64) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	estateID, err := s.CreateEstate("Morris Stern", "David Stern", "")
	require.NoError(t, err)

	m := New(s, audit.NewLedger(s, nil), responder, sender, Config{
		EstateID:     estateID,
		EstateName:   "Morris Stern",
		ExecutorName: "David",
	}, nil)
	return m, s, estateID
}

func TestOpenDayTransitions(t *testing.T) {
	sender := &recordingSender{}
	m, _, _ := newTestMachine(t, &scriptedResponder{replies: []string{"good morning"}}, sender)

	require.NoError(t, m.OpenDay(context.Background()))
	state, err := m.State()
	require.NoError(t, err)
	assert.Equal(t, StateWaitingForPreference, state)
	assert.Equal(t, []string{"good morning"}, sender.sent)

	// A second trigger while already waiting is ignored.
	require.NoError(t, m.OpenDay(context.Background()))
	state, _ = m.State()
	assert.Equal(t, StateWaitingForPreference, state)
	assert.Len(t, sender.sent, 1)
}

func TestPreferenceSelectionFlow(t *testing.T) {
	sender := &recordingSender{}
	m, s, _ := newTestMachine(t, &scriptedResponder{replies: []string{
		"morning", "1. inventory 2. invitations", "great choice",
	}}, sender)

	ctx := context.Background()
	require.NoError(t, m.OpenDay(ctx))
	require.NoError(t, m.HandleMessage(ctx, "let's work on the inventory"))

	st, err := s.SessionState("telegram")
	require.NoError(t, err)
	assert.Equal(t, StateWaitingForSelection, st.State)
	assert.Equal(t, "1. inventory 2. invitations", st.Answers["options"])

	require.NoError(t, m.HandleMessage(ctx, "option 1"))
	st, _ = s.SessionState("telegram")
	assert.Equal(t, StateConfirmed, st.State)
}

func TestOnboardingBuildsSchedule(t *testing.T) {
	sender := &recordingSender{}
	responder := &scriptedResponder{replies: []string{
		"welcome, first question",
		"q2", "q3", "q4",
		`{"target_end_date": "2026-12-01", "urgency": "urgent", "legal_deadlines": "probate", "special_notes": "Aunt Ruth needs time"}`,
		"all set",
	}}
	m, s, estateID := newTestMachine(t, responder, sender)

	ctx := context.Background()
	require.NoError(t, m.StartOnboarding(ctx))
	state, _ := m.State()
	assert.Equal(t, StateOnboardingQ1, state)

	require.NoError(t, m.HandleMessage(ctx, "we'd like to be done by December, probate closes then"))
	require.NoError(t, m.HandleMessage(ctx, "fairly urgent"))
	require.NoError(t, m.HandleMessage(ctx, "Aunt Ruth will need a lighter touch"))
	require.NoError(t, m.HandleMessage(ctx, "nothing else"))

	// Back to idle with answers cleared.
	st, err := s.SessionState("telegram")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, st.State)

	cfg, err := s.Schedule(estateID)
	require.NoError(t, err)
	assert.True(t, cfg.OnboardingComplete)
	assert.Equal(t, store.UrgencyUrgent, cfg.Urgency)
	require.NotNil(t, cfg.TargetEndDate)
	assert.Equal(t, "2026-12-01", cfg.TargetEndDate.Format("2006-01-02"))

	milestones, err := s.Milestones(estateID)
	require.NoError(t, err)
	require.Len(t, milestones, 7)
	assert.Equal(t, "2026-12-01", milestones[len(milestones)-1].TargetDate.Format("2006-01-02"))

	// The plan's establishment is audited.
	recent, err := s.RecentAuditLog(estateID, 5)
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	assert.Equal(t, "schedule_established", recent[0].ActionType)
}

func TestOnboardingSurvivesResponderOutage(t *testing.T) {
	// Every responder call fails; the onboarding still walks its states and
	// finalizes with the default forward plan.
	m, s, estateID := newTestMachine(t, &scriptedResponder{err: errors.New("model down")}, &recordingSender{})

	ctx := context.Background()
	require.NoError(t, m.StartOnboarding(ctx))
	for _, reply := range []string{"no deadline", "take our time", "no", "nothing"} {
		require.NoError(t, m.HandleMessage(ctx, reply))
	}

	st, _ := s.SessionState("telegram")
	assert.Equal(t, StateIdle, st.State)

	cfg, err := s.Schedule(estateID)
	require.NoError(t, err)
	assert.Equal(t, store.UrgencyNormal, cfg.Urgency)
	assert.Nil(t, cfg.TargetEndDate)

	milestones, err := s.Milestones(estateID)
	require.NoError(t, err)
	assert.Len(t, milestones, 7)
}

func TestOnboardingAccumulatesAnswers(t *testing.T) {
	m, s, _ := newTestMachine(t, nil, nil)

	ctx := context.Background()
	require.NoError(t, m.StartOnboarding(ctx))
	require.NoError(t, m.HandleMessage(ctx, "by spring"))
	require.NoError(t, m.HandleMessage(ctx, "no rush"))

	st, err := s.SessionState("telegram")
	require.NoError(t, err)
	assert.Equal(t, StateOnboardingQ3, st.State)
	assert.Equal(t, "by spring", st.Answers[AnswerDeadline])
	assert.Equal(t, "no rush", st.Answers[AnswerUrgency])
	// The session keeps the raw inbound text, not an internal marker.
	assert.Equal(t, "no rush", st.LastMessage)
}

func TestIdleMessageGetsFallback(t *testing.T) {
	sender := &recordingSender{}
	m, _, _ := newTestMachine(t, nil, sender)

	require.NoError(t, m.HandleMessage(context.Background(), "hello?"))
	require.Len(t, sender.sent, 1)

	state, _ := m.State()
	assert.Equal(t, StateIdle, state)
}
