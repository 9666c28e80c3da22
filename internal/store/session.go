package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SessionState reads the conversation state for a channel. A channel with no
// prior state starts idle with no accumulated answers.
func (s *Store) SessionState(channel string) (*SessionState, error) {
	row := s.db.QueryRow(
		`SELECT channel, state, COALESCE(last_message,''), COALESCE(answers,'{}'), updated_at
		 FROM conversation_state WHERE channel = ?`, channel,
	)
	var st SessionState
	var answers, updated string
	if err := row.Scan(&st.Channel, &st.State, &st.LastMessage, &answers, &updated); err != nil {
		if err == sql.ErrNoRows {
			return &SessionState{Channel: channel, State: "idle", Answers: map[string]string{}}, nil
		}
		return nil, fmt.Errorf("failed to load session state for %q: %w", channel, err)
	}
	if err := json.Unmarshal([]byte(answers), &st.Answers); err != nil || st.Answers == nil {
		st.Answers = map[string]string{}
	}
	st.UpdatedAt = parseTime(updated)
	return &st, nil
}

// SetSessionState upserts the conversation state for a channel.
func (s *Store) SetSessionState(channel, state, lastMessage string, answers map[string]string) error {
	if answers == nil {
		answers = map[string]string{}
	}
	encoded, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("failed to encode session answers: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO conversation_state (channel, state, last_message, answers, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(channel) DO UPDATE SET
		   state = excluded.state,
		   last_message = excluded.last_message,
		   answers = excluded.answers,
		   updated_at = excluded.updated_at`,
		channel, state, lastMessage, string(encoded), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to set session state for %q: %w", channel, err)
	}
	return nil
}
