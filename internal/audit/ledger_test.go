package audit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familymatter/internal/store"
)

func newTestLedger(t *testing.T) (*Ledger, *store.Store, int64, int64) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	estateID, err := s.CreateEstate("Morris Stern", "David Stern", "")
	require.NoError(t, err)
	itemID, err := s.AddItem(estateID, "Ring", "", "", "", 0)
	require.NoError(t, err)

	return NewLedger(s, nil), s, estateID, itemID
}

func TestRecordAndHistory(t *testing.T) {
	ledger, _, estateID, itemID := newTestLedger(t)

	require.NoError(t, ledger.Record(store.AuditEntry{
		EstateID: estateID, ItemID: itemID,
		ActorID: 1, ActorName: "Sarah",
		ActionType: "item_added", PublicSummary: "Sarah added Ring",
	}))
	require.NoError(t, ledger.Record(store.AuditEntry{
		EstateID: estateID, ItemID: itemID,
		ActorID: 2, ActorName: "Ruth",
		ActionType: "claim_recorded", PublicSummary: "Ruth claimed Ring",
	}))

	history, err := ledger.ItemHistory(estateID, itemID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "item_added", history[0].ActionType)
	assert.Equal(t, "claim_recorded", history[1].ActionType)

	recent, err := ledger.RecentActivity(estateID, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "claim_recorded", recent[0].ActionType)
}

func TestAddNoteStaysOutOfAuditContent(t *testing.T) {
	ledger, _, estateID, itemID := newTestLedger(t)

	const secret = "dad promised this to me in 2019"
	noteID, err := ledger.AddNote(itemID, estateID, 1, "Sarah", secret)
	require.NoError(t, err)
	assert.NotZero(t, noteID)

	history, err := ledger.ItemHistory(estateID, itemID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "note_added", history[0].ActionType)
	assert.NotContains(t, history[0].PublicSummary, secret)
	assert.NotContains(t, history[0].Metadata, "content")
	assert.EqualValues(t, store.VisibilityPrivate, history[0].Metadata["visibility"])
}

func TestSetVisibilityAuthorOnly(t *testing.T) {
	ledger, _, estateID, itemID := newTestLedger(t)
	noteID, err := ledger.AddNote(itemID, estateID, 1, "Sarah", "sentimental")
	require.NoError(t, err)

	err = ledger.SetVisibility(noteID, 2, "Ruth", store.VisibilityPublic)
	assert.True(t, errors.Is(err, ErrNotAuthor))

	require.NoError(t, ledger.SetVisibility(noteID, 1, "Sarah", store.VisibilityPublic))

	// Narrowing back down is the author's right too.
	require.NoError(t, ledger.SetVisibility(noteID, 1, "Sarah", store.VisibilityPrivate))

	history, err := ledger.ItemHistory(estateID, itemID)
	require.NoError(t, err)
	// One note_added plus two visibility changes; nothing for Ruth's attempt.
	require.Len(t, history, 3)
	assert.Equal(t, "note_visibility_changed", history[1].ActionType)
	assert.Contains(t, history[1].PublicSummary, "private to public")
	assert.Contains(t, history[2].PublicSummary, "public to private")
	for _, entry := range history {
		assert.NotContains(t, entry.PublicSummary, "sentimental")
	}
}

func TestSetVisibilityUnknownNote(t *testing.T) {
	ledger, _, _, _ := newTestLedger(t)
	err := ledger.SetVisibility(404, 1, "Sarah", store.VisibilityPublic)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestReadNotesVisibilityMatrix(t *testing.T) {
	ledger, s, estateID, itemID := newTestLedger(t)

	add := func(memberID int64, author, content, visibility string) {
		t.Helper()
		noteID, err := ledger.AddNote(itemID, estateID, memberID, author, content)
		require.NoError(t, err)
		if visibility != store.VisibilityPrivate {
			require.NoError(t, s.SetNoteVisibility(noteID, visibility))
		}
	}
	add(1, "Sarah", "private note", store.VisibilityPrivate)
	add(1, "Sarah", "mediator note", store.VisibilityMediator)
	add(1, "Sarah", "morris note", store.VisibilityMorris)
	add(1, "Sarah", "public note", store.VisibilityPublic)

	contents := func(notes []store.IntentNote) []string {
		var out []string
		for _, n := range notes {
			out = append(out, n.Content)
		}
		return out
	}

	// The author sees everything they wrote.
	notes, err := ledger.ReadNotes(itemID, 1, false, false)
	require.NoError(t, err)
	assert.Len(t, notes, 4)

	// Another member sees only public.
	notes, err = ledger.ReadNotes(itemID, 2, false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"public note"}, contents(notes))

	// The coordinator view adds morris-level notes.
	notes, err = ledger.ReadNotes(itemID, 2, true, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"morris note", "public note"}, contents(notes))

	// A mediator sees mediator-level and public.
	notes, err = ledger.ReadNotes(itemID, 2, false, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mediator note", "public note"}, contents(notes))
}
