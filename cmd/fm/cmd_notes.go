package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"familymatter/internal/audit"
)

var (
	noteEstateID int64
	noteItemID   int64
	noteMemberID int64
	noteMember   string
	noteContent  string

	noteVisNoteID    int64
	noteVisMemberID  int64
	noteVisMember    string
	noteVisibilityTo string

	noteListItemID  int64
	noteListViewer  int64
	noteListMorris  bool
	noteListMediate bool
)

// noteCmd manages intent notes on items
var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Intent note commands",
	Long: `Intent notes let a member attach their feelings about an item without
broadcasting them. Notes start private; only the author can widen who
sees one (mediator, morris, or public). Note content never appears in
the audit log.`,
}

var noteAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Attach a private note to an item",
	RunE:  runNoteAdd,
}

var noteVisibilityCmd = &cobra.Command{
	Use:   "visibility",
	Short: "Change who can see a note (author only)",
	RunE:  runNoteVisibility,
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an item's notes visible to a member",
	RunE:  runNoteList,
}

func init() {
	noteAddCmd.Flags().Int64Var(&noteEstateID, "estate", 0, "Estate id (defaults to configured estate)")
	noteAddCmd.Flags().Int64Var(&noteItemID, "item", 0, "Item id (required)")
	noteAddCmd.Flags().Int64Var(&noteMemberID, "member", 0, "Author's member id (required)")
	noteAddCmd.Flags().StringVar(&noteMember, "member-name", "", "Author's name")
	noteAddCmd.Flags().StringVar(&noteContent, "content", "", "Note content (required)")
	noteAddCmd.MarkFlagRequired("item")
	noteAddCmd.MarkFlagRequired("member")
	noteAddCmd.MarkFlagRequired("content")
	noteCmd.AddCommand(noteAddCmd)

	noteVisibilityCmd.Flags().Int64Var(&noteVisNoteID, "note", 0, "Note id (required)")
	noteVisibilityCmd.Flags().Int64Var(&noteVisMemberID, "member", 0, "Requesting member id (required)")
	noteVisibilityCmd.Flags().StringVar(&noteVisMember, "member-name", "", "Requesting member's name")
	noteVisibilityCmd.Flags().StringVar(&noteVisibilityTo, "to", "", "New visibility: private|mediator|morris|public (required)")
	noteVisibilityCmd.MarkFlagRequired("note")
	noteVisibilityCmd.MarkFlagRequired("member")
	noteVisibilityCmd.MarkFlagRequired("to")
	noteCmd.AddCommand(noteVisibilityCmd)

	noteListCmd.Flags().Int64Var(&noteListItemID, "item", 0, "Item id (required)")
	noteListCmd.Flags().Int64Var(&noteListViewer, "member", 0, "Viewing member id (required)")
	noteListCmd.Flags().BoolVar(&noteListMorris, "morris", false, "Viewer acts in the morris role")
	noteListCmd.Flags().BoolVar(&noteListMediate, "mediator", false, "Viewer acts in the mediator role")
	noteListCmd.MarkFlagRequired("item")
	noteListCmd.MarkFlagRequired("member")
	noteCmd.AddCommand(noteListCmd)
}

func runNoteAdd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ledger := audit.NewLedger(st, logger)
	id, err := ledger.AddNote(noteItemID, estateID(noteEstateID), noteMemberID, noteMember, noteContent)
	if err != nil {
		return err
	}
	fmt.Printf("Note %d added (private)\n", id)
	return nil
}

func runNoteList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	notes, err := audit.NewLedger(st, logger).ReadNotes(noteListItemID, noteListViewer, noteListMorris, noteListMediate)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		fmt.Println("No notes visible to this member.")
		return nil
	}
	for _, n := range notes {
		fmt.Printf("%4d  [%s] %s: %s\n", n.ID, n.Visibility, n.MemberName, n.Content)
	}
	return nil
}

func runNoteVisibility(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ledger := audit.NewLedger(st, logger)
	if err := ledger.SetVisibility(noteVisNoteID, noteVisMemberID, noteVisMember, noteVisibilityTo); err != nil {
		return err
	}
	fmt.Printf("Note %d visibility set to %s\n", noteVisNoteID, noteVisibilityTo)
	return nil
}
