package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"familymatter/internal/audit"
	"familymatter/internal/store"
	"familymatter/internal/tabulator"
)

var (
	itemEstateID    int64
	itemName        string
	itemDescription string
	itemLocation    string
	itemCategory    string
	itemValue       float64
	itemAddedBy     string

	claimEstateID   int64
	claimItemID     int64
	claimMemberID   int64
	claimMemberName string
	claimType       string
	claimPriority   int
	claimNote       string

	resolveEstateID   int64
	resolveItemID     int64
	resolveWinnerID   int64
	resolveWinnerName string
	resolveMethod     string
	resolveValue      float64
	resolveBy         string

	listEstateID int64
	listStatus   string

	historyEstateID int64
	historyItemID   int64
)

// itemCmd manages the shared inventory
var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Inventory commands",
}

var itemAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an item to the inventory",
	RunE:  runItemAdd,
}

var itemListCmd = &cobra.Command{
	Use:   "list",
	Short: "List inventory items",
	RunE:  runItemList,
}

var itemHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show an item's full audit trail, oldest first",
	RunE:  runItemHistory,
}

// claimCmd records a member's claim on an item
var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Record a claim on an inventory item",
	Long: `Records that a member wants, needs, or has a memory attached to an
item. When a second member claims the same item a conflict is flagged in
the audit log.`,
	RunE: runClaim,
}

// resolveCmd records a distribution decision
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Record a distribution decision for an item",
	Long: `Records who an item went to and by what method (unanimous, lottery,
buyout, gifted, donated, sold). The decision itself is made by the
family; this only records it.`,
	RunE: runResolve,
}

func init() {
	itemAddCmd.Flags().Int64Var(&itemEstateID, "estate", 0, "Estate id (defaults to configured estate)")
	itemAddCmd.Flags().StringVar(&itemName, "name", "", "Item name (required)")
	itemAddCmd.Flags().StringVar(&itemDescription, "description", "", "Item description")
	itemAddCmd.Flags().StringVar(&itemLocation, "location", "", "Where the item is")
	itemAddCmd.Flags().StringVar(&itemCategory, "category", "", "Item category")
	itemAddCmd.Flags().Float64Var(&itemValue, "value", 0, "Estimated value")
	itemAddCmd.Flags().StringVar(&itemAddedBy, "by", "", "Who is adding the item")
	itemAddCmd.MarkFlagRequired("name")
	itemCmd.AddCommand(itemAddCmd)

	itemListCmd.Flags().Int64Var(&listEstateID, "estate", 0, "Estate id (defaults to configured estate)")
	itemListCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (unclaimed|claimed|distributed)")
	itemCmd.AddCommand(itemListCmd)

	itemHistoryCmd.Flags().Int64Var(&historyEstateID, "estate", 0, "Estate id (defaults to configured estate)")
	itemHistoryCmd.Flags().Int64Var(&historyItemID, "item", 0, "Item id (required)")
	itemHistoryCmd.MarkFlagRequired("item")
	itemCmd.AddCommand(itemHistoryCmd)

	claimCmd.Flags().Int64Var(&claimEstateID, "estate", 0, "Estate id (defaults to configured estate)")
	claimCmd.Flags().Int64Var(&claimItemID, "item", 0, "Item id (required)")
	claimCmd.Flags().Int64Var(&claimMemberID, "member", 0, "Member id (required)")
	claimCmd.Flags().StringVar(&claimMemberName, "member-name", "", "Member's name")
	claimCmd.Flags().StringVar(&claimType, "type", "want", "Claim type (want|need|memory)")
	claimCmd.Flags().IntVar(&claimPriority, "priority", 0, "Claim priority")
	claimCmd.Flags().StringVar(&claimNote, "note", "", "Note on the claim")
	claimCmd.MarkFlagRequired("item")
	claimCmd.MarkFlagRequired("member")

	resolveCmd.Flags().Int64Var(&resolveEstateID, "estate", 0, "Estate id (defaults to configured estate)")
	resolveCmd.Flags().Int64Var(&resolveItemID, "item", 0, "Item id (required)")
	resolveCmd.Flags().Int64Var(&resolveWinnerID, "winner", 0, "Receiving member id (required)")
	resolveCmd.Flags().StringVar(&resolveWinnerName, "winner-name", "", "Receiving member's name")
	resolveCmd.Flags().StringVar(&resolveMethod, "method", "", "Distribution method (required)")
	resolveCmd.Flags().Float64Var(&resolveValue, "value", 0, "Final value, if sold or appraised")
	resolveCmd.Flags().StringVar(&resolveBy, "by", "", "Who recorded the decision")
	resolveCmd.MarkFlagRequired("item")
	resolveCmd.MarkFlagRequired("winner")
	resolveCmd.MarkFlagRequired("method")
}

// newTabulator builds the inventory service for the CLI commands.
func newTabulator(st *store.Store) *tabulator.Tabulator {
	return tabulator.New(st, audit.NewLedger(st, logger), logger)
}

func runItemAdd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := newTabulator(st).AddItem(estateID(itemEstateID), itemName, itemDescription, itemLocation, itemCategory, itemValue, itemAddedBy)
	if err != nil {
		return err
	}
	fmt.Printf("Item %d added\n", id)
	return nil
}

func runItemList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	items, err := st.Inventory(estateID(listEstateID), listStatus)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No items.")
		return nil
	}
	for _, it := range items {
		line := fmt.Sprintf("%4d  %-12s %s", it.ID, it.Status, it.Name)
		if it.Location != "" {
			line += fmt.Sprintf("  (%s)", it.Location)
		}
		if it.EstimatedValue > 0 {
			line += fmt.Sprintf("  ~$%.0f", it.EstimatedValue)
		}
		fmt.Println(line)
	}
	return nil
}

func runItemHistory(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	history, err := audit.NewLedger(st, logger).ItemHistory(estateID(historyEstateID), historyItemID)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("No history for this item.")
		return nil
	}
	for _, entry := range history {
		fmt.Printf("%s  %-22s %s\n", entry.CreatedAt.Format("2006-01-02 15:04"), entry.ActionType, entry.PublicSummary)
	}
	return nil
}

func runClaim(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	claimants, err := newTabulator(st).RecordClaim(claimItemID, estateID(claimEstateID), claimMemberID, claimMemberName, claimType, claimPriority, claimNote)
	if err != nil {
		return err
	}
	if len(claimants) > 1 {
		fmt.Printf("Claim recorded. This item now has competing claims from: %v\n", claimants)
	} else {
		fmt.Println("Claim recorded.")
	}
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := newTabulator(st).Resolve(resolveItemID, estateID(resolveEstateID), resolveWinnerID, resolveWinnerName, resolveMethod, resolveValue, resolveBy); err != nil {
		return err
	}
	fmt.Println("Distribution recorded.")
	return nil
}
