package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"familymatter/internal/config"
	"familymatter/internal/steward"
	"familymatter/internal/store"
)

var (
	sweepEstateID  int64
	statusEstateID int64
)

// sweepCmd runs one steward sweep on demand
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a steward sweep and print the active alerts",
	RunE:  runSweep,
}

// statusCmd summarizes the estate
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show estate status: milestones, alerts, and conflicts",
	RunE:  runStatus,
}

func init() {
	sweepCmd.Flags().Int64Var(&sweepEstateID, "estate", 0, "Estate id (defaults to configured estate)")
	statusCmd.Flags().Int64Var(&statusEstateID, "estate", 0, "Estate id (defaults to configured estate)")
}

func runSweep(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	thresholds := config.NewThresholdSource(cfg.Sweep)
	sw := steward.New(st, logger, thresholds.Current)
	alerts, err := sw.Sweep(cmd.Context(), estateID(sweepEstateID))
	if err != nil {
		return err
	}
	fmt.Println(steward.FormatAlerts(alerts))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	id := estateID(statusEstateID)
	estate, err := st.GetEstate(id)
	if err != nil {
		return err
	}
	fmt.Printf("Estate of %s (executor %s, %s)\n\n", estate.DeceasedName, estate.ExecutorName, estate.Status)

	milestones, err := st.Milestones(id)
	if err != nil {
		return err
	}
	if len(milestones) > 0 {
		fmt.Println("Milestones:")
		for _, m := range milestones {
			mark := " "
			if m.Status == store.MilestoneComplete {
				mark = "x"
			}
			date := ""
			if !m.TargetDate.IsZero() {
				date = m.TargetDate.Format("2006-01-02")
			}
			fmt.Printf("  [%s] %-24s %s\n", mark, m.Label, date)
		}
		fmt.Println()
	}

	alerts, err := st.ActiveAlerts(id)
	if err != nil {
		return err
	}
	fmt.Println(steward.FormatAlerts(alerts))

	conflicts, err := st.Conflicts(id)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		fmt.Println("\nOpen conflicts:")
		for _, c := range conflicts {
			fmt.Printf("  item %d (%s): %v\n", c.ItemID, c.ItemName, c.Claimants)
		}
	}

	fairness, err := st.FairnessSummary(id)
	if err != nil {
		return err
	}
	if len(fairness) > 0 {
		fmt.Println("\nDistributions so far:")
		for _, row := range fairness {
			fmt.Printf("  %-20s %d items, ~$%.0f\n", row.MemberName, row.ItemCount, row.TotalValue)
		}
	}
	return nil
}
