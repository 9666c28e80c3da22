package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	estateDeceased      string
	estateExecutor      string
	estateExecutorEmail string

	inviteEstateID int64
	inviteName     string
	inviteEmail    string
	inviteRole     string

	joinEstateID int64
	joinName     string

	closeEstateID int64
	closeBy       string

	announceEstateID int64
	announceMessage  string
	announceBy       string
)

// estateCmd manages the estate record
var estateCmd = &cobra.Command{
	Use:   "estate",
	Short: "Estate lifecycle commands",
}

var estateCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a new estate",
	Long: `Creates the estate record that every other command operates on.

Example:
  fm estate create --deceased "Morris Stern" --executor "David Stern" --executor-email david@example.com`,
	RunE: runEstateCreate,
}

var estateCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Mark the estate fully settled",
	RunE:  runEstateClose,
}

// announceCmd emails a group update to every joined member
var announceCmd = &cobra.Command{
	Use:   "announce",
	Short: "Email an update to every joined family member",
	RunE:  runAnnounce,
}

// inviteCmd invites a family member
var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Invite a family member and generate their join code",
	RunE:  runInvite,
}

// joinCmd redeems a join code
var joinCmd = &cobra.Command{
	Use:   "join [code]",
	Short: "Redeem a join code on behalf of a member",
	Args:  cobra.ExactArgs(1),
	RunE:  runJoin,
}

func init() {
	estateCreateCmd.Flags().StringVar(&estateDeceased, "deceased", "", "Name of the deceased (required)")
	estateCreateCmd.Flags().StringVar(&estateExecutor, "executor", "", "Executor's name (required)")
	estateCreateCmd.Flags().StringVar(&estateExecutorEmail, "executor-email", "", "Executor's email address")
	estateCreateCmd.MarkFlagRequired("deceased")
	estateCreateCmd.MarkFlagRequired("executor")
	estateCmd.AddCommand(estateCreateCmd)

	estateCloseCmd.Flags().Int64Var(&closeEstateID, "estate", 0, "Estate id (defaults to configured estate)")
	estateCloseCmd.Flags().StringVar(&closeBy, "by", "", "Who is closing the estate")
	estateCmd.AddCommand(estateCloseCmd)

	announceCmd.Flags().Int64Var(&announceEstateID, "estate", 0, "Estate id (defaults to configured estate)")
	announceCmd.Flags().StringVar(&announceMessage, "message", "", "Announcement text (required)")
	announceCmd.Flags().StringVar(&announceBy, "by", "", "Who is sending the announcement")
	announceCmd.MarkFlagRequired("message")

	inviteCmd.Flags().Int64Var(&inviteEstateID, "estate", 0, "Estate id (defaults to configured estate)")
	inviteCmd.Flags().StringVar(&inviteName, "name", "", "Member's name (required)")
	inviteCmd.Flags().StringVar(&inviteEmail, "email", "", "Member's email address")
	inviteCmd.Flags().StringVar(&inviteRole, "role", "member", "Member role (executor|member)")
	inviteCmd.MarkFlagRequired("name")

	joinCmd.Flags().Int64Var(&joinEstateID, "estate", 0, "Estate id (defaults to configured estate)")
	joinCmd.Flags().StringVar(&joinName, "name", "", "Member's name for the audit record")
}

// estateID resolves the --estate flag against the configured default.
func estateID(flagValue int64) int64 {
	if flagValue != 0 {
		return flagValue
	}
	return cfg.Estate.ID
}

func runEstateCreate(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := newHost(st).CreateEstate(estateDeceased, estateExecutor, estateExecutorEmail)
	if err != nil {
		return err
	}
	fmt.Printf("Estate created with id %d\n", id)
	return nil
}

func runInvite(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	joinCode, err := newHost(st).Invite(cmd.Context(), estateID(inviteEstateID), inviteName, inviteEmail, inviteRole)
	if err != nil {
		return err
	}
	fmt.Printf("%s invited. Join code: %s\n", inviteName, joinCode)
	return nil
}

func runEstateClose(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := newHost(st).Close(estateID(closeEstateID), closeBy); err != nil {
		return err
	}
	fmt.Println("Estate closed.")
	return nil
}

func runAnnounce(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sent, err := newHost(st).Announce(cmd.Context(), estateID(announceEstateID), announceMessage, announceBy)
	if err != nil {
		return err
	}
	fmt.Printf("Announcement sent to %d members.\n", sent)
	return nil
}

func runJoin(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := newHost(st).Join(estateID(joinEstateID), args[0], joinName); err != nil {
		return err
	}
	fmt.Println("Joined.")
	return nil
}
