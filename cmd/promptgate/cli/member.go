package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/promptgate/promptgate/internal/model"
	"github.com/promptgate/promptgate/internal/service"
)

func newMemberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage members",
		Long:  "Create, list, and disable member accounts. Members own API tokens; admins additionally manage rules and templates.",
	}

	cmd.AddCommand(newMemberCreateCmd())
	cmd.AddCommand(newMemberListCmd())
	cmd.AddCommand(newMemberDisableCmd())

	return cmd
}

// ---------- member create ----------

func newMemberCreateCmd() *cobra.Command {
	var (
		email    string
		password string
		name     string
		admin    bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new member",
		Example: `  promptgate member create --email admin@example.com --admin
  promptgate member create --email dev@example.com --password secret123`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemberCreate(email, password, name, admin)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Member email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Member password (prompted if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "Member display name")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant admin rights")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runMemberCreate(email, password, name string, admin bool) error {
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %q", email)
	}

	if password == "" {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return fmt.Errorf("passwords do not match")
		}
	}

	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	member := &model.Member{
		Email:        email,
		Name:         name,
		PasswordHash: service.HashPassword(password),
		IsAdmin:      admin,
		Status:       model.MemberActive,
	}
	if err := st.CreateMember(cmdContext(), member); err != nil {
		return fmt.Errorf("create member: %w", err)
	}

	role := "member"
	if admin {
		role = "admin"
	}
	fmt.Printf("Created %s %q (id %d)\n", role, email, member.ID)
	fmt.Println("Issue a token with: promptgate token issue --member", member.ID)
	return nil
}

// ---------- member list ----------

func newMemberListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemberList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runMemberList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	members, err := st.ListMembers(cmdContext())
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(members)
	}

	if len(members) == 0 {
		fmt.Println("No members yet. Use 'promptgate member create' to create one.")
		return nil
	}

	fmt.Printf("%-6s %-30s %-20s %-8s %-10s\n", "ID", "EMAIL", "NAME", "ADMIN", "STATUS")
	for _, m := range members {
		admin := "no"
		if m.IsAdmin {
			admin = "yes"
		}
		fmt.Printf("%-6d %-30s %-20s %-8s %-10s\n", m.ID, m.Email, m.Name, admin, m.Status)
	}
	return nil
}

// ---------- member disable ----------

func newMemberDisableCmd() *cobra.Command {
	var memberID int64

	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Disable a member and revoke their tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemberDisable(memberID)
		},
	}

	cmd.Flags().Int64Var(&memberID, "id", 0, "Member ID to disable (required)")
	cmd.MarkFlagRequired("id")

	return cmd
}

func runMemberDisable(memberID int64) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	logger := newLogger(false)
	tokens := service.NewTokenService(st, logger)
	if err := tokens.DisableMember(cmdContext(), memberID, "cli"); err != nil {
		return fmt.Errorf("disable member: %w", err)
	}

	fmt.Printf("Member %d disabled; all issued tokens revoked.\n", memberID)
	return nil
}
