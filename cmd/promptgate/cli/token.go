package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptgate/promptgate/internal/service"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
		Long:  "Issue, list, and revoke the opaque tokens that gate every API request.",
	}

	cmd.AddCommand(newTokenIssueCmd())
	cmd.AddCommand(newTokenListCmd())
	cmd.AddCommand(newTokenRevokeCmd())

	return cmd
}

// ---------- token issue ----------

func newTokenIssueCmd() *cobra.Command {
	var (
		memberID int64
		name     string
		lifetime time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a new token for a member",
		Long:  "Issue a new token. The raw key is shown once and cannot be retrieved again.",
		Example: `  promptgate token issue --member 1 --name "CI pipeline"
  promptgate token issue --member 1 --lifetime 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenIssue(memberID, name, lifetime)
		},
	}

	cmd.Flags().Int64Var(&memberID, "member", 0, "Member ID to issue the token for (required)")
	cmd.Flags().StringVar(&name, "name", "", "Human-readable token name")
	cmd.Flags().DurationVar(&lifetime, "lifetime", 0, "Token lifetime (e.g. 720h); 0 means never expires")
	cmd.MarkFlagRequired("member")

	return cmd
}

func runTokenIssue(memberID int64, name string, lifetime time.Duration) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	tokens := service.NewTokenService(st, newLogger(false))
	token, err := tokens.Issue(cmdContext(), memberID, name, lifetime, "cli")
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Println("Token issued:")
	fmt.Println()
	fmt.Printf("  Key:    %s\n", token.TokenKey)
	fmt.Printf("  Member: %d\n", token.MemberID)
	if token.Name != "" {
		fmt.Printf("  Name:   %s\n", token.Name)
	}
	if token.ExpiresAt != nil {
		fmt.Printf("  Expires: %s\n", token.ExpiresAt.Format(time.RFC3339))
	} else {
		fmt.Printf("  Expires: never\n")
	}
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- token list ----------

func newTokenListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all tokens (keys masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runTokenList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	tokens, err := st.ListTokens(cmdContext())
	if err != nil {
		return fmt.Errorf("list tokens: %w", err)
	}

	type tokenRow struct {
		ID        int64  `json:"id"`
		MaskedKey string `json:"masked_key"`
		MemberID  int64  `json:"member_id"`
		Name      string `json:"name"`
		Status    string `json:"status"`
	}

	rows := make([]tokenRow, len(tokens))
	for i := range tokens {
		t := &tokens[i]
		rows[i] = tokenRow{
			ID:        t.ID,
			MaskedKey: t.MaskedKey(),
			MemberID:  t.MemberID,
			Name:      t.Name,
			Status:    string(t.Status),
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No tokens issued. Use 'promptgate token issue' to create one.")
		return nil
	}

	fmt.Printf("%-6s %-16s %-8s %-24s %-10s\n", "ID", "KEY", "MEMBER", "NAME", "STATUS")
	for _, t := range rows {
		fmt.Printf("%-6d %-16s %-8d %-24s %-10s\n", t.ID, t.MaskedKey, t.MemberID, t.Name, t.Status)
	}
	return nil
}

// ---------- token revoke ----------

func newTokenRevokeCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a token by its key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenRevoke(key)
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Token key to revoke (required)")
	cmd.MarkFlagRequired("key")

	return cmd
}

func runTokenRevoke(key string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	tokens := service.NewTokenService(st, newLogger(false))
	if err := tokens.Revoke(cmdContext(), key, "cli"); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	fmt.Println("Token revoked.")
	return nil
}
