package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/polisee/polisee/internal/chat"
	"github.com/polisee/polisee/internal/cli"
	"github.com/polisee/polisee/internal/service"
)

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a one-off question about your policy",
		Long: `Ask a single question about your analyzed policy without entering the
wizard. The answer is printed and the exchange is kept in your local chat
history, so a later wizard session picks up where you left off.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().String("policy", "", "policy ID (defaults to your most recent policy)")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	userID, err := currentUserID()
	if err != nil {
		return err
	}

	policyID, _ := cmd.Flags().GetString("policy")
	if policyID == "" {
		policyID, err = latestPolicyID(ctx, client, userID)
		if err != nil {
			return err
		}
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Warn("Failed to close store", "error", closeErr)
		}
	}()

	// Continue the latest cached session for this policy, if there is one.
	sessionID := ""
	if rec, recErr := store.GetLatestChatSession(ctx, policyID); recErr == nil {
		sessionID = rec.ID
	}

	session := chat.NewSession(ctx, client, store, userID, policyID, sessionID)
	reply, err := session.Send(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("failed to get an answer: %w", err)
	}

	fmt.Println(reply.Text)

	if reply.Structured != nil && len(reply.Structured.RequiredDocuments) > 0 {
		fmt.Println()
		fmt.Println(cli.SubtleStyle.Render("Documents needed: " + strings.Join(reply.Structured.RequiredDocuments, ", ")))
	}
	if reply.Candidate != nil {
		fmt.Println()
		fmt.Println(cli.FormatInfo(fmt.Sprintf("Possible refund: %.2f ILS (%s confidence). Run 'polisee wizard' to claim it.",
			reply.Candidate.Amount, reply.Candidate.ConfidenceLabel())))
	}
	return nil
}

// latestPolicyID picks the most recently analyzed policy.
func latestPolicyID(ctx context.Context, client service.RefundService, userID string) (string, error) {
	policies, err := client.ListPolicies(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to list policies: %w", err)
	}
	if len(policies) == 0 {
		return "", fmt.Errorf("no analyzed policies. Upload one with 'polisee policies upload'")
	}
	return policies[0].ID, nil
}
