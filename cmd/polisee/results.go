package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/polisee/polisee/internal/cli"
	"github.com/polisee/polisee/internal/config"
	"github.com/polisee/polisee/internal/model"
	"github.com/polisee/polisee/internal/sheets"
)

func resultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Review refund findings",
		Long:  `List the refund candidates found in your analyzed policy, and optionally export them to Google Sheets.`,
	}

	cmd.AddCommand(resultsListCmd())
	cmd.AddCommand(resultsExportCmd())

	return cmd
}

func resultsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List refund candidates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			policyName, candidates, err := loadResults(cmd)
			if err != nil {
				return err
			}

			if len(candidates) == 0 {
				fmt.Println(cli.InfoStyle.Render("No refund candidates found in " + policyName + "."))
				return nil
			}

			fmt.Println(cli.FormatTitle("Refunds found in " + policyName))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "Amount\tConfidence\tDescription\n")
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				strings.Repeat("-", 10), strings.Repeat("-", 10), strings.Repeat("-", 40))

			var total float64
			for _, c := range candidates {
				fmt.Fprintf(w, "%.2f\t%s\t%s\n", c.Amount, c.ConfidenceLabel(), c.Description)
				total += c.Amount
			}
			fmt.Fprintf(w, "\n%s\t\t\n", cli.SuccessStyle.Render(fmt.Sprintf("Total: %.2f ILS", total)))
			return nil
		},
	}

	cmd.Flags().String("policy", "", "policy ID (defaults to your most recent policy)")
	return cmd
}

func resultsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export refund candidates to Google Sheets",
		Long: `Write the refund candidates to a Google Sheets spreadsheet.

Requires Google Sheets credentials; run 'polisee auth sheets' first, or
configure a service account in the config file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			policyName, candidates, err := loadResults(cmd)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				fmt.Println(cli.InfoStyle.Render("Nothing to export."))
				return nil
			}

			sheetsConfig, err := config.LoadSheetsConfig()
			if err != nil {
				return fmt.Errorf("sheets configuration: %w", err)
			}

			writer, err := sheets.NewWriter(ctx, *sheetsConfig, slog.Default())
			if err != nil {
				return fmt.Errorf("failed to create sheets writer: %w", err)
			}

			if err := writer.Write(ctx, policyName, candidates); err != nil {
				return fmt.Errorf("failed to export: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Exported %d refund candidates to %q", len(candidates), sheetsConfig.SpreadsheetName)))
			return nil
		},
	}

	cmd.Flags().String("policy", "", "policy ID (defaults to your most recent policy)")
	return cmd
}

// loadResults fetches the policy and extracts its refund candidates.
func loadResults(cmd *cobra.Command) (string, []model.RefundCandidate, error) {
	ctx := cmd.Context()

	client, err := newAPIClient()
	if err != nil {
		return "", nil, err
	}
	userID, err := currentUserID()
	if err != nil {
		return "", nil, err
	}

	policyID, _ := cmd.Flags().GetString("policy")
	if policyID == "" {
		policyID, err = latestPolicyID(ctx, client, userID)
		if err != nil {
			return "", nil, err
		}
	}

	policy, err := client.GetPolicy(ctx, policyID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get policy: %w", err)
	}

	name := policy.FileName
	if name == "" {
		name = policy.ID
	}
	return name, candidatesFromAnalysis(policy.Analysis), nil
}

// candidatesFromAnalysis extracts refund candidates from the analysis
// sections. Sections that don't carry an amount are informational and skipped.
func candidatesFromAnalysis(raw json.RawMessage) []model.RefundCandidate {
	var out []model.RefundCandidate
	for _, section := range model.NormalizeAnalysis(raw) {
		var c model.RefundCandidate
		if err := json.Unmarshal(section, &c); err != nil {
			continue
		}
		if c.Amount > 0 {
			out = append(out, c)
		}
	}
	return out
}
