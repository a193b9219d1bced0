package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/polisee/polisee/internal/cli"
	"github.com/polisee/polisee/internal/common"
	"github.com/polisee/polisee/internal/model"
	"github.com/polisee/polisee/internal/service"
	"github.com/polisee/polisee/internal/storage"
)

func policiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policies",
		Short: "Manage uploaded policy documents",
		Long:  `List your analyzed policies and upload new documents for analysis.`,
	}

	cmd.AddCommand(policiesListCmd())
	cmd.AddCommand(policiesUploadCmd())

	return cmd
}

func policiesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List analyzed policies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			client, err := newAPIClient()
			if err != nil {
				return err
			}
			userID, err := currentUserID()
			if err != nil {
				return err
			}

			policies, err := client.ListPolicies(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to list policies: %w", err)
			}

			if len(policies) == 0 {
				fmt.Println(cli.InfoStyle.Render("No policies yet. Use 'polisee policies upload' to add one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "ID\tFile\tUploaded\tFindings\n")
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 8), strings.Repeat("-", 24), strings.Repeat("-", 10), strings.Repeat("-", 8))
			for _, p := range policies {
				findings := model.NormalizeAnalysis(p.Analysis)
				uploaded := ""
				if !p.CreatedAt.IsZero() {
					uploaded = p.CreatedAt.Format("2006-01-02")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", p.ID, p.FileName, uploaded, len(findings))
			}
			return nil
		},
	}
}

func policiesUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a policy document for analysis",
		Long: `Upload a policy document and start the analysis.

With --watch the command stays attached to the processing notification
stream and reports when the analysis finishes.`,
		Args: cobra.ExactArgs(1),
		RunE: runPoliciesUpload,
	}

	cmd.Flags().String("provider", "", "insurance provider (required)")
	cmd.Flags().String("version", "", "policy version (required)")
	cmd.Flags().Bool("watch", false, "wait for processing to finish")
	cmd.Flags().Duration("watch-timeout", 2*time.Minute, "how long to wait with --watch")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("version")

	return cmd
}

func runPoliciesUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	userID, err := currentUserID()
	if err != nil {
		return err
	}

	provider, _ := cmd.Flags().GetString("provider")
	version, _ := cmd.Flags().GetString("version")
	watch, _ := cmd.Flags().GetBool("watch")
	watchTimeout, _ := cmd.Flags().GetDuration("watch-timeout")

	path := args[0]
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	bar := progressbar.NewOptions64(info.Size(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Uploading policy...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	var lastSent int64
	result, err := client.UploadPolicy(ctx, service.UploadRequest{
		File:     f,
		FileName: filepath.Base(path),
		UserID:   userID,
		Provider: provider,
		Version:  version,
		Progress: func(sent, _ int64) {
			if err := bar.Add64(sent - lastSent); err != nil {
				slog.Warn("Failed to update progress bar", "error", err)
			}
			lastSent = sent
		},
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	fmt.Println(cli.FormatSuccess("Uploaded " + result.Policy.FileName))
	fmt.Println(cli.SubtleStyle.Render("Policy ID: " + result.Policy.ID))

	// Remember the file for the wizard's continuity hint.
	if store, storeErr := initStorage(ctx); storeErr == nil {
		if setErr := store.SetSetting(ctx, storage.KeyLastPolicyName, result.Policy.FileName); setErr != nil {
			slog.Warn("Failed to remember policy name", "error", setErr)
		}
		_ = store.Close()
	}

	if !watch {
		return nil
	}
	return watchProcessing(cmd, client, result.Policy.ID, watchTimeout)
}

// watchProcessing follows the notification stream until the analysis
// finishes, fails, or the timeout expires.
func watchProcessing(cmd *cobra.Command, notifier service.Notifier, policyID string, timeout time.Duration) error {
	ctx := cmd.Context()

	sub, err := notifier.Subscribe(ctx, policyID)
	if err != nil {
		return fmt.Errorf("failed to watch processing: %w", err)
	}
	defer sub.Close()

	fmt.Println(cli.InfoStyle.Render("Waiting for analysis to finish..."))

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				if streamErr := sub.Err(); streamErr != nil {
					return fmt.Errorf("notification stream ended: %w", streamErr)
				}
				return nil
			}
			switch ev.Type {
			case model.EventProcessingStarted:
				fmt.Println(cli.SubtleStyle.Render("Analysis started"))
			case model.EventProcessingCompleted:
				fmt.Println(cli.FormatSuccess("Analysis complete"))
				return nil
			case model.EventProcessingFailed:
				msg := "analysis failed"
				if ev.Error != "" {
					msg = ev.Error
				}
				return common.NewUserError("The analysis could not finish: "+msg, common.ErrProcessingFailed)
			}
		case <-timer.C:
			return fmt.Errorf("timed out after %s waiting for analysis", timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
