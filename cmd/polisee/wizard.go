package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/polisee/polisee/internal/tui"
	"github.com/polisee/polisee/internal/wizard"
)

func wizardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Walk through refund discovery interactively",
		Long: `Start the interactive refund wizard.

The wizard checks your profile, uploads a policy document if you don't have
one, waits for the analysis to finish, and then opens a chat where you can
explore your coverage and claim any refunds it finds.`,
		RunE: runWizard,
	}
}

func runWizard(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	userID, err := currentUserID()
	if err != nil {
		return err
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

	ctrl, err := wizard.NewController(wizard.Config{
		API:      client,
		Notifier: client,
		Store:    store,
		UserID:   userID,
	})
	if err != nil {
		return fmt.Errorf("failed to create wizard: %w", err)
	}
	defer ctrl.Close()

	return tui.Run(tui.Config{
		Controller: ctrl,
		API:        client,
		Store:      store,
		UserID:     userID,
	})
}
