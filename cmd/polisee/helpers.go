package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/polisee/polisee/internal/api"
	"github.com/polisee/polisee/internal/config"
	"github.com/polisee/polisee/internal/storage"
)

// initStorage initializes the local continuity store with proper path expansion.
func initStorage(ctx context.Context) (*storage.SQLiteStore, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/polisee/polisee.db"
	}

	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newAPIClient builds the refund API client from config, with environment
// variables as a fallback.
func newAPIClient() (*api.Client, error) {
	baseURL := viper.GetString("api.base_url")
	if baseURL == "" {
		baseURL = os.Getenv("POLISEE_API_BASE_URL")
	}
	token := viper.GetString("api.token")
	if token == "" {
		token = os.Getenv("POLISEE_API_TOKEN")
	}

	if baseURL == "" || token == "" {
		return nil, fmt.Errorf("api credentials missing. Please add api.base_url and api.token to the config file or set POLISEE_API_BASE_URL and POLISEE_API_TOKEN environment variables")
	}

	return api.NewClient(api.Config{
		BaseURL: baseURL,
		Token:   token,
		Timeout: viper.GetDuration("api.timeout"),
	})
}

// currentUserID resolves the acting user from config.
func currentUserID() (string, error) {
	userID := viper.GetString("api.user_id")
	if userID == "" {
		userID = os.Getenv("POLISEE_USER_ID")
	}
	if userID == "" {
		return "", fmt.Errorf("user id missing. Please add api.user_id to the config file or set POLISEE_USER_ID")
	}
	return userID, nil
}
