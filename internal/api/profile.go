package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/polisee/polisee/internal/common"
	"github.com/polisee/polisee/internal/model"
)

// GetProfile fetches the remote profile for a user. Returns ErrNotFound when
// no profile exists yet.
func (c *Client) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	c.logger.Debug("Fetching profile", "user_id", userID)

	var resp struct {
		Profile *model.UserProfile `json:"profile"`
	}
	query := url.Values{"user_id": {userID}}
	if err := c.getJSON(ctx, "/api/profile", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	if resp.Profile == nil {
		return nil, common.ErrNotFound
	}

	return resp.Profile, nil
}

// SaveProfile upserts the full profile document and returns the stored copy.
func (c *Client) SaveProfile(ctx context.Context, profile *model.UserProfile) (*model.UserProfile, error) {
	if profile == nil {
		return nil, fmt.Errorf("profile cannot be nil")
	}
	if profile.UserID == "" {
		return nil, fmt.Errorf("profile user ID is required")
	}

	c.logger.Info("Saving profile", "user_id", profile.UserID)

	var resp struct {
		Profile *model.UserProfile `json:"profile"`
	}
	if err := c.postJSON(ctx, "/api/profile", profile, &resp); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	if resp.Profile == nil {
		return profile, nil
	}
	return resp.Profile, nil
}
