package api

import (
	"context"
	"fmt"

	"github.com/polisee/polisee/internal/service"
	"github.com/polisee/polisee/internal/sse"
)

// Subscribe opens the processing-notification stream for a policy.
func (c *Client) Subscribe(ctx context.Context, policyID string) (service.Subscription, error) {
	if policyID == "" {
		return nil, fmt.Errorf("policy ID is required")
	}
	return sse.Subscribe(ctx, c.httpClient, c.NotificationsURL(policyID))
}

// Ensure Client implements Notifier.
var _ service.Notifier = (*Client)(nil)
