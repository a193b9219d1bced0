package api

import (
	"context"
	"fmt"

	"github.com/polisee/polisee/internal/model"
	"github.com/polisee/polisee/internal/service"
)

// Query sends a chat question against an analyzed policy.
func (c *Client) Query(ctx context.Context, req service.QueryRequest) (*service.QueryResponse, error) {
	if req.Question == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}
	if req.UserID == "" || req.PolicyID == "" {
		return nil, fmt.Errorf("user ID and policy ID are required")
	}

	c.logger.Debug("Sending chat query",
		"policy_id", req.PolicyID,
		"session_id", req.SessionID)

	var resp service.QueryResponse
	if err := c.postJSON(ctx, "/api/policy/query", req, &resp); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	return &resp, nil
}

// AcceptCandidate promotes a refund candidate into a server-side case and
// returns the new case ID.
func (c *Client) AcceptCandidate(ctx context.Context, userID, policyID string, candidate model.RefundCandidate) (string, error) {
	if userID == "" || policyID == "" {
		return "", fmt.Errorf("user ID and policy ID are required")
	}

	body := struct {
		UserID    string                `json:"userId"`
		PolicyID  string                `json:"policyId"`
		Candidate model.RefundCandidate `json:"candidate"`
	}{userID, policyID, candidate}

	var resp struct {
		CaseID string `json:"case_id"`
	}
	if err := c.postJSON(ctx, "/api/candidates/accept", body, &resp); err != nil {
		return "", fmt.Errorf("failed to accept candidate: %w", err)
	}

	c.logger.Info("Candidate accepted", "case_id", resp.CaseID, "amount", candidate.Amount)
	return resp.CaseID, nil
}

// RejectCandidate records a dismissal with its reason.
func (c *Client) RejectCandidate(ctx context.Context, userID, candidateID, reason string) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}

	body := struct {
		UserID      string `json:"userId"`
		CandidateID string `json:"candidateId"`
		Reason      string `json:"reason,omitempty"`
	}{userID, candidateID, reason}

	if err := c.postJSON(ctx, "/api/candidates/reject", body, nil); err != nil {
		return fmt.Errorf("failed to reject candidate: %w", err)
	}
	return nil
}
