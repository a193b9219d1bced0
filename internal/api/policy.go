package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/polisee/polisee/internal/common"
	"github.com/polisee/polisee/internal/model"
	"github.com/polisee/polisee/internal/service"
)

// UploadPolicy submits a policy document plus metadata. Provider and version
// must be non-empty before anything is sent. Uploads are not retried: the
// backend creates a new record per attempt.
func (c *Client) UploadPolicy(ctx context.Context, req service.UploadRequest) (*service.UploadResult, error) {
	if req.Provider == "" {
		return nil, common.NewUserError("Please choose your insurance provider first", common.ErrInvalidConfig)
	}
	if req.Version == "" {
		return nil, common.NewUserError("Please choose the policy version first", common.ErrInvalidConfig)
	}
	if req.File == nil {
		return nil, fmt.Errorf("file is required")
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	c.logger.Info("Uploading policy",
		"user_id", req.UserID,
		"file", req.FileName,
		"provider", req.Provider)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", req.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, req.File); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	fields := map[string]string{
		"userId":   req.UserID,
		"provider": req.Provider,
		"version":  req.Version,
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload body: %w", err)
	}

	var body io.Reader = &buf
	total := int64(buf.Len())
	if req.Progress != nil {
		body = &progressReader{r: body, total: total, report: req.Progress}
	}

	// Analysis can take a while; give uploads triple the normal deadline.
	reqCtx, cancel := context.WithTimeout(ctx, 3*c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint("/api/policy", nil), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")
	httpReq.ContentLength = total

	var result service.UploadResult
	if err := c.doJSON(httpReq, &result); err != nil {
		return nil, fmt.Errorf("failed to upload policy: %w", err)
	}

	c.logger.Info("Policy uploaded",
		"policy_id", result.Policy.ID,
		"file_hash", result.Policy.FileHash,
		"embedding_status", result.EmbeddingStatus)

	return &result, nil
}

// ListPolicies returns the user's uploaded policies, most recent first.
func (c *Client) ListPolicies(ctx context.Context, userID string) ([]model.Policy, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	var resp struct {
		Policies []model.Policy `json:"policies"`
	}
	query := url.Values{"user_id": {userID}}
	if err := c.getJSON(ctx, "/api/policy", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}

	return resp.Policies, nil
}

// GetPolicy fetches a single policy with its analysis payload.
func (c *Client) GetPolicy(ctx context.Context, policyID string) (*model.Policy, error) {
	if policyID == "" {
		return nil, fmt.Errorf("policy ID is required")
	}

	var resp struct {
		Policy *model.Policy `json:"policy"`
	}
	if err := c.getJSON(ctx, "/api/policy/"+url.PathEscape(policyID), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch policy: %w", err)
	}

	if resp.Policy == nil {
		return nil, common.ErrNotFound
	}
	return resp.Policy, nil
}

// RetryEmbeddings re-invokes the backend embedding job for a policy.
func (c *Client) RetryEmbeddings(ctx context.Context, policyID string) error {
	if policyID == "" {
		return fmt.Errorf("policy ID is required")
	}

	c.logger.Info("Retrying embeddings", "policy_id", policyID)

	path := "/api/policy/" + url.PathEscape(policyID) + "/embeddings/retry"
	if err := c.postJSON(ctx, path, struct{}{}, nil); err != nil {
		return fmt.Errorf("failed to retry embeddings: %w", err)
	}
	return nil
}

// NotificationsURL is the event-stream endpoint for a policy.
func (c *Client) NotificationsURL(policyID string) string {
	return c.endpoint("/api/policy/"+url.PathEscape(policyID)+"/notifications", nil)
}

// progressReader reports cumulative bytes read to a callback.
type progressReader struct {
	r      io.Reader
	report func(sent, total int64)
	sent   int64
	total  int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.report(p.sent, p.total)
	}
	return n, err
}
