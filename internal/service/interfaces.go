// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/polisee/polisee/internal/model"
)

// RetryOptions configures retry behavior for fallible operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// UploadRequest carries a policy document and its metadata to the backend.
type UploadRequest struct {
	File     io.Reader
	FileName string
	UserID   string
	Provider string
	Version  string

	// Progress, if set, receives (sent, total) byte counts during upload.
	Progress func(sent, total int64)
}

// UploadResult is the backend's response to a policy upload.
type UploadResult struct {
	Policy          model.Policy      `json:"policy"`
	Answer          json.RawMessage   `json:"answer"`
	EmbeddingStatus string            `json:"embedding_status,omitempty"`
	Messages        []json.RawMessage `json:"messages,omitempty"`
}

// QueryRequest is a single chat question against an analyzed policy.
type QueryRequest struct {
	UserID    string `json:"userId"`
	Question  string `json:"user_question"`
	PolicyID  string `json:"policyId"`
	SessionID string `json:"sessionId"`
}

// QueryResponse is the heterogeneous answer payload from the analysis service.
type QueryResponse struct {
	Answer             json.RawMessage        `json:"answer"`
	Candidate          *model.RefundCandidate `json:"candidate,omitempty"`
	CandidateGenerated bool                   `json:"candidate_generated,omitempty"`
	Clarifications     []string               `json:"clarifications,omitempty"`
}

// RefundService is the contract for the remote refund-discovery API.
type RefundService interface {
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	SaveProfile(ctx context.Context, profile *model.UserProfile) (*model.UserProfile, error)

	UploadPolicy(ctx context.Context, req UploadRequest) (*UploadResult, error)
	ListPolicies(ctx context.Context, userID string) ([]model.Policy, error)
	GetPolicy(ctx context.Context, policyID string) (*model.Policy, error)

	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)
	RetryEmbeddings(ctx context.Context, policyID string) error

	AcceptCandidate(ctx context.Context, userID, policyID string, candidate model.RefundCandidate) (string, error)
	RejectCandidate(ctx context.Context, userID, candidateID, reason string) error
}

// Subscription is a live notification stream for one policy.
type Subscription interface {
	// Events yields processing events until the stream ends. The channel is
	// closed when the stream terminates for any reason.
	Events() <-chan model.ProcessingEvent
	// Err reports the transport error that ended the stream, if any.
	Err() error
	// Close tears down the stream. Safe to call more than once.
	Close()
}

// Notifier opens processing-notification streams.
type Notifier interface {
	Subscribe(ctx context.Context, policyID string) (Subscription, error)
}

// Store is the contract for the local persistence layer.
type Store interface {
	// Settings (display-only continuity values, never authoritative)
	SetSetting(ctx context.Context, key, value string) error
	GetSetting(ctx context.Context, key string) (string, error)

	// Chat session continuity
	CreateChatSession(ctx context.Context, id, policyID string) error
	GetLatestChatSession(ctx context.Context, policyID string) (*model.ChatSessionRecord, error)
	AppendChatMessage(ctx context.Context, sessionID string, msg model.ChatMessage) error
	GetChatMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error)

	Migrate(ctx context.Context) error
	Close() error
}
