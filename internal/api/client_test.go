package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisee/polisee/internal/common"
	"github.com/polisee/polisee/internal/model"
	"github.com/polisee/polisee/internal/service"
)

// newTestClient points a client at a test server with fast retries.
func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, Token: "test-token"})
	require.NoError(t, err)

	client.retryOpts = &service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1.0,
	}
	return client, srv
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{BaseURL: "https://api.example.com", Token: "t"}, false},
		{"missing base url", Config{Token: "t"}, true},
		{"missing token", Config{BaseURL: "https://api.example.com"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"profile":{"user_id":"u1","full_name":"Dana"}}`))
	}))

	_, err := client.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestGetProfileNullProfile(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"profile":null}`))
	}))

	_, err := client.GetProfile(context.Background(), "u1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetProfileSuccess(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "u1", r.URL.Query().Get("user_id"))
		_, _ = w.Write([]byte(`{"profile":{"user_id":"u1","full_name":"Dana","phone_number":"050","national_id":"1","date_of_birth":"1990-01-01","gender":"f"}}`))
	}))

	profile, err := client.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Dana", profile.FullName)
	assert.True(t, profile.IsComplete())
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"policies":[]}`))
	}))

	_, err := client.ListPolicies(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))

	_, err := client.ListPolicies(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())

	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "bad request", apiErr.Message)
}

func TestUnauthorizedIsTerminalUserError(t *testing.T) {
	var attempts atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.GetProfile(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	var userErr *common.UserError
	require.True(t, errors.As(err, &userErr))
	assert.Equal(t, "Your session has expired", userErr.UserMessage)
}

func TestRateLimitIsRetryable(t *testing.T) {
	var attempts atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"policies":[]}`))
	}))

	_, err := client.ListPolicies(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestUploadPolicyRequiresMetadata(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request should reach the server")
	}))

	tests := []struct {
		name string
		req  service.UploadRequest
	}{
		{
			name: "missing provider",
			req:  service.UploadRequest{File: strings.NewReader("doc"), UserID: "u1", Version: "2024"},
		},
		{
			name: "missing version",
			req:  service.UploadRequest{File: strings.NewReader("doc"), UserID: "u1", Provider: "clal"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.UploadPolicy(context.Background(), tt.req)
			require.Error(t, err)

			var userErr *common.UserError
			assert.True(t, errors.As(err, &userErr))
		})
	}
}

func TestUploadPolicySubmitsMultipart(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "u1", r.FormValue("userId"))
		assert.Equal(t, "clal", r.FormValue("provider"))
		assert.Equal(t, "2024", r.FormValue("version"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		assert.Equal(t, "policy.pdf", header.Filename)

		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "policy document body", string(content))

		_ = json.NewEncoder(w).Encode(service.UploadResult{
			Policy:          model.Policy{ID: "p1", FileName: "policy.pdf", FileHash: "abc"},
			EmbeddingStatus: "pending",
		})
	}))

	var lastSent, total int64
	result, err := client.UploadPolicy(context.Background(), service.UploadRequest{
		File:     strings.NewReader("policy document body"),
		FileName: "policy.pdf",
		UserID:   "u1",
		Provider: "clal",
		Version:  "2024",
		Progress: func(sent, t int64) {
			lastSent, total = sent, t
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", result.Policy.ID)
	assert.Equal(t, "pending", result.EmbeddingStatus)
	assert.Equal(t, total, lastSent)
	assert.Positive(t, total)
}

func TestQueryPayloadShape(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1", body["userId"])
		assert.Equal(t, "is dental covered?", body["user_question"])
		assert.Equal(t, "p1", body["policyId"])
		assert.Equal(t, "s1", body["sessionId"])

		_, _ = w.Write([]byte(`{"answer":"\"yes\"","candidate":{"id":"c1","amount":120}}`))
	}))

	resp, err := client.Query(context.Background(), service.QueryRequest{
		UserID:    "u1",
		Question:  "is dental covered?",
		PolicyID:  "p1",
		SessionID: "s1",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Candidate)
	assert.Equal(t, "c1", resp.Candidate.ID)
	assert.Equal(t, 120.0, resp.Candidate.Amount)
}

func TestAcceptCandidateReturnsCaseID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/candidates/accept", r.URL.Path)
		_, _ = w.Write([]byte(`{"case_id":"case-7"}`))
	}))

	caseID, err := client.AcceptCandidate(context.Background(), "u1", "p1",
		model.RefundCandidate{ID: "c1", Amount: 90})
	require.NoError(t, err)
	assert.Equal(t, "case-7", caseID)
}

func TestRetryEmbeddingsPath(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.RetryEmbeddings(context.Background(), "p1"))
	assert.Equal(t, "/api/policy/p1/embeddings/retry", gotPath)
}
