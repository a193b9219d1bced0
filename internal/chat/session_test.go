package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisee/polisee/internal/model"
	"github.com/polisee/polisee/internal/service"
)

// fakeAPI implements service.RefundService with injectable behavior.
type fakeAPI struct {
	queryFn  func(ctx context.Context, req service.QueryRequest) (*service.QueryResponse, error)
	acceptFn func(ctx context.Context, userID, policyID string, candidate model.RefundCandidate) (string, error)
	rejectFn func(ctx context.Context, userID, candidateID, reason string) error
}

func (f *fakeAPI) GetProfile(context.Context, string) (*model.UserProfile, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) SaveProfile(_ context.Context, p *model.UserProfile) (*model.UserProfile, error) {
	return p, nil
}

func (f *fakeAPI) UploadPolicy(context.Context, service.UploadRequest) (*service.UploadResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) ListPolicies(context.Context, string) ([]model.Policy, error) {
	return nil, nil
}

func (f *fakeAPI) GetPolicy(context.Context, string) (*model.Policy, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) Query(ctx context.Context, req service.QueryRequest) (*service.QueryResponse, error) {
	if f.queryFn != nil {
		return f.queryFn(ctx, req)
	}
	return &service.QueryResponse{Answer: json.RawMessage(`"ok"`)}, nil
}

func (f *fakeAPI) RetryEmbeddings(context.Context, string) error { return nil }

func (f *fakeAPI) AcceptCandidate(ctx context.Context, userID, policyID string, candidate model.RefundCandidate) (string, error) {
	if f.acceptFn != nil {
		return f.acceptFn(ctx, userID, policyID, candidate)
	}
	return "case-1", nil
}

func (f *fakeAPI) RejectCandidate(ctx context.Context, userID, candidateID, reason string) error {
	if f.rejectFn != nil {
		return f.rejectFn(ctx, userID, candidateID, reason)
	}
	return nil
}

func TestSessionSendAppendsBothSides(t *testing.T) {
	api := &fakeAPI{
		queryFn: func(_ context.Context, req service.QueryRequest) (*service.QueryResponse, error) {
			assert.Equal(t, "user-1", req.UserID)
			assert.Equal(t, "policy-1", req.PolicyID)
			assert.NotEmpty(t, req.SessionID)
			return &service.QueryResponse{
				Answer: json.RawMessage(`{"message":"Dental care is covered."}`),
			}, nil
		},
	}

	s := NewSession(context.Background(), api, nil, "user-1", "policy-1", "")
	reply, err := s.Send(context.Background(), "is dental covered?")
	require.NoError(t, err)
	assert.Equal(t, "Dental care is covered.", reply.Text)

	messages := s.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, model.SenderUser, messages[0].Sender)
	assert.Equal(t, "is dental covered?", messages[0].Text)
	assert.Equal(t, model.SenderBot, messages[1].Sender)
}

func TestSessionSendSanitizesReply(t *testing.T) {
	api := &fakeAPI{
		queryFn: func(context.Context, service.QueryRequest) (*service.QueryResponse, error) {
			return &service.QueryResponse{
				Answer: json.RawMessage(`{"message":"Covered. See [terms](https://x.com). You can submit a claim online."}`),
			}, nil
		},
	}

	s := NewSession(context.Background(), api, nil, "user-1", "policy-1", "")
	reply, err := s.Send(context.Background(), "what about surgery?")
	require.NoError(t, err)
	assert.Equal(t, "Covered. See terms.", reply.Text)
}

func TestSessionSendFailureAppendsGenericMessage(t *testing.T) {
	api := &fakeAPI{
		queryFn: func(context.Context, service.QueryRequest) (*service.QueryResponse, error) {
			return nil, errors.New("backend exploded")
		},
	}

	s := NewSession(context.Background(), api, nil, "user-1", "policy-1", "")
	_, err := s.Send(context.Background(), "hello")
	require.Error(t, err)

	messages := s.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, genericFailureText, messages[1].Text)
	assert.Nil(t, s.EmbeddingError())
}

func TestSessionSendEmbeddingFailureRaisesPanel(t *testing.T) {
	api := &fakeAPI{
		queryFn: func(context.Context, service.QueryRequest) (*service.QueryResponse, error) {
			return nil, errors.New("pgvector: embedding dimension mismatch")
		},
	}

	s := NewSession(context.Background(), api, nil, "user-1", "policy-1", "")
	_, err := s.Send(context.Background(), "hello")
	require.Error(t, err)

	embErr := s.EmbeddingError()
	require.NotNil(t, embErr)
	assert.Contains(t, embErr.Details, "pgvector")

	s.ClearEmbeddingError()
	assert.Nil(t, s.EmbeddingError())
}

func TestSessionSingleInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAPI{
		queryFn: func(context.Context, service.QueryRequest) (*service.QueryResponse, error) {
			close(started)
			<-release
			return &service.QueryResponse{Answer: json.RawMessage(`"done"`)}, nil
		},
	}

	s := NewSession(context.Background(), api, nil, "user-1", "policy-1", "")

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "first")
		errCh <- err
	}()

	<-started
	assert.True(t, s.IsLoading())

	_, err := s.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-errCh)
	assert.False(t, s.IsLoading())
}

func TestSessionSendEmptyMessage(t *testing.T) {
	s := NewSession(context.Background(), &fakeAPI{}, nil, "user-1", "policy-1", "")
	_, err := s.Send(context.Background(), "")
	require.Error(t, err)
	assert.Empty(t, s.Messages())
}

func TestRefundsReady(t *testing.T) {
	tests := []struct {
		name string
		msg  *model.ChatMessage
		want bool
	}{
		{"nil message", nil, false},
		{"no structured payload", &model.ChatMessage{Text: "hi"}, false},
		{
			"show refunds button",
			&model.ChatMessage{Structured: &model.StructuredReply{ShowRefundsButton: true}},
			true,
		},
		{
			"refunds ready step",
			&model.ChatMessage{Structured: &model.StructuredReply{Step: "refunds_ready"}},
			true,
		},
		{
			"other step",
			&model.ChatMessage{Structured: &model.StructuredReply{Step: "clarifying"}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RefundsReady(tt.msg))
		})
	}
}

func TestStagedCandidateLifecycle(t *testing.T) {
	var accepted model.RefundCandidate
	api := &fakeAPI{
		acceptFn: func(_ context.Context, userID, policyID string, candidate model.RefundCandidate) (string, error) {
			assert.Equal(t, "user-1", userID)
			assert.Equal(t, "policy-1", policyID)
			accepted = candidate
			return "case-42", nil
		},
	}

	s := NewSession(context.Background(), api, nil, "user-1", "policy-1", "")

	// Nothing staged yet
	_, err := s.AcceptStaged(context.Background())
	require.Error(t, err)

	s.StageCandidate(model.RefundCandidate{ID: "c1", Amount: 150, Description: "unused rider"})

	// Edits stay local until accepted
	require.NoError(t, s.EditStaged(175, ""))
	staged := s.Staged()
	require.NotNil(t, staged)
	assert.Equal(t, 175.0, staged.Amount)
	assert.Equal(t, "unused rider", staged.Description)

	caseID, err := s.AcceptStaged(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "case-42", caseID)
	assert.Equal(t, 175.0, accepted.Amount)
	assert.Nil(t, s.Staged())

	// Confirmation message appended
	messages := s.Messages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Text, "case-42")
}

func TestRejectStaged(t *testing.T) {
	var rejectedID, rejectedReason string
	api := &fakeAPI{
		rejectFn: func(_ context.Context, _, candidateID, reason string) error {
			rejectedID = candidateID
			rejectedReason = reason
			return nil
		},
	}

	s := NewSession(context.Background(), api, nil, "user-1", "policy-1", "")
	s.StageCandidate(model.RefundCandidate{ID: "c9", Amount: 80})

	require.NoError(t, s.RejectStaged(context.Background(), "not mine"))
	assert.Equal(t, "c9", rejectedID)
	assert.Equal(t, "not mine", rejectedReason)
	assert.Nil(t, s.Staged())
}

func TestNewSessionGeneratesID(t *testing.T) {
	s := NewSession(context.Background(), &fakeAPI{}, nil, "user-1", "policy-1", "")
	assert.NotEmpty(t, s.ID())

	// IDs must not collide even when sessions are created back to back.
	other := NewSession(context.Background(), &fakeAPI{}, nil, "user-1", "policy-1", "")
	assert.NotEqual(t, s.ID(), other.ID())

	resumed := NewSession(context.Background(), &fakeAPI{}, nil, "user-1", "policy-1", "chat-existing")
	assert.Equal(t, "chat-existing", resumed.ID())
}

// fakeStore implements service.Store in memory.
type fakeStore struct {
	sessions map[string]string // session id -> policy id
	messages map[string][]model.ChatMessage
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]string),
		messages: make(map[string][]model.ChatMessage),
	}
}

func (f *fakeStore) SetSetting(context.Context, string, string) error { return nil }

func (f *fakeStore) GetSetting(context.Context, string) (string, error) {
	return "", errors.New("not found")
}

func (f *fakeStore) CreateChatSession(_ context.Context, id, policyID string) error {
	if _, ok := f.sessions[id]; !ok {
		f.sessions[id] = policyID
	}
	return nil
}

func (f *fakeStore) GetLatestChatSession(_ context.Context, policyID string) (*model.ChatSessionRecord, error) {
	for id, pid := range f.sessions {
		if pid == policyID {
			return &model.ChatSessionRecord{ID: id, PolicyID: pid}, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeStore) AppendChatMessage(_ context.Context, sessionID string, msg model.ChatMessage) error {
	f.messages[sessionID] = append(f.messages[sessionID], msg)
	return nil
}

func (f *fakeStore) GetChatMessages(_ context.Context, sessionID string) ([]model.ChatMessage, error) {
	return f.messages[sessionID], nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

func TestNewSessionRegistersInCache(t *testing.T) {
	store := newFakeStore()

	s := NewSession(context.Background(), &fakeAPI{}, store, "user-1", "policy-1", "")

	assert.Equal(t, "policy-1", store.sessions[s.ID()])

	rec, err := store.GetLatestChatSession(context.Background(), "policy-1")
	require.NoError(t, err)
	assert.Equal(t, s.ID(), rec.ID)
}

func TestSessionResumeRestoresTranscript(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	api := &fakeAPI{
		queryFn: func(context.Context, service.QueryRequest) (*service.QueryResponse, error) {
			return &service.QueryResponse{Answer: json.RawMessage(`{"message":"Yes, therapy is covered."}`)}, nil
		},
	}

	// First session: registered in the cache, exchange cached as it happens.
	first := NewSession(ctx, api, store, "user-1", "policy-1", "")
	_, err := first.Send(ctx, "is therapy covered?")
	require.NoError(t, err)
	require.Len(t, store.messages[first.ID()], 2)

	// Resuming by the cached id restores the transcript.
	rec, err := store.GetLatestChatSession(ctx, "policy-1")
	require.NoError(t, err)

	resumed := NewSession(ctx, api, store, "user-1", "policy-1", rec.ID)
	messages := resumed.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, model.SenderUser, messages[0].Sender)
	assert.Equal(t, "is therapy covered?", messages[0].Text)
	assert.Equal(t, "Yes, therapy is covered.", messages[1].Text)

	// The resumed session keeps appending to the same cached transcript.
	_, err = resumed.Send(ctx, "and dental?")
	require.NoError(t, err)
	assert.Len(t, store.messages[rec.ID], 4)
	assert.Len(t, resumed.Messages(), 4)
}
