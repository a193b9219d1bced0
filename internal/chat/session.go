package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polisee/polisee/internal/model"
	"github.com/polisee/polisee/internal/service"
)

// ErrBusy is returned when a send is attempted while another is in flight.
var ErrBusy = errors.New("a message is already in flight")

// genericFailureText is appended to the transcript when a send fails.
const genericFailureText = "Sorry, something went wrong. Please try again."

// Session is one chat conversation about one policy. One request may be in
// flight at a time; the transcript is append-only.
type Session struct {
	api    service.RefundService
	store  service.Store // optional transcript cache
	logger *slog.Logger

	userID   string
	policyID string
	id       string

	mu           sync.Mutex
	inFlight     bool
	messages     []model.ChatMessage
	embeddingErr *model.EmbeddingError
	staged       *model.RefundCandidate
}

// NewSession starts (or resumes) a chat session for a policy. An empty
// sessionID mints a fresh one and registers it in the local cache; a known
// sessionID restores its cached transcript. Cache failures are logged and
// ignored, the conversation works without them.
func NewSession(ctx context.Context, api service.RefundService, store service.Store, userID, policyID, sessionID string) *Session {
	resuming := sessionID != ""
	if sessionID == "" {
		sessionID = "chat-" + uuid.NewString()
	}
	s := &Session{
		api:      api,
		store:    store,
		userID:   userID,
		policyID: policyID,
		id:       sessionID,
		logger:   slog.Default().With("component", "chat", "session_id", sessionID),
	}

	if store == nil {
		return s
	}
	if resuming {
		msgs, err := store.GetChatMessages(ctx, sessionID)
		if err != nil {
			s.logger.Debug("Could not restore cached transcript", "error", err)
		}
		s.messages = msgs
	} else if policyID != "" {
		if err := store.CreateChatSession(ctx, sessionID, policyID); err != nil {
			s.logger.Debug("Could not register chat session", "error", err)
		}
	}
	return s
}

// ID returns the session identifier sent with every query.
func (s *Session) ID() string {
	return s.id
}

// IsLoading reports whether a send is outstanding (send controls disabled).
func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// EmbeddingError returns the active vectorization failure, if any.
func (s *Session) EmbeddingError() *model.EmbeddingError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.embeddingErr
}

// ClearEmbeddingError dismisses the retry panel after a successful retry.
func (s *Session) ClearEmbeddingError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddingErr = nil
}

// Send submits a question and appends both sides of the exchange to the
// transcript. On failure a generic message is appended, and embedding-related
// failures additionally raise the retry panel.
func (s *Session) Send(ctx context.Context, text string) (*model.ChatMessage, error) {
	if text == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.inFlight = true
	userMsg := model.ChatMessage{
		Sender:    model.SenderUser,
		Text:      text,
		CreatedAt: time.Now(),
	}
	s.messages = append(s.messages, userMsg)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	s.cache(ctx, userMsg)

	resp, err := s.api.Query(ctx, service.QueryRequest{
		UserID:    s.userID,
		Question:  text,
		PolicyID:  s.policyID,
		SessionID: s.id,
	})
	if err != nil {
		s.logger.Warn("Chat query failed", "error", err)
		failMsg := model.ChatMessage{
			Sender:    model.SenderBot,
			Text:      genericFailureText,
			CreatedAt: time.Now(),
		}
		s.mu.Lock()
		s.messages = append(s.messages, failMsg)
		if IsEmbeddingError(err.Error()) {
			s.embeddingErr = &model.EmbeddingError{
				Type:    "embedding_error",
				Message: "The policy text could not be vectorized",
				Details: err.Error(),
			}
		}
		s.mu.Unlock()
		return nil, err
	}

	display, structured := NormalizeAnswer(resp.Answer)
	display = FilterClaimVocabulary(StripLinks(display))

	botMsg := model.ChatMessage{
		Sender:     model.SenderBot,
		Text:       display,
		Structured: structured,
		Candidate:  resp.Candidate,
		CreatedAt:  time.Now(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, botMsg)
	s.mu.Unlock()

	s.cache(ctx, botMsg)

	return &botMsg, nil
}

// RefundsReady reports whether a bot reply signals the refund list is final.
func RefundsReady(msg *model.ChatMessage) bool {
	if msg == nil || msg.Structured == nil {
		return false
	}
	return msg.Structured.ShowRefundsButton || msg.Structured.Step == "refunds_ready"
}

// StageCandidate promotes a previewed candidate into the editable panel.
// Edits stay local until accepted.
func (s *Session) StageCandidate(c model.RefundCandidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged := c
	s.staged = &staged
}

// Staged returns the candidate currently under review, if any.
func (s *Session) Staged() *model.RefundCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged == nil {
		return nil
	}
	out := *s.staged
	return &out
}

// EditStaged updates the staged candidate's editable fields.
func (s *Session) EditStaged(amount float64, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged == nil {
		return fmt.Errorf("no candidate staged")
	}
	if amount > 0 {
		s.staged.Amount = amount
	}
	if description != "" {
		s.staged.Description = description
	}
	return nil
}

// AcceptStaged creates a server-side case from the staged candidate and
// appends a confirmation message to the transcript.
func (s *Session) AcceptStaged(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.staged == nil {
		s.mu.Unlock()
		return "", fmt.Errorf("no candidate staged")
	}
	candidate := *s.staged
	s.mu.Unlock()

	caseID, err := s.api.AcceptCandidate(ctx, s.userID, s.policyID, candidate)
	if err != nil {
		return "", err
	}

	confirmation := model.ChatMessage{
		Sender:    model.SenderBot,
		Text:      fmt.Sprintf("Your refund request for %.2f was submitted (case %s).", candidate.Amount, caseID),
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, confirmation)
	s.staged = nil
	s.mu.Unlock()

	s.cache(ctx, confirmation)

	return caseID, nil
}

// RejectStaged records the dismissal and drops the staged candidate.
func (s *Session) RejectStaged(ctx context.Context, reason string) error {
	s.mu.Lock()
	if s.staged == nil {
		s.mu.Unlock()
		return fmt.Errorf("no candidate staged")
	}
	candidateID := s.staged.ID
	s.staged = nil
	s.mu.Unlock()

	if err := s.api.RejectCandidate(ctx, s.userID, candidateID, reason); err != nil {
		s.logger.Warn("Could not record rejection", "error", err)
		return err
	}
	return nil
}

// cache writes a message to the local transcript store. Failures are logged
// and ignored; the cache is display-only continuity.
func (s *Session) cache(ctx context.Context, msg model.ChatMessage) {
	if s.store == nil {
		return
	}
	if err := s.store.AppendChatMessage(ctx, s.id, msg); err != nil {
		s.logger.Debug("Could not cache chat message", "error", err)
	}
}
