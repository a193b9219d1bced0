package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisee/polisee/internal/common"
	"github.com/polisee/polisee/internal/model"
	"github.com/polisee/polisee/internal/service"
	"github.com/polisee/polisee/internal/wizard"
)

// stubAPI satisfies service.RefundService for wiring tests.
type stubAPI struct{}

func (stubAPI) GetProfile(context.Context, string) (*model.UserProfile, error) {
	return nil, common.ErrNotFound
}

func (stubAPI) SaveProfile(_ context.Context, p *model.UserProfile) (*model.UserProfile, error) {
	return p, nil
}

func (stubAPI) UploadPolicy(context.Context, service.UploadRequest) (*service.UploadResult, error) {
	return nil, errors.New("not implemented")
}

func (stubAPI) ListPolicies(context.Context, string) ([]model.Policy, error) { return nil, nil }

func (stubAPI) GetPolicy(context.Context, string) (*model.Policy, error) {
	return nil, common.ErrNotFound
}

func (stubAPI) Query(context.Context, service.QueryRequest) (*service.QueryResponse, error) {
	return nil, errors.New("not implemented")
}

func (stubAPI) RetryEmbeddings(context.Context, string) error { return nil }

func (stubAPI) AcceptCandidate(context.Context, string, string, model.RefundCandidate) (string, error) {
	return "", errors.New("not implemented")
}

func (stubAPI) RejectCandidate(context.Context, string, string, string) error { return nil }

func newTestModel(t *testing.T) Model {
	t.Helper()
	ctrl, err := wizard.NewController(wizard.Config{API: stubAPI{}, UserID: "user-1"})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)

	return newModel(Config{Controller: ctrl, API: stubAPI{}, UserID: "user-1"})
}

func TestStateChangeSyncsStepAndClearsError(t *testing.T) {
	m := newTestModel(t)
	m.statusErr = "old failure"

	updated, _ := m.handleStateChange(wizard.State{Step: wizard.StepUpload})
	got := updated.(Model)

	assert.Equal(t, wizard.StepUpload, got.state.Step)
	assert.Empty(t, got.statusErr)
}

func TestStateChangeCreatesChatSession(t *testing.T) {
	m := newTestModel(t)
	require.Nil(t, m.session)

	updated, _ := m.handleStateChange(wizard.State{
		Step:   wizard.StepChat,
		Policy: &model.Policy{ID: "policy-1"},
	})
	got := updated.(Model)

	require.NotNil(t, got.session)
	assert.NotEmpty(t, got.session.ID())
}

func TestViewShowsRetryAffordanceOnInitError(t *testing.T) {
	m := newTestModel(t)
	m.state = wizard.State{Step: wizard.StepInit, InitError: "gateway timeout"}

	view := m.View()
	assert.Contains(t, view, "gateway timeout")
	assert.Contains(t, view, "retry")
}

func TestViewProcessingShowsBypassAfterFailure(t *testing.T) {
	m := newTestModel(t)
	m.state = wizard.State{
		Step:           wizard.StepProcessing,
		EmbeddingError: &model.EmbeddingError{Message: "vectorization failed"},
	}

	view := m.View()
	assert.Contains(t, view, "vectorization failed")
	assert.Contains(t, view, "retry")
	assert.Contains(t, view, "continue anyway")
}

func TestViewProcessingHidesRetryWhenExhausted(t *testing.T) {
	m := newTestModel(t)
	m.state = wizard.State{
		Step:           wizard.StepProcessing,
		EmbeddingError: &model.EmbeddingError{Message: "vectorization failed"},
		RetryAttempts:  wizard.MaxEmbeddingRetries,
	}

	view := m.View()
	assert.NotContains(t, view, "r retry")
	assert.Contains(t, view, "continue anyway")
}

func TestUploadReadyRequiresAllFields(t *testing.T) {
	m := newTestModel(t)
	assert.False(t, m.uploadReady())

	m.uploadInputs[0].SetValue("clal")
	m.uploadInputs[1].SetValue("2024")
	assert.False(t, m.uploadReady())

	m.uploadInputs[2].SetValue("/tmp/policy.pdf")
	assert.True(t, m.uploadReady())
}

func TestForceQuitClosesProgram(t *testing.T) {
	m := newTestModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestRenderMessageShowsCandidate(t *testing.T) {
	out := renderMessage(model.ChatMessage{
		Sender:    model.SenderBot,
		Text:      "I found something.",
		Candidate: &model.RefundCandidate{Amount: 120, Description: "unused rider", Confidence: 0.9},
	})

	assert.Contains(t, out, "I found something.")
	assert.Contains(t, out, "120.00")
	assert.Contains(t, out, "unused rider")
	assert.Contains(t, out, "high")
}
