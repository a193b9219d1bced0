package tui

import (
	"github.com/polisee/polisee/internal/model"
	"github.com/polisee/polisee/internal/wizard"
)

// wizardStateMsg delivers a controller snapshot after any transition,
// including ones triggered off the UI thread (SSE events, fallback timers).
type wizardStateMsg struct {
	state wizard.State
}

// initDoneMsg signals the gatekeeper finished (err carries its failure).
type initDoneMsg struct {
	err error
}

// detailsSavedMsg signals the profile upsert finished.
type detailsSavedMsg struct {
	err error
}

// uploadDoneMsg signals the policy upload finished.
type uploadDoneMsg struct {
	err error
}

// chatReplyMsg carries the bot's reply (or the send failure).
type chatReplyMsg struct {
	reply *model.ChatMessage
	err   error
}

// retryDoneMsg signals an embedding retry finished.
type retryDoneMsg struct {
	err error
}

// candidateDoneMsg signals an accept/reject round-trip finished.
type candidateDoneMsg struct {
	caseID string
	err    error
}

// claimSubmittedMsg signals the claim request was recorded.
type claimSubmittedMsg struct {
	caseID string
	err    error
}
