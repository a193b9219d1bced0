package wizard

import (
	"encoding/json"

	"github.com/polisee/polisee/internal/model"
)

// event is a single state mutation request. All state changes flow through
// Controller.dispatch so transitions never race.
type event interface {
	isEvent()
}

type initStarted struct{}

type profileMissing struct{}

type profileIncomplete struct {
	profile *model.UserProfile
}

type policyResolved struct {
	policy   *model.Policy
	analysis []json.RawMessage
}

type noPolicyFound struct {
	profile *model.UserProfile
}

type initFailed struct {
	err error
}

type detailsSaved struct {
	profile *model.UserProfile
}

type uploadStarted struct{}

type uploadProgressed struct {
	percent int
}

type uploadFailed struct {
	err error
}

type uploadCompleted struct {
	policy   *model.Policy
	analysis []json.RawMessage
}

type processingStarted struct{}

type processingCompleted struct {
	// optimistic marks the transport-failure fallback path rather than a
	// genuine completion event.
	optimistic bool
}

type processingFailed struct {
	errText string
}

type embeddingRetryOK struct{}

type embeddingRetryFailed struct {
	errText string
}

type processingBypassed struct{}

type policyOptionsShown struct{}

type chatResumed struct{}

type refundsReady struct {
	candidates []model.RefundCandidate
}

type claimRequested struct{}

type wentBack struct{}

func (initStarted) isEvent()          {}
func (profileMissing) isEvent()       {}
func (profileIncomplete) isEvent()    {}
func (policyResolved) isEvent()       {}
func (noPolicyFound) isEvent()        {}
func (initFailed) isEvent()           {}
func (detailsSaved) isEvent()         {}
func (uploadStarted) isEvent()        {}
func (uploadProgressed) isEvent()     {}
func (uploadFailed) isEvent()         {}
func (uploadCompleted) isEvent()      {}
func (processingStarted) isEvent()    {}
func (processingCompleted) isEvent()  {}
func (processingFailed) isEvent()     {}
func (embeddingRetryOK) isEvent()     {}
func (embeddingRetryFailed) isEvent() {}
func (processingBypassed) isEvent()   {}
func (policyOptionsShown) isEvent()   {}
func (chatResumed) isEvent()          {}
func (refundsReady) isEvent()         {}
func (claimRequested) isEvent()       {}
func (wentBack) isEvent()             {}
