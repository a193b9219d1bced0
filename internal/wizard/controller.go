package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/polisee/polisee/internal/common"
	"github.com/polisee/polisee/internal/model"
	"github.com/polisee/polisee/internal/service"
	"github.com/polisee/polisee/internal/storage"
)

// MaxEmbeddingRetries caps client-visible retry attempts; bypass stays
// available afterwards.
const MaxEmbeddingRetries = 3

// defaultFallbackDelay is how long the optimistic-completion fallback waits
// after a stream-level failure before assuming the analysis finished.
const defaultFallbackDelay = 15 * time.Second

// State is a snapshot of the wizard. Copies are handed to observers; the
// controller owns the only mutable instance.
type State struct {
	Step Step

	Profile  *model.UserProfile
	Policy   *model.Policy
	Analysis []json.RawMessage

	Candidates     []model.RefundCandidate
	EmbeddingError *model.EmbeddingError
	RetryAttempts  int

	InitError   string
	UploadError string

	UploadProgress int // 0-100

	IsLoading      bool
	IsInitializing bool
	IsUploading    bool
	IsProcessing   bool

	// LastPolicyName is display-only continuity, never authoritative.
	LastPolicyName string
}

// CanRetryEmbeddings reports whether the retry affordance is still enabled.
func (s State) CanRetryEmbeddings() bool {
	return s.RetryAttempts < MaxEmbeddingRetries
}

// Config wires the controller's collaborators.
type Config struct {
	API      service.RefundService
	Notifier service.Notifier
	Store    service.Store // optional
	UserID   string

	// FallbackDelay overrides the optimistic-completion delay (tests).
	FallbackDelay time.Duration
}

// Controller owns the wizard state machine. Every mutation goes through
// dispatch, so transitions are serialized and idempotent where the flow
// demands it.
type Controller struct {
	api      service.RefundService
	notifier service.Notifier
	store    service.Store
	logger   *slog.Logger
	userID   string

	fallbackDelay time.Duration

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu       sync.Mutex
	state    State
	sub      service.Subscription // single-owner handle
	onChange func(State)
}

// NewController creates a wizard controller for one user session.
func NewController(cfg Config) (*Controller, error) {
	if cfg.API == nil {
		return nil, fmt.Errorf("api service is required")
	}
	if cfg.UserID == "" {
		return nil, common.NewUserError("You must be logged in to start", common.ErrUnauthorized)
	}

	delay := cfg.FallbackDelay
	if delay <= 0 {
		delay = defaultFallbackDelay
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		api:           cfg.API,
		notifier:      cfg.Notifier,
		store:         cfg.Store,
		userID:        cfg.UserID,
		fallbackDelay: delay,
		baseCtx:       ctx,
		baseCancel:    cancel,
		logger:        slog.Default().With("component", "wizard"),
		state:         State{Step: StepInit},
	}, nil
}

// State returns a snapshot of the current wizard state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnChange registers a callback invoked with a snapshot after every
// transition. Used by the TUI to re-render.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Close tears down the notification subscription and stops any pending
// fallback timers from mutating state.
func (c *Controller) Close() {
	c.baseCancel()
	c.closeSubscription()
}

// dispatch is the single mutation entry point.
func (c *Controller) dispatch(ev event) {
	c.mu.Lock()
	reduce(&c.state, ev)
	snapshot := c.state
	fn := c.onChange
	c.mu.Unlock()

	c.logger.Debug("Wizard transition", "step", snapshot.Step.String())

	if fn != nil {
		fn(snapshot)
	}
}

// reduce applies one event to the state. Completion is idempotent: advancing
// past processing a second time is a no-op, including error cleanup.
func reduce(s *State, ev event) {
	switch ev := ev.(type) {
	case initStarted:
		s.Step = StepInit
		s.IsInitializing = true
		s.IsLoading = true
		s.InitError = ""

	case profileMissing:
		s.Profile = nil
		s.Step = StepPersonalDetails
		s.clearInitFlags()

	case profileIncomplete:
		s.Profile = ev.profile
		s.Step = StepPersonalDetails
		s.clearInitFlags()

	case policyResolved:
		s.Policy = ev.policy
		s.Analysis = ev.analysis
		s.LastPolicyName = ev.policy.FileName
		s.Step = StepChat
		s.clearInitFlags()

	case noPolicyFound:
		s.Profile = ev.profile
		s.Step = StepUpload
		s.clearInitFlags()

	case initFailed:
		// Surfaced with a retry affordance instead of a silent stall.
		s.Step = StepInit
		s.InitError = ev.err.Error()
		s.clearInitFlags()

	case detailsSaved:
		s.Profile = ev.profile
		s.Step = StepUpload

	case uploadStarted:
		s.IsUploading = true
		s.IsProcessing = false
		s.UploadError = ""
		s.UploadProgress = 0

	case uploadProgressed:
		s.UploadProgress = ev.percent

	case uploadFailed:
		s.IsUploading = false
		s.UploadError = ev.err.Error()

	case uploadCompleted:
		s.Policy = ev.policy
		s.Analysis = ev.analysis
		s.LastPolicyName = ev.policy.FileName
		s.UploadProgress = 100
		s.IsUploading = false
		s.IsProcessing = true
		s.EmbeddingError = nil
		s.Step = StepProcessing

	case processingStarted:
		s.Step = StepProcessing
		s.IsProcessing = true
		s.IsUploading = false
		s.EmbeddingError = nil

	case processingCompleted:
		if s.Step != StepProcessing {
			return // already advanced, whichever path won
		}
		if ev.optimistic && s.EmbeddingError != nil {
			return // a surfaced failure keeps the retry panel; only a genuine completion clears it
		}
		s.Step = StepChat
		s.IsProcessing = false
		s.EmbeddingError = nil

	case processingFailed:
		if s.Step != StepProcessing {
			return
		}
		s.IsProcessing = false
		s.EmbeddingError = &model.EmbeddingError{
			Type:    string(model.EventProcessingFailed),
			Message: "We could not finish analyzing your policy",
			Details: ev.errText,
		}

	case embeddingRetryOK:
		s.EmbeddingError = nil
		s.IsProcessing = true

	case embeddingRetryFailed:
		if s.EmbeddingError == nil {
			s.EmbeddingError = &model.EmbeddingError{Type: string(model.EventProcessingFailed)}
		}
		s.EmbeddingError.Message = "Retry failed"
		s.EmbeddingError.Details = ev.errText

	case processingBypassed:
		s.Step = StepChat
		s.IsProcessing = false
		s.EmbeddingError = nil

	case policyOptionsShown:
		s.Step = StepPolicyOptions

	case chatResumed:
		s.Step = StepChat

	case refundsReady:
		if len(ev.candidates) > 0 {
			s.Candidates = ev.candidates
		}
		s.Step = StepResults

	case claimRequested:
		s.Step = StepClaim

	case wentBack:
		switch s.Step {
		case StepClaim:
			s.Step = StepResults
		case StepResults:
			s.Step = StepChat
		case StepChat:
			s.Step = StepPolicyOptions
		case StepPolicyOptions:
			s.Step = StepUpload
		case StepUpload:
			if s.Profile != nil && s.Profile.IsComplete() {
				s.Step = StepInit
			} else {
				s.Step = StepPersonalDetails
			}
		case StepPersonalDetails:
			s.Step = StepInit
		}
	}
}

func (s *State) clearInitFlags() {
	s.IsInitializing = false
	s.IsLoading = false
}

// Initialize runs the profile gatekeeper: decide between profile completion,
// upload, and resuming chat on an existing policy. Loading flags are cleared
// on every branch, including errors.
func (c *Controller) Initialize(ctx context.Context) error {
	c.dispatch(initStarted{})

	c.loadContinuity(ctx)

	profile, err := c.api.GetProfile(ctx, c.userID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		c.dispatch(profileMissing{})
		return nil
	case err != nil:
		c.dispatch(initFailed{err: err})
		return common.NewUserError("Could not load your profile", err)
	}

	if !profile.IsComplete() {
		c.logger.Info("Profile incomplete, routing to personal details",
			"missing", profile.MissingFields())
		c.dispatch(profileIncomplete{profile: profile})
		return nil
	}

	policy := c.resolvePolicy(ctx, profile)
	if policy == nil {
		c.dispatch(noPolicyFound{profile: profile})
		return nil
	}

	c.dispatch(policyResolved{
		policy:   policy,
		analysis: model.NormalizeAnalysis(policy.Analysis),
	})
	c.persistPolicyName(policy.FileName)
	return nil
}

// resolvePolicy prefers the policy referenced on the profile, then the most
// recently uploaded one. Fetch failures degrade to "no policy" so the wizard
// lands on a safe earlier step instead of crashing.
func (c *Controller) resolvePolicy(ctx context.Context, profile *model.UserProfile) *model.Policy {
	if profile.PolicyID != "" {
		policy, err := c.api.GetPolicy(ctx, profile.PolicyID)
		if err == nil {
			return policy
		}
		c.logger.Warn("Referenced policy not resolvable, falling back to list",
			"policy_id", profile.PolicyID, "error", err)
	}

	policies, err := c.api.ListPolicies(ctx, c.userID)
	if err != nil {
		c.logger.Warn("Could not list policies", "error", err)
		return nil
	}
	if len(policies) == 0 {
		return nil
	}
	// Most recent first per the API contract
	return &policies[0]
}

// SaveDetails upserts the profile and advances to the upload step.
func (c *Controller) SaveDetails(ctx context.Context, profile model.UserProfile) error {
	profile.UserID = c.userID
	if missing := profile.MissingFields(); len(missing) > 0 {
		return common.NewUserError(
			fmt.Sprintf("Please fill in: %v", missing),
			common.ErrInvalidConfig,
		)
	}

	saved, err := c.api.SaveProfile(ctx, &profile)
	if err != nil {
		return err
	}

	c.dispatch(detailsSaved{profile: saved})
	return nil
}

// Upload submits a policy document, advances to processing, and opens the
// notification stream. The error is surfaced in state and also returned so
// the caller can render it.
func (c *Controller) Upload(ctx context.Context, req service.UploadRequest) error {
	req.UserID = c.userID

	c.dispatch(uploadStarted{})

	callerProgress := req.Progress
	req.Progress = func(sent, total int64) {
		if total > 0 {
			c.dispatch(uploadProgressed{percent: int(sent * 100 / total)})
		}
		if callerProgress != nil {
			callerProgress(sent, total)
		}
	}

	result, err := c.api.UploadPolicy(ctx, req)
	if err != nil {
		c.dispatch(uploadFailed{err: err})
		return err
	}

	c.dispatch(uploadCompleted{
		policy:   &result.Policy,
		analysis: model.NormalizeAnalysis(result.Answer),
	})
	c.persistPolicyName(result.Policy.FileName)

	c.startNotifications(result.Policy.ID)
	return nil
}

// startNotifications opens the event stream for a policy, first tearing down
// any prior subscription. At most one subscription is live per policy.
func (c *Controller) startNotifications(policyID string) {
	if c.notifier == nil {
		return
	}

	c.closeSubscription()

	sub, err := c.notifier.Subscribe(c.baseCtx, policyID)
	if err != nil {
		// Optimistic completion on transport failure: assume the backend
		// finished rather than stranding the user on the processing step.
		c.logger.Warn("Notification stream unavailable, falling back to optimistic completion",
			"policy_id", policyID, "error", err)
		c.scheduleOptimisticCompletion()
		return
	}

	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	go c.pumpEvents(sub)
}

// pumpEvents translates stream frames into wizard transitions.
func (c *Controller) pumpEvents(sub service.Subscription) {
	for ev := range sub.Events() {
		switch ev.Type {
		case model.EventProcessingStarted:
			c.dispatch(processingStarted{})
		case model.EventProcessingCompleted:
			c.dispatch(processingCompleted{})
			c.closeSubscription()
			return
		case model.EventProcessingFailed:
			c.dispatch(processingFailed{errText: ev.Error})
		}
	}

	if err := sub.Err(); err != nil {
		c.logger.Warn("Notification stream failed", "error", err)
		c.scheduleOptimisticCompletion()
	}
}

// scheduleOptimisticCompletion arms the fixed-delay fallback. The reducer
// makes it lose to any genuine completion that lands first, and refuses it
// outright while an embedding failure is on screen.
func (c *Controller) scheduleOptimisticCompletion() {
	timer := time.AfterFunc(c.fallbackDelay, func() {
		c.dispatch(processingCompleted{optimistic: true})
	})
	go func() {
		<-c.baseCtx.Done()
		timer.Stop()
	}()
}

// closeSubscription invokes and clears the single-owner cleanup handle.
// Idempotent: a second call finds nothing to close.
func (c *Controller) closeSubscription() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// RetryEmbeddings re-runs the backend embedding job, capped at
// MaxEmbeddingRetries client-visible attempts.
func (c *Controller) RetryEmbeddings(ctx context.Context) error {
	c.mu.Lock()
	if c.state.RetryAttempts >= MaxEmbeddingRetries {
		c.mu.Unlock()
		return common.ErrRetriesExhausted
	}
	c.state.RetryAttempts++
	var policyID string
	if c.state.Policy != nil {
		policyID = c.state.Policy.ID
	}
	c.mu.Unlock()

	if policyID == "" {
		return common.ErrNoPolicy
	}

	if err := c.api.RetryEmbeddings(ctx, policyID); err != nil {
		c.dispatch(embeddingRetryFailed{errText: err.Error()})
		return err
	}

	c.dispatch(embeddingRetryOK{})
	return nil
}

// BypassProcessing force-continues to chat despite a processing failure.
func (c *Controller) BypassProcessing() {
	c.dispatch(processingBypassed{})
}

// ShowPolicyOptions surfaces the existing-policy choices screen.
func (c *Controller) ShowPolicyOptions() {
	c.dispatch(policyOptionsShown{})
}

// ResumeChat returns to the chat step from the policy-options screen.
func (c *Controller) ResumeChat() {
	c.dispatch(chatResumed{})
}

// RefundsReady advances to results once the chat flow signals the refunds
// list is final.
func (c *Controller) RefundsReady(candidates []model.RefundCandidate) {
	c.dispatch(refundsReady{candidates: candidates})
}

// RequestClaim moves from results to the claim submission step.
func (c *Controller) RequestClaim() {
	c.dispatch(claimRequested{})
}

// Back moves to the previous logical step.
func (c *Controller) Back() {
	c.dispatch(wentBack{})
}

// loadContinuity restores display-only values from the local store.
func (c *Controller) loadContinuity(ctx context.Context) {
	if c.store == nil {
		return
	}
	name, err := c.store.GetSetting(ctx, storage.KeyLastPolicyName)
	if err != nil || name == "" {
		return
	}
	c.mu.Lock()
	c.state.LastPolicyName = name
	c.mu.Unlock()
}

// persistPolicyName saves the uploaded policy's display name. Failures are
// logged and ignored; the value is cosmetic.
func (c *Controller) persistPolicyName(name string) {
	if c.store == nil || name == "" {
		return
	}
	if err := c.store.SetSetting(c.baseCtx, storage.KeyLastPolicyName, name); err != nil {
		c.logger.Warn("Could not persist policy name", "error", err)
	}
}
