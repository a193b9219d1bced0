package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/polisee/polisee/internal/chat"
	"github.com/polisee/polisee/internal/common"
	"github.com/polisee/polisee/internal/model"
	"github.com/polisee/polisee/internal/service"
	"github.com/polisee/polisee/internal/wizard"
)

// detailFieldCount is the number of required profile inputs.
const detailFieldCount = 5

// Model is the wizard TUI: it renders the controller's state and translates
// key presses into controller calls.
type Model struct {
	keymap KeyMap

	ctrl    *wizard.Controller
	session *chat.Session
	api     service.RefundService
	store   service.Store
	userID  string

	state wizard.State

	detailInputs []textinput.Model
	detailFocus  int

	uploadInputs []textinput.Model // provider, version, file path
	uploadFocus  int

	chatInput  textinput.Model
	chatView   viewport.Model
	transcript []string
	sending    bool

	resultsCursor int

	claimInput textinput.Model
	claimCase  string

	spinner   spinner.Model
	statusErr string

	width    int
	height   int
	ready    bool
	quitting bool
}

// Config wires the TUI's collaborators.
type Config struct {
	Controller *wizard.Controller
	API        service.RefundService
	Store      service.Store
	UserID     string
}

// newModel creates the wizard TUI model.
func newModel(cfg Config) Model {
	details := make([]textinput.Model, detailFieldCount)
	placeholders := []string{"Full name", "Phone number", "National ID", "Date of birth (YYYY-MM-DD)", "Gender"}
	for i := range details {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 80
		if i == 0 {
			ti.Focus()
		}
		details[i] = ti
	}

	uploads := make([]textinput.Model, 3)
	uploadPlaceholders := []string{"Insurance provider", "Policy version", "Path to policy document"}
	for i := range uploads {
		ti := textinput.New()
		ti.Placeholder = uploadPlaceholders[i]
		ti.CharLimit = 200
		if i == 0 {
			ti.Focus()
		}
		uploads[i] = ti
	}

	chatInput := textinput.New()
	chatInput.Placeholder = "Ask about your policy..."
	chatInput.CharLimit = 500
	chatInput.Focus()

	claimInput := textinput.New()
	claimInput.Placeholder = "Anything we should know? (optional)"
	claimInput.CharLimit = 300

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		keymap:       DefaultKeyMap(),
		ctrl:         cfg.Controller,
		api:          cfg.API,
		store:        cfg.Store,
		userID:       cfg.UserID,
		state:        cfg.Controller.State(),
		detailInputs: details,
		uploadInputs: uploads,
		chatInput:    chatInput,
		claimInput:   claimInput,
		spinner:      sp,
	}
}

// Init starts the gatekeeper and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.initCmd(),
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keymap.ForceQuit) {
			m.quitting = true
			m.ctrl.Close()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chatView = viewport.New(msg.Width-4, max(msg.Height-8, 5))
		m.chatView.SetContent(strings.Join(m.transcript, "\n"))
		m.ready = true
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case wizardStateMsg:
		return m.handleStateChange(msg.state)

	case initDoneMsg:
		if msg.err != nil {
			m.statusErr = userMessage(msg.err)
		}
		m.state = m.ctrl.State()
		return m, nil

	case detailsSavedMsg:
		if msg.err != nil {
			m.statusErr = userMessage(msg.err)
		}
		m.state = m.ctrl.State()
		return m, nil

	case uploadDoneMsg:
		if msg.err != nil {
			m.statusErr = userMessage(msg.err)
		}
		m.state = m.ctrl.State()
		return m, nil

	case retryDoneMsg:
		if msg.err != nil {
			m.statusErr = userMessage(msg.err)
		}
		m.state = m.ctrl.State()
		return m, nil

	case chatReplyMsg:
		m.sending = false
		if msg.err != nil {
			m.statusErr = userMessage(msg.err)
		}
		m.refreshTranscript()
		if chat.RefundsReady(msg.reply) {
			m.ctrl.RefundsReady(m.collectCandidates())
			m.state = m.ctrl.State()
		}
		return m, nil

	case candidateDoneMsg:
		if msg.err != nil {
			m.statusErr = userMessage(msg.err)
		} else if msg.caseID != "" {
			m.claimCase = msg.caseID
		}
		m.refreshTranscript()
		return m, nil

	case claimSubmittedMsg:
		if msg.err != nil {
			m.statusErr = userMessage(msg.err)
		} else {
			m.claimCase = msg.caseID
		}
		return m, nil
	}

	return m.updateStep(msg)
}

// handleStateChange syncs a controller snapshot, lazily creating the chat
// session the first time the chat step is reached.
func (m Model) handleStateChange(st wizard.State) (tea.Model, tea.Cmd) {
	prev := m.state.Step
	m.state = st

	if st.Step == wizard.StepChat && m.session == nil {
		policyID := ""
		if st.Policy != nil {
			policyID = st.Policy.ID
		}
		m.session = chat.NewSession(context.Background(), m.api, m.store, m.userID, policyID, m.resumeSessionID(policyID))
		m.refreshTranscript()
	}

	if st.Step != prev {
		m.statusErr = ""
	}
	return m, nil
}

// resumeSessionID reuses the most recent cached session for continuity.
func (m Model) resumeSessionID(policyID string) string {
	if m.store == nil || policyID == "" {
		return ""
	}
	rec, err := m.store.GetLatestChatSession(context.Background(), policyID)
	if err != nil {
		return ""
	}
	return rec.ID
}

// updateStep routes input to the active step.
func (m Model) updateStep(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.state.Step {
	case wizard.StepInit:
		return m.updateInit(msg)
	case wizard.StepPersonalDetails:
		return m.updateDetails(msg)
	case wizard.StepUpload:
		return m.updateUpload(msg)
	case wizard.StepProcessing:
		return m.updateProcessing(msg)
	case wizard.StepPolicyOptions:
		return m.updatePolicyOptions(msg)
	case wizard.StepChat:
		return m.updateChat(msg)
	case wizard.StepResults:
		return m.updateResults(msg)
	case wizard.StepClaim:
		return m.updateClaim(msg)
	}
	return m, nil
}

func (m Model) updateInit(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keymap.Retry):
		if m.state.InitError != "" {
			m.statusErr = ""
			return m, m.initCmd()
		}
	case key.Matches(keyMsg, m.keymap.Quit):
		m.quitting = true
		m.ctrl.Close()
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateDetails(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m.updateDetailInputs(msg)
	}

	switch {
	case key.Matches(keyMsg, m.keymap.Down):
		m.detailFocus = (m.detailFocus + 1) % detailFieldCount
		return m.focusDetail()
	case key.Matches(keyMsg, m.keymap.Up):
		m.detailFocus = (m.detailFocus + detailFieldCount - 1) % detailFieldCount
		return m.focusDetail()
	case key.Matches(keyMsg, m.keymap.Next):
		if m.detailFocus < detailFieldCount-1 {
			m.detailFocus++
			return m.focusDetail()
		}
		return m, m.saveDetailsCmd()
	}

	return m.updateDetailInputs(msg)
}

func (m Model) focusDetail() (tea.Model, tea.Cmd) {
	cmds := make([]tea.Cmd, 0, detailFieldCount)
	for i := range m.detailInputs {
		if i == m.detailFocus {
			cmds = append(cmds, m.detailInputs[i].Focus())
		} else {
			m.detailInputs[i].Blur()
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) updateDetailInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmds := make([]tea.Cmd, len(m.detailInputs))
	for i := range m.detailInputs {
		m.detailInputs[i], cmds[i] = m.detailInputs[i].Update(msg)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) updateUpload(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m.updateUploadInputs(msg)
	}

	switch {
	case key.Matches(keyMsg, m.keymap.Back):
		m.ctrl.Back()
		m.state = m.ctrl.State()
		return m, nil
	case key.Matches(keyMsg, m.keymap.Down):
		m.uploadFocus = (m.uploadFocus + 1) % len(m.uploadInputs)
		return m.focusUpload()
	case key.Matches(keyMsg, m.keymap.Up):
		m.uploadFocus = (m.uploadFocus + len(m.uploadInputs) - 1) % len(m.uploadInputs)
		return m.focusUpload()
	case key.Matches(keyMsg, m.keymap.Next):
		if m.uploadFocus < len(m.uploadInputs)-1 {
			m.uploadFocus++
			return m.focusUpload()
		}
		if !m.uploadReady() {
			m.statusErr = "Provider, version and file are all required"
			return m, nil
		}
		return m, m.uploadCmd()
	}

	return m.updateUploadInputs(msg)
}

// uploadReady gates the submit action on non-empty provider and version.
func (m Model) uploadReady() bool {
	return strings.TrimSpace(m.uploadInputs[0].Value()) != "" &&
		strings.TrimSpace(m.uploadInputs[1].Value()) != "" &&
		strings.TrimSpace(m.uploadInputs[2].Value()) != ""
}

func (m Model) focusUpload() (tea.Model, tea.Cmd) {
	cmds := make([]tea.Cmd, 0, len(m.uploadInputs))
	for i := range m.uploadInputs {
		if i == m.uploadFocus {
			cmds = append(cmds, m.uploadInputs[i].Focus())
		} else {
			m.uploadInputs[i].Blur()
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) updateUploadInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmds := make([]tea.Cmd, len(m.uploadInputs))
	for i := range m.uploadInputs {
		m.uploadInputs[i], cmds[i] = m.uploadInputs[i].Update(msg)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) updateProcessing(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keymap.Retry):
		if m.state.EmbeddingError != nil && m.state.CanRetryEmbeddings() {
			return m, m.retryCmd()
		}
	case key.Matches(keyMsg, m.keymap.Bypass):
		if m.state.EmbeddingError != nil {
			m.ctrl.BypassProcessing()
			m.state = m.ctrl.State()
		}
	}
	return m, nil
}

func (m Model) updatePolicyOptions(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "c", "enter":
		m.ctrl.ResumeChat()
		m.state = m.ctrl.State()
	case "u":
		m.ctrl.Back() // back to upload for a fresh document
		m.state = m.ctrl.State()
	}
	return m, nil
}

func (m Model) updateChat(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.chatInput, cmd = m.chatInput.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, m.keymap.Back):
		m.ctrl.ShowPolicyOptions()
		m.state = m.ctrl.State()
		return m, nil
	case key.Matches(keyMsg, m.keymap.Next):
		text := strings.TrimSpace(m.chatInput.Value())
		if text == "" || m.sending {
			return m, nil
		}
		m.sending = true
		m.chatInput.SetValue("")
		m.refreshTranscript()
		return m, m.sendChatCmd(text)
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	cmds = append(cmds, cmd)
	m.chatView, cmd = m.chatView.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) updateResults(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	candidates := m.state.Candidates
	switch {
	case key.Matches(keyMsg, m.keymap.Up):
		if m.resultsCursor > 0 {
			m.resultsCursor--
		}
	case key.Matches(keyMsg, m.keymap.Down):
		if m.resultsCursor < len(candidates)-1 {
			m.resultsCursor++
		}
	case key.Matches(keyMsg, m.keymap.Accept):
		if m.resultsCursor < len(candidates) {
			return m, m.acceptCmd(candidates[m.resultsCursor])
		}
	case key.Matches(keyMsg, m.keymap.Reject):
		if m.resultsCursor < len(candidates) {
			return m, m.rejectCmd(candidates[m.resultsCursor])
		}
	case key.Matches(keyMsg, m.keymap.Back):
		m.ctrl.Back()
		m.state = m.ctrl.State()
	case key.Matches(keyMsg, m.keymap.Next):
		m.ctrl.RequestClaim()
		m.state = m.ctrl.State()
		m.claimInput.Focus()
	}
	return m, nil
}

func (m Model) updateClaim(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.claimInput, cmd = m.claimInput.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, m.keymap.Back):
		m.ctrl.Back()
		m.state = m.ctrl.State()
		return m, nil
	case key.Matches(keyMsg, m.keymap.Next):
		if m.claimCase != "" {
			m.quitting = true
			m.ctrl.Close()
			return m, tea.Quit
		}
		return m, m.submitClaimCmd(strings.TrimSpace(m.claimInput.Value()))
	}

	var cmd tea.Cmd
	m.claimInput, cmd = m.claimInput.Update(msg)
	return m, cmd
}

// refreshTranscript rebuilds the chat viewport from the session transcript.
func (m *Model) refreshTranscript() {
	if m.session == nil {
		return
	}
	lines := make([]string, 0, len(m.session.Messages()))
	for _, msg := range m.session.Messages() {
		lines = append(lines, renderMessage(msg))
	}
	if m.sending {
		lines = append(lines, botStyle.Render("..."))
	}
	m.transcript = lines
	m.chatView.SetContent(strings.Join(lines, "\n"))
	m.chatView.GotoBottom()
}

// collectCandidates gathers every candidate previewed during the chat.
func (m Model) collectCandidates() []model.RefundCandidate {
	if m.session == nil {
		return nil
	}
	var out []model.RefundCandidate
	for _, msg := range m.session.Messages() {
		if msg.Candidate != nil {
			out = append(out, *msg.Candidate)
		}
	}
	return out
}

// Commands

func (m Model) initCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		err := ctrl.Initialize(context.Background())
		return initDoneMsg{err: err}
	}
}

func (m Model) saveDetailsCmd() tea.Cmd {
	ctrl := m.ctrl
	profile := model.UserProfile{
		FullName:    strings.TrimSpace(m.detailInputs[0].Value()),
		PhoneNumber: strings.TrimSpace(m.detailInputs[1].Value()),
		NationalID:  strings.TrimSpace(m.detailInputs[2].Value()),
		DateOfBirth: strings.TrimSpace(m.detailInputs[3].Value()),
		Gender:      strings.TrimSpace(m.detailInputs[4].Value()),
	}
	return func() tea.Msg {
		err := ctrl.SaveDetails(context.Background(), profile)
		return detailsSavedMsg{err: err}
	}
}

func (m Model) uploadCmd() tea.Cmd {
	ctrl := m.ctrl
	provider := strings.TrimSpace(m.uploadInputs[0].Value())
	version := strings.TrimSpace(m.uploadInputs[1].Value())
	path := strings.TrimSpace(m.uploadInputs[2].Value())
	return func() tea.Msg {
		f, err := os.Open(path) // #nosec G304
		if err != nil {
			return uploadDoneMsg{err: common.NewUserError("Could not open the policy file", err)}
		}
		defer func() { _ = f.Close() }()

		err = ctrl.Upload(context.Background(), service.UploadRequest{
			File:     f,
			FileName: filepath.Base(path),
			Provider: provider,
			Version:  version,
		})
		return uploadDoneMsg{err: err}
	}
}

func (m Model) retryCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		err := ctrl.RetryEmbeddings(context.Background())
		return retryDoneMsg{err: err}
	}
}

func (m Model) sendChatCmd(text string) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		reply, err := session.Send(context.Background(), text)
		return chatReplyMsg{reply: reply, err: err}
	}
}

func (m Model) acceptCmd(candidate model.RefundCandidate) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		session.StageCandidate(candidate)
		caseID, err := session.AcceptStaged(context.Background())
		return candidateDoneMsg{caseID: caseID, err: err}
	}
}

func (m Model) rejectCmd(candidate model.RefundCandidate) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		session.StageCandidate(candidate)
		err := session.RejectStaged(context.Background(), "dismissed from results")
		return candidateDoneMsg{err: err}
	}
}

func (m Model) submitClaimCmd(note string) tea.Cmd {
	session := m.session
	state := m.state
	return func() tea.Msg {
		if session == nil || len(state.Candidates) == 0 {
			return claimSubmittedMsg{err: errors.New("nothing to claim")}
		}
		candidate := state.Candidates[0]
		if note != "" {
			candidate.Description = fmt.Sprintf("%s (%s)", candidate.Description, note)
		}
		session.StageCandidate(candidate)
		caseID, err := session.AcceptStaged(context.Background())
		return claimSubmittedMsg{caseID: caseID, err: err}
	}
}

// userMessage prefers the user-facing half of an error.
func userMessage(err error) string {
	var userErr *common.UserError
	if errors.As(err, &userErr) {
		return userErr.UserMessage
	}
	return err.Error()
}
