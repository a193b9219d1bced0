package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/polisee/polisee/internal/cli"
	"github.com/polisee/polisee/internal/model"
	"github.com/polisee/polisee/internal/wizard"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(cli.PrimaryColor).
			MarginBottom(1)

	stepDoneStyle   = lipgloss.NewStyle().Foreground(cli.SuccessColor)
	stepActiveStyle = lipgloss.NewStyle().Bold(true).Foreground(cli.PrimaryColor)
	stepTodoStyle   = lipgloss.NewStyle().Foreground(cli.SubtleColor)

	userStyle = lipgloss.NewStyle().Bold(true).Foreground(cli.PrimaryColor)
	botStyle  = lipgloss.NewStyle().Foreground(cli.InfoColor)

	helpStyle = lipgloss.NewStyle().Foreground(cli.SubtleColor).MarginTop(1)

	errorLineStyle = lipgloss.NewStyle().Foreground(cli.ErrorColor)

	candidateBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(cli.SubtleColor).
				Padding(0, 1)

	candidateSelectedStyle = candidateBoxStyle.
				BorderForeground(cli.PrimaryColor)
)

var stepLabels = []string{
	"Start", "Details", "Upload", "Processing", "Policy", "Chat", "Refunds", "Claim",
}

// View renders the wizard screen for the current step.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(cli.ShieldIcon + " Polisee Refund Finder"))
	b.WriteString("\n")
	b.WriteString(m.renderSteps())
	b.WriteString("\n\n")

	switch m.state.Step {
	case wizard.StepInit:
		b.WriteString(m.viewInit())
	case wizard.StepPersonalDetails:
		b.WriteString(m.viewDetails())
	case wizard.StepUpload:
		b.WriteString(m.viewUpload())
	case wizard.StepProcessing:
		b.WriteString(m.viewProcessing())
	case wizard.StepPolicyOptions:
		b.WriteString(m.viewPolicyOptions())
	case wizard.StepChat:
		b.WriteString(m.viewChat())
	case wizard.StepResults:
		b.WriteString(m.viewResults())
	case wizard.StepClaim:
		b.WriteString(m.viewClaim())
	}

	if m.statusErr != "" {
		b.WriteString("\n\n")
		b.WriteString(errorLineStyle.Render(cli.ErrorIcon + " " + m.statusErr))
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

// renderSteps draws the progress rail above the active view.
func (m Model) renderSteps() string {
	parts := make([]string, 0, len(stepLabels))
	for i, label := range stepLabels {
		switch {
		case wizard.Step(i) < m.state.Step:
			parts = append(parts, stepDoneStyle.Render(cli.SuccessIcon+" "+label))
		case wizard.Step(i) == m.state.Step:
			parts = append(parts, stepActiveStyle.Render("["+label+"]"))
		default:
			parts = append(parts, stepTodoStyle.Render(label))
		}
	}
	return strings.Join(parts, stepTodoStyle.Render(" · "))
}

func (m Model) viewInit() string {
	if m.state.InitError != "" {
		return cli.FormatError("Could not load your account: "+m.state.InitError) +
			"\n\n" + helpStyle.Render("r retry · q quit")
	}
	return fmt.Sprintf("%s Checking your profile and policies...", m.spinner.View())
}

func (m Model) viewDetails() string {
	var b strings.Builder
	b.WriteString(cli.FormatTitle("Tell us about yourself"))
	b.WriteString("\n")
	if m.state.Profile != nil {
		missing := m.state.Profile.MissingFields()
		if len(missing) > 0 {
			b.WriteString(cli.FormatWarning("Missing: " + strings.Join(missing, ", ")))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	for i := range m.detailInputs {
		cursor := "  "
		if i == m.detailFocus {
			cursor = cli.PromptStyle.Render("> ")
		}
		b.WriteString(cursor + m.detailInputs[i].View() + "\n")
	}
	return b.String()
}

func (m Model) viewUpload() string {
	var b strings.Builder
	b.WriteString(cli.FormatTitle("Upload your policy document"))
	b.WriteString("\n")
	if m.state.LastPolicyName != "" {
		b.WriteString(cli.SubtleStyle.Render("Last time you uploaded " + m.state.LastPolicyName))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	for i := range m.uploadInputs {
		cursor := "  "
		if i == m.uploadFocus {
			cursor = cli.PromptStyle.Render("> ")
		}
		b.WriteString(cursor + m.uploadInputs[i].View() + "\n")
	}
	if m.state.IsUploading {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s Uploading... %d%%", m.spinner.View(), m.state.UploadProgress))
	}
	if m.state.UploadError != "" {
		b.WriteString("\n")
		b.WriteString(errorLineStyle.Render(cli.ErrorIcon + " " + m.state.UploadError))
	}
	return b.String()
}

func (m Model) viewProcessing() string {
	var b strings.Builder
	if m.state.EmbeddingError != nil {
		b.WriteString(cli.FormatWarning("We hit a snag while indexing your policy"))
		b.WriteString("\n\n")
		b.WriteString(m.state.EmbeddingError.Message)
		b.WriteString("\n\n")
		if m.state.CanRetryEmbeddings() {
			attempts := wizard.MaxEmbeddingRetries - m.state.RetryAttempts
			b.WriteString(helpStyle.Render(fmt.Sprintf("r retry (%d left) · b continue anyway", attempts)))
		} else {
			b.WriteString(helpStyle.Render("b continue anyway"))
		}
		return b.String()
	}

	b.WriteString(fmt.Sprintf("%s Analyzing your policy...", m.spinner.View()))
	b.WriteString("\n\n")
	b.WriteString(cli.SubtleStyle.Render("This usually takes a few seconds. We'll move on automatically."))
	return b.String()
}

func (m Model) viewPolicyOptions() string {
	var b strings.Builder
	name := "your policy"
	if m.state.Policy != nil && m.state.Policy.FileName != "" {
		name = m.state.Policy.FileName
	} else if m.state.LastPolicyName != "" {
		name = m.state.LastPolicyName
	}
	b.WriteString(cli.RenderBox(cli.DocIcon+" Policy on file", name))
	b.WriteString("\n\n")
	b.WriteString("c  chat about this policy\n")
	b.WriteString("u  upload a different document\n")
	return b.String()
}

func (m Model) viewChat() string {
	var b strings.Builder
	if m.ready {
		b.WriteString(m.chatView.View())
	} else {
		b.WriteString(strings.Join(m.transcript, "\n"))
	}
	b.WriteString("\n\n")
	b.WriteString(cli.PromptStyle.Render("> ") + m.chatInput.View())
	return b.String()
}

// renderMessage formats one transcript entry, including structured extras.
func renderMessage(msg model.ChatMessage) string {
	if msg.Sender == model.SenderUser {
		return userStyle.Render("You: ") + msg.Text
	}

	out := botStyle.Render(cli.RobotIcon+" ") + msg.Text
	if msg.Structured != nil {
		if len(msg.Structured.RequiredDocuments) > 0 {
			out += "\n" + cli.SubtleStyle.Render("Documents needed: "+strings.Join(msg.Structured.RequiredDocuments, ", "))
		}
		if len(msg.Structured.QuickReplies) > 0 {
			out += "\n" + cli.SubtleStyle.Render("Try: "+strings.Join(msg.Structured.QuickReplies, " / "))
		}
	}
	if msg.Candidate != nil {
		out += "\n" + candidateBoxStyle.Render(renderCandidate(*msg.Candidate))
	}
	return out
}

func renderCandidate(c model.RefundCandidate) string {
	return fmt.Sprintf("%s %.2f ILS (%s confidence)\n%s",
		cli.MoneyIcon, c.Amount, c.ConfidenceLabel(), c.Description)
}

func (m Model) viewResults() string {
	var b strings.Builder
	b.WriteString(cli.FormatTitle("Potential refunds"))
	b.WriteString("\n\n")

	if len(m.state.Candidates) == 0 {
		b.WriteString(cli.SubtleStyle.Render("No refund candidates were found for this policy."))
		return b.String()
	}

	var total float64
	for i, c := range m.state.Candidates {
		style := candidateBoxStyle
		if i == m.resultsCursor {
			style = candidateSelectedStyle
		}
		b.WriteString(style.Render(renderCandidate(c)))
		b.WriteString("\n")
		total += c.Amount
	}
	b.WriteString("\n")
	b.WriteString(cli.SuccessStyle.Render(fmt.Sprintf("Total: %.2f ILS", total)))
	return b.String()
}

func (m Model) viewClaim() string {
	var b strings.Builder
	b.WriteString(cli.FormatTitle("Submit your claim"))
	b.WriteString("\n\n")

	if m.claimCase != "" {
		b.WriteString(cli.FormatSuccess("Claim submitted. Case " + m.claimCase))
		b.WriteString("\n\n")
		b.WriteString(cli.SubtleStyle.Render("We'll follow up by phone. Press enter to finish."))
		return b.String()
	}

	b.WriteString(m.claimInput.View())
	b.WriteString("\n\n")
	b.WriteString(cli.SubtleStyle.Render("Press enter to submit the claim for the selected refund."))
	return b.String()
}

// renderHelp keeps the footer keys in sync with the active step.
func (m Model) renderHelp() string {
	var keys string
	switch m.state.Step {
	case wizard.StepPersonalDetails:
		keys = "↑/↓ field · enter next/save · ctrl+c quit"
	case wizard.StepUpload:
		keys = "↑/↓ field · enter next/upload · esc back · ctrl+c quit"
	case wizard.StepChat:
		keys = "enter send · esc policy options · ctrl+c quit"
	case wizard.StepResults:
		keys = "↑/↓ select · a accept · x reject · enter claim · esc back · ctrl+c quit"
	case wizard.StepClaim:
		keys = "enter submit · esc back · ctrl+c quit"
	default:
		keys = "ctrl+c quit"
	}
	return helpStyle.Render(keys)
}
