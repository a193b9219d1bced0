package model

import "time"

// Sender tags who authored a chat message.
type Sender string

// Message senders.
const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage is one entry in the append-only chat transcript.
type ChatMessage struct {
	Sender     Sender           `json:"sender"`
	Text       string           `json:"text"`
	Structured *StructuredReply `json:"structured,omitempty"`
	Candidate  *RefundCandidate `json:"candidate,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// StructuredReply carries the optional structured payload of a bot response.
type StructuredReply struct {
	Coverage          *CoverageBreakdown `json:"coverage,omitempty"`
	RequiredDocuments []string           `json:"required_documents,omitempty"`
	QuickReplies      []string           `json:"quick_replies,omitempty"`
	Actions           []ContextualAction `json:"contextual_actions,omitempty"`
	FollowUps         []string           `json:"follow_up_questions,omitempty"`
	RelevantSections  []string           `json:"relevant_sections,omitempty"`
	ShowRefundsButton bool               `json:"show_refunds_button,omitempty"`
	Step              string             `json:"step,omitempty"`
}

// CoverageBreakdown splits policy coverage for display.
type CoverageBreakdown struct {
	Covered    []string `json:"covered,omitempty"`
	NotCovered []string `json:"not_covered,omitempty"`
	Conditions []string `json:"conditions,omitempty"`
}

// ContextualAction is a tappable action attached to a bot reply.
type ContextualAction struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// ChatSessionRecord is the locally cached handle for one chat session.
type ChatSessionRecord struct {
	ID        string
	PolicyID  string
	CreatedAt time.Time
}
