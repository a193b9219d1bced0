// Package chat implements the conversational step: sending questions,
// normalizing the heterogeneous bot responses, and the refund-candidate
// review lifecycle.
package chat

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/polisee/polisee/internal/model"
)

// answerPayload is the superset of shapes the analysis service replies with.
type answerPayload struct {
	Message string          `json:"message"`
	Content json.RawMessage `json:"content"`
	Text    string          `json:"text"`

	Meta struct {
		Step string `json:"step"`
	} `json:"meta"`
	ShowRefundsButton bool `json:"show_refunds_button"`

	Coverage          *model.CoverageBreakdown `json:"coverage"`
	RequiredDocuments []string                 `json:"required_documents"`
	QuickReplies      []string                 `json:"quick_replies"`
	Actions           []model.ContextualAction `json:"contextual_actions"`
	FollowUps         []string                 `json:"follow_up_questions"`
	RelevantSections  []string                 `json:"relevant_sections"`
}

// NormalizeAnswer flattens a bot answer into display text plus any structured
// payload. Fallback order for the text: message, content string, content list
// joined, text, then the raw JSON itself.
func NormalizeAnswer(raw json.RawMessage) (string, *model.StructuredReply) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}

	// Bare string answer
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s, nil
		}
		return string(trimmed), nil
	}

	if trimmed[0] != '{' {
		return string(trimmed), nil
	}

	var payload answerPayload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return string(trimmed), nil
	}

	text := payload.Message
	if text == "" {
		text = contentText(payload.Content)
	}
	if text == "" {
		text = payload.Text
	}
	if text == "" {
		text = string(trimmed)
	}

	return text, structuredFrom(payload)
}

// contentText handles the content field, which may be a string or a list of
// strings or {text} objects.
func contentText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
		return ""
	}

	if trimmed[0] != '[' {
		return ""
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return ""
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			parts = append(parts, s)
			continue
		}
		var obj struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && obj.Text != "" {
			parts = append(parts, obj.Text)
		}
	}

	return strings.Join(parts, "\n")
}

// structuredFrom keeps the structured payload only when something is set.
func structuredFrom(p answerPayload) *model.StructuredReply {
	reply := &model.StructuredReply{
		Coverage:          p.Coverage,
		RequiredDocuments: p.RequiredDocuments,
		QuickReplies:      p.QuickReplies,
		Actions:           p.Actions,
		FollowUps:         p.FollowUps,
		RelevantSections:  p.RelevantSections,
		ShowRefundsButton: p.ShowRefundsButton,
		Step:              p.Meta.Step,
	}

	if reply.Coverage == nil &&
		len(reply.RequiredDocuments) == 0 &&
		len(reply.QuickReplies) == 0 &&
		len(reply.Actions) == 0 &&
		len(reply.FollowUps) == 0 &&
		len(reply.RelevantSections) == 0 &&
		!reply.ShowRefundsButton &&
		reply.Step == "" {
		return nil
	}

	return reply
}
