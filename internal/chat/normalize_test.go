package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		wantText       string
		wantStructured bool
	}{
		{
			name:     "empty payload",
			raw:      "",
			wantText: "",
		},
		{
			name:     "json null",
			raw:      "null",
			wantText: "",
		},
		{
			name:     "bare string",
			raw:      `"Your policy covers dental care."`,
			wantText: "Your policy covers dental care.",
		},
		{
			name:     "message field wins",
			raw:      `{"message":"From message","content":"From content","text":"From text"}`,
			wantText: "From message",
		},
		{
			name:     "content string when message empty",
			raw:      `{"content":"From content","text":"From text"}`,
			wantText: "From content",
		},
		{
			name:     "content list of strings joined",
			raw:      `{"content":["first line","second line"]}`,
			wantText: "first line\nsecond line",
		},
		{
			name:     "content list of text objects",
			raw:      `{"content":[{"text":"part one"},{"text":"part two"}]}`,
			wantText: "part one\npart two",
		},
		{
			name:     "text field as last named fallback",
			raw:      `{"text":"From text"}`,
			wantText: "From text",
		},
		{
			name:     "unknown object falls back to raw json",
			raw:      `{"something":"else"}`,
			wantText: `{"something":"else"}`,
		},
		{
			name:           "structured payload extracted",
			raw:            `{"message":"ok","required_documents":["receipt"],"quick_replies":["yes","no"]}`,
			wantText:       "ok",
			wantStructured: true,
		},
		{
			name:           "refunds-ready flag survives",
			raw:            `{"message":"done","show_refunds_button":true,"meta":{"step":"refunds_ready"}}`,
			wantText:       "done",
			wantStructured: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, structured := NormalizeAnswer(json.RawMessage(tt.raw))
			assert.Equal(t, tt.wantText, text)
			if tt.wantStructured {
				assert.NotNil(t, structured)
			} else {
				assert.Nil(t, structured)
			}
		})
	}
}

func TestNormalizeAnswerStructuredFields(t *testing.T) {
	raw := `{
		"message": "Here is what I found",
		"show_refunds_button": true,
		"meta": {"step": "refunds_ready"},
		"required_documents": ["invoice", "discharge form"],
		"quick_replies": ["show refunds"],
		"follow_up_questions": ["anything else?"]
	}`

	text, structured := NormalizeAnswer(json.RawMessage(raw))
	require.NotNil(t, structured)
	assert.Equal(t, "Here is what I found", text)
	assert.True(t, structured.ShowRefundsButton)
	assert.Equal(t, "refunds_ready", structured.Step)
	assert.Equal(t, []string{"invoice", "discharge form"}, structured.RequiredDocuments)
	assert.Equal(t, []string{"show refunds"}, structured.QuickReplies)
	assert.Equal(t, []string{"anything else?"}, structured.FollowUps)
}
