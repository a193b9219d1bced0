package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripLinks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "markdown link keeps label",
			in:   "See [your policy](https://example.com/policy) for details.",
			want: "See your policy for details.",
		},
		{
			name: "bare url removed",
			in:   "Read more at https://example.com/terms today.",
			want: "Read more at today.",
		},
		{
			name: "multiple links",
			in:   "[a](http://x.com) and [b](http://y.com)",
			want: "a and b",
		},
		{
			name: "no links untouched",
			in:   "Dental care is covered.",
			want: "Dental care is covered.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripLinks(tt.in))
		})
	}
}

func TestFilterClaimVocabulary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "claim sentence removed",
			in:   "Dental care is covered. You can submit a claim on our website.",
			want: "Dental care is covered.",
		},
		{
			name: "whole line removed when all sentences match",
			in:   "Covered up to 5000.\nVisit the claims department to file a claim.",
			want: "Covered up to 5000.",
		},
		{
			name: "case insensitive",
			in:   "File A Claim today!",
			want: "",
		},
		{
			name: "clean text untouched",
			in:   "Your deductible is 200 per year.",
			want: "Your deductible is 200 per year.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterClaimVocabulary(tt.in))
		})
	}
}

func TestIsEmbeddingError(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"embedding failure", "failed to generate embeddings for document", true},
		{"pgvector error", "pgvector: relation does not exist", true},
		{"dimension mismatch", "Dimension mismatch in index", true},
		{"vector store", "vector store unavailable", true},
		{"unrelated error", "connection refused", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEmbeddingError(tt.in))
		})
	}
}
