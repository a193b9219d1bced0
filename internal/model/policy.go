package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Policy is an uploaded insurance document and its derived analysis. Immutable
// from the client's perspective; re-uploading creates a new record.
type Policy struct {
	ID       string          `json:"id"`
	FileHash string          `json:"file_hash"`
	FileName string          `json:"file_name"`
	UserID   string          `json:"user_id,omitempty"`
	Analysis json.RawMessage `json:"analysis,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// NormalizeAnalysis coerces the backend's free-form analysis payload into a
// slice of sections. The payload may arrive as an array, a bare string, or a
// single object; null and empty input yield an empty slice.
func NormalizeAnalysis(raw json.RawMessage) []json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []json.RawMessage{}
	}

	if trimmed[0] == '[' {
		var sections []json.RawMessage
		if err := json.Unmarshal(trimmed, &sections); err != nil {
			return []json.RawMessage{trimmed}
		}
		return sections
	}

	// String or object: wrap as a single section
	return []json.RawMessage{trimmed}
}
