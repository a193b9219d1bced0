package model

// ProcessingEventType identifies a notification frame from the analysis
// pipeline's event stream.
type ProcessingEventType string

// Known processing event types.
const (
	EventProcessingStarted   ProcessingEventType = "rag_processing_started"
	EventProcessingCompleted ProcessingEventType = "rag_processing_completed"
	EventProcessingFailed    ProcessingEventType = "rag_processing_failed"
)

// ProcessingEvent is one decoded frame from a policy's notification stream.
type ProcessingEvent struct {
	Type  ProcessingEventType `json:"type"`
	Error string              `json:"error,omitempty"`
}

// EmbeddingError describes a recoverable text-vectorization failure surfaced
// to the user with retry and bypass affordances.
type EmbeddingError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
