package model

// RefundCandidate is a possible reimbursement detected by the analysis
// service, awaiting user confirmation.
type RefundCandidate struct {
	ID          string  `json:"id,omitempty"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Type        string  `json:"type,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// ConfidenceLabel buckets the confidence score for display.
func (c *RefundCandidate) ConfidenceLabel() string {
	switch {
	case c.Confidence >= 0.8:
		return "high"
	case c.Confidence >= 0.5:
		return "medium"
	default:
		return "low"
	}
}
