package models

// IntentType is what the user wants to do with a piece of input
type IntentType string

const (
	IntentLogEntry     IntentType = "log_entry"
	IntentQueryMetrics IntentType = "query_metrics"
	IntentModifyUI     IntentType = "modify_ui"
)

// IntentConfidence is the classifier's coarse certainty
type IntentConfidence string

const (
	IntentConfidenceHigh   IntentConfidence = "high"
	IntentConfidenceMedium IntentConfidence = "medium"
	IntentConfidenceLow    IntentConfidence = "low"
)

// Intent is the classification of a single user input
type Intent struct {
	Type       IntentType       `json:"type" validate:"required,intent_type"`
	Confidence IntentConfidence `json:"confidence" validate:"required,intent_confidence"`
	Action     string           `json:"action" validate:"required"`
	Parameters map[string]any   `json:"parameters,omitempty"`
}
