package signal

import (
	"time"

	"github.com/haven-media/sentinel/internal/category"
)

// ModalityContribution records how much one modality contributed to a fused
// detection: the modality confidence after damping/suppression, and the
// route weight it was fused with.
type ModalityContribution struct {
	Modality   Modality `json:"modality"`
	Confidence float64  `json:"confidence"`
	Weight     float64  `json:"weight"`
}

// TemporalContext carries the escalation state a temporal-pattern detection
// was scored against. Zero value means no temporal state applied.
type TemporalContext struct {
	Level          string  `json:"level,omitempty"`
	LevelScore     float64 `json:"level_score,omitempty"`
	EscalationRate float64 `json:"escalation_rate,omitempty"`
	Boost          float64 `json:"boost,omitempty"`
}

// Detection is the output of one fusion pipeline for one category. It is
// transient: the engine facade consumes it and never persists it as-is.
type Detection struct {
	Category         category.Category      `json:"category"`
	Timestamp        time.Time              `json:"timestamp"`
	Confidence       float64                `json:"confidence"` // fused, 0..100
	Route            category.Route         `json:"route"`
	Contributions    []ModalityContribution `json:"contributions,omitempty"`
	ValidationPassed bool                   `json:"validation_passed"`
	Temporal         TemporalContext        `json:"temporal,omitempty"`
}

// Decision is the engine's per-category verdict for one processed sample,
// produced for categories that survived the pre-filter and for
// temporal-pattern categories, which are scored on every sample.
type Decision struct {
	ID         string            `json:"id"`
	Category   category.Category `json:"category"`
	Confidence float64           `json:"confidence"`
	ShouldWarn bool              `json:"should_warn"`
	Route      category.Route    `json:"route"`
	Reasoning  []string          `json:"reasoning,omitempty"`
}

// FeedbackKind enumerates the user actions the threshold learner consumes.
type FeedbackKind string

const (
	FeedbackDismissed            FeedbackKind = "dismissed"
	FeedbackReportedMissed       FeedbackKind = "reported-missed"
	FeedbackSensitivityIncreased FeedbackKind = "sensitivity-increased"
	FeedbackSensitivityDecreased FeedbackKind = "sensitivity-decreased"
	FeedbackWatchedThrough       FeedbackKind = "watched-through"
	FeedbackConfirmedCorrect     FeedbackKind = "confirmed-correct"
)

// UserFeedback is one feedback event raised by the host UI when the user
// reacts to (or reports the absence of) a warning.
type UserFeedback struct {
	Category            category.Category `json:"category"`
	Kind                FeedbackKind      `json:"kind"`
	DetectionConfidence float64           `json:"detection_confidence"`
	Timestamp           time.Time         `json:"timestamp"`
}
