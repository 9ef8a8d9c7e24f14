package domain

import (
	"time"
)

// OverrideRequirement states what a clinician must provide to proceed
// despite a non-GREEN verdict.
type OverrideRequirement string

const (
	// OverrideJustification requires a free-text justification.
	OverrideJustification OverrideRequirement = "justification"

	// OverrideSupervisor requires supervisor approval.
	OverrideSupervisor OverrideRequirement = "supervisor"

	// OverrideBlocked means the action cannot proceed at all.
	OverrideBlocked OverrideRequirement = "blocked"
)

// OverridePolicy is the tiered override state attached to a result.
type OverridePolicy struct {
	CanOverride bool                `json:"canOverride"`
	Requires    OverrideRequirement `json:"requires,omitempty"`
}

// AggregateGlosa combines the billing-denial exposure of all billing
// signals that carried a risk estimate.
type AggregateGlosa struct {
	// Probability is max(individual) + 10 per additional issue, capped at 98.
	Probability int `json:"probability"`

	// TotalAmount is the summed monetary exposure.
	TotalAmount float64 `json:"totalAmount"`

	// HighestRiskCode is the denial code of the riskiest signal.
	HighestRiskCode string `json:"highestRiskCode,omitempty"`

	IssueCount int `json:"issueCount"`
}

// CategorySummary counts red and yellow signals for one catalog.
type CategorySummary struct {
	Red    int `json:"red"`
	Yellow int `json:"yellow"`
}

// ResultMetadata carries processing information about one evaluation.
type ResultMetadata struct {
	EvaluationID string    `json:"evaluationId"`
	Timestamp    time.Time `json:"timestamp"`
	LatencyMs    int64     `json:"latencyMs"`

	RulesEvaluated int `json:"rulesEvaluated"`

	// PatientHash is a one-way hash of the patient id; the raw id is
	// never emitted in metadata.
	PatientHash string `json:"patientHash"`

	// Degraded marks results produced by the fail-open path after an
	// engine-level failure.
	Degraded bool `json:"degraded,omitempty"`

	EngineVersion string `json:"engineVersion,omitempty"`
}

// TrafficLightResult is the aggregated verdict of one evaluation.
// Callers always receive a well-formed value; the engine never errors.
type TrafficLightResult struct {
	Color   Color    `json:"color"`
	Signals []Signal `json:"signals"`

	Override OverridePolicy  `json:"override"`
	Glosa    *AggregateGlosa `json:"glosa,omitempty"`

	// NeedsChatAssistance is true iff Color != GREEN.
	NeedsChatAssistance bool `json:"needsChatAssistance"`

	Clinical       CategorySummary `json:"clinical"`
	Administrative CategorySummary `json:"administrative"`
	Billing        CategorySummary `json:"billing"`

	Metadata ResultMetadata `json:"metadata"`
}

// Summary returns the per-category counters for a catalog.
func (r *TrafficLightResult) Summary(cat RuleCategory) CategorySummary {
	switch cat {
	case CategoryClinical:
		return r.Clinical
	case CategoryAdministrative:
		return r.Administrative
	case CategoryBilling:
		return r.Billing
	}
	return CategorySummary{}
}
