package domain

import "time"

// AuditEvent is the capture-sink record written for every non-GREEN
// evaluation. Delivery is best-effort; the engine never waits on it.
type AuditEvent struct {
	ID        string `json:"id"`
	EventType string `json:"eventType"`
	ClinicID  string `json:"clinicId,omitempty"`

	// Provider identifies the producing component.
	Provider string `json:"provider"`

	Action      ActionKind `json:"action"`
	Color       Color      `json:"color"`
	SignalCount int        `json:"signalCount"`
	PatientHash string     `json:"patientHash"`

	// Snapshot is the caller's raw action snapshot, retained verbatim.
	Snapshot map[string]interface{} `json:"snapshot,omitempty"`

	// Verdict is a compact summary of the result (colors, counts,
	// override tier), not the full signal list.
	Verdict map[string]interface{} `json:"verdict,omitempty"`

	LatencyMs int64     `json:"latencyMs"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventTypeEvaluation is the event type emitted by the rules engine.
const EventTypeEvaluation = "traffic_light_evaluation"

// AuditProvider identifies this engine in capture events.
const AuditProvider = "rules-engine"
