package domain

import (
	"time"
)

// ActionKind identifies the kind of clinical, administrative, or billing
// action being evaluated.
type ActionKind string

const (
	ActionOrder        ActionKind = "order"
	ActionPrescription ActionKind = "prescription"
	ActionProcedure    ActionKind = "procedure"
	ActionDiagnosis    ActionKind = "diagnosis"
	ActionBilling      ActionKind = "billing"
	ActionAdmission    ActionKind = "admission"
	ActionDischarge    ActionKind = "discharge"
)

// ValidAction reports whether k is one of the known action kinds.
func ValidAction(k ActionKind) bool {
	switch k {
	case ActionOrder, ActionPrescription, ActionProcedure, ActionDiagnosis,
		ActionBilling, ActionAdmission, ActionDischarge:
		return true
	}
	return false
}

// ActionPayload carries the action-specific fields of an evaluation request.
// Only the fields relevant to the action kind are populated; Extra is the
// escape hatch for ad hoc data consumed by clinic-defined expression rules.
type ActionPayload struct {
	Medication string `json:"medication,omitempty"`
	Dose       string `json:"dose,omitempty"`
	Frequency  string `json:"frequency,omitempty"`

	// Diagnosis is a CID-10 (ICD-10) code.
	Diagnosis string `json:"diagnosis,omitempty"`

	Procedure         string  `json:"procedure,omitempty"`
	ProcedureCategory string  `json:"procedureCategory,omitempty"`
	TISSCode          string  `json:"tissCode,omitempty"`
	BilledAmount      float64 `json:"billedAmount,omitempty"`

	// Prior authorization fields
	PriorAuthStatus string `json:"priorAuthStatus,omitempty"` // "approved", "pending", "denied" or empty
	PriorAuthExpiry string `json:"priorAuthExpiry,omitempty"` // RFC 3339 timestamp

	// OPME (prosthetics/orthotics/special materials) fields
	OPMEAuthorized     bool `json:"opmeAuthorized,omitempty"`
	OPMEItemAuthorized bool `json:"opmeItemAuthorized,omitempty"`

	// Documentation flags
	Documents            []string `json:"documents,omitempty"`
	SurgicalTeamComplete bool     `json:"surgicalTeamComplete,omitempty"`

	Extra map[string]interface{} `json:"extra,omitempty"`
}

// EvaluationContext is the caller-supplied input to one evaluation.
type EvaluationContext struct {
	PatientID string        `json:"patientId"`
	ClinicID  string        `json:"clinicId,omitempty"`
	Action    ActionKind    `json:"action"`
	Payload   ActionPayload `json:"payload"`

	// RawSnapshot is retained verbatim for audit capture.
	RawSnapshot map[string]interface{} `json:"rawSnapshot,omitempty"`

	// Patient is optional; when nil the engine loads it.
	Patient *PatientContext `json:"patient,omitempty"`
}

// AllergySeverity classifies a documented allergy.
type AllergySeverity string

const (
	SeverityMild     AllergySeverity = "MILD"
	SeverityModerate AllergySeverity = "MODERATE"
	SeveritySevere   AllergySeverity = "SEVERE"
)

// AllergyType classifies the allergen kind.
type AllergyType string

const (
	AllergyMedication    AllergyType = "MEDICATION"
	AllergyFood          AllergyType = "FOOD"
	AllergyEnvironmental AllergyType = "ENVIRONMENTAL"
	AllergyOther         AllergyType = "OTHER"
)

// Allergy is a documented active allergy.
type Allergy struct {
	Allergen string          `json:"allergen"`
	Severity AllergySeverity `json:"severity"`
	Type     AllergyType     `json:"type"`
}

// Medication is an active medication.
type Medication struct {
	Name      string `json:"name"`
	Dose      string `json:"dose,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

// Diagnosis is an active or chronic diagnosis.
type Diagnosis struct {
	Code        string `json:"code"` // CID-10
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"` // "active" or "chronic"
}

// LabStatus classifies a lab result.
type LabStatus string

const (
	LabNormal   LabStatus = "NORMAL"
	LabAbnormal LabStatus = "ABNORMAL"
	LabCritical LabStatus = "CRITICAL"
)

// LabResult is one laboratory result.
type LabResult struct {
	TestName   string    `json:"testName"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	Status     LabStatus `json:"status"`
	ResultDate time.Time `json:"resultDate"`
}

// MaxRecentLabs bounds the lab history presented to rules.
const MaxRecentLabs = 20

// PatientContext is the read-only clinical snapshot rules evaluate against.
// It is assembled fresh per evaluation and never mutated afterwards.
type PatientContext struct {
	PatientID string `json:"patientId"`
	Age       int    `json:"age"`
	Sex       string `json:"sex,omitempty"` // "M" or "F"
	Pregnant  bool   `json:"pregnant,omitempty"`

	Allergies   []Allergy    `json:"allergies,omitempty"`
	Medications []Medication `json:"medications,omitempty"`
	Diagnoses   []Diagnosis  `json:"diagnoses,omitempty"`

	// RecentLabs holds up to MaxRecentLabs results, most recent first.
	RecentLabs []LabResult `json:"recentLabs,omitempty"`
}

// EmptyPatientContext returns the degraded context used when the loader
// fails: identity only, no clinical data.
func EmptyPatientContext(patientID string) *PatientContext {
	return &PatientContext{PatientID: patientID}
}

// AgeFromBirthDate derives a patient's age in whole years at the given
// reference time.
func AgeFromBirthDate(birth, at time.Time) int {
	age := at.Year() - birth.Year()
	if at.YearDay() < birth.YearDay() {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
