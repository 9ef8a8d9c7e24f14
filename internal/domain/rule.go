package domain

// RuleDefinition is the static metadata of a registry entry.
type RuleDefinition struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Version     string        `json:"version,omitempty"`
	Category    RuleCategory  `json:"category"`
	Color       Color         `json:"defaultColor"`
	Enabled     bool          `json:"enabled"`
	Description BilingualText `json:"description"`

	// Reference is an optional regulatory citation (ANS, CFM, RDC).
	Reference string `json:"reference,omitempty"`

	// GlosaWeight is an optional denial-risk weight hint for analytics.
	GlosaWeight float64 `json:"glosaWeight,omitempty"`

	// Actions is the set of action kinds the rule applies to.
	Actions []ActionKind `json:"actions"`
}

// AppliesTo reports whether the rule evaluates for the given action kind.
func (d RuleDefinition) AppliesTo(action ActionKind) bool {
	for _, a := range d.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Rule is one independently evaluable registry entry.
//
// Evaluate must be pure with respect to its inputs: it only reads the
// contexts and returns nil when the rule does not trigger. Panics are
// rule-author bugs; the engine recovers them and treats the rule as
// non-triggering.
type Rule interface {
	Definition() RuleDefinition
	Evaluate(ctx *EvaluationContext, patient *PatientContext) *Signal
}

// Marker rule ids that force the blocked override tier regardless of any
// other signal present.
const (
	RuleIDInteractionLethal = "CLIN-INT-LETHAL"
	RuleIDAllergySevere     = "CLIN-ALLERGY-SEVERE"
)

// BlocksOverride reports whether a signal carries a non-overridable marker:
// a lethal drug interaction or a direct severe-allergy match.
func BlocksOverride(s Signal) bool {
	return s.RuleID == RuleIDInteractionLethal || s.RuleID == RuleIDAllergySevere
}

// GlobalClinicID marks expression rules visible to every clinic.
const GlobalClinicID = "*"

// ExprRuleConfig is a clinic-defined expression rule. The CEL expression is
// compiled at load time; when it evaluates to true the configured signal is
// emitted.
type ExprRuleConfig struct {
	ID       string       `json:"id"`
	ClinicID string       `json:"clinicId,omitempty"`
	Name     string       `json:"name"`
	Version  string       `json:"version,omitempty"`
	Category RuleCategory `json:"category"`
	Color    Color        `json:"color"`

	// Expression is a CEL expression over the evaluation variables
	// (patient_age, pregnant, medication, billed_amount, ...). Must
	// return bool.
	Expression string `json:"expression"`

	Message   BilingualText `json:"message"`
	Reference string        `json:"reference,omitempty"`

	Actions []ActionKind `json:"actions"`
	Enabled bool         `json:"enabled"`

	// Optional glosa estimate attached to emitted signals.
	GlosaProbability int     `json:"glosaProbability,omitempty"`
	GlosaAmount      float64 `json:"glosaAmount,omitempty"`
	GlosaDenialCode  string  `json:"glosaDenialCode,omitempty"`
}
