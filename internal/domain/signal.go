package domain

// Color is a traffic light severity. RED outranks YELLOW outranks GREEN.
type Color string

const (
	ColorRed    Color = "RED"
	ColorYellow Color = "YELLOW"
	ColorGreen  Color = "GREEN"
)

// Priority returns the ordering value used for worst-wins aggregation.
func (c Color) Priority() int {
	switch c {
	case ColorRed:
		return 3
	case ColorYellow:
		return 2
	case ColorGreen:
		return 1
	}
	return 0
}

// RuleCategory groups rules into the three catalogs.
type RuleCategory string

const (
	CategoryClinical       RuleCategory = "CLINICAL"
	CategoryAdministrative RuleCategory = "ADMINISTRATIVE"
	CategoryBilling        RuleCategory = "BILLING"
)

// BilingualText carries a Portuguese and an English rendering of a message.
type BilingualText struct {
	PT string `json:"pt"`
	EN string `json:"en"`
}

// GlosaRisk estimates the probability and exposure of an insurer denial
// attached to a single signal.
type GlosaRisk struct {
	// Probability is a percentage in [0, 100].
	Probability int `json:"probability"`

	// Amount is the estimated monetary exposure.
	Amount float64 `json:"amount,omitempty"`

	// DenialCode references the denial catalog (G001..G007).
	DenialCode string `json:"denialCode,omitempty"`

	RiskFactors []string `json:"riskFactors,omitempty"`
}

// Signal is one rule's verdict. A rule that does not trigger returns no
// signal at all; it never returns a GREEN placeholder.
type Signal struct {
	RuleID      string       `json:"ruleId"`
	RuleName    string       `json:"ruleName"`
	RuleVersion string       `json:"ruleVersion,omitempty"`
	Category    RuleCategory `json:"category"`
	Color       Color        `json:"color"`

	Message   BilingualText `json:"message"`
	Reference string        `json:"reference,omitempty"` // regulatory citation

	// Evidence cites the specific facts that triggered the rule,
	// e.g. "Documented allergy: Penicillin".
	Evidence []string `json:"evidence,omitempty"`

	// CrossReactivity marks allergy signals raised via a cross-reactivity
	// group rather than a direct allergen match.
	CrossReactivity bool `json:"crossReactivity,omitempty"`

	Glosa *GlosaRisk `json:"glosa,omitempty"`

	// Suggestion is an optional corrective action.
	Suggestion *BilingualText `json:"suggestion,omitempty"`
}
