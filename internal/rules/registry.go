// Package rules provides the traffic light rule catalogs and registry.
package rules

import (
	"github.com/opensource-health/semaforo/internal/domain"
)

// builtin wraps a pure evaluation function with its static definition.
type builtin struct {
	def domain.RuleDefinition
	fn  func(ctx *domain.EvaluationContext, patient *domain.PatientContext) *domain.Signal
}

func (b builtin) Definition() domain.RuleDefinition { return b.def }

func (b builtin) Evaluate(ctx *domain.EvaluationContext, patient *domain.PatientContext) *domain.Signal {
	return b.fn(ctx, patient)
}

// Registry is an immutable snapshot of the three rule catalogs. The engine
// holds it behind an atomic pointer; hot-reload builds a new Registry and
// swaps the pointer, so in-flight evaluations never observe a partial
// update.
type Registry struct {
	Clinical       []domain.Rule
	Administrative []domain.Rule
	Billing        []domain.Rule
}

// NewRegistry returns a registry holding the builtin catalogs.
func NewRegistry() *Registry {
	return &Registry{
		Clinical:       ClinicalRules(),
		Administrative: AdministrativeRules(),
		Billing:        BillingRules(),
	}
}

// WithExprRules returns a copy of the registry with compiled clinic-defined
// rules appended to their respective catalogs.
func (r *Registry) WithExprRules(extra []domain.Rule) *Registry {
	next := &Registry{
		Clinical:       append([]domain.Rule{}, r.Clinical...),
		Administrative: append([]domain.Rule{}, r.Administrative...),
		Billing:        append([]domain.Rule{}, r.Billing...),
	}
	for _, rule := range extra {
		switch rule.Definition().Category {
		case domain.CategoryClinical:
			next.Clinical = append(next.Clinical, rule)
		case domain.CategoryAdministrative:
			next.Administrative = append(next.Administrative, rule)
		case domain.CategoryBilling:
			next.Billing = append(next.Billing, rule)
		}
	}
	return next
}

// All returns every rule across the three catalogs.
func (r *Registry) All() []domain.Rule {
	all := make([]domain.Rule, 0, len(r.Clinical)+len(r.Administrative)+len(r.Billing))
	all = append(all, r.Clinical...)
	all = append(all, r.Administrative...)
	all = append(all, r.Billing...)
	return all
}

// Select returns the enabled rules applicable to an action kind.
func (r *Registry) Select(action domain.ActionKind) []domain.Rule {
	var selected []domain.Rule
	for _, rule := range r.All() {
		def := rule.Definition()
		if def.Enabled && def.AppliesTo(action) {
			selected = append(selected, rule)
		}
	}
	return selected
}

// Count returns the total number of registered rules.
func (r *Registry) Count() int {
	return len(r.Clinical) + len(r.Administrative) + len(r.Billing)
}

// Definitions returns the static metadata grouped by catalog, for the
// introspection endpoint.
func (r *Registry) Definitions() map[string][]domain.RuleDefinition {
	out := map[string][]domain.RuleDefinition{
		"clinical":       defs(r.Clinical),
		"administrative": defs(r.Administrative),
		"billing":        defs(r.Billing),
	}
	return out
}

// Find returns the definition of a rule by id.
func (r *Registry) Find(id string) (domain.RuleDefinition, bool) {
	for _, rule := range r.All() {
		if rule.Definition().ID == id {
			return rule.Definition(), true
		}
	}
	return domain.RuleDefinition{}, false
}

func defs(rules []domain.Rule) []domain.RuleDefinition {
	out := make([]domain.RuleDefinition, 0, len(rules))
	for _, rule := range rules {
		out = append(out, rule.Definition())
	}
	return out
}
