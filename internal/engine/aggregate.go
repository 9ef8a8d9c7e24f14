package engine

import (
	"github.com/opensource-health/semaforo/internal/domain"
)

// Aggregation over signal sets. Every step is commutative and associative,
// so concurrent evaluation order never affects the verdict.

// AggregateColor returns the maximum-priority color among the signals,
// defaulting to GREEN when none triggered.
func AggregateColor(signals []domain.Signal) domain.Color {
	color := domain.ColorGreen
	for _, s := range signals {
		if s.Color.Priority() > color.Priority() {
			color = s.Color
		}
	}
	return color
}

// AggregateGlosaRisk combines the billing signals carrying a risk estimate.
// Returns nil when no billing signal has one. The combined probability is
// max(individual) plus 10 points per additional issue, capped at 98 — a
// crude over-flagging approximation of "at least one denial materializes".
func AggregateGlosaRisk(signals []domain.Signal) *domain.AggregateGlosa {
	var (
		count    int
		total    float64
		maxProb  int
		maxCode  string
	)

	for _, s := range signals {
		if s.Category != domain.CategoryBilling || s.Glosa == nil {
			continue
		}
		count++
		total += s.Glosa.Amount
		if s.Glosa.Probability > maxProb || count == 1 {
			maxProb = s.Glosa.Probability
			maxCode = s.Glosa.DenialCode
		}
	}

	if count == 0 {
		return nil
	}

	probability := maxProb + 10*(count-1)
	if probability > 98 {
		probability = 98
	}

	return &domain.AggregateGlosa{
		Probability:     probability,
		TotalAmount:     total,
		HighestRiskCode: maxCode,
		IssueCount:      count,
	}
}

// OverridePolicyFor derives the tiered override policy. A blocked-marker
// signal (lethal interaction, direct severe allergy) takes precedence over
// everything; otherwise any RED requires supervisor approval and any YELLOW
// requires a justification.
func OverridePolicyFor(signals []domain.Signal) domain.OverridePolicy {
	var hasRed, hasYellow bool
	for _, s := range signals {
		if domain.BlocksOverride(s) {
			return domain.OverridePolicy{CanOverride: false, Requires: domain.OverrideBlocked}
		}
		switch s.Color {
		case domain.ColorRed:
			hasRed = true
		case domain.ColorYellow:
			hasYellow = true
		}
	}

	switch {
	case hasRed:
		return domain.OverridePolicy{CanOverride: true, Requires: domain.OverrideSupervisor}
	case hasYellow:
		return domain.OverridePolicy{CanOverride: true, Requires: domain.OverrideJustification}
	}
	return domain.OverridePolicy{CanOverride: true}
}

// assemble builds the result body (everything except metadata) from the
// collected signals in a single pass per aggregate.
func assemble(signals []domain.Signal) *domain.TrafficLightResult {
	if signals == nil {
		signals = []domain.Signal{}
	}

	result := &domain.TrafficLightResult{
		Color:    AggregateColor(signals),
		Signals:  signals,
		Override: OverridePolicyFor(signals),
		Glosa:    AggregateGlosaRisk(signals),
	}
	result.NeedsChatAssistance = result.Color != domain.ColorGreen

	for _, s := range signals {
		var summary *domain.CategorySummary
		switch s.Category {
		case domain.CategoryClinical:
			summary = &result.Clinical
		case domain.CategoryAdministrative:
			summary = &result.Administrative
		case domain.CategoryBilling:
			summary = &result.Billing
		default:
			continue
		}
		switch s.Color {
		case domain.ColorRed:
			summary.Red++
		case domain.ColorYellow:
			summary.Yellow++
		}
	}

	return result
}
