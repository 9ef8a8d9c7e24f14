package engine

import (
	"testing"

	"github.com/opensource-health/semaforo/internal/domain"
)

func clinicalSignal(id string, color domain.Color) domain.Signal {
	return domain.Signal{RuleID: id, Category: domain.CategoryClinical, Color: color}
}

func billingSignal(id string, color domain.Color, prob int, amount float64, code string) domain.Signal {
	return domain.Signal{
		RuleID:   id,
		Category: domain.CategoryBilling,
		Color:    color,
		Glosa:    &domain.GlosaRisk{Probability: prob, Amount: amount, DenialCode: code},
	}
}

func TestAggregateColor(t *testing.T) {
	t.Run("EmptyIsGreen", func(t *testing.T) {
		if got := AggregateColor(nil); got != domain.ColorGreen {
			t.Errorf("expected GREEN, got %s", got)
		}
	})

	t.Run("WorstWins", func(t *testing.T) {
		signals := []domain.Signal{
			clinicalSignal("a", domain.ColorYellow),
			clinicalSignal("b", domain.ColorRed),
			clinicalSignal("c", domain.ColorYellow),
		}
		if got := AggregateColor(signals); got != domain.ColorRed {
			t.Errorf("expected RED, got %s", got)
		}
	})

	t.Run("OrderIndependent", func(t *testing.T) {
		forward := []domain.Signal{
			clinicalSignal("a", domain.ColorYellow),
			clinicalSignal("b", domain.ColorRed),
		}
		reversed := []domain.Signal{forward[1], forward[0]}
		if AggregateColor(forward) != AggregateColor(reversed) {
			t.Error("aggregation must be order independent")
		}
	})

	t.Run("YellowOnly", func(t *testing.T) {
		signals := []domain.Signal{clinicalSignal("a", domain.ColorYellow)}
		if got := AggregateColor(signals); got != domain.ColorYellow {
			t.Errorf("expected YELLOW, got %s", got)
		}
	})
}

func TestAggregateGlosaRisk(t *testing.T) {
	t.Run("NoBillingSignalsNoEstimate", func(t *testing.T) {
		signals := []domain.Signal{clinicalSignal("a", domain.ColorRed)}
		if got := AggregateGlosaRisk(signals); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("NonBillingGlosaIgnored", func(t *testing.T) {
		// Administrative signals may carry per-signal estimates, but the
		// aggregate only combines the billing catalog.
		signals := []domain.Signal{
			{
				RuleID:   "adm",
				Category: domain.CategoryAdministrative,
				Color:    domain.ColorYellow,
				Glosa:    &domain.GlosaRisk{Probability: 35, Amount: 100},
			},
		}
		if got := AggregateGlosaRisk(signals); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("SingleIssue", func(t *testing.T) {
		signals := []domain.Signal{
			billingSignal("a", domain.ColorRed, 73, 28000, "G001"),
		}
		got := AggregateGlosaRisk(signals)
		if got == nil {
			t.Fatal("expected an estimate")
		}
		if got.Probability != 73 {
			t.Errorf("single issue keeps its probability, got %d", got.Probability)
		}
		if got.TotalAmount != 28000 {
			t.Errorf("expected total 28000, got %.2f", got.TotalAmount)
		}
		if got.HighestRiskCode != "G001" {
			t.Errorf("expected G001, got %s", got.HighestRiskCode)
		}
		if got.IssueCount != 1 {
			t.Errorf("expected 1 issue, got %d", got.IssueCount)
		}
	})

	t.Run("MultipleIssuesCompound", func(t *testing.T) {
		signals := []domain.Signal{
			billingSignal("a", domain.ColorYellow, 40, 100, "G004"),
			billingSignal("b", domain.ColorRed, 73, 28000, "G001"),
			billingSignal("c", domain.ColorYellow, 35, 500, "G003"),
		}
		got := AggregateGlosaRisk(signals)
		if got == nil {
			t.Fatal("expected an estimate")
		}
		// max(73) + 10 per additional issue.
		if got.Probability != 93 {
			t.Errorf("expected 93, got %d", got.Probability)
		}
		if got.TotalAmount != 28600 {
			t.Errorf("expected summed exposure 28600, got %.2f", got.TotalAmount)
		}
		if got.HighestRiskCode != "G001" {
			t.Errorf("expected the riskiest signal's code, got %s", got.HighestRiskCode)
		}
		if got.IssueCount != 3 {
			t.Errorf("expected 3 issues, got %d", got.IssueCount)
		}
	})

	t.Run("ProbabilityCappedAt98", func(t *testing.T) {
		signals := []domain.Signal{
			billingSignal("a", domain.ColorRed, 90, 100, "G006"),
			billingSignal("b", domain.ColorRed, 85, 100, "G001"),
			billingSignal("c", domain.ColorRed, 80, 100, "G007"),
		}
		got := AggregateGlosaRisk(signals)
		if got == nil || got.Probability != 98 {
			t.Errorf("expected the 98 cap, got %+v", got)
		}
	})
}

func TestOverridePolicyFor(t *testing.T) {
	t.Run("NoSignalsFullyOverridable", func(t *testing.T) {
		policy := OverridePolicyFor(nil)
		if !policy.CanOverride || policy.Requires != "" {
			t.Errorf("expected unrestricted override, got %+v", policy)
		}
	})

	t.Run("YellowRequiresJustification", func(t *testing.T) {
		policy := OverridePolicyFor([]domain.Signal{clinicalSignal("a", domain.ColorYellow)})
		if !policy.CanOverride || policy.Requires != domain.OverrideJustification {
			t.Errorf("expected justification tier, got %+v", policy)
		}
	})

	t.Run("RedRequiresSupervisor", func(t *testing.T) {
		policy := OverridePolicyFor([]domain.Signal{
			clinicalSignal("a", domain.ColorYellow),
			clinicalSignal("b", domain.ColorRed),
		})
		if !policy.CanOverride || policy.Requires != domain.OverrideSupervisor {
			t.Errorf("expected supervisor tier, got %+v", policy)
		}
	})

	t.Run("SevereAllergyBlocks", func(t *testing.T) {
		policy := OverridePolicyFor([]domain.Signal{
			clinicalSignal(domain.RuleIDAllergySevere, domain.ColorRed),
		})
		if policy.CanOverride || policy.Requires != domain.OverrideBlocked {
			t.Errorf("expected blocked, got %+v", policy)
		}
	})

	t.Run("LethalInteractionBlocks", func(t *testing.T) {
		policy := OverridePolicyFor([]domain.Signal{
			clinicalSignal("other", domain.ColorRed),
			clinicalSignal(domain.RuleIDInteractionLethal, domain.ColorRed),
		})
		if policy.CanOverride || policy.Requires != domain.OverrideBlocked {
			t.Errorf("blocked marker must dominate, got %+v", policy)
		}
	})
}

func TestAssemble(t *testing.T) {
	t.Run("NilSignalsYieldGreen", func(t *testing.T) {
		result := assemble(nil)
		if result.Color != domain.ColorGreen {
			t.Errorf("expected GREEN, got %s", result.Color)
		}
		if result.Signals == nil {
			t.Error("signals must serialize as an empty array, not null")
		}
		if result.NeedsChatAssistance {
			t.Error("GREEN needs no chat assistance")
		}
	})

	t.Run("CategoryCounters", func(t *testing.T) {
		signals := []domain.Signal{
			clinicalSignal("a", domain.ColorRed),
			clinicalSignal("b", domain.ColorYellow),
			{RuleID: "c", Category: domain.CategoryAdministrative, Color: domain.ColorYellow},
			billingSignal("d", domain.ColorRed, 73, 1000, "G001"),
		}

		result := assemble(signals)
		if result.Color != domain.ColorRed {
			t.Errorf("expected RED, got %s", result.Color)
		}
		if !result.NeedsChatAssistance {
			t.Error("non-GREEN needs chat assistance")
		}
		if result.Clinical.Red != 1 || result.Clinical.Yellow != 1 {
			t.Errorf("unexpected clinical counters: %+v", result.Clinical)
		}
		if result.Administrative.Yellow != 1 || result.Administrative.Red != 0 {
			t.Errorf("unexpected administrative counters: %+v", result.Administrative)
		}
		if result.Billing.Red != 1 {
			t.Errorf("unexpected billing counters: %+v", result.Billing)
		}
		if result.Glosa == nil || result.Glosa.IssueCount != 1 {
			t.Errorf("expected the billing glosa aggregated, got %+v", result.Glosa)
		}
	})
}
