package rules

import (
	"testing"

	"github.com/opensource-health/semaforo/internal/domain"
)

func billingCtx(payload domain.ActionPayload) *domain.EvaluationContext {
	return &domain.EvaluationContext{
		PatientID: "pat-001",
		ClinicID:  "clinic-001",
		Action:    domain.ActionBilling,
		Payload:   payload,
	}
}

func TestTISSUnknownRule(t *testing.T) {
	rule := tissUnknownRule()

	t.Run("UnknownCodeIsRed", func(t *testing.T) {
		signal := rule.Evaluate(billingCtx(domain.ActionPayload{
			TISSCode:     "99999999",
			BilledAmount: 300,
		}), nil)

		if signal == nil {
			t.Fatal("expected a signal for an unknown code")
		}
		if signal.Color != domain.ColorRed {
			t.Errorf("expected RED, got %s", signal.Color)
		}
		if signal.Glosa == nil || signal.Glosa.Probability != 98 {
			t.Errorf("expected glosa probability 98, got %+v", signal.Glosa)
		}
		if signal.Glosa.DenialCode != DenialUnknownCode {
			t.Errorf("expected denial code %s, got %s", DenialUnknownCode, signal.Glosa.DenialCode)
		}
	})

	t.Run("KnownCodeNoSignal", func(t *testing.T) {
		signal := rule.Evaluate(billingCtx(domain.ActionPayload{TISSCode: "10101012"}), nil)
		if signal != nil {
			t.Errorf("expected no signal for a table code, got %+v", signal)
		}
	})

	t.Run("EmptyCodeIgnored", func(t *testing.T) {
		if signal := rule.Evaluate(billingCtx(domain.ActionPayload{}), nil); signal != nil {
			t.Errorf("expected no signal without a code, got %+v", signal)
		}
	})
}

func TestTISSAuthRule(t *testing.T) {
	rule := tissAuthRule()

	t.Run("HighValueSurgeryPendingIsRed", func(t *testing.T) {
		// Colecistectomia: base 18 + 45 + 10 (avg 28000 > 5000) = 73 > 70.
		signal := rule.Evaluate(billingCtx(domain.ActionPayload{
			TISSCode:        "30602122",
			PriorAuthStatus: "pending",
			BilledAmount:    28500,
		}), nil)

		if signal == nil {
			t.Fatal("expected a signal for a pending authorization")
		}
		if signal.Color != domain.ColorRed {
			t.Errorf("expected RED, got %s", signal.Color)
		}
		if signal.Glosa == nil || signal.Glosa.Probability != 73 {
			t.Errorf("expected glosa probability 73, got %+v", signal.Glosa)
		}
		if signal.Glosa.DenialCode != DenialMissingAuth {
			t.Errorf("expected denial code %s, got %s", DenialMissingAuth, signal.Glosa.DenialCode)
		}
	})

	t.Run("LowerValueImagingIsYellow", func(t *testing.T) {
		// Ressonância: base 12 + 45 = 57, no high-value bump, below 70.
		signal := rule.Evaluate(billingCtx(domain.ActionPayload{
			TISSCode: "40901220",
		}), nil)

		if signal == nil {
			t.Fatal("expected a signal")
		}
		if signal.Color != domain.ColorYellow {
			t.Errorf("expected YELLOW, got %s", signal.Color)
		}
		if signal.Glosa == nil || signal.Glosa.Probability != 57 {
			t.Errorf("expected glosa probability 57, got %+v", signal.Glosa)
		}
	})

	t.Run("ExposureFallsBackToAverage", func(t *testing.T) {
		signal := rule.Evaluate(billingCtx(domain.ActionPayload{
			TISSCode: "30602122",
		}), nil)

		if signal == nil || signal.Glosa == nil {
			t.Fatal("expected a signal with a glosa estimate")
		}
		if signal.Glosa.Amount != 28000 {
			t.Errorf("expected the historical average 28000 as exposure, got %.2f", signal.Glosa.Amount)
		}
	})

	t.Run("ApprovedNoSignal", func(t *testing.T) {
		signal := rule.Evaluate(billingCtx(domain.ActionPayload{
			TISSCode:        "30602122",
			PriorAuthStatus: "APPROVED",
		}), nil)
		if signal != nil {
			t.Errorf("approved status must not signal (case-insensitive), got %+v", signal)
		}
	})

	t.Run("NoAuthRequiredNoSignal", func(t *testing.T) {
		signal := rule.Evaluate(billingCtx(domain.ActionPayload{TISSCode: "10101012"}), nil)
		if signal != nil {
			t.Errorf("expected no signal for a consult, got %+v", signal)
		}
	})
}

func TestTISSCIDRule(t *testing.T) {
	rule := tissCIDRule()

	t.Run("CompatibleDiagnosisNoSignal", func(t *testing.T) {
		signal := rule.Evaluate(billingCtx(domain.ActionPayload{
			TISSCode:  "30602122",
			Diagnosis: "K80.2",
		}), nil)
		if signal != nil {
			t.Errorf("K8-prefixed diagnosis is accepted, got %+v", signal)
		}
	})

	t.Run("IncompatibleDiagnosisSignals", func(t *testing.T) {
		signal := rule.Evaluate(billingCtx(domain.ActionPayload{
			TISSCode:  "30602122",
			Diagnosis: "I10",
		}), nil)

		if signal == nil {
			t.Fatal("expected a signal for an incompatible diagnosis")
		}
		if signal.Color != domain.ColorRed {
			t.Errorf("expected RED for the high-value surgery, got %s", signal.Color)
		}
		if signal.Glosa == nil || signal.Glosa.DenialCode != DenialCIDIncompatible {
			t.Errorf("expected denial code %s, got %+v", DenialCIDIncompatible, signal.Glosa)
		}
	})

	t.Run("MissingDiagnosisSignals", func(t *testing.T) {
		signal := rule.Evaluate(billingCtx(domain.ActionPayload{
			TISSCode: "40901220",
		}), nil)
		if signal == nil {
			t.Fatal("expected a signal when no diagnosis is claimed")
		}
		if signal.Color != domain.ColorYellow {
			t.Errorf("expected YELLOW for the lower-risk imaging code, got %s", signal.Color)
		}
	})

	t.Run("DiagnosisCaseInsensitive", func(t *testing.T) {
		signal := rule.Evaluate(billingCtx(domain.ActionPayload{
			TISSCode:  "40901220",
			Diagnosis: "m54.5",
		}), nil)
		if signal != nil {
			t.Errorf("expected lowercase diagnosis to match M5 prefix, got %+v", signal)
		}
	})

	t.Run("UnconstrainedProcedureNoSignal", func(t *testing.T) {
		signal := rule.Evaluate(billingCtx(domain.ActionPayload{
			TISSCode:  "10101012",
			Diagnosis: "Z00.0",
		}), nil)
		if signal != nil {
			t.Errorf("procedures without CID prefixes accept anything, got %+v", signal)
		}
	})
}

func TestTISSOPMERule(t *testing.T) {
	rule := tissOPMERule()

	t.Run("MissingBothAuthorizationsIsRed", func(t *testing.T) {
		signal := rule.Evaluate(billingCtx(domain.ActionPayload{
			TISSCode:     "30715016",
			BilledAmount: 46000,
		}), nil)

		if signal == nil {
			t.Fatal("expected a signal for missing OPME authorizations")
		}
		if signal.Color != domain.ColorRed {
			t.Errorf("expected RED, got %s", signal.Color)
		}
		if signal.Glosa == nil || signal.Glosa.Probability != 90 {
			t.Errorf("expected glosa probability 90, got %+v", signal.Glosa)
		}
		if signal.Glosa.DenialCode != DenialOPMEUnauthorized {
			t.Errorf("expected denial code %s, got %s", DenialOPMEUnauthorized, signal.Glosa.DenialCode)
		}
		if len(signal.Glosa.RiskFactors) != 2 {
			t.Errorf("expected both missing authorizations listed, got %v", signal.Glosa.RiskFactors)
		}
	})

	t.Run("MissingItemAuthorizationOnly", func(t *testing.T) {
		signal := rule.Evaluate(billingCtx(domain.ActionPayload{
			TISSCode:       "30715016",
			OPMEAuthorized: true,
		}), nil)

		if signal == nil {
			t.Fatal("general authorization alone is not enough")
		}
		if len(signal.Glosa.RiskFactors) != 1 {
			t.Errorf("expected one missing authorization, got %v", signal.Glosa.RiskFactors)
		}
	})

	t.Run("BothAuthorizationsNoSignal", func(t *testing.T) {
		signal := rule.Evaluate(billingCtx(domain.ActionPayload{
			TISSCode:           "30715016",
			OPMEAuthorized:     true,
			OPMEItemAuthorized: true,
		}), nil)
		if signal != nil {
			t.Errorf("expected no signal with both authorizations, got %+v", signal)
		}
	})

	t.Run("NonOPMEProcedureIgnored", func(t *testing.T) {
		signal := rule.Evaluate(billingCtx(domain.ActionPayload{TISSCode: "30602122"}), nil)
		if signal != nil {
			t.Errorf("expected no signal for a non-OPME surgery, got %+v", signal)
		}
	})
}

func TestAmountOutlierRule(t *testing.T) {
	rule := amountOutlierRule()

	hemogram := func(amount float64) *domain.EvaluationContext {
		return billingCtx(domain.ActionPayload{TISSCode: "40304361", BilledAmount: amount})
	}

	t.Run("ModerateDeviationIsYellow", func(t *testing.T) {
		// 45 vs avg 25: deviation 0.8 → YELLOW, probability 40.
		signal := rule.Evaluate(hemogram(45), nil)
		if signal == nil {
			t.Fatal("expected a signal for an 80% deviation")
		}
		if signal.Color != domain.ColorYellow {
			t.Errorf("expected YELLOW, got %s", signal.Color)
		}
		if signal.Glosa == nil || signal.Glosa.Probability != 40 {
			t.Errorf("expected glosa probability 40, got %+v", signal.Glosa)
		}
	})

	t.Run("LargeDeviationIsRed", func(t *testing.T) {
		// 60 vs avg 25: deviation 1.4 → RED, probability 70.
		signal := rule.Evaluate(hemogram(60), nil)
		if signal == nil {
			t.Fatal("expected a signal")
		}
		if signal.Color != domain.ColorRed {
			t.Errorf("expected RED above 100%% deviation, got %s", signal.Color)
		}
		if signal.Glosa == nil || signal.Glosa.Probability != 70 {
			t.Errorf("expected glosa probability 70, got %+v", signal.Glosa)
		}
	})

	t.Run("ProbabilityCappedAt80", func(t *testing.T) {
		// 250 vs avg 25: deviation 9 → probability capped.
		signal := rule.Evaluate(hemogram(250), nil)
		if signal == nil || signal.Glosa == nil {
			t.Fatal("expected a capped signal")
		}
		if signal.Glosa.Probability != 80 {
			t.Errorf("expected the 80 cap, got %d", signal.Glosa.Probability)
		}
	})

	t.Run("UnderbillingAlsoFlags", func(t *testing.T) {
		// 10 vs avg 25: deviation 0.6 on the low side.
		signal := rule.Evaluate(hemogram(10), nil)
		if signal == nil {
			t.Error("expected underbilling to flag as well")
		}
	})

	t.Run("WithinToleranceNoSignal", func(t *testing.T) {
		if signal := rule.Evaluate(hemogram(30), nil); signal != nil {
			t.Errorf("20%% deviation is within tolerance, got %+v", signal)
		}
	})

	t.Run("ExactTolerance", func(t *testing.T) {
		// 37.5 vs 25 is exactly 50%: not strictly above the threshold.
		if signal := rule.Evaluate(hemogram(37.5), nil); signal != nil {
			t.Errorf("exactly 50%% deviation must not signal, got %+v", signal)
		}
	})

	t.Run("NoBilledAmountIgnored", func(t *testing.T) {
		if signal := rule.Evaluate(hemogram(0), nil); signal != nil {
			t.Errorf("expected no signal without a billed amount, got %+v", signal)
		}
	})
}
