package rules

import (
	"testing"
	"time"

	"github.com/opensource-health/semaforo/internal/domain"
)

func prescriptionCtx(medication string) *domain.EvaluationContext {
	return &domain.EvaluationContext{
		PatientID: "pat-001",
		ClinicID:  "clinic-001",
		Action:    domain.ActionPrescription,
		Payload:   domain.ActionPayload{Medication: medication},
	}
}

func TestAllergyRule(t *testing.T) {
	rule := allergyRule()

	t.Run("DirectSevereMatchBlocks", func(t *testing.T) {
		patient := &domain.PatientContext{
			PatientID: "pat-001",
			Allergies: []domain.Allergy{
				{Allergen: "penicilina", Severity: domain.SeveritySevere, Type: domain.AllergyMedication},
			},
		}

		signal := rule.Evaluate(prescriptionCtx("penicilina"), patient)
		if signal == nil {
			t.Fatal("expected a signal for a direct allergy match")
		}
		if signal.Color != domain.ColorRed {
			t.Errorf("expected RED, got %s", signal.Color)
		}
		if signal.RuleID != domain.RuleIDAllergySevere {
			t.Errorf("expected severe marker id %s, got %s", domain.RuleIDAllergySevere, signal.RuleID)
		}
	})

	t.Run("DirectModerateMatchIsRed", func(t *testing.T) {
		patient := &domain.PatientContext{
			PatientID: "pat-001",
			Allergies: []domain.Allergy{
				{Allergen: "dipirona", Severity: domain.SeverityModerate, Type: domain.AllergyMedication},
			},
		}

		signal := rule.Evaluate(prescriptionCtx("dipirona"), patient)
		if signal == nil {
			t.Fatal("expected a signal")
		}
		if signal.Color != domain.ColorRed {
			t.Errorf("expected RED, got %s", signal.Color)
		}
		if signal.RuleID != RuleIDAllergy {
			t.Errorf("expected %s, got %s", RuleIDAllergy, signal.RuleID)
		}
	})

	t.Run("FullGroupCountsAsDirect", func(t *testing.T) {
		// Amoxicillin shares the 100% penicillin group with the allergen.
		patient := &domain.PatientContext{
			PatientID: "pat-001",
			Allergies: []domain.Allergy{
				{Allergen: "penicilina", Severity: domain.SeveritySevere, Type: domain.AllergyMedication},
			},
		}

		signal := rule.Evaluate(prescriptionCtx("amoxicilina"), patient)
		if signal == nil {
			t.Fatal("expected a signal via the 100% group")
		}
		if signal.Color != domain.ColorRed {
			t.Errorf("expected RED, got %s", signal.Color)
		}
		if signal.RuleID != domain.RuleIDAllergySevere {
			t.Errorf("expected severe marker id, got %s", signal.RuleID)
		}
	})

	t.Run("PartialGroupIsCrossReactivityYellow", func(t *testing.T) {
		// Cephalexin shares only the 10% cephalosporin group with penicillin.
		patient := &domain.PatientContext{
			PatientID: "pat-001",
			Allergies: []domain.Allergy{
				{Allergen: "penicilina", Severity: domain.SeveritySevere, Type: domain.AllergyMedication},
			},
		}

		signal := rule.Evaluate(prescriptionCtx("cefalexina"), patient)
		if signal == nil {
			t.Fatal("expected a cross-reactivity signal")
		}
		if signal.Color != domain.ColorYellow {
			t.Errorf("expected YELLOW, got %s", signal.Color)
		}
		if signal.RuleID != RuleIDAllergyCross {
			t.Errorf("expected %s, got %s", RuleIDAllergyCross, signal.RuleID)
		}
		if !signal.CrossReactivity {
			t.Error("expected the cross-reactivity flag")
		}
	})

	t.Run("NonMedicationAllergyIgnored", func(t *testing.T) {
		patient := &domain.PatientContext{
			PatientID: "pat-001",
			Allergies: []domain.Allergy{
				{Allergen: "amendoim", Severity: domain.SeveritySevere, Type: domain.AllergyFood},
			},
		}

		if signal := rule.Evaluate(prescriptionCtx("amendoim"), patient); signal != nil {
			t.Errorf("food allergy must not match a medication, got %+v", signal)
		}
	})

	t.Run("NormalizedNameFormsMatch", func(t *testing.T) {
		patient := &domain.PatientContext{
			PatientID: "pat-001",
			Allergies: []domain.Allergy{
				{Allergen: "Amoxicilina", Severity: domain.SeverityMild, Type: domain.AllergyMedication},
			},
		}

		signal := rule.Evaluate(prescriptionCtx("AMOXICILINA 500mg"), patient)
		if signal == nil {
			t.Fatal("expected normalized forms to match")
		}
	})

	t.Run("NoAllergiesNoSignal", func(t *testing.T) {
		patient := &domain.PatientContext{PatientID: "pat-001"}
		if signal := rule.Evaluate(prescriptionCtx("penicilina"), patient); signal != nil {
			t.Errorf("expected no signal, got %+v", signal)
		}
	})
}

func TestInteractionRule(t *testing.T) {
	rule := interactionRule()

	onMeds := func(names ...string) *domain.PatientContext {
		p := &domain.PatientContext{PatientID: "pat-001"}
		for _, n := range names {
			p.Medications = append(p.Medications, domain.Medication{Name: n})
		}
		return p
	}

	t.Run("LethalPairBlocks", func(t *testing.T) {
		signal := rule.Evaluate(prescriptionCtx("fluoxetina"), onMeds("fenelzina"))
		if signal == nil {
			t.Fatal("expected a lethal interaction signal")
		}
		if signal.Color != domain.ColorRed {
			t.Errorf("expected RED, got %s", signal.Color)
		}
		if signal.RuleID != domain.RuleIDInteractionLethal {
			t.Errorf("expected lethal marker id, got %s", signal.RuleID)
		}
	})

	t.Run("PairMatchesEitherDirection", func(t *testing.T) {
		// New MAOI against an active SSRI.
		signal := rule.Evaluate(prescriptionCtx("fenelzina"), onMeds("fluoxetina"))
		if signal == nil || signal.RuleID != domain.RuleIDInteractionLethal {
			t.Fatalf("expected the lethal pair to match both directions, got %+v", signal)
		}
	})

	t.Run("SevereIsRed", func(t *testing.T) {
		signal := rule.Evaluate(prescriptionCtx("ibuprofeno"), onMeds("varfarina"))
		if signal == nil {
			t.Fatal("expected a severe interaction signal")
		}
		if signal.Color != domain.ColorRed {
			t.Errorf("expected RED, got %s", signal.Color)
		}
		if signal.RuleID != RuleIDInteraction {
			t.Errorf("severe pair must keep the base id, got %s", signal.RuleID)
		}
	})

	t.Run("ModerateIsYellow", func(t *testing.T) {
		signal := rule.Evaluate(prescriptionCtx("claritromicina"), onMeds("sinvastatina"))
		if signal == nil {
			t.Fatal("expected a moderate interaction signal")
		}
		if signal.Color != domain.ColorYellow {
			t.Errorf("expected YELLOW, got %s", signal.Color)
		}
	})

	t.Run("MildDoesNotSignal", func(t *testing.T) {
		if signal := rule.Evaluate(prescriptionCtx("ciprofloxacino"), onMeds("cafeina")); signal != nil {
			t.Errorf("mild pairs must not signal, got %+v", signal)
		}
	})

	t.Run("WorstPairWins", func(t *testing.T) {
		// SSRI against both an MAOI (lethal) and tramadol (moderate).
		signal := rule.Evaluate(prescriptionCtx("sertralina"), onMeds("tramadol", "fenelzina"))
		if signal == nil {
			t.Fatal("expected a signal")
		}
		if signal.RuleID != domain.RuleIDInteractionLethal {
			t.Errorf("expected the lethal pair to dominate, got %s", signal.RuleID)
		}
		if len(signal.Evidence) != 2 {
			t.Errorf("expected evidence for both pairs, got %v", signal.Evidence)
		}
	})

	t.Run("NoActiveMedicationsNoSignal", func(t *testing.T) {
		patient := &domain.PatientContext{PatientID: "pat-001"}
		if signal := rule.Evaluate(prescriptionCtx("fluoxetina"), patient); signal != nil {
			t.Errorf("expected no signal, got %+v", signal)
		}
	})
}

func TestRenalRule(t *testing.T) {
	rule := renalRule()

	withEGFR := func(value float64, status domain.LabStatus) *domain.PatientContext {
		return &domain.PatientContext{
			PatientID: "pat-001",
			RecentLabs: []domain.LabResult{
				{TestName: "eGFR", Value: value, Unit: "mL/min/1.73m2", Status: status, ResultDate: time.Now()},
			},
		}
	}

	t.Run("ReducedFunctionIsYellow", func(t *testing.T) {
		signal := rule.Evaluate(prescriptionCtx("metformina"), withEGFR(45, domain.LabAbnormal))
		if signal == nil {
			t.Fatal("expected a signal for eGFR 45")
		}
		if signal.Color != domain.ColorYellow {
			t.Errorf("expected YELLOW, got %s", signal.Color)
		}
	})

	t.Run("SevereReductionIsRed", func(t *testing.T) {
		signal := rule.Evaluate(prescriptionCtx("metformina"), withEGFR(25, domain.LabCritical))
		if signal == nil {
			t.Fatal("expected a signal for eGFR 25")
		}
		if signal.Color != domain.ColorRed {
			t.Errorf("expected RED, got %s", signal.Color)
		}
	})

	t.Run("ThresholdIsExclusive", func(t *testing.T) {
		if signal := rule.Evaluate(prescriptionCtx("metformina"), withEGFR(60, domain.LabAbnormal)); signal != nil {
			t.Errorf("eGFR exactly 60 must not signal, got %+v", signal)
		}
		signal := rule.Evaluate(prescriptionCtx("metformina"), withEGFR(30, domain.LabAbnormal))
		if signal == nil || signal.Color != domain.ColorYellow {
			t.Errorf("eGFR exactly 30 is YELLOW, got %+v", signal)
		}
	})

	t.Run("NormalResultIgnored", func(t *testing.T) {
		if signal := rule.Evaluate(prescriptionCtx("metformina"), withEGFR(45, domain.LabNormal)); signal != nil {
			t.Errorf("normal-flagged results must not signal, got %+v", signal)
		}
	})

	t.Run("NonRenalDrugIgnored", func(t *testing.T) {
		if signal := rule.Evaluate(prescriptionCtx("dipirona"), withEGFR(25, domain.LabCritical)); signal != nil {
			t.Errorf("non-renally-cleared drugs must not signal, got %+v", signal)
		}
	})

	t.Run("MostRecentAbnormalWins", func(t *testing.T) {
		patient := &domain.PatientContext{
			PatientID: "pat-001",
			RecentLabs: []domain.LabResult{
				{TestName: "TFG", Value: 25, Status: domain.LabCritical, ResultDate: time.Now()},
				{TestName: "TFG", Value: 55, Status: domain.LabAbnormal, ResultDate: time.Now().Add(-30 * 24 * time.Hour)},
			},
		}
		signal := rule.Evaluate(prescriptionCtx("metformina"), patient)
		if signal == nil || signal.Color != domain.ColorRed {
			t.Errorf("expected RED from the most recent result, got %+v", signal)
		}
	})
}

func TestAgeRestrictionRule(t *testing.T) {
	rule := ageRestrictionRule()

	t.Run("AspirinUnder16", func(t *testing.T) {
		patient := &domain.PatientContext{PatientID: "pat-001", Age: 10}
		signal := rule.Evaluate(prescriptionCtx("aspirina"), patient)
		if signal == nil {
			t.Fatal("expected a Reye's syndrome signal")
		}
		if signal.Color != domain.ColorYellow {
			t.Errorf("expected YELLOW, got %s", signal.Color)
		}
	})

	t.Run("FluoroquinoloneUnder18", func(t *testing.T) {
		patient := &domain.PatientContext{PatientID: "pat-001", Age: 15}
		if signal := rule.Evaluate(prescriptionCtx("ciprofloxacino"), patient); signal == nil {
			t.Error("expected a fluoroquinolone signal under 18")
		}
	})

	t.Run("AdultNotRestricted", func(t *testing.T) {
		patient := &domain.PatientContext{PatientID: "pat-001", Age: 40}
		if signal := rule.Evaluate(prescriptionCtx("aspirina"), patient); signal != nil {
			t.Errorf("expected no signal for an adult, got %+v", signal)
		}
	})

	t.Run("UnknownAgeSkipped", func(t *testing.T) {
		patient := &domain.PatientContext{PatientID: "pat-001"}
		if signal := rule.Evaluate(prescriptionCtx("aspirina"), patient); signal != nil {
			t.Errorf("age zero means unknown, got %+v", signal)
		}
	})
}

func TestPregnancyRule(t *testing.T) {
	rule := pregnancyRule()

	t.Run("CategoryXDuringPregnancy", func(t *testing.T) {
		patient := &domain.PatientContext{PatientID: "pat-001", Sex: "F", Pregnant: true}
		signal := rule.Evaluate(prescriptionCtx("varfarina"), patient)
		if signal == nil {
			t.Fatal("expected a pregnancy contraindication signal")
		}
		if signal.Color != domain.ColorRed {
			t.Errorf("expected RED, got %s", signal.Color)
		}
	})

	t.Run("NotPregnantNoSignal", func(t *testing.T) {
		patient := &domain.PatientContext{PatientID: "pat-001", Sex: "F"}
		if signal := rule.Evaluate(prescriptionCtx("varfarina"), patient); signal != nil {
			t.Errorf("expected no signal, got %+v", signal)
		}
	})

	t.Run("NonCategoryXNoSignal", func(t *testing.T) {
		patient := &domain.PatientContext{PatientID: "pat-001", Sex: "F", Pregnant: true}
		if signal := rule.Evaluate(prescriptionCtx("dipirona"), patient); signal != nil {
			t.Errorf("expected no signal, got %+v", signal)
		}
	})
}

func TestDuplicateTherapyRule(t *testing.T) {
	rule := duplicateTherapyRule()

	t.Run("AlreadyActiveIsYellow", func(t *testing.T) {
		patient := &domain.PatientContext{
			PatientID: "pat-001",
			Medications: []domain.Medication{
				{Name: "Metformina", Dose: "850mg", Frequency: "2x/dia"},
			},
		}
		signal := rule.Evaluate(prescriptionCtx("metformina"), patient)
		if signal == nil {
			t.Fatal("expected a duplicate therapy signal")
		}
		if signal.Color != domain.ColorYellow {
			t.Errorf("expected YELLOW, got %s", signal.Color)
		}
	})

	t.Run("DifferentDrugNoSignal", func(t *testing.T) {
		patient := &domain.PatientContext{
			PatientID:   "pat-001",
			Medications: []domain.Medication{{Name: "metformina"}},
		}
		if signal := rule.Evaluate(prescriptionCtx("dipirona"), patient); signal != nil {
			t.Errorf("expected no signal, got %+v", signal)
		}
	})
}
