package rules

import (
	"fmt"

	"github.com/opensource-health/semaforo/internal/domain"
)

// Clinical catalog rule ids. The allergy and interaction rules emit
// specialized signal ids (domain.RuleIDAllergySevere,
// domain.RuleIDInteractionLethal) that drive the blocked override tier.
const (
	RuleIDAllergy          = "CLIN-ALLERGY"
	RuleIDAllergyCross     = "CLIN-ALLERGY-CROSS"
	RuleIDInteraction      = "CLIN-INT"
	RuleIDRenal            = "CLIN-RENAL"
	RuleIDAgeRestriction   = "CLIN-AGE"
	RuleIDPregnancy        = "CLIN-PREGNANCY"
	RuleIDDuplicateTherapy = "CLIN-DUPLICATE"
)

var medicationActions = []domain.ActionKind{domain.ActionPrescription, domain.ActionOrder}

// ClinicalRules returns the builtin clinical catalog.
func ClinicalRules() []domain.Rule {
	return []domain.Rule{
		allergyRule(),
		interactionRule(),
		renalRule(),
		ageRestrictionRule(),
		pregnancyRule(),
		duplicateTherapyRule(),
	}
}

// allergyRule matches a prescribed medication against documented allergies.
// A direct name match (normalized substrings, or a 100% cross-reactivity
// group) is RED; a partial cross-reactivity group match is YELLOW.
func allergyRule() domain.Rule {
	return builtin{
		def: domain.RuleDefinition{
			ID:       RuleIDAllergy,
			Name:     "Allergy match",
			Version:  "1",
			Category: domain.CategoryClinical,
			Color:    domain.ColorRed,
			Enabled:  true,
			Description: domain.BilingualText{
				PT: "Medicamento prescrito conflita com alergia documentada",
				EN: "Prescribed medication conflicts with a documented allergy",
			},
			Actions: medicationActions,
		},
		fn: evaluateAllergy,
	}
}

func evaluateAllergy(ctx *domain.EvaluationContext, patient *domain.PatientContext) *domain.Signal {
	med := NormalizeDrugName(ctx.Payload.Medication)
	if med == "" || patient == nil {
		return nil
	}

	var (
		directEvidence []string
		crossEvidence  []string
		severeDirect   bool
		crossPercent   int
	)

	for _, allergy := range patient.Allergies {
		if allergy.Type != domain.AllergyMedication {
			continue
		}
		allergen := NormalizeDrugName(allergy.Allergen)

		direct := namesOverlap(med, allergen)
		if !direct {
			// A shared 100% group counts as a direct-equivalent match.
			if pct, ok := sharedGroupPercent(med, allergen); ok {
				if pct >= 100 {
					direct = true
				} else if pct > 0 {
					crossEvidence = append(crossEvidence,
						fmt.Sprintf("Documented allergy: %s (cross-reactivity %d%%)", allergy.Allergen, pct))
					if pct > crossPercent {
						crossPercent = pct
					}
					continue
				}
			}
		}

		if direct {
			directEvidence = append(directEvidence,
				fmt.Sprintf("Documented allergy: %s", allergy.Allergen))
			if allergy.Severity == domain.SeveritySevere {
				severeDirect = true
			}
		}
	}

	switch {
	case len(directEvidence) > 0:
		id := RuleIDAllergy
		if severeDirect {
			id = domain.RuleIDAllergySevere
		}
		return &domain.Signal{
			RuleID:      id,
			RuleName:    "Allergy match",
			RuleVersion: "1",
			Category:    domain.CategoryClinical,
			Color:       domain.ColorRed,
			Message: domain.BilingualText{
				PT: fmt.Sprintf("Paciente possui alergia documentada relacionada a %s", ctx.Payload.Medication),
				EN: fmt.Sprintf("Patient has a documented allergy related to %s", ctx.Payload.Medication),
			},
			Evidence: directEvidence,
			Suggestion: &domain.BilingualText{
				PT: "Considere um agente de classe alternativa",
				EN: "Consider an alternative-class agent",
			},
		}
	case len(crossEvidence) > 0:
		return &domain.Signal{
			RuleID:      RuleIDAllergyCross,
			RuleName:    "Allergy cross-reactivity",
			RuleVersion: "1",
			Category:    domain.CategoryClinical,
			Color:       domain.ColorYellow,
			Message: domain.BilingualText{
				PT: fmt.Sprintf("Possível reatividade cruzada entre %s e alergia documentada", ctx.Payload.Medication),
				EN: fmt.Sprintf("Possible cross-reactivity between %s and a documented allergy", ctx.Payload.Medication),
			},
			Evidence:        crossEvidence,
			CrossReactivity: true,
		}
	}
	return nil
}

// sharedGroupPercent returns the highest cross-reactivity percentage of a
// group containing both names, if any group does.
func sharedGroupPercent(a, b string) (int, bool) {
	best := 0
	found := false
	for _, g := range CrossReactivityGroups {
		if inSet(a, g.Members) && inSet(b, g.Members) {
			found = true
			if g.Percent > best {
				best = g.Percent
			}
		}
	}
	return best, found
}

// interactionRule matches the prescribed medication against active
// medications using the interaction table. LETHAL and SEVERE map to RED,
// MODERATE to YELLOW; MILD pairs do not signal.
func interactionRule() domain.Rule {
	return builtin{
		def: domain.RuleDefinition{
			ID:       RuleIDInteraction,
			Name:     "Drug-drug interaction",
			Version:  "1",
			Category: domain.CategoryClinical,
			Color:    domain.ColorRed,
			Enabled:  true,
			Description: domain.BilingualText{
				PT: "Interação entre o medicamento prescrito e medicamentos em uso",
				EN: "Interaction between the prescribed medication and active medications",
			},
			Actions: medicationActions,
		},
		fn: evaluateInteraction,
	}
}

func evaluateInteraction(ctx *domain.EvaluationContext, patient *domain.PatientContext) *domain.Signal {
	med := NormalizeDrugName(ctx.Payload.Medication)
	if med == "" || patient == nil || len(patient.Medications) == 0 {
		return nil
	}

	var (
		worst    InteractionSeverity
		evidence []string
	)

	for _, current := range patient.Medications {
		cur := NormalizeDrugName(current.Name)
		for _, pair := range DrugInteractions {
			matched := (inSet(med, pair.Drugs1) && inSet(cur, pair.Drugs2)) ||
				(inSet(med, pair.Drugs2) && inSet(cur, pair.Drugs1))
			if !matched || pair.Severity == InteractionMild {
				continue
			}
			evidence = append(evidence,
				fmt.Sprintf("%s + %s (%s): %s", ctx.Payload.Medication, current.Name, pair.Severity, pair.EffectEN))
			if severityRank(pair.Severity) > severityRank(worst) {
				worst = pair.Severity
			}
		}
	}

	if len(evidence) == 0 {
		return nil
	}

	id := RuleIDInteraction
	color := domain.ColorYellow
	switch worst {
	case InteractionLethal:
		id = domain.RuleIDInteractionLethal
		color = domain.ColorRed
	case InteractionSevere:
		color = domain.ColorRed
	}

	return &domain.Signal{
		RuleID:      id,
		RuleName:    "Drug-drug interaction",
		RuleVersion: "1",
		Category:    domain.CategoryClinical,
		Color:       color,
		Message: domain.BilingualText{
			PT: fmt.Sprintf("Interação medicamentosa detectada com %s", ctx.Payload.Medication),
			EN: fmt.Sprintf("Drug interaction detected with %s", ctx.Payload.Medication),
		},
		Evidence: evidence,
	}
}

func severityRank(s InteractionSeverity) int {
	switch s {
	case InteractionLethal:
		return 4
	case InteractionSevere:
		return 3
	case InteractionModerate:
		return 2
	case InteractionMild:
		return 1
	}
	return 0
}

// renalRule flags renally cleared drugs against the most recent abnormal
// eGFR result: below 30 is RED, below 60 is YELLOW.
func renalRule() domain.Rule {
	return builtin{
		def: domain.RuleDefinition{
			ID:       RuleIDRenal,
			Name:     "Renal contraindication",
			Version:  "1",
			Category: domain.CategoryClinical,
			Color:    domain.ColorYellow,
			Enabled:  true,
			Description: domain.BilingualText{
				PT: "Medicamento de excreção renal com função renal reduzida",
				EN: "Renally cleared medication with reduced renal function",
			},
			Actions: medicationActions,
		},
		fn: evaluateRenal,
	}
}

func evaluateRenal(ctx *domain.EvaluationContext, patient *domain.PatientContext) *domain.Signal {
	med := NormalizeDrugName(ctx.Payload.Medication)
	if med == "" || patient == nil || !inSet(med, RenallyClearedDrugs) {
		return nil
	}

	lab, ok := latestAbnormalEGFR(patient.RecentLabs)
	if !ok || lab.Value >= EGFRYellowThreshold {
		return nil
	}

	color := domain.ColorYellow
	if lab.Value < EGFRRedThreshold {
		color = domain.ColorRed
	}

	return &domain.Signal{
		RuleID:      RuleIDRenal,
		RuleName:    "Renal contraindication",
		RuleVersion: "1",
		Category:    domain.CategoryClinical,
		Color:       color,
		Message: domain.BilingualText{
			PT: fmt.Sprintf("%s requer ajuste com TFG reduzida", ctx.Payload.Medication),
			EN: fmt.Sprintf("%s requires adjustment with reduced eGFR", ctx.Payload.Medication),
		},
		Evidence: []string{
			fmt.Sprintf("Most recent eGFR: %.0f %s (%s, %s)", lab.Value, lab.Unit, lab.Status, lab.ResultDate.Format("2006-01-02")),
		},
		Suggestion: &domain.BilingualText{
			PT: "Avalie ajuste de dose ou alternativa sem excreção renal",
			EN: "Consider dose adjustment or a non-renally-cleared alternative",
		},
	}
}

// latestAbnormalEGFR scans labs (most recent first) for the first eGFR
// result flagged abnormal or critical.
func latestAbnormalEGFR(labs []domain.LabResult) (domain.LabResult, bool) {
	for _, lab := range labs {
		if lab.Status == domain.LabNormal {
			continue
		}
		name := NormalizeDrugName(lab.TestName)
		if namesOverlap(name, "egfr") || namesOverlap(name, "tfg") {
			return lab, true
		}
	}
	return domain.LabResult{}, false
}

// ageRestrictionRule flags age-restricted medications against patient age.
func ageRestrictionRule() domain.Rule {
	return builtin{
		def: domain.RuleDefinition{
			ID:       RuleIDAgeRestriction,
			Name:     "Age restriction",
			Version:  "1",
			Category: domain.CategoryClinical,
			Color:    domain.ColorYellow,
			Enabled:  true,
			Description: domain.BilingualText{
				PT: "Medicamento restrito para a faixa etária do paciente",
				EN: "Medication restricted for the patient's age group",
			},
			Actions: medicationActions,
		},
		fn: evaluateAgeRestriction,
	}
}

func evaluateAgeRestriction(ctx *domain.EvaluationContext, patient *domain.PatientContext) *domain.Signal {
	med := NormalizeDrugName(ctx.Payload.Medication)
	if med == "" || patient == nil || patient.Age <= 0 {
		return nil
	}

	for _, r := range AgeRestrictions {
		if inSet(med, r.Drugs) && patient.Age < r.MinAge {
			return &domain.Signal{
				RuleID:      RuleIDAgeRestriction,
				RuleName:    "Age restriction",
				RuleVersion: "1",
				Category:    domain.CategoryClinical,
				Color:       domain.ColorYellow,
				Message: domain.BilingualText{
					PT: r.ReasonPT,
					EN: r.ReasonEN,
				},
				Evidence: []string{
					fmt.Sprintf("Patient age %d, minimum %d for %s", patient.Age, r.MinAge, ctx.Payload.Medication),
				},
			}
		}
	}
	return nil
}

// pregnancyRule blocks category-X drugs for pregnant patients.
func pregnancyRule() domain.Rule {
	return builtin{
		def: domain.RuleDefinition{
			ID:       RuleIDPregnancy,
			Name:     "Pregnancy contraindication",
			Version:  "1",
			Category: domain.CategoryClinical,
			Color:    domain.ColorRed,
			Enabled:  true,
			Description: domain.BilingualText{
				PT: "Medicamento categoria X prescrito para gestante",
				EN: "Category X medication prescribed during pregnancy",
			},
			Actions: medicationActions,
		},
		fn: evaluatePregnancy,
	}
}

func evaluatePregnancy(ctx *domain.EvaluationContext, patient *domain.PatientContext) *domain.Signal {
	med := NormalizeDrugName(ctx.Payload.Medication)
	if med == "" || patient == nil || !patient.Pregnant {
		return nil
	}
	if !inSet(med, PregnancyCategoryXDrugs) {
		return nil
	}
	return &domain.Signal{
		RuleID:      RuleIDPregnancy,
		RuleName:    "Pregnancy contraindication",
		RuleVersion: "1",
		Category:    domain.CategoryClinical,
		Color:       domain.ColorRed,
		Message: domain.BilingualText{
			PT: fmt.Sprintf("%s é contraindicado na gestação (categoria X)", ctx.Payload.Medication),
			EN: fmt.Sprintf("%s is contraindicated in pregnancy (category X)", ctx.Payload.Medication),
		},
		Evidence: []string{"Patient record indicates active pregnancy"},
	}
}

// duplicateTherapyRule flags prescribing a medication already active.
func duplicateTherapyRule() domain.Rule {
	return builtin{
		def: domain.RuleDefinition{
			ID:       RuleIDDuplicateTherapy,
			Name:     "Duplicate therapy",
			Version:  "1",
			Category: domain.CategoryClinical,
			Color:    domain.ColorYellow,
			Enabled:  true,
			Description: domain.BilingualText{
				PT: "Medicamento já em uso ativo pelo paciente",
				EN: "Medication already active for the patient",
			},
			Actions: medicationActions,
		},
		fn: evaluateDuplicateTherapy,
	}
}

func evaluateDuplicateTherapy(ctx *domain.EvaluationContext, patient *domain.PatientContext) *domain.Signal {
	med := NormalizeDrugName(ctx.Payload.Medication)
	if med == "" || patient == nil {
		return nil
	}
	for _, current := range patient.Medications {
		if NormalizeDrugName(current.Name) == med {
			return &domain.Signal{
				RuleID:      RuleIDDuplicateTherapy,
				RuleName:    "Duplicate therapy",
				RuleVersion: "1",
				Category:    domain.CategoryClinical,
				Color:       domain.ColorYellow,
				Message: domain.BilingualText{
					PT: fmt.Sprintf("%s já consta como medicamento ativo", ctx.Payload.Medication),
					EN: fmt.Sprintf("%s is already an active medication", ctx.Payload.Medication),
				},
				Evidence: []string{
					fmt.Sprintf("Active medication: %s %s %s", current.Name, current.Dose, current.Frequency),
				},
			}
		}
	}
	return nil
}
