package rules

import (
	"fmt"
	"math"
	"strings"

	"github.com/opensource-health/semaforo/internal/domain"
)

// Billing catalog rule ids.
const (
	RuleIDTISSUnknown   = "BILL-TISS-UNKNOWN"
	RuleIDTISSAuth      = "BILL-TISS-AUTH"
	RuleIDTISSCID       = "BILL-TISS-CID"
	RuleIDTISSOPME      = "BILL-TISS-OPME"
	RuleIDAmountOutlier = "BILL-AMOUNT"
)

var billingActions = []domain.ActionKind{domain.ActionBilling, domain.ActionProcedure}

// BillingRules returns the builtin billing catalog.
func BillingRules() []domain.Rule {
	return []domain.Rule{
		tissUnknownRule(),
		tissAuthRule(),
		tissCIDRule(),
		tissOPMERule(),
		amountOutlierRule(),
	}
}

// tissUnknownRule rejects procedure codes absent from the TUSS table.
func tissUnknownRule() domain.Rule {
	return builtin{
		def: domain.RuleDefinition{
			ID:       RuleIDTISSUnknown,
			Name:     "Unknown TISS code",
			Version:  "1",
			Category: domain.CategoryBilling,
			Color:    domain.ColorRed,
			Enabled:  true,
			Description: domain.BilingualText{
				PT: "Código de procedimento não reconhecido na tabela TUSS",
				EN: "Procedure code not recognized in the TUSS table",
			},
			Reference: "TISS 4.1",
			Actions:   billingActions,
		},
		fn: func(ctx *domain.EvaluationContext, _ *domain.PatientContext) *domain.Signal {
			code := ctx.Payload.TISSCode
			if code == "" {
				return nil
			}
			if _, ok := LookupTISS(code); ok {
				return nil
			}
			return &domain.Signal{
				RuleID:      RuleIDTISSUnknown,
				RuleName:    "Unknown TISS code",
				RuleVersion: "1",
				Category:    domain.CategoryBilling,
				Color:       domain.ColorRed,
				Message: domain.BilingualText{
					PT: fmt.Sprintf("Código TISS %s não consta na tabela", code),
					EN: fmt.Sprintf("TISS code %s is not in the table", code),
				},
				Evidence: []string{fmt.Sprintf("Unknown procedure code: %s", code)},
				Glosa: &domain.GlosaRisk{
					Probability: 98,
					Amount:      ctx.Payload.BilledAmount,
					DenialCode:  DenialUnknownCode,
				},
				Suggestion: &domain.BilingualText{
					PT: "Verifique o código na tabela TUSS vigente",
					EN: "Verify the code against the current TUSS table",
				},
			}
		},
	}
}

// tissAuthRule flags procedures requiring authorization billed without an
// approved status. Probability is the shared auth-risk formula; above the
// threshold the signal is RED.
func tissAuthRule() domain.Rule {
	return builtin{
		def: domain.RuleDefinition{
			ID:       RuleIDTISSAuth,
			Name:     "Missing prior authorization",
			Version:  "1",
			Category: domain.CategoryBilling,
			Color:    domain.ColorRed,
			Enabled:  true,
			Description: domain.BilingualText{
				PT: "Procedimento exige autorização prévia não aprovada",
				EN: "Procedure requires prior authorization that is not approved",
			},
			Actions: billingActions,
		},
		fn: func(ctx *domain.EvaluationContext, _ *domain.PatientContext) *domain.Signal {
			proc, ok := LookupTISS(ctx.Payload.TISSCode)
			if !ok || !proc.RequiresAuth {
				return nil
			}
			if strings.EqualFold(ctx.Payload.PriorAuthStatus, "approved") {
				return nil
			}

			probability := authRiskProbability(proc)
			color := domain.ColorYellow
			if probability > authRiskThreshold {
				color = domain.ColorRed
			}

			factors := []string{"missing_prior_authorization"}
			if proc.AvgAmount > highValueThreshold {
				factors = append(factors, "high_value_procedure")
			}

			return &domain.Signal{
				RuleID:      RuleIDTISSAuth,
				RuleName:    "Missing prior authorization",
				RuleVersion: "1",
				Category:    domain.CategoryBilling,
				Color:       color,
				Message: domain.BilingualText{
					PT: fmt.Sprintf("%s exige autorização prévia aprovada", proc.Name),
					EN: fmt.Sprintf("%s requires an approved prior authorization", proc.Name),
				},
				Evidence: []string{
					fmt.Sprintf("Procedure %s requires authorization, status: %q", proc.Code, ctx.Payload.PriorAuthStatus),
				},
				Glosa: &domain.GlosaRisk{
					Probability: probability,
					Amount:      billedOrAverage(ctx.Payload.BilledAmount, proc),
					DenialCode:  DenialMissingAuth,
					RiskFactors: factors,
				},
				Suggestion: &domain.BilingualText{
					PT: "Obtenha a autorização da operadora antes do faturamento",
					EN: "Obtain the insurer authorization before billing",
				},
			}
		},
	}
}

// tissCIDRule validates the claimed diagnosis against the procedure's
// acceptable CID-10 prefixes.
func tissCIDRule() domain.Rule {
	return builtin{
		def: domain.RuleDefinition{
			ID:       RuleIDTISSCID,
			Name:     "CID x procedure compatibility",
			Version:  "1",
			Category: domain.CategoryBilling,
			Color:    domain.ColorRed,
			Enabled:  true,
			Description: domain.BilingualText{
				PT: "Diagnóstico informado incompatível com o procedimento",
				EN: "Claimed diagnosis incompatible with the procedure",
			},
			Actions: billingActions,
		},
		fn: func(ctx *domain.EvaluationContext, _ *domain.PatientContext) *domain.Signal {
			proc, ok := LookupTISS(ctx.Payload.TISSCode)
			if !ok || len(proc.CIDPrefixes) == 0 {
				return nil
			}

			diagnosis := strings.ToUpper(strings.TrimSpace(ctx.Payload.Diagnosis))
			var evidence string
			if diagnosis == "" {
				evidence = fmt.Sprintf("No diagnosis provided for procedure %s", proc.Code)
			} else {
				for _, prefix := range proc.CIDPrefixes {
					if strings.HasPrefix(diagnosis, prefix) {
						return nil
					}
				}
				evidence = fmt.Sprintf("Diagnosis %s does not match accepted prefixes %v for %s", diagnosis, proc.CIDPrefixes, proc.Code)
			}

			probability := authRiskProbability(proc)
			color := domain.ColorYellow
			if probability > authRiskThreshold {
				color = domain.ColorRed
			}

			return &domain.Signal{
				RuleID:      RuleIDTISSCID,
				RuleName:    "CID x procedure compatibility",
				RuleVersion: "1",
				Category:    domain.CategoryBilling,
				Color:       color,
				Message: domain.BilingualText{
					PT: fmt.Sprintf("CID informado incompatível com %s", proc.Name),
					EN: fmt.Sprintf("Claimed CID incompatible with %s", proc.Name),
				},
				Evidence: []string{evidence},
				Glosa: &domain.GlosaRisk{
					Probability: probability,
					Amount:      billedOrAverage(ctx.Payload.BilledAmount, proc),
					DenialCode:  DenialCIDIncompatible,
					RiskFactors: []string{"incompatible_diagnosis"},
				},
			}
		},
	}
}

// tissOPMERule requires both the general and item-level authorizations for
// OPME procedures. Missing either is always RED.
func tissOPMERule() domain.Rule {
	return builtin{
		def: domain.RuleDefinition{
			ID:       RuleIDTISSOPME,
			Name:     "OPME authorization",
			Version:  "1",
			Category: domain.CategoryBilling,
			Color:    domain.ColorRed,
			Enabled:  true,
			Description: domain.BilingualText{
				PT: "Procedimento com OPME sem autorização geral e do item",
				EN: "OPME procedure without both general and item authorization",
			},
			Reference: "RN 465/2021 ANS, Anexo II",
			Actions:   billingActions,
		},
		fn: func(ctx *domain.EvaluationContext, _ *domain.PatientContext) *domain.Signal {
			proc, ok := LookupTISS(ctx.Payload.TISSCode)
			if !ok || !proc.OPME {
				return nil
			}
			if ctx.Payload.OPMEAuthorized && ctx.Payload.OPMEItemAuthorized {
				return nil
			}

			var missing []string
			if !ctx.Payload.OPMEAuthorized {
				missing = append(missing, "general OPME authorization")
			}
			if !ctx.Payload.OPMEItemAuthorized {
				missing = append(missing, "item-level OPME authorization")
			}

			return &domain.Signal{
				RuleID:      RuleIDTISSOPME,
				RuleName:    "OPME authorization",
				RuleVersion: "1",
				Category:    domain.CategoryBilling,
				Color:       domain.ColorRed,
				Message: domain.BilingualText{
					PT: fmt.Sprintf("%s exige autorização geral e específica de OPME", proc.Name),
					EN: fmt.Sprintf("%s requires both general and item OPME authorization", proc.Name),
				},
				Evidence: []string{fmt.Sprintf("Missing: %s", strings.Join(missing, ", "))},
				Glosa: &domain.GlosaRisk{
					Probability: 90,
					Amount:      billedOrAverage(ctx.Payload.BilledAmount, proc),
					DenialCode:  DenialOPMEUnauthorized,
					RiskFactors: missing,
				},
			}
		},
	}
}

// amountOutlierRule flags billed amounts deviating from the procedure's
// historical average: over 50% is YELLOW, over 100% is RED, probability
// linear in the deviation and capped at 80.
func amountOutlierRule() domain.Rule {
	return builtin{
		def: domain.RuleDefinition{
			ID:       RuleIDAmountOutlier,
			Name:     "Billed amount outlier",
			Version:  "1",
			Category: domain.CategoryBilling,
			Color:    domain.ColorYellow,
			Enabled:  true,
			Description: domain.BilingualText{
				PT: "Valor cobrado diverge da média histórica do procedimento",
				EN: "Billed amount deviates from the procedure's historical average",
			},
			Actions: billingActions,
		},
		fn: func(ctx *domain.EvaluationContext, _ *domain.PatientContext) *domain.Signal {
			proc, ok := LookupTISS(ctx.Payload.TISSCode)
			if !ok || proc.AvgAmount <= 0 || ctx.Payload.BilledAmount <= 0 {
				return nil
			}

			deviation := math.Abs(ctx.Payload.BilledAmount-proc.AvgAmount) / proc.AvgAmount
			if deviation <= 0.5 {
				return nil
			}

			color := domain.ColorYellow
			if deviation > 1.0 {
				color = domain.ColorRed
			}
			probability := int(math.Round(50 * deviation))
			if probability > 80 {
				probability = 80
			}

			return &domain.Signal{
				RuleID:      RuleIDAmountOutlier,
				RuleName:    "Billed amount outlier",
				RuleVersion: "1",
				Category:    domain.CategoryBilling,
				Color:       color,
				Message: domain.BilingualText{
					PT: fmt.Sprintf("Valor cobrado desvia %.0f%% da média de %s", deviation*100, proc.Name),
					EN: fmt.Sprintf("Billed amount deviates %.0f%% from the average for %s", deviation*100, proc.Name),
				},
				Evidence: []string{
					fmt.Sprintf("Billed %.2f vs historical average %.2f", ctx.Payload.BilledAmount, proc.AvgAmount),
				},
				Glosa: &domain.GlosaRisk{
					Probability: probability,
					Amount:      ctx.Payload.BilledAmount,
					DenialCode:  DenialAmountMismatch,
					RiskFactors: []string{"amount_deviation"},
				},
			}
		},
	}
}

// billedOrAverage prefers the actual billed amount, falling back to the
// historical average when the caller has not billed yet.
func billedOrAverage(billed float64, proc TISSProcedure) float64 {
	if billed > 0 {
		return billed
	}
	return proc.AvgAmount
}
