package rules

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/opensource-health/semaforo/internal/domain"
)

// Administrative catalog rule ids.
const (
	RuleIDDocumentation   = "ADM-DOCS"
	RuleIDPriorAuthExpiry = "ADM-AUTH-EXPIRY"
	RuleIDSurgicalTeam    = "ADM-SURG-TEAM"
)

// DocRequirement declares the documents a procedure category must carry and
// the category's base glosa rate (percent).
type DocRequirement struct {
	Category      string
	Required      []string
	BaseGlosaRate int
}

// DocRequirements maps procedure categories to documentation requirements.
var DocRequirements = map[string]DocRequirement{
	"SURGERY_OPME": {
		Category:      "SURGERY_OPME",
		Required:      []string{"medical_report", "signed_consent", "opme_specification", "preoperative_exams"},
		BaseGlosaRate: 70,
	},
	"IMAGING": {
		Category:      "IMAGING",
		Required:      []string{"clinical_indication", "referral"},
		BaseGlosaRate: 30,
	},
	"ONCOLOGY": {
		Category:      "ONCOLOGY",
		Required:      []string{"histopathology_report", "treatment_protocol", "staging"},
		BaseGlosaRate: 65,
	},
	"HOME_CARE": {
		Category:      "HOME_CARE",
		Required:      []string{"care_plan", "medical_report", "family_consent"},
		BaseGlosaRate: 50,
	},
	"REHABILITATION": {
		Category:      "REHABILITATION",
		Required:      []string{"referral", "treatment_plan"},
		BaseGlosaRate: 40,
	},
}

// PriorAuthWarningWindow is how far ahead an expiring authorization raises
// an informational signal.
const PriorAuthWarningWindow = 7 * 24 * time.Hour

var adminActions = []domain.ActionKind{
	domain.ActionProcedure, domain.ActionAdmission, domain.ActionDischarge, domain.ActionBilling,
}

// AdministrativeRules returns the builtin administrative catalog.
func AdministrativeRules() []domain.Rule {
	return []domain.Rule{
		documentationRule(),
		priorAuthExpiryRule(),
		surgicalTeamRule(),
	}
}

// documentationRule checks the provided documents against the procedure
// category's required set. More than half missing is RED, any missing is at
// least YELLOW; the glosa probability scales with the fraction missing.
func documentationRule() domain.Rule {
	return builtin{
		def: domain.RuleDefinition{
			ID:       RuleIDDocumentation,
			Name:     "Documentation completeness",
			Version:  "1",
			Category: domain.CategoryAdministrative,
			Color:    domain.ColorYellow,
			Enabled:  true,
			Description: domain.BilingualText{
				PT: "Documentação obrigatória ausente para a categoria do procedimento",
				EN: "Required documentation missing for the procedure category",
			},
			Reference: "RN 465/2021 ANS",
			Actions:   adminActions,
		},
		fn: evaluateDocumentation,
	}
}

func evaluateDocumentation(ctx *domain.EvaluationContext, _ *domain.PatientContext) *domain.Signal {
	req, ok := DocRequirements[strings.ToUpper(ctx.Payload.ProcedureCategory)]
	if !ok {
		return nil
	}

	provided := make(map[string]bool, len(ctx.Payload.Documents))
	for _, d := range ctx.Payload.Documents {
		provided[strings.ToLower(strings.TrimSpace(d))] = true
	}

	var missing []string
	for _, d := range req.Required {
		if !provided[d] {
			missing = append(missing, d)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)

	color := domain.ColorYellow
	if len(missing)*2 > len(req.Required) {
		color = domain.ColorRed
	}

	probability := int(math.Round(float64(req.BaseGlosaRate) * float64(len(missing)) / float64(len(req.Required))))

	evidence := make([]string, 0, len(missing))
	for _, d := range missing {
		evidence = append(evidence, fmt.Sprintf("Missing document: %s", d))
	}

	return &domain.Signal{
		RuleID:      RuleIDDocumentation,
		RuleName:    "Documentation completeness",
		RuleVersion: "1",
		Category:    domain.CategoryAdministrative,
		Color:       color,
		Message: domain.BilingualText{
			PT: fmt.Sprintf("Faltam %d de %d documentos obrigatórios (%s)", len(missing), len(req.Required), req.Category),
			EN: fmt.Sprintf("%d of %d required documents missing (%s)", len(missing), len(req.Required), req.Category),
		},
		Evidence: evidence,
		Glosa: &domain.GlosaRisk{
			Probability: probability,
			Amount:      ctx.Payload.BilledAmount,
			DenialCode:  DenialIncompleteDocs,
			RiskFactors: missing,
		},
		Suggestion: &domain.BilingualText{
			PT: "Anexe os documentos ausentes antes do envio",
			EN: "Attach the missing documents before submission",
		},
	}
}

// priorAuthExpiryRule compares the authorization expiry timestamp to now.
// Already expired is RED with an 85% glosa probability; expiring within the
// warning window is an informational YELLOW.
func priorAuthExpiryRule() domain.Rule {
	return builtin{
		def: domain.RuleDefinition{
			ID:       RuleIDPriorAuthExpiry,
			Name:     "Prior authorization expiry",
			Version:  "1",
			Category: domain.CategoryAdministrative,
			Color:    domain.ColorRed,
			Enabled:  true,
			Description: domain.BilingualText{
				PT: "Autorização prévia expirada ou próxima do vencimento",
				EN: "Prior authorization expired or close to expiry",
			},
			Actions: adminActions,
		},
		fn: evaluatePriorAuthExpiry,
	}
}

func evaluatePriorAuthExpiry(ctx *domain.EvaluationContext, _ *domain.PatientContext) *domain.Signal {
	raw := ctx.Payload.PriorAuthExpiry
	if raw == "" {
		return nil
	}
	expiry, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// Unparseable expiry is treated as absent; the billing catalog
		// still covers missing authorization.
		return nil
	}

	now := time.Now()
	if expiry.Before(now) {
		return &domain.Signal{
			RuleID:      RuleIDPriorAuthExpiry,
			RuleName:    "Prior authorization expiry",
			RuleVersion: "1",
			Category:    domain.CategoryAdministrative,
			Color:       domain.ColorRed,
			Message: domain.BilingualText{
				PT: "Autorização prévia expirada",
				EN: "Prior authorization has expired",
			},
			Evidence: []string{
				fmt.Sprintf("Authorization expired on %s", expiry.Format("2006-01-02")),
			},
			Glosa: &domain.GlosaRisk{
				Probability: 85,
				Amount:      ctx.Payload.BilledAmount,
				DenialCode:  DenialAuthExpired,
			},
			Suggestion: &domain.BilingualText{
				PT: "Solicite nova autorização antes de executar o procedimento",
				EN: "Request a new authorization before performing the procedure",
			},
		}
	}

	if expiry.Sub(now) <= PriorAuthWarningWindow {
		return &domain.Signal{
			RuleID:      RuleIDPriorAuthExpiry,
			RuleName:    "Prior authorization expiry",
			RuleVersion: "1",
			Category:    domain.CategoryAdministrative,
			Color:       domain.ColorYellow,
			Message: domain.BilingualText{
				PT: "Autorização prévia expira em menos de 7 dias",
				EN: "Prior authorization expires within 7 days",
			},
			Evidence: []string{
				fmt.Sprintf("Authorization expires on %s", expiry.Format("2006-01-02")),
			},
		}
	}
	return nil
}

// surgicalTeamRule flags OPME surgeries billed without a complete surgical
// team declaration.
func surgicalTeamRule() domain.Rule {
	return builtin{
		def: domain.RuleDefinition{
			ID:       RuleIDSurgicalTeam,
			Name:     "Surgical team declaration",
			Version:  "1",
			Category: domain.CategoryAdministrative,
			Color:    domain.ColorYellow,
			Enabled:  true,
			Description: domain.BilingualText{
				PT: "Equipe cirúrgica incompleta na declaração do procedimento",
				EN: "Incomplete surgical team on the procedure declaration",
			},
			Actions: []domain.ActionKind{domain.ActionProcedure},
		},
		fn: evaluateSurgicalTeam,
	}
}

func evaluateSurgicalTeam(ctx *domain.EvaluationContext, _ *domain.PatientContext) *domain.Signal {
	if strings.ToUpper(ctx.Payload.ProcedureCategory) != "SURGERY_OPME" || ctx.Payload.SurgicalTeamComplete {
		return nil
	}
	return &domain.Signal{
		RuleID:      RuleIDSurgicalTeam,
		RuleName:    "Surgical team declaration",
		RuleVersion: "1",
		Category:    domain.CategoryAdministrative,
		Color:       domain.ColorYellow,
		Message: domain.BilingualText{
			PT: "Declaração de equipe cirúrgica incompleta",
			EN: "Surgical team declaration is incomplete",
		},
		Evidence: []string{"surgicalTeamComplete flag not set for SURGERY_OPME"},
		Glosa: &domain.GlosaRisk{
			Probability: 35,
			Amount:      ctx.Payload.BilledAmount,
			DenialCode:  DenialIncompleteDocs,
		},
	}
}
