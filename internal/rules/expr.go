package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-health/semaforo/internal/domain"
)

// Compiler compiles clinic-defined CEL expression rules into registry
// entries. Expressions see a fixed variable set derived from the evaluation
// and patient contexts and must return bool.
type Compiler struct {
	env *cel.Env
}

// NewCompiler creates the shared CEL environment.
func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("medication", cel.StringType),
		cel.Variable("diagnosis", cel.StringType),
		cel.Variable("procedure", cel.StringType),
		cel.Variable("tiss_code", cel.StringType),
		cel.Variable("billed_amount", cel.DoubleType),
		cel.Variable("prior_auth_status", cel.StringType),
		cel.Variable("patient_age", cel.IntType),
		cel.Variable("patient_sex", cel.StringType),
		cel.Variable("pregnant", cel.BoolType),
		cel.Variable("allergy_count", cel.IntType),
		cel.Variable("medication_count", cel.IntType),
		cel.Variable("diagnosis_count", cel.IntType),
		cel.Variable("extra", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Compiler{env: env}, nil
}

// Validate compiles a configuration without producing a rule.
func (c *Compiler) Validate(cfg *domain.ExprRuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}
	if cfg.ID == "" || cfg.Expression == "" {
		return fmt.Errorf("rule id and expression are required")
	}
	_, err := c.compile(cfg)
	return err
}

// Compile turns a configuration into a registry entry.
func (c *Compiler) Compile(cfg *domain.ExprRuleConfig) (domain.Rule, error) {
	program, err := c.compile(cfg)
	if err != nil {
		return nil, err
	}
	return &exprRule{cfg: *cfg, program: program}, nil
}

// CompileAll compiles every enabled configuration, skipping disabled ones.
func (c *Compiler) CompileAll(cfgs []*domain.ExprRuleConfig) ([]domain.Rule, error) {
	var compiled []domain.Rule
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		rule, err := c.Compile(cfg)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, rule)
	}
	return compiled, nil
}

func (c *Compiler) compile(cfg *domain.ExprRuleConfig) (cel.Program, error) {
	ast, issues := c.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}
	return program, nil
}

// exprRule adapts a compiled CEL program to the Rule interface.
type exprRule struct {
	cfg     domain.ExprRuleConfig
	program cel.Program
}

func (r *exprRule) Definition() domain.RuleDefinition {
	return domain.RuleDefinition{
		ID:          r.cfg.ID,
		Name:        r.cfg.Name,
		Version:     r.cfg.Version,
		Category:    r.cfg.Category,
		Color:       r.cfg.Color,
		Enabled:     r.cfg.Enabled,
		Description: r.cfg.Message,
		Reference:   r.cfg.Reference,
		Actions:     r.cfg.Actions,
	}
}

func (r *exprRule) Evaluate(ctx *domain.EvaluationContext, patient *domain.PatientContext) *domain.Signal {
	// Clinic-scoped rules never fire for another clinic's evaluations.
	if r.cfg.ClinicID != "" && r.cfg.ClinicID != domain.GlobalClinicID && r.cfg.ClinicID != ctx.ClinicID {
		return nil
	}

	out, _, err := r.program.Eval(activation(ctx, patient))
	if err != nil {
		// An evaluation error is a non-trigger; the engine counts it
		// against the rule, not the batch.
		return nil
	}

	triggered, ok := out.(types.Bool)
	if !ok || !bool(triggered) {
		return nil
	}

	signal := &domain.Signal{
		RuleID:      r.cfg.ID,
		RuleName:    r.cfg.Name,
		RuleVersion: r.cfg.Version,
		Category:    r.cfg.Category,
		Color:       r.cfg.Color,
		Message:     r.cfg.Message,
		Reference:   r.cfg.Reference,
		Evidence:    []string{fmt.Sprintf("Expression matched: %s", r.cfg.Expression)},
	}
	if r.cfg.GlosaProbability > 0 {
		signal.Glosa = &domain.GlosaRisk{
			Probability: r.cfg.GlosaProbability,
			Amount:      r.cfg.GlosaAmount,
			DenialCode:  r.cfg.GlosaDenialCode,
		}
	}
	return signal
}

// activation maps the contexts into the CEL variable set. Missing patient
// data activates as zero values so expressions never error on absent fields.
func activation(ctx *domain.EvaluationContext, patient *domain.PatientContext) map[string]any {
	vars := map[string]any{
		"action":            string(ctx.Action),
		"medication":        ctx.Payload.Medication,
		"diagnosis":         ctx.Payload.Diagnosis,
		"procedure":         ctx.Payload.Procedure,
		"tiss_code":         ctx.Payload.TISSCode,
		"billed_amount":     ctx.Payload.BilledAmount,
		"prior_auth_status": ctx.Payload.PriorAuthStatus,
		"patient_age":       int64(0),
		"patient_sex":       "",
		"pregnant":          false,
		"allergy_count":     int64(0),
		"medication_count":  int64(0),
		"diagnosis_count":   int64(0),
		"extra":             map[string]any{},
	}
	if patient != nil {
		vars["patient_age"] = int64(patient.Age)
		vars["patient_sex"] = patient.Sex
		vars["pregnant"] = patient.Pregnant
		vars["allergy_count"] = int64(len(patient.Allergies))
		vars["medication_count"] = int64(len(patient.Medications))
		vars["diagnosis_count"] = int64(len(patient.Diagnoses))
	}
	if ctx.Payload.Extra != nil {
		vars["extra"] = ctx.Payload.Extra
	}
	return vars
}
