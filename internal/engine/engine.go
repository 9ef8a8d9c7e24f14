// Package engine implements the traffic light evaluation engine: concurrent
// rule fan-out, worst-wins aggregation, override policy, and glosa risk
// combination.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-health/semaforo/internal/domain"
	"github.com/opensource-health/semaforo/internal/metrics"
	"github.com/opensource-health/semaforo/internal/rules"
)

const engineVersion = "semaforo-1.0"

var tracer = otel.Tracer("semaforo-engine")

// Loader resolves a patient identifier into the clinical context rules
// evaluate against. Loader failures degrade to an empty context; they never
// abort an evaluation.
type Loader interface {
	Load(ctx context.Context, clinicID string, patientID string) (*domain.PatientContext, error)
}

// Sink receives audit captures for non-GREEN verdicts. Delivery is
// best-effort: the engine fires captures in a detached goroutine and
// swallows failures.
type Sink interface {
	Capture(ctx context.Context, event *domain.AuditEvent) error
}

// Engine evaluates actions against the rule registry. Safe for concurrent
// use; the registry is swapped atomically on reload.
type Engine struct {
	registry atomic.Pointer[rules.Registry]

	loader   Loader
	sink     Sink
	compiler *rules.Compiler
	repo     domain.Repository

	maxWorkers   int
	captureTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLoader sets the patient context loader.
func WithLoader(l Loader) Option { return func(e *Engine) { e.loader = l } }

// WithSink sets the audit capture sink.
func WithSink(s Sink) Option { return func(e *Engine) { e.sink = s } }

// WithRepository sets the repository used to load clinic-defined expression
// rules on Reload.
func WithRepository(r domain.Repository) Option { return func(e *Engine) { e.repo = r } }

// WithMaxWorkers bounds concurrent rule evaluations per call.
func WithMaxWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxWorkers = n
		}
	}
}

// New creates an engine seeded with the builtin catalogs.
func New(opts ...Option) (*Engine, error) {
	compiler, err := rules.NewCompiler()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		compiler:       compiler,
		maxWorkers:     32,
		captureTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.registry.Store(rules.NewRegistry())
	return e, nil
}

// Registry returns the current registry snapshot.
func (e *Engine) Registry() *rules.Registry {
	return e.registry.Load()
}

// Compiler exposes the CEL compiler for rule validation at the API layer.
func (e *Engine) Compiler() *rules.Compiler {
	return e.compiler
}

// GlobalClinicID marks expression rules visible to every clinic.
const GlobalClinicID = domain.GlobalClinicID

// Reload rebuilds the registry from the builtin catalogs plus the persisted
// expression rules and atomically swaps it in. In-flight evaluations keep
// the snapshot they started with.
func (e *Engine) Reload(ctx context.Context) error {
	registry := rules.NewRegistry()

	if e.repo != nil {
		cfgs, err := e.repo.ListExprRules(ctx, GlobalClinicID)
		if err != nil {
			return err
		}
		compiled, err := e.compiler.CompileAll(cfgs)
		if err != nil {
			return err
		}
		registry = registry.WithExprRules(compiled)
	}

	e.registry.Store(registry)
	slog.Info("rule registry reloaded", "rules_count", registry.Count())
	return nil
}

// LoadExprRule compiles a single configuration and swaps in a registry that
// includes it, for immediate effect after creation via the API.
func (e *Engine) LoadExprRule(cfg *domain.ExprRuleConfig) error {
	rule, err := e.compiler.Compile(cfg)
	if err != nil {
		return err
	}
	e.registry.Store(e.registry.Load().WithExprRules([]domain.Rule{rule}))
	return nil
}

// Evaluate runs every applicable rule against the action and returns the
// aggregated verdict. It never returns an error and never panics: any
// engine-level failure degrades to a GREEN, fully overridable result marked
// as degraded (fail-open).
func (e *Engine) Evaluate(ctx context.Context, ec *domain.EvaluationContext) (result *domain.TrafficLightResult) {
	start := time.Now()
	evaluationID := uuid.New().String()
	patientHash := HashPatientID(ec.PatientID)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine failure, degrading to fail-open result",
				"action", ec.Action,
				"patient_hash", patientHash,
				"panic", r,
			)
			metrics.RecordDegraded()
			result = degradedResult(evaluationID, patientHash, start)
		}
	}()

	ctx, span := tracer.Start(ctx, "engine.Evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("action", string(ec.Action)),
		attribute.String("patient.hash", patientHash),
	)

	patient := ec.Patient
	if patient == nil {
		patient = e.loadPatient(ctx, ec)
	}

	selected := e.registry.Load().Select(ec.Action)
	signals := e.fanOut(ctx, selected, ec, patient)

	result = assemble(signals)
	result.Metadata = domain.ResultMetadata{
		EvaluationID:   evaluationID,
		Timestamp:      time.Now().UTC(),
		LatencyMs:      time.Since(start).Milliseconds(),
		RulesEvaluated: len(selected),
		PatientHash:    patientHash,
		EngineVersion:  engineVersion,
	}

	span.SetAttributes(
		attribute.String("result.color", string(result.Color)),
		attribute.Int("result.signals", len(result.Signals)),
	)

	metrics.RecordEvaluation(string(result.Color), string(ec.Action), time.Since(start))
	if result.Glosa != nil {
		metrics.RecordGlosaFlag()
	}

	// GREEN results are not retained for review.
	if result.Color != domain.ColorGreen {
		e.capture(ec, result)
	}

	return result
}

// loadPatient resolves the patient context, degrading to an empty context on
// loader absence or failure.
func (e *Engine) loadPatient(ctx context.Context, ec *domain.EvaluationContext) *domain.PatientContext {
	if e.loader == nil {
		return domain.EmptyPatientContext(ec.PatientID)
	}
	patient, err := e.loader.Load(ctx, ec.ClinicID, ec.PatientID)
	if err != nil || patient == nil {
		slog.Warn("patient context load failed, proceeding with empty context",
			"patient_hash", HashPatientID(ec.PatientID),
			"error", err,
		)
		return domain.EmptyPatientContext(ec.PatientID)
	}
	return patient
}

// fanOut evaluates the selected rules concurrently. Each evaluation is
// individually recovered: a panicking rule contributes no signal and never
// aborts the batch. Results carry no ordering guarantee.
func (e *Engine) fanOut(ctx context.Context, selected []domain.Rule, ec *domain.EvaluationContext, patient *domain.PatientContext) []domain.Signal {
	if len(selected) == 0 {
		return nil
	}

	results := make([]*domain.Signal, len(selected))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range selected {
		wg.Add(1)
		go func(idx int, r domain.Rule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = e.evaluateRule(r, ec, patient)
		}(i, rule)
	}

	wg.Wait()

	signals := make([]domain.Signal, 0, len(results))
	for _, s := range results {
		if s != nil {
			signals = append(signals, *s)
		}
	}
	return signals
}

// evaluateRule runs one rule with a panic boundary.
func (e *Engine) evaluateRule(rule domain.Rule, ec *domain.EvaluationContext, patient *domain.PatientContext) (signal *domain.Signal) {
	def := rule.Definition()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("rule evaluation panic, treating as no signal",
				"rule_id", def.ID,
				"panic", r,
			)
			metrics.RecordRuleFailure(def.ID)
			signal = nil
		}
	}()
	return rule.Evaluate(ec, patient)
}

// capture hands the verdict to the audit sink in a detached goroutine.
// Failures are logged and swallowed; the caller never waits.
func (e *Engine) capture(ec *domain.EvaluationContext, result *domain.TrafficLightResult) {
	if e.sink == nil {
		return
	}

	event := &domain.AuditEvent{
		ID:          uuid.New().String(),
		EventType:   domain.EventTypeEvaluation,
		ClinicID:    ec.ClinicID,
		Provider:    domain.AuditProvider,
		Action:      ec.Action,
		Color:       result.Color,
		SignalCount: len(result.Signals),
		PatientHash: result.Metadata.PatientHash,
		Snapshot:    ec.RawSnapshot,
		Verdict:     verdictSummary(result),
		LatencyMs:   result.Metadata.LatencyMs,
		CreatedAt:   time.Now().UTC(),
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("audit capture panic swallowed", "panic", r)
			}
		}()

		// Detached from the request context: capture outlives the call.
		ctx, cancel := context.WithTimeout(context.Background(), e.captureTimeout)
		defer cancel()

		if err := e.sink.Capture(ctx, event); err != nil {
			slog.Warn("audit capture failed", "event_id", event.ID, "error", err)
			metrics.RecordAuditDrop()
		}
	}()
}

// verdictSummary builds the compact result summary stored with captures.
func verdictSummary(result *domain.TrafficLightResult) map[string]interface{} {
	return map[string]interface{}{
		"color":               string(result.Color),
		"canOverride":         result.Override.CanOverride,
		"overrideRequires":    string(result.Override.Requires),
		"needsChatAssistance": result.NeedsChatAssistance,
		"clinicalRed":         result.Clinical.Red,
		"clinicalYellow":      result.Clinical.Yellow,
		"administrativeRed":   result.Administrative.Red,
		"administrativeYellow": result.Administrative.Yellow,
		"billingRed":          result.Billing.Red,
		"billingYellow":       result.Billing.Yellow,
	}
}

// degradedResult is the fail-open verdict: GREEN, fully overridable, no
// signals, marked degraded.
func degradedResult(evaluationID, patientHash string, start time.Time) *domain.TrafficLightResult {
	return &domain.TrafficLightResult{
		Color:    domain.ColorGreen,
		Signals:  []domain.Signal{},
		Override: domain.OverridePolicy{CanOverride: true},
		Metadata: domain.ResultMetadata{
			EvaluationID:  evaluationID,
			Timestamp:     time.Now().UTC(),
			LatencyMs:     time.Since(start).Milliseconds(),
			PatientHash:   patientHash,
			Degraded:      true,
			EngineVersion: engineVersion,
		},
	}
}

// HashPatientID returns the one-way hash used in metadata and analytics in
// place of the raw patient identifier.
func HashPatientID(patientID string) string {
	sum := sha256.Sum256([]byte(patientID))
	return hex.EncodeToString(sum[:16])
}
