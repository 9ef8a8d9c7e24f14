package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-health/semaforo/internal/domain"
	"github.com/opensource-health/semaforo/internal/engine"
	"github.com/opensource-health/semaforo/internal/patient"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engine  *engine.Engine
	loader  *patient.Loader
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, loader *patient.Loader, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		engine:  eng,
		loader:  loader,
		version: version,
	}
}

// EvaluateRequest is the request body for POST /evaluate.
type EvaluateRequest struct {
	PatientID string                 `json:"patientId"`
	Action    domain.ActionKind      `json:"action"`
	Payload   domain.ActionPayload   `json:"payload"`
	Snapshot  map[string]interface{} `json:"snapshot,omitempty"`

	// Patient overrides the stored context when callers already hold a
	// fresh snapshot (e.g. intake flows).
	Patient *domain.PatientContext `json:"patient,omitempty"`
}

// Evaluate handles POST /evaluate requests. The response is always a full
// traffic light verdict; engine failures degrade to GREEN rather than 5xx.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clinicID := GetClinicID(ctx)

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.PatientID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "patientId is required",
		})
		return
	}
	if !domain.ValidAction(req.Action) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "action must be one of: order, prescription, procedure, diagnosis, billing, admission, discharge",
		})
		return
	}

	ec := &domain.EvaluationContext{
		PatientID:   req.PatientID,
		ClinicID:    clinicID,
		Action:      req.Action,
		Payload:     req.Payload,
		RawSnapshot: req.Snapshot,
		Patient:     req.Patient,
	}

	result := h.engine.Evaluate(ctx, ec)
	writeJSON(w, http.StatusOK, result)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetPatientContext returns the assembled clinical snapshot for a patient.
func (h *Handler) GetPatientContext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clinicID := GetClinicID(ctx)
	patientID := chi.URLParam(r, "id")

	if patientID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "patient id is required",
		})
		return
	}

	if h.loader == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "patient loader not available",
		})
		return
	}

	pc, err := h.loader.Load(ctx, clinicID, patientID)
	if err != nil {
		slog.Warn("failed to load patient context", "patient_hash", engine.HashPatientID(patientID), "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "patient not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, pc)
}

// GetAuditEvent retrieves an audit capture by ID.
func (h *Handler) GetAuditEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clinicID := GetClinicID(ctx)
	eventID := chi.URLParam(r, "id")

	if eventID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "audit event id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	event, err := h.repo.GetAuditEvent(ctx, clinicID, eventID)
	if err != nil {
		slog.Error("failed to get audit event", "id", eventID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "audit event not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// ListRules returns all rules in the current registry snapshot, grouped by
// catalog. Expression rules created via POST /rules appear after a reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	registry := h.engine.Registry()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": registry.Definitions(),
		"count": registry.Count(),
	})
}

// GetRule retrieves a rule definition by ID.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if def, ok := h.engine.Registry().Find(ruleID); ok {
		writeJSON(w, http.StatusOK, def)
		return
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating an expression rule.
type CreateRuleRequest struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Category   domain.RuleCategory  `json:"category"`
	Color      domain.Color         `json:"color"`
	Expression string               `json:"expression"`
	Message    domain.BilingualText `json:"message"`
	Reference  string               `json:"reference,omitempty"`
	Actions    []domain.ActionKind  `json:"actions"`
	Enabled    bool                 `json:"enabled"`

	GlosaProbability int     `json:"glosaProbability,omitempty"`
	GlosaAmount      float64 `json:"glosaAmount,omitempty"`
	GlosaDenialCode  string  `json:"glosaDenialCode,omitempty"`
}

// CreateRule validates and persists a clinic-defined expression rule.
// The rule takes effect after POST /rules/reload.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clinicID := GetClinicID(ctx)

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	if len(req.Actions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "at least one action is required",
		})
		return
	}
	for _, a := range req.Actions {
		if !domain.ValidAction(a) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "unknown action: " + string(a),
			})
			return
		}
	}
	switch req.Color {
	case domain.ColorRed, domain.ColorYellow:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "color must be RED or YELLOW",
		})
		return
	}

	cfg := &domain.ExprRuleConfig{
		ID:               req.ID,
		ClinicID:         clinicID,
		Name:             req.Name,
		Version:          "1",
		Category:         req.Category,
		Color:            req.Color,
		Expression:       req.Expression,
		Message:          req.Message,
		Reference:        req.Reference,
		Actions:          req.Actions,
		Enabled:          req.Enabled,
		GlosaProbability: req.GlosaProbability,
		GlosaAmount:      req.GlosaAmount,
		GlosaDenialCode:  req.GlosaDenialCode,
	}

	// Reject malformed expressions before they reach the registry.
	if err := h.engine.Compiler().Validate(cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveExprRule(ctx, clinicID, cfg); err != nil {
			slog.Error("failed to save expression rule", "id", cfg.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("expression rule created", "id", cfg.ID, "clinic_id", clinicID, "name", cfg.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    cfg,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules rebuilds the registry from the builtin catalogs plus the
// persisted expression rules. This enables hot-reloading without restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.engine.Reload(ctx); err != nil {
		slog.Error("failed to reload rule registry", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	count := h.engine.Registry().Count()
	slog.Info("rules reloaded", "count", count)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
