package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opensource-health/semaforo/internal/domain"
	"github.com/opensource-health/semaforo/internal/engine"
)

// createTestServer creates a server with the builtin catalogs and no
// persistence, enough to exercise the HTTP surface.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	eng, err := engine.New()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	return NewServer(cfg, nil, nil, nil, eng, nil, "test-v1")
}

func TestEvaluateEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("SuccessfulEvaluation", func(t *testing.T) {
		reqBody := EvaluateRequest{
			PatientID: "pat-001",
			Action:    domain.ActionPrescription,
			Payload: domain.ActionPayload{
				Medication: "dipirona",
				Dose:       "500mg",
			},
			Patient: &domain.PatientContext{
				PatientID: "pat-001",
				Age:       40,
			},
		}

		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/evaluate", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Clinic-ID", "clinic-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var result domain.TrafficLightResult
		if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if result.Color != domain.ColorGreen {
			t.Errorf("expected GREEN for clean prescription, got %s", result.Color)
		}
		if result.Metadata.EvaluationID == "" {
			t.Error("expected evaluationId in metadata")
		}
		if result.Metadata.PatientHash == "" {
			t.Error("expected patientHash in metadata")
		}
		if result.Metadata.PatientHash == "pat-001" {
			t.Error("patient id must not appear raw in metadata")
		}
	})

	t.Run("RedVerdictForSevereAllergy", func(t *testing.T) {
		reqBody := EvaluateRequest{
			PatientID: "pat-002",
			Action:    domain.ActionPrescription,
			Payload: domain.ActionPayload{
				Medication: "penicilina",
			},
			Patient: &domain.PatientContext{
				PatientID: "pat-002",
				Age:       55,
				Allergies: []domain.Allergy{
					{Allergen: "penicilina", Severity: domain.SeveritySevere, Type: domain.AllergyMedication},
				},
			},
		}

		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/evaluate", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Clinic-ID", "clinic-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var result domain.TrafficLightResult
		if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if result.Color != domain.ColorRed {
			t.Errorf("expected RED, got %s", result.Color)
		}
		if result.Override.CanOverride {
			t.Error("severe allergy verdict must not be overridable")
		}
		if !result.NeedsChatAssistance {
			t.Error("expected needsChatAssistance for non-GREEN verdict")
		}
	})

	t.Run("MissingClinicID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/evaluate", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		// No X-Clinic-ID header

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/evaluate", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Clinic-ID", "clinic-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingPatientID", func(t *testing.T) {
		reqBody := EvaluateRequest{
			Action:  domain.ActionPrescription,
			Payload: domain.ActionPayload{Medication: "dipirona"},
		}
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/evaluate", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Clinic-ID", "clinic-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("UnknownAction", func(t *testing.T) {
		reqBody := EvaluateRequest{
			PatientID: "pat-001",
			Action:    "appointment",
		}
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/evaluate", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Clinic-ID", "clinic-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		reqBody := EvaluateRequest{
			PatientID: "pat-001",
			Action:    domain.ActionOrder,
			Patient:   &domain.PatientContext{PatientID: "pat-001", Age: 30},
		}
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/evaluate", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Clinic-ID", "clinic-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("ListRules", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules", nil)
		req.Header.Set("X-Clinic-ID", "clinic-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count == 0 {
			t.Error("expected builtin rules in registry")
		}
	})

	t.Run("GetRule", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules/CLIN-ALLERGY", nil)
		req.Header.Set("X-Clinic-ID", "clinic-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var def domain.RuleDefinition
		if err := json.Unmarshal(rr.Body.Bytes(), &def); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if def.ID != "CLIN-ALLERGY" {
			t.Errorf("expected rule CLIN-ALLERGY, got %s", def.ID)
		}
	})

	t.Run("GetRuleNotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules/NOPE", nil)
		req.Header.Set("X-Clinic-ID", "clinic-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("CreateRuleBadExpression", func(t *testing.T) {
		reqBody := CreateRuleRequest{
			ID:         "CUSTOM-BAD",
			Name:       "Broken",
			Category:   domain.CategoryClinical,
			Color:      domain.ColorYellow,
			Expression: "patient_age >", // malformed
			Actions:    []domain.ActionKind{domain.ActionPrescription},
			Enabled:    true,
		}
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Clinic-ID", "clinic-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for malformed expression, got %d", rr.Code)
		}
	})

	t.Run("CreateRuleNonBoolExpression", func(t *testing.T) {
		reqBody := CreateRuleRequest{
			ID:         "CUSTOM-NONBOOL",
			Name:       "Non-bool",
			Category:   domain.CategoryClinical,
			Color:      domain.ColorYellow,
			Expression: "patient_age + 1",
			Actions:    []domain.ActionKind{domain.ActionPrescription},
			Enabled:    true,
		}
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Clinic-ID", "clinic-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for non-bool expression, got %d", rr.Code)
		}
	})

	t.Run("CreateRuleInvalidColor", func(t *testing.T) {
		reqBody := CreateRuleRequest{
			ID:         "CUSTOM-GREEN",
			Name:       "Green rule",
			Category:   domain.CategoryClinical,
			Color:      domain.ColorGreen,
			Expression: "patient_age > 90",
			Actions:    []domain.ActionKind{domain.ActionPrescription},
			Enabled:    true,
		}
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Clinic-ID", "clinic-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for GREEN rule color, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("MetricsExposed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("ClinicMiddlewareExtractsID", func(t *testing.T) {
		var capturedClinicID string

		handler := ClinicMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedClinicID = GetClinicID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Clinic-ID", "my-clinic-123")

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedClinicID != "my-clinic-123" {
			t.Errorf("expected clinic ID 'my-clinic-123', got '%s'", capturedClinicID)
		}
	})

	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})
}
