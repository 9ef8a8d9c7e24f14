// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-health/semaforo/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SavePatient stores or replaces a patient identity row.
func (r *SQLRepository) SavePatient(ctx context.Context, clinicID string, p *domain.PatientRecord) error {
	if clinicID == "" {
		return fmt.Errorf("%w: clinicID is required", ErrInvalidInput)
	}
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: patient id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO patients (id, clinic_id, name, birth_date, sex, pregnant)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id, clinic_id) DO UPDATE SET
			name = excluded.name,
			birth_date = excluded.birth_date,
			sex = excluded.sex,
			pregnant = excluded.pregnant
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ID, clinicID, p.Name, p.BirthDate, p.Sex, boolToInt(p.Pregnant),
	)
	return err
}

// GetPatient retrieves a patient identity row with clinic isolation.
func (r *SQLRepository) GetPatient(ctx context.Context, clinicID string, patientID string) (*domain.PatientRecord, error) {
	if clinicID == "" {
		return nil, fmt.Errorf("%w: clinicID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, clinic_id, name, birth_date, sex, pregnant
		FROM patients
		WHERE clinic_id = ? AND id = ?
	`

	var p domain.PatientRecord
	var pregnant int
	err := r.db.QueryRowContext(ctx, r.rebind(query), clinicID, patientID).Scan(
		&p.ID, &p.ClinicID, &p.Name, &p.BirthDate, &p.Sex, &pregnant,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Pregnant = pregnant != 0
	return &p, nil
}

// SaveAllergy appends a documented allergy for a patient.
func (r *SQLRepository) SaveAllergy(ctx context.Context, clinicID, patientID string, a domain.Allergy) error {
	if clinicID == "" {
		return fmt.Errorf("%w: clinicID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO allergies (patient_id, clinic_id, allergen, severity, type, active)
		VALUES (?, ?, ?, ?, ?, 1)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		patientID, clinicID, a.Allergen, string(a.Severity), string(a.Type),
	)
	return err
}

// GetAllergies retrieves the active allergies for a patient.
func (r *SQLRepository) GetAllergies(ctx context.Context, clinicID string, patientID string) ([]domain.Allergy, error) {
	if clinicID == "" {
		return nil, fmt.Errorf("%w: clinicID is required", ErrInvalidInput)
	}

	query := `
		SELECT allergen, severity, type
		FROM allergies
		WHERE clinic_id = ? AND patient_id = ? AND active = 1
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), clinicID, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Allergy
	for rows.Next() {
		var a domain.Allergy
		var severity, typ string
		if err := rows.Scan(&a.Allergen, &severity, &typ); err != nil {
			return nil, err
		}
		a.Severity = domain.AllergySeverity(severity)
		a.Type = domain.AllergyType(typ)
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveMedication appends an active medication for a patient.
func (r *SQLRepository) SaveMedication(ctx context.Context, clinicID, patientID string, m domain.Medication) error {
	if clinicID == "" {
		return fmt.Errorf("%w: clinicID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO medications (patient_id, clinic_id, name, dose, frequency, active)
		VALUES (?, ?, ?, ?, ?, 1)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		patientID, clinicID, m.Name, m.Dose, m.Frequency,
	)
	return err
}

// GetActiveMedications retrieves the active medication list for a patient.
func (r *SQLRepository) GetActiveMedications(ctx context.Context, clinicID string, patientID string) ([]domain.Medication, error) {
	if clinicID == "" {
		return nil, fmt.Errorf("%w: clinicID is required", ErrInvalidInput)
	}

	query := `
		SELECT name, dose, frequency
		FROM medications
		WHERE clinic_id = ? AND patient_id = ? AND active = 1
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), clinicID, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Medication
	for rows.Next() {
		var m domain.Medication
		if err := rows.Scan(&m.Name, &m.Dose, &m.Frequency); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveDiagnosis appends a diagnosis for a patient.
func (r *SQLRepository) SaveDiagnosis(ctx context.Context, clinicID, patientID string, d domain.Diagnosis) error {
	if clinicID == "" {
		return fmt.Errorf("%w: clinicID is required", ErrInvalidInput)
	}

	status := d.Status
	if status == "" {
		status = "active"
	}

	query := `
		INSERT INTO diagnoses (patient_id, clinic_id, code, description, status)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		patientID, clinicID, d.Code, d.Description, status,
	)
	return err
}

// GetActiveDiagnoses retrieves the active and chronic diagnoses for a patient.
func (r *SQLRepository) GetActiveDiagnoses(ctx context.Context, clinicID string, patientID string) ([]domain.Diagnosis, error) {
	if clinicID == "" {
		return nil, fmt.Errorf("%w: clinicID is required", ErrInvalidInput)
	}

	query := `
		SELECT code, description, status
		FROM diagnoses
		WHERE clinic_id = ? AND patient_id = ? AND status IN ('active', 'chronic')
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), clinicID, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Diagnosis
	for rows.Next() {
		var d domain.Diagnosis
		if err := rows.Scan(&d.Code, &d.Description, &d.Status); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SaveLabResult appends a laboratory result for a patient.
func (r *SQLRepository) SaveLabResult(ctx context.Context, clinicID, patientID string, l domain.LabResult) error {
	if clinicID == "" {
		return fmt.Errorf("%w: clinicID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO lab_results (patient_id, clinic_id, test_name, value, unit, status, result_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		patientID, clinicID, l.TestName, l.Value, l.Unit, string(l.Status), l.ResultDate,
	)
	return err
}

// GetRecentLabs retrieves up to limit lab results, most recent first.
func (r *SQLRepository) GetRecentLabs(ctx context.Context, clinicID string, patientID string, limit int) ([]domain.LabResult, error) {
	if clinicID == "" {
		return nil, fmt.Errorf("%w: clinicID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = domain.MaxRecentLabs
	}

	query := `
		SELECT test_name, value, unit, status, result_date
		FROM lab_results
		WHERE clinic_id = ? AND patient_id = ?
		ORDER BY result_date DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), clinicID, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LabResult
	for rows.Next() {
		var l domain.LabResult
		var status string
		if err := rows.Scan(&l.TestName, &l.Value, &l.Unit, &status, &l.ResultDate); err != nil {
			return nil, err
		}
		l.Status = domain.LabStatus(status)
		out = append(out, l)
	}
	return out, rows.Err()
}

// SaveExprRule stores or updates a clinic-defined expression rule.
func (r *SQLRepository) SaveExprRule(ctx context.Context, clinicID string, rule *domain.ExprRuleConfig) error {
	if clinicID == "" {
		return fmt.Errorf("%w: clinicID is required", ErrInvalidInput)
	}
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	version := rule.Version
	if version == "" {
		version = "1"
	}
	actions, _ := json.Marshal(rule.Actions)
	now := time.Now().UTC()

	query := `
		INSERT INTO expr_rules (
			id, clinic_id, name, version, category, color, expression,
			message_pt, message_en, reference, actions, enabled,
			glosa_probability, glosa_amount, glosa_denial_code,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id, clinic_id, version) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			color = excluded.color,
			expression = excluded.expression,
			message_pt = excluded.message_pt,
			message_en = excluded.message_en,
			reference = excluded.reference,
			actions = excluded.actions,
			enabled = excluded.enabled,
			glosa_probability = excluded.glosa_probability,
			glosa_amount = excluded.glosa_amount,
			glosa_denial_code = excluded.glosa_denial_code,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, clinicID, rule.Name, version,
		string(rule.Category), string(rule.Color), rule.Expression,
		rule.Message.PT, rule.Message.EN, rule.Reference,
		string(actions), boolToInt(rule.Enabled),
		rule.GlosaProbability, rule.GlosaAmount, rule.GlosaDenialCode,
		now, now,
	)
	return err
}

// GetExprRule retrieves the latest version of an expression rule.
func (r *SQLRepository) GetExprRule(ctx context.Context, clinicID string, ruleID string) (*domain.ExprRuleConfig, error) {
	if clinicID == "" {
		return nil, fmt.Errorf("%w: clinicID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, clinic_id, name, version, category, color, expression,
			   message_pt, message_en, reference, actions, enabled,
			   glosa_probability, glosa_amount, glosa_denial_code
		FROM expr_rules
		WHERE clinic_id = ? AND id = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`

	rule, err := r.scanExprRule(r.db.QueryRowContext(ctx, r.rebind(query), clinicID, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// ListExprRules retrieves the expression rules visible to a clinic, which
// includes the global catalog. Passing the global id lists everything.
func (r *SQLRepository) ListExprRules(ctx context.Context, clinicID string) ([]*domain.ExprRuleConfig, error) {
	if clinicID == "" {
		return nil, fmt.Errorf("%w: clinicID is required", ErrInvalidInput)
	}

	var (
		query string
		args  []interface{}
	)
	if clinicID == domain.GlobalClinicID {
		query = `
			SELECT id, clinic_id, name, version, category, color, expression,
				   message_pt, message_en, reference, actions, enabled,
				   glosa_probability, glosa_amount, glosa_denial_code
			FROM expr_rules
			ORDER BY clinic_id, id
		`
	} else {
		query = `
			SELECT id, clinic_id, name, version, category, color, expression,
				   message_pt, message_en, reference, actions, enabled,
				   glosa_probability, glosa_amount, glosa_denial_code
			FROM expr_rules
			WHERE clinic_id IN (?, '*')
			ORDER BY clinic_id, id
		`
		args = append(args, clinicID)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ExprRuleConfig
	for rows.Next() {
		rule, err := r.scanExprRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *SQLRepository) scanExprRule(row rowScanner) (*domain.ExprRuleConfig, error) {
	var rule domain.ExprRuleConfig
	var category, color, actions string
	var enabled int
	err := row.Scan(
		&rule.ID, &rule.ClinicID, &rule.Name, &rule.Version,
		&category, &color, &rule.Expression,
		&rule.Message.PT, &rule.Message.EN, &rule.Reference,
		&actions, &enabled,
		&rule.GlosaProbability, &rule.GlosaAmount, &rule.GlosaDenialCode,
	)
	if err != nil {
		return nil, err
	}
	rule.Category = domain.RuleCategory(category)
	rule.Color = domain.Color(color)
	rule.Enabled = enabled != 0
	if actions != "" {
		if err := json.Unmarshal([]byte(actions), &rule.Actions); err != nil {
			return nil, fmt.Errorf("failed to decode rule actions: %w", err)
		}
	}
	return &rule, nil
}

// SaveAuditEvent persists one evaluation capture record.
func (r *SQLRepository) SaveAuditEvent(ctx context.Context, clinicID string, event *domain.AuditEvent) error {
	if clinicID == "" {
		return fmt.Errorf("%w: clinicID is required", ErrInvalidInput)
	}
	if event == nil || event.ID == "" {
		return fmt.Errorf("%w: event id is required", ErrInvalidInput)
	}

	snapshot, _ := json.Marshal(event.Snapshot)
	verdict, _ := json.Marshal(event.Verdict)

	query := `
		INSERT INTO audit_events (
			id, clinic_id, event_type, provider, action, color,
			signal_count, patient_hash, snapshot, verdict,
			latency_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		event.ID, clinicID, event.EventType, event.Provider,
		string(event.Action), string(event.Color),
		event.SignalCount, event.PatientHash,
		string(snapshot), string(verdict),
		event.LatencyMs, event.CreatedAt,
	)
	return err
}

// GetAuditEvent retrieves a capture record by ID with clinic isolation.
func (r *SQLRepository) GetAuditEvent(ctx context.Context, clinicID string, eventID string) (*domain.AuditEvent, error) {
	if clinicID == "" {
		return nil, fmt.Errorf("%w: clinicID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, clinic_id, event_type, provider, action, color,
			   signal_count, patient_hash, snapshot, verdict,
			   latency_ms, created_at
		FROM audit_events
		WHERE clinic_id = ? AND id = ?
	`

	var event domain.AuditEvent
	var action, color, snapshot, verdict string
	err := r.db.QueryRowContext(ctx, r.rebind(query), clinicID, eventID).Scan(
		&event.ID, &event.ClinicID, &event.EventType, &event.Provider,
		&action, &color,
		&event.SignalCount, &event.PatientHash,
		&snapshot, &verdict,
		&event.LatencyMs, &event.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	event.Action = domain.ActionKind(action)
	event.Color = domain.Color(color)
	if snapshot != "" && snapshot != "null" {
		if err := json.Unmarshal([]byte(snapshot), &event.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
	}
	if verdict != "" && verdict != "null" {
		if err := json.Unmarshal([]byte(verdict), &event.Verdict); err != nil {
			return nil, fmt.Errorf("failed to decode verdict: %w", err)
		}
	}
	return &event, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, ... for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
