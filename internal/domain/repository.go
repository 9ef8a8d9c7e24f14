// Package domain defines the core interfaces and types for Semáforo.
package domain

import (
	"context"
	"time"
)

// PatientRecord is the stored identity row backing a PatientContext.
type PatientRecord struct {
	ID        string    `json:"id"`
	ClinicID  string    `json:"clinicId,omitempty"`
	Name      string    `json:"name,omitempty"`
	BirthDate time.Time `json:"birthDate"`
	Sex       string    `json:"sex,omitempty"`
	Pregnant  bool      `json:"pregnant,omitempty"`
}

// Repository defines the interface for data persistence.
// All methods require clinicID for strict multi-tenancy isolation.
type Repository interface {
	// Patient store (read-only contract consumed by the context loader)
	GetPatient(ctx context.Context, clinicID string, patientID string) (*PatientRecord, error)
	GetAllergies(ctx context.Context, clinicID string, patientID string) ([]Allergy, error)
	GetActiveMedications(ctx context.Context, clinicID string, patientID string) ([]Medication, error)
	GetActiveDiagnoses(ctx context.Context, clinicID string, patientID string) ([]Diagnosis, error)
	GetRecentLabs(ctx context.Context, clinicID string, patientID string, limit int) ([]LabResult, error)

	// Clinic-defined expression rules
	SaveExprRule(ctx context.Context, clinicID string, rule *ExprRuleConfig) error
	GetExprRule(ctx context.Context, clinicID string, ruleID string) (*ExprRuleConfig, error)
	ListExprRules(ctx context.Context, clinicID string) ([]*ExprRuleConfig, error)

	// Audit capture persistence (written by the async worker)
	SaveAuditEvent(ctx context.Context, clinicID string, event *AuditEvent) error
	GetAuditEvent(ctx context.Context, clinicID string, eventID string) (*AuditEvent, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
