package repository

// Schema definitions for the Semáforo database.
// Compatible with both SQLite and PostgreSQL.

const schemaPatients = `
CREATE TABLE IF NOT EXISTS patients (
    id TEXT NOT NULL,
    clinic_id TEXT NOT NULL,
    name TEXT,
    birth_date TIMESTAMP NOT NULL,
    sex TEXT,
    pregnant INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (id, clinic_id)
);

CREATE INDEX IF NOT EXISTS idx_patients_clinic ON patients(clinic_id);
`

const schemaAllergies = `
CREATE TABLE IF NOT EXISTS allergies (
    patient_id TEXT NOT NULL,
    clinic_id TEXT NOT NULL,
    allergen TEXT NOT NULL,
    severity TEXT NOT NULL,
    type TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_allergies_patient ON allergies(clinic_id, patient_id);
`

const schemaMedications = `
CREATE TABLE IF NOT EXISTS medications (
    patient_id TEXT NOT NULL,
    clinic_id TEXT NOT NULL,
    name TEXT NOT NULL,
    dose TEXT,
    frequency TEXT,
    active INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_medications_patient ON medications(clinic_id, patient_id);
`

const schemaDiagnoses = `
CREATE TABLE IF NOT EXISTS diagnoses (
    patient_id TEXT NOT NULL,
    clinic_id TEXT NOT NULL,
    code TEXT NOT NULL,
    description TEXT,
    status TEXT NOT NULL DEFAULT 'active'
);

CREATE INDEX IF NOT EXISTS idx_diagnoses_patient ON diagnoses(clinic_id, patient_id);
`

const schemaLabResults = `
CREATE TABLE IF NOT EXISTS lab_results (
    patient_id TEXT NOT NULL,
    clinic_id TEXT NOT NULL,
    test_name TEXT NOT NULL,
    value REAL NOT NULL,
    unit TEXT,
    status TEXT NOT NULL,
    result_date TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lab_results_patient ON lab_results(clinic_id, patient_id, result_date);
`

const schemaExprRules = `
CREATE TABLE IF NOT EXISTS expr_rules (
    id TEXT NOT NULL,
    clinic_id TEXT NOT NULL,
    name TEXT NOT NULL,
    version TEXT NOT NULL,
    category TEXT NOT NULL,
    color TEXT NOT NULL,
    expression TEXT NOT NULL,
    message_pt TEXT,
    message_en TEXT,
    reference TEXT,
    actions TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    glosa_probability INTEGER NOT NULL DEFAULT 0,
    glosa_amount REAL NOT NULL DEFAULT 0,
    glosa_denial_code TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, clinic_id, version)
);

CREATE INDEX IF NOT EXISTS idx_expr_rules_clinic ON expr_rules(clinic_id);
CREATE INDEX IF NOT EXISTS idx_expr_rules_enabled ON expr_rules(clinic_id, enabled);
`

const schemaAuditEvents = `
CREATE TABLE IF NOT EXISTS audit_events (
    id TEXT PRIMARY KEY,
    clinic_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    provider TEXT NOT NULL,
    action TEXT NOT NULL,
    color TEXT NOT NULL,
    signal_count INTEGER NOT NULL DEFAULT 0,
    patient_hash TEXT NOT NULL,
    snapshot TEXT,
    verdict TEXT,
    latency_ms INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_clinic ON audit_events(clinic_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_patient ON audit_events(clinic_id, patient_hash);
CREATE INDEX IF NOT EXISTS idx_audit_events_created ON audit_events(clinic_id, created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaPatients,
		schemaAllergies,
		schemaMedications,
		schemaDiagnoses,
		schemaLabResults,
		schemaExprRules,
		schemaAuditEvents,
	}
}
