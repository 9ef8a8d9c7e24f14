// Package patient assembles the read-only patient context the rules
// evaluate against.
package patient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-health/semaforo/internal/domain"
)

// Loader builds a PatientContext from the patient store. The engine treats
// any failure here as "empty context", so Load only has to be best-effort
// about optional sections.
type Loader struct {
	repo  domain.Repository
	cache domain.Cache
	ttl   time.Duration
}

// Option configures a Loader.
type Option func(*Loader)

// WithCache enables two-phase caching of assembled contexts.
func WithCache(c domain.Cache, ttl time.Duration) Option {
	return func(l *Loader) {
		l.cache = c
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// NewLoader creates a repository-backed loader.
func NewLoader(repo domain.Repository, opts ...Option) *Loader {
	l := &Loader{
		repo: repo,
		ttl:  2 * time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves a patient id into a full context: identity, allergies,
// active medications, active diagnoses, and the most recent labs. Optional
// sections that fail to load are returned empty rather than failing the
// whole context.
func (l *Loader) Load(ctx context.Context, clinicID string, patientID string) (*domain.PatientContext, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patientID is required")
	}

	if l.cache != nil {
		if cached, err := l.cache.GetPatientContext(ctx, clinicID, patientID); err == nil && cached != nil {
			return cached, nil
		}
	}

	record, err := l.repo.GetPatient(ctx, clinicID, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient %s: %w", patientID, err)
	}

	pc := &domain.PatientContext{
		PatientID: record.ID,
		Age:       domain.AgeFromBirthDate(record.BirthDate, time.Now()),
		Sex:       record.Sex,
		Pregnant:  record.Pregnant,
	}

	if allergies, err := l.repo.GetAllergies(ctx, clinicID, patientID); err == nil {
		pc.Allergies = allergies
	} else {
		slog.Warn("failed to load allergies", "error", err)
	}

	if meds, err := l.repo.GetActiveMedications(ctx, clinicID, patientID); err == nil {
		pc.Medications = meds
	} else {
		slog.Warn("failed to load medications", "error", err)
	}

	if diagnoses, err := l.repo.GetActiveDiagnoses(ctx, clinicID, patientID); err == nil {
		pc.Diagnoses = diagnoses
	} else {
		slog.Warn("failed to load diagnoses", "error", err)
	}

	if labs, err := l.repo.GetRecentLabs(ctx, clinicID, patientID, domain.MaxRecentLabs); err == nil {
		pc.RecentLabs = labs
	} else {
		slog.Warn("failed to load labs", "error", err)
	}

	if l.cache != nil {
		if err := l.cache.SetPatientContext(ctx, clinicID, pc, l.ttl); err != nil {
			slog.Warn("failed to cache patient context", "error", err)
		}
	}

	return pc, nil
}

// Invalidate drops a cached context after a clinical record change.
func (l *Loader) Invalidate(ctx context.Context, clinicID string, patientID string) error {
	if l.cache == nil {
		return nil
	}
	return l.cache.Delete(ctx, clinicID, "patient:"+patientID)
}
