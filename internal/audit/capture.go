// Package audit publishes evaluation captures for asynchronous review.
// Capture is best-effort by contract: failures are logged, never surfaced.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensource-health/semaforo/internal/domain"
)

// BusSink publishes audit events to the event bus; the worker persists them.
type BusSink struct {
	bus domain.EventBus
}

// NewBusSink creates a bus-backed capture sink.
func NewBusSink(bus domain.EventBus) *BusSink {
	return &BusSink{bus: bus}
}

// Capture serializes the event and publishes it on the audit topic.
func (s *BusSink) Capture(ctx context.Context, event *domain.AuditEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	clinicID := event.ClinicID
	if clinicID == "" {
		clinicID = "_global"
	}

	if err := s.bus.Publish(ctx, clinicID, domain.TopicAuditCapture, payload); err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}

// RepoSink writes events straight to the repository, for deployments
// without a worker.
type RepoSink struct {
	repo domain.Repository
}

// NewRepoSink creates a repository-backed capture sink.
func NewRepoSink(repo domain.Repository) *RepoSink {
	return &RepoSink{repo: repo}
}

// Capture persists the event directly.
func (s *RepoSink) Capture(ctx context.Context, event *domain.AuditEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	return s.repo.SaveAuditEvent(ctx, event.ClinicID, event)
}
