// Package worker provides async persistence of audit captures published on
// the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/opensource-health/semaforo/internal/domain"
)

// Worker subscribes to the audit capture topic and persists events to the
// repository. Capture delivery is best-effort end to end: a failed
// persistence is logged and the message dropped, never retried here.
type Worker struct {
	bus  domain.EventBus
	repo domain.Repository

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// ClinicIDs is the list of clinics to process (empty = global).
	ClinicIDs []string
}

// NewWorker creates a new audit persistence worker.
func NewWorker(bus domain.EventBus, repo domain.Repository) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins consuming audit captures for the given clinics.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.ClinicIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, clinicID := range cfg.ClinicIDs {
		if err := w.startClinicWorker(clinicID); err != nil {
			slog.Error("failed to start worker for clinic",
				"clinic_id", clinicID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("audit workers started", "clinic_count", len(cfg.ClinicIDs))
	return nil
}

// startGlobalWorker consumes captures published without a clinic id.
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicAuditCapture, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global audit worker started")
	return nil
}

func (w *Worker) startClinicWorker(clinicID string) error {
	sub, err := w.bus.Subscribe(w.ctx, clinicID, domain.TopicAuditCapture, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("clinic audit worker started",
		"clinic_id", clinicID,
		"topic", domain.TopicAuditCapture,
	)
	return nil
}

// handleMessage unmarshals and persists one capture.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var event domain.AuditEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse audit event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	clinicID := event.ClinicID
	if clinicID == "" {
		clinicID = msg.ClinicID
	}

	if err := w.repo.SaveAuditEvent(ctx, clinicID, &event); err != nil {
		slog.Error("failed to persist audit event",
			"event_id", event.ID,
			"error", err,
		)
		return err
	}

	slog.Debug("audit event persisted",
		"event_id", event.ID,
		"clinic_id", clinicID,
		"color", event.Color,
	)
	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("audit workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
