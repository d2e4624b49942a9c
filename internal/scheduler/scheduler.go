package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"quality-hub/internal/config"
	"quality-hub/internal/models"
	"quality-hub/internal/repository"
)

// systemActorID marks events raised by the scheduler itself
var systemActorID = uuid.Nil.String()

// OutboxRetrier redelivers pending notification events
type OutboxRetrier interface {
	DeliverPending(ctx context.Context, batchSize int) (delivered, failed int, err error)
}

// StaleInspectionSource lists inspections waiting too long for review that
// have not been reminded about since remindedSince
type StaleInspectionSource interface {
	ListStalePending(ctx context.Context, submittedBefore, remindedSince time.Time, limit int) ([]models.Inspection, error)
}

// ReminderOutbox enqueues reminder events
type ReminderOutbox interface {
	Enqueue(ctx context.Context, events ...*models.OutboxEvent) error
}

// ConfigSource loads a tenant's inspection policy
type ConfigSource interface {
	GetInspectionConfig(ctx context.Context, tenantID string) (*models.TenantInspectionConfig, error)
}

const reminderBatchSize = 200

// Scheduler handles periodic tasks
type Scheduler struct {
	retrier     OutboxRetrier
	inspections StaleInspectionSource
	outbox      ReminderOutbox
	configs     ConfigSource
	config      *config.SchedulerConfig
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(
	retrier OutboxRetrier,
	inspections StaleInspectionSource,
	outbox ReminderOutbox,
	configs ConfigSource,
	cfg *config.SchedulerConfig,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		retrier:     retrier,
		inspections: inspections,
		outbox:      outbox,
		configs:     configs,
		config:      cfg,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts all scheduled tasks
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler",
		"outbox_retry_enabled", s.config.EnableOutboxRetry,
		"review_reminders_enabled", s.config.EnableReviewReminders)

	if s.config.EnableOutboxRetry {
		s.startIntervalTask(s.config.OutboxInterval, "outbox_retry", s.retryOutbox)
	}
	if s.config.EnableReviewReminders {
		s.startIntervalTask(s.config.ReminderInterval, "review_reminders", s.sendReviewReminders)
	}

	slog.Info("Scheduler started")
}

// Stop stops the scheduler and waits for running tasks to return
func (s *Scheduler) Stop() {
	slog.Info("Stopping scheduler")
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) startIntervalTask(interval time.Duration, taskName string, task func(ctx context.Context)) {
	if interval <= 0 {
		slog.Error("Invalid task interval, task not started", "task", taskName, "interval", interval)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.scheduleIntervalTask(interval, taskName, task)
	}()
}

// scheduleIntervalTask runs a task at regular intervals
func (s *Scheduler) scheduleIntervalTask(interval time.Duration, taskName string, task func(ctx context.Context)) {
	slog.Info("Starting interval task", "task", taskName, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	task(s.ctx)

	for {
		select {
		case <-ticker.C:
			slog.Debug("Running interval task", "task", taskName)
			task(s.ctx)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) retryOutbox(ctx context.Context) {
	delivered, failed, err := s.retrier.DeliverPending(ctx, s.config.OutboxBatchSize)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Failed to retry notification outbox", "error", err)
		return
	}
	if delivered > 0 || failed > 0 {
		slog.Info("Notification outbox retried", "delivered", delivered, "failed", failed)
	}
}

// sendReviewReminders raises one reminder per stale inspection per threshold window
func (s *Scheduler) sendReviewReminders(ctx context.Context) {
	now := s.now()
	cutoff := now.Add(-s.config.StaleReviewThreshold)

	stale, err := s.inspections.ListStalePending(ctx, cutoff, cutoff, reminderBatchSize)
	if err != nil {
		slog.Error("Failed to list stale inspections", "error", err)
		return
	}

	sent := 0
	configs := map[string]*models.TenantInspectionConfig{}
	for idx := range stale {
		i := &stale[idx]

		cfg, ok := configs[i.TenantID]
		if !ok {
			cfg = s.loadConfig(ctx, i.TenantID)
			configs[i.TenantID] = cfg
		}

		if err := s.outbox.Enqueue(ctx, reminderEvent(i, cfg, now)); err != nil {
			slog.Error("Failed to enqueue review reminder", "inspection_id", i.ID, "error", err)
			continue
		}
		sent++
	}

	if sent > 0 {
		slog.Info("Review reminders enqueued", "count", sent)
	}
}

func (s *Scheduler) loadConfig(ctx context.Context, tenantID string) *models.TenantInspectionConfig {
	cfg, err := s.configs.GetInspectionConfig(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Warn("Failed to load inspection config, using defaults", "tenant_id", tenantID, "error", err)
		}
		return models.DefaultTenantInspectionConfig(tenantID)
	}
	return cfg
}

// reminderEvent addresses the assigned reviewer, or every review role while unassigned
func reminderEvent(i *models.Inspection, cfg *models.TenantInspectionConfig, now time.Time) *models.OutboxEvent {
	var roles, users []string
	if i.ReviewerID != nil && *i.ReviewerID != "" {
		users = []string{*i.ReviewerID}
	} else {
		roles = cfg.ReviewNotificationRoles()
	}

	submittedAt := ""
	if i.SubmittedDate != nil {
		submittedAt = i.SubmittedDate.Format(time.RFC3339)
	}
	inspectionID := i.ID

	return &models.OutboxEvent{
		ID:               uuid.NewString(),
		TenantID:         i.TenantID,
		EventType:        models.EventReviewReminder,
		InspectionID:     &inspectionID,
		ActorID:          systemActorID,
		RecipientRoles:   roles,
		RecipientUserIDs: users,
		Data: models.EventData{
			"inspection_id": i.ID,
			"title":         i.Title,
			"status":        string(i.Status),
			"submitted_at":  submittedAt,
		},
		Status: models.OutboxPending,
		// reminders have no inline delivery; the next retry pass sends them
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}
