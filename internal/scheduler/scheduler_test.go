package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quality-hub/internal/config"
	"quality-hub/internal/models"
	"quality-hub/internal/repository"
)

type fakeRetrier struct {
	calls atomic.Int32
}

func (f *fakeRetrier) DeliverPending(_ context.Context, _ int) (int, int, error) {
	f.calls.Add(1)
	return 1, 0, nil
}

// fakeStale mirrors the repository query: oldest first, skipping inspections
// reminded since remindedSince, capped at limit
type fakeStale struct {
	items    []models.Inspection
	reminded map[string]time.Time
	limit    int
}

func (f *fakeStale) ListStalePending(_ context.Context, _, remindedSince time.Time, limit int) ([]models.Inspection, error) {
	f.limit = limit
	out := []models.Inspection{}
	for _, i := range f.items {
		if at, ok := f.reminded[i.ID]; ok && !at.Before(remindedSince) {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, i)
	}
	return out, nil
}

type fakeReminderOutbox struct {
	events []*models.OutboxEvent
}

func (f *fakeReminderOutbox) Enqueue(_ context.Context, events ...*models.OutboxEvent) error {
	f.events = append(f.events, events...)
	return nil
}

type fakeConfigs struct{}

func (fakeConfigs) GetInspectionConfig(_ context.Context, _ string) (*models.TenantInspectionConfig, error) {
	return nil, repository.ErrNotFound
}

func TestSendReviewReminders(t *testing.T) {
	tenantID := uuid.NewString()
	reviewer := uuid.NewString()
	submitted := time.Now().Add(-72 * time.Hour)

	unassigned := models.Inspection{ID: uuid.NewString(), TenantID: tenantID, Title: "Slab", Status: models.StatusPending, SubmittedDate: &submitted}
	assigned := models.Inspection{ID: uuid.NewString(), TenantID: tenantID, Title: "Roof", Status: models.StatusUnderReview, ReviewerID: &reviewer, SubmittedDate: &submitted}
	reminded := models.Inspection{ID: uuid.NewString(), TenantID: tenantID, Title: "Wall", Status: models.StatusPending, SubmittedDate: &submitted}

	outbox := &fakeReminderOutbox{}
	source := &fakeStale{
		items:    []models.Inspection{unassigned, assigned, reminded},
		reminded: map[string]time.Time{reminded.ID: time.Now().Add(-time.Hour)},
	}
	s := NewScheduler(&fakeRetrier{}, source, outbox, fakeConfigs{},
		&config.SchedulerConfig{StaleReviewThreshold: 48 * time.Hour})

	s.sendReviewReminders(context.Background())

	require.Len(t, outbox.events, 2)
	byInspection := map[string]*models.OutboxEvent{}
	for _, e := range outbox.events {
		assert.Equal(t, models.EventReviewReminder, e.EventType)
		assert.Equal(t, systemActorID, e.ActorID)
		assert.Equal(t, e.CreatedAt, e.NextAttemptAt, "reminders are due at once")
		byInspection[*e.InspectionID] = e
	}

	assert.ElementsMatch(t, []string{"team_leader", "project_manager", "operations_manager"}, byInspection[unassigned.ID].RecipientRoles)
	assert.Equal(t, []string{reviewer}, byInspection[assigned.ID].RecipientUserIDs)
	assert.Empty(t, byInspection[assigned.ID].RecipientRoles)
	assert.Equal(t, submitted.Format(time.RFC3339), byInspection[assigned.ID].Data["submitted_at"])
}

func TestSendReviewRemindersReachesPastRemindedBatch(t *testing.T) {
	tenantID := uuid.NewString()
	base := time.Now().Add(-30 * 24 * time.Hour)

	source := &fakeStale{reminded: map[string]time.Time{}}
	for n := 0; n < reminderBatchSize+5; n++ {
		submitted := base.Add(time.Duration(n) * time.Minute)
		i := models.Inspection{ID: uuid.NewString(), TenantID: tenantID, Status: models.StatusPending, SubmittedDate: &submitted}
		source.items = append(source.items, i)
		if n < reminderBatchSize {
			source.reminded[i.ID] = time.Now().Add(-time.Hour)
		}
	}

	outbox := &fakeReminderOutbox{}
	s := NewScheduler(&fakeRetrier{}, source, outbox, fakeConfigs{},
		&config.SchedulerConfig{StaleReviewThreshold: 48 * time.Hour})

	s.sendReviewReminders(context.Background())

	assert.Equal(t, reminderBatchSize, source.limit)
	require.Len(t, outbox.events, 5)
	for idx, e := range outbox.events {
		assert.Equal(t, source.items[reminderBatchSize+idx].ID, *e.InspectionID)
	}
}

func TestSchedulerRunsAndStops(t *testing.T) {
	retrier := &fakeRetrier{}
	s := NewScheduler(retrier, &fakeStale{}, &fakeReminderOutbox{}, fakeConfigs{}, &config.SchedulerConfig{
		EnableOutboxRetry: true,
		OutboxInterval:    10 * time.Millisecond,
		OutboxBatchSize:   10,
	})

	s.Start()
	assert.Eventually(t, func() bool { return retrier.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	calls := retrier.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, retrier.calls.Load(), "no runs after Stop")
}
