package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quality-hub/internal/email"
	"quality-hub/internal/models"
)

type fakeDirectory struct {
	byRole   map[string][]string
	contacts map[string]models.Staff
	err      error
}

func (f *fakeDirectory) ListUserIDsByRoles(_ context.Context, _ string, roles []string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var ids []string
	for _, r := range roles {
		ids = append(ids, f.byRole[r]...)
	}
	return ids, nil
}

func (f *fakeDirectory) GetContacts(_ context.Context, _ string, userIDs []string) (map[string]models.Staff, error) {
	out := map[string]models.Staff{}
	for _, id := range userIDs {
		if s, ok := f.contacts[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

type attempt struct {
	id      string
	lastErr string
	next    time.Time
}

type fakeOutbox struct {
	due       []models.OutboxEvent
	delivered []string
	failed    []attempt
}

func (f *fakeOutbox) ListDue(_ context.Context, _ time.Time, limit int) ([]models.OutboxEvent, error) {
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeOutbox) MarkDelivered(_ context.Context, id string) error {
	f.delivered = append(f.delivered, id)
	return nil
}

func (f *fakeOutbox) MarkAttemptFailed(_ context.Context, id, lastError string, next time.Time, _ int) error {
	f.failed = append(f.failed, attempt{id: id, lastErr: lastError, next: next})
	return nil
}

type fakeWriter struct {
	rows []models.Notification
	err  error
}

func (f *fakeWriter) CreateBatch(_ context.Context, rows []models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}

type fakePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakePublisher) PublishMsg(m *nats.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

type fakeMailer struct {
	sent []string
	err  error
}

func (f *fakeMailer) SendNotification(to string, _ email.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

func newEvent(actorID string, roles, users []string) *models.OutboxEvent {
	inspectionID := uuid.NewString()
	return &models.OutboxEvent{
		ID:               uuid.NewString(),
		TenantID:         uuid.NewString(),
		EventType:        models.EventInspectionApproved,
		InspectionID:     &inspectionID,
		ActorID:          actorID,
		RecipientRoles:   roles,
		RecipientUserIDs: users,
		Data:             models.EventData{"title": "Level 2 slab", "status": "approved"},
		Status:           models.OutboxPending,
	}
}

func TestResolveRecipients(t *testing.T) {
	approver1, approver2, inspector, actor := uuid.NewString(), uuid.NewString(), uuid.NewString(), uuid.NewString()
	dir := &fakeDirectory{byRole: map[string][]string{
		"operations_manager": {approver1, approver2, actor},
	}}
	d := NewDispatcher(dir, &fakeOutbox{}, Options{})

	e := newEvent(actor, []string{"operations_manager", " "}, []string{inspector, approver1, "", "not-a-uuid", actor})
	got, err := d.ResolveRecipients(context.Background(), e)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{approver1, approver2, inspector}, got)
}

func TestResolveRecipientsDirectoryError(t *testing.T) {
	d := NewDispatcher(&fakeDirectory{err: errors.New("db down")}, &fakeOutbox{}, Options{})
	_, err := d.ResolveRecipients(context.Background(), newEvent(uuid.NewString(), []string{"team_leader"}, nil))
	assert.Error(t, err)
}

func TestDeliverFansOutToChannels(t *testing.T) {
	inspector := uuid.NewString()
	dir := &fakeDirectory{contacts: map[string]models.Staff{
		inspector: {UserID: inspector, FirstName: "Ina", LastName: "Spector", Email: "ina@example.com", IsActive: true},
	}}
	outbox := &fakeOutbox{}
	writer := &fakeWriter{}
	pub := &fakePublisher{}
	mailer := &fakeMailer{}
	client := uuid.NewString()

	d := NewDispatcher(dir, outbox, Options{},
		NewInAppChannel(writer),
		NewNATSChannel(pub, "notifications"),
		NewEmailChannel(mailer),
	)

	e := newEvent(uuid.NewString(), nil, []string{inspector, client})
	d.Deliver(context.Background(), e)

	assert.Equal(t, []string{e.ID}, outbox.delivered)
	assert.Empty(t, outbox.failed)

	require.Len(t, writer.rows, 2)
	assert.Equal(t, "Inspection approved", writer.rows[0].Title)
	assert.Equal(t, e.ID, writer.rows[0].EventID)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "notifications.quality.inspection_approved", pub.msgs[0].Subject)
	assert.Equal(t, e.ID, pub.msgs[0].Header.Get(nats.MsgIdHdr))
	var push PushEvent
	require.NoError(t, json.Unmarshal(pub.msgs[0].Data, &push))
	assert.ElementsMatch(t, []string{inspector, client}, push.Recipients)
	assert.Equal(t, *e.InspectionID, push.ResourceID)

	assert.Equal(t, []string{"ina@example.com"}, mailer.sent, "clients without staff contact data get no mail")
}

func TestDispatchReportsPerRecipientFailures(t *testing.T) {
	staffID, otherID := uuid.NewString(), uuid.NewString()
	dir := &fakeDirectory{contacts: map[string]models.Staff{
		staffID: {UserID: staffID, Email: "a@example.com", IsActive: true},
	}}
	d := NewDispatcher(dir, &fakeOutbox{}, Options{},
		NewInAppChannel(&fakeWriter{}),
		NewEmailChannel(&fakeMailer{err: errors.New("mailbox unavailable")}),
	)

	result, err := d.Dispatch(context.Background(), newEvent(uuid.NewString(), nil, []string{staffID, otherID}))
	require.NoError(t, err)
	assert.False(t, result.Success)

	byUser := map[string]RecipientResult{}
	for _, r := range result.Results {
		byUser[r.UserID] = r
	}
	assert.False(t, byUser[staffID].Delivered)
	assert.Contains(t, byUser[staffID].Errors["email"], "mailbox unavailable")
	assert.True(t, byUser[otherID].Delivered)
}

func TestDeliverFailureIsRecordedWithBackoff(t *testing.T) {
	outbox := &fakeOutbox{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := NewDispatcher(&fakeDirectory{}, outbox, Options{BaseBackoff: time.Minute, MaxBackoff: 10 * time.Minute},
		NewInAppChannel(&fakeWriter{err: errors.New("insert failed")}),
	)
	d.now = func() time.Time { return now }

	e := newEvent(uuid.NewString(), nil, []string{uuid.NewString()})
	e.Attempts = 2
	d.Deliver(context.Background(), e)

	require.Len(t, outbox.failed, 1)
	assert.Empty(t, outbox.delivered)
	assert.Contains(t, outbox.failed[0].lastErr, "insert failed")
	assert.Equal(t, now.Add(4*time.Minute), outbox.failed[0].next)
}

func TestBackoffIsCapped(t *testing.T) {
	d := NewDispatcher(&fakeDirectory{}, &fakeOutbox{}, Options{BaseBackoff: time.Minute, MaxBackoff: 5 * time.Minute})
	assert.Equal(t, time.Minute, d.backoff(1))
	assert.Equal(t, 2*time.Minute, d.backoff(2))
	assert.Equal(t, 5*time.Minute, d.backoff(10))
}

func TestDeliverWithoutRecipientsSucceeds(t *testing.T) {
	outbox := &fakeOutbox{}
	actor := uuid.NewString()
	d := NewDispatcher(&fakeDirectory{}, outbox, Options{}, NewInAppChannel(&fakeWriter{err: errors.New("unused")}))

	d.Deliver(context.Background(), newEvent(actor, nil, []string{actor}))
	assert.Len(t, outbox.delivered, 1)
}

func TestDeliverPending(t *testing.T) {
	outbox := &fakeOutbox{due: []models.OutboxEvent{
		*newEvent(uuid.NewString(), nil, []string{uuid.NewString()}),
		*newEvent(uuid.NewString(), nil, []string{uuid.NewString()}),
	}}
	d := NewDispatcher(&fakeDirectory{}, outbox, Options{}, NewInAppChannel(&fakeWriter{}))

	delivered, failed, err := d.DeliverPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	assert.Zero(t, failed)
}

func TestRenderCoversEventTypes(t *testing.T) {
	types := []models.EventType{
		models.EventInspectionSubmitted, models.EventInspectionAssigned, models.EventInspectionApproved,
		models.EventInspectionRejected, models.EventRevisionRequested, models.EventInspectionCompleted,
		models.EventInspectionOverridden, models.EventClientReviewed, models.EventClientApproved,
		models.EventClientRejected, models.EventRoleAssigned, models.EventRoleRemoved, models.EventReviewReminder,
	}
	for _, typ := range types {
		e := newEvent(uuid.NewString(), nil, nil)
		e.EventType = typ
		m := Render(e)
		assert.NotEqual(t, "Inspection update", m.Title, "event %s has no template", typ)
		assert.NotEmpty(t, m.Body)
		for k, v := range m.Details {
			assert.NotEmpty(t, v, "detail %s", k)
		}
	}
}
