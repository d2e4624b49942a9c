package service

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"quality-hub/internal/models"
	"quality-hub/internal/repository"
	"quality-hub/internal/vault"
)

type fakeInspectionStore struct {
	mu        sync.Mutex
	items     map[string]models.Inspection
	events    []*models.OutboxEvent
	updateErr error
	// beforeUpdate runs ahead of the version check, outside the lock
	beforeUpdate func()
}

func newFakeInspectionStore() *fakeInspectionStore {
	return &fakeInspectionStore{items: map[string]models.Inspection{}}
}

func (f *fakeInspectionStore) Create(_ context.Context, i *models.Inspection, events ...*models.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	i.Version = 1
	i.CreatedAt, i.UpdatedAt = now, now
	f.items[i.ID] = *i
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeInspectionStore) GetByID(_ context.Context, tenantID, id string) (*models.Inspection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.items[id]
	if !ok || i.TenantID != tenantID || i.IsDeleted() {
		return nil, repository.ErrNotFound
	}
	return &i, nil
}

func (f *fakeInspectionStore) Update(_ context.Context, i *models.Inspection, events ...*models.OutboxEvent) error {
	if f.beforeUpdate != nil {
		f.beforeUpdate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.items[i.ID]
	if !ok || stored.IsDeleted() {
		return repository.ErrNotFound
	}
	if stored.Version != i.Version {
		return repository.ErrVersionConflict
	}
	i.Version++
	i.UpdatedAt = time.Now()
	f.items[i.ID] = *i
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeInspectionStore) List(_ context.Context, filter models.InspectionFilter) ([]models.Inspection, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []models.Inspection
	for _, i := range f.items {
		if i.TenantID != filter.TenantID || i.IsDeleted() {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, i.Status) {
			continue
		}
		if filter.ExternalClientID != "" && i.ExternalClientID != filter.ExternalClientID {
			continue
		}
		if filter.OwnedBy != "" && i.InspectorID != filter.OwnedBy && derefString(i.ReviewerID) != filter.OwnedBy {
			continue
		}
		if filter.Type != "" && i.Type != filter.Type {
			continue
		}
		matched = append(matched, i)
	}
	sort.Slice(matched, func(a, b int) bool { return matched[a].CreatedAt.Before(matched[b].CreatedAt) })

	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start > total {
		start = total
	}
	end := min(start+filter.Limit, total)
	return matched[start:end], total, nil
}

func (f *fakeInspectionStore) Stats(_ context.Context, tenantID string, _, _ *time.Time) (*models.InspectionStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.InspectionStats{
		ByStatus: map[models.InspectionStatus]int{},
		ByType:   map[models.InspectionType]int{},
	}
	for _, i := range f.items {
		if i.TenantID != tenantID || i.IsDeleted() {
			continue
		}
		stats.Total++
		stats.ByStatus[i.Status]++
		stats.ByType[i.Type]++
	}
	return stats, nil
}

func (f *fakeInspectionStore) stored(t *testing.T, id string) models.Inspection {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.items[id]
	require.True(t, ok, "inspection %s not stored", id)
	return i
}

func (f *fakeInspectionStore) put(i models.Inspection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i.Version == 0 {
		i.Version = 1
	}
	f.items[i.ID] = i
}

func (f *fakeInspectionStore) lastEvent(t *testing.T) *models.OutboxEvent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.events, "no events enqueued")
	return f.events[len(f.events)-1]
}

type fakeStaffStore struct {
	mu    sync.Mutex
	staff map[string]models.Staff
}

func (f *fakeStaffStore) GetByUserID(_ context.Context, tenantID, userID string) (*models.Staff, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.staff[userID]
	if !ok || s.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (f *fakeStaffStore) SetQualityRole(_ context.Context, tenantID, userID string, role *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.staff[userID]
	if !ok || s.TenantID != tenantID {
		return repository.ErrNotFound
	}
	s.QualityRole = role
	f.staff[userID] = s
	return nil
}

type fakeTenantStore struct {
	tenants map[string]models.Tenant
	configs map[string]models.TenantInspectionConfig
}

func (f *fakeTenantStore) GetByID(_ context.Context, id string) (*models.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (f *fakeTenantStore) GetInspectionConfig(_ context.Context, tenantID string) (*models.TenantInspectionConfig, error) {
	c, ok := f.configs[tenantID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (f *fakeTenantStore) UpsertInspectionConfig(_ context.Context, c *models.TenantInspectionConfig) error {
	c.UpdatedAt = time.Now()
	f.configs[c.TenantID] = *c
	return nil
}

type fakeAuditStore struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (f *fakeAuditStore) Create(_ context.Context, log *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeAuditStore) List(_ context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AuditLog
	for _, l := range f.logs {
		if l.TenantID != filter.TenantID {
			continue
		}
		if filter.ResourceID != "" && l.ResourceID != filter.ResourceID {
			continue
		}
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		out = append(out, l)
	}
	return out, len(out), nil
}

func (f *fakeAuditStore) last(t *testing.T) models.AuditLog {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.logs, "no audit entries written")
	return f.logs[len(f.logs)-1]
}

type fakeOutboxStore struct {
	events []*models.OutboxEvent
	err    error
}

func (f *fakeOutboxStore) Enqueue(_ context.Context, events ...*models.OutboxEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, events...)
	return nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	delivered []*models.OutboxEvent
}

func (f *fakeNotifier) Deliver(_ context.Context, events ...*models.OutboxEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, events...)
}

// recordingSealer marks sealed values so tests can tell them apart
type recordingSealer struct {
	err error
}

func (s recordingSealer) Seal(_ context.Context, plaintext string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "vault:v1:" + plaintext, nil
}

func (s recordingSealer) Open(_ context.Context, ciphertext string) (string, error) {
	if !vault.IsCiphertext(ciphertext) {
		return ciphertext, nil
	}
	return ciphertext[len("vault:v1:"):], nil
}

var errStoreDown = errors.New("connection refused")

type testEnv struct {
	tenantID string

	inspectionRepo *fakeInspectionStore
	staffRepo      *fakeStaffStore
	tenantRepo     *fakeTenantStore
	auditRepo      *fakeAuditStore
	outboxRepo     *fakeOutboxStore
	notifier       *fakeNotifier

	audit       *AuditService
	roles       *RoleService
	configs     *TenantConfigService
	inspections *InspectionService
	clients     *ClientReviewService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tenantID := uuid.NewString()
	env := &testEnv{
		tenantID:       tenantID,
		inspectionRepo: newFakeInspectionStore(),
		staffRepo:      &fakeStaffStore{staff: map[string]models.Staff{}},
		tenantRepo: &fakeTenantStore{
			tenants: map[string]models.Tenant{tenantID: {ID: tenantID, Name: "Acme Builders"}},
			configs: map[string]models.TenantInspectionConfig{},
		},
		auditRepo:  &fakeAuditStore{},
		outboxRepo: &fakeOutboxStore{},
		notifier:   &fakeNotifier{},
	}

	env.audit = NewAuditService(env.auditRepo)
	env.roles = NewRoleService(env.staffRepo, env.outboxRepo, env.notifier, env.audit)
	env.configs = NewTenantConfigService(env.tenantRepo, env.audit)
	env.inspections = NewInspectionService(env.inspectionRepo, env.roles, env.configs, env.notifier, recordingSealer{}, env.audit)
	env.clients = NewClientReviewService(env.inspectionRepo, env.notifier, env.audit)
	return env
}

// addStaff registers a staff member and returns an actor for them
func (e *testEnv) addStaff(mainRole, qualityRole string) models.Actor {
	userID := uuid.NewString()
	s := models.Staff{
		ID:        uuid.NewString(),
		TenantID:  e.tenantID,
		UserID:    userID,
		FirstName: "Test",
		LastName:  mainRole,
		Email:     userID + "@example.com",
		MainRole:  mainRole,
		IsActive:  true,
	}
	if qualityRole != "" {
		s.QualityRole = stringPtr(qualityRole)
	}
	e.staffRepo.mu.Lock()
	e.staffRepo.staff[userID] = s
	e.staffRepo.mu.Unlock()

	return models.Actor{UserID: userID, TenantID: e.tenantID, Role: models.AuthRoleStaff, RequestID: uuid.NewString()}
}

func (e *testEnv) client() models.Actor {
	return models.Actor{UserID: uuid.NewString(), TenantID: e.tenantID, Role: models.AuthRoleClient}
}

func (e *testEnv) setConfig(mutate func(c *models.TenantInspectionConfig)) {
	c := models.DefaultTenantInspectionConfig(e.tenantID)
	mutate(c)
	e.tenantRepo.configs[e.tenantID] = *c
}

// seed stores an inspection in the given status authored by inspector
func (e *testEnv) seed(t *testing.T, inspector models.Actor, status models.InspectionStatus) models.Inspection {
	t.Helper()
	rating := 4
	now := time.Now()
	i := models.Inspection{
		ID:             uuid.NewString(),
		TenantID:       e.tenantID,
		ProjectID:      uuid.NewString(),
		InspectorID:    inspector.UserID,
		Type:           models.InspectionTypeSimple,
		Status:         status,
		Title:          "Level 2 slab",
		OverallRating:  &rating,
		InspectionDate: now,
		Metadata:       models.InspectionMetadata{SchemaVersion: models.MetadataSchemaVersion},
		CreatedAt:      now,
	}
	if status != models.StatusDraft {
		i.SubmittedDate = timePtr(now)
	}
	if status == models.StatusComplete {
		i.CompletedDate = timePtr(now)
	}
	e.inspectionRepo.put(i)
	return e.inspectionRepo.stored(t, i.ID)
}
