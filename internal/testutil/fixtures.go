package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"quality-hub/internal/auth"
	"quality-hub/internal/models"
	"quality-hub/internal/rbac"
	"quality-hub/internal/repository"
)

// Fixtures holds test data for one tenant
type Fixtures struct {
	DB     *sql.DB
	Tenant *models.Tenant

	Inspector *models.Staff // quality_staff
	Reviewer  *models.Staff // team_leader
	Approver  *models.Staff // operations_manager
	Admin     *models.Staff // business_admin without a quality role

	Client *models.Client
	// APIKey is the full key of Client, usable in the X-API-Key header
	APIKey string
}

// SetupFixtures creates a tenant with one staff member per workflow role,
// a client and an API key for it
func SetupFixtures(t *testing.T, db *sql.DB) *Fixtures {
	t.Helper()

	f := &Fixtures{DB: db}
	f.Tenant = createTenant(t, db, "Acme Construction")

	f.Inspector = createStaff(t, db, f.Tenant.ID, "Ina", "Spector", "site_worker", rbac.RoleQualityStaff)
	f.Reviewer = createStaff(t, db, f.Tenant.ID, "Rene", "Viewer", "foreman", rbac.RoleTeamLeader)
	f.Approver = createStaff(t, db, f.Tenant.ID, "Opal", "Manager", "manager", rbac.RoleOperationsManager)
	f.Admin = createStaff(t, db, f.Tenant.ID, "Ada", "Admin", rbac.RoleBusinessAdmin, "")

	f.Client = createClient(t, db, f.Tenant.ID, "Harbor Development Ltd")
	f.APIKey = createAPIKey(t, db, f.Client)

	return f
}

// StaffActor returns the JWT actor of a staff member
func (f *Fixtures) StaffActor(s *models.Staff) models.Actor {
	return models.Actor{UserID: s.UserID, TenantID: s.TenantID, Role: models.AuthRoleStaff}
}

// BusinessActor returns an actor holding the business auth role
func (f *Fixtures) BusinessActor() models.Actor {
	return models.Actor{UserID: f.Admin.UserID, TenantID: f.Tenant.ID, Role: models.AuthRoleBusiness}
}

// ClientActor returns the actor an API key of the fixture client maps to
func (f *Fixtures) ClientActor() models.Actor {
	return models.Actor{UserID: f.Client.ID, TenantID: f.Tenant.ID, Role: models.AuthRoleClient}
}

func createTenant(t *testing.T, db *sql.DB, name string) *models.Tenant {
	t.Helper()

	tenant := &models.Tenant{ID: uuid.NewString(), Name: name, IsActive: true}
	if err := repository.NewTenantRepository(db).Create(context.Background(), tenant); err != nil {
		t.Fatalf("Failed to create tenant: %v", err)
	}
	return tenant
}

func createStaff(t *testing.T, db *sql.DB, tenantID, firstName, lastName, mainRole, qualityRole string) *models.Staff {
	t.Helper()

	s := &models.Staff{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		UserID:    uuid.NewString(),
		FirstName: firstName,
		LastName:  lastName,
		Email:     firstName + "@example.com",
		MainRole:  mainRole,
		IsActive:  true,
	}
	if qualityRole != "" {
		s.QualityRole = &qualityRole
	}
	if err := repository.NewStaffRepository(db).Create(context.Background(), s); err != nil {
		t.Fatalf("Failed to create staff %s: %v", firstName, err)
	}
	return s
}

func createClient(t *testing.T, db *sql.DB, tenantID, name string) *models.Client {
	t.Helper()

	c := &models.Client{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      name,
		Email:     "client@example.com",
		CreatedAt: time.Now(),
	}
	_, err := db.Exec(
		`INSERT INTO clients (id, tenant_id, name, email, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.TenantID, c.Name, c.Email, c.CreatedAt,
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func createAPIKey(t *testing.T, db *sql.DB, c *models.Client) string {
	t.Helper()

	key, prefix, hash, err := auth.GenerateAPIKey()
	if err != nil {
		t.Fatalf("Failed to generate api key: %v", err)
	}
	k := &models.APIKey{
		ID:         uuid.NewString(),
		TenantID:   c.TenantID,
		ClientID:   c.ID,
		Name:       "integration",
		Prefix:     prefix,
		SecretHash: hash,
	}
	if err := repository.NewAPIKeyRepository(db).Create(context.Background(), k); err != nil {
		t.Fatalf("Failed to create api key: %v", err)
	}
	return key
}
