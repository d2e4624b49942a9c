// Package testutil starts throwaway PostgreSQL and Vault containers and seeds
// them for integration tests. Every helper skips when tests run with -short.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/vault"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/lib/pq"

	"quality-hub/internal/database"
	"quality-hub/migrations"
)

const (
	VaultTestToken    = "test-token"
	VaultTransitMount = "transit"
)

// TestContainers holds references to running test containers
type TestContainers struct {
	PostgresContainer *postgres.PostgresContainer
	VaultContainer    *vault.VaultContainer
	DB                *sql.DB
	DBConnString      string
	VaultAddr         string
	VaultToken        string
}

// SetupPostgres starts PostgreSQL, applies the embedded migrations and
// registers container cleanup on t.
func SetupPostgres(t *testing.T) *TestContainers {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:18",
		postgres.WithDatabase("quality_hub_test"),
		postgres.WithUsername("quality_hub_test"),
		postgres.WithPassword("quality_hub_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	tc := &TestContainers{PostgresContainer: postgresContainer}
	t.Cleanup(func() { tc.Cleanup(t) })

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := database.NewMigrationExecutor(db).RunMigrations(ctx, migrations.FS); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	tc.DB = db
	tc.DBConnString = connStr
	return tc
}

// SetupVault starts a dev-mode Vault server
func SetupVault(t *testing.T) *TestContainers {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	vaultContainer, err := vault.Run(ctx,
		"hashicorp/vault:1.15",
		vault.WithToken(VaultTestToken),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Vault server started!").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start Vault container: %v", err)
	}
	tc := &TestContainers{VaultContainer: vaultContainer, VaultToken: VaultTestToken}
	t.Cleanup(func() { tc.Cleanup(t) })

	addr, err := vaultContainer.HttpHostAddress(ctx)
	if err != nil {
		t.Fatalf("Failed to get Vault address: %v", err)
	}
	tc.VaultAddr = fmt.Sprintf("http://%s", addr)
	return tc
}

// Cleanup closes the database and terminates all started containers
func (tc *TestContainers) Cleanup(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	if tc.DB != nil {
		tc.DB.Close()
		tc.DB = nil
	}

	if tc.PostgresContainer != nil {
		if err := tc.PostgresContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate PostgreSQL container: %v", err)
		}
		tc.PostgresContainer = nil
	}

	if tc.VaultContainer != nil {
		if err := tc.VaultContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate Vault container: %v", err)
		}
		tc.VaultContainer = nil
	}
}

// TruncateAll empties every application table between subtests
func TruncateAll(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`
		TRUNCATE notifications, notification_outbox, audit_logs, quality_inspections,
			tenant_inspection_configs, api_keys, clients, staff, tenants CASCADE
	`)
	if err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}
}
