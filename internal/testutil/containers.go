// Package testutil starts the PostgreSQL container and fixtures the
// integration tests run against.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sbiochat/dashboard/internal/db"
)

// TestEnvironment holds test infrastructure (a PostgreSQL container with
// both the chat platform schema and this service's own tables).
type TestEnvironment struct {
	DB                *db.DB
	PostgresContainer *postgres.PostgresContainer
	Ctx               context.Context
}

// SetupTestEnvironment starts a PostgreSQL container, runs this service's
// migrations, and creates the chat platform tables the aggregate queries
// read. Call once per test or test suite.
func SetupTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()
	ctx := context.Background()

	t.Log("Starting PostgreSQL container...")
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("dashboard_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get postgres connection string: %v", err)
	}

	database, err := db.Connect(connStr)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	t.Log("Running database migrations...")
	if err := database.Migrate(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Log("Creating chat platform schema...")
	if _, err := database.Conn().ExecContext(ctx, chatPlatformSchema); err != nil {
		t.Fatalf("Failed to create chat platform schema: %v", err)
	}

	env := &TestEnvironment{
		DB:                database,
		PostgresContainer: postgresContainer,
		Ctx:               ctx,
	}

	t.Cleanup(func() {
		env.Cleanup(t)
	})

	return env
}

// Cleanup stops the container and closes connections
func (e *TestEnvironment) Cleanup(t *testing.T) {
	t.Helper()

	if e.DB != nil {
		if err := e.DB.Close(); err != nil {
			t.Logf("Warning: failed to close database: %v", err)
		}
	}

	if e.PostgresContainer != nil {
		if err := e.PostgresContainer.Terminate(e.Ctx); err != nil {
			t.Logf("Warning: failed to terminate postgres container: %v", err)
		}
	}
}

// CleanDB truncates all tables to provide clean state for each test.
// Call at the beginning of each test function for isolation.
func (e *TestEnvironment) CleanDB(t *testing.T) {
	t.Helper()

	tables := []string{
		"package_audit_log",
		"python_packages",
		"feedback",
		"group_member",
		`"group"`,
		"chat",
		"model",
		`"user"`,
	}

	ctx := context.Background()
	for _, table := range tables {
		if _, err := e.DB.Conn().ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			t.Fatalf("Failed to truncate table %s: %v", table, err)
		}
	}
}

// chatPlatformSchema mirrors the subset of the chat platform's tables the
// aggregate queries read. The real tables are owned by the platform; tests
// recreate just enough of them.
const chatPlatformSchema = `
CREATE TABLE IF NOT EXISTS "user" (
	id TEXT PRIMARY KEY,
	name TEXT,
	email TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS model (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	user_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chat (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	chat JSON NOT NULL DEFAULT '{}',
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS "group" (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS group_member (
	group_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	PRIMARY KEY (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS feedback (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	data JSON NOT NULL DEFAULT '{}',
	created_at BIGINT NOT NULL
);
`
