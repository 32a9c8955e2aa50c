package testutil

import (
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/celsofranciscano/innotech/storage/database"
)

// TestDatabaseURLEnv names the postgres DSN of the database tests are allowed to wipe.
const TestDatabaseURLEnv = "INNOTECH_TEST_DATABASE_URL"

const truncateQuery = `
	TRUNCATE history, review_details, project_members, projects, juror_assignments, criteria, calls,
		devices, users, privileges, categories, project_types, project_statuses
	RESTART IDENTITY CASCADE`

// OpenDB connects to a migrated and empty test database, closed when t ends.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv(TestDatabaseURLEnv)
	if dsn == "" {
		t.Skipf("%s is not set", TestDatabaseURLEnv)
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	if _, err = db.Exec(truncateQuery); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	return db
}
