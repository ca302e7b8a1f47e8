// Package testinfra provides throwaway databases for integration tests
package testinfra

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/pkg/database"
)

// TestDatabase is a migrated sqlite database living in the test's temp dir
type TestDatabase struct {
	Name string
	DB   *database.DB
}

// StartTestDatabase creates and migrates a fresh database; it is closed when t finishes
func StartTestDatabase(t testing.TB, baseName string) *TestDatabase {
	t.Helper()

	name := baseName + "_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), name+".db"),
		MaxOpenConns: 4,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := database.NewMigrator(db, zap.NewNop()).Run(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return &TestDatabase{Name: name, DB: db}
}

// MustExec runs a statement and fails the test on error
func (d *TestDatabase) MustExec(t testing.TB, query string, args ...interface{}) {
	t.Helper()
	if _, err := d.DB.Exec(query, args...); err != nil {
		t.Fatalf("exec %q failed: %v", query, err)
	}
}

// CountRows returns SELECT COUNT(*) FROM table WHERE where
func (d *TestDatabase) CountRows(t testing.TB, table, where string, args ...interface{}) int {
	t.Helper()
	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := d.DB.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count %s failed: %v", table, err)
	}
	return n
}
