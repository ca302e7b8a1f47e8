package database

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// EmbeddedMigrations holds the schema shipped with the binary
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS

// EmbeddedMigrationsDir is the directory of EmbeddedMigrations holding the .sql files
const EmbeddedMigrationsDir = "migrations"

const schemaMigrationsDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// Migration is one NNN_name.sql file
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrator applies pending migrations, one transaction per file
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

// Run applies the embedded schema and seed migrations
func (m *Migrator) Run() (int, error) {
	return m.RunMigrations(EmbeddedMigrations, EmbeddedMigrationsDir)
}

// RunMigrations applies the migrations in dir of fsys that are not yet
// recorded and returns how many it applied. It stops at the first failure;
// earlier migrations stay applied.
func (m *Migrator) RunMigrations(fsys fs.FS, dir string) (int, error) {
	if _, err := m.db.Exec(schemaMigrationsDDL); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	all, err := LoadMigrations(fsys, dir)
	if err != nil {
		return 0, fmt.Errorf("failed to load migrations: %w", err)
	}

	pending, err := m.pending(all)
	if err != nil {
		return 0, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for i, mig := range pending {
		if err := m.apply(mig); err != nil {
			m.logger.Error("Failed to apply migration",
				zap.Int("version", mig.Version),
				zap.String("name", mig.Name),
				zap.Error(err))
			return i, fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
		}
		m.logger.Info("Applied migration", zap.Int("version", mig.Version), zap.String("name", mig.Name))
	}

	return len(pending), nil
}

// pending filters out the versions recorded in schema_migrations
func (m *Migrator) pending(all []Migration) ([]Migration, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[int]struct{})
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []Migration
	for _, mig := range all {
		if _, ok := done[mig.Version]; !ok {
			out = append(out, mig)
		}
	}
	return out, nil
}

func (m *Migrator) apply(mig Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(mig.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", mig.Version, mig.Name); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

// LoadMigrations reads the .sql files of dir in fsys, ordered by version.
// Two files with the same version are an error.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]Migration)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}

		version, name, err := parseMigrationName(entry.Name())
		if err != nil {
			return nil, err
		}
		if prev, ok := byVersion[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", version, prev.Name, name)
		}

		body, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}
		byVersion[version] = Migration{Version: version, Name: name, SQL: string(body)}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		out = append(out, mig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// parseMigrationName splits "001_initial_schema.sql" into 1 and "initial_schema"
func parseMigrationName(filename string) (int, string, error) {
	stem := strings.TrimSuffix(filename, ".sql")
	prefix, name, _ := strings.Cut(stem, "_")
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, "", fmt.Errorf("invalid migration filename format: %s", filename)
	}
	return version, name, nil
}
