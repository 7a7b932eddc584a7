package store

import (
	"database/sql"
	"fmt"
)

// Schema versions:
// v1: runs, run_groups, outcomes
// v2: run_groups.name and run_groups.duration_ms
const CurrentSchemaVersion = 2

// Migration adds one column to an existing table.
type Migration struct {
	Version int
	Table   string
	Column  string
	Def     string
}

// pendingMigrations upgrade journals created by older releases. Fresh
// databases get the v1 schema from initSchema and then run these too.
var pendingMigrations = []Migration{
	{2, "run_groups", "name", "TEXT NOT NULL DEFAULT ''"},
	{2, "run_groups", "duration_ms", "INTEGER NOT NULL DEFAULT 0"},
}

// migrate applies the migrations above the recorded schema version.
func (s *Store) migrate() error {
	from := schemaVersion(s.db)
	if from >= CurrentSchemaVersion {
		return nil
	}

	applied := 0
	for _, m := range pendingMigrations {
		if m.Version <= from {
			continue
		}
		if columnExists(s.db, m.Table, m.Column) {
			s.log.Debug("column already exists, skipping: %s.%s", m.Table, m.Column)
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("migration %s.%s failed: %w", m.Table, m.Column, err)
		}
		applied++
	}

	if err := setSchemaVersion(s.db, CurrentSchemaVersion); err != nil {
		return err
	}
	s.log.Info("journal schema migrated from v%d to v%d (%d columns added)", from, CurrentSchemaVersion, applied)
	return nil
}

// columnExists checks a column with PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid, notnull, pk int
			name, ctype      string
			dflt             interface{}
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

func tableExists(db *sql.DB, table string) bool {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
	return err == nil && count > 0
}

// schemaVersion returns the newest recorded version. Journals without a
// schema_versions table predate versioning and are v1.
func schemaVersion(db *sql.DB) int {
	if !tableExists(db, "schema_versions") {
		return 1
	}
	var version int
	if err := db.QueryRow("SELECT MAX(version) FROM schema_versions").Scan(&version); err != nil {
		return 1
	}
	return version
}

func setSchemaVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			description TEXT
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_versions table: %w", err)
	}
	_, err := db.Exec("INSERT INTO schema_versions (version, description) VALUES (?, ?)",
		version, fmt.Sprintf("Migrated to schema version %d", version))
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}
