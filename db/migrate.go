package db

import (
	"database/sql"
	"fmt"
)

// createTables creates the tables if they do not exist yet.
func createTables(conn *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			submitted_at INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			team_name TEXT NOT NULL DEFAULT '',
			members TEXT NOT NULL DEFAULT '[]',
			fields TEXT NOT NULL DEFAULT '{}',
			updated_at INTEGER
		);`,
		// Sequential ids, matching what the form plugin hands out.
		`CREATE TABLE IF NOT EXISTS id_counter (
			counter_name TEXT PRIMARY KEY,
			current_value INTEGER NOT NULL DEFAULT 0
		);`,
		`INSERT OR IGNORE INTO id_counter (counter_name, current_value) VALUES ('submission_id', 0);`,
	}
	for _, stmt := range statements {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
