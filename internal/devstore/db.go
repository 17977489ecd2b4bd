// Package devstore is a local stand-in for the remote record store: a
// SQLite-backed implementation of the same REST surface the dashboard's
// client consumes. It exists for development and for exercising the REST
// client in tests without a live store.
package devstore

import (
	"database/sql"
	"fmt"
)

// InitDB initializes the database schema.
// PRE: db is a valid database connection
// POST: All tables are created, WAL mode enabled
func InitDB(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS user (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS item (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		event_name TEXT NOT NULL,
		topic TEXT NOT NULL,
		observed_by INTEGER NOT NULL DEFAULT 0,
		observation TEXT NOT NULL DEFAULT '',
		observation_date TEXT NOT NULL DEFAULT '',
		classification TEXT NOT NULL DEFAULT '',
		submitted_opr TEXT NOT NULL DEFAULT '',
		dotmlpf TEXT NOT NULL DEFAULT '',
		discussion TEXT NOT NULL DEFAULT '',
		recommendations TEXT NOT NULL DEFAULT '',
		implications TEXT NOT NULL DEFAULT '',
		keywords TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		editor INTEGER NOT NULL DEFAULT 0,
		modified TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS item_recipient (
		item_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		PRIMARY KEY (item_id, position),
		FOREIGN KEY (item_id) REFERENCES item(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS field_choice (
		field TEXT NOT NULL,
		position INTEGER NOT NULL,
		choice TEXT NOT NULL,
		PRIMARY KEY (field, position)
	);

	CREATE TABLE IF NOT EXISTS group_member (
		group_name TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		PRIMARY KEY (group_name, user_id)
	);

	CREATE TABLE IF NOT EXISTS owner (
		user_id INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS file (
		path TEXT PRIMARY KEY,
		content BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS outbound_mail (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recipients TEXT NOT NULL,
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		sent_at TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Seed inserts the reports list's field schema: the choice sets a freshly
// provisioned list carries. Idempotent.
// PRE: InitDB has run
// POST: Choice fields are populated in schema order
func Seed(db *sql.DB) error {
	sets := map[string][]string{
		"Status": {"New", "Valid", "In-valid", "In-progress", "Closed"},
		"Classification": {
			"(S)-Secret", "(CUI)-Controlled Unclassified Information",
		},
		"DOTMLPF": {
			"D-Doctrine", "O-Organization", "T-Training", "M-Material",
			"L-Leadership", "P-Personnel", "F-Facilities",
		},
	}
	for field, choices := range sets {
		for i, choice := range choices {
			_, err := db.Exec(
				"INSERT OR REPLACE INTO field_choice (field, position, choice) VALUES (?, ?, ?)",
				field, i, choice)
			if err != nil {
				return fmt.Errorf("failed to seed %s choices: %w", field, err)
			}
		}
	}
	return nil
}
