// Package store database for slideshow settings
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Database struct {
	db       *sql.DB
	defaults AppSettings
}

// NewDatabase opens the sqlite database at dbPath. defaults seed the settings row the
// first time it is read.
func NewDatabase(dbPath string, defaults AppSettings) (*Database, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{db: db, defaults: defaults}

	// Create table if it doesn't exist
	if err := database.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return database, nil
}

func (d *Database) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS app_settings (
		singleton INTEGER NOT NULL DEFAULT 1 CHECK (singleton = 1),
		source                   TEXT NOT NULL,
		shuffle_enabled          INTEGER NOT NULL,
		preload_batch_size       INTEGER NOT NULL,
		advance_interval_seconds INTEGER NOT NULL,
		PRIMARY KEY (singleton)
	);
	`
	_, err := d.db.Exec(query)
	return err
}

func (d *Database) GetAppSettings() (*AppSettings, error) {
	const query = `
		SELECT source,
		       shuffle_enabled,
		       preload_batch_size,
		       advance_interval_seconds
		FROM app_settings
		WHERE singleton = 1
	`

	var s AppSettings
	var shuffleEnabledInt int

	err := d.db.QueryRow(query).Scan(&s.Source, &shuffleEnabledInt, &s.PreloadBatchSize, &s.AdvanceIntervalSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		// Bootstrap defaults if no settings row exists yet
		defaults := d.defaults
		if err := d.UpsertAppSettings(&defaults); err != nil {
			return nil, err
		}
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get app settings: %w", err)
	}

	s.ShuffleEnabled = shuffleEnabledInt != 0
	return &s, nil
}

func (d *Database) UpsertAppSettings(s *AppSettings) error {
	const stmt = `
		INSERT INTO app_settings (
			singleton,
			source,
			shuffle_enabled,
			preload_batch_size,
			advance_interval_seconds
		) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(singleton) DO UPDATE SET
			source                   = excluded.source,
			shuffle_enabled          = excluded.shuffle_enabled,
			preload_batch_size       = excluded.preload_batch_size,
			advance_interval_seconds = excluded.advance_interval_seconds
	`

	_, err := d.db.Exec(
		stmt,
		s.Source,
		boolToInt(s.ShuffleEnabled),
		s.PreloadBatchSize,
		s.AdvanceIntervalSeconds,
	)
	if err != nil {
		return fmt.Errorf("upsert app settings: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (d *Database) Close() error {
	return d.db.Close()
}
