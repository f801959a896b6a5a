// Package settings is the user configuration store consumed by the
// presentation layer: a small key-value table in SQLite with
// fire-and-forget writes. A missed write costs one stale panel render,
// and the watch loop reconciles shortly after.
package settings

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	_ "modernc.org/sqlite"
)

// Settings is the effective user configuration. An empty SourceLanguage
// means "detect from the page".
type Settings struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	Enabled        bool   `json:"enabled"`
}

// Partial is a sparse update: nil fields keep their stored value.
type Partial struct {
	SourceLanguage *string `json:"source_language,omitempty"`
	TargetLanguage *string `json:"target_language,omitempty"`
	Enabled        *bool   `json:"enabled,omitempty"`
}

// Store persists settings in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens (creating if needed) the settings database at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("settings: open: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("settings: pragmas: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("settings: schema: %w", err)
	}

	s := &Store{db: db, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Defaults returns the baseline settings: English target, interaction
// enabled. Get layers stored keys on top of it, and components with no
// store configured run on it directly.
func Defaults() Settings {
	return Settings{TargetLanguage: "en", Enabled: true}
}

// Get reads the effective settings, applying defaults for unset keys.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: get: %w", err)
	}
	defer rows.Close()

	out := Defaults()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Settings{}, fmt.Errorf("settings: scan: %w", err)
		}
		switch k {
		case "source_language":
			out.SourceLanguage = v
		case "target_language":
			out.TargetLanguage = v
		case "enabled":
			out.Enabled, _ = strconv.ParseBool(v)
		}
	}
	return out, rows.Err()
}

// Set applies a sparse update. Fire-and-forget: failures are logged, not
// propagated, so a failing settings store never blocks the panel.
func (s *Store) Set(ctx context.Context, p Partial) {
	put := func(key, value string) {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value)
		if err != nil {
			s.logger.Error("settings: set failed", "key", key, "error", err)
		}
	}

	if p.SourceLanguage != nil {
		put("source_language", *p.SourceLanguage)
	}
	if p.TargetLanguage != nil {
		put("target_language", *p.TargetLanguage)
	}
	if p.Enabled != nil {
		put("enabled", strconv.FormatBool(*p.Enabled))
	}
}
