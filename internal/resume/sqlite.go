package resume

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS resume (
	guild_id         TEXT PRIMARY KEY,
	voice_channel_id TEXT NOT NULL,
	text_channel_id  TEXT NOT NULL DEFAULT '',
	stream_url       TEXT NOT NULL,
	stream_name      TEXT NOT NULL DEFAULT '',
	requester_id     TEXT NOT NULL DEFAULT '',
	updated_at       INTEGER NOT NULL DEFAULT 0
)`

// SQLiteStore is a [Store] backed by a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("resume: open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		sqliteSchema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("resume: init sqlite: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Load returns every stored row.
func (s *SQLiteStore) Load(ctx context.Context) (map[string]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT guild_id, voice_channel_id, text_channel_id, stream_url, stream_name, requester_id FROM resume`)
	if err != nil {
		return nil, fmt.Errorf("resume: load: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Entry)
	for rows.Next() {
		var (
			guildID string
			e       Entry
		)
		if err := rows.Scan(&guildID, &e.VoiceChannelID, &e.TextChannelID, &e.StreamURL, &e.StreamName, &e.RequesterID); err != nil {
			return nil, fmt.Errorf("resume: scan: %w", err)
		}
		out[guildID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resume: load rows: %w", err)
	}
	return out, nil
}

// Save replaces the table content with entries in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, entries map[string]Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("resume: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM resume`); err != nil {
		return fmt.Errorf("resume: clear: %w", err)
	}
	for id, e := range entries {
		_, err := tx.ExecContext(ctx, `INSERT INTO resume (guild_id, voice_channel_id, text_channel_id, stream_url, stream_name, requester_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, strftime('%s','now'))`,
			id, e.VoiceChannelID, e.TextChannelID, e.StreamURL, e.StreamName, e.RequesterID)
		if err != nil {
			return fmt.Errorf("resume: insert guild %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("resume: commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
