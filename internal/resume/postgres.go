package resume

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the SQL DDL for the airwave_resume table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS airwave_resume (
    guild_id         TEXT PRIMARY KEY,
    voice_channel_id TEXT NOT NULL,
    text_channel_id  TEXT NOT NULL DEFAULT '',
    stream_url       TEXT NOT NULL,
    stream_name      TEXT NOT NULL DEFAULT '',
    requester_id     TEXT NOT NULL DEFAULT '',
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL table with one row per
// guild.
type PostgresStore struct {
	db    DB
	close func()
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] on an existing connection or
// pool. The caller owns db; Close does not close it. Call
// [PostgresStore.Migrate] before the first query.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects a pool to dsn, migrates the schema and returns a
// store that closes the pool on Close.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("resume: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("resume: ping postgres: %w", err)
	}
	s := &PostgresStore{db: pool, close: pool.Close}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate executes the [Schema] DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("resume: migrate: %w", err)
	}
	return nil
}

// Load returns every stored row.
func (s *PostgresStore) Load(ctx context.Context) (map[string]Entry, error) {
	const query = `
		SELECT guild_id, voice_channel_id, text_channel_id, stream_url, stream_name, requester_id
		FROM airwave_resume`

	rows, err := s.db.Query(ctx, query)
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
func (s *PostgresStore) Save(ctx context.Context, entries map[string]Entry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("resume: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := slices.Sorted(maps.Keys(entries))
	if ids == nil {
		ids = []string{}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM airwave_resume WHERE NOT (guild_id = ANY($1))`, ids); err != nil {
		return fmt.Errorf("resume: prune: %w", err)
	}

	const upsert = `
		INSERT INTO airwave_resume (guild_id, voice_channel_id, text_channel_id, stream_url, stream_name, requester_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (guild_id) DO UPDATE SET
			voice_channel_id = EXCLUDED.voice_channel_id,
			text_channel_id  = EXCLUDED.text_channel_id,
			stream_url       = EXCLUDED.stream_url,
			stream_name      = EXCLUDED.stream_name,
			requester_id     = EXCLUDED.requester_id,
			updated_at       = now()`

	for _, id := range ids {
		e := entries[id]
		if _, err := tx.Exec(ctx, upsert, id, e.VoiceChannelID, e.TextChannelID, e.StreamURL, e.StreamName, e.RequesterID); err != nil {
			return fmt.Errorf("resume: upsert guild %s: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("resume: commit: %w", err)
	}
	return nil
}

// Close releases the pool when the store opened it itself.
func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
