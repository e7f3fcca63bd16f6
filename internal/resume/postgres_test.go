package resume

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ---------------------------------------------------------------------------
// Test helpers: mock DB types
// ---------------------------------------------------------------------------

// mockRows implements pgx.Rows over string rows.
type mockRows struct {
	pgx.Rows
	data [][]string
	idx  int
	err  error
}

func (r *mockRows) Close()     {}
func (r *mockRows) Err() error { return r.err }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		d, ok := dest[i].(*string)
		if !ok {
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
		*d = v
	}
	return nil
}

type execCall struct {
	sql  string
	args []any
}

// mockTx implements pgx.Tx, recording Exec calls.
type mockTx struct {
	pgx.Tx
	db *mockDB
}

func (tx *mockTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.db.execs = append(tx.db.execs, execCall{sql: sql, args: args})
	if tx.db.execErr != nil {
		return pgconn.CommandTag{}, tx.db.execErr
	}
	return pgconn.CommandTag{}, nil
}

func (tx *mockTx) Commit(context.Context) error {
	tx.db.committed = true
	return nil
}

func (tx *mockTx) Rollback(context.Context) error {
	if !tx.db.committed {
		tx.db.rolledBack = true
	}
	return nil
}

// mockDB implements the DB interface for testing.
type mockDB struct {
	rows       *mockRows
	queryErr   error
	execErr    error
	execs      []execCall
	committed  bool
	rolledBack bool
}

func (m *mockDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.rows, nil
}

func (m *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execs = append(m.execs, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, m.execErr
}

func (m *mockDB) Begin(context.Context) (pgx.Tx, error) {
	return &mockTx{db: m}, nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestPostgresStore_Migrate(t *testing.T) {
	t.Parallel()

	db := &mockDB{}
	if err := NewPostgresStore(db).Migrate(t.Context()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0].sql, "CREATE TABLE IF NOT EXISTS airwave_resume") {
		t.Errorf("Migrate did not run schema: %+v", db.execs)
	}
}

func TestPostgresStore_Load(t *testing.T) {
	t.Parallel()

	db := &mockDB{rows: &mockRows{data: [][]string{
		{"g1", "v1", "t1", "http://a", "A", "u1"},
		{"g2", "v2", "", "http://b", "B", ""},
	}}}
	got, err := NewPostgresStore(db).Load(t.Context())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Entry{VoiceChannelID: "v1", TextChannelID: "t1", StreamURL: "http://a", StreamName: "A", RequesterID: "u1"}
	if len(got) != 2 || got["g1"] != want {
		t.Errorf("Load = %+v", got)
	}
}

func TestPostgresStore_LoadErrors(t *testing.T) {
	t.Parallel()

	t.Run("query", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{queryErr: errors.New("conn refused")}
		if _, err := NewPostgresStore(db).Load(t.Context()); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("rows", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{rows: &mockRows{err: errors.New("broken")}}
		if _, err := NewPostgresStore(db).Load(t.Context()); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestPostgresStore_Save(t *testing.T) {
	t.Parallel()

	db := &mockDB{}
	entries := map[string]Entry{
		"g2": {VoiceChannelID: "v2", StreamURL: "http://b"},
		"g1": {VoiceChannelID: "v1", StreamURL: "http://a"},
	}
	if err := NewPostgresStore(db).Save(t.Context(), entries); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !db.committed {
		t.Error("transaction not committed")
	}
	if len(db.execs) != 3 {
		t.Fatalf("want 3 statements (prune + 2 upserts), got %d", len(db.execs))
	}
	prune := db.execs[0]
	if !strings.HasPrefix(prune.sql, "DELETE FROM airwave_resume") {
		t.Errorf("first statement = %q, want prune", prune.sql)
	}
	if ids, _ := prune.args[0].([]string); !slices.Equal(ids, []string{"g1", "g2"}) {
		t.Errorf("prune ids = %v, want [g1 g2]", prune.args[0])
	}
	if db.execs[1].args[0] != "g1" || db.execs[2].args[0] != "g2" {
		t.Errorf("upserts not in guild order: %v, %v", db.execs[1].args[0], db.execs[2].args[0])
	}
}

func TestPostgresStore_SaveEmptyPrunesAll(t *testing.T) {
	t.Parallel()

	db := &mockDB{}
	if err := NewPostgresStore(db).Save(t.Context(), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(db.execs) != 1 {
		t.Fatalf("want 1 statement, got %d", len(db.execs))
	}
	ids, ok := db.execs[0].args[0].([]string)
	if !ok || ids == nil || len(ids) != 0 {
		t.Errorf("prune arg = %#v, want empty non-nil slice", db.execs[0].args[0])
	}
}

func TestPostgresStore_SaveRollsBackOnError(t *testing.T) {
	t.Parallel()

	db := &mockDB{execErr: errors.New("constraint")}
	err := NewPostgresStore(db).Save(t.Context(), map[string]Entry{"g": {VoiceChannelID: "v", StreamURL: "u"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if db.committed || !db.rolledBack {
		t.Errorf("committed=%v rolledBack=%v, want rollback only", db.committed, db.rolledBack)
	}
}
