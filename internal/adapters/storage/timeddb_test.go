package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"calendarrecords/internal/adapters/http/perf"
)

func openTimedTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := openTestDB(t)
	if _, err := db.Exec("CREATE TABLE test (id TEXT PRIMARY KEY, val TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// TestTimedDB_ExecContext verifies ExecContext records timing.
func TestTimedDB_ExecContext(t *testing.T) {
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), collector, 0)

	_, err := tdb.ExecContext(context.Background(), "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello")
	if err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	if collector.TotalRecorded() != 1 {
		t.Errorf("TotalRecorded = %d, want 1", collector.TotalRecorded())
	}
}

// TestTimedDB_QueryContext verifies QueryContext records timing and passes rows through.
func TestTimedDB_QueryContext(t *testing.T) {
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), collector, 0)
	ctx := context.Background()

	tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello")

	rows, err := tdb.QueryContext(ctx, "SELECT id, val FROM test")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	count := 0
	for rows.Next() {
		count++
	}
	rows.Close()
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}
	if collector.TotalRecorded() != 2 {
		t.Errorf("TotalRecorded = %d, want 2", collector.TotalRecorded())
	}
}

// TestTimedDB_QueryRowContext_ErrNoRows verifies scan errors pass through unchanged.
func TestTimedDB_QueryRowContext_ErrNoRows(t *testing.T) {
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), collector, 0)

	var val string
	err := tdb.QueryRowContext(context.Background(), "SELECT val FROM test WHERE id = ?", "missing").Scan(&val)
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
	if collector.TotalRecorded() != 1 {
		t.Errorf("TotalRecorded = %d, want 1", collector.TotalRecorded())
	}
}

// TestTimedDB_ErrorPassthrough verifies SQL errors are returned and still timed.
func TestTimedDB_ErrorPassthrough(t *testing.T) {
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), collector, 0)

	if _, err := tdb.ExecContext(context.Background(), "INSERT INTO nonexistent_table VALUES (?)", 1); err == nil {
		t.Fatal("expected error from invalid SQL, got nil")
	}
	if collector.TotalRecorded() != 1 {
		t.Errorf("TotalRecorded = %d, want 1 (must record even on error)", collector.TotalRecorded())
	}
}

// TestTimedDB_CancelledContext verifies a cancelled context surfaces as an error.
func TestTimedDB_CancelledContext(t *testing.T) {
	tdb := NewTimedDB(openTimedTestDB(t), nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello"); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

// TestTimedDB_RecordsQueryLabel verifies queries aggregate under "VERB table".
func TestTimedDB_RecordsQueryLabel(t *testing.T) {
	collector := perf.NewCollector(10)
	tdb := NewTimedDB(openTimedTestDB(t), collector, time.Hour)

	var n int
	tdb.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM test WHERE val = ?", "x").Scan(&n)

	snap := collector.Snapshot(time.Now().Add(-time.Minute), 5)
	if len(snap.SlowestQueries) != 1 || snap.SlowestQueries[0].Path != "SELECT test" {
		t.Fatalf("SlowestQueries = %+v, want one entry for \"SELECT test\"", snap.SlowestQueries)
	}
}

// TestQueryLabel tests statement shape extraction.
func TestQueryLabel(t *testing.T) {
	tests := map[string]string{
		"SELECT id FROM calendar_record WHERE id = ?":     "SELECT calendar_record",
		"insert into calendar_record (id) values (?)":     "INSERT calendar_record",
		"UPDATE calendar_record SET title = ?":            "UPDATE calendar_record",
		"DELETE FROM calendar_record WHERE id = ?":        "DELETE calendar_record",
		"SELECT 1":                                        "SELECT",
		"   ":                                             "EMPTY",
	}
	for in, want := range tests {
		if got := queryLabel(in); got != want {
			t.Errorf("queryLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestTimedDB_PingAndClose verifies health checks follow the wrapped connection's lifecycle.
func TestTimedDB_PingAndClose(t *testing.T) {
	tdb := NewTimedDB(openTimedTestDB(t), nil, 0)
	if err := tdb.PingContext(context.Background()); err != nil {
		t.Fatalf("PingContext on open db: %v", err)
	}
	if err := tdb.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tdb.PingContext(context.Background()); err == nil {
		t.Error("PingContext after Close should fail")
	}
}

// BenchmarkTimedDB_OverheadIsolation compares TimedDB against the raw *sql.DB for the same query.
func BenchmarkTimedDB_OverheadIsolation(b *testing.B) {
	db, _ := sql.Open("sqlite", ":memory:")
	defer db.Close()
	db.SetMaxOpenConns(1)
	db.Exec("CREATE TABLE bench (id INTEGER PRIMARY KEY, val TEXT)")
	db.Exec("INSERT INTO bench VALUES (1, 'x')")
	ctx := context.Background()

	b.Run("sql.DB", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			var v string
			db.QueryRowContext(ctx, "SELECT val FROM bench WHERE id = 1").Scan(&v)
		}
	})

	tdb := NewTimedDB(db, perf.NewCollector(perf.DefaultRingSize), 0)
	b.Run("TimedDB", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			var v string
			tdb.QueryRowContext(ctx, "SELECT val FROM bench WHERE id = 1").Scan(&v)
		}
	})
}
