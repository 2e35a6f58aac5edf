package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// every :memory: connection is its own database
	conn.SetMaxOpenConns(1)

	_, err = conn.Exec(`CREATE TABLE test_table (id INTEGER PRIMARY KEY, value TEXT)`)
	if err != nil {
		t.Fatalf("Failed to create test table: %v", err)
	}

	return conn
}

func countRows(t *testing.T, conn *sql.DB) int {
	t.Helper()
	var count int
	if err := conn.QueryRow("SELECT COUNT(*) FROM test_table").Scan(&count); err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	return count
}

func TestRunInTransaction_Commit(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	ctx := context.Background()

	err := RunInTransaction(ctx, conn, func(txCtx context.Context) error {
		if _, ok := GetTx(txCtx); !ok {
			t.Error("Expected transaction in context")
		}

		_, err := GetExecutor(txCtx, conn).ExecContext(txCtx, "INSERT INTO test_table (value) VALUES (?)", "test")
		return err
	})
	if err != nil {
		t.Fatalf("RunInTransaction failed: %v", err)
	}

	if got := countRows(t, conn); got != 1 {
		t.Errorf("Expected 1 row, got %d", got)
	}
}

func TestRunInTransaction_Rollback(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	ctx := context.Background()
	boom := errors.New("boom")

	err := RunInTransaction(ctx, conn, func(txCtx context.Context) error {
		_, err := GetExecutor(txCtx, conn).ExecContext(txCtx, "INSERT INTO test_table (value) VALUES (?)", "test")
		if err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTransaction error = %v, want %v", err, boom)
	}

	if got := countRows(t, conn); got != 0 {
		t.Errorf("Expected 0 rows after rollback, got %d", got)
	}
}

func TestRunInTransaction_NestedReusesOuter(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	ctx := context.Background()

	err := RunInTransaction(ctx, conn, func(outerCtx context.Context) error {
		if _, err := GetExecutor(outerCtx, conn).ExecContext(outerCtx, "INSERT INTO test_table (value) VALUES (?)", "outer"); err != nil {
			return err
		}

		return RunInTransaction(outerCtx, conn, func(innerCtx context.Context) error {
			outerTx, _ := GetTx(outerCtx)
			innerTx, _ := GetTx(innerCtx)
			if outerTx != innerTx {
				t.Error("Expected nested transaction to reuse outer transaction")
			}

			_, err := GetExecutor(innerCtx, conn).ExecContext(innerCtx, "INSERT INTO test_table (value) VALUES (?)", "inner")
			return err
		})
	})
	if err != nil {
		t.Fatalf("RunInTransaction failed: %v", err)
	}

	if got := countRows(t, conn); got != 2 {
		t.Errorf("Expected 2 rows, got %d", got)
	}
}

func TestGetExecutor(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	ctx := context.Background()
	if GetExecutor(ctx, conn) != conn {
		t.Error("Expected executor to be the database")
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if GetExecutor(WithTx(ctx, tx), conn) != tx {
		t.Error("Expected executor to be the transaction")
	}
}

func TestApplySchema_Idempotent(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	ctx := context.Background()
	schema := []string{
		`CREATE TABLE IF NOT EXISTS other_table (id INTEGER PRIMARY KEY)`,
		`CREATE INDEX IF NOT EXISTS idx_other_table_id ON other_table(id)`,
	}

	for i := 0; i < 2; i++ {
		if err := ApplySchema(ctx, conn, schema); err != nil {
			t.Fatalf("ApplySchema run %d failed: %v", i+1, err)
		}
	}
}

func TestApplySchema_RollsBackOnError(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()

	ctx := context.Background()
	schema := []string{
		`CREATE TABLE IF NOT EXISTS half_table (id INTEGER PRIMARY KEY)`,
		`THIS IS NOT SQL`,
	}

	if err := ApplySchema(ctx, conn, schema); err == nil {
		t.Fatal("Expected error from invalid statement")
	}

	var n int
	err := conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'half_table'`).Scan(&n)
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if n != 0 {
		t.Error("Expected half_table to be rolled back")
	}
}
