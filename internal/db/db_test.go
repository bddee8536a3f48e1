package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestOpenInMemory_SchemaReady(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	for _, table := range []string{"messages", "profiles", "notifications"} {
		var name string
		err := database.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestWithRetry_RetriesOnBusy(t *testing.T) {
	ctx := context.Background()
	attempts := 0

	err := withRetry(ctx, 3, time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetry_StopsOnNonBusy(t *testing.T) {
	ctx := context.Background()
	attempts := 0

	err := withRetry(ctx, 3, time.Millisecond, func() error {
		attempts++
		return errors.New("boom")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithRetry_StopsAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	attempts := 0

	err := withRetry(ctx, 2, time.Millisecond, func() error {
		attempts++
		return errors.New("database is busy")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestTransactionWithRetry(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	attempts := 0

	err := database.TransactionWithRetry(ctx, 3, time.Millisecond, func(tx *sql.Tx) error {
		attempts++
		if attempts < 2 {
			return errors.New("database is locked")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestParseNullableTime(t *testing.T) {
	tests := []struct {
		name  string
		value sql.NullString
		want  bool
	}{
		{
			name:  "null",
			value: sql.NullString{},
			want:  false,
		},
		{
			name:  "empty string",
			value: sql.NullString{String: "", Valid: true},
			want:  false,
		},
		{
			name:  "valid stamp",
			value: sql.NullString{String: "2026-03-01T10:00:00.000000000Z", Valid: true},
			want:  true,
		},
		{
			name:  "garbage",
			value: sql.NullString{String: "not-a-time", Valid: true},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseNullableTime(tt.value)
			if (got != nil) != tt.want {
				t.Errorf("parseNullableTime(%v) = %v, want non-nil=%v", tt.value, got, tt.want)
			}
		})
	}
}

func TestTimeLayout_FixedWidth(t *testing.T) {
	// ORDER BY on the TEXT column is only chronological when every stamp
	// has the same width, including zero fractional seconds.
	early := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 1, 10, 0, 0, 999999999, time.UTC)

	a := early.Format(timeLayout)
	b := late.Format(timeLayout)

	if len(a) != len(b) {
		t.Fatalf("stamps differ in width: %q vs %q", a, b)
	}
	if !(a < b) {
		t.Fatalf("lexicographic order broken: %q >= %q", a, b)
	}
}
