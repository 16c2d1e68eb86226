package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFormatParseTime(t *testing.T) {
	in := time.Date(2026, 3, 1, 9, 30, 15, 123456000, time.FixedZone("X", 3600))
	got := ParseTime(FormatTime(in))
	if !got.Equal(in) {
		t.Errorf("ParseTime(FormatTime()) = %v, want %v", got, in)
	}

	if got := ParseTime("2026-03-01T09:30:15Z"); got.IsZero() {
		t.Error("ParseTime() should accept RFC 3339")
	}
	if got := ParseTime("garbage"); !got.IsZero() {
		t.Errorf("ParseTime(garbage) = %v, want zero", got)
	}

	early := FormatTime(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	late := FormatTime(time.Date(2026, 1, 1, 0, 0, 0, 1000, time.UTC))
	if early >= late {
		t.Errorf("stored timestamps should sort chronologically: %q >= %q", early, late)
	}
}

func TestConstraintClassification(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	stmts := []string{
		"CREATE TABLE parent (id TEXT PRIMARY KEY, name TEXT UNIQUE)",
		"CREATE TABLE child (id TEXT PRIMARY KEY, parent_id TEXT NOT NULL REFERENCES parent(id))",
		"INSERT INTO parent (id, name) VALUES ('p1', 'one')",
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}

	_, err := db.ExecContext(ctx, "INSERT INTO parent (id, name) VALUES ('p2', 'one')")
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}

	_, err = db.ExecContext(ctx, "INSERT INTO child (id, parent_id) VALUES ('c1', 'missing')")
	if !IsForeignKeyViolation(err) {
		t.Errorf("IsForeignKeyViolation(%v) = false, want true", err)
	}
	if IsUniqueViolation(err) {
		t.Error("foreign key failure classified as unique violation")
	}

	if IsUniqueViolation(errors.New("UNIQUE constraint failed")) {
		t.Error("plain errors should not be classified")
	}
}
