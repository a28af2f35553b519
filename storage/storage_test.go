package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), opts...)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDBCreatesSchema(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.conn.ExecContext(ctx, "SELECT 1 FROM dedup LIMIT 1"); err != nil {
		t.Errorf("dedup table not created: %v", err)
	}
	if _, err := db.conn.ExecContext(ctx, "SELECT 1 FROM settings LIMIT 1"); err != nil {
		t.Errorf("settings table not created: %v", err)
	}
}

func TestNormalizeKeyword(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Fall Festival", "fall festival"},
		{"  fall   festival  ", "fall festival"},
		{"FALL FESTIVAL", "fall festival"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeKeyword(tt.input); got != tt.want {
			t.Errorf("NormalizeKeyword(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestHashKeywordNormalizes(t *testing.T) {
	if HashKeyword("Fall Festival") != HashKeyword("  fall   FESTIVAL ") {
		t.Error("cosmetic variants should hash identically")
	}
	if HashKeyword("fall festival") == HashKeyword("spring festival") {
		t.Error("different keywords should hash differently")
	}
}

func TestMarkUsedExcludesKeyword(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	excluded, err := db.IsExcluded(ctx, "summer recipes", "news")
	if err != nil {
		t.Fatalf("IsExcluded failed: %v", err)
	}
	if excluded {
		t.Error("fresh keyword should not be excluded")
	}

	if err := db.MarkUsed(ctx, "summer recipes", "news"); err != nil {
		t.Fatalf("MarkUsed failed: %v", err)
	}

	excluded, err = db.IsExcluded(ctx, "Summer  Recipes", "news")
	if err != nil {
		t.Fatalf("IsExcluded failed: %v", err)
	}
	if !excluded {
		t.Error("marked keyword should be excluded (case/space insensitive)")
	}
}

func TestMarkUsedIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := db.MarkUsed(ctx, "repeat topic", "trend"); err != nil {
			t.Fatalf("MarkUsed call %d failed: %v", i+1, err)
		}
	}

	count, err := db.CountRecords(ctx)
	if err != nil {
		t.Fatalf("CountRecords failed: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d records after re-marking, want 1", count)
	}
}

func TestRollingTTLExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	db := newTestDB(t, WithTTL(30*24*time.Hour), WithClock(func() time.Time { return clock() }))
	ctx := context.Background()

	if err := db.MarkUsed(ctx, "old news", "news"); err != nil {
		t.Fatalf("MarkUsed failed: %v", err)
	}

	// Just inside the window: still excluded.
	now = now.Add(29 * 24 * time.Hour)
	excluded, err := db.IsExcluded(ctx, "old news", "news")
	if err != nil {
		t.Fatalf("IsExcluded failed: %v", err)
	}
	if !excluded {
		t.Error("keyword should still be excluded inside the TTL window")
	}

	// Past the window: eligible again, record purged.
	now = now.Add(2 * 24 * time.Hour)
	excluded, err = db.IsExcluded(ctx, "old news", "news")
	if err != nil {
		t.Fatalf("IsExcluded failed: %v", err)
	}
	if excluded {
		t.Error("keyword should be eligible after TTL expiry")
	}

	count, _ := db.CountRecords(ctx)
	if count != 0 {
		t.Errorf("expired record should be purged, got %d records", count)
	}
}

func TestSeasonalYearScope(t *testing.T) {
	now := time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	db := newTestDB(t, WithClock(func() time.Time { return clock() }))
	ctx := context.Background()

	if err := db.MarkUsed(ctx, "christmas gift guide 2025", "seasonal"); err != nil {
		t.Fatalf("MarkUsed failed: %v", err)
	}

	excluded, err := db.IsExcluded(ctx, "christmas gift guide 2025", "seasonal")
	if err != nil {
		t.Fatalf("IsExcluded failed: %v", err)
	}
	if !excluded {
		t.Error("seasonal keyword should be excluded within its scope year")
	}

	// Next year the same keyword is selectable again, even long past
	// the rolling TTL of other sources.
	now = time.Date(2026, 12, 1, 12, 0, 0, 0, time.UTC)
	excluded, err = db.IsExcluded(ctx, "christmas gift guide 2025", "seasonal")
	if err != nil {
		t.Fatalf("IsExcluded failed: %v", err)
	}
	if excluded {
		t.Error("seasonal keyword should be selectable again the following year")
	}
}

func TestSeasonalNotBoundByTTL(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	db := newTestDB(t, WithTTL(24*time.Hour), WithClock(func() time.Time { return clock() }))
	ctx := context.Background()

	if err := db.MarkUsed(ctx, "new year resolutions", "seasonal"); err != nil {
		t.Fatalf("MarkUsed failed: %v", err)
	}

	// Months later, same year: still excluded despite a tiny TTL.
	now = now.Add(120 * 24 * time.Hour)
	excluded, err := db.IsExcluded(ctx, "new year resolutions", "seasonal")
	if err != nil {
		t.Fatalf("IsExcluded failed: %v", err)
	}
	if !excluded {
		t.Error("seasonal exclusion is year-scoped, not TTL-scoped")
	}
}

func TestPurgeExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	db := newTestDB(t, WithTTL(30*24*time.Hour), WithClock(func() time.Time { return clock() }))
	ctx := context.Background()

	db.MarkUsed(ctx, "stale topic", "news")
	db.MarkUsed(ctx, "last year seasonal", "seasonal")

	now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	db.MarkUsed(ctx, "fresh topic", "trend")

	if err := db.PurgeExpired(ctx); err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}

	count, err := db.CountRecords(ctx)
	if err != nil {
		t.Fatalf("CountRecords failed: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d records after purge, want 1", count)
	}
}

func TestSettings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.GetSetting(ctx, "missing"); err != ErrNotFound {
		t.Errorf("GetSetting(missing) error = %v, want ErrNotFound", err)
	}

	if err := db.SetSetting(ctx, "evergreen_index", "3"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := db.SetSetting(ctx, "evergreen_index", "4"); err != nil {
		t.Fatalf("SetSetting overwrite failed: %v", err)
	}

	value, err := db.GetSetting(ctx, "evergreen_index")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if value != "4" {
		t.Errorf("GetSetting = %q, want '4'", value)
	}
}
