package kv

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "unibox.db"), testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SetGet(t *testing.T) {
	s := openTestStore(t)

	if err := s.Set("message-storage", []byte(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get("message-storage")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte(`[{"id":"a"}]`)) {
		t.Errorf("unexpected value: %s", got)
	}
}

func TestSQLiteStore_GetAbsentReturnsNil(t *testing.T) {
	s := openTestStore(t)

	got, err := s.Get("nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for absent key, got %q", got)
	}
}

func TestSQLiteStore_SetOverwrites(t *testing.T) {
	s := openTestStore(t)

	s.Set("k", []byte("v1"))
	s.Set("k", []byte("v2"))

	got, _ := s.Get("k")
	if string(got) != "v2" {
		t.Errorf("expected latest value, got %q", got)
	}
}

func TestSQLiteStore_Remove(t *testing.T) {
	s := openTestStore(t)

	s.Set("k", []byte("v"))
	if err := s.Remove("k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, _ := s.Get("k")
	if got != nil {
		t.Error("expected key to be gone")
	}

	// Removing an absent key is fine.
	if err := s.Remove("k"); err != nil {
		t.Errorf("remove absent: %v", err)
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unibox.db")

	s, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Set("theme-storage", []byte(`{"themeMode":"dark"}`))
	s.Close()

	s2, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, _ := s2.Get("theme-storage")
	if string(got) != `{"themeMode":"dark"}` {
		t.Errorf("value lost across reopen: %q", got)
	}
}
