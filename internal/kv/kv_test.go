package kv

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sipeed/picobridge/internal/oracle"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.enc")
	store := New(path, oracle.NewStub(), "app/registry")

	payload := []byte(`{"records":[{"phone_number":"+14155550100"}]}`)
	if err := store.Save(context.Background(), payload); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round-trip mismatch: got %q want %q", got, payload)
	}
}

func TestLoadMissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.enc")
	store := New(path, oracle.NewStub(), "app/registry")

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing file, got %q", got)
	}
}

func TestTamperDetection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.enc")
	store := New(path, oracle.NewStub(), "app/registry")

	if err := store.Save(context.Background(), []byte("hello world")); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	raw[len(raw)-1] ^= 0xFF
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err = store.Load(context.Background())
	if err == nil {
		t.Fatal("expected error after bit flip")
	}
	var kvErr *Error
	if !asError(err, &kvErr) || kvErr.Kind != KindTampered {
		t.Fatalf("expected KindTampered, got %v", err)
	}
}

func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
