package artifact

import (
	"errors"
	"testing"
)

func TestMemoryStorePutAndGet(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()

	ref := store.Put("session-1", "resume", []byte("my resume"), "text/plain")
	if ref.Size != len("my resume") {
		t.Fatalf("expected size %d, got %d", len("my resume"), ref.Size)
	}
	if ref.Name != "resume" || ref.SessionID != "session-1" {
		t.Fatalf("unexpected ref: %+v", ref)
	}

	blob, err := store.Get("session-1", "resume")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(blob.Bytes) != "my resume" {
		t.Fatalf("unexpected content: %q", blob.Bytes)
	}
	if blob.MIMEType != "text/plain" {
		t.Fatalf("unexpected mime type: %q", blob.MIMEType)
	}
}

func TestMemoryStoreOverwrites(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()

	store.Put("session-1", "resume", []byte("v1"), "text/plain")
	store.Put("session-1", "resume", []byte("v2"), "text/plain")

	blob, err := store.Get("session-1", "resume")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(blob.Bytes) != "v2" {
		t.Fatalf("expected last write to win, got %q", blob.Bytes)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()

	if _, err := store.Get("session-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSessionsAreIsolated(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	store.Put("session-1", "resume", []byte("one"), "text/plain")

	if _, err := store.Get("session-2", "resume"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other session, got %v", err)
	}
}

func TestMemoryStoreDropSession(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	store.Put("session-1", "resume", []byte("one"), "text/plain")
	store.Put("session-1", "report.md", []byte("two"), "text/markdown")
	store.Put("session-2", "resume", []byte("three"), "text/plain")

	store.DropSession("session-1")

	if _, err := store.Get("session-1", "resume"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected dropped artifact to be gone, got %v", err)
	}
	if _, err := store.Get("session-2", "resume"); err != nil {
		t.Fatalf("other session must survive, got %v", err)
	}
}

func TestMemoryStoreCopiesData(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()

	data := []byte("original")
	store.Put("session-1", "resume", data, "text/plain")
	data[0] = 'X'

	blob, err := store.Get("session-1", "resume")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(blob.Bytes) != "original" {
		t.Fatalf("stored bytes must not alias caller's slice, got %q", blob.Bytes)
	}
}
