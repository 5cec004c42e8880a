package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStageWritesUnderBasePath(t *testing.T) {
	dir := t.TempDir()
	store, err := NewVolumeStore(dir, "")
	if err != nil {
		t.Fatalf("NewVolumeStore error: %v", err)
	}

	ref, err := store.Stage(context.Background(), "input/qwen/abc_donor.png", []byte("payload"))
	if err != nil {
		t.Fatalf("Stage error: %v", err)
	}
	if want := DefaultMountPrefix + "/input/qwen/abc_donor.png"; ref != want {
		t.Fatalf("ref = %q, want %q", ref, want)
	}

	data, err := os.ReadFile(filepath.Join(dir, "input", "qwen", "abc_donor.png"))
	if err != nil {
		t.Fatalf("read staged file: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("staged data = %q", data)
	}
}

func TestStageUsesCustomMountPrefix(t *testing.T) {
	store, err := NewVolumeStore(t.TempDir(), "/mnt/shared/")
	if err != nil {
		t.Fatalf("NewVolumeStore error: %v", err)
	}
	ref, err := store.Stage(context.Background(), "a.png", nil)
	if err != nil {
		t.Fatalf("Stage error: %v", err)
	}
	if ref != "/mnt/shared/a.png" {
		t.Fatalf("ref = %q", ref)
	}
}

func TestStageRejectsTraversal(t *testing.T) {
	store, err := NewVolumeStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewVolumeStore error: %v", err)
	}
	for _, key := range []string{"", "..", "../escape.png", "a/../../escape.png"} {
		if _, err := store.Stage(context.Background(), key, []byte("x")); err == nil {
			t.Errorf("key %q: expected an error", key)
		}
	}
}

func TestStageHonorsContext(t *testing.T) {
	store, err := NewVolumeStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewVolumeStore error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Stage(ctx, "a.png", []byte("x")); err == nil {
		t.Fatalf("expected a context error")
	}
}

func TestNewVolumeStoreRequiresBasePath(t *testing.T) {
	if _, err := NewVolumeStore("  ", ""); err == nil {
		t.Fatalf("expected an error for empty base path")
	}
}
