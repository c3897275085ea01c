package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/castellan-media/castellan/internal/taskman"
)

func TestCleanRemovesOnlyExpired(t *testing.T) {
	dir := t.TempDir()

	oldPath := filepath.Join(dir, "stale.jpg")
	if err := os.WriteFile(oldPath, []byte("stale-data"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldPath, old, old); err != nil {
		t.Fatal(err)
	}

	freshPath := filepath.Join(dir, "fresh.jpg")
	if err := os.WriteFile(freshPath, []byte("fresh"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCleaner(dir, 1, taskman.New())
	h := c.Run()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := h.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}

	res := result.(*Result)
	if res.Removed != 1 {
		t.Fatalf("removed %d files, want 1", res.Removed)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatal("stale file still present")
	}
	if _, err := os.Stat(freshPath); err != nil {
		t.Fatal("fresh file was removed")
	}
}

func TestCleanEmptyDir(t *testing.T) {
	c := NewCleaner(t.TempDir(), 1, taskman.New())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := c.Run().Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res := result.(*Result); res.Removed != 0 {
		t.Fatalf("removed %d files from empty dir", res.Removed)
	}
}
