package tmdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNeedsRefreshMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movie_metadata.json")
	if !NeedsRefresh(path, MetadataMaxAge) {
		t.Fatal("missing file should need refresh")
	}
}

func TestNeedsRefreshFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movie_metadata.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if NeedsRefresh(path, MetadataMaxAge) {
		t.Fatal("file written just now should not need refresh")
	}
}

func TestNeedsRefreshStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poster.jpg")
	if err := os.WriteFile(path, []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * MetadataMaxAge)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
	if !NeedsRefresh(path, MetadataMaxAge) {
		t.Fatal("stale file should need refresh")
	}
	if NeedsRefresh(path, ThumbnailMaxAge) {
		t.Fatal("2 days old is inside the 3-day thumbnail window")
	}
}

func TestWriteReadMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "01_metadata.json")
	in := Episode{ID: 7, Name: "Pilot", SeasonNumber: 1, EpisodeNumber: 1}
	if err := WriteMetadata(path, in); err != nil {
		t.Fatal(err)
	}

	var out Episode
	if err := ReadMetadata(path, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}

	// No .part leftovers after the rename.
	if _, err := os.Stat(path + ".part"); !os.IsNotExist(err) {
		t.Fatal("temp file left behind")
	}
}
