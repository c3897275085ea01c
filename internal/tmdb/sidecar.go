package tmdb

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Refresh windows for on-disk artifacts: metadata and posters refresh daily,
// episode thumbnails every three days.
const (
	MetadataMaxAge  = 24 * time.Hour
	ThumbnailMaxAge = 72 * time.Hour
)

// NeedsRefresh reports whether path is missing or older than maxAge,
// judged by file mtime.
func NeedsRefresh(path string, maxAge time.Duration) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return time.Since(info.ModTime()) > maxAge
}

// WriteMetadata writes v as an indented JSON sidecar, replacing any previous
// content atomically.
func WriteMetadata(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

// ReadMetadata loads a sidecar written by WriteMetadata.
func ReadMetadata(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
