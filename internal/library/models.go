package library

import (
	"time"

	"github.com/google/uuid"
)

type LibraryType string

const (
	TypeMovies LibraryType = "movies"
	TypeShows  LibraryType = "shows"
)

func (t LibraryType) Valid() bool {
	return t == TypeMovies || t == TypeShows
}

type Library struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	LibraryType  LibraryType `json:"library_type"`
	Path         string      `json:"path"`
	WatchEnabled bool        `json:"watch_enabled"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type MediaItem struct {
	ID              uuid.UUID `json:"id"`
	LibraryID       uuid.UUID `json:"library_id"`
	FilePath        string    `json:"file_path"`
	Title           string    `json:"title"`
	Year            *int      `json:"year,omitempty"`
	MediaType       string    `json:"media_type"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	VideoCodec      *string   `json:"video_codec,omitempty"`
	AudioCodec      *string   `json:"audio_codec,omitempty"`
	FileSize        *int64    `json:"file_size,omitempty"`
	Fingerprint     *string   `json:"fingerprint,omitempty"`
	Blurhash        *string   `json:"blurhash,omitempty"`
	TMDBID          *int      `json:"tmdb_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
