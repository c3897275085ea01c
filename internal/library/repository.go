package library

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateLibrary(lib *Library) error {
	lib.ID = uuid.New()
	return r.db.QueryRow(`
		INSERT INTO libraries (id, name, library_type, path, watch_enabled)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at`,
		lib.ID, lib.Name, lib.LibraryType, lib.Path, lib.WatchEnabled,
	).Scan(&lib.CreatedAt, &lib.UpdatedAt)
}

func (r *Repository) GetLibrary(id uuid.UUID) (*Library, error) {
	lib := &Library{}
	err := r.db.QueryRow(`
		SELECT id, name, library_type, path, watch_enabled, created_at, updated_at
		FROM libraries WHERE id=$1`, id,
	).Scan(&lib.ID, &lib.Name, &lib.LibraryType, &lib.Path, &lib.WatchEnabled,
		&lib.CreatedAt, &lib.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("library not found: %w", err)
	}
	return lib, nil
}

func (r *Repository) ListLibraries() ([]Library, error) {
	rows, err := r.db.Query(`
		SELECT id, name, library_type, path, watch_enabled, created_at, updated_at
		FROM libraries ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Library
	for rows.Next() {
		var lib Library
		if err := rows.Scan(&lib.ID, &lib.Name, &lib.LibraryType, &lib.Path,
			&lib.WatchEnabled, &lib.CreatedAt, &lib.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, lib)
	}
	return out, rows.Err()
}

func (r *Repository) WatchEnabledLibraries() ([]Library, error) {
	rows, err := r.db.Query(`
		SELECT id, name, library_type, path, watch_enabled, created_at, updated_at
		FROM libraries WHERE watch_enabled ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Library
	for rows.Next() {
		var lib Library
		if err := rows.Scan(&lib.ID, &lib.Name, &lib.LibraryType, &lib.Path,
			&lib.WatchEnabled, &lib.CreatedAt, &lib.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, lib)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteLibrary(id uuid.UUID) error {
	_, err := r.db.Exec(`DELETE FROM libraries WHERE id=$1`, id)
	return err
}

// UpsertMediaItem inserts a media item or refreshes the probed fields when a
// row for the same file path already exists.
func (r *Repository) UpsertMediaItem(item *MediaItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.db.QueryRow(`
		INSERT INTO media_items (id, library_id, file_path, title, year, media_type,
		       duration_seconds, video_codec, audio_codec, file_size)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (file_path) DO UPDATE SET
			title=EXCLUDED.title, year=EXCLUDED.year,
			duration_seconds=EXCLUDED.duration_seconds,
			video_codec=EXCLUDED.video_codec, audio_codec=EXCLUDED.audio_codec,
			file_size=EXCLUDED.file_size, updated_at=now()
		RETURNING id, created_at, updated_at`,
		item.ID, item.LibraryID, item.FilePath, item.Title, item.Year, item.MediaType,
		item.DurationSeconds, item.VideoCodec, item.AudioCodec, item.FileSize,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
}

func (r *Repository) GetMediaByPath(path string) (*MediaItem, error) {
	item := &MediaItem{}
	err := r.db.QueryRow(`
		SELECT id, library_id, file_path, title, year, media_type, duration_seconds,
		       video_codec, audio_codec, file_size, fingerprint, blurhash, tmdb_id,
		       created_at, updated_at
		FROM media_items WHERE file_path=$1`, path,
	).Scan(&item.ID, &item.LibraryID, &item.FilePath, &item.Title, &item.Year,
		&item.MediaType, &item.DurationSeconds, &item.VideoCodec, &item.AudioCodec,
		&item.FileSize, &item.Fingerprint, &item.Blurhash, &item.TMDBID,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("media item not found: %w", err)
	}
	return item, nil
}

func (r *Repository) ListMediaForLibrary(libraryID uuid.UUID) ([]MediaItem, error) {
	rows, err := r.db.Query(`
		SELECT id, library_id, file_path, title, year, media_type, duration_seconds,
		       video_codec, audio_codec, file_size, fingerprint, blurhash, tmdb_id,
		       created_at, updated_at
		FROM media_items WHERE library_id=$1 ORDER BY title`, libraryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MediaItem
	for rows.Next() {
		var item MediaItem
		if err := rows.Scan(&item.ID, &item.LibraryID, &item.FilePath, &item.Title,
			&item.Year, &item.MediaType, &item.DurationSeconds, &item.VideoCodec,
			&item.AudioCodec, &item.FileSize, &item.Fingerprint, &item.Blurhash,
			&item.TMDBID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *Repository) SetFingerprint(id uuid.UUID, fingerprint string) error {
	_, err := r.db.Exec(`UPDATE media_items SET fingerprint=$2, updated_at=now() WHERE id=$1`,
		id, fingerprint)
	return err
}

func (r *Repository) SetBlurhash(id uuid.UUID, hash string) error {
	_, err := r.db.Exec(`UPDATE media_items SET blurhash=$2, updated_at=now() WHERE id=$1`,
		id, hash)
	return err
}

func (r *Repository) SetTMDBID(id uuid.UUID, tmdbID int) error {
	_, err := r.db.Exec(`UPDATE media_items SET tmdb_id=$2, updated_at=now() WHERE id=$1`,
		id, tmdbID)
	return err
}

func (r *Repository) DeleteMediaByPath(path string) error {
	_, err := r.db.Exec(`DELETE FROM media_items WHERE file_path=$1`, path)
	return err
}

func (r *Repository) CountMedia() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM media_items`).Scan(&n)
	return n, err
}
