package scanner

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/castellan-media/castellan/internal/artwork"
	"github.com/castellan-media/castellan/internal/fingerprint"
	"github.com/castellan-media/castellan/internal/library"
	"github.com/castellan-media/castellan/internal/taskman"
	"github.com/castellan-media/castellan/internal/tmdb"
)

// Scanner walks library folders and turns what it finds into media rows,
// fingerprints, artwork sidecars and TMDB downloads. Every piece of work runs
// through the task manager: the library walk is one media_scan task that fans
// out movie_scan / tv_scan tasks, which in turn fan out metadata_hash,
// blurhash and download tasks.
type Scanner struct {
	ffprobePath string
	repo        *library.Repository
	tasks       *taskman.Manager
	tmdb        *tmdb.Client // nil when no API key is configured

	// probe is swappable so tests can avoid the real ffprobe binary.
	probe func(ctx context.Context, path string) (*ProbeResult, error)
}

func New(ffprobePath string, repo *library.Repository, tasks *taskman.Manager, tmdbClient *tmdb.Client) *Scanner {
	s := &Scanner{
		ffprobePath: ffprobePath,
		repo:        repo,
		tasks:       tasks,
		tmdb:        tmdbClient,
	}
	s.probe = func(ctx context.Context, path string) (*ProbeResult, error) {
		return Probe(ctx, s.ffprobePath, path)
	}
	return s
}

// ScanLibrary submits a full walk of the library as a media_scan task and
// returns its handle. The walk itself only enumerates titles; per-title work
// is fanned out as further tasks.
func (s *Scanner) ScanLibrary(lib *library.Library) *taskman.Handle {
	return s.tasks.Submit(taskman.TypeMediaScan, "scan library "+lib.Name, func() (any, error) {
		return s.scanLibrary(lib)
	})
}

// ScanPath submits scan work for a single file, e.g. from a watcher event.
func (s *Scanner) ScanPath(lib *library.Library, path string) *taskman.Handle {
	if lib.LibraryType == library.TypeShows {
		return s.tasks.Submit(taskman.TypeTVScan, "scan "+filepath.Base(path), func() (any, error) {
			return nil, s.scanEpisodeFile(lib, path)
		})
	}
	return s.tasks.Submit(taskman.TypeMovieScan, "scan "+filepath.Base(path), func() (any, error) {
		return nil, s.scanMovieFile(lib, path)
	})
}

// RemovePath drops the media row for a deleted file.
func (s *Scanner) RemovePath(path string) error {
	return s.repo.DeleteMediaByPath(path)
}

func (s *Scanner) scanLibrary(lib *library.Library) (any, error) {
	switch lib.LibraryType {
	case library.TypeShows:
		return s.fanOutShows(lib)
	default:
		return s.fanOutMovies(lib)
	}
}

func (s *Scanner) fanOutMovies(lib *library.Library) (int, error) {
	count := 0
	err := filepath.WalkDir(lib.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Printf("Scanner: skipping %s: %v", path, err)
			return nil
		}
		if d.IsDir() || !IsMediaFile(path) {
			return nil
		}
		count++
		p := path
		s.tasks.Submit(taskman.TypeMovieScan, "scan "+filepath.Base(p), func() (any, error) {
			return nil, s.scanMovieFile(lib, p)
		})
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("walk %s: %w", lib.Path, err)
	}
	log.Printf("Scanner: library %q: queued %d movie scans", lib.Name, count)
	return count, nil
}

func (s *Scanner) fanOutShows(lib *library.Library) (int, error) {
	entries, err := os.ReadDir(lib.Path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", lib.Path, err)
	}

	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		count++
		showDir := filepath.Join(lib.Path, e.Name())
		name := e.Name()
		s.tasks.Submit(taskman.TypeTVScan, "scan show "+name, func() (any, error) {
			return nil, s.scanShow(lib, showDir)
		})
	}
	log.Printf("Scanner: library %q: queued %d show scans", lib.Name, count)
	return count, nil
}

func (s *Scanner) scanMovieFile(lib *library.Library, path string) error {
	probe, err := s.probe(context.Background(), path)
	if err != nil {
		return err
	}

	parsed := ParseMovieName(path)
	item := s.buildItem(lib, path, parsed, "movie", probe)
	if err := s.repo.UpsertMediaItem(item); err != nil {
		return fmt.Errorf("upsert %s: %w", path, err)
	}

	s.queueFingerprint(item)
	s.queueBlurhash(item, filepath.Join(filepath.Dir(path), "poster.jpg"))
	if s.tmdb != nil {
		dir := filepath.Dir(path)
		s.tasks.Submit(taskman.TypeDownload, "tmdb assets for "+parsed.Title, func() (any, error) {
			return nil, s.refreshMovieAssets(item, parsed, dir)
		})
	}
	return nil
}

func (s *Scanner) scanEpisodeFile(lib *library.Library, path string) error {
	probe, err := s.probe(context.Background(), path)
	if err != nil {
		return err
	}

	parsed := ParseEpisodeName(path)
	title := parsed.Title
	if parsed.Season > 0 {
		title = fmt.Sprintf("%s S%02dE%02d", parsed.Title, parsed.Season, parsed.Episode)
	}
	item := s.buildItem(lib, path, ParsedName{Title: title, Year: parsed.Year}, "episode", probe)
	if err := s.repo.UpsertMediaItem(item); err != nil {
		return fmt.Errorf("upsert %s: %w", path, err)
	}

	s.queueFingerprint(item)
	return nil
}

func (s *Scanner) scanShow(lib *library.Library, showDir string) error {
	err := filepath.WalkDir(showDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Printf("Scanner: skipping %s: %v", path, err)
			return nil
		}
		if d.IsDir() || !IsMediaFile(path) {
			return nil
		}
		if err := s.scanEpisodeFile(lib, path); err != nil {
			log.Printf("Scanner: episode %s: %v", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", showDir, err)
	}

	s.queueBlurhash(nil, filepath.Join(showDir, "show_poster.jpg"))
	if s.tmdb != nil {
		name := filepath.Base(showDir)
		s.tasks.Submit(taskman.TypeDownload, "tmdb assets for "+name, func() (any, error) {
			return nil, s.refreshShowAssets(showDir, name)
		})
	}
	return nil
}

func (s *Scanner) buildItem(lib *library.Library, path string, parsed ParsedName, mediaType string, probe *ProbeResult) *library.MediaItem {
	item := &library.MediaItem{
		LibraryID: lib.ID,
		FilePath:  path,
		Title:     parsed.Title,
		Year:      parsed.Year,
		MediaType: mediaType,
	}
	if probe.Duration > 0 {
		d := probe.Duration
		item.DurationSeconds = &d
	}
	if probe.VideoCodec != "" {
		v := probe.VideoCodec
		item.VideoCodec = &v
	}
	if probe.AudioCodec != "" {
		a := probe.AudioCodec
		item.AudioCodec = &a
	}
	if info, err := os.Stat(path); err == nil {
		size := info.Size()
		item.FileSize = &size
	}
	return item
}

func (s *Scanner) queueFingerprint(item *library.MediaItem) {
	id, path, title := item.ID, item.FilePath, item.Title
	s.tasks.Submit(taskman.TypeMetadataHash, "fingerprint "+title, func() (any, error) {
		fp, err := fingerprint.File(path)
		if err != nil {
			return nil, err
		}
		return fp, s.repo.SetFingerprint(id, fp)
	})
}

// GenerateCollage submits a task that tiles every library poster into one
// wall image at dest. It runs in the blurhash class: heavy image work that
// must not overlap scans or hashing on the same storage.
func (s *Scanner) GenerateCollage(dest string) *taskman.Handle {
	return s.tasks.Submit(taskman.TypeBlurhash, "poster collage", func() (any, error) {
		return s.buildCollage(dest)
	})
}

func (s *Scanner) buildCollage(dest string) (int, error) {
	libs, err := s.repo.ListLibraries()
	if err != nil {
		return 0, fmt.Errorf("listing libraries: %w", err)
	}

	var posters []string
	for _, lib := range libs {
		name := "poster.jpg"
		if lib.LibraryType == library.TypeShows {
			name = "show_poster.jpg"
		}
		posters = append(posters, artwork.CollectPosters(lib.Path, name)...)
	}
	if len(posters) == 0 {
		return 0, fmt.Errorf("no posters in any library")
	}

	if err := artwork.Collage(posters, dest); err != nil {
		return 0, err
	}
	log.Printf("Scanner: collage rebuilt from %d posters at %s", len(posters), dest)
	return len(posters), nil
}

// queueBlurhash submits blurhash work for an image if it exists and has no
// current sidecar. item may be nil for show-level artwork not tied to a row.
func (s *Scanner) queueBlurhash(item *library.MediaItem, imagePath string) {
	if _, err := os.Stat(imagePath); err != nil {
		return
	}
	if artwork.HasSidecar(imagePath) {
		return
	}
	s.tasks.Submit(taskman.TypeBlurhash, "blurhash "+filepath.Base(filepath.Dir(imagePath)), func() (any, error) {
		hash, err := artwork.WriteSidecar(imagePath)
		if err != nil {
			return nil, err
		}
		if item != nil {
			return hash, s.repo.SetBlurhash(item.ID, hash)
		}
		return hash, nil
	})
}
