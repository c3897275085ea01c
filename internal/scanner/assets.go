package scanner

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/castellan-media/castellan/internal/library"
	"github.com/castellan-media/castellan/internal/tmdb"
)

// refreshMovieAssets brings a movie directory's TMDB artifacts up to date:
// movie_metadata.json, poster.jpg and backdrop.jpg, each refreshed only when
// missing or older than its window.
func (s *Scanner) refreshMovieAssets(item *library.MediaItem, parsed ParsedName, dir string) error {
	ctx := context.Background()

	movie, err := s.tmdb.SearchMovie(ctx, parsed.Title, parsed.Year)
	if err != nil {
		return err
	}
	if err := s.repo.SetTMDBID(item.ID, movie.ID); err != nil {
		log.Printf("Scanner: storing tmdb id for %q: %v", item.Title, err)
	}

	metaPath := filepath.Join(dir, "movie_metadata.json")
	if tmdb.NeedsRefresh(metaPath, tmdb.MetadataMaxAge) {
		details, err := s.tmdb.MovieDetails(ctx, movie.ID)
		if err != nil {
			return err
		}
		if err := tmdb.WriteMetadata(metaPath, details); err != nil {
			return err
		}
	}

	for file, imagePath := range map[string]string{
		"poster.jpg":   movie.PosterPath,
		"backdrop.jpg": movie.BackdropPath,
	} {
		if imagePath == "" {
			continue
		}
		dest := filepath.Join(dir, file)
		if !tmdb.NeedsRefresh(dest, tmdb.MetadataMaxAge) {
			continue
		}
		if err := s.tmdb.DownloadImage(ctx, imagePath, dest); err != nil {
			log.Printf("Scanner: download %s for %q: %v", file, item.Title, err)
			continue
		}
		if file == "poster.jpg" {
			s.queueBlurhash(item, dest)
		}
	}
	return nil
}

// refreshShowAssets mirrors the original TV flow: show-level metadata and
// artwork, then per existing season directory the season poster, episode
// metadata (daily window) and episode thumbnails (3-day window).
func (s *Scanner) refreshShowAssets(showDir, name string) error {
	ctx := context.Background()

	match, err := s.tmdb.SearchShow(ctx, name)
	if err != nil {
		return err
	}
	show, err := s.tmdb.ShowDetails(ctx, match.ID)
	if err != nil {
		return err
	}

	metaPath := filepath.Join(showDir, "show_metadata.json")
	if tmdb.NeedsRefresh(metaPath, tmdb.MetadataMaxAge) {
		if err := tmdb.WriteMetadata(metaPath, show); err != nil {
			return err
		}
	}

	for file, imagePath := range map[string]string{
		"show_poster.jpg":   show.PosterPath,
		"show_backdrop.jpg": show.BackdropPath,
	} {
		if imagePath == "" {
			continue
		}
		dest := filepath.Join(showDir, file)
		if !tmdb.NeedsRefresh(dest, tmdb.MetadataMaxAge) {
			continue
		}
		if err := s.tmdb.DownloadImage(ctx, imagePath, dest); err != nil {
			log.Printf("Scanner: download %s for %q: %v", file, name, err)
			continue
		}
		if file == "show_poster.jpg" {
			s.queueBlurhash(nil, dest)
		}
	}

	for _, season := range show.Seasons {
		seasonDir := filepath.Join(showDir, fmt.Sprintf("Season %d", season.SeasonNumber))
		if _, err := os.Stat(seasonDir); err != nil {
			// Only seasons present on disk get artifacts.
			continue
		}
		s.refreshSeasonAssets(ctx, show, season, seasonDir, name)
	}
	return nil
}

func (s *Scanner) refreshSeasonAssets(ctx context.Context, show *tmdb.Show, season tmdb.Season, seasonDir, name string) {
	posterPath := filepath.Join(seasonDir, "season_poster.jpg")
	if season.PosterPath != "" && tmdb.NeedsRefresh(posterPath, tmdb.MetadataMaxAge) {
		if err := s.tmdb.DownloadImage(ctx, season.PosterPath, posterPath); err != nil {
			log.Printf("Scanner: season %d poster for %q: %v", season.SeasonNumber, name, err)
		}
	}

	for ep := 1; ep <= season.EpisodeCount; ep++ {
		metaPath := filepath.Join(seasonDir, fmt.Sprintf("%02d_metadata.json", ep))
		thumbPath := filepath.Join(seasonDir, fmt.Sprintf("%02d - Thumbnail.jpg", ep))

		needMeta := tmdb.NeedsRefresh(metaPath, tmdb.MetadataMaxAge)
		needThumb := tmdb.NeedsRefresh(thumbPath, tmdb.ThumbnailMaxAge)
		if !needMeta && !needThumb {
			continue
		}

		episode, err := s.tmdb.EpisodeDetails(ctx, show.ID, season.SeasonNumber, ep)
		if err != nil {
			log.Printf("Scanner: episode S%02dE%02d of %q: %v", season.SeasonNumber, ep, name, err)
			continue
		}
		if needMeta {
			if err := tmdb.WriteMetadata(metaPath, episode); err != nil {
				log.Printf("Scanner: episode metadata S%02dE%02d of %q: %v", season.SeasonNumber, ep, name, err)
			}
		}
		if needThumb && episode.StillPath != "" {
			if err := s.tmdb.DownloadImage(ctx, episode.StillPath, thumbPath); err != nil {
				log.Printf("Scanner: episode thumbnail S%02dE%02d of %q: %v", season.SeasonNumber, ep, name, err)
			}
		}
	}
}
