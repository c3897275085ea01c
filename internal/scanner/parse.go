package scanner

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ParsedName is what a media filename yields after parsing.
type ParsedName struct {
	Title   string
	Year    *int
	Season  int
	Episode int
}

// "Title (2020)" with optional trailing junk.
var moviePattern = regexp.MustCompile(`^(.+?)\s*[\(\[]([12]\d{3})[\)\]]`)

// "Show - S01E02" or "Show.S01E02".
var episodePattern = regexp.MustCompile(`(?i)^(.+?)[\s._-]+S(\d{1,3})E(\d{1,3})`)

var mediaExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".m4v": true, ".wmv": true, ".webm": true,
	".ts": true, ".m2ts": true, ".mpg": true, ".mpeg": true,
}

// IsMediaFile reports whether a path looks like a video file.
func IsMediaFile(path string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(path))]
}

// ParseMovieName extracts title and year from a movie file or folder name.
// Without a recognizable year the whole cleaned name becomes the title.
func ParseMovieName(name string) ParsedName {
	base := stripExtension(name)
	if m := moviePattern.FindStringSubmatch(base); m != nil {
		year, _ := strconv.Atoi(m[2])
		return ParsedName{Title: cleanTitle(m[1]), Year: &year}
	}
	return ParsedName{Title: cleanTitle(base)}
}

// ParseEpisodeName extracts show title, season and episode from an episode
// filename. Season and Episode stay zero when the name has no SxxEyy marker.
func ParseEpisodeName(name string) ParsedName {
	base := stripExtension(name)
	if m := episodePattern.FindStringSubmatch(base); m != nil {
		season, _ := strconv.Atoi(m[2])
		episode, _ := strconv.Atoi(m[3])
		return ParsedName{Title: cleanTitle(m[1]), Season: season, Episode: episode}
	}
	return ParsedName{Title: cleanTitle(base)}
}

func stripExtension(name string) string {
	base := filepath.Base(name)
	if IsMediaFile(base) {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base
}

func cleanTitle(s string) string {
	s = strings.NewReplacer(".", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
