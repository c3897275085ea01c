package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAPIBase   = "https://api.themoviedb.org/3"
	defaultImageBase = "https://image.tmdb.org/t/p/original"
)

// Client is a rate-limited TMDB v3 API client. TMDB allows roughly 40
// requests per 10 seconds per key; the limiter keeps bulk library refreshes
// under that ceiling.
type Client struct {
	apiKey    string
	apiBase   string
	imageBase string
	client    *http.Client
	limiter   *rate.Limiter
}

func NewClient(apiKey string) *Client {
	return NewClientWithBases(apiKey, defaultAPIBase, defaultImageBase)
}

// NewClientWithBases builds a client against explicit API and image hosts.
func NewClientWithBases(apiKey, apiBase, imageBase string) *Client {
	return &Client{
		apiKey:    apiKey,
		apiBase:   apiBase,
		imageBase: imageBase,
		client:    &http.Client{Timeout: 15 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(250*time.Millisecond), 40),
	}
}

type Movie struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	Runtime      int     `json:"runtime"`
}

type Season struct {
	SeasonNumber int    `json:"season_number"`
	EpisodeCount int    `json:"episode_count"`
	PosterPath   string `json:"poster_path"`
}

type Show struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	Overview     string   `json:"overview"`
	FirstAirDate string   `json:"first_air_date"`
	PosterPath   string   `json:"poster_path"`
	BackdropPath string   `json:"backdrop_path"`
	VoteAverage  float64  `json:"vote_average"`
	Seasons      []Season `json:"seasons"`
}

type Episode struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Overview      string `json:"overview"`
	AirDate       string `json:"air_date"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	StillPath     string `json:"still_path"`
}

type searchResult[T any] struct {
	Results []T `json:"results"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dst interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tmdb get %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// SearchMovie returns the best match for a title, optionally narrowed by
// year. If the year-narrowed search is empty it retries without the year.
func (c *Client) SearchMovie(ctx context.Context, title string, year *int) (*Movie, error) {
	q := url.Values{"query": {title}}
	if year != nil && *year > 0 {
		q.Set("year", fmt.Sprintf("%d", *year))
	}

	var res searchResult[Movie]
	if err := c.get(ctx, "/search/movie", q, &res); err != nil {
		return nil, err
	}
	if len(res.Results) == 0 && year != nil && *year > 0 {
		if err := c.get(ctx, "/search/movie", url.Values{"query": {title}}, &res); err != nil {
			return nil, err
		}
	}
	if len(res.Results) == 0 {
		return nil, fmt.Errorf("no tmdb match for %q", title)
	}
	return &res.Results[0], nil
}

func (c *Client) SearchShow(ctx context.Context, name string) (*Show, error) {
	var res searchResult[Show]
	if err := c.get(ctx, "/search/tv", url.Values{"query": {name}}, &res); err != nil {
		return nil, err
	}
	if len(res.Results) == 0 {
		return nil, fmt.Errorf("no tmdb match for %q", name)
	}
	return &res.Results[0], nil
}

func (c *Client) MovieDetails(ctx context.Context, id int) (*Movie, error) {
	m := &Movie{}
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", id), nil, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *Client) ShowDetails(ctx context.Context, id int) (*Show, error) {
	s := &Show{}
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", id), nil, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Client) EpisodeDetails(ctx context.Context, showID, season, episode int) (*Episode, error) {
	e := &Episode{}
	path := fmt.Sprintf("/tv/%d/season/%d/episode/%d", showID, season, episode)
	if err := c.get(ctx, path, nil, e); err != nil {
		return nil, err
	}
	return e, nil
}

// DownloadImage fetches a TMDB image path (e.g. a poster_path) to dest.
// Writes to a temp file first so a failed download never leaves a truncated
// image behind.
func (c *Client) DownloadImage(ctx context.Context, imagePath, dest string) error {
	if imagePath == "" {
		return fmt.Errorf("empty image path")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.imageBase+imagePath, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", imagePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", imagePath, resp.StatusCode)
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}
