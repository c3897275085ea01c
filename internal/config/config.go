package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port          int
	DatabaseURL   string
	AdminPassword string
	CacheDir      string
	CacheTTLDays  int
	FFprobePath   string
	TMDBAPIKey    string
	WebhookURL    string
	WebhookType   string
	CollagePath   string
	MoviesDirs    []string
	ShowsDirs     []string
}

func Load() *Config {
	return &Config{
		Port:          envInt("PORT", 8080),
		DatabaseURL:   env("DATABASE_URL", "postgres://castellan:castellan@db:5432/castellan?sslmode=disable"),
		AdminPassword: env("ADMIN_PASSWORD", "castellan"),
		CacheDir:      env("CACHE_DIR", "/data/cache"),
		CacheTTLDays:  envInt("CACHE_TTL_DAYS", 14),
		FFprobePath:   env("FFPROBE_PATH", "ffprobe"),
		TMDBAPIKey:    env("TMDB_API_KEY", ""),
		WebhookURL:    env("WEBHOOK_URL", ""),
		WebhookType:   env("WEBHOOK_TYPE", "discord"),
		CollagePath:   env("COLLAGE_PATH", "/var/www/html/poster_collage.jpg"),
		MoviesDirs:    envList("MOVIES_DIRS", "/var/www/html/movies"),
		ShowsDirs:     envList("SHOWS_DIRS", "/var/www/html/tv"),
	}
}

func (c *Config) TMDBEnabled() bool {
	return c.TMDBAPIKey != ""
}

func (c *Config) WebhookEnabled() bool {
	return c.WebhookURL != ""
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envList(key, fallback string) []string {
	raw := env(key, fallback)
	var out []string
	for _, p := range strings.Split(raw, ":") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
