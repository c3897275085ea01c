package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/castellan-media/castellan/internal/api"
	"github.com/castellan-media/castellan/internal/auth"
	"github.com/castellan-media/castellan/internal/cache"
	"github.com/castellan-media/castellan/internal/config"
	"github.com/castellan-media/castellan/internal/db"
	"github.com/castellan-media/castellan/internal/library"
	"github.com/castellan-media/castellan/internal/monitor"
	"github.com/castellan-media/castellan/internal/notifications"
	"github.com/castellan-media/castellan/internal/periodic"
	"github.com/castellan-media/castellan/internal/scanner"
	"github.com/castellan-media/castellan/internal/taskman"
	"github.com/castellan-media/castellan/internal/tmdb"
	"github.com/castellan-media/castellan/internal/version"
	"github.com/castellan-media/castellan/internal/watcher"
)

func main() {
	log.Printf("castellan %s starting...", version.Version)

	cfg := config.Load()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		log.Fatalf("schema setup failed: %v", err)
	}

	tasks := taskman.New()
	repo := library.NewRepository(database.DB)
	seedLibraries(repo, cfg)

	var tmdbClient *tmdb.Client
	if cfg.TMDBEnabled() {
		tmdbClient = tmdb.NewClient(cfg.TMDBAPIKey)
	} else {
		log.Println("TMDB disabled: no API key configured")
	}

	sc := scanner.New(cfg.FFprobePath, repo, tasks, tmdbClient)

	var notifier *notifications.Sender
	if cfg.WebhookEnabled() {
		notifier = notifications.NewSender(cfg.WebhookURL, cfg.WebhookType)
	}

	authSvc, err := auth.New(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("auth setup failed: %v", err)
	}

	srv := api.NewServer(cfg, authSvc, repo, tasks, sc, notifier)

	mon := monitor.New(cfg.CacheDir, repo, tasks, srv.Hub().Broadcast)
	cleaner := cache.NewCleaner(cfg.CacheDir, cfg.CacheTTLDays, tasks)

	schedules := periodic.New(mon, cleaner, sc, repo, cfg.CollagePath)
	if err := schedules.Start(); err != nil {
		log.Fatalf("starting schedules: %v", err)
	}
	defer schedules.Stop()

	if fw, err := watcher.New(repo, sc); err != nil {
		log.Printf("filesystem watcher unavailable: %v", err)
	} else {
		fw.Start()
		defer fw.Stop()
	}

	stop := make(chan struct{})
	go srv.Hub().RunStatusLoop(tasks, stop)
	defer close(stop)

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
}

// seedLibraries creates libraries for the configured movie/show directories
// when the table is empty, so a fresh install scans without manual setup.
func seedLibraries(repo *library.Repository, cfg *config.Config) {
	existing, err := repo.ListLibraries()
	if err != nil {
		log.Printf("listing libraries: %v", err)
		return
	}
	if len(existing) > 0 {
		return
	}

	seed := func(paths []string, libType library.LibraryType) {
		for _, p := range paths {
			if _, err := os.Stat(p); err != nil {
				continue
			}
			lib := &library.Library{
				Name:         filepath.Base(p),
				LibraryType:  libType,
				Path:         p,
				WatchEnabled: true,
			}
			if err := repo.CreateLibrary(lib); err != nil {
				log.Printf("seeding library %s: %v", p, err)
			} else {
				log.Printf("seeded %s library at %s", libType, p)
			}
		}
	}
	seed(cfg.MoviesDirs, library.TypeMovies)
	seed(cfg.ShowsDirs, library.TypeShows)
}
