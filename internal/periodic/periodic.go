package periodic

import (
	"log"

	"github.com/robfig/cron/v3"

	"github.com/castellan-media/castellan/internal/cache"
	"github.com/castellan-media/castellan/internal/library"
	"github.com/castellan-media/castellan/internal/monitor"
	"github.com/castellan-media/castellan/internal/scanner"
)

// Runner owns the cron schedules that feed recurring work into the task
// manager: monitoring every minute, cache cleanup twice a day, and a full
// metadata refresh scan daily. The cron layer only *submits* tasks; the task
// manager's limits decide when they actually run.
type Runner struct {
	cron        *cron.Cron
	monitor     *monitor.Monitor
	cleaner     *cache.Cleaner
	scanner     *scanner.Scanner
	repo        *library.Repository
	collagePath string
}

func New(mon *monitor.Monitor, cleaner *cache.Cleaner, sc *scanner.Scanner, repo *library.Repository, collagePath string) *Runner {
	return &Runner{
		cron:        cron.New(),
		monitor:     mon,
		cleaner:     cleaner,
		scanner:     sc,
		repo:        repo,
		collagePath: collagePath,
	}
}

func (r *Runner) Start() error {
	if _, err := r.cron.AddFunc("@every 1m", func() { r.monitor.Run() }); err != nil {
		return err
	}
	if _, err := r.cron.AddFunc("@every 12h", func() { r.cleaner.Run() }); err != nil {
		return err
	}
	if _, err := r.cron.AddFunc("@every 24h", r.scanAll); err != nil {
		return err
	}
	if _, err := r.cron.AddFunc("@every 24h", func() { r.scanner.GenerateCollage(r.collagePath) }); err != nil {
		return err
	}

	r.cron.Start()
	log.Println("Periodic: schedules started (monitor 1m, cleanup 12h, rescan and collage 24h)")
	return nil
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *Runner) scanAll() {
	libs, err := r.repo.ListLibraries()
	if err != nil {
		log.Printf("Periodic: listing libraries for rescan: %v", err)
		return
	}
	for i := range libs {
		r.scanner.ScanLibrary(&libs[i])
	}
}
