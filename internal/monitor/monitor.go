package monitor

import (
	"io/fs"
	"log"
	"path/filepath"
	"runtime"
	"time"

	"github.com/castellan-media/castellan/internal/library"
	"github.com/castellan-media/castellan/internal/taskman"
)

// Sample is one system monitoring observation.
type Sample struct {
	TakenAt    time.Time      `json:"taken_at"`
	Goroutines int            `json:"goroutines"`
	HeapBytes  uint64         `json:"heap_bytes"`
	CacheBytes int64          `json:"cache_bytes"`
	MediaItems int            `json:"media_items"`
	Tasks      taskman.Status `json:"tasks"`
}

// Monitor samples process and library health as system_monitoring tasks.
type Monitor struct {
	cacheDir string
	repo     *library.Repository
	tasks    *taskman.Manager
	publish  func(event string, data interface{})
}

// New creates a monitor. publish may be nil; when set, each sample is pushed
// to it (the websocket hub) under the "monitor:sample" event.
func New(cacheDir string, repo *library.Repository, tasks *taskman.Manager, publish func(string, interface{})) *Monitor {
	return &Monitor{cacheDir: cacheDir, repo: repo, tasks: tasks, publish: publish}
}

// Run submits one monitoring pass. system_monitoring has a concurrency limit
// of 1, so overlapping timers collapse into queued passes.
func (m *Monitor) Run() *taskman.Handle {
	return m.tasks.Submit(taskman.TypeSystemMonitoring, "system monitoring", func() (any, error) {
		return m.sample(), nil
	})
}

func (m *Monitor) sample() *Sample {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := &Sample{
		TakenAt:    time.Now().UTC(),
		Goroutines: runtime.NumGoroutine(),
		HeapBytes:  mem.HeapAlloc,
		CacheBytes: dirSize(m.cacheDir),
		Tasks:      m.tasks.Status(),
	}
	if n, err := m.repo.CountMedia(); err == nil {
		s.MediaItems = n
	} else {
		log.Printf("Monitor: counting media: %v", err)
	}

	log.Printf("Monitor: %d goroutines, heap %d MiB, cache %d MiB, %d media items, %d running tasks",
		s.Goroutines, s.HeapBytes/(1<<20), s.CacheBytes/(1<<20), s.MediaItems, len(s.Tasks.Running))
	if m.publish != nil {
		m.publish("monitor:sample", s)
	}
	return s
}

func dirSize(root string) int64 {
	var total int64
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
