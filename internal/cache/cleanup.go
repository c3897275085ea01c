package cache

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/castellan-media/castellan/internal/taskman"
)

// Cleaner prunes expired files from the cache directory as cache_cleanup
// tasks. cache_cleanup shares the bandwidth exclusivity group with downloads,
// so pruning never races active image downloads writing into the same tree.
type Cleaner struct {
	dir   string
	ttl   time.Duration
	tasks *taskman.Manager
}

func NewCleaner(dir string, ttlDays int, tasks *taskman.Manager) *Cleaner {
	return &Cleaner{dir: dir, ttl: time.Duration(ttlDays) * 24 * time.Hour, tasks: tasks}
}

// Result summarizes one cleanup pass.
type Result struct {
	Removed int   `json:"removed"`
	Freed   int64 `json:"freed_bytes"`
}

// Run submits one cleanup pass.
func (c *Cleaner) Run() *taskman.Handle {
	return c.tasks.Submit(taskman.TypeCacheCleanup, "cache cleanup", func() (any, error) {
		return c.clean()
	})
}

func (c *Cleaner) clean() (*Result, error) {
	cutoff := time.Now().Add(-c.ttl)
	res := &Result{}

	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			log.Printf("Cache: removing %s: %v", path, err)
			return nil
		}
		res.Removed++
		res.Freed += info.Size()
		return nil
	})
	if err != nil {
		return res, err
	}

	log.Printf("Cache: cleanup removed %d files, freed %d MiB", res.Removed, res.Freed/(1<<20))
	return res, nil
}
