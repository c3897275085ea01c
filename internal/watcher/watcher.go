package watcher

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/castellan-media/castellan/internal/library"
	"github.com/castellan-media/castellan/internal/scanner"
	"github.com/castellan-media/castellan/internal/taskman"
)

// mediaScanner is the slice of the scanner the watcher drives.
type mediaScanner interface {
	ScanPath(lib *library.Library, path string) *taskman.Handle
	RemovePath(path string) error
}

// Watcher monitors library folders and feeds create/remove events into the
// scanner, which turns them into task manager work.
type Watcher struct {
	repo    *library.Repository
	scanner mediaScanner
	fw      *fsnotify.Watcher
	delay   time.Duration

	mu       sync.Mutex
	watched  map[string]uuid.UUID // directory path → library ID
	libs     map[uuid.UUID]*library.Library
	debounce map[string]*time.Timer
	stop     chan struct{}
}

func New(repo *library.Repository, sc *scanner.Scanner) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		repo:     repo,
		scanner:  sc,
		fw:       fw,
		delay:    time.Second,
		watched:  make(map[string]uuid.UUID),
		libs:     make(map[uuid.UUID]*library.Library),
		debounce: make(map[string]*time.Timer),
		stop:     make(chan struct{}),
	}, nil
}

// Start loads watch-enabled libraries and begins processing events.
func (w *Watcher) Start() {
	go w.eventLoop()
	w.Refresh()
	log.Println("[watcher] filesystem watcher started")
}

func (w *Watcher) Stop() {
	close(w.stop)
	w.fw.Close()
}

// Refresh reloads the watched folder set from the library table.
func (w *Watcher) Refresh() {
	libs, err := w.repo.WatchEnabledLibraries()
	if err != nil {
		log.Printf("[watcher] loading watch-enabled libraries: %v", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	desired := make(map[string]uuid.UUID, len(libs))
	w.libs = make(map[uuid.UUID]*library.Library, len(libs))
	for i := range libs {
		lib := libs[i]
		desired[lib.Path] = lib.ID
		w.libs[lib.ID] = &lib
	}

	for p := range w.watched {
		if _, ok := desired[p]; !ok {
			w.fw.Remove(p)
			delete(w.watched, p)
		}
	}

	for p, libID := range desired {
		if _, ok := w.watched[p]; ok {
			continue
		}
		if err := w.addRecursive(p, libID); err != nil {
			log.Printf("[watcher] adding %s: %v", p, err)
		}
	}

	log.Printf("[watcher] watching %d paths across %d libraries", len(w.watched), len(libs))
}

func (w *Watcher) addRecursive(root string, libID uuid.UUID) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible dirs
		}
		if info.IsDir() {
			if err := w.fw.Add(path); err != nil {
				return nil
			}
			w.watched[path] = libID
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("[watcher] error: %v", err)
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") ||
		strings.HasSuffix(base, ".part") {
		return
	}

	isCreate := event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
	isRemove := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	if !isCreate && !isRemove {
		return
	}

	// New directories join the watch list.
	if isCreate {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if libID := w.resolveLibrary(event.Name); libID != uuid.Nil {
				w.mu.Lock()
				w.fw.Add(event.Name)
				w.watched[event.Name] = libID
				w.mu.Unlock()
			}
			return
		}
	}

	if !scanner.IsMediaFile(event.Name) {
		return
	}

	libID := w.resolveLibrary(event.Name)
	if libID == uuid.Nil {
		return
	}

	// Debounce: copies and renames fire bursts of events per file.
	w.mu.Lock()
	if timer, ok := w.debounce[event.Name]; ok {
		timer.Stop()
	}
	name := event.Name
	w.debounce[name] = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		delete(w.debounce, name)
		lib := w.libs[libID]
		w.mu.Unlock()

		if lib == nil {
			return
		}
		// A rename away from the library raises the create flag too; only a
		// file that still exists gets a scan, anything else loses its row.
		if isCreate {
			if _, err := os.Stat(name); err == nil {
				log.Printf("[watcher] new file %s, submitting scan", name)
				w.scanner.ScanPath(lib, name)
				return
			}
		}
		log.Printf("[watcher] removed file %s, dropping media row", name)
		if err := w.scanner.RemovePath(name); err != nil {
			log.Printf("[watcher] removing %s: %v", name, err)
		}
	})
	w.mu.Unlock()
}

func (w *Watcher) resolveLibrary(path string) uuid.UUID {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(path)
	for dir != "/" && dir != "." {
		if libID, ok := w.watched[dir]; ok {
			return libID
		}
		dir = filepath.Dir(dir)
	}
	return uuid.Nil
}
