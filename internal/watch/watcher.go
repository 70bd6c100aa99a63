// Package watch notifies callers when reference or input files change on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gapfill/internal/logging"
)

// FileWatcher watches individual files for changes.
// It watches each file's parent directory so editors that replace files
// (write to temp + rename) are still observed.
type FileWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	files       map[string]struct{} // absolute paths of interest
	dirs        map[string]struct{} // directories registered with fsnotify
	onChange    func(path string)
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats Stats
}

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Notifications int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// New creates a FileWatcher that calls onChange once per settled change.
func New(onChange func(path string)) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &FileWatcher{
		watcher:     w,
		files:       make(map[string]struct{}),
		dirs:        make(map[string]struct{}),
		onChange:    onChange,
		debounceMap: make(map[string]time.Time),
		debounceDur: 200 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// SetDebounce changes the settle window. Call before Start.
func (fw *FileWatcher) SetDebounce(d time.Duration) {
	fw.mu.Lock()
	fw.debounceDur = d
	fw.mu.Unlock()
}

// Add registers path for change notifications.
func (fw *FileWatcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.files[abs] = struct{}{}
	if _, ok := fw.dirs[dir]; ok {
		return nil
	}
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	fw.dirs[dir] = struct{}{}
	logging.Watch("watching %s (dir %s)", abs, dir)
	return nil
}

// Start begins delivering notifications. It is non-blocking.
func (fw *FileWatcher) Start(ctx context.Context) {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return
	}
	fw.running = true
	fw.mu.Unlock()

	go fw.run(ctx)
}

// Stop stops the watcher and waits for the event loop to exit.
func (fw *FileWatcher) Stop() {
	fw.mu.Lock()
	wasRunning := fw.running
	fw.running = false
	fw.mu.Unlock()

	if wasRunning {
		close(fw.stopCh)
		<-fw.doneCh
	}
	if err := fw.watcher.Close(); err != nil {
		logging.WatchError("error closing watcher: %v", err)
	}
}

// Stats returns a snapshot of watcher activity.
func (fw *FileWatcher) Stats() Stats {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	return fw.stats
}

func (fw *FileWatcher) run(ctx context.Context) {
	defer close(fw.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.stopCh:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchError("watcher error: %v", err)
			fw.mu.Lock()
			fw.stats.Errors++
			fw.mu.Unlock()
		case <-ticker.C:
			fw.flush()
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		name = event.Name
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if _, ok := fw.files[name]; !ok {
		return
	}
	logging.WatchDebug("%s %s", event.Op, name)
	fw.stats.Events++
	fw.stats.LastEventPath = name
	fw.stats.LastEventTime = time.Now()
	fw.debounceMap[name] = time.Now()
}

// flush notifies for paths whose last event is older than the debounce window.
func (fw *FileWatcher) flush() {
	fw.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range fw.debounceMap {
		if now.Sub(at) >= fw.debounceDur {
			settled = append(settled, path)
			delete(fw.debounceMap, path)
		}
	}
	fw.stats.Notifications += len(settled)
	fw.mu.Unlock()

	for _, path := range settled {
		fw.onChange(path)
	}
}
