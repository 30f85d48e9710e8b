// Package watch notifies about changes to files on disk.
package watch

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after which a burst of events on a
// watched file is reported.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reports writes to a set of files. Editors often save through a
// rename, so the parent directories are watched and events are filtered by
// file name.
type Watcher struct {
	fs       *fsnotify.Watcher
	files    map[string]struct{}
	debounce time.Duration
	callback func(fsnotify.Event)

	mu    sync.Mutex
	timer *time.Timer
	last  fsnotify.Event

	done chan struct{}

	logger *log.Logger
}

// Files starts watching paths. callback runs on a separate goroutine, once per
// burst of events, with the last event of the burst.
func Files(paths []string, debounce time.Duration, callback func(fsnotify.Event)) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("watch: no file to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w := &Watcher{
		fs:       fsw,
		files:    make(map[string]struct{}, len(paths)),
		debounce: debounce,
		callback: callback,
		done:     make(chan struct{}),
		logger:   log.Default(),
	}
	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watching directory %s: %w", dir, err)
		}
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher. A pending notification is dropped.
func (w *Watcher) Close() error {
	close(w.done)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fs.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}

func (w *Watcher) fire() {
	w.mu.Lock()
	event := w.last
	w.timer = nil
	w.mu.Unlock()
	select {
	case <-w.done:
		return
	default:
	}
	w.callback(event)
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.mu.Lock()
			w.last = event
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(w.debounce, w.fire)
			w.mu.Unlock()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Println("watch error:", err)

		case <-w.done:
			return
		}
	}
}
