package rbac

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultWatchDelay is how long the watcher waits for writes to settle
const DefaultWatchDelay = 500 * time.Millisecond

// Watcher reloads a catalog when its definition file changes
type Watcher struct {
	catalog *Catalog
	path    string
	delay   time.Duration
	log     *logrus.Logger

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	timer   *time.Timer
	done    chan struct{}
	stopped chan struct{}
}

// NewWatcher creates a watcher for path. The parent directory is watched so
// that editors which replace the file by rename are still seen.
func NewWatcher(catalog *Catalog, path string, delay time.Duration, log *logrus.Logger) (*Watcher, error) {
	if log == nil {
		log = logrus.New()
	}
	if delay <= 0 {
		delay = DefaultWatchDelay
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to resolve catalog path: %w", err)
	}

	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		catalog: catalog,
		path:    abs,
		delay:   delay,
		log:     log,
		watcher: fw,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}, nil
}

// Start processes file events until Stop is called
func (w *Watcher) Start() {
	go w.run()
	w.log.Infof("Watching role catalog %s", w.path)
}

func (w *Watcher) run() {
	defer close(w.stopped)

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.log.Debugf("Catalog file changed: %s (%s)", event.Name, event.Op)
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warnf("Catalog watcher error: %v", err)
		}
	}
}

// schedule collapses bursts of events into one reload
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.reload)
}

func (w *Watcher) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.catalog.Reload(ctx); err != nil {
		w.log.Errorf("Catalog reload failed, keeping version %s: %v", w.catalog.Version(), err)
		return
	}
	w.log.Infof("Catalog reloaded, now at version %s", w.catalog.Version())
}

// Stop stops watching and waits for the event loop to exit
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.done)
	err := w.watcher.Close()
	<-w.stopped
	return err
}
