// Package reconnectwatch watches a connection's credentials file for
// changes and triggers a reconnect when it is rewritten, the way a
// rotated password or a failed-over host entry would be delivered to a
// long-lived process without restarting it.
package reconnectwatch

import (
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ha1tch/sybtds/log"
)

// Reconnector is the subset of *sybtds.Connection the watcher drives.
type Reconnector interface {
	Reconnect() error
}

// Watcher debounces fsnotify events on a single file and calls Reconnect
// on the watched connection once the file settles.
type Watcher struct {
	mu sync.Mutex

	path   string
	conn   Reconnector
	logger *log.Logger

	debounceDelay time.Duration
	fsWatcher     *fsnotify.Watcher

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	timer   *time.Timer

	onReconnect func(error)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDelay overrides the default 200ms debounce window.
func WithDebounceDelay(d time.Duration) Option {
	return func(w *Watcher) { w.debounceDelay = d }
}

// WithOnReconnect sets a callback invoked with the outcome of every
// triggered reconnect attempt.
func WithOnReconnect(fn func(error)) Option {
	return func(w *Watcher) { w.onReconnect = fn }
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *log.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher for path, the credentials/options file whose
// changes should trigger conn.Reconnect.
func New(path string, conn Reconnector, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:          path,
		conn:          conn,
		logger:        log.Nop(),
		debounceDelay: 200 * time.Millisecond,
		fsWatcher:     fsw,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	dir := parentDir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info(log.CategorySystem, "reconnect watcher started", "path", w.path)
	go w.loop()
}

// Stop halts the watcher and releases the underlying fsnotify handle.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return

		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !sameFile(ev.Name, w.path) {
				continue
			}
			if !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			w.debounce()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn(log.CategorySystem, "reconnect watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceDelay, w.triggerReconnect)
}

func (w *Watcher) triggerReconnect() {
	w.logger.Info(log.CategorySystem, "credentials file changed, reconnecting", "path", w.path)
	err := w.conn.Reconnect()
	if err != nil {
		w.logger.Error(log.CategorySystem, "triggered reconnect failed", err, "path", w.path)
	}
	if w.onReconnect != nil {
		w.onReconnect(err)
	}
}

func parentDir(path string) string {
	if i := strings.LastIndexAny(path, "/\\"); i >= 0 {
		return path[:i]
	}
	return "."
}

func sameFile(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}
