// Package reload applies configuration file changes to a running relay.
//
// Only the reply table is swapped live. Changes to any other section are
// reported and take effect on the next restart.
package reload

import (
	"context"
	"os"
	"sync"
	"time"
)

const defaultPollInterval = 5 * time.Second

// Event reports that the watched file changed.
type Event struct {
	Path string
}

// Watcher polls a file and emits an Event when its size or modification
// time changes. Events are coalesced: at most one is pending.
type Watcher struct {
	path     string
	interval time.Duration
	events   chan Event

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
	started   chan struct{}
}

// NewWatcher creates a watcher for path. A non-positive interval polls
// every five seconds.
func NewWatcher(path string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Watcher{
		path:     path,
		interval: interval,
		events:   make(chan Event, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		started:  make(chan struct{}),
	}
}

// Start begins polling. Only the first call has an effect.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		close(w.started)
		go w.poll(ctx)
	})
}

// Events returns the change notifications.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop ends polling and waits for the poller to exit. It is safe to call
// more than once and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	select {
	case <-w.started:
		<-w.done
	default:
	}
}

type fileState struct {
	mod  time.Time
	size int64
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	last, _ := w.stat()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			cur, ok := w.stat()
			if !ok || cur == last {
				continue
			}
			last = cur
			select {
			case w.events <- Event{Path: w.path}:
			default:
			}
		}
	}
}

// stat reports false while the file is missing, so that an editor's
// delete-and-rename save is seen as one change.
func (w *Watcher) stat() (fileState, bool) {
	info, err := os.Stat(w.path)
	if err != nil {
		return fileState{}, false
	}
	return fileState{mod: info.ModTime(), size: info.Size()}, true
}
