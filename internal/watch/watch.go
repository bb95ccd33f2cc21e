// Package watch implements the debounced, multi-target filesystem watcher
// (spec §4.3, C3): one plan file and zero or more event-stream directories,
// coalesced into a single WatchEvent stream with reconnect-on-failure.
//
// It is grounded directly on the teacher's internal/conflict.Detector
// (internal/conflict/detector.go): an fsnotify.Watcher drained by a
// goroutine that coalesces pending raw events per path behind a debounce
// timer before dispatching them. This spec adds the one thing the
// teacher's detector never needed — reconnect with backoff, since the
// detector is torn down with its instance rather than recovering in place.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"

	taskdasherrors "github.com/taskdash/taskdash/internal/errors"
	"github.com/taskdash/taskdash/internal/logging"
)

// ChangeKind identifies what a WatchEvent reports.
type ChangeKind string

const (
	// PlanChanged indicates the watched plan file changed.
	PlanChanged ChangeKind = "PlanChanged"
	// EventFileChanged indicates a *.jsonl file in a watched directory was
	// created or modified; Path holds its full path.
	EventFileChanged ChangeKind = "EventFileChanged"
)

// WatchEvent is the debounced notification emitted to callers, spec §4.3.
type WatchEvent struct {
	Kind ChangeKind
	Path string
	At   time.Time
}

// Config controls debounce and reconnect behavior, all with spec §4.3
// defaults.
type Config struct {
	// Debounce is the coalescing window for raw notifications on the same
	// path (spec default 100ms).
	Debounce time.Duration
	// MaxRetries is the number of reconnect attempts before giving up
	// (spec default 3).
	MaxRetries uint64
	// BackoffBase is the first retry's delay; each subsequent attempt
	// doubles it (spec default 250ms: 250ms, 500ms, 1s).
	BackoffBase time.Duration
	// ReconnectCeiling bounds the cumulative time spent reconnecting
	// (spec default 2s).
	ReconnectCeiling time.Duration
}

// DefaultConfig returns the spec §4.3 defaults.
func DefaultConfig() Config {
	return Config{
		Debounce:         100 * time.Millisecond,
		MaxRetries:       3,
		BackoffBase:      250 * time.Millisecond,
		ReconnectCeiling: 2 * time.Second,
	}
}

// Watcher watches one plan file and N event-stream directories, emitting
// debounced WatchEvents and recovering transparently from transient FS
// event-source failures.
type Watcher struct {
	planPath  string
	eventDirs []string
	cfg       Config
	logger    *logging.Logger

	fsw    *fsnotify.Watcher
	events chan WatchEvent
	fatal  chan error
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Watcher for planPath and eventDirs. planPath's parent
// directory is watched and events are filtered to planPath itself (spec
// §4.3: "watch its parent directory, filter to that exact path").
func New(planPath string, eventDirs []string, cfg Config, logger *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		planPath:  planPath,
		eventDirs: eventDirs,
		cfg:       cfg,
		logger:    logger,
		fsw:       fsw,
		events:    make(chan WatchEvent, 256),
		fatal:     make(chan error, 1),
		stopCh:    make(chan struct{}),
	}

	if err := w.addTargets(); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return w, nil
}

func (w *Watcher) addTargets() error {
	if err := w.fsw.Add(filepath.Dir(w.planPath)); err != nil {
		return err
	}
	for _, dir := range w.eventDirs {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	return nil
}

// Events returns the channel of debounced WatchEvents.
func (w *Watcher) Events() <-chan WatchEvent { return w.events }

// Fatal returns the channel a terminal *errors.WatchError is sent on once
// reconnect attempts are exhausted (spec §4.3/§7). The watcher has already
// stopped by the time a value arrives.
func (w *Watcher) Fatal() <-chan error { return w.fatal }

// Start begins watching in the background.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop cancels the watcher and releases its native resources.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	_ = w.fsw.Close()
}

func (w *Watcher) run() {
	defer w.wg.Done()

	pending := make(map[string]time.Time)
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending[ev.Name] = time.Now()
			debounceTimer.Reset(w.cfg.Debounce)

		case at := <-debounceTimer.C:
			for path, seenAt := range pending {
				_ = at
				w.emit(path, seenAt)
			}
			pending = make(map[string]time.Time)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("watcher error, attempting reconnect", "error", err.Error())
			}
			if !w.reconnect() {
				w.fatal <- taskdasherrors.NewWatchError("reconnect attempts exhausted", taskdasherrors.ErrWatchExhausted).
					WithRetryable(false)
				return
			}
			w.forceRescan()
		}
	}
}

// emit turns one debounced raw path notification into a WatchEvent, mapping
// the plan file specially (spec §4.3: "filter to that exact path") and
// every other *.jsonl path to EventFileChanged.
func (w *Watcher) emit(path string, at time.Time) {
	if samePath(path, w.planPath) {
		w.send(WatchEvent{Kind: PlanChanged, Path: w.planPath, At: at})
		return
	}
	if hasJSONLSuffix(path) {
		w.send(WatchEvent{Kind: EventFileChanged, Path: path, At: at})
	}
}

func (w *Watcher) send(ev WatchEvent) {
	select {
	case w.events <- ev:
	default:
		// Sink is full; drop rather than block the watch loop. The next
		// debounced notification for the same path will catch the
		// dashboard up.
		if w.logger != nil {
			w.logger.Warn("watch event sink full, dropping event", "path", ev.Path)
		}
	}
}

// reconnect attempts to rebuild the fsnotify.Watcher up to cfg.MaxRetries
// times with exponential backoff (spec §4.3: 250ms, 500ms, 1s), bounded by
// cfg.ReconnectCeiling. It reports whether reconnection succeeded.
func (w *Watcher) reconnect() bool {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.ReconnectCeiling)
	defer cancel()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = w.cfg.BackoffBase
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = w.cfg.ReconnectCeiling

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, w.cfg.MaxRetries), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		_ = w.fsw.Close()
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			return taskdasherrors.NewWatchError("recreate watcher", err).WithAttempt(attempt)
		}
		w.fsw = fsw
		if err := w.addTargets(); err != nil {
			return taskdasherrors.NewWatchError("re-add watch targets", err).WithAttempt(attempt)
		}
		return nil
	}, policy)

	return err == nil
}

// forceRescan emits a PlanChanged event plus an EventFileChanged for every
// existing *.jsonl file, so a successful reconnect never silently drops
// notifications missed while the watcher was down (spec §4.3).
func (w *Watcher) forceRescan() {
	now := time.Now()
	w.send(WatchEvent{Kind: PlanChanged, Path: w.planPath, At: now})
	for _, dir := range w.eventDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !hasJSONLSuffix(entry.Name()) {
				continue
			}
			w.send(WatchEvent{Kind: EventFileChanged, Path: filepath.Join(dir, entry.Name()), At: now})
		}
	}
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

func hasJSONLSuffix(path string) bool {
	return filepath.Ext(path) == ".jsonl"
}
