package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrBackingFileMissing is returned when the watched session has no file
var ErrBackingFileMissing = errors.New("session file not found")

// SyncEventType names the kinds of events a SessionWatcher emits
type SyncEventType string

const (
	SyncConnected   SyncEventType = "connected"
	SyncNewMessages SyncEventType = "new_messages"
	SyncHeartbeat   SyncEventType = "heartbeat"
)

// SyncEvent reports a change in a watched conversation
type SyncEvent struct {
	Type         SyncEventType
	SessionID    string
	MessageCount int
	NewMessages  []Message // only set for SyncNewMessages
}

// WatchOptions tunes how quickly changes are picked up
type WatchOptions struct {
	Debounce     time.Duration `yaml:"debounce"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Heartbeat    time.Duration `yaml:"heartbeat"`
}

// DefaultWatchOptions returns the stock timings
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		Debounce:     100 * time.Millisecond,
		PollInterval: 500 * time.Millisecond,
		Heartbeat:    30 * time.Second,
	}
}

func (o WatchOptions) withDefaults() WatchOptions {
	d := DefaultWatchOptions()
	if o.Debounce <= 0 {
		o.Debounce = d.Debounce
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.Heartbeat <= 0 {
		o.Heartbeat = d.Heartbeat
	}
	return o
}

// SessionWatcher follows one conversation file and reports appended messages
type SessionWatcher struct {
	catalog   *Catalog
	ref       SessionRef
	opts      WatchOptions
	log       *zap.Logger
	fsWatcher *fsnotify.Watcher // nil when only polling is available

	count int
	size  int64
	mtime time.Time

	Events chan SyncEvent
	Errors chan error

	done     chan struct{}
	stopOnce sync.Once
}

// WatchSession prepares a watcher for one conversation. The returned
// watcher does nothing until Run is called.
func (c *Catalog) WatchSession(encoded, sessionID string, opts WatchOptions) (*SessionWatcher, error) {
	ref, err := c.ResolveSession(encoded, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrBackingFileMissing
		}
		return nil, err
	}

	h, err := c.Load(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	w := &SessionWatcher{
		catalog: c,
		ref:     ref,
		opts:    opts.withDefaults(),
		log:     c.log,
		count:   len(h.Messages),
		Events:  make(chan SyncEvent, 100),
		Errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}
	w.size, w.mtime = statFile(ref.Path)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("File notifications unavailable, polling only",
			zap.String("session_id", sessionID), zap.Error(err))
		return w, nil
	}
	// Watch the directory too so atomic replace-by-rename is seen
	if err := fsw.Add(filepath.Dir(ref.Path)); err != nil {
		w.log.Debug("Failed to watch session directory", zap.String("path", ref.Path), zap.Error(err))
	}
	_ = fsw.Add(ref.Path)
	w.fsWatcher = fsw
	return w, nil
}

// MessageCount returns the number of messages seen so far. Only safe to
// call before Run or after it returns.
func (w *SessionWatcher) MessageCount() int {
	return w.count
}

// Ref returns the file being watched
func (w *SessionWatcher) Ref() SessionRef {
	return w.ref
}

// Stop ends Run and releases the file watcher
func (w *SessionWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

// Run emits a connected event and then follows the file until ctx ends or
// Stop is called. Events is closed when Run returns.
func (w *SessionWatcher) Run(ctx context.Context) {
	defer close(w.Events)
	defer func() {
		if w.fsWatcher != nil {
			_ = w.fsWatcher.Close()
		}
	}()

	if !w.emit(ctx, w.event(SyncConnected, nil)) {
		return
	}

	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	if w.fsWatcher != nil {
		fsEvents = w.fsWatcher.Events
		fsErrors = w.fsWatcher.Errors
	}

	debounce := time.NewTimer(w.opts.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	poll := time.NewTicker(w.opts.PollInterval)
	defer poll.Stop()

	heartbeat := time.NewTicker(w.opts.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case ev, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if filepath.Clean(ev.Name) == filepath.Clean(w.ref.Path) && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				debounce.Reset(w.opts.Debounce)
			}

		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			w.sendError(err)

		case <-debounce.C:
			if !w.check(ctx) {
				return
			}

		case <-poll.C:
			size, mtime := statFile(w.ref.Path)
			if size != w.size || !mtime.Equal(w.mtime) {
				if !w.check(ctx) {
					return
				}
			}

		case <-heartbeat.C:
			if !w.emit(ctx, w.event(SyncHeartbeat, nil)) {
				return
			}
		}
	}
}

// check re-parses the file and emits any messages past the last count.
// Returns false when the watcher should stop.
func (w *SessionWatcher) check(ctx context.Context) bool {
	size, mtime := statFile(w.ref.Path)
	if mtime.IsZero() {
		w.sendError(ErrBackingFileMissing)
		return true
	}
	w.size, w.mtime = size, mtime

	h, err := w.catalog.Load(w.ref)
	if err != nil {
		w.sendError(err)
		return true
	}

	n := len(h.Messages)
	if n < w.count {
		// file was rewritten; start counting again from here
		w.count = n
		return true
	}
	if n == w.count {
		return true
	}

	added := append([]Message(nil), h.Messages[w.count:]...)
	w.count = n
	w.log.Debug("New messages",
		toolFields(opSessionLoad, w.ref.Tool,
			zap.String("session_id", w.ref.SessionID), zap.Int("added", len(added)))...)
	return w.emit(ctx, w.event(SyncNewMessages, added))
}

func (w *SessionWatcher) event(t SyncEventType, msgs []Message) SyncEvent {
	return SyncEvent{
		Type:         t,
		SessionID:    w.ref.SessionID,
		MessageCount: w.count,
		NewMessages:  msgs,
	}
}

// emit delivers an event unless the watcher is shutting down
func (w *SessionWatcher) emit(ctx context.Context, ev SyncEvent) bool {
	select {
	case w.Events <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-w.done:
		return false
	}
}

func (w *SessionWatcher) sendError(err error) {
	select {
	case w.Errors <- err:
	default:
		// Error channel full, drop
	}
}

// statFile returns size and mtime, or zero values when the file is gone
func statFile(path string) (int64, time.Time) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, time.Time{}
	}
	return info.Size(), info.ModTime()
}
