package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastWatch = WatchOptions{
	Debounce:     10 * time.Millisecond,
	PollInterval: 20 * time.Millisecond,
	Heartbeat:    time.Hour,
}

func nextEvent(t *testing.T, w *SessionWatcher, want SyncEventType) SyncEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-w.Events:
			require.True(t, ok, "events closed while waiting for %s", want)
			if ev.Type == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func runWatcher(t *testing.T, w *SessionWatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(line + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestSessionWatcherNewMessages(t *testing.T) {
	c, roots := newFixtureCatalog(t)
	path := filepath.Join(roots.ClaudeProjects, fixtureClaudeProject, "full.jsonl")

	w, err := c.WatchSession(fixtureClaudeProject, "full", fastWatch)
	require.NoError(t, err)
	runWatcher(t, w)

	connected := nextEvent(t, w, SyncConnected)
	assert.Equal(t, "full", connected.SessionID)
	assert.Equal(t, 3, connected.MessageCount)

	appendLine(t, path, `{"type":"user","timestamp":"2024-01-01T10:01:00Z","message":{"role":"user","content":"more"}}`)

	ev := nextEvent(t, w, SyncNewMessages)
	assert.Equal(t, 4, ev.MessageCount)
	require.Len(t, ev.NewMessages, 1)
	assert.Equal(t, "more", ev.NewMessages[0].PlainText())
}

func TestSessionWatcherHeartbeat(t *testing.T) {
	c, _ := newFixtureCatalog(t)

	opts := fastWatch
	opts.Heartbeat = 20 * time.Millisecond
	w, err := c.WatchSession(fixtureClaudeProject, "full", opts)
	require.NoError(t, err)
	runWatcher(t, w)

	ev := nextEvent(t, w, SyncHeartbeat)
	assert.Equal(t, 3, ev.MessageCount)
	assert.Empty(t, ev.NewMessages)
}

func TestSessionWatcherMissingFile(t *testing.T) {
	c, _ := newFixtureCatalog(t)

	_, err := c.WatchSession(fixtureClaudeProject, "missing", fastWatch)
	assert.True(t, errors.Is(err, ErrBackingFileMissing))
}

func TestSessionWatcherStop(t *testing.T) {
	c, _ := newFixtureCatalog(t)

	w, err := c.WatchSession(OpenCodeGlobalProject, "oc1", fastWatch)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(context.Background())
	}()

	nextEvent(t, w, SyncConnected)
	w.Stop()
	w.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	_, ok := <-w.Events
	assert.False(t, ok, "events are closed after Run returns")
}

func TestWatchOptionsDefaults(t *testing.T) {
	got := WatchOptions{Debounce: time.Second}.withDefaults()
	assert.Equal(t, time.Second, got.Debounce)
	assert.Equal(t, 500*time.Millisecond, got.PollInterval)
	assert.Equal(t, 30*time.Second, got.Heartbeat)
}
