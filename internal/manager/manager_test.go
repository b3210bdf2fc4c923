package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"cc_session_hub/internal/provider"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProcess struct {
	kills atomic.Int32
	err   error
}

func (f *fakeProcess) Kill() error {
	f.kills.Add(1)
	return f.err
}

// fakeClock lets tests move time forward
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestManager() (*Manager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := New(zap.NewNop())
	m.now = clock.now
	return m, clock
}

func TestProcessRegistry(t *testing.T) {
	m, _ := newTestManager()
	proc := &fakeProcess{}

	m.RegisterProcess("r1", proc, "s1")
	assert.True(t, m.IsProcessActive("r1"))
	assert.Equal(t, 1, m.ActiveProcessCount())

	got, ok := m.UnregisterProcess("r1")
	require.True(t, ok)
	assert.Same(t, proc, got)
	assert.False(t, m.IsProcessActive("r1"))

	_, ok = m.UnregisterProcess("r1")
	assert.False(t, ok)
	assert.Zero(t, proc.kills.Load(), "unregister does not kill")
}

func TestAbortProcess(t *testing.T) {
	m, _ := newTestManager()
	proc := &fakeProcess{}
	m.RegisterProcess("r1", proc, "")

	require.NoError(t, m.AbortProcess("r1"))
	assert.Equal(t, int32(1), proc.kills.Load())
	assert.False(t, m.IsProcessActive("r1"))

	err := m.AbortProcess("r1")
	require.Error(t, err, "second abort finds nothing")
	assert.True(t, errors.Is(err, provider.ErrProcess))
	assert.Contains(t, err.Error(), "No active process for request r1")
	assert.Equal(t, int32(1), proc.kills.Load())
}

func TestAbortProcessKillError(t *testing.T) {
	m, _ := newTestManager()
	m.RegisterProcess("r1", &fakeProcess{err: errors.New("permission denied")}, "")

	assert.Error(t, m.AbortProcess("r1"))
	assert.False(t, m.IsProcessActive("r1"), "entry is removed even when kill fails")
}

func TestAbortRacesCompletion(t *testing.T) {
	m, _ := newTestManager()

	for i := 0; i < 50; i++ {
		proc := &fakeProcess{}
		m.RegisterProcess("r", proc, "")

		var wg sync.WaitGroup
		var aborted, finished atomic.Bool
		wg.Add(2)
		go func() {
			defer wg.Done()
			aborted.Store(m.AbortProcess("r") == nil)
		}()
		go func() {
			defer wg.Done()
			_, ok := m.UnregisterProcess("r")
			finished.Store(ok)
		}()
		wg.Wait()

		assert.NotEqual(t, aborted.Load(), finished.Load(), "exactly one side wins")
		assert.Zero(t, m.ActiveProcessCount())
	}
}

func TestAbortRealProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	script := filepath.Join(t.TempDir(), "claude")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho started\nsleep 30\n"), 0o755)) //nolint:gosec // test script must be executable

	proc, err := provider.Execute(context.Background(), provider.NewClaude(script), provider.NewExecuteOptions("x"), zap.NewNop())
	require.NoError(t, err)

	m, _ := newTestManager()
	m.RegisterProcess("req", proc, "")
	<-proc.Lines()

	require.NoError(t, m.AbortProcess("req"))

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for range proc.Lines() {
		}
	}()
	select {
	case <-closed:
	case <-time.After(10 * time.Second):
		t.Fatal("output channel was not closed after abort")
	}
	assert.Zero(t, m.ActiveProcessCount())
}

func TestSessions(t *testing.T) {
	m, clock := newTestManager()

	s := m.GetOrCreateSession("s1")
	assert.Equal(t, "s1", s.SessionID)
	assert.Equal(t, 0, s.MessageCount)

	clock.advance(time.Minute)
	again := m.GetOrCreateSession("s1")
	assert.Equal(t, s.LastActivity, again.LastActivity, "existing session is returned")

	ok := m.UpdateSession("s1", func(s *SessionInfo) {
		s.WorkingDirectory = "/work"
		s.SessionID = "renamed"
	})
	require.True(t, ok)
	got, ok := m.GetSession("s1")
	require.True(t, ok)
	assert.Equal(t, "/work", got.WorkingDirectory)
	assert.Equal(t, "s1", got.SessionID, "id cannot be changed by an update")

	assert.False(t, m.UpdateSession("missing", func(*SessionInfo) {}))

	removed, ok := m.RemoveSession("s1")
	require.True(t, ok)
	assert.Equal(t, "/work", removed.WorkingDirectory)
	_, ok = m.GetSession("s1")
	assert.False(t, ok)
}

func TestUpdateSessionClosureCanReadRegistry(t *testing.T) {
	m, _ := newTestManager()
	m.GetOrCreateSession("s1")

	done := make(chan bool, 1)
	go func() {
		done <- m.UpdateSession("s1", func(s *SessionInfo) {
			current, ok := m.GetSession("s1")
			if ok {
				s.MessageCount = current.MessageCount + 1
			}
			m.GetOrCreateSession("s2")
		})
	}()

	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("UpdateSession blocked while the closure read the registry")
	}

	got, _ := m.GetSession("s1")
	assert.Equal(t, 1, got.MessageCount)
	_, ok := m.GetSession("s2")
	assert.True(t, ok)
}

func TestUpdateSessionRemovedDuringClosure(t *testing.T) {
	m, _ := newTestManager()
	m.GetOrCreateSession("s1")

	ok := m.UpdateSession("s1", func(s *SessionInfo) {
		m.RemoveSession("s1")
		s.MessageCount = 5
	})
	assert.False(t, ok)
	_, ok = m.GetSession("s1")
	assert.False(t, ok, "a removed session is not recreated by a late update")
}

func TestSessionsAreCopies(t *testing.T) {
	m, _ := newTestManager()
	s := m.GetOrCreateSession("s1")
	s.MessageCount = 99

	got, _ := m.GetSession("s1")
	assert.Equal(t, 0, got.MessageCount)
}

func TestRecordTurn(t *testing.T) {
	m, clock := newTestManager()

	first := m.RecordTurn("s1", "/work")
	assert.Equal(t, 1, first.MessageCount)

	clock.advance(time.Second)
	second := m.RecordTurn("s1", "")
	assert.Equal(t, 2, second.MessageCount)
	assert.Equal(t, "/work", second.WorkingDirectory, "empty directory keeps the old one")
	assert.True(t, second.LastActivity.After(first.LastActivity))
}

func TestListSessions(t *testing.T) {
	m, clock := newTestManager()
	m.GetOrCreateSession("old")
	clock.advance(time.Minute)
	m.GetOrCreateSession("new")

	list := m.ListSessions()
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].SessionID)
	assert.Equal(t, "old", list[1].SessionID)
}

func TestCleanupOldSessions(t *testing.T) {
	m, clock := newTestManager()
	m.GetOrCreateSession("stale")
	clock.advance(2 * time.Hour)
	m.GetOrCreateSession("fresh")

	assert.Equal(t, 1, m.CleanupOldSessions(time.Hour))
	_, ok := m.GetSession("stale")
	assert.False(t, ok)
	_, ok = m.GetSession("fresh")
	assert.True(t, ok)

	assert.Equal(t, 0, m.CleanupOldSessions(time.Hour))
}

func TestRunJanitor(t *testing.T) {
	m, clock := newTestManager()
	m.GetOrCreateSession("stale")
	clock.advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.RunJanitor(ctx, 5*time.Millisecond, time.Minute)
	}()

	assert.Eventually(t, func() bool {
		_, ok := m.GetSession("stale")
		return !ok
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
