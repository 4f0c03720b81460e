package admin

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type call struct {
	kind, username, room, text string
}

type fakeExecutor struct {
	mu     sync.Mutex
	online map[string]bool
	calls  []call
}

func newFakeExecutor(online ...string) *fakeExecutor {
	f := &fakeExecutor{online: map[string]bool{}}
	for _, name := range online {
		f.online[name] = true
	}
	return f
}

func (f *fakeExecutor) Kick(username, reason string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online[username] {
		return false
	}
	f.calls = append(f.calls, call{kind: "kick", username: username, text: reason})
	return true
}

func (f *fakeExecutor) MovePlayer(username, roomID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online[username] {
		return false
	}
	f.calls = append(f.calls, call{kind: "move", username: username, room: roomID})
	return true
}

func (f *fakeExecutor) Announce(roomID, text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: "announce", room: roomID, text: text})
	return len(f.online)
}

func (f *fakeExecutor) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

// failingMarkQueue loses every executed-flag rewrite, as after a crash right after apply.
type failingMarkQueue struct {
	Queue
}

func (q failingMarkQueue) MarkExecuted(...string) (int, error) {
	return 0, errors.New("disk full")
}

func TestWatcher_AppliesEachActionOnce(t *testing.T) {
	req := require.New(t)
	q := newTestQueue(t)
	exec := newFakeExecutor("alice", "bob")
	w := NewWatcher(q, nil, exec, WatcherConfig{}, zaptest.NewLogger(t))

	kick, err := NewKick("alice", "spam", time.Now())
	req.NoError(err)
	move, err := NewMovePlayer("bob", "cafe", time.Now())
	req.NoError(err)
	announce, err := NewAnnounce("lobby", "welcome", time.Now())
	req.NoError(err)
	for _, a := range []Action{kick, move, announce} {
		req.NoError(q.Append(a))
	}

	w.Poll()
	w.Poll()

	req.Equal([]call{
		{kind: "kick", username: "alice", text: "spam"},
		{kind: "move", username: "bob", room: "cafe"},
		{kind: "announce", room: "lobby", text: "welcome"},
	}, exec.Calls())

	pending, err := q.Pending()
	req.NoError(err)
	req.Empty(pending)
}

func TestWatcher_UnresolvedTargetStillMarkedExecuted(t *testing.T) {
	req := require.New(t)
	q := newTestQueue(t)
	exec := newFakeExecutor()
	w := NewWatcher(q, nil, exec, WatcherConfig{}, zaptest.NewLogger(t))

	kick, err := NewKick("Bob", "spam", time.Now())
	req.NoError(err)
	req.NoError(q.Append(kick))

	w.Poll()

	req.Empty(exec.Calls())
	all, err := q.All()
	req.NoError(err)
	req.Len(all, 1)
	req.True(all[0].Executed)
}

func TestWatcher_CrashBeforeMarkDoesNotReapply(t *testing.T) {
	req := require.New(t)
	q := newTestQueue(t)
	ledger, err := OpenBadgerLedger("", DefaultLedgerTTL)
	req.NoError(err)
	t.Cleanup(func() { _ = ledger.Close() })

	move, err := NewMovePlayer("alice", "cafe", time.Now())
	req.NoError(err)
	req.NoError(q.Append(move))

	// First run applies but never manages to flag the action
	first := newFakeExecutor("alice")
	NewWatcher(failingMarkQueue{q}, ledger, first, WatcherConfig{}, zaptest.NewLogger(t)).Poll()
	req.Len(first.Calls(), 1)
	pending, err := q.Pending()
	req.NoError(err)
	req.Len(pending, 1)

	// The resumed watcher sees the action again, skips it and repairs the flag
	second := newFakeExecutor("alice")
	NewWatcher(q, ledger, second, WatcherConfig{}, zaptest.NewLogger(t)).Poll()
	req.Empty(second.Calls())
	pending, err = q.Pending()
	req.NoError(err)
	req.Empty(pending)
}

func TestWatcher_ExecutedFlagPreventsReapplyAfterRestart(t *testing.T) {
	req := require.New(t)
	q := newTestQueue(t)
	kick, err := NewKick("alice", "afk", time.Now())
	req.NoError(err)
	req.NoError(q.Append(kick))

	first := newFakeExecutor("alice")
	NewWatcher(q, NewMemoryLedger(), first, WatcherConfig{}, zaptest.NewLogger(t)).Poll()
	req.Len(first.Calls(), 1)

	// Fresh process, fresh in-memory ledger, same file
	reloaded, err := NewFileQueue(q.Path(), nil)
	req.NoError(err)
	second := newFakeExecutor("alice")
	NewWatcher(reloaded, NewMemoryLedger(), second, WatcherConfig{}, zaptest.NewLogger(t)).Poll()
	req.Empty(second.Calls())
}

func TestWatcher_CleanupRunsOnInterval(t *testing.T) {
	req := require.New(t)
	q := newTestQueue(t)
	clock := time.UnixMilli(50_000_000)
	now := func() time.Time { return clock }
	w := NewWatcher(q, nil, newFakeExecutor(), WatcherConfig{
		CleanupInterval: time.Minute,
		Retention:       5 * time.Minute,
		Now:             now,
	}, zaptest.NewLogger(t))

	old := mustKick(t, "ghost", clock.Add(-10*time.Minute))
	req.NoError(q.Append(old))

	// The first poll executes it; cleanup is not due yet
	w.Poll()
	all, err := q.All()
	req.NoError(err)
	req.Len(all, 1)

	clock = clock.Add(time.Minute)
	w.Poll()
	all, err = q.All()
	req.NoError(err)
	req.Empty(all)
}

func TestWatcher_StartStop(t *testing.T) {
	req := require.New(t)
	q := newTestQueue(t)
	exec := newFakeExecutor("alice")
	w := NewWatcher(q, nil, exec, WatcherConfig{PollInterval: 10 * time.Millisecond}, zaptest.NewLogger(t))

	w.Start()
	w.Start()

	kick, err := NewKick("alice", "bye", time.Now())
	req.NoError(err)
	req.NoError(q.Append(kick))

	req.Eventually(func() bool { return len(exec.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
	w.Stop()
}
