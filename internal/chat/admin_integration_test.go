package chat

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/andy6609/roomcast/internal/admin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newQueueWatcher(t *testing.T, exec *AdminExecutor) (*admin.FileQueue, *admin.Watcher) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	q, err := admin.NewFileQueue(filepath.Join(t.TempDir(), "admin_actions.queue"), logger)
	require.NoError(t, err)
	return q, admin.NewWatcher(q, admin.NewMemoryLedger(), exec, admin.WatcherConfig{}, logger)
}

func TestAdminQueue_KickForAbsentPlayerIsConsumedSilently(t *testing.T) {
	req := require.New(t)
	h, exec := newAdminHarness(t)
	a := h.join(t, "alice", "lobby")
	drain(a.client)
	q, w := newQueueWatcher(t, exec)

	kick, err := admin.NewKick("Bob", "spam", time.Now())
	req.NoError(err)
	req.NoError(q.Append(kick))

	w.Poll()

	req.Empty(drain(a.client))
	all, err := q.All()
	req.NoError(err)
	req.Len(all, 1)
	req.True(all[0].Executed)
}

func TestAdminQueue_ActionIsAppliedOnceAcrossPolls(t *testing.T) {
	req := require.New(t)
	h, exec := newAdminHarness(t)
	obs := h.join(t, "obs", "cafe")
	bob := h.join(t, "bob", "cafe")
	drain(obs.client)
	drain(bob.client)
	q, w := newQueueWatcher(t, exec)

	kick, err := admin.NewKick("bob", "spam", time.Now())
	req.NoError(err)
	req.NoError(q.Append(kick))

	w.Poll()
	w.Poll()

	req.Equal([]string{"playerLeft bob"}, drain(obs.client))
	req.Equal([]string{"KICKED spam"}, drain(bob.client))
	pending, err := q.Pending()
	req.NoError(err)
	req.Empty(pending)
}

func TestAdminQueue_MoveAndAnnounce(t *testing.T) {
	req := require.New(t)
	h, exec := newAdminHarness(t)
	lobbyObs := h.join(t, "lobbyObs", "lobby")
	bob := h.join(t, "bob", "lobby")
	drain(lobbyObs.client)
	drain(bob.client)
	q, w := newQueueWatcher(t, exec)

	move, err := admin.NewMovePlayer("bob", "arena", time.Now())
	req.NoError(err)
	announce, err := admin.NewAnnounce("lobby", "welcome", time.Now())
	req.NoError(err)
	req.NoError(q.Append(move))
	req.NoError(q.Append(announce))

	w.Poll()

	req.Equal([]string{"playerLeft bob", "adminMessage welcome"}, drain(lobbyObs.client))
	req.Equal([]string{"forceRoomChange arena"}, drain(bob.client))
}
