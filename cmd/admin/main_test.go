package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andy6609/roomcast/internal/admin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"roomcast-admin"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func queuePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "admin_actions.queue")
}

func TestRun_Usage(t *testing.T) {
	code, out, _ := runCLI(t)
	require.Equal(t, 1, code)
	require.Contains(t, out, "Usage:")

	code, out, _ = runCLI(t, "explode")
	require.Equal(t, 1, code)
	require.Contains(t, out, "Unknown command: explode")

	code, _, _ = runCLI(t, "help")
	require.Equal(t, 0, code)
}

func TestRun_KickIsQueued(t *testing.T) {
	req := require.New(t)
	path := queuePath(t)

	code, out, errOut := runCLI(t, "kick", "-queue", path, "bob", "spamming", "the", "lobby")
	req.Equal(0, code, errOut)
	id := strings.TrimSpace(out)

	q, err := admin.NewFileQueue(path, zaptest.NewLogger(t))
	req.NoError(err)
	pending, err := q.Pending()
	req.NoError(err)
	req.Len(pending, 1)
	req.Equal(id, pending[0].ID)
	req.Equal(admin.ActionKick, pending[0].Type)
	req.Equal("bob", pending[0].Username)
	req.Equal("spamming the lobby", pending[0].Reason)
}

func TestRun_MoveAndAnnounce(t *testing.T) {
	req := require.New(t)
	path := queuePath(t)

	code, _, _ := runCLI(t, "move", "-queue", path, "bob")
	req.Equal(1, code)

	code, _, errOut := runCLI(t, "move", "-queue", path, "bob", "arena")
	req.Equal(0, code, errOut)
	code, _, errOut = runCLI(t, "announce", "-queue", path, "-room", "lobby", "doors", "close", "soon")
	req.Equal(0, code, errOut)

	code, out, errOut := runCLI(t, "list", "-queue", path)
	req.Equal(0, code, errOut)
	req.Contains(out, "MOVE_PLAYER")
	req.Contains(out, "arena")
	req.Contains(out, "ANNOUNCE")
	req.Contains(out, "doors close soon")
}

func TestRun_RejectsUnsafeNames(t *testing.T) {
	code, _, errOut := runCLI(t, "kick", "-queue", queuePath(t), "bob|evil")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "kick needs a username")
}

func TestRun_CleanupRemovesOldExecuted(t *testing.T) {
	req := require.New(t)
	path := queuePath(t)
	q, err := admin.NewFileQueue(path, zaptest.NewLogger(t))
	req.NoError(err)

	old, err := admin.NewKick("bob", "", time.Now().Add(-time.Hour))
	req.NoError(err)
	fresh, err := admin.NewKick("carol", "", time.Now())
	req.NoError(err)
	req.NoError(q.Append(old))
	req.NoError(q.Append(fresh))
	_, err = q.MarkExecuted(old.ID, fresh.ID)
	req.NoError(err)

	code, out, errOut := runCLI(t, "cleanup", "-queue", path, "-retention", "5m")
	req.Equal(0, code, errOut)
	req.Contains(out, "removed 1")

	all, err := q.All()
	req.NoError(err)
	req.Len(all, 1)
	req.Equal(fresh.ID, all[0].ID)
}
