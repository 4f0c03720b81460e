package chat

import (
	"strings"
	"testing"

	"github.com/andy6609/roomcast/internal/protocol"
	"github.com/stretchr/testify/require"
)

// answerAll plays the client side of discovery: every queued wantDetails is echoed back.
func answerAll(t *testing.T, h *harness, members ...*Worker) {
	t.Helper()
	for _, m := range members {
		for _, line := range drain(m.client) {
			if !strings.HasPrefix(line, "wantDetails ") {
				continue
			}
			cmd, err := protocol.Parse(line)
			require.NoError(t, err)
			require.True(t, h.disp.Dispatch(m, cmd))
		}
	}
}

func TestDiscovery_JoinerReceivesOneDetailsPerMember(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a := h.join(t, "alice", "lobby")
	b := h.join(t, "bob", "lobby")
	c := h.join(t, "carol", "lobby")
	other := h.join(t, "olga", "cafe")
	for _, w := range []*Worker{a, b, c, other} {
		drain(w.client)
	}

	// bob's last command before the newcomer arrives
	req.True(h.disp.Dispatch(b, protocol.Move{X: 9, Y: 8, Dir: 4}))
	drain(a.client)
	drain(c.client)

	d := h.join(t, "dave", "lobby")
	answerAll(t, h, a, b, c, other)

	got := drain(d.client)
	req.ElementsMatch([]string{
		"detailsFor 10.0.0.1 5 alice M 0 0 0",
		"detailsFor 10.0.0.1 5 bob M 9 8 4",
		"detailsFor 10.0.0.1 5 carol M 0 0 0",
	}, got)
}

func TestDiscovery_ChangeRoomTriggersDiscoveryInNewRoom(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a := h.join(t, "alice", "cafe")
	b := h.join(t, "bob", "lobby")
	drain(a.client)
	drain(b.client)

	req.True(h.disp.Dispatch(b, protocol.ChangeRoom{Room: "cafe"}))
	answerAll(t, h, a)

	req.Equal([]string{"detailsFor 10.0.0.1 2 alice M 0 0 0"}, drain(b.client))
}

func TestDiscovery_DetailsForIsRelayedVerbatim(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a := h.join(t, "alice", "lobby")
	b := h.join(t, "bob", "lobby")
	drain(a.client)

	req.True(h.disp.Dispatch(b, protocol.DetailsFor{Addr: "10.0.0.1", Port: "1", Payload: "bob M 3 3 1  wearing-hat"}))
	req.Equal([]string{"detailsFor 10.0.0.1 1 bob M 3 3 1  wearing-hat"}, drain(a.client))

	// unknown targets are dropped
	req.True(h.disp.Dispatch(b, protocol.DetailsFor{Addr: "10.0.0.1", Port: "99", Payload: "x"}))
	req.True(h.disp.Dispatch(b, protocol.WantDetails{Addr: "10.0.0.1", Port: "99"}))
	req.Empty(drain(b.client))
}

func TestDiscovery_WantDetailsForSelfIsIgnored(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, "alice", "lobby")
	require.True(t, h.disp.Dispatch(a, protocol.WantDetails{Addr: "10.0.0.1", Port: "1"}))
	require.Empty(t, drain(a.client))
}
