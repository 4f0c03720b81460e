package chat

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/andy6609/roomcast/internal/protocol"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(port int) *Client {
	return newClient("10.0.0.1", strconv.Itoa(port), nil, 256)
}

func joinCmd(name, room string) protocol.Join {
	return protocol.Join{Name: name, Gender: "M", Room: room}
}

type harness struct {
	reg  *Registry
	disp *Dispatcher
	port int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	reg := NewRegistry(logger)
	return &harness{reg: reg, disp: NewDispatcher(reg, "lobby", logger)}
}

// join registers a fresh connection and discards nothing; callers drain as needed.
func (h *harness) join(t *testing.T, name, room string) *Worker {
	t.Helper()
	h.port++
	w := NewWorker(newTestClient(h.port), nil)
	require.True(t, h.disp.Dispatch(w, joinCmd(name, room)))
	require.Equal(t, StateJoined, w.State())
	return w
}

func waitForPrefix(t *testing.T, ch <-chan string, prefix string) string {
	t.Helper()
	deadline := time.NewTimer(1 * time.Second)
	defer deadline.Stop()
	for {
		select {
		case s := <-ch:
			if strings.HasPrefix(s, prefix) {
				return s
			}
		case <-deadline.C:
			t.Fatalf("timeout waiting for prefix %q", prefix)
		}
	}
}

// drain returns every line currently queued for c.
func drain(c *Client) []string {
	var lines []string
	for {
		select {
		case s, ok := <-c.out:
			if !ok {
				return lines
			}
			lines = append(lines, s)
		default:
			return lines
		}
	}
}

// tcpPeer is a raw protocol client used against a started Server.
type tcpPeer struct {
	conn net.Conn
	r    *bufio.Reader
}

func dialPeer(t *testing.T, addr string) *tcpPeer {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &tcpPeer{conn: conn, r: bufio.NewReader(conn)}
}

func (p *tcpPeer) addrPort(t *testing.T) (string, string) {
	t.Helper()
	host, port, err := net.SplitHostPort(p.conn.LocalAddr().String())
	require.NoError(t, err)
	return host, port
}

func (p *tcpPeer) send(t *testing.T, line string) {
	t.Helper()
	_, err := p.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (p *tcpPeer) expect(t *testing.T, prefix string) string {
	t.Helper()
	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		line, err := p.r.ReadString('\n')
		require.NoError(t, err, "waiting for %q", prefix)
		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(line, prefix) {
			return line
		}
	}
}
