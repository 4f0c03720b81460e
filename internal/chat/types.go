package chat

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"
)

// Session is the server's record of one joined participant. Key is the
// connection's address:port and is not stable across reconnects.
type Session struct {
	Key    string
	Addr   string
	Port   string
	Name   string
	Gender string
	Room   string
	X      int
	Y      int
	Dir    int
	Moving bool
}

// Position is a tile coordinate plus facing direction.
type Position struct {
	X, Y, Dir int
}

// Client is the outbound side of one connection: a buffered queue drained by
// the connection's writer goroutine.
type Client struct {
	Key  string
	Addr string
	Port string
	Conn LineConn

	mu     sync.Mutex
	out    chan string
	closed bool
}

var anonymousConns atomic.Uint64

// NewClient derives the session key from the connection's remote address.
func NewClient(conn LineConn, buffer int) *Client {
	addr, port := "unknown", ""
	if ra := conn.RemoteAddr(); ra != nil {
		if host, p, err := net.SplitHostPort(ra.String()); err == nil {
			addr, port = host, p
		} else {
			addr = ra.String()
		}
	}
	if port == "" {
		port = strconv.FormatUint(anonymousConns.Add(1), 10)
	}
	return newClient(addr, port, conn, buffer)
}

func newClient(addr, port string, conn LineConn, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		Key:  SessionKey(addr, port),
		Addr: addr,
		Port: port,
		Conn: conn,
		out:  make(chan string, buffer),
	}
}

// SessionKey joins an address and port the way session keys are stored.
func SessionKey(addr, port string) string {
	return net.JoinHostPort(addr, port)
}

// Send queues a line without blocking. It reports false when the line was
// dropped because the client is slow or already closed.
func (c *Client) Send(line string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.out <- line:
		return true
	default:
		DroppedLines.Inc()
		return false
	}
}

// Out is drained by the writer goroutine until Close.
func (c *Client) Out() <-chan string {
	return c.out
}

// Close stops accepting lines and lets the writer drain what is queued.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}

type errorString string

func (e errorString) Error() string { return string(e) }

var (
	ErrDuplicateKey = errorString("duplicate_session_key")
	ErrEmptyKey     = errorString("empty_session_key")
	ErrNoClient     = errorString("session_without_client")
	ErrLineTooLong  = errorString("line_too_long")
)
