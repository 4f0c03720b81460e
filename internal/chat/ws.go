package chat

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// game clients are not served from this origin
		return true
	},
}

// wsConn carries protocol lines over text frames. A frame may hold several
// newline-separated lines; each outbound line is its own frame.
type wsConn struct {
	ws      *websocket.Conn
	mu      sync.Mutex
	pending []string
}

func newWSConn(ws *websocket.Conn) *wsConn {
	ws.SetReadLimit(MaxLineLen)
	return &wsConn{ws: ws}
}

func (c *wsConn) ReadLine() (string, error) {
	for len(c.pending) == 0 {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return "", err
		}
		for _, line := range strings.Split(string(payload), "\n") {
			line = strings.TrimRight(line, "\r")
			if line != "" {
				c.pending = append(c.pending, line)
			}
		}
	}
	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, nil
}

func (c *wsConn) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *wsConn) SetReadDeadline(t time.Time) error { return c.ws.SetReadDeadline(t) }
func (c *wsConn) RemoteAddr() net.Addr              { return c.ws.RemoteAddr() }
func (c *wsConn) Close() error                      { return c.ws.Close() }

// HandleWS upgrades the request and runs it as a regular session.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Info("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	s.serve(newWSConn(ws), "ws")
}
