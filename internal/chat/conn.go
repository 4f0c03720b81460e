package chat

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// LineConn is a connection carrying one protocol line per read and write.
// ReadLine is called only by the session loop and WriteLine only by the writer.
type LineConn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	SetReadDeadline(t time.Time) error
	RemoteAddr() net.Addr
	Close() error
}

type tcpConn struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

// NewTCPConn wraps a stream connection with newline framing.
func NewTCPConn(conn net.Conn) LineConn {
	return &tcpConn{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}
}

func (c *tcpConn) ReadLine() (string, error) {
	return readLine(c.r)
}

func (c *tcpConn) WriteLine(line string) error {
	if _, err := c.w.WriteString(line + "\n"); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *tcpConn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }
func (c *tcpConn) RemoteAddr() net.Addr              { return c.conn.RemoteAddr() }
func (c *tcpConn) Close() error                      { return c.conn.Close() }

// MaxLineLen bounds one inbound protocol line on every transport.
const MaxLineLen = 64 << 10

// readLine returns the next line without its terminator. It never buffers more
// than MaxLineLen bytes of a single line.
func readLine(r *bufio.Reader) (string, error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		buf = append(buf, chunk...)
		switch {
		case err == nil:
			line := strings.TrimRight(string(buf), "\r\n")
			if len(line) > MaxLineLen {
				return "", ErrLineTooLong
			}
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			if len(buf) > MaxLineLen {
				return "", ErrLineTooLong
			}
		case err == io.EOF && len(buf) > 0:
			// last line without newline
			if len(buf) > MaxLineLen {
				return "", ErrLineTooLong
			}
			return strings.TrimRight(string(buf), "\r\n"), nil
		case err == io.EOF:
			return "", io.EOF
		default:
			return "", fmt.Errorf("read: %w", err)
		}
	}
}
