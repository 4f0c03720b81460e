package chat

import (
	"errors"
	"io"
	"time"

	"github.com/andy6609/roomcast/internal/protocol"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type SessionOptions struct {
	// CommandRate and CommandBurst size the per-connection token bucket.
	// A non-positive rate disables limiting.
	CommandRate  float64
	CommandBurst int

	// IdleTimeout closes a connection that sends nothing for this long. Zero keeps it forever.
	IdleTimeout time.Duration

	// FlushTimeout bounds how long teardown waits for queued lines to be written.
	FlushTimeout time.Duration
}

const defaultFlushTimeout = 2 * time.Second

// HandleSession runs the read loop for one connection until bye, EOF or a read
// error, then always goes through Dispatcher.Disconnect.
func HandleSession(c *Client, d *Dispatcher, opts SessionOptions) {
	writerDone := StartOutboundWriter(c.Conn, c.Out())
	w := NewWorker(c, newLimiter(opts))
	log := d.logger.With(zap.String("session", c.Key))

	defer func() {
		d.Disconnect(w)
		flush := opts.FlushTimeout
		if flush <= 0 {
			flush = defaultFlushTimeout
		}
		select {
		case <-writerDone:
		case <-time.After(flush):
			log.Debug("outbound flush timed out")
		}
		_ = c.Conn.Close()
	}()

	for {
		if opts.IdleTimeout > 0 {
			_ = c.Conn.SetReadDeadline(time.Now().Add(opts.IdleTimeout))
		}
		line, err := c.Conn.ReadLine()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				log.Debug("connection closed by peer")
			case errors.Is(err, ErrLineTooLong):
				log.Info("line too long, closing connection", zap.Int("limit", MaxLineLen))
				c.Send(protocol.ErrorLine(protocol.CodeMalformed, "line too long"))
			default:
				log.Info("connection read failed", zap.Error(err))
			}
			return
		}

		if !w.allow() {
			CommandsTotal.WithLabelValues("rate_limited").Inc()
			c.Send(protocol.ErrorLine(protocol.CodeRateLimited, ""))
			continue
		}

		cmd, err := protocol.Parse(line)
		if errors.Is(err, protocol.ErrEmptyLine) {
			continue
		}
		if err != nil {
			d.Reject(w, err)
			continue
		}
		if !d.Dispatch(w, cmd) {
			log.Debug("session closing", zap.String("state", w.State().String()))
			return
		}
	}
}

func newLimiter(opts SessionOptions) *rate.Limiter {
	if opts.CommandRate <= 0 {
		return nil
	}
	burst := opts.CommandBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(opts.CommandRate), burst)
}
