package chat

// StartOutboundWriter drains out into conn until out is closed or a write fails.
// The returned channel closes when the writer has exited.
func StartOutboundWriter(conn LineConn, out <-chan string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range out {
			// Best-effort. If the connection breaks, just stop the writer.
			if err := conn.WriteLine(msg); err != nil {
				// keep draining so senders never see a full buffer from a dead writer
				for range out {
				}
				return
			}
		}
	}()
	return done
}
