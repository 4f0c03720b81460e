package chat

import (
	"github.com/andy6609/roomcast/internal/protocol"
	"go.uber.org/zap"
)

// Peer discovery: there is no roster push. A newcomer is announced to its room
// with playerJoined followed by wantDetails; every member that sees the
// wantDetails answers with its own state, which reaches the newcomer as
// detailsFor. Each answer carries the member's state at reply time, so the
// newcomer converges without ever seeing a consistent snapshot.

func (d *Dispatcher) announceArrival(s Session) {
	d.reg.BroadcastToRoom(s.Room, s.Key, joinedLine(s))
	d.reg.BroadcastToRoom(s.Room, s.Key, protocol.WantDetailsLine(s.Addr, s.Port))
}

// answerWantDetails sends the requesting member's own state to the session named by addr:port.
func (d *Dispatcher) answerWantDetails(w *Worker, c protocol.WantDetails) {
	target := SessionKey(c.Addr, c.Port)
	if target == w.Key() {
		return
	}
	s, ok := d.reg.Lookup(w.Key())
	if !ok {
		return
	}
	line := protocol.DetailsForLine(c.Addr, c.Port, s.Name, s.Gender, s.X, s.Y, s.Dir)
	if !d.reg.SendTo(target, line) {
		d.logger.Debug("details target gone", zap.String("session", s.Key), zap.String("target", target))
	}
}

// relayDetails forwards a client-built detailsFor line untouched.
func (d *Dispatcher) relayDetails(w *Worker, c protocol.DetailsFor) {
	target := SessionKey(c.Addr, c.Port)
	if !d.reg.SendTo(target, protocol.RelayDetailsLine(c)) {
		d.logger.Debug("details target gone", zap.String("session", w.Key()), zap.String("target", target))
	}
}

func joinedLine(s Session) string {
	return protocol.PlayerJoinedLine(s.Name, s.Gender, s.X, s.Y, s.Dir)
}
