package chat

import (
	"github.com/andy6609/roomcast/internal/protocol"
	"go.uber.org/zap"
)

// AdminExecutor applies admin actions to live sessions, emitting the same
// notifications a session loop would.
type AdminExecutor struct {
	reg    *Registry
	lobby  string
	spawn  Position
	logger *zap.Logger
}

func NewAdminExecutor(reg *Registry, lobby string, spawn Position, logger *zap.Logger) *AdminExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lobby == "" {
		lobby = DefaultLobby
	}
	return &AdminExecutor{reg: reg, lobby: lobby, spawn: spawn, logger: logger}
}

// Kick sends the target back to the lobby spawn point. The connection stays open.
func (e *AdminExecutor) Kick(username, reason string) bool {
	before, after, ok := e.reg.UpdateByName(username, func(s *Session) {
		s.Room = e.lobby
		s.X, s.Y, s.Dir = e.spawn.X, e.spawn.Y, e.spawn.Dir
		s.Moving = false
	})
	if !ok {
		e.logger.Info("kick: no such player", zap.String("name", username))
		return false
	}
	e.reg.SendTo(after.Key, protocol.KickedLine(reason))
	e.reg.BroadcastToRoom(before.Room, after.Key, protocol.PlayerLeftLine(after.Name))
	e.reg.BroadcastToRoom(after.Room, after.Key, joinedLine(after))
	return true
}

func (e *AdminExecutor) MovePlayer(username, roomID string) bool {
	before, after, ok := e.reg.UpdateByName(username, func(s *Session) { s.Room = roomID })
	if !ok {
		e.logger.Info("move: no such player", zap.String("name", username))
		return false
	}
	if before.Room == after.Room {
		e.logger.Debug("move: player already in room", zap.String("name", username), zap.String("room", roomID))
		return true
	}
	e.reg.BroadcastToRoom(before.Room, after.Key, protocol.PlayerLeftLine(after.Name))
	e.reg.SendTo(after.Key, protocol.ForceRoomChangeLine(roomID))
	e.reg.BroadcastToRoom(roomID, after.Key, joinedLine(after))
	return true
}

// Announce sends an adminMessage to roomID, or to everyone when roomID is empty.
func (e *AdminExecutor) Announce(roomID, text string) int {
	line := protocol.AdminMessageLine(text)
	if roomID == "" {
		return e.reg.Broadcast("", line)
	}
	return e.reg.BroadcastToRoom(roomID, "", line)
}
