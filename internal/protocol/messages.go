package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Server to client verbs.
const (
	VerbPlayerJoined    = "playerJoined"
	VerbPlayerMoved     = "playerMoved"
	VerbPlayerChat      = "playerChat"
	VerbPlayerLeft      = "playerLeft"
	VerbForceRoomChange = "forceRoomChange"
	VerbAdminMessage    = "adminMessage"
	VerbKicked          = "KICKED"
	VerbError           = "ERR"
)

func PlayerJoinedLine(name, gender string, x, y, dir int) string {
	return fmt.Sprintf("%s %s %s %d %d %d", VerbPlayerJoined, name, gender, x, y, dir)
}

func PlayerMovedLine(name string, x, y, dir int, moving bool) string {
	return fmt.Sprintf("%s %s %d %d %d %s", VerbPlayerMoved, name, x, y, dir, strconv.FormatBool(moving))
}

func PlayerChatLine(name, text string) string {
	return VerbPlayerChat + " " + name + " " + text
}

func PlayerLeftLine(name string) string {
	return VerbPlayerLeft + " " + name
}

func WantDetailsLine(addr, port string) string {
	return string(VerbWantDetails) + " " + addr + " " + port
}

// DetailsForLine reports one session's state to the session at addr:port.
func DetailsForLine(addr, port, name, gender string, x, y, dir int) string {
	return fmt.Sprintf("%s %s %s %s %s %d %d %d", VerbDetailsFor, addr, port, name, gender, x, y, dir)
}

// RelayDetailsLine rebuilds a client-supplied detailsFor line without touching its payload.
func RelayDetailsLine(d DetailsFor) string {
	line := string(VerbDetailsFor) + " " + d.Addr + " " + d.Port
	if d.Payload != "" {
		line += " " + d.Payload
	}
	return line
}

func ForceRoomChangeLine(room string) string {
	return VerbForceRoomChange + " " + room
}

func AdminMessageLine(text string) string {
	return VerbAdminMessage + " " + text
}

func KickedLine(reason string) string {
	return strings.TrimSpace(VerbKicked + " " + reason)
}

// ErrorLine formats an error reply, e.g. "ERR malformed move: want <x> <y> <dir> <moving>".
func ErrorLine(code, detail string) string {
	return strings.TrimSpace(VerbError + " " + code + " " + detail)
}
