// Package admin carries administrative intents (kick, move, announce) from an
// external process into the running session server through a shared queue file.
package admin

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ActionType string

const (
	ActionKick       ActionType = "KICK"
	ActionMovePlayer ActionType = "MOVE_PLAYER"
	ActionAnnounce   ActionType = "ANNOUNCE"
)

const fieldCount = 7

// MaxReasonLen caps the free-text field so a queue line stays far below MaxLineLen.
const MaxReasonLen = 4096

var ErrInvalidAction = errors.New("invalid admin action")

// Action is one queued administrative intent. ID never changes once assigned
// and Executed only ever goes from false to true.
type Action struct {
	ID        string
	Type      ActionType
	Username  string
	RoomID    string
	Reason    string
	CreatedAt time.Time
	Executed  bool
}

func NewKick(username, reason string, now time.Time) (Action, error) {
	a := Action{ID: newID(), Type: ActionKick, Username: username, Reason: reason, CreatedAt: now}
	return a, a.Validate()
}

func NewMovePlayer(username, roomID string, now time.Time) (Action, error) {
	a := Action{ID: newID(), Type: ActionMovePlayer, Username: username, RoomID: roomID, CreatedAt: now}
	return a, a.Validate()
}

// NewAnnounce broadcasts text to roomID, or to every session when roomID is empty.
func NewAnnounce(roomID, text string, now time.Time) (Action, error) {
	a := Action{ID: newID(), Type: ActionAnnounce, RoomID: roomID, Reason: text, CreatedAt: now}
	return a, a.Validate()
}

func newID() string {
	return uuid.NewString()
}

func (a Action) Validate() error {
	if a.ID == "" || !isToken(a.ID) {
		return fmt.Errorf("%w: bad id %q", ErrInvalidAction, a.ID)
	}
	if len(a.Reason) > MaxReasonLen {
		return fmt.Errorf("%w: reason longer than %d bytes", ErrInvalidAction, MaxReasonLen)
	}
	switch a.Type {
	case ActionKick:
		if !isToken(a.Username) {
			return fmt.Errorf("%w: kick needs a username", ErrInvalidAction)
		}
	case ActionMovePlayer:
		if !isToken(a.Username) || !isToken(a.RoomID) {
			return fmt.Errorf("%w: move needs a username and a room", ErrInvalidAction)
		}
	case ActionAnnounce:
		if a.RoomID != "" && !isToken(a.RoomID) {
			return fmt.Errorf("%w: bad room %q", ErrInvalidAction, a.RoomID)
		}
		if strings.TrimSpace(a.Reason) == "" {
			return fmt.Errorf("%w: announce needs text", ErrInvalidAction)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
	}
	return nil
}

// isToken reports whether s can travel as a single protocol token.
func isToken(s string) bool {
	return s != "" && !strings.ContainsAny(s, " \t\r\n|")
}

// Encode renders the queue line: id|type|username|roomId|reason|timestamp|executed.
func (a Action) Encode() string {
	return strings.Join([]string{
		a.ID,
		string(a.Type),
		sanitize(a.Username),
		sanitize(a.RoomID),
		sanitize(a.Reason),
		strconv.FormatInt(a.CreatedAt.UnixMilli(), 10),
		strconv.FormatBool(a.Executed),
	}, "|")
}

func sanitize(s string) string {
	return strings.NewReplacer("|", " ", "\r", " ", "\n", " ").Replace(s)
}

// Decode parses one queue line.
func Decode(line string) (Action, error) {
	parts := strings.Split(strings.TrimRight(line, "\r\n"), "|")
	if len(parts) != fieldCount {
		return Action{}, fmt.Errorf("%w: want %d fields, got %d", ErrInvalidAction, fieldCount, len(parts))
	}
	ms, err := strconv.ParseInt(parts[5], 10, 64)
	if err != nil {
		return Action{}, fmt.Errorf("%w: timestamp %q", ErrInvalidAction, parts[5])
	}
	executed, err := strconv.ParseBool(parts[6])
	if err != nil {
		return Action{}, fmt.Errorf("%w: executed flag %q", ErrInvalidAction, parts[6])
	}
	a := Action{
		ID:        parts[0],
		Type:      ActionType(parts[1]),
		Username:  parts[2],
		RoomID:    parts[3],
		Reason:    parts[4],
		CreatedAt: time.UnixMilli(ms),
		Executed:  executed,
	}
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}
