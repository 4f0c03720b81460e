// Package protocol defines the newline-delimited text protocol spoken between
// game clients and the session server.
//
// Every line is a space-separated list of tokens; the first token is the verb.
// Client lines are parsed into a closed set of Command values so the dispatcher
// can switch over them exhaustively.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Verb string

// Client to server verbs.
const (
	VerbJoin        Verb = "join"
	VerbMove        Verb = "move"
	VerbChat        Verb = "chat"
	VerbChangeRoom  Verb = "changeRoom"
	VerbLeaveRoom   Verb = "leaveRoom"
	VerbWantDetails Verb = "wantDetails"
	VerbDetailsFor  Verb = "detailsFor"
	VerbBye         Verb = "bye"
)

// Verbs returns every verb a client may send, in protocol order.
func Verbs() []Verb {
	return []Verb{
		VerbJoin, VerbMove, VerbChat, VerbChangeRoom,
		VerbLeaveRoom, VerbWantDetails, VerbDetailsFor, VerbBye,
	}
}

// Command is a parsed client line. The set of implementations is closed.
type Command interface {
	Verb() Verb
	command()
}

type Join struct {
	Name   string
	Gender string
	X, Y   int
	Dir    int
	Room   string // empty means the server's lobby
}

type Move struct {
	X, Y   int
	Dir    int
	Moving bool
}

type Chat struct {
	Text string
}

type ChangeRoom struct {
	Room string
}

type LeaveRoom struct {
	Room string
}

// WantDetails asks that the sender's state be delivered to the session at Addr:Port.
type WantDetails struct {
	Addr string
	Port string
}

// DetailsFor is relayed verbatim to the session at Addr:Port.
type DetailsFor struct {
	Addr    string
	Port    string
	Payload string
}

type Bye struct{}

func (Join) Verb() Verb        { return VerbJoin }
func (Move) Verb() Verb        { return VerbMove }
func (Chat) Verb() Verb        { return VerbChat }
func (ChangeRoom) Verb() Verb  { return VerbChangeRoom }
func (LeaveRoom) Verb() Verb   { return VerbLeaveRoom }
func (WantDetails) Verb() Verb { return VerbWantDetails }
func (DetailsFor) Verb() Verb  { return VerbDetailsFor }
func (Bye) Verb() Verb         { return VerbBye }

func (Join) command()        {}
func (Move) command()        {}
func (Chat) command()        {}
func (ChangeRoom) command()  {}
func (LeaveRoom) command()   {}
func (WantDetails) command() {}
func (DetailsFor) command()  {}
func (Bye) command()         {}

// Wire error codes sent back in ERR lines.
const (
	CodeMalformed     = "malformed"
	CodeUnknownVerb   = "unknown_command"
	CodeNotJoined     = "not_joined"
	CodeAlreadyJoined = "already_joined"
	CodeRateLimited   = "rate_limited"
)

var (
	ErrEmptyLine   = errors.New("empty line")
	ErrMalformed   = errors.New("malformed command")
	ErrUnknownVerb = errors.New("unknown command")
)

// ParseError describes a client line that could not be turned into a Command.
type ParseError struct {
	Verb   string
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Verb, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Verb, e.Err, e.Detail)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Code returns the wire code matching the error.
func (e *ParseError) Code() string {
	if errors.Is(e.Err, ErrUnknownVerb) {
		return CodeUnknownVerb
	}
	return CodeMalformed
}

// Parse turns one client line into a Command.
func Parse(line string) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrEmptyLine
	}
	verb, args := fields[0], fields[1:]

	switch Verb(verb) {
	case VerbJoin:
		return parseJoin(args)
	case VerbMove:
		return parseMove(args)
	case VerbChat:
		text := restAfter(line, 1)
		if text == "" {
			return nil, malformed(verb, "missing text")
		}
		return Chat{Text: text}, nil
	case VerbChangeRoom:
		if len(args) < 1 {
			return nil, malformed(verb, "missing room")
		}
		return ChangeRoom{Room: args[0]}, nil
	case VerbLeaveRoom:
		if len(args) < 1 {
			return nil, malformed(verb, "missing room")
		}
		return LeaveRoom{Room: args[0]}, nil
	case VerbWantDetails:
		if len(args) < 2 {
			return nil, malformed(verb, "want <addr> <port>")
		}
		return WantDetails{Addr: args[0], Port: args[1]}, nil
	case VerbDetailsFor:
		if len(args) < 2 {
			return nil, malformed(verb, "want <addr> <port> <payload>")
		}
		return DetailsFor{Addr: args[0], Port: args[1], Payload: restAfter(line, 3)}, nil
	case VerbBye:
		return Bye{}, nil
	default:
		return nil, &ParseError{Verb: verb, Err: ErrUnknownVerb}
	}
}

func parseJoin(args []string) (Command, error) {
	if len(args) < 5 {
		return nil, malformed(string(VerbJoin), "want <name> <gender> <x> <y> <dir> [room]")
	}
	nums, err := atois(string(VerbJoin), args[2:5])
	if err != nil {
		return nil, err
	}
	j := Join{Name: args[0], Gender: args[1], X: nums[0], Y: nums[1], Dir: nums[2]}
	if len(args) > 5 {
		j.Room = args[5]
	}
	return j, nil
}

func parseMove(args []string) (Command, error) {
	if len(args) < 4 {
		return nil, malformed(string(VerbMove), "want <x> <y> <dir> <moving>")
	}
	nums, err := atois(string(VerbMove), args[:3])
	if err != nil {
		return nil, err
	}
	moving, err := strconv.ParseBool(args[3])
	if err != nil {
		return nil, malformed(string(VerbMove), fmt.Sprintf("moving %q is not a boolean", args[3]))
	}
	return Move{X: nums[0], Y: nums[1], Dir: nums[2], Moving: moving}, nil
}

func atois(verb string, tokens []string) ([]int, error) {
	out := make([]int, len(tokens))
	for i, tok := range tokens {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, malformed(verb, fmt.Sprintf("%q is not an integer", tok))
		}
		out[i] = n
	}
	return out, nil
}

// restAfter returns the raw remainder of line after skipping n tokens,
// preserving the spacing inside it.
func restAfter(line string, n int) string {
	rest := strings.TrimLeft(line, " \t")
	for i := 0; i < n; i++ {
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			return ""
		}
		rest = strings.TrimLeft(rest[idx:], " \t")
	}
	return strings.TrimRight(rest, " \t")
}

func malformed(verb, detail string) error {
	return &ParseError{Verb: verb, Detail: detail, Err: ErrMalformed}
}
