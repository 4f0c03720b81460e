package chat

import (
	"errors"
	"time"

	"github.com/andy6609/roomcast/internal/protocol"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type ConnState int

const (
	StateUnjoined ConnState = iota
	StateJoined
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	default:
		return "closed"
	}
}

// Worker is the per-connection state owned by one session loop.
type Worker struct {
	client  *Client
	state   ConnState
	limiter *rate.Limiter
}

// NewWorker starts in StateUnjoined. A nil limiter admits every line.
func NewWorker(c *Client, limiter *rate.Limiter) *Worker {
	return &Worker{client: c, state: StateUnjoined, limiter: limiter}
}

func (w *Worker) State() ConnState { return w.state }

func (w *Worker) Key() string { return w.client.Key }

func (w *Worker) allow() bool {
	return w.limiter == nil || w.limiter.Allow()
}

// Dispatcher applies parsed commands to the registry on behalf of a Worker.
type Dispatcher struct {
	reg    *Registry
	lobby  string
	logger *zap.Logger
}

func NewDispatcher(reg *Registry, lobby string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lobby == "" {
		lobby = DefaultLobby
	}
	return &Dispatcher{reg: reg, lobby: lobby, logger: logger}
}

const DefaultLobby = "lobby"

// Dispatch runs one command and reports whether the connection stays open.
func (d *Dispatcher) Dispatch(w *Worker, cmd protocol.Command) bool {
	start := time.Now()
	verb := string(cmd.Verb())
	defer func() {
		CommandsTotal.WithLabelValues(verb).Inc()
		CommandDuration.WithLabelValues(verb).Observe(time.Since(start).Seconds())
	}()

	switch w.state {
	case StateClosed:
		return false
	case StateUnjoined:
		switch cmd.(type) {
		case protocol.Join:
		case protocol.Bye:
			return false
		default:
			d.logger.Debug("command before join ignored", zap.String("session", w.Key()), zap.String("verb", verb))
			w.client.Send(protocol.ErrorLine(protocol.CodeNotJoined, verb))
			return true
		}
	}

	switch c := cmd.(type) {
	case protocol.Join:
		d.join(w, c)
	case protocol.Move:
		d.move(w, c)
	case protocol.Chat:
		d.chat(w, c)
	case protocol.ChangeRoom:
		d.changeRoom(w, c)
	case protocol.LeaveRoom:
		d.leaveRoom(w, c)
	case protocol.WantDetails:
		d.answerWantDetails(w, c)
	case protocol.DetailsFor:
		d.relayDetails(w, c)
	case protocol.Bye:
		return false
	default:
		d.Unknown(w, verb)
	}
	return true
}

// Reject answers a line that failed to parse. The connection stays open.
func (d *Dispatcher) Reject(w *Worker, err error) {
	var perr *protocol.ParseError
	if !errors.As(err, &perr) {
		d.logger.Warn("unexpected parse failure", zap.String("session", w.Key()), zap.Error(err))
		w.client.Send(protocol.ErrorLine(protocol.CodeMalformed, ""))
		return
	}
	if perr.Code() == protocol.CodeUnknownVerb {
		d.Unknown(w, perr.Verb)
		return
	}
	CommandsTotal.WithLabelValues("malformed").Inc()
	d.logger.Info("malformed command", zap.String("session", w.Key()), zap.Error(err))
	w.client.Send(protocol.ErrorLine(protocol.CodeMalformed, perr.Verb+": "+perr.Detail))
}

// Unknown is the fallback for verbs outside the protocol.
func (d *Dispatcher) Unknown(w *Worker, verb string) {
	CommandsTotal.WithLabelValues("unknown").Inc()
	d.logger.Info("unknown command", zap.String("session", w.Key()), zap.String("verb", verb))
	w.client.Send(protocol.ErrorLine(protocol.CodeUnknownVerb, verb))
}

// Disconnect is the single teardown path for bye, read errors and server shutdown.
func (d *Dispatcher) Disconnect(w *Worker) {
	if w.state == StateJoined {
		if s, ok := d.reg.Remove(w.Key()); ok {
			d.reg.BroadcastToRoom(s.Room, s.Key, protocol.PlayerLeftLine(s.Name))
			d.logger.Info("session left", zap.String("session", s.Key), zap.String("name", s.Name), zap.String("room", s.Room))
		}
	}
	w.state = StateClosed
	w.client.Close()
}

func (d *Dispatcher) join(w *Worker, c protocol.Join) {
	if w.state == StateJoined {
		w.client.Send(protocol.ErrorLine(protocol.CodeAlreadyJoined, ""))
		return
	}
	room := c.Room
	if room == "" {
		room = d.lobby
	}
	s := Session{
		Key:    w.client.Key,
		Addr:   w.client.Addr,
		Port:   w.client.Port,
		Name:   c.Name,
		Gender: c.Gender,
		Room:   room,
		X:      c.X,
		Y:      c.Y,
		Dir:    c.Dir,
	}
	if err := d.reg.Add(s, w.client); err != nil {
		d.logger.Warn("join rejected", zap.String("session", s.Key), zap.Error(err))
		w.client.Send(protocol.ErrorLine(protocol.CodeAlreadyJoined, err.Error()))
		return
	}
	w.state = StateJoined
	d.logger.Info("session joined", zap.String("session", s.Key), zap.String("name", s.Name), zap.String("room", room))
	d.announceArrival(s)
}

func (d *Dispatcher) move(w *Worker, c protocol.Move) {
	_, s, ok := d.reg.Update(w.Key(), func(s *Session) {
		s.X, s.Y, s.Dir, s.Moving = c.X, c.Y, c.Dir, c.Moving
	})
	if !ok {
		d.logger.Info("move from unregistered session", zap.String("session", w.Key()))
		return
	}
	d.reg.BroadcastToRoom(s.Room, s.Key, protocol.PlayerMovedLine(s.Name, s.X, s.Y, s.Dir, s.Moving))
}

func (d *Dispatcher) chat(w *Worker, c protocol.Chat) {
	s, ok := d.reg.Lookup(w.Key())
	if !ok {
		d.logger.Info("chat from unregistered session", zap.String("session", w.Key()))
		return
	}
	d.reg.BroadcastToRoom(s.Room, s.Key, protocol.PlayerChatLine(s.Name, c.Text))
}

func (d *Dispatcher) changeRoom(w *Worker, c protocol.ChangeRoom) {
	before, after, ok := d.reg.Update(w.Key(), func(s *Session) { s.Room = c.Room })
	if !ok {
		d.logger.Info("changeRoom from unregistered session", zap.String("session", w.Key()))
		return
	}
	if before.Room == after.Room {
		d.logger.Debug("changeRoom to current room ignored", zap.String("session", w.Key()), zap.String("room", c.Room))
		return
	}
	d.reg.BroadcastToRoom(before.Room, after.Key, protocol.PlayerLeftLine(after.Name))
	d.logger.Info("session changed room", zap.String("session", after.Key),
		zap.String("from", before.Room), zap.String("to", after.Room))
	d.announceArrival(after)
}

func (d *Dispatcher) leaveRoom(w *Worker, c protocol.LeaveRoom) {
	s, ok := d.reg.Lookup(w.Key())
	if !ok {
		return
	}
	d.reg.BroadcastToRoom(c.Room, s.Key, protocol.PlayerLeftLine(s.Name))
}
