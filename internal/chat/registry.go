package chat

import (
	"sort"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Registry is the directory of joined sessions. Every mutation and every
// iteration runs under one mutex, so a broadcast never races an add or remove.
// Delivery goes through Client.Send, which never blocks, so holding the lock
// while fanning out cannot stall on a slow peer.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	seq     uint64
	logger  *zap.Logger
}

type entry struct {
	session Session
	client  *Client
	seq     uint64
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

func (r *Registry) Add(s Session, c *Client) error {
	if s.Key == "" {
		return ErrEmptyKey
	}
	if c == nil {
		return ErrNoClient
	}
	r.mu.Lock()
	if _, exists := r.entries[s.Key]; exists {
		r.mu.Unlock()
		return ErrDuplicateKey
	}
	r.seq++
	r.entries[s.Key] = &entry{session: s, client: c, seq: r.seq}
	ConnectedSessions.Set(float64(len(r.entries)))
	r.mu.Unlock()

	r.observeRooms(s.Room)
	return nil
}

func (r *Registry) Remove(key string) (Session, bool) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()
		return Session{}, false
	}
	delete(r.entries, key)
	ConnectedSessions.Set(float64(len(r.entries)))
	r.mu.Unlock()

	r.observeRooms(e.session.Room)
	return e.session, true
}

func (r *Registry) Lookup(key string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return Session{}, false
	}
	return e.session, true
}

// LookupByName returns the earliest-joined session using name.
func (r *Registry) LookupByName(name string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.byNameLocked(name)
	if e == nil {
		return Session{}, false
	}
	return e.session, true
}

// Update mutates the session under the lock and returns it before and after.
func (r *Registry) Update(key string, fn func(*Session)) (before, after Session, ok bool) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()
		return Session{}, Session{}, false
	}
	before, after = r.updateLocked(e, fn)
	r.mu.Unlock()

	if before.Room != after.Room {
		r.observeRooms(before.Room, after.Room)
	}
	return before, after, true
}

func (r *Registry) UpdateByName(name string, fn func(*Session)) (before, after Session, ok bool) {
	r.mu.Lock()
	e := r.byNameLocked(name)
	if e == nil {
		r.mu.Unlock()
		return Session{}, Session{}, false
	}
	before, after = r.updateLocked(e, fn)
	r.mu.Unlock()

	if before.Room != after.Room {
		r.observeRooms(before.Room, after.Room)
	}
	return before, after, true
}

func (r *Registry) updateLocked(e *entry, fn func(*Session)) (Session, Session) {
	before := e.session
	fn(&e.session)
	// identity fields belong to the connection
	e.session.Key, e.session.Addr, e.session.Port = before.Key, before.Addr, before.Port
	return before, e.session
}

// Broadcast sends line to every session except excludeKey and returns how many accepted it.
func (r *Registry) Broadcast(excludeKey, line string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, e := range r.entries {
		if key == excludeKey {
			continue
		}
		if e.client.Send(line) {
			n++
		}
	}
	return n
}

// BroadcastToRoom sends line to sessions currently in room, except excludeKey.
func (r *Registry) BroadcastToRoom(room, excludeKey, line string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, e := range r.entries {
		if key == excludeKey || e.session.Room != room {
			continue
		}
		if e.client.Send(line) {
			n++
		}
	}
	return n
}

func (r *Registry) SendTo(key, line string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		r.logger.Debug("unicast target not registered", zap.String("key", key))
		return false
	}
	return e.client.Send(line)
}

func (r *Registry) SendToByName(name, line string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.byNameLocked(name)
	if e == nil {
		r.logger.Debug("unicast target name not registered", zap.String("name", name))
		return false
	}
	return e.client.Send(line)
}

// Members returns the sessions in room in join order.
func (r *Registry) Members(room string) []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	inRoom := lo.Filter(lo.Values(r.entries), func(e *entry, _ int) bool { return e.session.Room == room })
	sort.Slice(inRoom, func(i, j int) bool { return inRoom[i].seq < inRoom[j].seq })
	return lo.Map(inRoom, func(e *entry, _ int) Session { return e.session })
}

// observeRooms publishes the current size of each room. Empty rooms drop their series.
func (r *Registry) observeRooms(rooms ...string) {
	for _, room := range rooms {
		if n := len(r.Members(room)); n > 0 {
			RoomSessions.WithLabelValues(room).Set(float64(n))
		} else {
			RoomSessions.DeleteLabelValues(room)
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) byNameLocked(name string) *entry {
	var found *entry
	for _, e := range r.entries {
		if e.session.Name != name {
			continue
		}
		if found == nil || e.seq < found.seq {
			found = e
		}
	}
	return found
}
