// internal/registry/registry.go
package registry

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Envelope is one outbound wire message: the event type plus its already
// marshaled JSON body. Marshaling happens once per fan-out, not per recipient.
type Envelope struct {
	Type string
	Data []byte
}

// Conn is the server-side handle for a single live websocket connection.
// It is a weak reference to the participant identity plus an out-queue; it
// does not own any room state.
type Conn struct {
	UserID   uuid.UUID
	Username string

	// Cancel stops the goroutines tied to this connection's context.
	Cancel func()

	// Out is drained by the connection's write pump.
	Out chan Envelope
}

// NewConn returns a connection handle with a buffered out-queue.
func NewConn(userID uuid.UUID, username string) *Conn {
	return &Conn{
		UserID:   userID,
		Username: username,
		Out:      make(chan Envelope, 16),
	}
}

// Write pushes an envelope onto the out-queue without blocking. If the queue
// is full or closed the message is dropped and logged; slow consumers must not
// stall room fan-out.
func (c *Conn) Write(ev Envelope) {
	select {
	case c.Out <- ev:
	default:
		log.Printf("registry: out-queue for user %s full or closed, dropped '%s'", c.UserID, ev.Type)
	}
}

// Departure reports one room a dropped connection was subscribed to.
type Departure struct {
	RoomID uuid.UUID
	// Empty is true when the room's broadcast group has no members left.
	Empty bool
}

// Registry maps live connections to the rooms they are subscribed to and
// provides the room fan-out primitive. It holds no participant state.
type Registry struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]map[*Conn]struct{}
	conns map[*Conn]map[uuid.UUID]struct{}
}

func New() *Registry {
	return &Registry{
		rooms: make(map[uuid.UUID]map[*Conn]struct{}),
		conns: make(map[*Conn]map[uuid.UUID]struct{}),
	}
}

// Subscribe adds the connection to the room's broadcast group. Idempotent.
func (r *Registry) Subscribe(c *Conn, roomID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.rooms[roomID]
	if !ok {
		group = make(map[*Conn]struct{})
		r.rooms[roomID] = group
	}
	group[c] = struct{}{}

	memberOf, ok := r.conns[c]
	if !ok {
		memberOf = make(map[uuid.UUID]struct{})
		r.conns[c] = memberOf
	}
	memberOf[roomID] = struct{}{}
}

// Unsubscribe removes the connection from the room's group. Safe to call for
// a connection that was never subscribed. Returns true when the group is now
// empty (and has been deleted).
func (r *Registry) Unsubscribe(c *Conn, roomID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unsubscribeLocked(c, roomID)
}

func (r *Registry) unsubscribeLocked(c *Conn, roomID uuid.UUID) bool {
	group, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	delete(group, c)
	if memberOf, ok := r.conns[c]; ok {
		delete(memberOf, roomID)
		if len(memberOf) == 0 {
			delete(r.conns, c)
		}
	}
	if len(group) == 0 {
		delete(r.rooms, roomID)
		return true
	}
	return false
}

// Drop unsubscribes the connection from every room it was part of, returning
// one Departure per room so the caller can run leave-cleanup.
func (r *Registry) Drop(c *Conn) []Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	memberOf := r.conns[c]
	departures := make([]Departure, 0, len(memberOf))
	for roomID := range memberOf {
		empty := r.unsubscribeLocked(c, roomID)
		departures = append(departures, Departure{RoomID: roomID, Empty: empty})
	}
	return departures
}

// Broadcast delivers the envelope to every current member of the room except
// exclude (pass nil to include everyone). Delivery per recipient is
// best-effort; a full out-queue drops rather than stalls. Messages from a
// single source are enqueued in send order for every member.
func (r *Registry) Broadcast(roomID uuid.UUID, ev Envelope, exclude *Conn) {
	r.mu.Lock()
	group := r.rooms[roomID]
	targets := make([]*Conn, 0, len(group))
	for c := range group {
		if c != exclude {
			targets = append(targets, c)
		}
	}
	r.mu.Unlock()

	for _, c := range targets {
		c.Write(ev)
	}
}

// BroadcastExceptUser delivers the envelope to every member of the room whose
// connection does not belong to userID. Used when the originator is known by
// identity rather than by connection (e.g. a REST-triggered fan-out).
func (r *Registry) BroadcastExceptUser(roomID uuid.UUID, ev Envelope, userID uuid.UUID) {
	r.mu.Lock()
	group := r.rooms[roomID]
	targets := make([]*Conn, 0, len(group))
	for c := range group {
		if c.UserID != userID {
			targets = append(targets, c)
		}
	}
	r.mu.Unlock()

	for _, c := range targets {
		c.Write(ev)
	}
}

// RoomSize reports the current broadcast-group size. Used for diagnostics.
func (r *Registry) RoomSize(roomID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[roomID])
}
