// internal/registry/registry_test.go
package registry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Conn) []Envelope {
	var out []Envelope
	for {
		select {
		case ev := <-c.Out:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	reg := New()
	roomID := uuid.New()

	a := NewConn(uuid.New(), "alice")
	b := NewConn(uuid.New(), "bob")
	reg.Subscribe(a, roomID)
	reg.Subscribe(b, roomID)

	reg.Broadcast(roomID, Envelope{Type: "code_update", Data: []byte(`{}`)}, a)

	assert.Empty(t, drain(a), "sender must not receive its own broadcast")
	got := drain(b)
	require.Len(t, got, 1)
	assert.Equal(t, "code_update", got[0].Type)
}

func TestBroadcastNilExcludeReachesEveryone(t *testing.T) {
	reg := New()
	roomID := uuid.New()

	a := NewConn(uuid.New(), "alice")
	b := NewConn(uuid.New(), "bob")
	reg.Subscribe(a, roomID)
	reg.Subscribe(b, roomID)

	reg.Broadcast(roomID, Envelope{Type: "participant_left", Data: []byte(`{}`)}, nil)

	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
}

func TestBroadcastExceptUserCoversAllConnsOfUser(t *testing.T) {
	reg := New()
	roomID := uuid.New()
	alice := uuid.New()

	// Alice holds two tabs; both must be excluded by identity.
	a1 := NewConn(alice, "alice")
	a2 := NewConn(alice, "alice")
	b := NewConn(uuid.New(), "bob")
	reg.Subscribe(a1, roomID)
	reg.Subscribe(a2, roomID)
	reg.Subscribe(b, roomID)

	reg.BroadcastExceptUser(roomID, Envelope{Type: "test_run", Data: []byte(`{}`)}, alice)

	assert.Empty(t, drain(a1))
	assert.Empty(t, drain(a2))
	assert.Len(t, drain(b), 1)
}

func TestSubscribeIdempotent(t *testing.T) {
	reg := New()
	roomID := uuid.New()
	c := NewConn(uuid.New(), "alice")

	reg.Subscribe(c, roomID)
	reg.Subscribe(c, roomID)
	assert.Equal(t, 1, reg.RoomSize(roomID))

	reg.Broadcast(roomID, Envelope{Type: "room_state", Data: []byte(`{}`)}, nil)
	assert.Len(t, drain(c), 1, "double subscription must not double delivery")
}

func TestUnsubscribeReportsEmpty(t *testing.T) {
	reg := New()
	roomID := uuid.New()

	a := NewConn(uuid.New(), "alice")
	b := NewConn(uuid.New(), "bob")
	reg.Subscribe(a, roomID)
	reg.Subscribe(b, roomID)

	assert.False(t, reg.Unsubscribe(a, roomID))
	assert.True(t, reg.Unsubscribe(b, roomID))
	assert.Equal(t, 0, reg.RoomSize(roomID))

	// Never-subscribed connection is a safe no-op.
	assert.False(t, reg.Unsubscribe(NewConn(uuid.New(), "carol"), roomID))
}

func TestDropReturnsAllDepartures(t *testing.T) {
	reg := New()
	room1 := uuid.New()
	room2 := uuid.New()

	a := NewConn(uuid.New(), "alice")
	b := NewConn(uuid.New(), "bob")
	reg.Subscribe(a, room1)
	reg.Subscribe(a, room2)
	reg.Subscribe(b, room1)

	deps := reg.Drop(a)
	require.Len(t, deps, 2)

	byRoom := make(map[uuid.UUID]bool, len(deps))
	for _, d := range deps {
		byRoom[d.RoomID] = d.Empty
	}
	assert.False(t, byRoom[room1], "bob still holds room1")
	assert.True(t, byRoom[room2], "room2 had only alice")

	// Dropped connection no longer receives anything.
	reg.Broadcast(room1, Envelope{Type: "code_update", Data: []byte(`{}`)}, nil)
	assert.Empty(t, drain(a))
	assert.Len(t, drain(b), 1)

	// A second drop is a no-op.
	assert.Empty(t, reg.Drop(a))
}

func TestBroadcastPreservesSendOrder(t *testing.T) {
	reg := New()
	roomID := uuid.New()

	sender := NewConn(uuid.New(), "alice")
	receiver := NewConn(uuid.New(), "bob")
	reg.Subscribe(sender, roomID)
	reg.Subscribe(receiver, roomID)

	for i := 0; i < 5; i++ {
		reg.Broadcast(roomID, Envelope{Type: "cursor_update", Data: []byte{byte('0' + i)}}, sender)
	}

	got := drain(receiver)
	require.Len(t, got, 5)
	for i, ev := range got {
		assert.Equal(t, []byte{byte('0' + i)}, ev.Data)
	}
}

func TestWriteDropsWhenQueueFull(t *testing.T) {
	c := NewConn(uuid.New(), "alice")
	for i := 0; i < cap(c.Out)+10; i++ {
		c.Write(Envelope{Type: "cursor_update"})
	}
	assert.Len(t, drain(c), cap(c.Out), "overflow must drop, not block")
}
