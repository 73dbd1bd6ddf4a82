// internal/session/session.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dkwon/codepair/internal/cache"
	"github.com/dkwon/codepair/internal/models"
	"github.com/dkwon/codepair/internal/presence"
	"github.com/dkwon/codepair/internal/registry"
	"github.com/dkwon/codepair/internal/roomstore"
)

// RoomState is a connection's participation state for one room.
type RoomState int

const (
	NotJoined RoomState = iota
	Joined
	Left
)

// Session is the per-connection protocol state. Each (connection, room) pair
// walks NOT_JOINED -> JOINED -> LEFT independently. The rooms map is touched
// only by the connection's own read pump and the post-pump disconnect
// cleanup, so it needs no lock.
type Session struct {
	Conn     *registry.Conn
	UserID   uuid.UUID
	Username string

	rooms map[uuid.UUID]RoomState
}

func NewSession(conn *registry.Conn) *Session {
	return &Session{
		Conn:     conn,
		UserID:   conn.UserID,
		Username: conn.Username,
		rooms:    make(map[uuid.UUID]RoomState),
	}
}

// State reports the session's participation state for a room.
func (s *Session) State(roomID uuid.UUID) RoomState {
	return s.rooms[roomID]
}

// Handler coordinates join/leave/edit/cursor/test events: it applies them to
// the room store and presence tracker and fans deltas out through the
// registry. Validation failures go back to the originating connection only
// and never partially broadcast.
type Handler struct {
	Registry *registry.Registry
	Rooms    *roomstore.Store
	Presence *presence.Tracker
	Logger   *logrus.Logger

	// History publishes room events to the historian queue. Nil disables it;
	// failures are logged and never block the handler.
	History func(ctx context.Context, rec cache.RoomEventRecord) error
}

// HandleMessage parses and dispatches one inbound frame. Called serially from
// the connection's read pump, so per-room mutations from a single connection
// keep their send order.
func (h *Handler) HandleMessage(ctx context.Context, sess *Session, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.Logger.Warnf("session: invalid json from user %s: %v", sess.UserID, err)
		h.sendError(sess, "invalid JSON format")
		return
	}

	roomID, err := uuid.Parse(msg.RoomID)
	if err != nil {
		h.sendError(sess, "invalid or missing roomId")
		return
	}

	switch msg.Type {
	case EvtJoinRoom:
		h.handleJoin(ctx, sess, roomID)
	case EvtLeaveRoom:
		h.handleLeave(ctx, sess, roomID)
	case EvtCodeChange:
		h.handleCodeChange(ctx, sess, roomID, msg.Code, msg.Language)
	case EvtCursorMove:
		h.handleCursorMove(sess, roomID, msg.Position)
	case EvtLineAuthorsUpdate:
		h.handleLineAuthorsUpdate(sess, roomID, msg.LineAuthors)
	case EvtRequestLineAuthors:
		h.sendLineAuthors(sess, roomID)
	case EvtTestRun, EvtSubmission:
		h.handleRunFanout(ctx, sess, roomID, msg)
	default:
		h.sendError(sess, fmt.Sprintf("unknown event type: %s", msg.Type))
	}
}

// handleJoin runs the NOT_JOINED -> JOINED transition: admission through the
// store, registry subscription, full snapshot to the joiner, delta to the
// rest. Nothing is broadcast and nothing is subscribed until persistence of
// the admission has succeeded.
func (h *Handler) handleJoin(ctx context.Context, sess *Session, roomID uuid.UUID) {
	room, err := h.Rooms.AdmitParticipant(ctx, roomID, sess.UserID, sess.Username)
	if err != nil {
		h.Logger.Warnf("session: join refused for user %s room %s: %v", sess.UserID, roomID, err)
		h.sendError(sess, joinErrorMessage(err))
		return
	}

	alreadyJoined := sess.rooms[roomID] == Joined
	sess.rooms[roomID] = Joined
	h.Registry.Subscribe(sess.Conn, roomID)

	h.send(sess.Conn, ServerMessage{
		Type:   EvtRoomState,
		RoomID: roomID.String(),
		Room:   room,
	})
	h.send(sess.Conn, ServerMessage{
		Type:        EvtInitialLineAuthors,
		RoomID:      roomID.String(),
		LineAuthors: h.Presence.Authors(roomID),
	})

	// A re-join only refreshes the joiner's snapshot.
	if alreadyJoined {
		return
	}

	h.broadcast(roomID, ServerMessage{
		Type:     EvtParticipantJoined,
		RoomID:   roomID.String(),
		UserID:   sess.UserID.String(),
		Username: sess.Username,
		Room:     room,
	}, sess.Conn)
	h.publishHistory(ctx, roomID, sess.UserID, EvtJoinRoom, nil)

	h.Logger.WithFields(logrus.Fields{
		"room": roomID,
		"user": sess.UserID,
	}).Info("participant joined")
}

// handleLeave runs the explicit JOINED -> LEFT transition. Unlike a transport
// disconnect, an explicit leave frees the seat. A departing host completes
// the room.
func (h *Handler) handleLeave(ctx context.Context, sess *Session, roomID uuid.UUID) {
	if sess.rooms[roomID] != Joined {
		h.sendError(sess, "not joined to room")
		return
	}

	room, err := h.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		h.sendError(sess, joinErrorMessage(err))
		return
	}

	if err := h.Rooms.RemoveParticipant(ctx, roomID, sess.UserID); err != nil {
		h.Logger.Warnf("session: leave failed for user %s room %s: %v", sess.UserID, roomID, err)
		h.sendError(sess, "failed to leave room")
		return
	}
	if room.CreatedBy == sess.UserID {
		if err := h.Rooms.SetStatus(ctx, roomID, models.RoomStatusCompleted); err != nil {
			h.Logger.Warnf("session: failed to complete room %s on host leave: %v", roomID, err)
		}
	}

	sess.rooms[roomID] = Left
	empty := h.Registry.Unsubscribe(sess.Conn, roomID)
	h.Presence.ClearIfOwnedBy(roomID, sess.UserID)

	if empty {
		h.Presence.Drop(roomID)
		h.Rooms.Release(roomID)
	} else {
		h.broadcast(roomID, ServerMessage{
			Type:     EvtParticipantLeft,
			RoomID:   roomID.String(),
			UserID:   sess.UserID.String(),
			Username: sess.Username,
		}, sess.Conn)
	}
	h.publishHistory(ctx, roomID, sess.UserID, EvtLeaveRoom, nil)

	h.Logger.WithFields(logrus.Fields{
		"room": roomID,
		"user": sess.UserID,
	}).Info("participant left")
}

// handleCodeChange persists the sender's buffer and fans the new content out
// to everyone else. The sender already holds the authoritative local copy, so
// it never receives its own echo.
func (h *Handler) handleCodeChange(ctx context.Context, sess *Session, roomID uuid.UUID, code, language string) {
	if sess.rooms[roomID] != Joined {
		h.sendError(sess, "not joined to room")
		return
	}

	if _, err := h.Rooms.UpdateParticipantCode(ctx, roomID, sess.UserID, code, language); err != nil {
		if errors.Is(err, roomstore.ErrNotAParticipant) {
			h.sendError(sess, "not a participant in this room")
		} else {
			h.Logger.Warnf("session: code update failed for user %s room %s: %v", sess.UserID, roomID, err)
			h.sendError(sess, "failed to save code")
		}
		return
	}

	h.broadcast(roomID, ServerMessage{
		Type:     EvtCodeUpdate,
		RoomID:   roomID.String(),
		UserID:   sess.UserID.String(),
		Code:     code,
		Language: language,
	}, sess.Conn)
	h.publishHistory(ctx, roomID, sess.UserID, EvtCodeChange, map[string]interface{}{
		"language": language,
	})
}

// handleCursorMove is pure fire-and-forget fan-out. No persistence, no
// delivery report to the sender.
func (h *Handler) handleCursorMove(sess *Session, roomID uuid.UUID, position json.RawMessage) {
	if sess.rooms[roomID] != Joined {
		return
	}
	h.broadcast(roomID, ServerMessage{
		Type:     EvtCursorUpdate,
		RoomID:   roomID.String(),
		UserID:   sess.UserID.String(),
		Position: position,
	}, sess.Conn)
}

// handleLineAuthorsUpdate stores the full attribution snapshot and relays it.
func (h *Handler) handleLineAuthorsUpdate(sess *Session, roomID uuid.UUID, authors []models.LineAuthor) {
	if sess.rooms[roomID] != Joined {
		h.sendError(sess, "not joined to room")
		return
	}
	h.Presence.SetAuthors(roomID, authors)
	h.broadcast(roomID, ServerMessage{
		Type:        EvtLineAuthorsUpdate,
		RoomID:      roomID.String(),
		LineAuthors: authors,
	}, sess.Conn)
}

// sendLineAuthors replies with the current snapshot to the requester only.
func (h *Handler) sendLineAuthors(sess *Session, roomID uuid.UUID) {
	h.send(sess.Conn, ServerMessage{
		Type:        EvtInitialLineAuthors,
		RoomID:      roomID.String(),
		LineAuthors: h.Presence.Authors(roomID),
	})
}

// handleRunFanout relays test-run and submission results to co-participants.
// The grading itself happened elsewhere; this broadcast is informational and
// best-effort. The first run activity moves a waiting room to in-progress.
func (h *Handler) handleRunFanout(ctx context.Context, sess *Session, roomID uuid.UUID, msg ClientMessage) {
	if sess.rooms[roomID] != Joined {
		h.sendError(sess, "not joined to room")
		return
	}

	if room, err := h.Rooms.GetRoom(ctx, roomID); err == nil && room.Status == models.RoomStatusWaiting {
		if err := h.Rooms.SetStatus(ctx, roomID, models.RoomStatusInProgress); err != nil {
			h.Logger.Warnf("session: failed to mark room %s in-progress: %v", roomID, err)
		}
	}

	h.broadcast(roomID, ServerMessage{
		Type:    msg.Type,
		RoomID:  roomID.String(),
		UserID:  sess.UserID.String(),
		Results: msg.Results,
		Result:  msg.Result,
	}, sess.Conn)
	h.publishHistory(ctx, roomID, sess.UserID, msg.Type, nil)
}

// Disconnect runs transport-level leave-cleanup for every room the connection
// was part of: registry removal and authorship cleanup, but no seat removal.
// The participant's seat and saved code survive for a later rejoin.
func (h *Handler) Disconnect(ctx context.Context, sess *Session) {
	for _, dep := range h.Registry.Drop(sess.Conn) {
		sess.rooms[dep.RoomID] = Left
		h.Presence.ClearIfOwnedBy(dep.RoomID, sess.UserID)

		if dep.Empty {
			h.Presence.Drop(dep.RoomID)
			h.Rooms.Release(dep.RoomID)
			continue
		}
		h.broadcast(dep.RoomID, ServerMessage{
			Type:     EvtParticipantLeft,
			RoomID:   dep.RoomID.String(),
			UserID:   sess.UserID.String(),
			Username: sess.Username,
		}, nil)
	}
}

// BroadcastRunResult fans a REST-triggered test or submission result out to
// the room on behalf of the triggering participant. Best-effort: it never
// gates the grading response.
func (h *Handler) BroadcastRunResult(ctx context.Context, roomID, userID uuid.UUID, eventType string, result json.RawMessage) {
	// The triggering participant already has the result in hand, so their
	// connections are excluded by identity.
	h.Registry.BroadcastExceptUser(roomID, mustEnvelope(eventType, ServerMessage{
		Type:   eventType,
		RoomID: roomID.String(),
		UserID: userID.String(),
		Result: result,
	}), userID)

	if room, err := h.Rooms.GetRoom(ctx, roomID); err == nil && room.Status == models.RoomStatusWaiting {
		if err := h.Rooms.SetStatus(ctx, roomID, models.RoomStatusInProgress); err != nil {
			h.Logger.Warnf("session: failed to mark room %s in-progress: %v", roomID, err)
		}
	}
	h.publishHistory(ctx, roomID, userID, eventType, nil)
}

func (h *Handler) send(conn *registry.Conn, msg ServerMessage) {
	conn.Write(mustEnvelope(msg.Type, msg))
}

func (h *Handler) sendError(sess *Session, message string) {
	h.send(sess.Conn, ServerMessage{Type: EvtError, Message: message})
}

func (h *Handler) broadcast(roomID uuid.UUID, msg ServerMessage, exclude *registry.Conn) {
	h.Registry.Broadcast(roomID, mustEnvelope(msg.Type, msg), exclude)
}

func (h *Handler) publishHistory(ctx context.Context, roomID, userID uuid.UUID, eventType string, payload map[string]interface{}) {
	if h.History == nil {
		return
	}
	rec := cache.RoomEventRecord{
		RoomID:      roomID,
		ActorUserID: userID,
		EventType:   eventType,
		Payload:     payload,
		Timestamp:   time.Now().UnixMilli(),
	}
	if err := h.History(ctx, rec); err != nil {
		h.Logger.Warnf("session: failed to publish history event %s for room %s: %v", eventType, roomID, err)
	}
}

// mustEnvelope marshals a server message once for fan-out. The message shape
// is fully under our control, so a marshal failure is a programming error.
func mustEnvelope(eventType string, msg ServerMessage) registry.Envelope {
	data, err := json.Marshal(msg)
	if err != nil {
		panic(fmt.Sprintf("session: marshal %s: %v", eventType, err))
	}
	return registry.Envelope{Type: eventType, Data: data}
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, roomstore.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, roomstore.ErrRoomFull):
		return "room is full"
	default:
		return "failed to join room"
	}
}
