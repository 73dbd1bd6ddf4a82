// internal/session/messages.go
package session

import (
	"encoding/json"

	"github.com/dkwon/codepair/internal/models"
)

// Inbound event types.
const (
	EvtJoinRoom           = "join_room"
	EvtLeaveRoom          = "leave_room"
	EvtCodeChange         = "code_change"
	EvtCursorMove         = "cursor_move"
	EvtLineAuthorsUpdate  = "line_authors_update"
	EvtRequestLineAuthors = "request_line_authors"
	EvtTestRun            = "test_run"
	EvtSubmission         = "submission"
)

// Outbound event types.
const (
	EvtRoomState          = "room_state"
	EvtParticipantJoined  = "participant_joined"
	EvtParticipantLeft    = "participant_left"
	EvtCodeUpdate         = "code_update"
	EvtCursorUpdate       = "cursor_update"
	EvtInitialLineAuthors = "initial_line_authors"
	EvtError              = "error"
)

// ClientMessage is the single inbound frame shape. The type field selects the
// transition; unused fields stay zero. Cursor positions and run results are
// opaque to this layer and pass through as raw JSON.
type ClientMessage struct {
	Type        string              `json:"type"`
	RoomID      string              `json:"roomId,omitempty"`
	Code        string              `json:"code,omitempty"`
	Language    string              `json:"language,omitempty"`
	Position    json.RawMessage     `json:"position,omitempty"`
	LineAuthors []models.LineAuthor `json:"lineAuthors,omitempty"`
	Results     json.RawMessage     `json:"results,omitempty"`
	Result      json.RawMessage     `json:"result,omitempty"`
}

// ServerMessage is the single outbound frame shape, mirroring ClientMessage.
type ServerMessage struct {
	Type        string              `json:"type"`
	RoomID      string              `json:"roomId,omitempty"`
	UserID      string              `json:"userId,omitempty"`
	Username    string              `json:"username,omitempty"`
	Code        string              `json:"code,omitempty"`
	Language    string              `json:"language,omitempty"`
	Position    json.RawMessage     `json:"position,omitempty"`
	LineAuthors []models.LineAuthor `json:"lineAuthors"`
	Room        *models.Room        `json:"room,omitempty"`
	Results     json.RawMessage     `json:"results,omitempty"`
	Result      json.RawMessage     `json:"result,omitempty"`
	Message     string              `json:"message,omitempty"`
}
