// internal/models/room.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus tracks the coarse lifecycle of a practice room.
type RoomStatus string

const (
	RoomStatusWaiting    RoomStatus = "waiting"
	RoomStatusInProgress RoomStatus = "in-progress"
	RoomStatusCompleted  RoomStatus = "completed"
)

// ParticipantRole distinguishes the room creator from everyone else.
// Exactly one participant holds RoleHost, assigned at creation and never reassigned.
type ParticipantRole string

const (
	RoleHost        ParticipantRole = "host"
	RoleParticipant ParticipantRole = "participant"
)

// Room is a bounded, problem-scoped collaborative session. Participants keep
// insertion order (join order); the creator is always participants[0].
type Room struct {
	ID              uuid.UUID     `json:"id"`
	ProblemID       string        `json:"problemId"`
	CreatedBy       uuid.UUID     `json:"createdBy"`
	MaxParticipants int           `json:"maxParticipants"`
	Status          RoomStatus    `json:"status"`
	Participants    []Participant `json:"participants"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// Participant is a room member with an independently owned code buffer.
// Only the owning user ever mutates Code/Language; other members just view them.
type Participant struct {
	UserID   uuid.UUID       `json:"userId"`
	Username string          `json:"username,omitempty"`
	Role     ParticipantRole `json:"role"`
	Code     string          `json:"code"`
	Language string          `json:"language"`
	JoinedAt time.Time       `json:"joinedAt"`
}

// FindParticipant returns a pointer into the room's participant slice, or nil.
func (r *Room) FindParticipant(userID uuid.UUID) *Participant {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return &r.Participants[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing the store's authoritative slice.
func (r *Room) Clone() *Room {
	cp := *r
	cp.Participants = make([]Participant, len(r.Participants))
	copy(cp.Participants, r.Participants)
	return &cp
}

// LineAuthor attributes a single line of the shared editing context to a user.
type LineAuthor struct {
	LineIndex int       `json:"lineIndex"`
	UserID    uuid.UUID `json:"userId"`
}
