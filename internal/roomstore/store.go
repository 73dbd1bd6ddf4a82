// internal/roomstore/store.go
package roomstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dkwon/codepair/internal/models"
)

// DefaultMaxParticipants applies when a create request leaves capacity unset.
const DefaultMaxParticipants = 4

// Persistence is the durable collaborator behind the store. Implemented by
// database.RoomRepo in production and by an in-memory fake in tests.
type Persistence interface {
	InsertRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error)
	InsertParticipant(ctx context.Context, roomID uuid.UUID, p models.Participant) error
	UpdateParticipantCode(ctx context.Context, roomID, userID uuid.UUID, code, language string) error
	DeleteParticipant(ctx context.Context, roomID, userID uuid.UUID) error
	UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, status models.RoomStatus) error
}

// entry wraps one active room. The entry mutex serializes every mutation of
// the room, including the persistence write, so a racing admission can never
// interleave with the capacity check.
type entry struct {
	mu   sync.Mutex
	room *models.Room
}

// Store is the authoritative in-memory view of active rooms, persisted
// through to durable storage on every successful mutation. Rooms are loaded
// on first use and evicted via Release when their broadcast group empties;
// the durable row is never deleted here.
//
// Persistence runs before the in-memory commit: a failed write leaves the
// in-memory view untouched, so memory and storage cannot diverge.
type Store struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*entry
	db    Persistence
}

func New(db Persistence) *Store {
	return &Store{
		rooms: make(map[uuid.UUID]*entry),
		db:    db,
	}
}

// CreateRoom persists a new room with the creator as sole host participant.
// maxParticipants == 0 takes the default; negative values are rejected.
func (s *Store) CreateRoom(ctx context.Context, problemID string, creator uuid.UUID, creatorName string, maxParticipants int) (*models.Room, error) {
	if maxParticipants == 0 {
		maxParticipants = DefaultMaxParticipants
	}
	if maxParticipants < 1 {
		return nil, ErrInvalidCapacity
	}

	now := time.Now().UTC()
	room := &models.Room{
		ID:              uuid.New(),
		ProblemID:       problemID,
		CreatedBy:       creator,
		MaxParticipants: maxParticipants,
		Status:          models.RoomStatusWaiting,
		CreatedAt:       now,
		Participants: []models.Participant{{
			UserID:   creator,
			Username: creatorName,
			Role:     models.RoleHost,
			JoinedAt: now,
		}},
	}

	if err := s.db.InsertRoom(ctx, room); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.rooms[room.ID] = &entry{room: room}
	s.mu.Unlock()

	return room.Clone(), nil
}

// GetRoom returns a snapshot of the room, preferring the in-memory
// authoritative copy and falling back to durable storage. It does not pin the
// room into memory; only session activity does that.
func (s *Store) GetRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	e, ok := s.rooms[roomID]
	s.mu.Unlock()
	if ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.room.Clone(), nil
	}

	room, err := s.db.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

// getOrLoad pins the room into the in-memory arena, reading it from durable
// storage on first use.
func (s *Store) getOrLoad(ctx context.Context, roomID uuid.UUID) (*entry, error) {
	s.mu.Lock()
	if e, ok := s.rooms[roomID]; ok {
		s.mu.Unlock()
		return e, nil
	}
	s.mu.Unlock()

	// Load outside the map lock; a concurrent loader may win the insert race.
	room, err := s.db.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.rooms[roomID]; ok {
		return e, nil
	}
	e := &entry{room: room}
	s.rooms[roomID] = e
	return e, nil
}

// AdmitParticipant applies the join rules: the creator is always implicitly
// in and never double-added; an existing member makes the join an idempotent
// no-op; otherwise the user takes a seat unless the room is full. The
// capacity check and the append are serialized under the room lock.
func (s *Store) AdmitParticipant(ctx context.Context, roomID, userID uuid.UUID, username string) (*models.Room, error) {
	e, err := s.getOrLoad(ctx, roomID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if userID == e.room.CreatedBy {
		return e.room.Clone(), nil
	}
	if e.room.FindParticipant(userID) != nil {
		return e.room.Clone(), nil
	}
	if len(e.room.Participants) >= e.room.MaxParticipants {
		return nil, ErrRoomFull
	}

	p := models.Participant{
		UserID:   userID,
		Username: username,
		Role:     models.RoleParticipant,
		JoinedAt: time.Now().UTC(),
	}
	if err := s.db.InsertParticipant(ctx, roomID, p); err != nil {
		return nil, err
	}
	e.room.Participants = append(e.room.Participants, p)
	return e.room.Clone(), nil
}

// UpdateParticipantCode overwrites the caller's own buffer and language.
// Last writer wins per participant; no other participant's record is touched.
func (s *Store) UpdateParticipantCode(ctx context.Context, roomID, userID uuid.UUID, code, language string) (*models.Room, error) {
	e, err := s.getOrLoad(ctx, roomID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.room.FindParticipant(userID)
	if p == nil {
		return nil, ErrNotAParticipant
	}
	if err := s.db.UpdateParticipantCode(ctx, roomID, userID, code, language); err != nil {
		return nil, err
	}
	p.Code = code
	p.Language = language
	return e.room.Clone(), nil
}

// RemoveParticipant frees the user's seat on explicit leave. No-op when the
// user holds no seat. The host role is never reassigned.
func (s *Store) RemoveParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	e, err := s.getOrLoad(ctx, roomID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i := range e.room.Participants {
		if e.room.Participants[i].UserID == userID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}
	if err := s.db.DeleteParticipant(ctx, roomID, userID); err != nil {
		return err
	}
	e.room.Participants = append(e.room.Participants[:idx], e.room.Participants[idx+1:]...)
	return nil
}

// SetStatus records a lifecycle transition.
func (s *Store) SetStatus(ctx context.Context, roomID uuid.UUID, status models.RoomStatus) error {
	e, err := s.getOrLoad(ctx, roomID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.room.Status == status {
		return nil
	}
	if err := s.db.UpdateRoomStatus(ctx, roomID, status); err != nil {
		return err
	}
	e.room.Status = status
	return nil
}

// Release evicts the in-memory copy once the room's last connection is gone.
// The durable row remains; the next session loads it fresh.
func (s *Store) Release(roomID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

// ActiveRooms reports how many rooms are currently pinned in memory.
func (s *Store) ActiveRooms() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
