// internal/roomstore/errors.go
package roomstore

import "errors"

var (
	// ErrInvalidCapacity rejects a create request with maxParticipants < 1.
	ErrInvalidCapacity = errors.New("roomstore: maxParticipants must be at least 1")
	// ErrRoomNotFound indicates the room does not exist in memory or durable storage.
	ErrRoomNotFound = errors.New("roomstore: room not found")
	// ErrRoomFull rejects an admission that would exceed maxParticipants.
	ErrRoomFull = errors.New("roomstore: room is full")
	// ErrNotAParticipant rejects a mutation attempted by a non-member.
	ErrNotAParticipant = errors.New("roomstore: user is not a participant")
)
