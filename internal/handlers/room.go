// internal/handlers/room.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/dkwon/codepair/internal/roomstore"
)

type createRoomRequest struct {
	ProblemID       string `json:"problemId"`
	MaxParticipants int    `json:"maxParticipants"`
}

// CreateRoomHandler handles POST /rooms: validates the problem reference and
// creates a room with the caller as host.
func (s *Server) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "missing or invalid auth token")
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.ProblemID == "" {
		writeMessage(w, http.StatusBadRequest, "problemId is required")
		return
	}

	if s.LookupProblem != nil {
		if _, err := s.LookupProblem(r.Context(), req.ProblemID); err != nil {
			writeMessage(w, http.StatusBadRequest, "unknown problem reference")
			return
		}
	}

	room, err := s.Rooms.CreateRoom(r.Context(), req.ProblemID, userID, s.username(r.Context(), userID), req.MaxParticipants)
	if err != nil {
		if errors.Is(err, roomstore.ErrInvalidCapacity) {
			writeMessage(w, http.StatusBadRequest, "maxParticipants must be at least 1")
			return
		}
		s.Logger.Errorf("failed to create room: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	writeJSON(w, http.StatusCreated, room)
}

// JoinRoomHandler handles POST /rooms/{id}/join. Host and already-joined
// callers get the current room back unchanged; a new joiner takes a seat
// unless the room is full.
func (s *Server) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "missing or invalid auth token")
		return
	}
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid room id")
		return
	}

	room, err := s.Rooms.AdmitParticipant(r.Context(), roomID, userID, s.username(r.Context(), userID))
	if err != nil {
		switch {
		case errors.Is(err, roomstore.ErrRoomNotFound):
			writeMessage(w, http.StatusNotFound, "room not found")
		case errors.Is(err, roomstore.ErrRoomFull):
			writeMessage(w, http.StatusBadRequest, "room is full")
		default:
			s.Logger.Errorf("failed to join room %s: %v", roomID, err)
			writeMessage(w, http.StatusInternalServerError, "failed to join room")
		}
		return
	}

	writeJSON(w, http.StatusOK, room)
}

// GetRoomHandler handles GET /rooms/{id}, returning the room with resolved
// participant display names.
func (s *Server) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := authedUser(r); !ok {
		writeMessage(w, http.StatusUnauthorized, "missing or invalid auth token")
		return
	}
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid room id")
		return
	}

	room, err := s.Rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, roomstore.ErrRoomNotFound) {
			writeMessage(w, http.StatusNotFound, "room not found")
			return
		}
		s.Logger.Errorf("failed to fetch room %s: %v", roomID, err)
		writeMessage(w, http.StatusInternalServerError, "failed to fetch room")
		return
	}

	// Fill in any names the in-memory copy is missing.
	for i := range room.Participants {
		if room.Participants[i].Username == "" {
			room.Participants[i].Username = s.username(r.Context(), room.Participants[i].UserID)
		}
	}

	writeJSON(w, http.StatusOK, room)
}

type updateCodeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// UpdateCodeHandler handles PUT /rooms/{id}/code, updating the caller's own
// participant record.
func (s *Server) UpdateCodeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "missing or invalid auth token")
		return
	}
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid room id")
		return
	}

	var req updateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	room, err := s.Rooms.UpdateParticipantCode(r.Context(), roomID, userID, req.Code, req.Language)
	if err != nil {
		switch {
		case errors.Is(err, roomstore.ErrRoomNotFound):
			writeMessage(w, http.StatusNotFound, "room not found")
		case errors.Is(err, roomstore.ErrNotAParticipant):
			writeMessage(w, http.StatusBadRequest, "not a participant in this room")
		default:
			s.Logger.Errorf("failed to update code in room %s: %v", roomID, err)
			writeMessage(w, http.StatusInternalServerError, "failed to update code")
		}
		return
	}

	writeJSON(w, http.StatusOK, room)
}
