// internal/handlers/room_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/dkwon/codepair/internal/auth"
	"github.com/dkwon/codepair/internal/executor"
	"github.com/dkwon/codepair/internal/models"
)

type stubPersistence struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*models.Room
}

func newStubPersistence() *stubPersistence {
	return &stubPersistence{rooms: make(map[uuid.UUID]*models.Room)}
}

func (s *stubPersistence) InsertRoom(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *stubPersistence) GetRoom(_ context.Context, roomID uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return room.Clone(), nil
}

func (s *stubPersistence) InsertParticipant(_ context.Context, roomID uuid.UUID, p models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return pgx.ErrNoRows
	}
	room.Participants = append(room.Participants, p)
	return nil
}

func (s *stubPersistence) UpdateParticipantCode(_ context.Context, roomID, userID uuid.UUID, code, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return pgx.ErrNoRows
	}
	if p := room.FindParticipant(userID); p != nil {
		p.Code = code
		p.Language = language
	}
	return nil
}

func (s *stubPersistence) DeleteParticipant(_ context.Context, roomID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return pgx.ErrNoRows
	}
	for i := range room.Participants {
		if room.Participants[i].UserID == userID {
			room.Participants = append(room.Participants[:i], room.Participants[i+1:]...)
			break
		}
	}
	return nil
}

func (s *stubPersistence) UpdateRoomStatus(_ context.Context, roomID uuid.UUID, status models.RoomStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return pgx.ErrNoRows
	}
	room.Status = status
	return nil
}

func newTestServer() (*Server, *http.ServeMux) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	srv := NewServer(logger, newStubPersistence(), executor.StubRunner{}, nil)
	srv.LookupProblem = func(_ context.Context, id string) (*models.Problem, error) {
		if id == "two-sum" {
			return &models.Problem{ID: id, Title: "Two Sum"}, nil
		}
		return nil, pgx.ErrNoRows
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /rooms", srv.CreateRoomHandler)
	mux.HandleFunc("POST /rooms/{id}/join", srv.JoinRoomHandler)
	mux.HandleFunc("GET /rooms/{id}", srv.GetRoomHandler)
	mux.HandleFunc("PUT /rooms/{id}/code", srv.UpdateCodeHandler)
	return srv, mux
}

func authedRequest(t *testing.T, method, target string, body []byte, userID uuid.UUID) *http.Request {
	t.Helper()
	token, err := auth.CreateJWT(userID.String())
	if err != nil {
		t.Fatalf("failed to create jwt: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Cookie", "auth_token="+token)
	return req
}

func decodeRoom(t *testing.T, rec *httptest.ResponseRecorder) models.Room {
	t.Helper()
	var room models.Room
	if err := json.NewDecoder(rec.Body).Decode(&room); err != nil {
		t.Fatalf("failed to decode room response: %v", err)
	}
	return room
}

func TestCreateRoomHandler(t *testing.T) {
	auth.Init()
	_, mux := newTestServer()
	host := uuid.New()

	body := []byte(`{"problemId":"two-sum","maxParticipants":3}`)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(t, "POST", "/rooms", body, host))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	room := decodeRoom(t, rec)
	if room.ProblemID != "two-sum" {
		t.Errorf("expected problemId two-sum, got %q", room.ProblemID)
	}
	if room.MaxParticipants != 3 {
		t.Errorf("expected maxParticipants 3, got %d", room.MaxParticipants)
	}
	if room.Status != models.RoomStatusWaiting {
		t.Errorf("expected status waiting, got %q", room.Status)
	}
	if len(room.Participants) != 1 || room.Participants[0].UserID != host {
		t.Errorf("expected the creator as sole participant, got %+v", room.Participants)
	}
	if room.Participants[0].Role != models.RoleHost {
		t.Errorf("expected host role, got %q", room.Participants[0].Role)
	}
}

func TestCreateRoomHandlerValidation(t *testing.T) {
	auth.Init()
	_, mux := newTestServer()
	userID := uuid.New()

	// Unauthenticated.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/rooms", bytes.NewReader([]byte(`{"problemId":"two-sum"}`)))
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without cookie, got %d", rec.Code)
	}

	// Missing problem id.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(t, "POST", "/rooms", []byte(`{}`), userID))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing problemId, got %d", rec.Code)
	}

	// Unknown problem reference.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(t, "POST", "/rooms", []byte(`{"problemId":"nope"}`), userID))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown problem, got %d", rec.Code)
	}

	// Negative capacity.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(t, "POST", "/rooms", []byte(`{"problemId":"two-sum","maxParticipants":-2}`), userID))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative capacity, got %d", rec.Code)
	}
}

func TestJoinRoomHandler(t *testing.T) {
	auth.Init()
	_, mux := newTestServer()
	host := uuid.New()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(t, "POST", "/rooms", []byte(`{"problemId":"two-sum","maxParticipants":2}`), host))
	room := decodeRoom(t, rec)

	joinURL := fmt.Sprintf("/rooms/%s/join", room.ID)

	// New participant takes a seat.
	guest := uuid.New()
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(t, "POST", joinURL, nil, guest))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeRoom(t, rec); len(got.Participants) != 2 {
		t.Errorf("expected 2 participants, got %d", len(got.Participants))
	}

	// Joining again is idempotent.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(t, "POST", joinURL, nil, guest))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on re-join, got %d", rec.Code)
	}
	if got := decodeRoom(t, rec); len(got.Participants) != 2 {
		t.Errorf("re-join must not take another seat, got %d participants", len(got.Participants))
	}

	// Room is full for the third user.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(t, "POST", joinURL, nil, uuid.New()))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for full room, got %d", rec.Code)
	}

	// Unknown room.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(t, "POST", fmt.Sprintf("/rooms/%s/join", uuid.New()), nil, guest))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown room, got %d", rec.Code)
	}
}

func TestGetRoomHandler(t *testing.T) {
	auth.Init()
	srv, mux := newTestServer()
	host := uuid.New()
	srv.LookupUser = func(_ context.Context, id uuid.UUID) (*models.User, error) {
		return &models.User{ID: id, Name: "resolved"}, nil
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(t, "POST", "/rooms", []byte(`{"problemId":"two-sum"}`), host))
	room := decodeRoom(t, rec)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(t, "GET", "/rooms/"+room.ID.String(), nil, host))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := decodeRoom(t, rec)
	if got.MaxParticipants != 4 {
		t.Errorf("expected default capacity 4, got %d", got.MaxParticipants)
	}
	if got.Participants[0].Username != "resolved" {
		t.Errorf("expected resolved username, got %q", got.Participants[0].Username)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(t, "GET", "/rooms/"+uuid.NewString(), nil, host))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown room, got %d", rec.Code)
	}
}

func TestUpdateCodeHandler(t *testing.T) {
	auth.Init()
	_, mux := newTestServer()
	host := uuid.New()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(t, "POST", "/rooms", []byte(`{"problemId":"two-sum"}`), host))
	room := decodeRoom(t, rec)

	codeURL := fmt.Sprintf("/rooms/%s/code", room.ID)
	body := []byte(`{"code":"print(42)","language":"python"}`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(t, "PUT", codeURL, body, host))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeRoom(t, rec)
	if p := got.FindParticipant(host); p == nil || p.Code != "print(42)" || p.Language != "python" {
		t.Errorf("expected updated buffer for host, got %+v", got.Participants)
	}

	// Non-participants cannot write into the room.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(t, "PUT", codeURL, body, uuid.New()))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-participant, got %d", rec.Code)
	}
}
