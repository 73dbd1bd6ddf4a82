// internal/handlers/room_ws_test.go
package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/dkwon/codepair/internal/auth"
)

func TestWSAuthCloseCodes(t *testing.T) {
	auth.Init()

	// No cookie at all.
	req := httptest.NewRequest("GET", "/rooms/ws", nil)
	_, code, err := wsAuth(req)
	if err == nil {
		t.Fatal("expected error without auth cookie")
	}
	if code != websocket.StatusCode(InvalidAuthTokenError) {
		t.Errorf("expected close code %d, got %d", InvalidAuthTokenError, code)
	}

	// Garbage token.
	req = httptest.NewRequest("GET", "/rooms/ws", nil)
	req.Header.Set("Cookie", "auth_token=not-a-jwt")
	_, code, err = wsAuth(req)
	if err == nil {
		t.Fatal("expected error for unverifiable token")
	}
	if code != websocket.StatusCode(InvalidAuthTokenError) {
		t.Errorf("expected close code %d, got %d", InvalidAuthTokenError, code)
	}

	// Valid signature but the subject is not a user id.
	token, err := auth.CreateJWT("not-a-uuid")
	if err != nil {
		t.Fatalf("failed to create jwt: %v", err)
	}
	req = httptest.NewRequest("GET", "/rooms/ws", nil)
	req.Header.Set("Cookie", "auth_token="+token)
	_, code, err = wsAuth(req)
	if err == nil {
		t.Fatal("expected error for malformed subject")
	}
	if code != websocket.StatusCode(InvalidUserIDError) {
		t.Errorf("expected close code %d, got %d", InvalidUserIDError, code)
	}

	// Happy path.
	userID := uuid.New()
	token, err = auth.CreateJWT(userID.String())
	if err != nil {
		t.Fatalf("failed to create jwt: %v", err)
	}
	req = httptest.NewRequest("GET", "/rooms/ws", nil)
	req.Header.Set("Cookie", "auth_token="+token)
	got, _, err := wsAuth(req)
	if err != nil {
		t.Fatalf("expected valid auth, got %v", err)
	}
	if got != userID {
		t.Errorf("expected user %s, got %s", userID, got)
	}
}
