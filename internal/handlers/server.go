// internal/handlers/server.go
package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dkwon/codepair/internal/auth"
	"github.com/dkwon/codepair/internal/cache"
	"github.com/dkwon/codepair/internal/executor"
	"github.com/dkwon/codepair/internal/models"
	"github.com/dkwon/codepair/internal/presence"
	"github.com/dkwon/codepair/internal/registry"
	"github.com/dkwon/codepair/internal/roomstore"
	"github.com/dkwon/codepair/internal/session"
)

// Server bundles the room core's components for the HTTP and websocket
// surfaces. The external collaborators (problem catalog, user directory) are
// function fields so tests can run without a database.
type Server struct {
	Logger   *logrus.Logger
	Rooms    *roomstore.Store
	Registry *registry.Registry
	Presence *presence.Tracker
	Session  *session.Handler
	Runner   executor.Runner

	// LookupProblem validates the problem reference at room creation.
	// Nil skips validation.
	LookupProblem func(ctx context.Context, id string) (*models.Problem, error)
	// LookupUser resolves a user id to its record for display names.
	// Nil leaves names empty.
	LookupUser func(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// NewServer wires the room core together. history may be nil to disable the
// historian queue.
func NewServer(logger *logrus.Logger, db roomstore.Persistence, runner executor.Runner,
	history func(ctx context.Context, rec cache.RoomEventRecord) error) *Server {

	reg := registry.New()
	rooms := roomstore.New(db)
	pres := presence.NewTracker()

	return &Server{
		Logger:   logger,
		Rooms:    rooms,
		Registry: reg,
		Presence: pres,
		Runner:   runner,
		Session: &session.Handler{
			Registry: reg,
			Rooms:    rooms,
			Presence: pres,
			Logger:   logger,
			History:  history,
		},
	}
}

// authedUser extracts and verifies the caller's identity from the auth_token
// cookie.
func authedUser(r *http.Request) (uuid.UUID, bool) {
	cookie, err := r.Cookie("auth_token")
	if err != nil {
		return uuid.Nil, false
	}

	userIDStr, err := auth.AuthenticateJWT(cookie.Value)
	if err != nil {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

// username resolves a display name through the user directory, tolerating a
// missing collaborator.
func (s *Server) username(ctx context.Context, userID uuid.UUID) string {
	if s.LookupUser == nil {
		return ""
	}
	u, err := s.LookupUser(ctx, userID)
	if err != nil {
		s.Logger.Warnf("failed to resolve user %s: %v", userID, err)
		return ""
	}
	return u.Name
}
