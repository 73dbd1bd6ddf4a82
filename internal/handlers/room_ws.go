// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dkwon/codepair/internal/auth"
	"github.com/dkwon/codepair/internal/registry"
	"github.com/dkwon/codepair/internal/session"
)

// wsAuth verifies the auth_token cookie for a websocket upgrade. On failure it
// reports which custom close code the connection should be closed with: a
// missing or unverifiable token and a token whose subject is not a user id are
// distinct client errors.
func wsAuth(r *http.Request) (uuid.UUID, websocket.StatusCode, error) {
	cookie, err := r.Cookie("auth_token")
	if err != nil {
		return uuid.Nil, InvalidAuthTokenError, errors.New("missing auth_token cookie")
	}
	sub, err := auth.AuthenticateJWT(cookie.Value)
	if err != nil {
		return uuid.Nil, InvalidAuthTokenError, err
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, InvalidUserIDError, err
	}
	return userID, 0, nil
}

// RoomWSHandler upgrades the single realtime channel a client holds for the
// whole app. Rooms are joined and left through join_room/leave_room frames on
// this connection, not per-room sockets.
func (s *Server) RoomWSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"codepair"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			s.Logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "codepair" {
			c.Close(BadSubprotocolError, "client must speak the codepair subprotocol")
			return
		}

		userID, closeCode, err := wsAuth(r)
		if err != nil {
			s.Logger.Warnf("websocket auth failed from %s: %v", remoteAddr, err)
			c.Close(closeCode, "authentication failed")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := registry.NewConn(userID, s.username(ctx, userID))
		conn.Cancel = cancel
		sess := session.NewSession(conn)

		s.Logger.WithFields(logrus.Fields{
			"user":   userID,
			"remote": remoteAddr,
		}).Info("websocket connected")

		go s.writePump(ctx, c, conn)
		s.readPump(ctx, c, sess)

		// readPump exited: the transport is gone. Run leave-cleanup for every
		// room this connection was part of. Seats are kept; only the
		// subscription and attributable authorship go.
		s.Session.Disconnect(context.Background(), sess)
		cancel()

		s.Logger.WithFields(logrus.Fields{
			"user":   userID,
			"remote": remoteAddr,
		}).Info("websocket disconnected")
	}
}

// readPump feeds inbound frames to the protocol handler until the connection
// closes. Frames are handled serially, preserving per-connection order.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, sess *session.Session) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				return
			}
			if strings.Contains(err.Error(), "context canceled") {
				return
			}
			s.Logger.Warnf("websocket read error for user %s: %v", sess.UserID, err)
			return
		}
		if typ != websocket.MessageText {
			s.Logger.Warnf("ignoring non-text frame from user %s", sess.UserID)
			continue
		}

		s.Session.HandleMessage(ctx, sess, data)
	}
}

// writePump drains the connection's out-queue onto the wire and keeps the
// connection alive with periodic pings.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, conn *registry.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-conn.Out:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Write(writeCtx, websocket.MessageText, ev.Data)
			cancel()
			if err != nil {
				s.Logger.Warnf("websocket write failed for user %s (event %s): %v", conn.UserID, ev.Type, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.Logger.Warnf("websocket ping failed for user %s, assuming disconnect: %v", conn.UserID, err)
				return
			}
		}
	}
}
