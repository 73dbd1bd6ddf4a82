// internal/handlers/submission.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dkwon/codepair/internal/database"
	"github.com/dkwon/codepair/internal/executor"
	"github.com/dkwon/codepair/internal/models"
	"github.com/dkwon/codepair/internal/session"
)

type runRequest struct {
	RoomID    string `json:"roomId,omitempty"`
	ProblemID string `json:"problemId"`
	Code      string `json:"code"`
	Language  string `json:"language"`
}

// RunTestsHandler handles POST /submissions/test: executes the caller's code
// against the problem's visible test cases and returns the results. When the
// run happens inside a room, the results are also fanned out to
// co-participants as an informational test_run event; that broadcast never
// gates the response.
func (s *Server) RunTestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "missing or invalid auth token")
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	problem, err := database.GetProblemByID(r.Context(), req.ProblemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeMessage(w, http.StatusNotFound, "problem not found")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "failed to fetch problem")
		return
	}

	visible := make([]models.TestCase, 0, len(problem.TestCases))
	for _, tc := range problem.TestCases {
		if !tc.Hidden {
			visible = append(visible, tc)
		}
	}

	results, passed, err := executor.RunAll(r.Context(), s.Runner, req.Code, req.Language, visible)
	if err != nil {
		s.Logger.Errorf("test run failed for user %s: %v", userID, err)
		writeMessage(w, http.StatusInternalServerError, "code execution failed")
		return
	}

	resp := map[string]interface{}{"results": results, "passed": passed}
	s.fanOutRunResult(r, req.RoomID, userID, session.EvtTestRun, resp)
	writeJSON(w, http.StatusOK, resp)
}

// SubmitHandler handles POST /submissions: executes the caller's code against
// every test case (hidden included), records the submission, and fans the
// outcome out to the room if one was given.
func (s *Server) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "missing or invalid auth token")
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	problem, err := database.GetProblemByID(r.Context(), req.ProblemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeMessage(w, http.StatusNotFound, "problem not found")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "failed to fetch problem")
		return
	}

	results, passed, err := executor.RunAll(r.Context(), s.Runner, req.Code, req.Language, problem.TestCases)
	if err != nil {
		s.Logger.Errorf("submission run failed for user %s: %v", userID, err)
		writeMessage(w, http.StatusInternalServerError, "code execution failed")
		return
	}

	sub := models.Submission{
		UserID:    userID,
		ProblemID: req.ProblemID,
		Code:      req.Code,
		Language:  req.Language,
		Results:   results,
		Passed:    passed,
		CreatedAt: time.Now().UTC(),
	}
	if roomID, err := uuid.Parse(req.RoomID); err == nil {
		sub.RoomID = roomID
	}
	if err := database.InsertSubmission(r.Context(), &sub); err != nil {
		s.Logger.Errorf("failed to record submission for user %s: %v", userID, err)
		writeMessage(w, http.StatusInternalServerError, "failed to record submission")
		return
	}

	s.fanOutRunResult(r, req.RoomID, userID, session.EvtSubmission, map[string]interface{}{
		"passed": passed,
	})
	writeJSON(w, http.StatusCreated, sub)
}

// SubmissionHistoryHandler handles GET /submissions/history/{problemId}.
func (s *Server) SubmissionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "missing or invalid auth token")
		return
	}

	subs, err := database.ListSubmissions(r.Context(), userID, r.PathValue("problemId"))
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "failed to fetch submissions")
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// fanOutRunResult relays a run outcome to the caller's room, if any.
func (s *Server) fanOutRunResult(r *http.Request, roomIDStr string, userID uuid.UUID, eventType string, payload interface{}) {
	if roomIDStr == "" {
		return
	}
	roomID, err := uuid.Parse(roomIDStr)
	if err != nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	s.Session.BroadcastRunResult(r.Context(), roomID, userID, eventType, data)
}
