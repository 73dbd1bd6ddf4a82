// internal/handlers/problem.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/dkwon/codepair/internal/database"
)

// GetProblemHandler handles GET /problems/{id}. Hidden test cases are
// stripped before the problem leaves the server.
func GetProblemHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := authedUser(r); !ok {
		writeMessage(w, http.StatusUnauthorized, "missing or invalid auth token")
		return
	}

	problem, err := database.GetProblemByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeMessage(w, http.StatusNotFound, "problem not found")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "failed to fetch problem")
		return
	}

	visible := problem.TestCases[:0:0]
	for _, tc := range problem.TestCases {
		if !tc.Hidden {
			visible = append(visible, tc)
		}
	}
	problem.TestCases = visible

	writeJSON(w, http.StatusOK, problem)
}
