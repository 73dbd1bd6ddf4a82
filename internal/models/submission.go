package models

import (
	"time"

	"github.com/google/uuid"
)

// Submission records one graded run of a participant's buffer.
type Submission struct {
	ID        uuid.UUID   `json:"id"`
	UserID    uuid.UUID   `json:"userId"`
	ProblemID string      `json:"problemId"`
	RoomID    uuid.UUID   `json:"roomId,omitempty"`
	Code      string      `json:"code"`
	Language  string      `json:"language"`
	Results   []RunResult `json:"results"`
	Passed    bool        `json:"passed"`
	CreatedAt time.Time   `json:"createdAt"`
}

// RunResult is the outcome of executing code against a single test case.
type RunResult struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
	Stderr   string `json:"stderr,omitempty"`
}
