// internal/database/submission.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dkwon/codepair/internal/models"
)

// InsertSubmission records a graded run.
func InsertSubmission(ctx context.Context, sub *models.Submission) error {
	if sub.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate submission id: %w", err)
		}
		sub.ID = id
	}

	results, err := json.Marshal(sub.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	q := `
	INSERT INTO submissions (id, user_id, problem_id, room_id, code, language, results, passed, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			sub.ID, sub.UserID, sub.ProblemID, nullableUUID(sub.RoomID),
			sub.Code, sub.Language, results, sub.Passed, sub.CreatedAt,
		)
		return err
	})
}

// ListSubmissions returns a user's submission history for a problem, newest first.
func ListSubmissions(ctx context.Context, userID uuid.UUID, problemID string) ([]models.Submission, error) {
	q := `
	SELECT id, user_id, problem_id, COALESCE(room_id, '00000000-0000-0000-0000-000000000000'), code, language, results, passed, created_at
	FROM submissions
	WHERE user_id = $1 AND problem_id = $2
	ORDER BY created_at DESC
	`
	rows, err := DB.Query(ctx, q, userID, problemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		var s models.Submission
		var results []byte
		if err := rows.Scan(&s.ID, &s.UserID, &s.ProblemID, &s.RoomID,
			&s.Code, &s.Language, &results, &s.Passed, &s.CreatedAt); err != nil {
			return nil, err
		}
		if len(results) > 0 {
			if err := json.Unmarshal(results, &s.Results); err != nil {
				return nil, err
			}
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func nullableUUID(id uuid.UUID) interface{} {
	if id == uuid.Nil {
		return nil
	}
	return id
}
