// internal/database/problem.go
package database

import (
	"context"
	"encoding/json"

	"github.com/dkwon/codepair/internal/models"
)

// GetProblemByID resolves a problem reference from the catalog. Test cases are
// stored as a jsonb column since the room core treats them as opaque.
func GetProblemByID(ctx context.Context, id string) (*models.Problem, error) {
	var p models.Problem
	var testCases []byte
	q := `SELECT id, title, difficulty, description, test_cases FROM problems WHERE id = $1`
	err := DB.QueryRow(ctx, q, id).Scan(&p.ID, &p.Title, &p.Difficulty, &p.Description, &testCases)
	if err != nil {
		return nil, err
	}
	if len(testCases) > 0 {
		if err := json.Unmarshal(testCases, &p.TestCases); err != nil {
			return nil, err
		}
	}
	return &p, nil
}
