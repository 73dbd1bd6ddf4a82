// internal/executor/executor.go
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dkwon/codepair/internal/models"
)

// Runner is the opaque code-execution collaborator: run a buffer against one
// test case and report the outcome. Grading policy lives behind it; this
// service only relays results.
type Runner interface {
	Run(ctx context.Context, code, language string, tc models.TestCase) (models.RunResult, error)
}

// RunAll executes every test case and reports whether all passed.
func RunAll(ctx context.Context, r Runner, code, language string, cases []models.TestCase) ([]models.RunResult, bool, error) {
	results := make([]models.RunResult, 0, len(cases))
	passed := true
	for _, tc := range cases {
		res, err := r.Run(ctx, code, language, tc)
		if err != nil {
			return nil, false, err
		}
		if !res.Passed {
			passed = false
		}
		results = append(results, res)
	}
	return results, passed, nil
}

// FromEnv picks the HTTP delegate when EXECUTOR_URL is set, otherwise the
// local stub.
func FromEnv() Runner {
	if url := os.Getenv("EXECUTOR_URL"); url != "" {
		return &HTTPRunner{
			BaseURL: url,
			Client:  &http.Client{Timeout: 30 * time.Second},
		}
	}
	return StubRunner{}
}

// StubRunner pretends every test case passes by echoing the expected output.
// Useful for local development and tests where no sandbox is running.
type StubRunner struct{}

func (StubRunner) Run(_ context.Context, _, _ string, tc models.TestCase) (models.RunResult, error) {
	return models.RunResult{
		Input:    tc.Input,
		Expected: tc.ExpectedOutput,
		Actual:   tc.ExpectedOutput,
		Passed:   true,
	}, nil
}

// HTTPRunner delegates execution to an external sandboxed runner service.
type HTTPRunner struct {
	BaseURL string
	Client  *http.Client
}

type runRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Input    string `json:"input"`
}

type runResponse struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

func (r *HTTPRunner) Run(ctx context.Context, code, language string, tc models.TestCase) (models.RunResult, error) {
	body, err := json.Marshal(runRequest{Code: code, Language: language, Input: tc.Input})
	if err != nil {
		return models.RunResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return models.RunResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return models.RunResult{}, fmt.Errorf("executor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.RunResult{}, fmt.Errorf("executor returned status %d", resp.StatusCode)
	}

	var out runResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.RunResult{}, fmt.Errorf("executor response decode failed: %w", err)
	}

	return models.RunResult{
		Input:    tc.Input,
		Expected: tc.ExpectedOutput,
		Actual:   out.Stdout,
		Passed:   out.Stdout == tc.ExpectedOutput,
		Stderr:   out.Stderr,
	}, nil
}
