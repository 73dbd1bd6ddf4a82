// internal/executor/executor_test.go
package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkwon/codepair/internal/models"
)

func TestRunAllAggregatesPassFail(t *testing.T) {
	cases := []models.TestCase{
		{Input: "1", ExpectedOutput: "1"},
		{Input: "2", ExpectedOutput: "2"},
	}

	results, passed, err := RunAll(context.Background(), StubRunner{}, "code", "go", cases)
	require.NoError(t, err)
	assert.True(t, passed)
	require.Len(t, results, 2)
	assert.Equal(t, "1", results[0].Actual)
}

func TestHTTPRunnerComparesStdout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Code     string `json:"code"`
			Language string `json:"language"`
			Input    string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Echo the input as stdout, uppercased for the "shout" language.
		out := req.Input
		if req.Language == "shout" {
			out = strings.ToUpper(out)
		}
		json.NewEncoder(w).Encode(map[string]string{"stdout": out})
	}))
	defer ts.Close()

	runner := &HTTPRunner{BaseURL: ts.URL, Client: ts.Client()}

	res, err := runner.Run(context.Background(), "code", "echo", models.TestCase{Input: "hi", ExpectedOutput: "hi"})
	require.NoError(t, err)
	assert.True(t, res.Passed)

	res, err = runner.Run(context.Background(), "code", "shout", models.TestCase{Input: "hi", ExpectedOutput: "hi"})
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, "HI", res.Actual)
}

func TestHTTPRunnerNonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	runner := &HTTPRunner{BaseURL: ts.URL, Client: ts.Client()}
	_, err := runner.Run(context.Background(), "code", "go", models.TestCase{Input: "x"})
	assert.Error(t, err)
}
