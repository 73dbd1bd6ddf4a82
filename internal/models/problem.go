package models

// Problem is a catalog entry. The room core only needs the reference; the full
// record is resolved for display when fetching room details.
type Problem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Difficulty  string     `json:"difficulty"`
	Description string     `json:"description"`
	TestCases   []TestCase `json:"testCases,omitempty"`
}

// TestCase is an input/expected-output pair handed to the execution collaborator.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	Hidden         bool   `json:"hidden,omitempty"`
}
