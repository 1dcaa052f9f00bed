package model

import "time"

// ResultsExport is the top-level JSON structure for result export.
type ResultsExport struct {
	ExportedAt time.Time       `json:"exported_at"`
	Tests      []TestResultSet `json:"tests"`
}

// TestResultSet groups every result recorded for one test.
type TestResultSet struct {
	TestID     string          `json:"test_id"`
	Title      string          `json:"title"`
	ClassName  string          `json:"class_name"`
	TestType   TestType        `json:"test_type"`
	TotalMarks int             `json:"total_marks"`
	Results    []StudentResult `json:"results"`
}

// StudentResult holds one student's result for export.
type StudentResult struct {
	ResultID      string    `json:"result_id"`
	StudentID     string    `json:"student_id"`
	StudentCode   string    `json:"student_code,omitempty"`
	DisplayName   string    `json:"display_name,omitempty"`
	AttemptNumber int       `json:"attempt_number"`
	SubmittedAt   time.Time `json:"submitted_at"`
	TotalScore    float64   `json:"total_score"`
	MaxScore      int       `json:"max_score"`
	Percent       float64   `json:"percent"`
	Outcomes      []Outcome `json:"outcomes"`
}
