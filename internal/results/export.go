package results

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/examgrader/internal/model"
)

// ExportSource is the read side a results export needs.
type ExportSource interface {
	ListTests(ctx context.Context, className string, testType model.TestType) ([]model.Test, error)
	ListResults(ctx context.Context) ([]model.Result, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Export groups every stored result by test. Attempt numbers count a
// student's results per test in insertion order, rescored results included.
func Export(ctx context.Context, src ExportSource) (model.ResultsExport, error) {
	tests, err := src.ListTests(ctx, "", "")
	if err != nil {
		return model.ResultsExport{}, fmt.Errorf("list tests: %w", err)
	}
	all, err := src.ListResults(ctx)
	if err != nil {
		return model.ResultsExport{}, fmt.Errorf("list results: %w", err)
	}

	byTest := make(map[string][]model.Result)
	for _, r := range all {
		byTest[r.TestID] = append(byTest[r.TestID], r)
	}

	users := make(map[string]*model.User)
	out := model.ResultsExport{ExportedAt: time.Now().UTC(), Tests: []model.TestResultSet{}}
	for _, t := range tests {
		set := model.TestResultSet{
			TestID:     t.ID,
			Title:      t.Title,
			ClassName:  t.ClassName,
			TestType:   t.TestType,
			TotalMarks: t.TotalMarks,
			Results:    []model.StudentResult{},
		}
		attempts := make(map[string]int)
		for _, r := range byTest[t.ID] {
			u, ok := users[r.StudentID]
			if !ok {
				u, err = src.GetUserByID(ctx, r.StudentID)
				if err != nil {
					return model.ResultsExport{}, fmt.Errorf("get user %s: %w", r.StudentID, err)
				}
				users[r.StudentID] = u
			}
			attempts[r.StudentID]++

			sr := model.StudentResult{
				ResultID:      r.ID,
				StudentID:     r.StudentID,
				AttemptNumber: attempts[r.StudentID],
				SubmittedAt:   r.SubmittedAt,
				TotalScore:    r.TotalScore,
				MaxScore:      r.MaxScore,
				Percent:       Percent(r.TotalScore, r.MaxScore),
				Outcomes:      r.Outcomes,
			}
			if u != nil {
				sr.StudentCode = u.StudentCode
				sr.DisplayName = u.Name
			}
			set.Results = append(set.Results, sr)
		}
		out.Tests = append(out.Tests, set)
	}
	return out, nil
}
