package results

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/examgrader/internal/model"
)

func TestValidateTest(t *testing.T) {
	mcq := model.Question{Text: "Capital of France?", Type: model.QuestionMultipleChoice, Options: []string{"Paris", "Rome"}, CorrectAnswer: "Paris", Marks: 1}
	short := model.Question{Text: "Define speed.", Type: model.QuestionShort, CorrectAnswer: "Distance over time.", Marks: 3}

	tests := []struct {
		name      string
		test      model.Test
		wantErr   string
		wantTotal int
	}{
		{"total computed when omitted", model.Test{Title: "T", Questions: []model.Question{mcq, short}}, "", 4},
		{"matching total accepted", model.Test{Title: "T", TotalMarks: 4, Questions: []model.Question{mcq, short}}, "", 4},
		{"mismatched total", model.Test{Title: "T", TotalMarks: 5, Questions: []model.Question{mcq, short}}, "does not match", 0},
		{"no title", model.Test{Questions: []model.Question{mcq}}, "title", 0},
		{"no questions", model.Test{Title: "T"}, "at least one question", 0},
		{"unknown test type", model.Test{Title: "T", TestType: "daily", Questions: []model.Question{mcq}}, "unknown test type", 0},
		{"unknown question type", model.Test{Title: "T", Questions: []model.Question{{Text: "?", Type: "essay", Marks: 1}}}, "question 0", 0},
		{"zero marks", model.Test{Title: "T", Questions: []model.Question{{Text: "?", Type: model.QuestionShort, Marks: 0}}}, "Marks", 0},
		{"mcq without options", model.Test{Title: "T", Questions: []model.Question{{Text: "?", Type: model.QuestionMultipleChoice, CorrectAnswer: "a", Marks: 1}}}, "Options", 0},
		{"fill blank without key", model.Test{Title: "T", Questions: []model.Question{{Text: "H2_", Type: model.QuestionFillBlank, Marks: 1}}}, "correct_answer", 0},
		{"long without key is allowed", model.Test{Title: "T", Questions: []model.Question{{Text: "Essay", Type: model.QuestionLong, Marks: 10}}}, "", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test := tt.test
			err := ValidateTest(&test)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if test.TotalMarks != tt.wantTotal {
					t.Errorf("TotalMarks = %d, want %d", test.TotalMarks, tt.wantTotal)
				}
				return
			}
			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

type exportFake struct {
	tests   []model.Test
	results []model.Result
	users   map[string]*model.User
	lookups int
}

func (f *exportFake) ListTests(context.Context, string, model.TestType) ([]model.Test, error) {
	return f.tests, nil
}

func (f *exportFake) ListResults(context.Context) ([]model.Result, error) {
	return f.results, nil
}

func (f *exportFake) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.lookups++
	return f.users[id], nil
}

func TestExport(t *testing.T) {
	now := time.Now().UTC()
	src := &exportFake{
		tests: []model.Test{
			{ID: "t-1", Title: "Physics", TotalMarks: 10},
			{ID: "t-2", Title: "Chemistry", TotalMarks: 5},
		},
		results: []model.Result{
			{ID: "r-1", TestID: "t-1", StudentID: "stu-1", TotalScore: 7, MaxScore: 10, SubmittedAt: now},
			{ID: "r-2", TestID: "t-1", StudentID: "stu-2", TotalScore: 9.5, MaxScore: 10, SubmittedAt: now},
			{ID: "r-3", TestID: "t-1", StudentID: "stu-1", TotalScore: 8, MaxScore: 10, SubmittedAt: now, RescoredFrom: "r-1"},
		},
		users: map[string]*model.User{
			"stu-1": {ID: "stu-1", Name: "Asha", StudentCode: "STDAAAA0001"},
		},
	}

	out, err := Export(context.Background(), src)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(out.Tests) != 2 {
		t.Fatalf("expected 2 test sets, got %d", len(out.Tests))
	}
	physics := out.Tests[0]
	if len(physics.Results) != 3 {
		t.Fatalf("expected 3 physics results, got %d", len(physics.Results))
	}
	if got := physics.Results[2]; got.AttemptNumber != 2 || got.StudentCode != "STDAAAA0001" || got.Percent != 80 {
		t.Errorf("unexpected third result: %+v", got)
	}
	if got := physics.Results[1]; got.AttemptNumber != 1 || got.DisplayName != "" || got.Percent != 95 {
		t.Errorf("unknown user should export without name: %+v", got)
	}
	if len(out.Tests[1].Results) != 0 || out.Tests[1].Results == nil {
		t.Errorf("test without results should export an empty list")
	}
	if src.lookups != 2 {
		t.Errorf("users should be looked up once each, got %d lookups", src.lookups)
	}
}
