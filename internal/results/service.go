// Package results turns submissions into persisted, scored results and serves
// them back to the people allowed to see them.
package results

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/examgrader/internal/model"
	"github.com/pavelanni/examgrader/internal/scoring"
)

// TestStore looks up tests with their answer keys.
type TestStore interface {
	GetTest(ctx context.Context, id string) (*model.Test, error)
}

// ResultStore persists immutable results.
type ResultStore interface {
	SaveResult(ctx context.Context, r model.Result) (string, error)
	GetResult(ctx context.Context, id string) (*model.Result, error)
	ListResultsByStudent(ctx context.Context, studentID string) ([]model.Result, error)
}

// Evaluator scores a set of answers against a test.
type Evaluator interface {
	Evaluate(ctx context.Context, test model.Test, answers []model.SubmittedAnswer) scoring.Evaluation
}

type Service struct {
	tests   TestStore
	results ResultStore
	engine  Evaluator
	now     func() time.Time
	newID   func() string
}

func New(tests TestStore, results ResultStore, engine Evaluator) *Service {
	return &Service{
		tests:   tests,
		results: results,
		engine:  engine,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Submit scores a student's submission and stores the result.
//
// Scoring continues even if ctx is cancelled after validation: a client that
// disconnects mid-request must not turn in-flight grading calls into zeros.
func (s *Service) Submit(ctx context.Context, user *model.User, sub model.Submission) (*model.Result, error) {
	if !CanSubmit(user) {
		return nil, &model.AccessDeniedError{Reason: "only students can submit tests"}
	}
	if err := ValidateSubmission(sub); err != nil {
		return nil, err
	}
	test, err := s.tests.GetTest(ctx, sub.TestID)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	r := s.evaluate(ctx, *test, user.ID, sub.Answers)
	if _, err := s.results.SaveResult(ctx, r); err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}
	slog.Info("submission scored",
		"result_id", r.ID, "test_id", r.TestID, "student_id", r.StudentID,
		"total_score", r.TotalScore, "max_score", r.MaxScore)
	return &r, nil
}

// Rescore evaluates the stored answers of an existing result again and stores
// the outcome as a new result. Answers whose text was already extracted are
// not sent to the extractor a second time.
func (s *Service) Rescore(ctx context.Context, user *model.User, resultID string) (*model.Result, error) {
	if user == nil || user.Role != model.UserRoleTeacher {
		return nil, &model.AccessDeniedError{Reason: "only teachers can rescore results"}
	}
	prior, err := s.results.GetResult(ctx, resultID)
	if err != nil {
		return nil, err
	}
	test, err := s.tests.GetTest(ctx, prior.TestID)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	r := s.evaluate(ctx, *test, prior.StudentID, prior.Answers)
	r.RescoredFrom = prior.ID
	if _, err := s.results.SaveResult(ctx, r); err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}
	slog.Info("result rescored",
		"result_id", r.ID, "rescored_from", prior.ID, "by", user.ID,
		"old_score", prior.TotalScore, "new_score", r.TotalScore)
	return &r, nil
}

func (s *Service) evaluate(ctx context.Context, test model.Test, studentID string, answers []model.SubmittedAnswer) model.Result {
	ev := s.engine.Evaluate(ctx, test, answers)
	return NewResult(s.newID(), test, studentID, ev, s.now())
}

// NewResult assembles the Result of a finished evaluation. The maximum score
// is the test's stored total and completedAt becomes the submission time.
func NewResult(id string, test model.Test, studentID string, ev scoring.Evaluation, completedAt time.Time) model.Result {
	return model.Result{
		ID:          id,
		TestID:      test.ID,
		StudentID:   studentID,
		Answers:     ev.Answers,
		Outcomes:    ev.Outcomes,
		TotalScore:  ev.Total,
		MaxScore:    test.TotalMarks,
		SubmittedAt: completedAt.UTC(),
		Evaluated:   true,
	}
}

// Result returns one result if user may read it.
func (s *Service) Result(ctx context.Context, user *model.User, id string) (*model.Result, error) {
	r, err := s.results.GetResult(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanReadStudent(user, r.StudentID) {
		return nil, &model.AccessDeniedError{Reason: "result belongs to another student"}
	}
	return r, nil
}

// StudentResults returns every result of a student, oldest first.
func (s *Service) StudentResults(ctx context.Context, user *model.User, studentID string) ([]model.Result, error) {
	if !CanReadStudent(user, studentID) {
		return nil, &model.AccessDeniedError{Reason: "cannot read another student's results"}
	}
	list, err := s.results.ListResultsByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	if list == nil {
		list = []model.Result{}
	}
	return list, nil
}

// Analytics summarizes a student's results.
func (s *Service) Analytics(ctx context.Context, user *model.User, studentID string) (model.Analytics, error) {
	list, err := s.StudentResults(ctx, user, studentID)
	if err != nil {
		return model.Analytics{}, err
	}
	return ComputeAnalytics(list), nil
}
