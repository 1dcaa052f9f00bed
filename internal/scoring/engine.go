// Package scoring evaluates submitted answers against a test's answer key.
//
// Exact-match question types are scored locally. Free-text answers are
// delegated to a semantic grader, after handwritten images have been turned
// into text by an extractor. Failures of either service never abort a
// submission: the affected question scores zero and the failure is logged at
// warn level. Operators should alert on those warnings, since a grader outage
// otherwise shows up only as silently low scores.
package scoring

import (
	"context"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/examgrader/internal/model"
)

// DefaultConcurrency is the number of answers evaluated in parallel.
const DefaultConcurrency = 4

// Extractor turns a handwritten answer image into text.
type Extractor interface {
	Extract(ctx context.Context, image string) (string, error)
}

// Grader scores a free-text answer against a reference answer.
type Grader interface {
	Grade(ctx context.Context, question, reference, candidate string, maxMarks int) (float64, error)
}

// Engine scores submissions. It holds no per-submission state and is safe for
// concurrent use.
type Engine struct {
	extractor   Extractor
	grader      Grader
	concurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency sets how many answers of one submission are evaluated at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// New creates an Engine using the given external services.
func New(extractor Extractor, grader Grader, opts ...Option) *Engine {
	e := &Engine{
		extractor:   extractor,
		grader:      grader,
		concurrency: DefaultConcurrency,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluation is the outcome of scoring one submission.
type Evaluation struct {
	// Answers are the processed answers, in submission order, with any
	// extracted text back-filled into OCRText.
	Answers []model.SubmittedAnswer
	// Outcomes holds one entry per answer that referenced an existing question,
	// in submission order.
	Outcomes []model.Outcome
	Total    float64
}

// Evaluate scores answers against test. Answers are evaluated concurrently but
// the returned slices keep submission order.
func (e *Engine) Evaluate(ctx context.Context, test model.Test, answers []model.SubmittedAnswer) Evaluation {
	processed := make([]model.SubmittedAnswer, len(answers))
	outcomes := make([]*model.Outcome, len(answers))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, ans := range answers {
		q, ok := test.Question(ans.QuestionIndex)
		if !ok {
			slog.Debug("answer references unknown question, skipping",
				"test_id", test.ID, "question_index", ans.QuestionIndex)
			processed[i] = ans
			continue
		}
		g.Go(func() error {
			out, updated := e.evaluateAnswer(ctx, test.ID, q, ans)
			processed[i] = updated
			outcomes[i] = &out
			return nil
		})
	}
	_ = g.Wait()

	ordered := make([]model.Outcome, 0, len(answers))
	for _, o := range outcomes {
		if o != nil {
			ordered = append(ordered, *o)
		}
	}

	return Evaluation{
		Answers:  processed,
		Outcomes: ordered,
		Total:    Total(ordered),
	}
}

// Total folds outcome scores into a submission total.
func Total(outcomes []model.Outcome) float64 {
	total := 0.0
	for _, o := range outcomes {
		total += o.Score
	}
	return total
}

func (e *Engine) evaluateAnswer(ctx context.Context, testID string, q model.Question, ans model.SubmittedAnswer) (model.Outcome, model.SubmittedAnswer) {
	var out model.Outcome
	switch q.Type {
	case model.QuestionMultipleChoice:
		out = scoreMultipleChoice(q, ans)
	case model.QuestionFillBlank:
		out = scoreFillBlank(q, ans)
	case model.QuestionMatch:
		out = scoreMatch(q, ans)
	case model.QuestionShort, model.QuestionLong:
		out, ans = e.scoreFreeText(ctx, testID, q, ans)
	default:
		slog.Warn("unknown question type, awarding zero",
			"test_id", testID, "question_index", ans.QuestionIndex, "type", q.Type)
		out = model.Outcome{Status: model.OutcomeUnscored}
	}

	out.QuestionIndex = ans.QuestionIndex
	out.QuestionType = q.Type
	out.MaxMarks = q.Marks
	out.Score = bound(out.Score, q.Marks)
	return out, ans
}

// bound clamps a score to [0, marks]. NaN becomes 0.
func bound(score float64, marks int) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	return math.Min(score, float64(max(marks, 0)))
}
