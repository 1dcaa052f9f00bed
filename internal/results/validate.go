package results

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/examgrader/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateSubmission checks the shape of a submission before any scoring
// work happens. Answer indices beyond the test are not an error here: the
// scoring engine ignores them.
func ValidateSubmission(sub model.Submission) error {
	if err := validate.Struct(sub); err != nil {
		return &model.ValidationError{Err: DescribeValidation(err)}
	}
	return nil
}

// ValidateTest checks an authored test. A zero TotalMarks is filled in from
// the question marks; any other value must equal their sum.
func ValidateTest(t *model.Test) error {
	if t.Title == "" {
		return &model.ValidationError{Err: errors.New("title is required")}
	}
	if t.TestType != "" && !t.TestType.Valid() {
		return &model.ValidationError{Err: fmt.Errorf("unknown test type %q", t.TestType)}
	}
	if len(t.Questions) == 0 {
		return &model.ValidationError{Err: errors.New("a test needs at least one question")}
	}
	for i, q := range t.Questions {
		if err := validate.Struct(q); err != nil {
			return &model.ValidationError{Err: fmt.Errorf("question %d: %w", i, DescribeValidation(err))}
		}
		switch q.Type {
		case model.QuestionMultipleChoice, model.QuestionFillBlank:
			if q.CorrectAnswer == "" {
				return &model.ValidationError{Err: fmt.Errorf("question %d: correct_answer is required for %s", i, q.Type)}
			}
		}
	}

	sum := t.MarksSum()
	switch {
	case t.TotalMarks == 0:
		t.TotalMarks = sum
	case t.TotalMarks != sum:
		return &model.ValidationError{Err: fmt.Errorf("total_marks %d does not match the sum of question marks %d", t.TotalMarks, sum)}
	}
	return nil
}

// DescribeValidation flattens validator errors into one readable error naming
// the first failing field, e.g. "Answers[0].HandwrittenImage failed base64".
// Errors of any other kind are returned unchanged.
func DescribeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	if fe.Param() != "" {
		return fmt.Errorf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Errorf("%s failed %s", field, fe.Tag())
}
