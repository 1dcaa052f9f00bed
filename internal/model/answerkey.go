package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// QuestionType is the closed set of question kinds a test can contain.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "mcq"
	QuestionFillBlank      QuestionType = "fill_blank"
	QuestionMatch          QuestionType = "match"
	QuestionShort          QuestionType = "short"
	QuestionLong           QuestionType = "long"
)

// QuestionTypes lists every question type in declaration order.
var QuestionTypes = []QuestionType{
	QuestionMultipleChoice,
	QuestionFillBlank,
	QuestionMatch,
	QuestionShort,
	QuestionLong,
}

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionFillBlank, QuestionMatch, QuestionShort, QuestionLong:
		return true
	}
	return false
}

// FreeText reports whether answers of this type are graded semantically.
func (t QuestionType) FreeText() bool {
	return t == QuestionShort || t == QuestionLong
}

// Question is one entry of a test's answer key. Its index is its position in Test.Questions.
type Question struct {
	Text          string            `json:"question_text" bson:"question_text" validate:"required"`
	Type          QuestionType      `json:"question_type" bson:"question_type" validate:"required,oneof=mcq fill_blank match short long"`
	Options       []string          `json:"options,omitempty" bson:"options,omitempty" validate:"required_if=Type mcq"`
	CorrectAnswer string            `json:"correct_answer,omitempty" bson:"correct_answer,omitempty"`
	MatchPairs    map[string]string `json:"match_pairs,omitempty" bson:"match_pairs,omitempty"`
	Marks         int               `json:"marks" bson:"marks" validate:"gt=0"`
}

// Test is an authored exam together with its answer key.
type Test struct {
	ID              string     `json:"id" bson:"id"`
	Title           string     `json:"title" bson:"title"`
	SubjectID       string     `json:"subject_id" bson:"subject_id"`
	ClassName       string     `json:"class_name" bson:"class_name"`
	TestType        TestType   `json:"test_type" bson:"test_type"`
	DurationMinutes int        `json:"duration_minutes" bson:"duration_minutes"`
	TotalMarks      int        `json:"total_marks" bson:"total_marks"`
	Questions       []Question `json:"questions" bson:"questions"`
	CreatedBy       string     `json:"created_by" bson:"created_by"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty" bson:"scheduled_at,omitempty"`
}

// Question returns the question at index i, or false if i is out of range.
func (t Test) Question(i int) (Question, bool) {
	if i < 0 || i >= len(t.Questions) {
		return Question{}, false
	}
	return t.Questions[i], true
}

// MarksSum returns the literal sum of question marks.
func (t Test) MarksSum() int {
	sum := 0
	for _, q := range t.Questions {
		sum += q.Marks
	}
	return sum
}

// Redacted returns a copy of the test with the answer key removed.
func (t Test) Redacted() Test {
	qs := make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		q.CorrectAnswer = ""
		q.MatchPairs = nil
		qs[i] = q
	}
	t.Questions = qs
	return t
}

// Normalize trims surrounding whitespace and case-folds text. Exact-match
// question types compare normalized key and candidate answers.
func Normalize(text string) string {
	return cases.Fold().String(strings.TrimSpace(text))
}
