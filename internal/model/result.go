package model

import "time"

// SubmittedAnswer is a student's answer to one question. Which of AnswerText,
// SelectedOption and MatchPairs matters depends on the question type.
type SubmittedAnswer struct {
	QuestionIndex    int               `json:"question_index" bson:"question_index" validate:"min=0"`
	AnswerText       string            `json:"answer_text,omitempty" bson:"answer_text,omitempty"`
	SelectedOption   string            `json:"selected_option,omitempty" bson:"selected_option,omitempty"`
	MatchPairs       map[string]string `json:"match_pairs,omitempty" bson:"match_pairs,omitempty"`
	HandwrittenImage string            `json:"handwritten_image,omitempty" bson:"handwritten_image,omitempty" validate:"omitempty,base64|datauri"`
	OCRText          string            `json:"ocr_text,omitempty" bson:"ocr_text,omitempty"`
}

// Submission is the payload a student posts for a test.
type Submission struct {
	TestID  string            `json:"test_id" validate:"required"`
	Answers []SubmittedAnswer `json:"answers" validate:"dive"`
}

// OutcomeStatus explains how an outcome's score was reached.
type OutcomeStatus string

const (
	OutcomeCorrect          OutcomeStatus = "correct"
	OutcomeIncorrect        OutcomeStatus = "incorrect"
	OutcomeGraded           OutcomeStatus = "graded"
	OutcomeUnanswered       OutcomeStatus = "unanswered"
	OutcomeUnscored         OutcomeStatus = "unscored"
	OutcomeExtractionFailed OutcomeStatus = "extraction_failed"
	OutcomeGradingFailed    OutcomeStatus = "grading_failed"
)

// Outcome is the scored evaluation of one submitted answer.
type Outcome struct {
	QuestionIndex  int           `json:"question_index" bson:"question_index"`
	QuestionType   QuestionType  `json:"question_type" bson:"question_type"`
	Score          float64       `json:"score" bson:"score"`
	MaxMarks       int           `json:"max_marks" bson:"max_marks"`
	ResolvedAnswer string        `json:"resolved_answer" bson:"resolved_answer"`
	Status         OutcomeStatus `json:"status" bson:"status"`
}

// Result is the immutable record of one evaluated submission.
type Result struct {
	ID           string            `json:"id" bson:"id"`
	TestID       string            `json:"test_id" bson:"test_id"`
	StudentID    string            `json:"student_id" bson:"student_id"`
	Answers      []SubmittedAnswer `json:"answers" bson:"answers"`
	Outcomes     []Outcome         `json:"outcomes" bson:"outcomes"`
	TotalScore   float64           `json:"total_score" bson:"total_score"`
	MaxScore     int               `json:"max_score" bson:"max_score"`
	SubmittedAt  time.Time         `json:"submitted_at" bson:"submitted_at"`
	Evaluated    bool              `json:"evaluated" bson:"evaluated"`
	RescoredFrom string            `json:"rescored_from,omitempty" bson:"rescored_from,omitempty"`
}

// Analytics summarizes a student's results.
type Analytics struct {
	TotalTests         int     `json:"total_tests"`
	ObtainedMarks      float64 `json:"obtained_marks"`
	TotalMarksPossible int     `json:"total_marks"`
	AveragePercent     float64 `json:"average_score"`
}
