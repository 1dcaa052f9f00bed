package scoring

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/pavelanni/examgrader/internal/model"
)

// scoreMultipleChoice treats options as opaque tokens: no normalization.
func scoreMultipleChoice(q model.Question, ans model.SubmittedAnswer) model.Outcome {
	out := model.Outcome{ResolvedAnswer: ans.SelectedOption}
	switch {
	case ans.SelectedOption == q.CorrectAnswer:
		out.Score = float64(q.Marks)
		out.Status = model.OutcomeCorrect
	case ans.SelectedOption == "":
		out.Status = model.OutcomeUnanswered
	default:
		out.Status = model.OutcomeIncorrect
	}
	return out
}

func scoreFillBlank(q model.Question, ans model.SubmittedAnswer) model.Outcome {
	out := model.Outcome{ResolvedAnswer: ans.AnswerText}
	switch {
	case model.Normalize(ans.AnswerText) == model.Normalize(q.CorrectAnswer):
		out.Score = float64(q.Marks)
		out.Status = model.OutcomeCorrect
	case model.Normalize(ans.AnswerText) == "":
		out.Status = model.OutcomeUnanswered
	default:
		out.Status = model.OutcomeIncorrect
	}
	return out
}

// scoreMatch awards nothing: match questions have no agreed scoring rule yet.
func scoreMatch(_ model.Question, ans model.SubmittedAnswer) model.Outcome {
	return model.Outcome{
		ResolvedAnswer: formatPairs(ans.MatchPairs),
		Status:         model.OutcomeUnscored,
	}
}

// scoreFreeText resolves the answer text (extracting it from the handwritten
// image when needed) and delegates scoring to the grader. The returned answer
// carries any back-filled OCR text.
func (e *Engine) scoreFreeText(ctx context.Context, testID string, q model.Question, ans model.SubmittedAnswer) (model.Outcome, model.SubmittedAnswer) {
	extractionFailed := false
	if ans.HandwrittenImage != "" && ans.OCRText == "" && e.extractor != nil {
		text, err := e.extractor.Extract(ctx, ans.HandwrittenImage)
		if err != nil {
			slog.Warn("text extraction failed, continuing without OCR text",
				"test_id", testID, "question_index", ans.QuestionIndex, "error", err)
			extractionFailed = true
			text = ""
		}
		ans.OCRText = text
	}

	resolved := ans.OCRText
	if resolved == "" {
		resolved = ans.AnswerText
	}
	out := model.Outcome{ResolvedAnswer: resolved}

	if resolved == "" || q.CorrectAnswer == "" {
		out.Status = model.OutcomeUnanswered
		if extractionFailed {
			out.Status = model.OutcomeExtractionFailed
		}
		return out, ans
	}
	if e.grader == nil {
		out.Status = model.OutcomeGradingFailed
		return out, ans
	}

	score, err := e.grader.Grade(ctx, q.Text, q.CorrectAnswer, resolved, q.Marks)
	if err != nil {
		slog.Warn("semantic grading failed, awarding zero",
			"test_id", testID, "question_index", ans.QuestionIndex, "error", err)
		out.Status = model.OutcomeGradingFailed
		return out, ans
	}
	out.Score = score
	out.Status = model.OutcomeGraded
	return out, ans
}

// formatPairs renders match pairs in a stable order for the audit trail.
func formatPairs(pairs map[string]string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+pairs[k])
	}
	return strings.Join(parts, "; ")
}
