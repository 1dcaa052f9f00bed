package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/examgrader/internal/llm/prompts"
)

// Grade asks the grading model to score a free-text answer against the
// reference answer. The returned score is always within [0, maxMarks]; on
// failure it is 0 and the error is a *GradingError.
func (c *Client) Grade(ctx context.Context, question, reference, candidate string, maxMarks int) (float64, error) {
	systemPrompt, err := prompts.BuildGradePrompt(c.variant, prompts.GradeData{
		QuestionText:    question,
		ReferenceAnswer: reference,
		MaxMarks:        maxMarks,
		Answer:          candidate,
	})
	if err != nil {
		return 0, &GradingError{Err: fmt.Errorf("build prompt: %w", err)}
	}

	raw, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Evaluate and return marks (0-%d).", maxMarks)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return 0, &GradingError{Err: err}
	}
	slog.Debug("LLM grade response", "raw", raw)

	score, err := parseScore(raw)
	if err != nil {
		return 0, &GradingError{Err: err}
	}
	return clampScore(score, maxMarks), nil
}

// parseScore accepts either a JSON object with a "score" field or a bare number.
func parseScore(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.Trim(s, "`")
	s = strings.TrimSpace(s)

	var score float64
	if strings.HasPrefix(s, "{") {
		var reply struct {
			Score *float64 `json:"score"`
		}
		if err := json.Unmarshal([]byte(s), &reply); err != nil {
			return 0, fmt.Errorf("parse grading response: %w (raw: %s)", err, raw)
		}
		if reply.Score == nil {
			return 0, fmt.Errorf("grading response has no score (raw: %s)", raw)
		}
		score = *reply.Score
	} else {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("grading response is not a number (raw: %s)", raw)
		}
		score = f
	}

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("grading response is not a finite number (raw: %s)", raw)
	}
	return score, nil
}

func clampScore(score float64, maxMarks int) float64 {
	return math.Min(math.Max(score, 0), float64(max(maxMarks, 0)))
}
