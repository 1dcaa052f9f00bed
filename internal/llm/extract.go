package llm

import (
	"context"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const extractSystemPrompt = "You are an OCR system. Extract all text from the image exactly as written. " +
	"Return only the extracted text, no additional commentary. " +
	"If the image contains no legible text, return an empty response."

// Extract returns the handwritten text found in a base64-encoded image.
// On failure it returns an empty string and an *ExtractionError.
func (c *Client) Extract(ctx context.Context, image string) (string, error) {
	raw, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.ocrModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractSystemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: "Extract all handwritten text from this image."},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageDataURL(image),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", &ExtractionError{Err: err}
	}

	text := strings.TrimSpace(raw)
	slog.Debug("extracted text", "chars", len(text))
	return text, nil
}

// imageDataURL turns a bare base64 payload into a data URL. Payloads that are
// already data URLs are passed through.
func imageDataURL(image string) string {
	image = strings.TrimSpace(image)
	if strings.HasPrefix(image, "data:") {
		return image
	}
	return "data:image/jpeg;base64," + image
}
