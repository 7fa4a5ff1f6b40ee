package gateway

import (
	"fmt"

	"aigateway/internal/core"
	"aigateway/internal/prompts"
)

// BuildChat returns a single user turn holding only the caller's text.
func BuildChat(message string) []core.Message {
	return []core.Message{{Role: core.RoleUser, Text: message}}
}

// BuildImageAnalysis returns one user turn with a text part (customPrompt, or
// the image-analysis catalog entry when empty) and the image as a data URI.
func BuildImageAnalysis(image []byte, mimeType, customPrompt string) ([]core.Message, error) {
	if customPrompt != "" {
		return buildVision(image, mimeType, customPrompt)
	}
	prompt, err := taskPrompt(prompts.TaskImageAnalysis)
	if err != nil {
		return nil, err
	}
	return buildVision(image, mimeType, prompt)
}

// BuildAgeEstimation is BuildImageAnalysis with the fixed age-estimation prompt.
func BuildAgeEstimation(image []byte, mimeType string) ([]core.Message, error) {
	prompt, err := taskPrompt(prompts.TaskAgeEstimation)
	if err != nil {
		return nil, err
	}
	return buildVision(image, mimeType, prompt)
}

func taskPrompt(task string) (string, error) {
	p, ok := prompts.Lookup(task)
	if !ok {
		return "", fmt.Errorf("no prompt registered for task %q", task)
	}
	return p, nil
}

func buildVision(image []byte, mimeType, prompt string) ([]core.Message, error) {
	if len(image) == 0 {
		return nil, core.NewMissingInputError("No image file provided")
	}
	return []core.Message{{
		Role: core.RoleUser,
		Parts: []core.ContentPart{
			{Type: core.PartText, Text: prompt},
			{Type: core.PartImageURL, ImageURL: &core.ImageURL{URL: core.EncodeDataURI(mimeType, image)}},
		},
	}}, nil
}
