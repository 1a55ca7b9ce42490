package imagegen

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/cmacnamara/prompt-guessr/internal"
)

// OpenAIBackend renders images via the Images API, grounded on
// sashabaranov/go-openai, the OpenAI client dependency present across the
// retrieved pack's manifests.
type OpenAIBackend struct {
	client *openai.Client
}

// NewOpenAIBackend builds a backend from an API key.
func NewOpenAIBackend(apiKey string) *OpenAIBackend {
	return &OpenAIBackend{client: openai.NewClient(apiKey)}
}

func (o *OpenAIBackend) Name() internal.ImageProvider { return internal.ProviderOpenAI }

func (o *OpenAIBackend) Generate(ctx context.Context, prompt string, count int, ownerPlayerId string) ([]internal.GeneratedImage, error) {
	start := time.Now()
	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		N:              count,
		Size:           openai.CreateImageSize512x512,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == "content_policy_violation" {
			return nil, &ContentPolicyError{Provider: internal.ProviderOpenAI, Reason: apiErr.Message}
		}
		if errors.As(err, &apiErr) && strings.EqualFold(apiErr.Type, "image_generation_user_error") {
			return nil, &ContentPolicyError{Provider: internal.ProviderOpenAI, Reason: apiErr.Message}
		}
		return nil, &TransientError{Provider: internal.ProviderOpenAI, Cause: err}
	}

	elapsed := time.Since(start)
	images := make([]internal.GeneratedImage, 0, len(resp.Data))
	for _, d := range resp.Data {
		images = append(images, internal.GeneratedImage{
			Id:          uuid.NewString(),
			PlayerId:    ownerPlayerId,
			ImageURL:    d.URL,
			Provider:    internal.ProviderOpenAI,
			Status:      internal.ImageComplete,
			GeneratedAt: time.Now(),
			Metadata: internal.ImageMetadata{
				Model:          "dall-e-2",
				RevisedPrompt:  d.RevisedPrompt,
				GenerationTime: elapsed,
			},
		})
	}
	return images, nil
}
