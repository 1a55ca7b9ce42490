package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cmacnamara/prompt-guessr/internal"
)

// HuggingFaceBackend calls the Inference API directly over net/http. No
// HuggingFace SDK appears anywhere in the retrieved pack (unlike OpenAI's
// sashabaranov/go-openai); a single authenticated POST returning an image
// byte stream doesn't warrant adopting a library purely for this one call,
// so this is the one deliberately stdlib-only piece of the domain stack
// (documented in DESIGN.md).
type HuggingFaceBackend struct {
	apiKey string
	model  string
	client *http.Client
}

// NewHuggingFaceBackend builds a backend targeting the given model
// (e.g. "stabilityai/stable-diffusion-2").
func NewHuggingFaceBackend(apiKey, model string) *HuggingFaceBackend {
	return &HuggingFaceBackend{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (h *HuggingFaceBackend) Name() internal.ImageProvider { return internal.ProviderHuggingFace }

func (h *HuggingFaceBackend) Generate(ctx context.Context, prompt string, count int, ownerPlayerId string) ([]internal.GeneratedImage, error) {
	images := make([]internal.GeneratedImage, 0, count)
	for i := 0; i < count; i++ {
		img, err := h.generateOne(ctx, prompt)
		if err != nil {
			return nil, err
		}
		img.PlayerId = ownerPlayerId
		images = append(images, *img)
	}
	return images, nil
}

func (h *HuggingFaceBackend) generateOne(ctx context.Context, prompt string) (*internal.GeneratedImage, error) {
	start := time.Now()
	body, _ := json.Marshal(map[string]string{"inputs": prompt})

	url := fmt.Sprintf("https://api-inference.huggingface.co/models/%s", h.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransientError{Provider: internal.ProviderHuggingFace, Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &TransientError{Provider: internal.ProviderHuggingFace, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusForbidden {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return nil, &ContentPolicyError{Provider: internal.ProviderHuggingFace, Reason: payload.Error}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransientError{Provider: internal.ProviderHuggingFace, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Provider: internal.ProviderHuggingFace, Cause: err}
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
	return &internal.GeneratedImage{
		Id:          uuid.NewString(),
		ImageURL:    dataURL,
		Provider:    internal.ProviderHuggingFace,
		Status:      internal.ImageComplete,
		GeneratedAt: time.Now(),
		Metadata:    internal.ImageMetadata{Model: h.model, GenerationTime: time.Since(start)},
	}, nil
}
