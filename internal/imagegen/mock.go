package imagegen

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cmacnamara/prompt-guessr/internal"
)

// MockBackend returns deterministic per-prompt placeholder URLs after a
// simulated 0.5-1.5s latency, per spec §4.4.
type MockBackend struct {
	// rng is seeded once at construction; deterministic-per-prompt means
	// the URL is a hash of the prompt text, not of rng state — rng only
	// drives the simulated latency. Generate runs concurrently across
	// rooms and players (orchestrator.go spawns one goroutine per prompt),
	// so access is serialized by mu since *rand.Rand is not itself
	// safe for concurrent use.
	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockBackend builds a MockBackend whose latency rng is seeded with
// seed; latency is randomized but image URLs are pure functions of the
// prompt.
func NewMockBackend(seed int64) *MockBackend {
	return &MockBackend{rng: rand.New(rand.NewSource(seed))}
}

func (m *MockBackend) Name() internal.ImageProvider { return internal.ProviderMock }

func (m *MockBackend) Generate(ctx context.Context, prompt string, count int, ownerPlayerId string) ([]internal.GeneratedImage, error) {
	m.mu.Lock()
	jitter := m.rng.Int63n(int64(time.Second))
	m.mu.Unlock()
	latency := 500*time.Millisecond + time.Duration(jitter)
	if err := sleepPacing(ctx, latency); err != nil {
		return nil, &TransientError{Provider: internal.ProviderMock, Cause: err}
	}

	images := make([]internal.GeneratedImage, 0, count)
	for i := 0; i < count; i++ {
		hash := sha1.Sum([]byte(fmt.Sprintf("%s|%d", prompt, i)))
		images = append(images, internal.GeneratedImage{
			Id:          uuid.NewString(),
			PlayerId:    ownerPlayerId,
			ImageURL:    fmt.Sprintf("https://mock.image/%s.png", hex.EncodeToString(hash[:8])),
			Provider:    internal.ProviderMock,
			Status:      internal.ImageComplete,
			GeneratedAt: time.Now(),
			Metadata:    internal.ImageMetadata{Model: "mock-diffusion", GenerationTime: latency},
		})
	}
	return images, nil
}
