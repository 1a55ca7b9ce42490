package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cmacnamara/prompt-guessr/internal"
	"github.com/cmacnamara/prompt-guessr/internal/imagegen"
)

func newTestServiceWithImages(t *testing.T) (*Service, *fakeStore, *fakeNotifier) {
	t.Helper()
	store := newFakeStore()
	notifier := &fakeNotifier{}
	port, err := imagegen.NewPort(map[internal.ImageProvider]imagegen.Backend{
		internal.ProviderMock: imagegen.NewMockBackend(7),
	}, imagegen.Config{Provider: internal.ProviderMock})
	require.NoError(t, err)

	svc := NewService(store, port, zap.NewNop())
	svc.SetNotifier(notifier)
	return svc, store, notifier
}

func waitForRoundStatus(t *testing.T, svc *Service, roomId string, want internal.RoundPhase, timeout time.Duration) *internal.Room {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		room, err := svc.GetRoom(context.Background(), roomId)
		require.NoError(t, err)
		if round := room.CurrentRoundData(); round != nil && round.Status == want {
			return room
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("round never reached status %q within %s", want, timeout)
	return nil
}

func TestTriggerImageGenerationAdvancesToImageSelect(t *testing.T) {
	svc, _, _ := newTestServiceWithImages(t)
	roomId, hostId, guestId := twoPlayerGame(t, svc)

	_, _, err := svc.SubmitPrompt(context.Background(), roomId, hostId, "a dog riding a skateboard")
	require.NoError(t, err)
	_, transitioned, err := svc.SubmitPrompt(context.Background(), roomId, guestId, "a cat wearing sunglasses")
	require.NoError(t, err)
	require.True(t, transitioned)

	svc.TriggerImageGeneration(context.Background(), roomId, 1)

	room := waitForRoundStatus(t, svc, roomId, internal.RoundImageSelect, 5*time.Second)
	round := room.CurrentRoundData()
	assert.Len(t, round.Prompts[hostId].Images, internal.DefaultImageCount)
	assert.Len(t, round.Prompts[guestId].Images, internal.DefaultImageCount)
	assert.Equal(t, internal.SubmissionReady, round.Prompts[hostId].Status)
	assert.Equal(t, internal.SubmissionReady, round.Prompts[guestId].Status)
}

func TestAllPromptsTerminal(t *testing.T) {
	round := &internal.Round{Prompts: map[string]*internal.PromptSubmission{
		"p1": {Status: internal.SubmissionReady},
		"p2": {Status: internal.SubmissionFailed},
	}}
	assert.True(t, allPromptsTerminal(round))

	round.Prompts["p2"].Status = internal.SubmissionGenerating
	assert.False(t, allPromptsTerminal(round))
}
