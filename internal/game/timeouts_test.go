package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmacnamara/prompt-guessr/internal"
)

func TestOnPromptSubmitTimeoutSynthesizesMissingPrompts(t *testing.T) {
	svc, _, notifier := newTestService(t)
	roomId, hostId, _ := twoPlayerGame(t, svc)

	_, _, err := svc.SubmitPrompt(context.Background(), roomId, hostId, "a dog riding a skateboard")
	require.NoError(t, err)

	svc.onPromptSubmitTimeout(roomId)

	room, err := svc.GetRoom(context.Background(), roomId)
	require.NoError(t, err)
	round := room.CurrentRoundData()
	assert.Equal(t, internal.RoundImageGenerate, round.Status)
	assert.Len(t, round.Prompts, 2)
	assert.Contains(t, notifier.phaseTransitions, internal.RoundImageGenerate)
}

func TestOnSelectionTimeoutAutoSelectsFirstImage(t *testing.T) {
	svc, _, notifier := newTestService(t)
	roomId, hostId, guestId := twoPlayerGame(t, svc)

	_, _, err := svc.SubmitPrompt(context.Background(), roomId, hostId, "a dog riding a skateboard")
	require.NoError(t, err)
	_, _, err = svc.SubmitPrompt(context.Background(), roomId, guestId, "a cat wearing sunglasses")
	require.NoError(t, err)
	advanceToImageSelect(t, svc, roomId)

	svc.onSelectionTimeout(roomId)

	room, err := svc.GetRoom(context.Background(), roomId)
	require.NoError(t, err)
	round := room.CurrentRoundData()
	assert.Equal(t, internal.RoundRevealGuess, round.Status)
	assert.Len(t, round.Selections, 2)
	assert.Len(t, round.RevealOrder, 2)
	assert.Contains(t, notifier.phaseTransitions, internal.RoundRevealGuess)
}

func TestOnGuessingTimeoutSynthesizesEmptyGuessesAndScores(t *testing.T) {
	svc, _, _ := newTestService(t)
	roomId, hostId, guestId := twoPlayerGame(t, svc)

	_, _, err := svc.SubmitPrompt(context.Background(), roomId, hostId, "a dog riding a skateboard")
	require.NoError(t, err)
	_, _, err = svc.SubmitPrompt(context.Background(), roomId, guestId, "a cat wearing sunglasses")
	require.NoError(t, err)
	advanceToImageSelect(t, svc, roomId)

	room, err := svc.GetRoom(context.Background(), roomId)
	require.NoError(t, err)
	round := room.CurrentRoundData()
	_, _, err = svc.SelectImage(context.Background(), roomId, hostId, round.Prompts[hostId].Images[0].Id)
	require.NoError(t, err)
	_, _, err = svc.SelectImage(context.Background(), roomId, guestId, round.Prompts[guestId].Images[0].Id)
	require.NoError(t, err)

	room, err = svc.GetRoom(context.Background(), roomId)
	require.NoError(t, err)
	roundNumber := room.CurrentRoundData().Number

	svc.onGuessingTimeout(roomId, roundNumber)
	svc.onGuessingTimeout(roomId, roundNumber)

	room, err = svc.GetRoom(context.Background(), roomId)
	require.NoError(t, err)
	assert.Equal(t, internal.RoundRevealResults, room.CurrentRoundData().Status)
}

func TestOnResultsTimeoutCompletesReveal(t *testing.T) {
	svc, _, _ := newTestService(t)
	roomId, _, _ := twoPlayerGame(t, svc)

	_, err := svc.withRoom(context.Background(), roomId, func(room *internal.Room) (bool, error) {
		room.Game.Status = internal.RoundRevealResults
		room.CurrentRoundData().Status = internal.RoundRevealResults
		return true, nil
	})
	require.NoError(t, err)

	svc.onResultsTimeout(roomId)

	room, err := svc.GetRoom(context.Background(), roomId)
	require.NoError(t, err)
	assert.Equal(t, internal.RoundEnd, room.Game.Status)
}
