package game

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmacnamara/prompt-guessr/internal"
)

// twoPlayerGame creates a room, adds a second player, marks both ready and
// starts the game, returning the room id and the two player ids in join
// order (host first).
func twoPlayerGame(t *testing.T, svc *Service) (roomId, hostId, guestId string) {
	t.Helper()
	room, host, err := svc.CreateRoom(context.Background(), "Alice", internal.GameSettings{})
	require.NoError(t, err)
	_, guest, err := svc.JoinRoom(context.Background(), room.Code, "Bob")
	require.NoError(t, err)
	require.NoError(t, setAllReady(svc, room.Id))
	_, err = svc.StartGame(context.Background(), room.Id, host)
	require.NoError(t, err)
	return room.Id, host, guest
}

// advanceToImageSelect simulates the orchestrator's effect (C6) directly:
// it fills both players' submissions with ready images and flips the round
// into image_select, the state SelectImage tests start from.
func advanceToImageSelect(t *testing.T, svc *Service, roomId string) {
	t.Helper()
	_, err := svc.withRoom(context.Background(), roomId, func(room *internal.Room) (bool, error) {
		round := room.CurrentRoundData()
		for playerId, submission := range round.Prompts {
			submission.Images = []internal.GeneratedImage{
				{Id: uuid.NewString(), PlayerId: playerId, Status: internal.ImageComplete},
				{Id: uuid.NewString(), PlayerId: playerId, Status: internal.ImageComplete},
			}
			submission.Status = internal.SubmissionReady
		}
		round.Status = internal.RoundImageSelect
		room.Game.Status = internal.RoundImageSelect
		return true, nil
	})
	require.NoError(t, err)
}

func TestSubmitPromptTransitionsWhenLastPlayerSubmits(t *testing.T) {
	svc, _, notifier := newTestService(t)
	roomId, hostId, guestId := twoPlayerGame(t, svc)

	room, transitioned, err := svc.SubmitPrompt(context.Background(), roomId, hostId, "a dog riding a skateboard")
	require.NoError(t, err)
	assert.False(t, transitioned)
	assert.Equal(t, internal.RoundPromptSubmit, room.CurrentRoundData().Status)

	room, transitioned, err = svc.SubmitPrompt(context.Background(), roomId, guestId, "a cat wearing sunglasses")
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.Equal(t, internal.RoundImageGenerate, room.CurrentRoundData().Status)
	assert.NotEmpty(t, notifier.phaseTransitions)
}

func TestSubmitPromptRejectsDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)
	roomId, hostId, _ := twoPlayerGame(t, svc)

	_, _, err := svc.SubmitPrompt(context.Background(), roomId, hostId, "a dog riding a skateboard")
	require.NoError(t, err)

	_, _, err = svc.SubmitPrompt(context.Background(), roomId, hostId, "a second attempt goes here")
	require.Error(t, err)
	gameErr, ok := internal.AsGameError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrInvalidPhase, gameErr.Kind)
}

func TestSubmitPromptRejectsOutOfRangeLength(t *testing.T) {
	svc, _, _ := newTestService(t)
	roomId, hostId, _ := twoPlayerGame(t, svc)

	_, _, err := svc.SubmitPrompt(context.Background(), roomId, hostId, "too short")
	require.Error(t, err)
	gameErr, ok := internal.AsGameError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrValidation, gameErr.Kind)
}

func TestSelectImageRejectsForeignImage(t *testing.T) {
	svc, _, _ := newTestService(t)
	roomId, hostId, guestId := twoPlayerGame(t, svc)
	_, _, err := svc.SubmitPrompt(context.Background(), roomId, hostId, "a dog riding a skateboard")
	require.NoError(t, err)
	_, _, err = svc.SubmitPrompt(context.Background(), roomId, guestId, "a cat wearing sunglasses")
	require.NoError(t, err)
	advanceToImageSelect(t, svc, roomId)

	_, _, err = svc.SelectImage(context.Background(), roomId, hostId, "not-a-real-image-id")
	require.Error(t, err)
	gameErr, ok := internal.AsGameError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrValidation, gameErr.Kind)
}

func TestFullRoundHappyPath(t *testing.T) {
	svc, _, notifier := newTestService(t)
	roomId, hostId, guestId := twoPlayerGame(t, svc)

	_, _, err := svc.SubmitPrompt(context.Background(), roomId, hostId, "a dog riding a skateboard")
	require.NoError(t, err)
	_, transitioned, err := svc.SubmitPrompt(context.Background(), roomId, guestId, "a cat wearing sunglasses")
	require.NoError(t, err)
	require.True(t, transitioned)

	advanceToImageSelect(t, svc, roomId)

	room, err := svc.GetRoom(context.Background(), roomId)
	require.NoError(t, err)
	round := room.CurrentRoundData()
	hostImageId := round.Prompts[hostId].Images[0].Id
	guestImageId := round.Prompts[guestId].Images[0].Id

	_, selTransitioned, err := svc.SelectImage(context.Background(), roomId, hostId, hostImageId)
	require.NoError(t, err)
	assert.False(t, selTransitioned)

	selectedRoom, selTransitioned, err := svc.SelectImage(context.Background(), roomId, guestId, guestImageId)
	require.NoError(t, err)
	assert.True(t, selTransitioned)
	assert.Equal(t, internal.RoundRevealGuess, selectedRoom.CurrentRoundData().Status)
	require.Len(t, selectedRoom.CurrentRoundData().RevealOrder, 2)

	firstImageId := selectedRoom.CurrentRoundData().RevealOrder[0]
	var firstOwner, firstGuesser string
	if firstImageId == hostImageId {
		firstOwner, firstGuesser = hostId, guestId
	} else {
		firstOwner, firstGuesser = guestId, hostId
	}
	_ = firstOwner

	roomAfterGuess1, allGuessed, err := svc.SubmitGuess(context.Background(), roomId, firstGuesser, firstImageId, "a dog skating outside")
	require.NoError(t, err)
	assert.True(t, allGuessed)
	assert.Equal(t, internal.RoundRevealGuess, roomAfterGuess1.CurrentRoundData().Status)

	secondImageId := roomAfterGuess1.CurrentRoundData().RevealOrder[1]
	var secondGuesser string
	if secondImageId == hostImageId {
		secondGuesser = guestId
	} else {
		secondGuesser = hostId
	}

	roomAfterGuess2, allGuessed, err := svc.SubmitGuess(context.Background(), roomId, secondGuesser, secondImageId, "a cat in shades")
	require.NoError(t, err)
	assert.True(t, allGuessed)
	// ScoreRound runs synchronously off the last guess, so the round is
	// already in reveal_results by the time SubmitGuess returns.
	assert.Equal(t, internal.RoundRevealResults, roomAfterGuess2.CurrentRoundData().Status)
	assert.Contains(t, notifier.phaseTransitions, internal.RoundRevealResults)

	navigated, err := svc.NavigateResult(context.Background(), roomId, "next")
	require.NoError(t, err)
	assert.Equal(t, 1, navigated.CurrentRoundData().CurrentResultIndex)

	navigated, err = svc.NavigateResult(context.Background(), roomId, "previous")
	require.NoError(t, err)
	assert.Equal(t, 0, navigated.CurrentRoundData().CurrentResultIndex)

	completed, err := svc.CompleteReveal(context.Background(), roomId)
	require.NoError(t, err)
	assert.Equal(t, internal.RoundEnd, completed.Game.Status)

	next, err := svc.StartNextRound(context.Background(), roomId, hostId)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Game.CurrentRound)
	assert.Equal(t, internal.RoundPromptSubmit, next.Game.Status)
}

func TestSubmitGuessRejectsOwnImage(t *testing.T) {
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
	hostImageId := round.Prompts[hostId].Images[0].Id
	guestImageId := round.Prompts[guestId].Images[0].Id
	_, _, err = svc.SelectImage(context.Background(), roomId, hostId, hostImageId)
	require.NoError(t, err)
	_, _, err = svc.SelectImage(context.Background(), roomId, guestId, guestImageId)
	require.NoError(t, err)

	room, err = svc.GetRoom(context.Background(), roomId)
	require.NoError(t, err)
	firstImageId := room.CurrentRoundData().RevealOrder[0]
	owner := imageOwner(room.CurrentRoundData(), firstImageId)

	_, _, err = svc.SubmitGuess(context.Background(), roomId, owner, firstImageId, "guessing my own image")
	require.Error(t, err)
	gameErr, ok := internal.AsGameError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrValidation, gameErr.Kind)
}

func TestStartNextRoundRequiresHost(t *testing.T) {
	svc, _, _ := newTestService(t)
	roomId, hostId, guestId := twoPlayerGame(t, svc)

	_, err := svc.withRoom(context.Background(), roomId, func(room *internal.Room) (bool, error) {
		room.Game.Status = internal.RoundEnd
		return true, nil
	})
	require.NoError(t, err)

	_, err = svc.StartNextRound(context.Background(), roomId, guestId)
	require.Error(t, err)
	gameErr, ok := internal.AsGameError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrNotHost, gameErr.Kind)

	advanced, err := svc.StartNextRound(context.Background(), roomId, hostId)
	require.NoError(t, err)
	assert.Equal(t, 2, advanced.Game.CurrentRound)
}
