package internal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGameErrorMessage(t *testing.T) {
	err := NewGameError("JoinRoom", ErrRoomFull, "room has reached capacity")
	assert.Equal(t, "JoinRoom: ROOM_FULL: room has reached capacity", err.Error())
}

func TestGameErrorWithoutOp(t *testing.T) {
	err := &GameError{Kind: ErrRoomNotFound, Message: "no such room"}
	assert.Equal(t, "ROOM_NOT_FOUND: no such room", err.Error())
}

func TestNewGameErrorDefaultsMessage(t *testing.T) {
	err := NewGameError("CreateRoom", ErrStoreUnavailable, "")
	assert.Equal(t, "STORE_UNAVAILABLE", err.Message)
}

func TestAsGameError(t *testing.T) {
	wrapped := NewGameError("SubmitGuess", ErrInvalidPhase, "round is not accepting guesses")
	ge, ok := AsGameError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrInvalidPhase, ge.Kind)

	_, ok = AsGameError(errors.New("plain error"))
	assert.False(t, ok)
}
