package game

import (
	"context"
	"sync"

	"github.com/cmacnamara/prompt-guessr/internal"
)

// fakeStore is an in-memory Store used across this package's tests so they
// exercise Service's locking and transition logic without a real Redis
// instance, per DESIGN.md's note that internal/game tests substitute a fake
// store rather than a containerized dependency.
type fakeStore struct {
	mu        sync.Mutex
	byId      map[string]*internal.Room
	codeIndex map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byId:      make(map[string]*internal.Room),
		codeIndex: make(map[string]string),
	}
}

func (f *fakeStore) Create(ctx context.Context, room *internal.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byId[room.Id] = room
	f.codeIndex[room.Code] = room.Id
	return nil
}

func (f *fakeStore) GetById(ctx context.Context, id string) (*internal.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.byId[id]
	if !ok {
		return nil, internal.NewGameError("GetById", internal.ErrRoomNotFound, "room not found")
	}
	return room, nil
}

func (f *fakeStore) GetByCode(ctx context.Context, code string) (*internal.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.codeIndex[code]
	if !ok {
		return nil, internal.NewGameError("GetByCode", internal.ErrRoomNotFound, "room not found")
	}
	return f.byId[id], nil
}

func (f *fakeStore) Update(ctx context.Context, room *internal.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byId[room.Id] = room
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byId, id)
	delete(f.codeIndex, code)
	return nil
}

func (f *fakeStore) IsCodeTaken(ctx context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.codeIndex[code]
	return ok, nil
}

// fakeNotifier records every broadcast call made during a test without
// requiring a live websocket registry.
type fakeNotifier struct {
	mu sync.Mutex

	roomUpdates       int
	playersJoined     []string
	playersLeft       []string
	readyChanges      []string
	gamesStarted      int
	phaseTransitions  []internal.RoundPhase
	imageProgress     int
	promptsRejected   []string
	errorsNotified    []string
}

func (f *fakeNotifier) BroadcastRoomUpdate(room *internal.Room) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roomUpdates++
}

func (f *fakeNotifier) BroadcastPlayerJoined(room *internal.Room, player *internal.Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playersJoined = append(f.playersJoined, player.Id)
}

func (f *fakeNotifier) BroadcastPlayerLeft(room *internal.Room, playerId, displayName, reason, newHostId string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playersLeft = append(f.playersLeft, playerId)
}

func (f *fakeNotifier) BroadcastPlayerReadyChanged(room *internal.Room, playerId string, isReady bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readyChanges = append(f.readyChanges, playerId)
}

func (f *fakeNotifier) BroadcastGameStarted(room *internal.Room) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gamesStarted++
}

func (f *fakeNotifier) BroadcastPhaseTransition(room *internal.Room, phase internal.RoundPhase) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phaseTransitions = append(f.phaseTransitions, phase)
}

func (f *fakeNotifier) BroadcastImageProgress(room *internal.Room) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageProgress++
}

func (f *fakeNotifier) NotifyPromptRejected(room *internal.Room, playerId, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.promptsRejected = append(f.promptsRejected, playerId)
}

func (f *fakeNotifier) NotifyError(playerId string, err error, context string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errorsNotified = append(f.errorsNotified, playerId)
}
