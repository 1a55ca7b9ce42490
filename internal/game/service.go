// Package game is the Room & Game Service (C5) and Phase Orchestrator (C6):
// pure transitions over Room state plus the asynchronous image-generation
// work those transitions trigger. It is the direct generalization of the
// teacher's internal/game/*.go: the same lock-snapshot-unlock-then-notify
// shape, the same log-at-every-branch verbosity (rendered here as
// structured zap fields), but driving Room/Game/Round state instead of a
// drawing lobby.
//
// Where the teacher kept one *internal.Room resident in a package-level
// map guarded by a single sync.RWMutex, this service reloads the Room from
// internal/store on every command and guards the load-mutate-save sequence
// with a per-room in-process mutex (held in a map on the Service, keyed by
// room id) — the
// same "single logical critical section per room" spec §5 calls for, just
// backed by Redis instead of a resident map so a crash doesn't lose state.
package game

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/cmacnamara/prompt-guessr/internal"
	"github.com/cmacnamara/prompt-guessr/internal/imagegen"
)

// Store is the subset of internal/store.Store the service depends on,
// declared here so tests can substitute a fake without importing Redis.
type Store interface {
	Create(ctx context.Context, room *internal.Room) error
	GetById(ctx context.Context, id string) (*internal.Room, error)
	GetByCode(ctx context.Context, code string) (*internal.Room, error)
	Update(ctx context.Context, room *internal.Room) error
	Delete(ctx context.Context, id, code string) error
	IsCodeTaken(ctx context.Context, code string) (bool, error)
}

// Notifier is implemented by internal/gateway (C7). The service calls it
// after releasing a room's lock, never while holding it, mirroring the
// teacher's habit of broadcasting only after room.Mu.Unlock().
type Notifier interface {
	BroadcastRoomUpdate(room *internal.Room)
	BroadcastPlayerJoined(room *internal.Room, player *internal.Player)
	BroadcastPlayerLeft(room *internal.Room, playerId, displayName, reason, newHostId string)
	BroadcastPlayerReadyChanged(room *internal.Room, playerId string, isReady bool)
	BroadcastGameStarted(room *internal.Room)
	BroadcastPhaseTransition(room *internal.Room, phase internal.RoundPhase)
	BroadcastImageProgress(room *internal.Room)
	NotifyPromptRejected(room *internal.Room, playerId, reason string)
	NotifyError(playerId string, err error, context string)
}

// Service wires the store, image generator, and room locking together.
type Service struct {
	store    Store
	images   *imagegen.Port
	notifier Notifier
	logger   *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	timers *timerRegistry
}

// NewService builds a Service. SetNotifier must be called before any
// command is processed — internal/gateway constructs itself from a
// *Service, so the two are wired together by cmd/server after both exist.
func NewService(store Store, images *imagegen.Port, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		images: images,
		logger: logger.Named("game"),
		locks:  make(map[string]*sync.Mutex),
		timers: newTimerRegistry(),
	}
}

// SetNotifier installs the gateway's broadcast implementation.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// GetRoom is a plain read-through to the store, used by internal/gateway to
// validate a room:join binding before accepting further commands on a
// session.
func (s *Service) GetRoom(ctx context.Context, roomId string) (*internal.Room, error) {
	return s.store.GetById(ctx, roomId)
}

// GetRoomByCode is the read-through internal/httpapi's GET /rooms/{code}
// bootstraps from.
func (s *Service) GetRoomByCode(ctx context.Context, code string) (*internal.Room, error) {
	return s.store.GetByCode(ctx, code)
}

func (s *Service) roomLock(roomId string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[roomId]
	if !ok {
		l = &sync.Mutex{}
		s.locks[roomId] = l
	}
	return l
}

// dropLock removes a room's lock entry once the room is deleted, so the
// locks map doesn't grow unbounded across a long-lived process.
func (s *Service) dropLock(roomId string) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	delete(s.locks, roomId)
}

// withRoom loads a Room, runs fn with the room's critical section held,
// and — if fn returns true (changed) and no error — persists the result.
// fn must not block on network I/O other than what the caller already
// accounts for; generator calls happen outside this helper (see
// orchestrator.go) because they run seconds-scale and must not hold the
// room lock per spec §5's suspension-point list.
func (s *Service) withRoom(ctx context.Context, roomId string, fn func(room *internal.Room) (changed bool, err error)) (*internal.Room, error) {
	lock := s.roomLock(roomId)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.store.GetById(ctx, roomId)
	if err != nil {
		return nil, err
	}

	// changed is checked before err: some operations (e.g. ResubmitPrompt's
	// content-policy outcome) mutate the room to record a terminal failure
	// state and still need that recorded even though they also return an
	// error to the caller describing what happened.
	changed, err := fn(room)
	if changed {
		if uerr := s.store.Update(ctx, room); uerr != nil {
			return nil, uerr
		}
	}
	if err != nil {
		return room, err
	}
	return room, nil
}

func newGameError(op string, kind internal.ErrorKind, msg string) error {
	return internal.NewGameError(op, kind, msg)
}
