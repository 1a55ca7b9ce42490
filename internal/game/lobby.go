package game

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cmacnamara/prompt-guessr/internal"
	"github.com/cmacnamara/prompt-guessr/internal/roomcode"
)

// CreateRoom generates a unique code via internal/roomcode, makes the
// caller the sole player (host, not ready, connected), and persists the
// new lobby Room. Mirrors the teacher's getOrCreateRoom, but the code
// comes from the spec's 32-symbol alphabet instead of an 8-char random id,
// and the room is written straight to the store instead of a package-level
// map.
func (s *Service) CreateRoom(ctx context.Context, displayName string, settings internal.GameSettings) (*internal.Room, string, error) {
	displayName = strings.TrimSpace(displayName)
	log := s.logger.With(zap.String("op", "CreateRoom"))

	code, err := roomcode.GenerateUnique(func(candidate string) (bool, error) {
		return s.store.IsCodeTaken(ctx, candidate)
	})
	if err != nil {
		log.Error("code generation exhausted", zap.Error(err))
		return nil, "", newGameError("createRoom", internal.ErrCodeExhaustion, err.Error())
	}

	now := time.Now()
	playerId := newId()
	player := &internal.Player{
		Id:          playerId,
		DisplayName: displayName,
		IsHost:      true,
		IsReady:     false,
		IsConnected: true,
		JoinedAt:    now,
		LastSeenAt:  now,
	}

	room := &internal.Room{
		Id:          newId(),
		Code:        code,
		CreatedAt:   now,
		CreatedBy:   playerId,
		Status:      internal.PhaseLobby,
		HostId:      playerId,
		Players:     map[string]*internal.Player{playerId: player},
		PlayerOrder: []string{playerId},
		MaxPlayers:  internal.MaxPlayersPerRoom,
		Settings:    internal.NewGameSettings(settings),
	}

	if err := s.store.Create(ctx, room); err != nil {
		log.Error("store create failed", zap.Error(err))
		return nil, "", err
	}

	log.Info("room created", zap.String("room_id", room.Id), zap.String("code", code), zap.String("player_id", playerId))
	return room, playerId, nil
}

// JoinRoom adds a new, non-host, not-ready, connected player to a lobby
// Room looked up by code. Preconditions per spec §4.5: status = lobby,
// players.size < maxPlayers.
func (s *Service) JoinRoom(ctx context.Context, code, displayName string) (*internal.Room, string, error) {
	displayName = strings.TrimSpace(displayName)
	code = strings.ToUpper(strings.TrimSpace(code))
	log := s.logger.With(zap.String("op", "JoinRoom"), zap.String("code", code))

	lookup, err := s.store.GetByCode(ctx, code)
	if err != nil {
		log.Warn("room not found", zap.Error(err))
		return nil, "", err
	}

	var playerId string
	room, err := s.withRoom(ctx, lookup.Id, func(room *internal.Room) (bool, error) {
		if room.Status != internal.PhaseLobby {
			return false, newGameError("joinRoom", internal.ErrGameInProgress, "room is not in lobby")
		}
		if len(room.Players) >= room.MaxPlayers {
			return false, newGameError("joinRoom", internal.ErrRoomFull, "room is full")
		}

		now := time.Now()
		playerId = newId()
		player := &internal.Player{
			Id:          playerId,
			DisplayName: displayName,
			IsHost:      false,
			IsReady:     false,
			IsConnected: true,
			JoinedAt:    now,
			LastSeenAt:  now,
		}
		room.Players[playerId] = player
		room.PlayerOrder = append(room.PlayerOrder, playerId)
		return true, nil
	})
	if err != nil {
		log.Warn("join rejected", zap.Error(err))
		return nil, "", err
	}

	log.Info("player joined", zap.String("room_id", room.Id), zap.String("player_id", playerId))
	if s.notifier != nil {
		s.notifier.BroadcastPlayerJoined(room, room.Players[playerId])
	}
	return room, playerId, nil
}

// SetReady toggles a player's ready flag. Per Open Question #2's decision,
// toggling outside the lobby is rejected (mirrors the teacher's
// HandlePlayerReady early-return when room.Phase != PhaseLobby).
func (s *Service) SetReady(ctx context.Context, roomId, playerId string, isReady bool) (*internal.Room, error) {
	log := s.logger.With(zap.String("op", "SetReady"), zap.String("room_id", roomId), zap.String("player_id", playerId))

	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		if room.Status != internal.PhaseLobby {
			return false, newGameError("setReady", internal.ErrInvalidPhase, "ready state can only change in lobby")
		}
		player, ok := room.Players[playerId]
		if !ok {
			return false, newGameError("setReady", internal.ErrPlayerNotInRoom, "player not in room")
		}
		if player.IsReady == isReady {
			return false, nil
		}
		player.IsReady = isReady
		return true, nil
	})
	if err != nil {
		log.Debug("set ready rejected", zap.Error(err))
		return nil, err
	}

	log.Info("ready state changed", zap.Bool("is_ready", isReady))
	if s.notifier != nil {
		s.notifier.BroadcastPlayerReadyChanged(room, playerId, isReady)
	}
	return room, nil
}

// RemovePlayer removes a player from the roster. If the room empties, it is
// deleted from the store. If the removed player was host, the player with
// the earliest JoinedAt is promoted; the new host id (or "") is returned
// alongside the (possibly nil, if deleted) Room.
func (s *Service) RemovePlayer(ctx context.Context, roomId, playerId string) (*internal.Room, string, error) {
	log := s.logger.With(zap.String("op", "RemovePlayer"), zap.String("room_id", roomId), zap.String("player_id", playerId))

	lock := s.roomLock(roomId)
	lock.Lock()

	room, err := s.store.GetById(ctx, roomId)
	if err != nil {
		lock.Unlock()
		return nil, "", err
	}

	player, ok := room.Players[playerId]
	if !ok {
		lock.Unlock()
		return room, "", newGameError("removePlayer", internal.ErrPlayerNotInRoom, "player not in room")
	}
	displayName := player.DisplayName

	newHostId := room.RemovePlayer(playerId)
	emptied := len(room.Players) == 0

	if emptied {
		err = s.store.Delete(ctx, room.Id, room.Code)
	} else {
		err = s.store.Update(ctx, room)
	}
	lock.Unlock()

	if err != nil {
		log.Error("persist after remove failed", zap.Error(err))
		return nil, "", err
	}

	if emptied {
		s.cancelPhaseTimer(roomId)
		s.dropLock(roomId)
		log.Info("room emptied and deleted")
		return nil, "", nil
	}

	log.Info("player removed", zap.String("new_host_id", newHostId))
	if s.notifier != nil {
		s.notifier.BroadcastPlayerLeft(room, playerId, displayName, "left", newHostId)
	}
	return room, newHostId, nil
}

// UpdateConnection records a player's liveness without removing their
// seat, per spec §4.5.
func (s *Service) UpdateConnection(ctx context.Context, roomId, playerId string, isConnected bool) (*internal.Room, error) {
	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		player, ok := room.Players[playerId]
		if !ok {
			return false, newGameError("updateConnection", internal.ErrPlayerNotInRoom, "player not in room")
		}
		player.IsConnected = isConnected
		player.LastSeenAt = time.Now()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// StartGame transitions a lobby Room into its first round. Preconditions
// per spec §4.5: caller is host (checked by internal/gateway before
// dispatch; re-validated here), status = lobby, players.size >= 2, every
// player ready.
func (s *Service) StartGame(ctx context.Context, roomId, playerId string) (*internal.Room, error) {
	log := s.logger.With(zap.String("op", "StartGame"), zap.String("room_id", roomId))

	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		if room.HostId != playerId {
			return false, newGameError("startGame", internal.ErrNotHost, "only the host may start the game")
		}
		if room.Status != internal.PhaseLobby {
			return false, newGameError("startGame", internal.ErrInvalidPhase, "room is not in lobby")
		}
		if !room.CanStartGame() {
			return false, newGameError("startGame", internal.ErrNotEnoughPlayers, "need at least 2 players")
		}
		if !room.AreAllPlayersReady() {
			return false, newGameError("startGame", internal.ErrPlayersNotReady, "not all players are ready")
		}

		leaderboard := internal.Leaderboard{Scores: make(map[string]*internal.ScoreEntry, len(room.Players))}
		for _, p := range room.Players {
			leaderboard.Scores[p.Id] = &internal.ScoreEntry{PlayerId: p.Id, DisplayName: p.DisplayName}
		}

		round := newRound(1)
		game := &internal.Game{
			Id:           newId(),
			RoomId:       room.Id,
			Status:       internal.RoundPromptSubmit,
			Settings:     room.Settings,
			CurrentRound: 1,
			Rounds:       []*internal.Round{round},
			Leaderboard:  leaderboard,
			CreatedAt:    time.Now(),
		}
		started := time.Now()
		game.StartedAt = &started

		room.Status = internal.PhasePlaying
		room.Game = game
		return true, nil
	})
	if err != nil {
		log.Warn("start game rejected", zap.Error(err))
		return nil, err
	}

	log.Info("game started")
	s.startPhaseTimer(roomId, room.Settings.PromptTimeLimit, func() { s.onPromptSubmitTimeout(roomId) })
	if s.notifier != nil {
		s.notifier.BroadcastGameStarted(room)
	}
	return room, nil
}

func newRound(number int) *internal.Round {
	return &internal.Round{
		Id:          newId(),
		Number:      number,
		Status:      internal.RoundPromptSubmit,
		StartedAt:   time.Now(),
		Prompts:     make(map[string]*internal.PromptSubmission),
		Selections:  make(map[string]internal.ImageSelection),
		Guesses:     make(map[string]map[string]*internal.Guess),
		BonusPoints: make(map[string]int),
		Scores:      make(map[string]int),
	}
}
