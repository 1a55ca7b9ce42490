// Package store is the KV Store Adapter: it serializes/deserializes Room
// trees and persists them to Redis with a TTL, keeping a secondary index
// from room code to room id and a set of live room ids.
//
// Grounded on the quiz-realtime-service room reference (its
// logger.With(zap.String("room_id", ...)) convention, its saveState/
// generatePIN call shape) generalized from that file's unretrieved
// store.RedisStore into a concrete adapter using redis/go-redis/v9, the
// library the rest of the example pack depends on for this concern.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cmacnamara/prompt-guessr/internal"
)

const (
	roomKeyPrefix     = "room:"
	roomCodeKeyPrefix = "room:code:"
	activeRoomsKey    = "active_rooms"
)

func roomKey(id string) string     { return roomKeyPrefix + id }
func roomCodeKey(code string) string { return roomCodeKeyPrefix + code }

// Store is the Redis-backed adapter. It holds no room-specific state of its
// own; every call is a self-contained round trip.
type Store struct {
	client *redis.Client
	logger *zap.Logger
}

// New builds a Store against an already-configured redis.Client.
func New(client *redis.Client, logger *zap.Logger) *Store {
	return &Store{client: client, logger: logger.Named("store")}
}

// Ping reports whether the backing Redis instance is reachable, for the
// /health and /ready HTTP probes.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return internal.NewGameError("ping", internal.ErrStoreUnavailable, err.Error())
	}
	return nil
}

// Create persists a brand new Room: the room key, its code index, and its
// membership in the active-rooms set, all under RoomTTL. Fails with
// ErrStoreUnavailable on any Redis error.
func (s *Store) Create(ctx context.Context, room *internal.Room) error {
	payload, err := encodeRoom(room)
	if err != nil {
		return internal.NewGameError("create", internal.ErrStoreUnavailable, err.Error())
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, roomKey(room.Id), payload, internal.RoomTTL)
	pipe.Set(ctx, roomCodeKey(room.Code), room.Id, internal.RoomTTL)
	pipe.SAdd(ctx, activeRoomsKey, room.Id)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("create room failed", zap.String("room_id", room.Id), zap.Error(err))
		return internal.NewGameError("create", internal.ErrStoreUnavailable, err.Error())
	}
	return nil
}

// GetById fetches and deserializes a Room by its id.
func (s *Store) GetById(ctx context.Context, id string) (*internal.Room, error) {
	raw, err := s.client.Get(ctx, roomKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, internal.NewGameError("getById", internal.ErrRoomNotFound, "room not found: "+id)
	}
	if err != nil {
		return nil, internal.NewGameError("getById", internal.ErrStoreUnavailable, err.Error())
	}
	room, err := decodeRoom([]byte(raw))
	if err != nil {
		return nil, internal.NewGameError("getById", internal.ErrStoreUnavailable, err.Error())
	}
	return room, nil
}

// GetByCode resolves a room code through its secondary index, then fetches
// the Room by id.
func (s *Store) GetByCode(ctx context.Context, code string) (*internal.Room, error) {
	id, err := s.client.Get(ctx, roomCodeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, internal.NewGameError("getByCode", internal.ErrRoomNotFound, "room not found: "+code)
	}
	if err != nil {
		return nil, internal.NewGameError("getByCode", internal.ErrStoreUnavailable, err.Error())
	}
	return s.GetById(ctx, id)
}

// Update overwrites an existing Room's serialized form, preserving its
// current TTL (KEEPTTL-equivalent) rather than resetting the 24h window
// every write.
func (s *Store) Update(ctx context.Context, room *internal.Room) error {
	payload, err := encodeRoom(room)
	if err != nil {
		return internal.NewGameError("update", internal.ErrStoreUnavailable, err.Error())
	}
	if err := s.client.Set(ctx, roomKey(room.Id), payload, redis.KeepTTL).Err(); err != nil {
		s.logger.Error("update room failed", zap.String("room_id", room.Id), zap.Error(err))
		return internal.NewGameError("update", internal.ErrStoreUnavailable, err.Error())
	}
	return nil
}

// Delete removes all three keys backing a Room: the room itself, its code
// index, and its membership in the active-rooms set.
func (s *Store) Delete(ctx context.Context, id, code string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, roomKey(id))
	pipe.Del(ctx, roomCodeKey(code))
	pipe.SRem(ctx, activeRoomsKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("delete room failed", zap.String("room_id", id), zap.Error(err))
		return internal.NewGameError("delete", internal.ErrStoreUnavailable, err.Error())
	}
	return nil
}

// IsCodeTaken reports whether a room code is currently in use.
func (s *Store) IsCodeTaken(ctx context.Context, code string) (bool, error) {
	n, err := s.client.Exists(ctx, roomCodeKey(code)).Result()
	if err != nil {
		return false, internal.NewGameError("isCodeTaken", internal.ErrStoreUnavailable, err.Error())
	}
	return n > 0, nil
}

// wireRoom mirrors internal.Room but serializes Round.Guesses as an ordered
// sequence of pairs rather than Go's unordered map, per the serialization
// contract in spec §4.1.
type wireRoom struct {
	*internal.Room
	Game *wireGame `json:"game,omitempty"`
}

type wireGame struct {
	*internal.Game
	Rounds []*wireRound `json:"rounds"`
}

type wireRound struct {
	*internal.Round
	Guesses []guessPair `json:"guesses"`
}

type guessPair struct {
	ImageId string
	Guesses map[string]*internal.Guess
}

// MarshalJSON renders a guessPair as a 2-element array [imageId, guesses],
// the shape spec §4.1/§6 names explicitly.
func (g guessPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{g.ImageId, g.Guesses})
}

func (g *guessPair) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if err := json.Unmarshal(pair[0], &g.ImageId); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &g.Guesses)
}

func encodeRoom(room *internal.Room) ([]byte, error) {
	w := wireRoom{Room: room}
	if room.Game != nil {
		wg := &wireGame{Game: room.Game}
		for _, round := range room.Game.Rounds {
			wg.Rounds = append(wg.Rounds, encodeRound(round))
		}
		w.Game = wg
	}
	return json.Marshal(w)
}

func encodeRound(round *internal.Round) *wireRound {
	wr := &wireRound{Round: round}
	// RevealOrder fixes iteration order so encoding is deterministic
	// regardless of Go's randomized map iteration.
	for _, imageId := range round.RevealOrder {
		guesses, ok := round.Guesses[imageId]
		if !ok {
			continue
		}
		wr.Guesses = append(wr.Guesses, guessPair{ImageId: imageId, Guesses: guesses})
	}
	// Any image not yet in RevealOrder (shouldn't happen post-selection,
	// but keeps encode total rather than lossy) is appended afterward.
	for imageId, guesses := range round.Guesses {
		found := false
		for _, g := range wr.Guesses {
			if g.ImageId == imageId {
				found = true
				break
			}
		}
		if !found {
			wr.Guesses = append(wr.Guesses, guessPair{ImageId: imageId, Guesses: guesses})
		}
	}
	return wr
}

func decodeRoom(data []byte) (*internal.Room, error) {
	var w wireRoom
	w.Room = &internal.Room{}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	room := w.Room
	if w.Game != nil {
		game := w.Game.Game
		game.Rounds = make([]*internal.Round, 0, len(w.Game.Rounds))
		for _, wr := range w.Game.Rounds {
			round := wr.Round
			round.Guesses = make(map[string]map[string]*internal.Guess, len(wr.Guesses))
			for _, pair := range wr.Guesses {
				round.Guesses[pair.ImageId] = pair.Guesses
			}
			game.Rounds = append(game.Rounds, round)
		}
		room.Game = game
	}
	return room, nil
}

// NewClient builds a redis.Client from a connection address in the shape
// of the REDIS_URL-equivalent config value (host:port, or a full
// redis://... URL).
func NewClient(addr string) (*redis.Client, error) {
	if opts, err := redis.ParseURL(addr); err == nil {
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

// WaitReady blocks until Redis answers a PING or the context expires,
// useful at process startup so /ready doesn't flap while the connection
// warms up.
func WaitReady(ctx context.Context, client *redis.Client, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := client.Ping(ctx).Err(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
