// Package gateway is the Session Gateway (C7): the bidirectional channel
// between a connected client and the room/game service. It generalizes the
// teacher's internal/game/websocket.go (the upgrade handshake, the
// json.RawMessage-typed read loop switching on Message.Type) and draw.go's
// SafeBroadcastToRoom/SafeBroadcastToRoomExcept helpers, and gives the
// teacher's never-defined player.SafeWriteJSON a real implementation: a
// per-connection write mutex, since spec §5 forbids overlapping writes on
// the same socket.
package gateway

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cmacnamara/prompt-guessr/internal"
)

// Session is one connected client's live socket plus the (roomId, playerId)
// it is bound to after room:join. It is intentionally kept out of
// internal.Player (which is persisted) — the live *websocket.Conn has no
// business surviving a KV round-trip.
type Session struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	roomId   string
	playerId string
}

// SafeWriteJSON serializes writes to the underlying connection one at a
// time, per spec §5's "the gateway must never send overlapping messages on
// the same connection".
func (s *Session) SafeWriteJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *Session) close() error {
	return s.conn.Close()
}

// Registry tracks every bound Session, indexed both by room id (for
// fan-out) and by player id (for targeted sends).
type Registry struct {
	mu       sync.RWMutex
	byRoom   map[string]map[*Session]struct{}
	byPlayer map[string]*Session
	logger   *zap.Logger
}

func newRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		byRoom:   make(map[string]map[*Session]struct{}),
		byPlayer: make(map[string]*Session),
		logger:   logger,
	}
}

func (r *Registry) bind(sess *Session, roomId, playerId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess.roomId != "" {
		if peers, ok := r.byRoom[sess.roomId]; ok {
			delete(peers, sess)
		}
	}
	if sess.playerId != "" {
		delete(r.byPlayer, sess.playerId)
	}
	sess.roomId = roomId
	sess.playerId = playerId
	if r.byRoom[roomId] == nil {
		r.byRoom[roomId] = make(map[*Session]struct{})
	}
	r.byRoom[roomId][sess] = struct{}{}
	r.byPlayer[playerId] = sess
}

func (r *Registry) unbind(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if peers, ok := r.byRoom[sess.roomId]; ok {
		delete(peers, sess)
		if len(peers) == 0 {
			delete(r.byRoom, sess.roomId)
		}
	}
	if r.byPlayer[sess.playerId] == sess {
		delete(r.byPlayer, sess.playerId)
	}
}

// snapshot returns the sessions currently bound to roomId, taken under the
// registry lock and then released — broadcasts happen outside this lock,
// mirroring the teacher's lock-snapshot-unlock-then-send discipline.
func (r *Registry) snapshot(roomId string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peers := r.byRoom[roomId]
	out := make([]*Session, 0, len(peers))
	for sess := range peers {
		out = append(out, sess)
	}
	return out
}

func (r *Registry) findByPlayer(roomId, playerId string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for sess := range r.byRoom[roomId] {
		if sess.playerId == playerId {
			return sess
		}
	}
	return nil
}

// broadcast fans a message out to every session in roomId, logging (not
// failing) individual send errors so one dead connection doesn't stop
// delivery to the rest of the room.
func (r *Registry) broadcast(roomId string, msg any) {
	for _, sess := range r.snapshot(roomId) {
		if err := sess.SafeWriteJSON(msg); err != nil {
			r.logger.Warn("broadcast send failed", zap.String("room_id", roomId), zap.Error(err))
		}
	}
}

func (r *Registry) unicast(roomId, playerId string, msg any) {
	sess := r.findByPlayer(roomId, playerId)
	if sess == nil {
		return
	}
	if err := sess.SafeWriteJSON(msg); err != nil {
		r.logger.Warn("unicast send failed", zap.String("room_id", roomId), zap.String("player_id", playerId), zap.Error(err))
	}
}

// sendToPlayer addresses a session by playerId alone, without a room id —
// used for NotifyError, which carries none. Only sessions bound by
// room:join are reachable this way.
func (r *Registry) sendToPlayer(playerId string, msg any) {
	r.mu.RLock()
	sess := r.byPlayer[playerId]
	r.mu.RUnlock()
	if sess == nil {
		return
	}
	if err := sess.SafeWriteJSON(msg); err != nil {
		r.logger.Warn("send failed", zap.String("player_id", playerId), zap.Error(err))
	}
}

func errorMessage(kind internal.ErrorKind, message, context string) internal.Message[internal.ErrorData] {
	return internal.Message[internal.ErrorData]{
		Type: internal.EventError,
		Data: internal.ErrorData{Code: string(kind), Message: message, Context: context},
	}
}
