package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cmacnamara/prompt-guessr/internal"
	"github.com/cmacnamara/prompt-guessr/internal/game"
)

// Service is the subset of *game.Service the gateway dispatches onto,
// declared here so the read loop's switch statement is the single place
// that couples command strings to service methods. It names game.Notifier
// directly (rather than restating its method set) so SetNotifier's
// parameter type identity matches *game.Service's real method exactly.
type Service interface {
	SubmitPrompt(ctx context.Context, roomId, playerId, text string) (*internal.Room, bool, error)
	ResubmitPrompt(ctx context.Context, roomId, playerId, text string) (*internal.Room, bool, error)
	SelectImage(ctx context.Context, roomId, playerId, imageId string) (*internal.Room, bool, error)
	SubmitGuess(ctx context.Context, roomId, playerId, imageId, guessText string) (*internal.Room, bool, error)
	NavigateResult(ctx context.Context, roomId, direction string) (*internal.Room, error)
	CompleteReveal(ctx context.Context, roomId string) (*internal.Room, error)
	StartNextRound(ctx context.Context, roomId, playerId string) (*internal.Room, error)
	SetReady(ctx context.Context, roomId, playerId string, isReady bool) (*internal.Room, error)
	StartGame(ctx context.Context, roomId, playerId string) (*internal.Room, error)
	UpdateConnection(ctx context.Context, roomId, playerId string, isConnected bool) (*internal.Room, error)
	RemovePlayer(ctx context.Context, roomId, playerId string) (*internal.Room, string, error)
	TriggerImageGeneration(ctx context.Context, roomId string, roundNumber int)
	GetRoom(ctx context.Context, roomId string) (*internal.Room, error)
	SetNotifier(n game.Notifier)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Gateway owns the session registry and dispatches client commands onto a
// Service, the generalization of the teacher's package-level websocket
// handler functions into a value with injected dependencies.
type Gateway struct {
	service  Service
	registry *Registry
	logger   *zap.Logger
}

// New wires a Gateway and installs its Notifier on service — this is the
// one place internal/game and internal/gateway's import-cycle-avoiding
// split (service.Notifier interface, gateway.notifier implementation) gets
// tied together.
func New(service Service, logger *zap.Logger) *Gateway {
	g := &Gateway{
		service:  service,
		registry: newRegistry(logger.Named("gateway")),
		logger:   logger.Named("gateway"),
	}
	service.SetNotifier(newNotifier(g.registry))
	return g
}

// ServeHTTP upgrades the request to a websocket and starts the read loop.
// The client sends room:join as its first message to bind the connection;
// no other command is accepted before that.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	sess := &Session{conn: conn}
	go g.readLoop(sess)
}

func (g *Gateway) readLoop(sess *Session) {
	defer func() {
		g.handleDisconnect(sess)
		sess.close()
	}()

	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			g.logger.Debug("read loop ending", zap.Error(err))
			return
		}

		var envelope internal.Message[json.RawMessage]
		if err := json.Unmarshal(raw, &envelope); err != nil {
			g.logger.Warn("malformed message", zap.Error(err))
			continue
		}

		g.dispatch(sess, envelope.Type, envelope.Data)
	}
}

func (g *Gateway) handleDisconnect(sess *Session) {
	g.registry.unbind(sess)
	if sess.roomId == "" || sess.playerId == "" {
		return
	}
	ctx := context.Background()
	room, err := g.service.UpdateConnection(ctx, sess.roomId, sess.playerId, false)
	if err != nil {
		g.logger.Warn("failed to mark disconnect", zap.Error(err))
		return
	}
	player, ok := room.Players[sess.playerId]
	displayName := ""
	if ok {
		displayName = player.DisplayName
	}
	g.registry.broadcast(room.Id, internal.Message[internal.PlayerLeftData]{
		Type: internal.EventPlayerLeft,
		Data: internal.PlayerLeftData{
			PlayerId:    sess.playerId,
			DisplayName: displayName,
			Reason:      "disconnect",
			PlayerCount: room.GetPlayerCount(),
		},
	})
	g.registry.broadcast(room.Id, internal.Message[internal.RoomUpdateData]{
		Type: internal.EventRoomUpdate,
		Data: internal.RoomUpdateData{Room: room},
	})
}

func (g *Gateway) dispatch(sess *Session, cmdType string, raw json.RawMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cmdType != internal.CmdRoomJoin && sess.roomId == "" {
		g.sendError(sess, internal.ErrPlayerNotInRoom, "session has not joined a room", cmdType)
		return
	}

	// Host-only commands are gated here before dispatch; the service
	// re-validates the same precondition.
	if cmdType == internal.CmdGameStart || cmdType == internal.CmdNextRound {
		room, err := g.service.GetRoom(ctx, sess.roomId)
		if err != nil {
			g.sendError(sess, kindOf(err), err.Error(), cmdType)
			return
		}
		if room.HostId != sess.playerId {
			g.sendError(sess, internal.ErrNotHost, "only the host may do this", cmdType)
			return
		}
	}

	switch cmdType {
	case internal.CmdRoomJoin:
		var data internal.RoomJoinData
		if !g.decode(sess, cmdType, raw, &data) {
			return
		}
		room, err := g.service.GetRoom(ctx, data.RoomId)
		if err != nil {
			g.sendError(sess, kindOf(err), err.Error(), cmdType)
			return
		}
		if _, ok := room.Players[data.PlayerId]; !ok {
			g.sendError(sess, internal.ErrPlayerNotInRoom, "player not in room", cmdType)
			return
		}
		g.registry.bind(sess, data.RoomId, data.PlayerId)
		room, err = g.service.UpdateConnection(ctx, data.RoomId, data.PlayerId, true)
		if err != nil {
			g.sendError(sess, kindOf(err), err.Error(), cmdType)
			return
		}
		if err := sess.SafeWriteJSON(internal.Message[internal.RoomUpdateData]{
			Type: internal.EventRoomUpdate,
			Data: internal.RoomUpdateData{Room: room},
		}); err != nil {
			g.logger.Warn("failed to deliver initial room snapshot", zap.Error(err))
		}

	case internal.CmdPlayerReady:
		var data internal.PlayerReadyData
		if !g.decode(sess, cmdType, raw, &data) {
			return
		}
		if _, err := g.service.SetReady(ctx, sess.roomId, sess.playerId, data.IsReady); err != nil {
			g.sendError(sess, kindOf(err), err.Error(), cmdType)
		}

	case internal.CmdGameStart:
		room, err := g.service.StartGame(ctx, sess.roomId, sess.playerId)
		if err != nil {
			g.sendError(sess, kindOf(err), err.Error(), cmdType)
			return
		}
		_ = room

	case internal.CmdSubmitPrompt:
		var data internal.SubmitPromptData
		if !g.decode(sess, cmdType, raw, &data) {
			return
		}
		room, transitioned, err := g.service.SubmitPrompt(ctx, sess.roomId, sess.playerId, data.Text)
		if err != nil {
			g.sendError(sess, kindOf(err), err.Error(), cmdType)
			return
		}
		if transitioned {
			round := room.CurrentRoundData()
			go g.service.TriggerImageGeneration(context.Background(), sess.roomId, round.Number)
		}

	case internal.CmdResubmitPrompt:
		var data internal.SubmitPromptData
		if !g.decode(sess, cmdType, raw, &data) {
			return
		}
		if _, _, err := g.service.ResubmitPrompt(ctx, sess.roomId, sess.playerId, data.Text); err != nil {
			g.sendError(sess, kindOf(err), err.Error(), cmdType)
		}

	case internal.CmdSelectImage:
		var data internal.SelectImageData
		if !g.decode(sess, cmdType, raw, &data) {
			return
		}
		if _, _, err := g.service.SelectImage(ctx, sess.roomId, sess.playerId, data.ImageId); err != nil {
			g.sendError(sess, kindOf(err), err.Error(), cmdType)
		}

	case internal.CmdSubmitGuess:
		var data internal.SubmitGuessData
		if !g.decode(sess, cmdType, raw, &data) {
			return
		}
		if _, _, err := g.service.SubmitGuess(ctx, sess.roomId, sess.playerId, data.ImageId, data.GuessText); err != nil {
			g.sendError(sess, kindOf(err), err.Error(), cmdType)
		}

	case internal.CmdNavigateResult:
		var data internal.NavigateResultData
		if !g.decode(sess, cmdType, raw, &data) {
			return
		}
		if _, err := g.service.NavigateResult(ctx, sess.roomId, data.Direction); err != nil {
			g.sendError(sess, kindOf(err), err.Error(), cmdType)
		}

	case internal.CmdCompleteReveal:
		if _, err := g.service.CompleteReveal(ctx, sess.roomId); err != nil {
			g.sendError(sess, kindOf(err), err.Error(), cmdType)
		}

	case internal.CmdNextRound:
		if _, err := g.service.StartNextRound(ctx, sess.roomId, sess.playerId); err != nil {
			g.sendError(sess, kindOf(err), err.Error(), cmdType)
		}

	default:
		g.logger.Warn("unknown command type", zap.String("type", cmdType))
	}
}

func (g *Gateway) decode(sess *Session, cmdType string, raw json.RawMessage, out any) bool {
	if err := json.Unmarshal(raw, out); err != nil {
		g.sendError(sess, internal.ErrValidation, "malformed payload", cmdType)
		return false
	}
	return true
}

func (g *Gateway) sendError(sess *Session, kind internal.ErrorKind, message, context string) {
	if err := sess.SafeWriteJSON(errorMessage(kind, message, context)); err != nil {
		g.logger.Warn("failed to deliver error event", zap.Error(err))
	}
}

func kindOf(err error) internal.ErrorKind {
	if gameErr, ok := internal.AsGameError(err); ok {
		return gameErr.Kind
	}
	return internal.ErrStoreUnavailable
}
