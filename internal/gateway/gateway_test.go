package gateway

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cmacnamara/prompt-guessr/internal"
	"github.com/cmacnamara/prompt-guessr/internal/game"
)

// stubService is a minimal gateway.Service double: just enough to drive the
// read loop's dispatch switch without internal/game or a real store.
type stubService struct {
	room     *internal.Room
	notifier game.Notifier

	setReadyErr error
	joinedRoom  string
	joinedPlayer string
}

func (s *stubService) SubmitPrompt(ctx context.Context, roomId, playerId, text string) (*internal.Room, bool, error) {
	return s.room, false, nil
}
func (s *stubService) ResubmitPrompt(ctx context.Context, roomId, playerId, text string) (*internal.Room, bool, error) {
	return s.room, false, nil
}
func (s *stubService) SelectImage(ctx context.Context, roomId, playerId, imageId string) (*internal.Room, bool, error) {
	return s.room, false, nil
}
func (s *stubService) SubmitGuess(ctx context.Context, roomId, playerId, imageId, guessText string) (*internal.Room, bool, error) {
	return s.room, false, nil
}
func (s *stubService) NavigateResult(ctx context.Context, roomId, direction string) (*internal.Room, error) {
	return s.room, nil
}
func (s *stubService) CompleteReveal(ctx context.Context, roomId string) (*internal.Room, error) {
	return s.room, nil
}
func (s *stubService) StartNextRound(ctx context.Context, roomId, playerId string) (*internal.Room, error) {
	return s.room, nil
}
func (s *stubService) SetReady(ctx context.Context, roomId, playerId string, isReady bool) (*internal.Room, error) {
	if s.setReadyErr != nil {
		return nil, s.setReadyErr
	}
	return s.room, nil
}
func (s *stubService) StartGame(ctx context.Context, roomId, playerId string) (*internal.Room, error) {
	return s.room, nil
}
func (s *stubService) UpdateConnection(ctx context.Context, roomId, playerId string, isConnected bool) (*internal.Room, error) {
	return s.room, nil
}
func (s *stubService) RemovePlayer(ctx context.Context, roomId, playerId string) (*internal.Room, string, error) {
	return s.room, "", nil
}
func (s *stubService) TriggerImageGeneration(ctx context.Context, roomId string, roundNumber int) {}
func (s *stubService) GetRoom(ctx context.Context, roomId string) (*internal.Room, error) {
	s.joinedRoom = roomId
	return s.room, nil
}
func (s *stubService) SetNotifier(n game.Notifier) { s.notifier = n }

func newTestRoom(hostId string) *internal.Room {
	return &internal.Room{
		Id:      "room-1",
		Code:    "ABCD",
		Status:  internal.PhaseLobby,
		HostId:  hostId,
		Players: map[string]*internal.Player{hostId: {Id: hostId, DisplayName: "Alice", IsHost: true}},
		PlayerOrder: []string{hostId},
		MaxPlayers:  internal.MaxPlayersPerRoom,
	}
}

func dialServer(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRoomJoinBindsSessionAndSendsSnapshot(t *testing.T) {
	room := newTestRoom("host-1")
	svc := &stubService{room: room}
	gw := New(svc, zap.NewNop())
	server := httptest.NewServer(gw)
	defer server.Close()

	conn := dialServer(t, server)
	require.NoError(t, conn.WriteJSON(internal.Message[internal.RoomJoinData]{
		Type: internal.CmdRoomJoin,
		Data: internal.RoomJoinData{RoomId: "room-1", PlayerId: "host-1"},
	}))

	var envelope internal.Message[internal.RoomUpdateData]
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&envelope))
	assert.Equal(t, internal.EventRoomUpdate, envelope.Type)
	assert.Equal(t, "room-1", envelope.Data.Room.Id)
}

func TestCommandBeforeJoinIsRejected(t *testing.T) {
	room := newTestRoom("host-1")
	svc := &stubService{room: room}
	gw := New(svc, zap.NewNop())
	server := httptest.NewServer(gw)
	defer server.Close()

	conn := dialServer(t, server)
	require.NoError(t, conn.WriteJSON(internal.Message[internal.PlayerReadyData]{
		Type: internal.CmdPlayerReady,
		Data: internal.PlayerReadyData{IsReady: true},
	}))

	var envelope internal.Message[internal.ErrorData]
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&envelope))
	assert.Equal(t, internal.EventError, envelope.Type)
	assert.Equal(t, string(internal.ErrPlayerNotInRoom), envelope.Data.Code)
}

func TestUnknownPlayerJoinIsRejected(t *testing.T) {
	room := newTestRoom("host-1")
	svc := &stubService{room: room}
	gw := New(svc, zap.NewNop())
	server := httptest.NewServer(gw)
	defer server.Close()

	conn := dialServer(t, server)
	require.NoError(t, conn.WriteJSON(internal.Message[internal.RoomJoinData]{
		Type: internal.CmdRoomJoin,
		Data: internal.RoomJoinData{RoomId: "room-1", PlayerId: "not-a-player"},
	}))

	var envelope internal.Message[internal.ErrorData]
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&envelope))
	assert.Equal(t, internal.EventError, envelope.Type)
	assert.Equal(t, string(internal.ErrPlayerNotInRoom), envelope.Data.Code)
}

func TestNewInstallsNotifierOnService(t *testing.T) {
	svc := &stubService{room: newTestRoom("host-1")}
	New(svc, zap.NewNop())
	assert.NotNil(t, svc.notifier)
}

func TestSetReadyErrorIsDeliveredAsErrorEvent(t *testing.T) {
	room := newTestRoom("host-1")
	svc := &stubService{room: room, setReadyErr: internal.NewGameError("setReady", internal.ErrInvalidPhase, "ready state can only change in lobby")}
	gw := New(svc, zap.NewNop())
	server := httptest.NewServer(gw)
	defer server.Close()

	conn := dialServer(t, server)
	require.NoError(t, conn.WriteJSON(internal.Message[internal.RoomJoinData]{
		Type: internal.CmdRoomJoin,
		Data: internal.RoomJoinData{RoomId: "room-1", PlayerId: "host-1"},
	}))
	var snapshot internal.Message[internal.RoomUpdateData]
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&snapshot))

	require.NoError(t, conn.WriteJSON(internal.Message[internal.PlayerReadyData]{
		Type: internal.CmdPlayerReady,
		Data: internal.PlayerReadyData{IsReady: true},
	}))
	var errEnvelope internal.Message[internal.ErrorData]
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&errEnvelope))
	assert.Equal(t, internal.EventError, errEnvelope.Type)
	assert.Equal(t, string(internal.ErrInvalidPhase), errEnvelope.Data.Code)
}
