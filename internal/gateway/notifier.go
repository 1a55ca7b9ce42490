package gateway

import (
	"github.com/cmacnamara/prompt-guessr/internal"
)

// notifier implements game.Notifier over this package's Registry. It is a
// thin adapter: every method already receives a post-unlock Room snapshot
// from internal/game (see service.go's withRoom discipline), so all it does
// is shape the wire payload and fan it out per spec §4.7's discipline.
type notifier struct {
	registry *Registry
}

func newNotifier(registry *Registry) *notifier {
	return &notifier{registry: registry}
}

func (n *notifier) BroadcastRoomUpdate(room *internal.Room) {
	n.registry.broadcast(room.Id, internal.Message[internal.RoomUpdateData]{
		Type: internal.EventRoomUpdate,
		Data: internal.RoomUpdateData{Room: room},
	})
}

func (n *notifier) BroadcastPlayerJoined(room *internal.Room, player *internal.Player) {
	pub := player.ToPublicPlayer()
	n.registry.broadcast(room.Id, internal.Message[internal.PlayerJoinedData]{
		Type: internal.EventPlayerJoined,
		Data: internal.PlayerJoinedData{
			Player:      &pub,
			PlayerCount: room.GetPlayerCount(),
			CanStart:    room.CanStartGame() && room.AreAllPlayersReady(),
		},
	})
	n.BroadcastRoomUpdate(room)
}

func (n *notifier) BroadcastPlayerLeft(room *internal.Room, playerId, displayName, reason, newHostId string) {
	n.registry.broadcast(room.Id, internal.Message[internal.PlayerLeftData]{
		Type: internal.EventPlayerLeft,
		Data: internal.PlayerLeftData{
			PlayerId:    playerId,
			DisplayName: displayName,
			Reason:      reason,
			PlayerCount: room.GetPlayerCount(),
			NewHostId:   newHostId,
		},
	})
	n.BroadcastRoomUpdate(room)
}

func (n *notifier) BroadcastPlayerReadyChanged(room *internal.Room, playerId string, isReady bool) {
	n.registry.broadcast(room.Id, internal.Message[internal.PlayerReadyChangedData]{
		Type: internal.EventPlayerReadyChange,
		Data: internal.PlayerReadyChangedData{PlayerId: playerId, IsReady: isReady},
	})
}

func (n *notifier) BroadcastGameStarted(room *internal.Room) {
	n.registry.broadcast(room.Id, internal.Message[internal.PhaseTransitionData]{
		Type: internal.EventGameStarted,
		Data: internal.PhaseTransitionData{Game: room.Game, Phase: room.Game.Status},
	})
}

func (n *notifier) BroadcastPhaseTransition(room *internal.Room, phase internal.RoundPhase) {
	n.registry.broadcast(room.Id, internal.Message[internal.PhaseTransitionData]{
		Type: internal.EventPhaseTransition,
		Data: internal.PhaseTransitionData{Game: room.Game, Phase: phase},
	})
}

func (n *notifier) BroadcastImageProgress(room *internal.Room) {
	n.registry.broadcast(room.Id, internal.Message[internal.PhaseTransitionData]{
		Type: internal.EventImageProgress,
		Data: internal.PhaseTransitionData{Game: room.Game, Phase: room.Game.Status},
	})
}

func (n *notifier) NotifyPromptRejected(room *internal.Room, playerId, reason string) {
	n.registry.unicast(room.Id, playerId, internal.Message[internal.PromptRejectedData]{
		Type: internal.EventPromptRejected,
		Data: internal.PromptRejectedData{Reason: reason},
	})
}

func (n *notifier) NotifyError(playerId string, err error, context string) {
	kind := internal.ErrStoreUnavailable
	message := err.Error()
	if gameErr, ok := internal.AsGameError(err); ok {
		kind = gameErr.Kind
		message = gameErr.Message
	}
	n.registry.sendToPlayer(playerId, errorMessage(kind, message, context))
}
