package internal

import "sort"

// Methods on Room. These are pure reads/mutations over already-loaded data;
// callers (internal/game) hold the per-room critical section around them
// and persist the result through internal/store afterward.

func (r *Room) GetPlayerCount() int {
	return len(r.Players)
}

func (r *Room) CanStartGame() bool {
	return r.GetPlayerCount() >= MinPlayersToStart
}

func (r *Room) AreAllPlayersReady() bool {
	for _, player := range r.Players {
		if !player.IsReady {
			return false
		}
	}
	return true
}

// HasEveryoneSubmitted reports whether every player has a PromptSubmission
// recorded for the given round.
func (r *Room) HasEveryoneSubmitted(round *Round) bool {
	if round == nil {
		return false
	}
	return len(round.Prompts) == len(r.Players)
}

// HasEveryoneSelected reports whether every player has chosen an image for
// the given round.
func (r *Room) HasEveryoneSelected(round *Round) bool {
	if round == nil {
		return false
	}
	return len(round.Selections) == len(r.Players)
}

// AllPromptsReady reports whether every prompt submission in the round has
// reached status ready (used by resubmitPrompt's strict transition check,
// per spec: a resubmission advances the phase only when nothing is left
// rejected or failed).
func (r *Round) AllPromptsReady() bool {
	for _, submission := range r.Prompts {
		if submission.Status != SubmissionReady {
			return false
		}
	}
	return true
}

// ExpectedGuessers returns how many distinct guessers an image should
// collect before its reveal step is complete: every player except the
// image's owner, if the owner is still in the room.
func (r *Room) ExpectedGuessers(ownerId string) int {
	if _, ok := r.Players[ownerId]; ok {
		return len(r.Players) - 1
	}
	return len(r.Players)
}

// RemovePlayer deletes a player from the roster and its order slice. If the
// removed player was host, the player with the earliest JoinedAt among
// those remaining is promoted and its id returned; otherwise "" is
// returned.
func (r *Room) RemovePlayer(playerId string) (newHostId string) {
	delete(r.Players, playerId)
	for i, id := range r.PlayerOrder {
		if id == playerId {
			r.PlayerOrder = append(r.PlayerOrder[:i], r.PlayerOrder[i+1:]...)
			break
		}
	}
	if r.HostId != playerId {
		return ""
	}
	r.HostId = ""
	remaining := r.OrderedPlayers()
	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].JoinedAt.Before(remaining[j].JoinedAt)
	})
	if len(remaining) == 0 {
		return ""
	}
	remaining[0].IsHost = true
	r.HostId = remaining[0].Id
	return r.HostId
}
