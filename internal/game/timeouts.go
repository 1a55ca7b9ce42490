package game

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cmacnamara/prompt-guessr/internal"
)

// Phase-timer expiry handlers. Per spec §5's enforcement option ("a
// conforming implementation may add server timers that, on expiry, behave
// as if every missing player had submitted a synthetic empty
// submission/selection/guess"), SPEC_FULL.md's decision on Open Question #1
// is to enforce: these handlers synthesize the missing input for whichever
// players haven't acted, then drive the same transition logic a real
// command would.
//
// Each handler is invoked from timerRegistry's own goroutine, so it uses
// context.Background() rather than a request-scoped context that may
// already be cancelled.

func (s *Service) onPromptSubmitTimeout(roomId string) {
	ctx := context.Background()
	log := s.logger.With(zap.String("op", "onPromptSubmitTimeout"), zap.String("room_id", roomId))

	var transitioned bool
	var roundNumber int
	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		round := room.CurrentRoundData()
		if round == nil || round.Status != internal.RoundPromptSubmit {
			return false, nil
		}
		now := time.Now()
		for _, p := range room.OrderedPlayers() {
			if _, ok := round.Prompts[p.Id]; ok {
				continue
			}
			round.Prompts[p.Id] = &internal.PromptSubmission{
				PlayerId:    p.Id,
				Prompt:      "(no prompt submitted)",
				SubmittedAt: now,
				Status:      internal.SubmissionPending,
			}
		}
		roundNumber = round.Number
		round.Status = internal.RoundImageGenerate
		room.Game.Status = internal.RoundImageGenerate
		transitioned = true
		return true, nil
	})
	if err != nil || room == nil || !transitioned {
		if err != nil {
			log.Error("prompt timeout handling failed", zap.Error(err))
		}
		return
	}

	log.Warn("prompt submit phase timed out, synthesizing missing prompts")
	if s.notifier != nil {
		s.notifier.BroadcastPhaseTransition(room, internal.RoundImageGenerate)
	}
	s.TriggerImageGeneration(ctx, roomId, roundNumber)
}

func (s *Service) onSelectionTimeout(roomId string) {
	ctx := context.Background()
	log := s.logger.With(zap.String("op", "onSelectionTimeout"), zap.String("room_id", roomId))

	var transitioned bool
	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		round := room.CurrentRoundData()
		if round == nil || round.Status != internal.RoundImageSelect {
			return false, nil
		}
		now := time.Now()
		for playerId, submission := range round.Prompts {
			if _, ok := round.Selections[playerId]; ok {
				continue
			}
			if len(submission.Images) == 0 {
				continue
			}
			round.Selections[playerId] = internal.ImageSelection{
				PlayerId:   playerId,
				ImageId:    submission.Images[0].Id,
				SelectedAt: now,
			}
		}
		round.RevealOrder = revealOrderFor(room, round)
		round.CurrentRevealIndex = 0
		round.Status = internal.RoundRevealGuess
		room.Game.Status = internal.RoundRevealGuess
		transitioned = true
		return true, nil
	})
	if err != nil || room == nil || !transitioned {
		if err != nil {
			log.Error("selection timeout handling failed", zap.Error(err))
		}
		return
	}

	log.Warn("image select phase timed out, auto-selecting missing players")
	round := room.CurrentRoundData()
	if len(round.RevealOrder) == 0 {
		// Nobody ended up with a selection at all; skip straight to scoring
		// with nothing to score is pointless, so just end the round.
		s.finishEmptyRound(ctx, roomId)
		return
	}
	s.startPhaseTimer(roomId, room.Settings.GuessingTimeLimit, func() { s.onGuessingTimeout(roomId, round.Number) })
	if s.notifier != nil {
		s.notifier.BroadcastPhaseTransition(room, internal.RoundRevealGuess)
	}
}

func (s *Service) onGuessingTimeout(roomId string, roundNumber int) {
	ctx := context.Background()
	log := s.logger.With(zap.String("op", "onGuessingTimeout"), zap.String("room_id", roomId))

	var movedToScoring bool
	var advanced bool
	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		round := room.CurrentRoundData()
		if round == nil || round.Number != roundNumber || round.Status != internal.RoundRevealGuess {
			return false, nil
		}
		if round.CurrentRevealIndex < 0 || round.CurrentRevealIndex >= len(round.RevealOrder) {
			return false, nil
		}
		imageId := round.RevealOrder[round.CurrentRevealIndex]
		ownerId := imageOwner(round, imageId)
		now := time.Now()
		if round.Guesses[imageId] == nil {
			round.Guesses[imageId] = make(map[string]*internal.Guess)
		}
		for _, p := range room.OrderedPlayers() {
			if p.Id == ownerId {
				continue
			}
			if _, ok := round.Guesses[imageId][p.Id]; ok {
				continue
			}
			round.Guesses[imageId][p.Id] = &internal.Guess{
				Id:          newId(),
				ImageId:     imageId,
				PlayerId:    p.Id,
				GuessText:   "",
				SubmittedAt: now,
			}
		}

		if round.CurrentRevealIndex < len(round.RevealOrder)-1 {
			round.CurrentRevealIndex++
			advanced = true
		} else {
			round.Status = internal.RoundScoring
			room.Game.Status = internal.RoundScoring
			movedToScoring = true
		}
		return true, nil
	})
	if err != nil || room == nil {
		if err != nil {
			log.Error("guessing timeout handling failed", zap.Error(err))
		}
		return
	}

	log.Warn("guessing phase timed out, synthesizing missing guesses")
	if advanced && s.notifier != nil {
		s.startPhaseTimer(roomId, room.Settings.GuessingTimeLimit, func() { s.onGuessingTimeout(roomId, roundNumber) })
		s.notifier.BroadcastPhaseTransition(room, internal.RoundRevealGuess)
	}
	if movedToScoring {
		if _, err := s.ScoreRound(ctx, roomId); err != nil {
			log.Error("auto score round after guessing timeout failed", zap.Error(err))
		}
	}
}

func (s *Service) onResultsTimeout(roomId string) {
	ctx := context.Background()
	log := s.logger.With(zap.String("op", "onResultsTimeout"), zap.String("room_id", roomId))
	if _, err := s.CompleteReveal(ctx, roomId); err != nil {
		log.Error("auto complete reveal after results timeout failed", zap.Error(err))
	}
}

// finishEmptyRound handles the degenerate case where a round reaches
// image_select with zero selections possible (every submission failed or
// was rejected and never resubmitted before the selection timer fired):
// there is nothing to reveal or guess, so the round is marked complete
// directly.
func (s *Service) finishEmptyRound(ctx context.Context, roomId string) {
	log := s.logger.With(zap.String("op", "finishEmptyRound"), zap.String("room_id", roomId))

	var isGameEnd bool
	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		round := room.CurrentRoundData()
		if round == nil {
			return false, nil
		}
		now := time.Now()
		round.Status = internal.RoundCompleted
		round.FinishedAt = &now
		if room.Game.CurrentRound >= room.Game.Settings.RoundCount {
			room.Game.Status = internal.RoundGameEnd
			room.Game.FinishedAt = &now
			room.Status = internal.PhaseFinished
			isGameEnd = true
		} else {
			room.Game.Status = internal.RoundEnd
		}
		return true, nil
	})
	if err != nil {
		log.Error("finish empty round failed", zap.Error(err))
		return
	}
	if room == nil {
		return
	}
	if s.notifier != nil {
		if isGameEnd {
			s.notifier.BroadcastPhaseTransition(room, internal.RoundGameEnd)
		} else {
			s.notifier.BroadcastPhaseTransition(room, internal.RoundEnd)
		}
	}
}
