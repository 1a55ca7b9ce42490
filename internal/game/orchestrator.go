package game

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cmacnamara/prompt-guessr/internal"
	"github.com/cmacnamara/prompt-guessr/internal/imagegen"
)

// imageProgressPacing is the short delay C6 waits before fanning out each
// per-prompt completion, giving clients time to render the previous update
// before the next arrives, per spec §4.6.
const imageProgressPacing = 100 * time.Millisecond

// TriggerImageGeneration is called once, right after a SubmitPrompt call
// transitions a round to image_generate. It spawns one goroutine per
// pending prompt; each re-enters the room's critical section exactly once
// to record its own outcome, so a slow prompt and a fast resubmit_prompt
// (which also touches the same round) interleave safely rather than race.
func (s *Service) TriggerImageGeneration(ctx context.Context, roomId string, roundNumber int) {
	log := s.logger.With(zap.String("op", "TriggerImageGeneration"), zap.String("room_id", roomId), zap.Int("round", roundNumber))

	type pending struct {
		playerId string
		prompt   string
	}
	var tasks []pending
	var imageCount int

	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		round := room.CurrentRoundData()
		if round == nil || round.Number != roundNumber || round.Status != internal.RoundImageGenerate {
			return false, nil
		}
		imageCount = room.Settings.ImageCount
		for playerId, submission := range round.Prompts {
			if submission.Status == internal.SubmissionPending {
				submission.Status = internal.SubmissionGenerating
				tasks = append(tasks, pending{playerId: playerId, prompt: submission.Prompt})
			}
		}
		return len(tasks) > 0, nil
	})
	if err != nil {
		log.Error("failed to mark prompts generating", zap.Error(err))
		return
	}
	if room == nil || len(tasks) == 0 {
		return
	}

	log.Info("generation started", zap.Int("tasks", len(tasks)))
	for _, t := range tasks {
		go s.runGenerationTask(ctx, roomId, roundNumber, t.playerId, t.prompt, imageCount)
	}
}

func (s *Service) runGenerationTask(ctx context.Context, roomId string, roundNumber int, playerId, prompt string, imageCount int) {
	log := s.logger.With(zap.String("op", "runGenerationTask"), zap.String("room_id", roomId), zap.String("player_id", playerId))

	images, genErr := s.images.Generate(ctx, prompt, imageCount, playerId)

	var shouldTransition bool
	var nextPhase internal.RoundPhase
	var rejected bool
	var rejectReason string

	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		round := room.CurrentRoundData()
		if round == nil || round.Number != roundNumber || round.Status != internal.RoundImageGenerate {
			// The round moved on (or the room vanished) before this task
			// finished; per spec §5's cancellation policy, late completions
			// for an ended round are discarded.
			return false, nil
		}
		submission, ok := round.Prompts[playerId]
		if !ok {
			return false, nil
		}

		switch {
		case genErr == nil:
			for i := range images {
				images[i].PromptId = playerId
			}
			submission.Images = images
			submission.Status = internal.SubmissionReady
		default:
			if policyErr, ok := imagegen.IsContentPolicyError(genErr); ok {
				submission.Status = internal.SubmissionRejected
				round.RejectedPlayerIds = append(round.RejectedPlayerIds, playerId)
				rejected = true
				rejectReason = policyErr.Reason
			} else {
				submission.Status = internal.SubmissionFailed
				log.Warn("generation failed transiently, round continues degraded", zap.Error(genErr))
			}
		}

		if allPromptsTerminal(round) {
			switch {
			case len(round.RejectedPlayerIds) > 0:
				// stays in image_generate; rejected submitters must resubmit.
			default:
				round.RevealOrder = nil
				round.Status = internal.RoundImageSelect
				room.Game.Status = internal.RoundImageSelect
				shouldTransition = true
				nextPhase = internal.RoundImageSelect
			}
		}
		return true, nil
	})
	if err != nil {
		log.Error("failed to record generation outcome", zap.Error(err))
		return
	}
	if room == nil {
		return
	}

	if err := sleepPacing(ctx, imageProgressPacing); err != nil {
		return
	}

	if rejected && s.notifier != nil {
		s.notifier.NotifyPromptRejected(room, playerId, rejectReason)
	}
	if s.notifier != nil {
		s.notifier.BroadcastImageProgress(room)
	}
	if shouldTransition {
		s.cancelPhaseTimer(roomId)
		s.startSelectionTimer(roomId, room)
		if s.notifier != nil {
			s.notifier.BroadcastPhaseTransition(room, nextPhase)
		}
	}
}

func allPromptsTerminal(round *internal.Round) bool {
	for _, submission := range round.Prompts {
		switch submission.Status {
		case internal.SubmissionReady, internal.SubmissionFailed, internal.SubmissionRejected:
		default:
			return false
		}
	}
	return true
}

func (s *Service) startSelectionTimer(roomId string, room *internal.Room) {
	s.startPhaseTimer(roomId, room.Settings.SelectionTimeLimit, func() { s.onSelectionTimeout(roomId) })
}

// sleepPacing waits d or returns early if ctx is done, mirroring
// imagegen.sleepPacing for the orchestrator's own pacing delay.
func sleepPacing(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
