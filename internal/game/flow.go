package game

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cmacnamara/prompt-guessr/internal"
	"github.com/cmacnamara/prompt-guessr/internal/imagegen"
	"github.com/cmacnamara/prompt-guessr/internal/scoring"
)

// SubmitPrompt stores a player's prompt for the current round. If it is the
// last one needed, the round/game transition to image_generate and the
// caller (internal/gateway) is expected to hand off to the orchestrator's
// TriggerImageGeneration — submitPrompt itself never blocks on C4.
func (s *Service) SubmitPrompt(ctx context.Context, roomId, playerId, text string) (*internal.Room, bool, error) {
	log := s.logger.With(zap.String("op", "SubmitPrompt"), zap.String("room_id", roomId), zap.String("player_id", playerId))
	text = strings.TrimSpace(text)

	var transitioned bool
	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		round := room.CurrentRoundData()
		if round == nil || round.Status != internal.RoundPromptSubmit {
			return false, newGameError("submitPrompt", internal.ErrInvalidPhase, "round is not accepting prompts")
		}
		if _, ok := room.Players[playerId]; !ok {
			return false, newGameError("submitPrompt", internal.ErrPlayerNotInRoom, "player not in room")
		}
		if _, exists := round.Prompts[playerId]; exists {
			return false, newGameError("submitPrompt", internal.ErrInvalidPhase, "prompt already submitted")
		}
		if len(text) < internal.MinPromptLength || len(text) > internal.MaxPromptLength {
			return false, newGameError("submitPrompt", internal.ErrValidation, "prompt length out of range")
		}

		round.Prompts[playerId] = &internal.PromptSubmission{
			PlayerId:    playerId,
			Prompt:      text,
			SubmittedAt: time.Now(),
			Status:      internal.SubmissionPending,
		}

		if room.HasEveryoneSubmitted(round) {
			round.Status = internal.RoundImageGenerate
			room.Game.Status = internal.RoundImageGenerate
			transitioned = true
		}
		return true, nil
	})
	if err != nil {
		log.Debug("submit prompt rejected", zap.Error(err))
		return nil, false, err
	}

	log.Info("prompt submitted", zap.Bool("all_submitted", transitioned))
	if s.notifier != nil {
		s.notifier.BroadcastRoomUpdate(room)
	}
	if transitioned {
		s.cancelPhaseTimer(roomId)
		if s.notifier != nil {
			s.notifier.BroadcastPhaseTransition(room, internal.RoundImageGenerate)
		}
	}
	return room, transitioned, nil
}

// ResubmitPrompt replaces a rejected prompt and synchronously retries
// generation for that single player through C4, per spec §4.5 — unlike the
// initial fan-out in orchestrator.go, a resubmission is always one prompt,
// so there is no benefit to routing it through the async orchestrator.
func (s *Service) ResubmitPrompt(ctx context.Context, roomId, playerId, text string) (*internal.Room, bool, error) {
	log := s.logger.With(zap.String("op", "ResubmitPrompt"), zap.String("room_id", roomId), zap.String("player_id", playerId))
	text = strings.TrimSpace(text)

	var roundNumber int
	var imageCount int
	_, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		round := room.CurrentRoundData()
		if round == nil || round.Status != internal.RoundImageGenerate {
			return false, newGameError("resubmitPrompt", internal.ErrInvalidPhase, "round is not in image_generate")
		}
		submission, ok := round.Prompts[playerId]
		if !ok || submission.Status != internal.SubmissionRejected {
			return false, newGameError("resubmitPrompt", internal.ErrInvalidPhase, "no rejected submission to resubmit")
		}
		if len(text) < internal.MinPromptLength || len(text) > internal.MaxPromptLength {
			return false, newGameError("resubmitPrompt", internal.ErrValidation, "prompt length out of range")
		}

		submission.Prompt = text
		submission.SubmittedAt = time.Now()
		submission.Images = nil
		submission.Status = internal.SubmissionGenerating
		roundNumber = round.Number
		imageCount = room.Settings.ImageCount
		removeRejected(round, playerId)
		return true, nil
	})
	if err != nil {
		log.Debug("resubmit rejected", zap.Error(err))
		return nil, false, err
	}

	images, genErr := s.images.Generate(ctx, text, imageCount, playerId)

	var transitioned bool
	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		round := room.CurrentRoundData()
		if round == nil || round.Number != roundNumber {
			return false, nil
		}
		submission, ok := round.Prompts[playerId]
		if !ok {
			return false, nil
		}

		if genErr != nil {
			if _, isPolicy := imagegen.IsContentPolicyError(genErr); isPolicy {
				submission.Status = internal.SubmissionRejected
				round.RejectedPlayerIds = append(round.RejectedPlayerIds, playerId)
				return true, newGameError("resubmitPrompt", internal.ErrContentPolicyViolation, genErr.Error())
			}
			submission.Status = internal.SubmissionFailed
			return true, newGameError("resubmitPrompt", internal.ErrGenerationFailure, genErr.Error())
		}

		for i := range images {
			images[i].PromptId = playerId
		}
		submission.Images = images
		submission.Status = internal.SubmissionReady

		if round.AllPromptsReady() {
			round.Status = internal.RoundImageSelect
			room.Game.Status = internal.RoundImageSelect
			transitioned = true
		}
		return true, nil
	})

	if room != nil && s.notifier != nil {
		s.notifier.BroadcastImageProgress(room)
	}
	if err != nil {
		log.Warn("resubmit generation outcome", zap.Error(err))
		if gameErr, ok := internal.AsGameError(err); ok && gameErr.Kind == internal.ErrContentPolicyViolation && s.notifier != nil {
			s.notifier.NotifyPromptRejected(room, playerId, gameErr.Message)
		}
		return room, false, err
	}

	log.Info("resubmit succeeded", zap.Bool("all_ready", transitioned))
	if transitioned && s.notifier != nil {
		s.startSelectionTimer(roomId, room)
		s.notifier.BroadcastPhaseTransition(room, internal.RoundImageSelect)
	}
	return room, transitioned, nil
}

func removeRejected(round *internal.Round, playerId string) {
	out := round.RejectedPlayerIds[:0]
	for _, id := range round.RejectedPlayerIds {
		if id != playerId {
			out = append(out, id)
		}
	}
	round.RejectedPlayerIds = out
}

// SelectImage records a player's chosen image for reveal.
func (s *Service) SelectImage(ctx context.Context, roomId, playerId, imageId string) (*internal.Room, bool, error) {
	log := s.logger.With(zap.String("op", "SelectImage"), zap.String("room_id", roomId), zap.String("player_id", playerId))

	var transitioned bool
	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		round := room.CurrentRoundData()
		if round == nil || round.Status != internal.RoundImageSelect {
			return false, newGameError("selectImage", internal.ErrInvalidPhase, "round is not selecting images")
		}
		submission, ok := round.Prompts[playerId]
		if !ok {
			return false, newGameError("selectImage", internal.ErrPlayerNotInRoom, "no submission for player")
		}
		var found bool
		for _, img := range submission.Images {
			if img.Id == imageId {
				found = true
				break
			}
		}
		if !found {
			return false, newGameError("selectImage", internal.ErrValidation, "image does not belong to player's submission")
		}

		round.Selections[playerId] = internal.ImageSelection{PlayerId: playerId, ImageId: imageId, SelectedAt: time.Now()}

		if room.HasEveryoneSelected(round) {
			round.RevealOrder = revealOrderFor(room, round)
			round.CurrentRevealIndex = 0
			round.Status = internal.RoundRevealGuess
			room.Game.Status = internal.RoundRevealGuess
			transitioned = true
		}
		return true, nil
	})
	if err != nil {
		log.Debug("select image rejected", zap.Error(err))
		return nil, false, err
	}

	log.Info("image selected", zap.Bool("all_selected", transitioned))
	if s.notifier != nil {
		s.notifier.BroadcastRoomUpdate(room)
	}
	if transitioned {
		s.cancelPhaseTimer(roomId)
		round := room.CurrentRoundData()
		s.startPhaseTimer(roomId, room.Settings.GuessingTimeLimit, func() { s.onGuessingTimeout(roomId, round.Number) })
		if s.notifier != nil {
			s.notifier.BroadcastPhaseTransition(room, internal.RoundRevealGuess)
		}
	}
	return room, transitioned, nil
}

// revealOrderFor walks PlayerOrder (join order) collecting each selection,
// then stably orders them by SelectedAt, so reveal order follows selection
// order per §9's mapping-order note; selections made at the same instant
// keep join order.
func revealOrderFor(room *internal.Room, round *internal.Round) []string {
	sels := make([]internal.ImageSelection, 0, len(round.Selections))
	for _, p := range room.OrderedPlayers() {
		if sel, ok := round.Selections[p.Id]; ok {
			sels = append(sels, sel)
		}
	}
	for i := 1; i < len(sels); i++ {
		for j := i; j > 0 && sels[j].SelectedAt.Before(sels[j-1].SelectedAt); j-- {
			sels[j-1], sels[j] = sels[j], sels[j-1]
		}
	}
	order := make([]string, 0, len(sels))
	for _, sel := range sels {
		order = append(order, sel.ImageId)
	}
	return order
}

// SubmitGuess records one guess against the image currently at
// currentRevealIndex.
func (s *Service) SubmitGuess(ctx context.Context, roomId, playerId, imageId, guessText string) (*internal.Room, bool, error) {
	log := s.logger.With(zap.String("op", "SubmitGuess"), zap.String("room_id", roomId), zap.String("player_id", playerId))
	guessText = strings.TrimSpace(guessText)

	var allGuessed bool
	var advancedIndex bool
	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		round := room.CurrentRoundData()
		if round == nil || round.Status != internal.RoundRevealGuess {
			return false, newGameError("submitGuess", internal.ErrInvalidPhase, "round is not accepting guesses")
		}
		if round.CurrentRevealIndex < 0 || round.CurrentRevealIndex >= len(round.RevealOrder) {
			return false, newGameError("submitGuess", internal.ErrInvalidPhase, "no image currently under reveal")
		}
		currentImageId := round.RevealOrder[round.CurrentRevealIndex]
		if imageId != currentImageId {
			return false, newGameError("submitGuess", internal.ErrValidation, "imageId is not the image currently under reveal")
		}
		ownerId := imageOwner(round, imageId)
		if ownerId == playerId {
			return false, newGameError("submitGuess", internal.ErrValidation, "cannot guess your own image")
		}
		if len(guessText) < internal.MinGuessLength || len(guessText) > internal.MaxGuessLength {
			return false, newGameError("submitGuess", internal.ErrValidation, "guess length out of range")
		}
		if round.Guesses[imageId] == nil {
			round.Guesses[imageId] = make(map[string]*internal.Guess)
		}
		if _, exists := round.Guesses[imageId][playerId]; exists {
			return false, newGameError("submitGuess", internal.ErrValidation, "already guessed this image")
		}

		round.Guesses[imageId][playerId] = &internal.Guess{
			Id:          newId(),
			ImageId:     imageId,
			PlayerId:    playerId,
			GuessText:   guessText,
			SubmittedAt: time.Now(),
		}

		expected := room.ExpectedGuessers(ownerId)
		allGuessed = len(round.Guesses[imageId]) >= expected
		if allGuessed {
			if round.CurrentRevealIndex < len(round.RevealOrder)-1 {
				round.CurrentRevealIndex++
				advancedIndex = true
			} else {
				round.Status = internal.RoundScoring
				room.Game.Status = internal.RoundScoring
			}
		}
		return true, nil
	})
	if err != nil {
		log.Debug("submit guess rejected", zap.Error(err))
		return nil, false, err
	}

	log.Info("guess submitted", zap.Bool("all_guessed", allGuessed), zap.Bool("advanced_index", advancedIndex))
	if s.notifier != nil {
		s.notifier.BroadcastRoomUpdate(room)
	}
	if advancedIndex && s.notifier != nil {
		s.cancelPhaseTimer(roomId)
		round := room.CurrentRoundData()
		s.startPhaseTimer(roomId, room.Settings.GuessingTimeLimit, func() { s.onGuessingTimeout(roomId, round.Number) })
		s.notifier.BroadcastPhaseTransition(room, internal.RoundRevealGuess)
	}
	if allGuessed && !advancedIndex {
		s.cancelPhaseTimer(roomId)
		if _, err := s.ScoreRound(ctx, roomId); err != nil {
			log.Error("auto score round failed", zap.Error(err))
		}
	}
	return room, allGuessed, nil
}

func imageOwner(round *internal.Round, imageId string) string {
	for playerId, submission := range round.Prompts {
		for _, img := range submission.Images {
			if img.Id == imageId {
				return playerId
			}
		}
	}
	return ""
}

// ScoreRound runs the scoring pipeline over every image with guesses, then
// updates the leaderboard and transitions to reveal_results. Invoked by
// SubmitGuess when the last guess completes, and by onGuessingTimeout in
// timeouts.go.
func (s *Service) ScoreRound(ctx context.Context, roomId string) (*internal.Room, error) {
	log := s.logger.With(zap.String("op", "ScoreRound"), zap.String("room_id", roomId))

	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		round := room.CurrentRoundData()
		if round == nil || round.Status != internal.RoundScoring {
			return false, newGameError("scoreRound", internal.ErrInvalidPhase, "round is not in scoring")
		}

		for _, imageId := range round.RevealOrder {
			guessesByPlayer := round.Guesses[imageId]
			if len(guessesByPlayer) == 0 {
				continue
			}
			ownerId := imageOwner(round, imageId)
			var submission *internal.PromptSubmission
			for _, sub := range round.Prompts {
				for _, img := range sub.Images {
					if img.Id == imageId {
						submission = sub
					}
				}
			}
			if submission == nil {
				continue
			}

			scores := make([]scoring.GuessScore, 0, len(guessesByPlayer))
			for guesserId, guess := range guessesByPlayer {
				similarity := scoring.Similarity(submission.Prompt, guess.GuessText)
				guess.Score = similarity
				scores = append(scores, scoring.GuessScore{PlayerId: guesserId, Score: similarity})
			}

			award := scoring.AwardPoints(scores)
			for guesserId, pts := range award.PointsByGuesser {
				round.Scores[guesserId] += pts
			}
			if award.StumperBonus > 0 && ownerId != "" {
				round.BonusPoints[imageId] = award.StumperBonus
				round.Scores[ownerId] += award.StumperBonus
			}
		}

		for _, p := range room.OrderedPlayers() {
			entry, ok := room.Game.Leaderboard.Scores[p.Id]
			if !ok {
				entry = &internal.ScoreEntry{PlayerId: p.Id, DisplayName: p.DisplayName}
				room.Game.Leaderboard.Scores[p.Id] = entry
			}
			roundScore := round.Scores[p.Id]
			entry.TotalScore += roundScore
			entry.RoundScores = append(entry.RoundScores, roundScore)
		}
		room.Game.Leaderboard.Rankings = rankPlayers(room)

		round.Status = internal.RoundRevealResults
		room.Game.Status = internal.RoundRevealResults
		round.CurrentResultIndex = 0
		return true, nil
	})
	if err != nil {
		log.Warn("score round rejected", zap.Error(err))
		return nil, err
	}

	log.Info("round scored")
	s.startPhaseTimer(roomId, room.Settings.ResultsTimeLimit, func() { s.onResultsTimeout(roomId) })
	if s.notifier != nil {
		s.notifier.BroadcastPhaseTransition(room, internal.RoundRevealResults)
	}
	return room, nil
}

func rankPlayers(room *internal.Room) []string {
	ordered := room.OrderedPlayers()
	ids := make([]string, len(ordered))
	for i, p := range ordered {
		ids[i] = p.Id
	}
	joinedAt := make(map[string]time.Time, len(ordered))
	for _, p := range ordered {
		joinedAt[p.Id] = p.JoinedAt
	}
	totals := room.Game.Leaderboard.Scores

	sortStableByScoreThenJoin(ids, totals, joinedAt)
	return ids
}

func sortStableByScoreThenJoin(ids []string, totals map[string]*internal.ScoreEntry, joinedAt map[string]time.Time) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0; j-- {
			a, b := ids[j-1], ids[j]
			if !lessRank(b, a, totals, joinedAt) {
				break
			}
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// lessRank reports whether a outranks b: higher totalScore first, earlier
// joinedAt breaking ties.
func lessRank(a, b string, totals map[string]*internal.ScoreEntry, joinedAt map[string]time.Time) bool {
	sa, sb := 0, 0
	if e, ok := totals[a]; ok {
		sa = e.TotalScore
	}
	if e, ok := totals[b]; ok {
		sb = e.TotalScore
	}
	if sa != sb {
		return sa > sb
	}
	return joinedAt[a].Before(joinedAt[b])
}

// NavigateResult moves the results cursor by one step, clamped to bounds.
func (s *Service) NavigateResult(ctx context.Context, roomId, direction string) (*internal.Room, error) {
	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		round := room.CurrentRoundData()
		if round == nil || round.Status != internal.RoundRevealResults {
			return false, newGameError("navigateResult", internal.ErrInvalidPhase, "round is not in reveal_results")
		}
		last := len(round.RevealOrder) - 1
		if last < 0 {
			last = 0
		}
		switch direction {
		case "next":
			if round.CurrentResultIndex < last {
				round.CurrentResultIndex++
				return true, nil
			}
		case "previous":
			if round.CurrentResultIndex > 0 {
				round.CurrentResultIndex--
				return true, nil
			}
		default:
			return false, newGameError("navigateResult", internal.ErrValidation, "direction must be next or previous")
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.BroadcastRoomUpdate(room)
	}
	return room, nil
}

// CompleteReveal ends the current round's result review. A no-op outside
// reveal_results so a double "Continue" click is harmless.
func (s *Service) CompleteReveal(ctx context.Context, roomId string) (*internal.Room, error) {
	log := s.logger.With(zap.String("op", "CompleteReveal"), zap.String("room_id", roomId))

	var isGameEnd bool
	var completed bool
	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		round := room.CurrentRoundData()
		if round == nil || room.Game.Status != internal.RoundRevealResults {
			return false, nil
		}
		completed = true
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
		return nil, err
	}
	if room == nil {
		return nil, nil
	}
	if !completed {
		return room, nil
	}

	s.cancelPhaseTimer(roomId)
	log.Info("reveal completed", zap.Bool("is_game_end", isGameEnd))
	if s.notifier != nil {
		if isGameEnd {
			s.notifier.BroadcastPhaseTransition(room, internal.RoundGameEnd)
		} else {
			s.notifier.BroadcastPhaseTransition(room, internal.RoundEnd)
		}
	}
	return room, nil
}

// StartNextRound appends a fresh Round and returns the game to
// prompt_submit.
func (s *Service) StartNextRound(ctx context.Context, roomId, playerId string) (*internal.Room, error) {
	log := s.logger.With(zap.String("op", "StartNextRound"), zap.String("room_id", roomId))

	room, err := s.withRoom(ctx, roomId, func(room *internal.Room) (bool, error) {
		if room.HostId != playerId {
			return false, newGameError("startNextRound", internal.ErrNotHost, "only the host may advance the round")
		}
		if room.Game == nil || room.Game.Status != internal.RoundEnd {
			return false, newGameError("startNextRound", internal.ErrInvalidPhase, "game is not between rounds")
		}
		if room.Game.CurrentRound >= room.Game.Settings.RoundCount {
			return false, newGameError("startNextRound", internal.ErrInvalidPhase, "no rounds remain")
		}

		room.Game.CurrentRound++
		room.Game.Rounds = append(room.Game.Rounds, newRound(room.Game.CurrentRound))
		room.Game.Status = internal.RoundPromptSubmit
		return true, nil
	})
	if err != nil {
		log.Warn("start next round rejected", zap.Error(err))
		return nil, err
	}

	log.Info("next round started", zap.Int("round", room.Game.CurrentRound))
	s.startPhaseTimer(roomId, room.Settings.PromptTimeLimit, func() { s.onPromptSubmitTimeout(roomId) })
	if s.notifier != nil {
		s.notifier.BroadcastPhaseTransition(room, internal.RoundPromptSubmit)
	}
	return room, nil
}
