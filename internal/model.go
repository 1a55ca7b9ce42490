package internal

import "time"

const (
	MaxPlayersPerRoom = 8
	MinPlayersToStart = 2

	DefaultRoundCount          = 3
	DefaultPromptTimeLimit     = 90 * time.Second
	DefaultSelectionTimeLimit  = 45 * time.Second
	DefaultGuessingTimeLimit   = 60 * time.Second
	DefaultResultsTimeLimit    = 15 * time.Second
	DefaultImageCount          = 4

	MinPromptLength = 10
	MaxPromptLength = 200
	MinGuessLength  = 3
	MaxGuessLength  = 200

	RoomCodeLength   = 4
	RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	RoomTTL          = 24 * time.Hour

	StumperThreshold = 40
	StumperBonus     = 50
)

// RoomPhase is the top-level lifecycle status of a Room, named `status` in
// the data model.
type RoomPhase string

const (
	PhaseLobby    RoomPhase = "lobby"
	PhasePlaying  RoomPhase = "playing"
	PhaseFinished RoomPhase = "finished"
)

// RoundPhase is the Round/Game status driven by the phase orchestrator
// while a Room is PhasePlaying. It mirrors 1:1 onto Game.Status while that
// round is current.
type RoundPhase string

const (
	RoundPromptSubmit  RoundPhase = "prompt_submit"
	RoundImageGenerate RoundPhase = "image_generate"
	RoundImageSelect   RoundPhase = "image_select"
	RoundRevealGuess   RoundPhase = "reveal_guess"
	RoundScoring       RoundPhase = "scoring"
	RoundRevealResults RoundPhase = "reveal_results"
	RoundCompleted     RoundPhase = "completed"
	RoundEnd           RoundPhase = "round_end"
	RoundGameEnd       RoundPhase = "game_end"
)

// SubmissionStatus tracks a single player's prompt through generation.
type SubmissionStatus string

const (
	SubmissionPending    SubmissionStatus = "pending"
	SubmissionGenerating SubmissionStatus = "generating"
	SubmissionReady      SubmissionStatus = "ready"
	SubmissionFailed     SubmissionStatus = "failed"
	SubmissionRejected   SubmissionStatus = "rejected"
)

// ImageStatus tracks one GeneratedImage independent of its parent submission.
type ImageStatus string

const (
	ImageQueued     ImageStatus = "queued"
	ImageGenerating ImageStatus = "generating"
	ImageComplete   ImageStatus = "complete"
	ImageFailed     ImageStatus = "failed"
)

// ImageProvider names an image-generation backend.
type ImageProvider string

const (
	ProviderMock        ImageProvider = "mock"
	ProviderOpenAI      ImageProvider = "openai"
	ProviderHuggingFace ImageProvider = "huggingface"
)

// GameSettings are chosen at room creation and fixed for the lifetime of
// the Game. Zero values are filled in with their documented defaults by
// NewGameSettings.
type GameSettings struct {
	RoundCount         int           `json:"roundCount"`
	PromptTimeLimit    time.Duration `json:"promptTimeLimit"`
	SelectionTimeLimit time.Duration `json:"selectionTimeLimit"`
	GuessingTimeLimit  time.Duration `json:"guessingTimeLimit"`
	ResultsTimeLimit   time.Duration `json:"resultsTimeLimit"`
	ImageCount         int           `json:"imageCount"`
	ImageProvider      ImageProvider `json:"imageProvider"`
	EnableFallback     bool          `json:"enableFallback"`
	FallbackProvider   ImageProvider `json:"fallbackProvider,omitempty"`
}

// NewGameSettings returns settings with every zero field replaced by its
// documented default.
func NewGameSettings(partial GameSettings) GameSettings {
	s := partial
	if s.RoundCount == 0 {
		s.RoundCount = DefaultRoundCount
	}
	if s.PromptTimeLimit == 0 {
		s.PromptTimeLimit = DefaultPromptTimeLimit
	}
	if s.SelectionTimeLimit == 0 {
		s.SelectionTimeLimit = DefaultSelectionTimeLimit
	}
	if s.GuessingTimeLimit == 0 {
		s.GuessingTimeLimit = DefaultGuessingTimeLimit
	}
	if s.ResultsTimeLimit == 0 {
		s.ResultsTimeLimit = DefaultResultsTimeLimit
	}
	if s.ImageCount == 0 {
		s.ImageCount = DefaultImageCount
	}
	if s.ImageProvider == "" {
		s.ImageProvider = ProviderMock
	}
	return s
}

// ImageMetadata carries provider-reported details about a generation call.
type ImageMetadata struct {
	Model          string        `json:"model,omitempty"`
	RevisedPrompt  string        `json:"revisedPrompt,omitempty"`
	GenerationTime time.Duration `json:"generationTime,omitempty"`
}

// GeneratedImage is one candidate image rendered from a PromptSubmission's
// text.
type GeneratedImage struct {
	Id              string        `json:"id"`
	PromptId        string        `json:"promptId"`
	PlayerId        string        `json:"playerId"`
	ImageURL        string        `json:"imageUrl"`
	ThumbnailURL    string        `json:"thumbnailUrl,omitempty"`
	Provider        ImageProvider `json:"provider"`
	ProviderImageId string        `json:"providerImageId,omitempty"`
	Status          ImageStatus   `json:"status"`
	GeneratedAt     time.Time     `json:"generatedAt"`
	Metadata        ImageMetadata `json:"metadata"`
}

// PromptSubmission is one player's prompt for one round.
type PromptSubmission struct {
	PlayerId    string             `json:"playerId"`
	Prompt      string             `json:"prompt"`
	SubmittedAt time.Time          `json:"submittedAt"`
	Images      []GeneratedImage   `json:"images"`
	Status      SubmissionStatus   `json:"status"`
}

// ImageSelection is the one GeneratedImage a player chose to represent
// their prompt for the guessing phase.
type ImageSelection struct {
	PlayerId   string    `json:"playerId"`
	ImageId    string    `json:"imageId"`
	SelectedAt time.Time `json:"selectedAt"`
}

// Guess is one guess at one image.
type Guess struct {
	Id          string    `json:"id"`
	ImageId     string    `json:"imageId"`
	PlayerId    string    `json:"playerId"`
	GuessText   string    `json:"guessText"`
	SubmittedAt time.Time `json:"submittedAt"`
	Score       int       `json:"score"`
}

// Round is one play cycle: every player submits a prompt, picks an image
// from their own generated set, then everyone else guesses the prompt
// behind each image in turn.
type Round struct {
	Id     string     `json:"id"`
	Number int        `json:"roundNumber"`
	Status RoundPhase `json:"status"`

	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	CurrentRevealIndex int `json:"currentRevealIndex"`
	CurrentResultIndex int `json:"currentResultIndex"`

	Prompts    map[string]*PromptSubmission `json:"prompts"`
	Selections map[string]ImageSelection    `json:"selections"`

	// Guesses is keyed by imageId, then by guesser playerId. store.go
	// encodes/decodes this as an ordered sequence of [imageId,
	// map[playerId]Guess] pairs in the KV store so round-trips stay
	// order-stable; the in-memory shape is this nested map. Plain JSON
	// encoding of a Round (as sent by internal/gateway and
	// internal/httpapi) omits Guesses entirely.
	Guesses map[string]map[string]*Guess `json:"-"`

	BonusPoints map[string]int `json:"bonusPoints"`
	Scores      map[string]int `json:"scores"`

	// RevealOrder is the sequence of imageIds in selection order — the
	// order CurrentRevealIndex/CurrentResultIndex walk over.
	RevealOrder []string `json:"revealOrder"`

	// RejectedPlayerIds accumulates across an image_generate pass; cleared
	// when the round transitions out of image_generate.
	RejectedPlayerIds []string `json:"rejectedPlayerIds,omitempty"`
}

// ScoreEntry is one player's leaderboard row.
type ScoreEntry struct {
	PlayerId     string `json:"playerId"`
	DisplayName  string `json:"displayName"`
	TotalScore   int    `json:"totalScore"`
	RoundScores  []int  `json:"roundScores"`
	GuessWins    int    `json:"guessWins"`
	PromptPicks  int    `json:"promptPicks"`
}

// Leaderboard tracks cumulative standing across a Game.
type Leaderboard struct {
	Scores   map[string]*ScoreEntry `json:"scores"`
	Rankings []string               `json:"rankings"`
}

// Game is present once a Room leaves PhaseLobby.
type Game struct {
	Id           string      `json:"id"`
	RoomId       string      `json:"roomId"`
	Status       RoundPhase  `json:"status"`
	Settings     GameSettings `json:"settings"`
	CurrentRound int          `json:"currentRound"`
	Rounds       []*Round     `json:"rounds"`
	Leaderboard  Leaderboard  `json:"leaderboard"`
	CreatedAt    time.Time    `json:"createdAt"`
	StartedAt    *time.Time   `json:"startedAt,omitempty"`
	FinishedAt   *time.Time   `json:"finishedAt,omitempty"`
}

// CurrentRoundData returns the 1-indexed current Round, or nil if absent.
func (g *Game) CurrentRoundData() *Round {
	if g == nil || g.CurrentRound < 1 || g.CurrentRound > len(g.Rounds) {
		return nil
	}
	return g.Rounds[g.CurrentRound-1]
}

// Player is a participant in a Room. It is persisted to the KV store, so it
// carries no transport-level state: the live websocket connection lives in
// a gateway.Session keyed by Player.Id, never here.
type Player struct {
	Id          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	IsHost      bool      `json:"isHost"`
	IsReady     bool      `json:"isReady"`
	IsConnected bool      `json:"isConnected"`
	JoinedAt    time.Time `json:"joinedAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

// ToPublicPlayer returns a copy safe to broadcast. Player currently carries
// nothing sensitive, but every component serializing a Player for the wire
// should call through this so a later private field doesn't leak by
// omission.
func (p *Player) ToPublicPlayer() Player {
	return *p
}

// Room is the top-level persisted aggregate: a lobby of players that may
// progress through one Game.
type Room struct {
	Id          string             `json:"id"`
	Code        string             `json:"code"`
	CreatedAt   time.Time          `json:"createdAt"`
	CreatedBy   string             `json:"createdBy"`
	Status      RoomPhase          `json:"status"`
	HostId      string             `json:"hostId"`
	Players     map[string]*Player `json:"players"`
	PlayerOrder []string           `json:"playerOrder"`
	MaxPlayers  int                `json:"maxPlayers"`
	Settings    GameSettings       `json:"settings"`
	Game        *Game              `json:"game,omitempty"`
}

// CurrentRoundData returns the Room's Game's current Round, or nil.
func (r *Room) CurrentRoundData() *Round {
	if r.Game == nil {
		return nil
	}
	return r.Game.CurrentRoundData()
}

// OrderedPlayers returns players in join order (PlayerOrder), skipping any
// id whose Player record is missing.
func (r *Room) OrderedPlayers() []*Player {
	out := make([]*Player, 0, len(r.PlayerOrder))
	for _, id := range r.PlayerOrder {
		if p, ok := r.Players[id]; ok {
			out = append(out, p)
		}
	}
	return out
}
