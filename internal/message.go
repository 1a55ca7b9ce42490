package internal

// Message is the generic envelope every session exchanges over the
// bidirectional channel. Type selects how Data is interpreted on both
// sides of the wire.
type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// Client→server command type strings (internal/gateway's read loop
// switches on these exactly).
const (
	CmdRoomJoin          = "room:join"
	CmdPlayerReady       = "player:ready"
	CmdGameStart         = "game:start"
	CmdSubmitPrompt      = "game:submit_prompt"
	CmdResubmitPrompt    = "game:resubmit_prompt"
	CmdSelectImage       = "game:select_image"
	CmdSubmitGuess       = "game:submit_guess"
	CmdNavigateResult    = "game:navigate_result"
	CmdCompleteReveal    = "game:complete_reveal"
	CmdNextRound         = "game:next_round"
)

// Server→client notification type strings.
const (
	EventRoomUpdate        = "room:update"
	EventPlayerJoined      = "player:joined"
	EventPlayerLeft        = "player:left"
	EventPlayerReadyChange = "player:ready_changed"
	EventGameStarted       = "game:started"
	EventPromptSubmitted   = "game:prompt_submitted"
	EventPromptRejected    = "game:prompt_rejected"
	EventPhaseTransition   = "game:phase_transition"
	EventImageProgress     = "game:image_progress"
	EventError             = "error"
)

// RoomJoinData is the payload of the room:join command binding a
// connection to (roomId, playerId) after the HTTP create/join handshake.
type RoomJoinData struct {
	RoomId   string `json:"roomId"`
	PlayerId string `json:"playerId"`
}

// PlayerReadyData is the payload of player:ready.
type PlayerReadyData struct {
	IsReady bool `json:"isReady"`
}

// SubmitPromptData is the payload of game:submit_prompt and
// game:resubmit_prompt.
type SubmitPromptData struct {
	Text string `json:"text"`
}

// SelectImageData is the payload of game:select_image.
type SelectImageData struct {
	ImageId string `json:"imageId"`
}

// SubmitGuessData is the payload of game:submit_guess.
type SubmitGuessData struct {
	ImageId   string `json:"imageId"`
	GuessText string `json:"guessText"`
}

// NavigateResultData is the payload of game:navigate_result.
type NavigateResultData struct {
	Direction string `json:"direction"` // "next" | "previous"
}

// PlayerJoinedData accompanies player:joined.
type PlayerJoinedData struct {
	Player      *Player `json:"player"`
	PlayerCount int     `json:"playerCount"`
	CanStart    bool    `json:"canStart"`
}

// PlayerLeftData accompanies player:left.
type PlayerLeftData struct {
	PlayerId    string  `json:"playerId"`
	DisplayName string  `json:"displayName"`
	Reason      string  `json:"reason"` // "disconnect" | "kicked" | "left"
	PlayerCount int      `json:"playerCount"`
	NewHostId   string   `json:"newHostId,omitempty"`
}

// PlayerReadyChangedData accompanies player:ready_changed.
type PlayerReadyChangedData struct {
	PlayerId string `json:"playerId"`
	IsReady  bool   `json:"isReady"`
}

// PromptRejectedData accompanies game:prompt_rejected, unicast to the
// submitter only.
type PromptRejectedData struct {
	Reason string `json:"reason"`
}

// PhaseTransitionData accompanies game:phase_transition and
// game:image_progress — both carry a full Game snapshot plus the phase
// that triggered the notification.
type PhaseTransitionData struct {
	Game  *Game      `json:"game"`
	Phase RoundPhase `json:"phase"`
}

// ErrorData accompanies the error event, unicast to the caller whose
// command failed.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

// RoomUpdateData accompanies room:update, broadcast after roster changes
// and after most accepted game commands, carrying the full Room.
type RoomUpdateData struct {
	Room *Room `json:"room"`
}
