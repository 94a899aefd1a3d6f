package quizsync

import "encoding/json"

const (
	cmdJoinRoom     = "join_room"
	cmdRejoinRoom   = "rejoin_room"
	cmdStartGame    = "start_game"
	cmdSubmitAnswer = "submit_answer"
	cmdChatMessage  = "chat_message"
	cmdPlayAgain    = "play_again"

	serverTypeEvent = "event"
	serverTypeError = "error"

	eventRoomJoined   = "room_joined"
	eventRoomUpdate   = "room_update"
	eventGameStarting = "game_starting"
	eventNewQuestion  = "new_question"
	eventAnswerReveal = "answer_reveal"
	eventGameEnded    = "game_ended"
	eventGameReset    = "game_reset"
	eventChatMessage  = "chat_message"
	eventError        = "error"
)

// Command is the envelope client -> server.
type Command struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ServerMessage is the envelope server -> client.
type ServerMessage struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// JoinRoomPayload creates or joins a room. RoomCode nil means create; the
// creator becomes host.
type JoinRoomPayload struct {
	Username string  `json:"username"`
	Avatar   string  `json:"avatar"`
	RoomCode *string `json:"roomCode"`
	IsHost   bool    `json:"isHost"`
}

// RejoinRoomPayload resumes a previously joined room after a reconnect.
type RejoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

// GameSettings selects the match configuration for StartGame.
type GameSettings struct {
	Category       string
	Difficulty     string
	TotalQuestions int
}

// StartGamePayload asks the server to start the match. The server rejects
// non-host senders.
type StartGamePayload struct {
	RoomID         string `json:"roomId"`
	Category       string `json:"category"`
	Difficulty     string `json:"difficulty"`
	TotalQuestions int    `json:"totalQuestions"`
}

// SubmitAnswerPayload carries one answer for the active question. Answer nil
// means the countdown expired without a choice.
type SubmitAnswerPayload struct {
	RoomID       string  `json:"roomId"`
	Answer       *string `json:"answer"`
	AnswerTimeMs int     `json:"answerTimeMs"`
}

// ChatPayload publishes a chat line to the room.
type ChatPayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// PlayAgainPayload asks the server to reset the room for a rematch.
type PlayAgainPayload struct {
	RoomID string `json:"roomId"`
}

// Error describes a protocol error.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"message"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Msg
}

// UnmarshalData decodes RawMessage into target.
func UnmarshalData(data json.RawMessage, v any) error {
	return json.Unmarshal(data, v)
}
