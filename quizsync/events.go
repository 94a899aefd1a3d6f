package quizsync

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Player is a participant in a room. The id is server-assigned and stable for
// the session; every other field is replaced wholesale on roster updates.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	IsHost   bool   `json:"isHost"`
	Score    int    `json:"score"`
}

// Room is a single match's shared context, identified by a short shareable
// code.
type Room struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Status string `json:"status,omitempty"`
}

// Option is one answer choice for a question.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Options is the ordered answer choices of a question. The server sends them
// either as an ordered [{key,text}] list or as a key->text object; both
// normalize to the list form at ingestion (object form ordered by key). Any
// other shape is a protocol error and rejects the event.
type Options []Option

func (o *Options) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return NewError(ErrorInvalidMessage, "empty options payload")
	}
	switch trimmed[0] {
	case '[':
		var list []Option
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*o = list
		return nil
	case '{':
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(Options, 0, len(keys))
		for _, k := range keys {
			out = append(out, Option{Key: k, Text: m[k]})
		}
		*o = out
		return nil
	default:
		return NewError(ErrorInvalidMessage, "unsupported options shape")
	}
}

// Question is the active question pushed by the server. Exactly one is live
// at a time; a new one atomically clears the previous answer state.
type Question struct {
	ID             string  `json:"id"`
	QuestionNumber int     `json:"questionNumber"`
	TotalQuestions int     `json:"totalQuestions"`
	Question       string  `json:"question"`
	Options        Options `json:"options"`
}

// RoomJoinedEvent confirms room entry. PlayerID identifies the local player
// within the delivered roster.
type RoomJoinedEvent struct {
	Room     Room     `json:"room"`
	Players  []Player `json:"players"`
	PlayerID string   `json:"playerId"`
}

// RoomUpdateEvent carries only the fields the server chose to refresh; absent
// fields leave local state untouched.
type RoomUpdateEvent struct {
	Room    *Room    `json:"room,omitempty"`
	Players []Player `json:"players,omitempty"`
}

// GameStartingEvent announces the match start. Room may be absent; the client
// then falls back to the room code it already knows.
type GameStartingEvent struct {
	Room *Room `json:"room,omitempty"`
}

// AnswerRevealEvent is the server's authoritative disclosure of the correct
// answer and the post-answer scores.
type AnswerRevealEvent struct {
	CorrectAnswer  string   `json:"correctAnswer"`
	Explanation    string   `json:"explanation,omitempty"`
	UpdatedPlayers []Player `json:"updatedPlayers"`
}

// GameEndedEvent closes the match. The leaderboard is required; without it
// the event is a protocol anomaly and is not applied.
type GameEndedEvent struct {
	Leaderboard []Player `json:"leaderboard"`
	RoomCode    string   `json:"roomCode,omitempty"`
}

// GameResetEvent returns the room to the waiting phase for a rematch.
type GameResetEvent struct {
	Room    *Room    `json:"room,omitempty"`
	Players []Player `json:"players,omitempty"`
}

// ChatMessage is one line of room chat. History is append-only in arrival
// order; the client never reorders or deduplicates.
type ChatMessage struct {
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// ErrorEvent surfaces a server-reported, non-fatal error.
type ErrorEvent struct {
	Message string `json:"message"`
}
