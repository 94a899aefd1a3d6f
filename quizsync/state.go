package quizsync

// ConnectionState represents the current state of the WebSocket session.
// Transitions are driven only by the client's connection management.
type ConnectionState int

const (
	// StateDisconnected means no session is open.
	StateDisconnected ConnectionState = iota

	// StateConnecting means the client is establishing a session.
	StateConnecting

	// StateConnected means the session is open and ready.
	StateConnected

	// StateReconnecting means the client lost the session and is retrying.
	StateReconnecting

	// StateFailed means the retry budget is exhausted; a new client is needed.
	StateFailed
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateEvent represents a connection state change.
type StateEvent struct {
	OldState ConnectionState
	NewState ConnectionState
	Error    error // Optional error that caused the state change
}

// GamePhase is the match's coarse lifecycle stage. It is strictly
// server-driven; the client never infers a phase transition locally.
type GamePhase int

const (
	PhaseWaiting GamePhase = iota
	PhasePlaying
	PhaseFinished
)

func (p GamePhase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhasePlaying:
		return "playing"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// View identifies the screen a consumer should show after an event.
type View int

const (
	ViewHome View = iota
	ViewLobby
	ViewGame
	ViewResults
)

func (v View) String() string {
	switch v {
	case ViewHome:
		return "home"
	case ViewLobby:
		return "lobby"
	case ViewGame:
		return "game"
	case ViewResults:
		return "results"
	default:
		return "unknown"
	}
}

// Navigation is pushed to the consumer when an event demands a screen change.
type Navigation struct {
	View     View
	RoomCode string
}
