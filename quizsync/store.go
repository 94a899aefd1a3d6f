package quizsync

import (
	"sort"
	"sync"
)

// AnswerSubmission is the local record of this participant's answer for the
// active question. At most one exists per question; once set it is immutable
// until the next question arrives.
type AnswerSubmission struct {
	Answer       *string
	AnswerTimeMs int
}

// Session is the aggregate game state owned by the SDK: one room, one roster,
// one active question, one phase. Consumers receive copies via Snapshot; all
// mutation happens on the client's task loop.
type Session struct {
	Phase      GamePhase
	Room       *Room
	Players    []Player
	Player     *Player
	Question   *Question
	TimeLeft   int
	Submission *AnswerSubmission
	Result     *AnswerRevealEvent
	Chat       []ChatMessage
	Err        string
}

// Store holds the session aggregate behind a lock. Writers are the event
// dispatcher and the command guards, both serialized on the client loop;
// Snapshot and Leaderboard are safe from any goroutine.
type Store struct {
	mu       sync.RWMutex
	duration int
	s        Session
}

// NewStore returns a store in its initial empty configuration.
func NewStore(questionDuration int) *Store {
	return &Store{
		duration: questionDuration,
		s:        initialSession(questionDuration),
	}
}

func initialSession(duration int) Session {
	return Session{Phase: PhaseWaiting, TimeLeft: duration}
}

// Snapshot returns a deep copy of the session. Mutating the copy never
// affects the store.
func (st *Store) Snapshot() Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := st.s
	out.Players = append([]Player(nil), st.s.Players...)
	out.Chat = append([]ChatMessage(nil), st.s.Chat...)
	if st.s.Room != nil {
		r := *st.s.Room
		out.Room = &r
	}
	if st.s.Player != nil {
		p := *st.s.Player
		out.Player = &p
	}
	if st.s.Question != nil {
		q := *st.s.Question
		q.Options = append(Options(nil), st.s.Question.Options...)
		out.Question = &q
	}
	if st.s.Submission != nil {
		sub := *st.s.Submission
		out.Submission = &sub
	}
	if st.s.Result != nil {
		res := *st.s.Result
		res.UpdatedPlayers = append([]Player(nil), st.s.Result.UpdatedPlayers...)
		out.Result = &res
	}
	return out
}

// Leaderboard is a derived view: the roster ordered by descending score.
// The stored roster keeps server order; ranking exists only in this copy.
func (st *Store) Leaderboard() []Player {
	st.mu.RLock()
	players := append([]Player(nil), st.s.Players...)
	st.mu.RUnlock()

	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})
	return players
}

func (st *Store) roomCode() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.s.Room == nil {
		return ""
	}
	return st.s.Room.Code
}

func (st *Store) phase() GamePhase {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.Phase
}

func (st *Store) identity() (roomID, playerID string, ok bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.s.Room == nil || st.s.Player == nil {
		return "", "", false
	}
	return st.s.Room.ID, st.s.Player.ID, true
}

// reset restores the initial empty configuration. The connection, if any,
// is untouched.
func (st *Store) reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = initialSession(st.duration)
}

func (st *Store) roomJoined(ev RoomJoinedEvent) {
	st.mu.Lock()
	defer st.mu.Unlock()
	room := ev.Room
	st.s.Room = &room
	st.s.Players = ev.Players
	st.s.Player = findPlayer(ev.Players, ev.PlayerID)
}

func (st *Store) roomUpdate(ev RoomUpdateEvent) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if ev.Room != nil {
		room := *ev.Room
		st.s.Room = &room
	}
	if ev.Players != nil {
		st.s.Players = ev.Players
		st.rederiveLocked()
	}
}

func (st *Store) gameStarting() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Phase = PhasePlaying
}

func (st *Store) newQuestion(q Question) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Question = &q
	st.s.TimeLeft = st.duration
	st.s.Submission = nil
	st.s.Result = nil
}

func (st *Store) answerReveal(ev AnswerRevealEvent) {
	st.mu.Lock()
	defer st.mu.Unlock()
	res := ev
	st.s.Result = &res
	st.s.Players = ev.UpdatedPlayers
	st.rederiveLocked()
}

func (st *Store) gameEnded(ev GameEndedEvent) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Phase = PhaseFinished
	st.s.Players = ev.Leaderboard
	st.rederiveLocked()
}

func (st *Store) gameReset(ev GameResetEvent) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if ev.Room != nil {
		room := *ev.Room
		st.s.Room = &room
	}
	if ev.Players != nil {
		st.s.Players = ev.Players
		st.rederiveLocked()
	}
	st.s.Phase = PhaseWaiting
	st.s.Chat = nil
}

func (st *Store) appendChat(m ChatMessage) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Chat = append(st.s.Chat, m)
}

func (st *Store) setSessionError(msg string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Err = msg
}

func (st *Store) clearSessionError() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Err = ""
}

// submitLocally records the optimistic answer and returns the wire payload.
// It is the single gate enforcing at-most-one submission per question, for
// both user answers and the countdown's null submission.
func (st *Store) submitLocally(answer *string) (*SubmitAnswerPayload, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	switch {
	case st.s.Room == nil:
		return nil, NewError(ErrorNoRoom, "no active room")
	case st.s.Question == nil:
		return nil, NewError(ErrorNoQuestion, "no active question")
	case st.s.Submission != nil || st.s.Result != nil:
		return nil, NewError(ErrorAlreadyAnswered, "answer already recorded for this question")
	}
	elapsed := (st.duration - st.s.TimeLeft) * 1000
	st.s.Submission = &AnswerSubmission{Answer: answer, AnswerTimeMs: elapsed}
	return &SubmitAnswerPayload{
		RoomID:       st.s.Room.ID,
		Answer:       answer,
		AnswerTimeMs: elapsed,
	}, nil
}

// tickCountdown decrements the countdown by one unit. It reports expiry only
// on the transition to zero, and freezes as soon as a submission or reveal
// exists.
func (st *Store) tickCountdown() (remaining int, expired bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.Question == nil || st.s.Phase != PhasePlaying ||
		st.s.Submission != nil || st.s.Result != nil || st.s.TimeLeft <= 0 {
		return st.s.TimeLeft, false
	}
	st.s.TimeLeft--
	return st.s.TimeLeft, st.s.TimeLeft == 0
}

// rederiveLocked refreshes the local player from the current roster by
// identity match. Caller holds the write lock.
func (st *Store) rederiveLocked() {
	if st.s.Player == nil {
		return
	}
	if p := findPlayer(st.s.Players, st.s.Player.ID); p != nil {
		st.s.Player = p
	}
}

func findPlayer(players []Player, id string) *Player {
	if id == "" {
		return nil
	}
	for i := range players {
		if players[i].ID == id {
			p := players[i]
			return &p
		}
	}
	return nil
}
