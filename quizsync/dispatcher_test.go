package quizsync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(t *testing.T, name string, payload any) ServerMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return ServerMessage{Type: serverTypeEvent, Event: name, Data: raw}
}

func newTestDispatcher() (*Dispatcher, *Store) {
	store := NewStore(10)
	return newDispatcher(store, noopLogger{}), store
}

func joinedEvent(t *testing.T) ServerMessage {
	return event(t, eventRoomJoined, RoomJoinedEvent{
		Room: Room{ID: "r1", Code: "ABCD"},
		Players: []Player{
			{ID: "p1", Username: "alice", IsHost: true},
			{ID: "p2", Username: "bob"},
		},
		PlayerID: "p2",
	})
}

func TestRoomJoinedReplacesStateAndDerivesPlayer(t *testing.T) {
	d, store := newTestDispatcher()
	var nav Navigation
	d.SetOnNavigate(func(n Navigation) { nav = n })

	require.True(t, d.Dispatch(joinedEvent(t)))

	snap := store.Snapshot()
	require.NotNil(t, snap.Room)
	assert.Equal(t, "r1", snap.Room.ID)
	assert.Len(t, snap.Players, 2)
	require.NotNil(t, snap.Player)
	assert.Equal(t, "bob", snap.Player.Username)
	assert.False(t, snap.Player.IsHost)
	assert.Equal(t, Navigation{View: ViewLobby, RoomCode: "ABCD"}, nav)
}

func TestRoomUpdateLeavesAbsentFieldsUntouched(t *testing.T) {
	d, store := newTestDispatcher()
	require.True(t, d.Dispatch(joinedEvent(t)))

	require.True(t, d.Dispatch(event(t, eventRoomUpdate, RoomUpdateEvent{
		Players: []Player{
			{ID: "p1", Username: "alice", IsHost: true},
			{ID: "p2", Username: "bob"},
			{ID: "p3", Username: "carol"},
		},
	})))

	snap := store.Snapshot()
	require.NotNil(t, snap.Room)
	assert.Equal(t, "ABCD", snap.Room.Code, "room untouched when absent from payload")
	assert.Len(t, snap.Players, 3)
}

func TestGameStartingNavigatesWithFallbackCode(t *testing.T) {
	d, store := newTestDispatcher()
	require.True(t, d.Dispatch(joinedEvent(t)))

	var nav Navigation
	d.SetOnNavigate(func(n Navigation) { nav = n })

	require.True(t, d.Dispatch(ServerMessage{Type: serverTypeEvent, Event: eventGameStarting}))

	assert.Equal(t, PhasePlaying, store.Snapshot().Phase)
	assert.Equal(t, Navigation{View: ViewGame, RoomCode: "ABCD"}, nav)
}

func TestNewQuestionResetsAnswerState(t *testing.T) {
	d, store := newTestDispatcher()
	require.True(t, d.Dispatch(joinedEvent(t)))
	require.True(t, d.Dispatch(ServerMessage{Type: serverTypeEvent, Event: eventGameStarting}))
	require.True(t, d.Dispatch(event(t, eventNewQuestion, Question{
		ID: "q1", QuestionNumber: 1, TotalQuestions: 5, Question: "2+2?",
		Options: Options{{Key: "A", Text: "3"}, {Key: "B", Text: "4"}},
	})))

	choice := "B"
	_, err := store.submitLocally(&choice)
	require.NoError(t, err)
	require.True(t, d.Dispatch(event(t, eventAnswerReveal, AnswerRevealEvent{
		CorrectAnswer:  "B",
		UpdatedPlayers: []Player{{ID: "p1", Score: 0}, {ID: "p2", Score: 10}},
	})))

	require.True(t, d.Dispatch(event(t, eventNewQuestion, Question{
		ID: "q2", QuestionNumber: 2, TotalQuestions: 5, Question: "3+3?",
		Options: Options{{Key: "A", Text: "6"}, {Key: "B", Text: "7"}},
	})))

	snap := store.Snapshot()
	require.NotNil(t, snap.Question)
	assert.Equal(t, "q2", snap.Question.ID)
	assert.Equal(t, 10, snap.TimeLeft)
	assert.Nil(t, snap.Submission, "prior submission cleared")
	assert.Nil(t, snap.Result, "prior result cleared")
}

func TestNewQuestionNormalizesMapOptions(t *testing.T) {
	d, store := newTestDispatcher()

	msg := ServerMessage{
		Type:  serverTypeEvent,
		Event: eventNewQuestion,
		Data: json.RawMessage(`{
			"id": "q1",
			"questionNumber": 1,
			"totalQuestions": 5,
			"question": "capital of france?",
			"options": {"B": "London", "A": "Paris", "C": "Berlin"}
		}`),
	}
	require.True(t, d.Dispatch(msg))

	snap := store.Snapshot()
	require.NotNil(t, snap.Question)
	assert.Equal(t, Options{
		{Key: "A", Text: "Paris"},
		{Key: "B", Text: "London"},
		{Key: "C", Text: "Berlin"},
	}, snap.Question.Options)
}

func TestNewQuestionRejectsMalformedOptions(t *testing.T) {
	d, store := newTestDispatcher()
	require.True(t, d.Dispatch(event(t, eventNewQuestion, Question{
		ID: "q1", Options: Options{{Key: "A", Text: "x"}},
	})))

	var gotErr error
	d.SetOnError(func(err error) { gotErr = err })

	msg := ServerMessage{
		Type:  serverTypeEvent,
		Event: eventNewQuestion,
		Data:  json.RawMessage(`{"id": "q2", "options": 42}`),
	}
	assert.False(t, d.Dispatch(msg))

	snap := store.Snapshot()
	require.NotNil(t, snap.Question)
	assert.Equal(t, "q1", snap.Question.ID, "previous question intact")
	require.Error(t, gotErr)
	assert.ErrorIs(t, gotErr, NewError(ErrorSerialization, ""))
}

func TestAnswerRevealReplacesRosterWithScores(t *testing.T) {
	d, store := newTestDispatcher()
	require.True(t, d.Dispatch(joinedEvent(t)))

	require.True(t, d.Dispatch(event(t, eventAnswerReveal, AnswerRevealEvent{
		CorrectAnswer: "A",
		Explanation:   "because",
		UpdatedPlayers: []Player{
			{ID: "p1", Username: "alice", Score: 10},
			{ID: "p2", Username: "bob", Score: 20},
		},
	})))

	snap := store.Snapshot()
	require.NotNil(t, snap.Result)
	assert.Equal(t, "A", snap.Result.CorrectAnswer)
	require.NotNil(t, snap.Player)
	assert.Equal(t, 20, snap.Player.Score, "local player refreshed from updated roster")
}

func TestGameEndedStoresLeaderboardVerbatim(t *testing.T) {
	d, store := newTestDispatcher()
	require.True(t, d.Dispatch(joinedEvent(t)))

	var nav Navigation
	d.SetOnNavigate(func(n Navigation) { nav = n })

	leaderboard := []Player{
		{ID: "p1", Username: "A", Score: 30},
		{ID: "p2", Username: "B", Score: 20},
	}
	require.True(t, d.Dispatch(event(t, eventGameEnded, GameEndedEvent{
		Leaderboard: leaderboard,
		RoomCode:    "ABCD",
	})))

	snap := store.Snapshot()
	assert.Equal(t, PhaseFinished, snap.Phase)
	assert.Equal(t, leaderboard, snap.Players, "stored roster equals leaderboard verbatim")
	require.NotNil(t, snap.Player)
	assert.Equal(t, 20, snap.Player.Score)
	assert.Equal(t, Navigation{View: ViewResults, RoomCode: "ABCD"}, nav)
}

func TestGameEndedWithoutLeaderboardKeepsPhase(t *testing.T) {
	d, store := newTestDispatcher()
	require.True(t, d.Dispatch(joinedEvent(t)))
	require.True(t, d.Dispatch(ServerMessage{Type: serverTypeEvent, Event: eventGameStarting}))

	var gotErr error
	d.SetOnError(func(err error) { gotErr = err })

	assert.False(t, d.Dispatch(event(t, eventGameEnded, GameEndedEvent{RoomCode: "ABCD"})))

	assert.Equal(t, PhasePlaying, store.Snapshot().Phase, "phase unchanged without a usable roster")
	require.Error(t, gotErr)
	assert.ErrorIs(t, gotErr, NewError(ErrorInvalidMessage, ""))
}

func TestGameResetClearsChatAndNavigates(t *testing.T) {
	d, store := newTestDispatcher()
	require.True(t, d.Dispatch(joinedEvent(t)))
	require.True(t, d.Dispatch(event(t, eventChatMessage, ChatMessage{PlayerID: "p1", Username: "alice", Message: "gg"})))

	var nav Navigation
	d.SetOnNavigate(func(n Navigation) { nav = n })

	require.True(t, d.Dispatch(event(t, eventGameReset, GameResetEvent{
		Room:    &Room{ID: "r1", Code: "ABCD"},
		Players: []Player{{ID: "p1"}, {ID: "p2"}},
	})))

	snap := store.Snapshot()
	assert.Equal(t, PhaseWaiting, snap.Phase)
	assert.Empty(t, snap.Chat, "chat history cleared")
	assert.Equal(t, Navigation{View: ViewLobby, RoomCode: "ABCD"}, nav)

	// Without a room code the consumer is sent home.
	require.True(t, d.Dispatch(ServerMessage{Type: serverTypeEvent, Event: eventGameReset}))
	assert.Equal(t, Navigation{View: ViewHome}, nav)
}

func TestChatAppendsInArrivalOrder(t *testing.T) {
	d, store := newTestDispatcher()
	require.True(t, d.Dispatch(event(t, eventChatMessage, ChatMessage{Username: "alice", Message: "first"})))
	require.True(t, d.Dispatch(event(t, eventChatMessage, ChatMessage{Username: "bob", Message: "second"})))
	require.True(t, d.Dispatch(event(t, eventChatMessage, ChatMessage{Username: "alice", Message: "first"})))

	snap := store.Snapshot()
	require.Len(t, snap.Chat, 3, "duplicates kept, order preserved")
	assert.Equal(t, "first", snap.Chat[0].Message)
	assert.Equal(t, "second", snap.Chat[1].Message)
	assert.Equal(t, "first", snap.Chat[2].Message)
}

func TestErrorEventSetsSessionErrorOnly(t *testing.T) {
	d, store := newTestDispatcher()
	require.True(t, d.Dispatch(joinedEvent(t)))
	before := store.Snapshot()

	require.True(t, d.Dispatch(event(t, eventError, ErrorEvent{Message: "room is full"})))

	snap := store.Snapshot()
	assert.Equal(t, "room is full", snap.Err)
	assert.Equal(t, before.Room, snap.Room, "no other state altered")
	assert.Equal(t, before.Players, snap.Players)
	assert.Equal(t, before.Phase, snap.Phase)
}

func TestUnknownEventIgnored(t *testing.T) {
	d, store := newTestDispatcher()
	before := store.Snapshot()
	assert.False(t, d.Dispatch(ServerMessage{Type: serverTypeEvent, Event: "mystery"}))
	assert.Equal(t, before, store.Snapshot())
}

func TestReplayDeterminism(t *testing.T) {
	sequence := func(t *testing.T) []ServerMessage {
		return []ServerMessage{
			joinedEvent(t),
			event(t, eventChatMessage, ChatMessage{Username: "alice", Message: "hi"}),
			{Type: serverTypeEvent, Event: eventGameStarting},
			event(t, eventNewQuestion, Question{
				ID: "q1", QuestionNumber: 1, TotalQuestions: 2,
				Options: Options{{Key: "A", Text: "x"}, {Key: "B", Text: "y"}},
			}),
			event(t, eventAnswerReveal, AnswerRevealEvent{
				CorrectAnswer:  "A",
				UpdatedPlayers: []Player{{ID: "p1", Score: 10}, {ID: "p2", Score: 0}},
			}),
			event(t, eventGameEnded, GameEndedEvent{
				Leaderboard: []Player{{ID: "p1", Score: 10}, {ID: "p2", Score: 0}},
				RoomCode:    "ABCD",
			}),
		}
	}

	run := func(t *testing.T) Session {
		d, store := newTestDispatcher()
		for _, msg := range sequence(t) {
			require.True(t, d.Dispatch(msg))
		}
		return store.Snapshot()
	}

	assert.Equal(t, run(t), run(t), "replaying the same events yields the same store")
}
