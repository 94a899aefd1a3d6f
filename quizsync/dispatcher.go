package quizsync

import "encoding/json"

// Dispatcher applies inbound server events to the session store, one event at
// a time in arrival order. Every applied event is a single atomic store
// transition; a malformed payload rejects the whole event and leaves the
// store untouched.
//
// Callbacks run on the client's internal loop. Do not call command methods
// from inside a callback; spawn a goroutine instead.
type Dispatcher struct {
	store  *Store
	logger Logger

	onNavigate func(Navigation)
	onChange   func(Session)
	onError    func(error)
}

func newDispatcher(store *Store, logger Logger) *Dispatcher {
	return &Dispatcher{store: store, logger: logger}
}

// SetOnNavigate registers the callback fired when an event demands a screen
// change. Navigation always fires after the event's state has committed.
func (d *Dispatcher) SetOnNavigate(fn func(Navigation)) { d.onNavigate = fn }

// SetOnChange registers the callback fired with a fresh snapshot after every
// applied event.
func (d *Dispatcher) SetOnChange(fn func(Session)) { d.onChange = fn }

// SetOnError registers the callback for protocol and decode errors.
func (d *Dispatcher) SetOnError(fn func(error)) { d.onError = fn }

// Dispatch applies one server message and reports whether it was applied.
func (d *Dispatcher) Dispatch(msg ServerMessage) bool {
	if msg.Type == serverTypeError && msg.Error != nil {
		d.store.setSessionError(msg.Error.Msg)
		d.fireError(FromProtocolError(msg.Error))
		d.changed()
		return true
	}

	switch msg.Event {
	case eventRoomJoined:
		var ev RoomJoinedEvent
		if err := UnmarshalData(msg.Data, &ev); err != nil {
			d.rejected(msg.Event, err)
			return false
		}
		d.store.roomJoined(ev)
		d.changed()
		d.navigate(Navigation{View: ViewLobby, RoomCode: ev.Room.Code})

	case eventRoomUpdate:
		var ev RoomUpdateEvent
		if err := decodeOptional(msg.Data, &ev); err != nil {
			d.rejected(msg.Event, err)
			return false
		}
		d.store.roomUpdate(ev)
		d.changed()

	case eventGameStarting:
		var ev GameStartingEvent
		if err := decodeOptional(msg.Data, &ev); err != nil {
			d.rejected(msg.Event, err)
			return false
		}
		d.store.gameStarting()
		d.changed()
		code := ""
		if ev.Room != nil {
			code = ev.Room.Code
		}
		if code == "" {
			code = d.store.roomCode()
		}
		d.navigate(Navigation{View: ViewGame, RoomCode: code})

	case eventNewQuestion:
		var q Question
		if err := UnmarshalData(msg.Data, &q); err != nil {
			d.rejected(msg.Event, err)
			return false
		}
		d.store.newQuestion(q)
		d.changed()

	case eventAnswerReveal:
		var ev AnswerRevealEvent
		if err := UnmarshalData(msg.Data, &ev); err != nil {
			d.rejected(msg.Event, err)
			return false
		}
		d.store.answerReveal(ev)
		d.changed()

	case eventGameEnded:
		var ev GameEndedEvent
		if err := decodeOptional(msg.Data, &ev); err != nil {
			d.rejected(msg.Event, err)
			return false
		}
		if len(ev.Leaderboard) == 0 {
			// Finishing without a roster would present an empty results
			// view; keep the current phase and record the anomaly.
			d.logger.Error("game_ended event without leaderboard, ignoring", nil)
			d.fireError(NewError(ErrorInvalidMessage, "game_ended event missing leaderboard"))
			return false
		}
		d.store.gameEnded(ev)
		d.changed()
		code := ev.RoomCode
		if code == "" {
			code = d.store.roomCode()
		}
		d.navigate(Navigation{View: ViewResults, RoomCode: code})

	case eventGameReset:
		var ev GameResetEvent
		if err := decodeOptional(msg.Data, &ev); err != nil {
			d.rejected(msg.Event, err)
			return false
		}
		d.store.gameReset(ev)
		d.changed()
		if ev.Room != nil && ev.Room.Code != "" {
			d.navigate(Navigation{View: ViewLobby, RoomCode: ev.Room.Code})
		} else {
			d.logger.Warn("game_reset event without room code, returning home", nil)
			d.navigate(Navigation{View: ViewHome})
		}

	case eventChatMessage:
		var m ChatMessage
		if err := UnmarshalData(msg.Data, &m); err != nil {
			d.rejected(msg.Event, err)
			return false
		}
		d.store.appendChat(m)
		d.changed()

	case eventError:
		var ev ErrorEvent
		if err := decodeOptional(msg.Data, &ev); err != nil {
			d.rejected(msg.Event, err)
			return false
		}
		d.store.setSessionError(ev.Message)
		d.fireError(FromProtocolError(&Error{Code: "error", Msg: ev.Message}))
		d.changed()

	default:
		d.logger.Warn("unknown event", map[string]any{"event": msg.Event})
		return false
	}
	return true
}

// decodeOptional tolerates an absent payload for events whose fields are all
// optional.
func decodeOptional(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return UnmarshalData(data, v)
}

func (d *Dispatcher) rejected(event string, err error) {
	d.logger.Error("failed to unmarshal event", map[string]any{"event": event, "error": err.Error()})
	d.fireError(WrapError(ErrorSerialization, "failed to unmarshal "+event+" event", err))
}

func (d *Dispatcher) navigate(nav Navigation) {
	if d.onNavigate != nil {
		d.onNavigate(nav)
	}
}

func (d *Dispatcher) changed() {
	if d.onChange != nil {
		d.onChange(d.store.Snapshot())
	}
}

func (d *Dispatcher) fireError(err error) {
	if d.onError != nil && err != nil {
		d.onError(err)
	}
}
