package quizsync

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/quizsync/quizsync-sdk/quizsync-go/quizsync/internal"

	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"
)

// task is one unit of work on the client's loop. Inbound events, countdown
// ticks, reconnect outcomes and user commands all funnel through the same
// queue, so no two of them ever touch the session store concurrently.
type task interface{ isTask() }

type inboundTask struct{ msg ServerMessage }

type tickTask struct{ gen int }

type connUpTask struct{}

type disconnectTask struct {
	err    error
	connID int
}

type reconnectedTask struct{ ws *websocket.Conn }

type reconnectFailedTask struct{ err error }

type commandTask struct {
	run   func() error
	reply chan error
}

func (inboundTask) isTask()         {}
func (tickTask) isTask()            {}
func (connUpTask) isTask()          {}
func (disconnectTask) isTask()      {}
func (reconnectedTask) isTask()     {}
func (reconnectFailedTask) isTask() {}
func (commandTask) isTask()         {}

// Client provides the high-level SDK for a quiz game session: it owns the
// WebSocket connection, reconciles local state against server events, drives
// the per-question countdown and exposes the outbound commands.
//
// A Client is single-use: after Close it cannot be reconnected.
type Client struct {
	cfg        Config
	logger     Logger
	clock      clockwork.Clock
	store      *Store
	dispatcher *Dispatcher
	timer      *questionTimer

	tasks   chan task
	writeCh chan Command

	loopCtx    context.Context
	loopCancel context.CancelFunc

	mu         sync.Mutex
	state      ConnectionState
	conn       *internal.Conn
	connID     int
	connCancel context.CancelFunc
	onState    func(StateEvent)
}

// NewClient constructs a client with the provided config. A nil config uses
// DefaultConfig(). The internal loop starts immediately and runs until Close.
func NewClient(cfg *Config) *Client {
	c := &Client{
		logger:  noopLogger{},
		clock:   clockwork.NewRealClock(),
		tasks:   make(chan task, 64),
		writeCh: make(chan Command, 16),
		state:   StateDisconnected,
	}
	if cfg != nil {
		c.cfg = *cfg
	} else {
		c.cfg = DefaultConfig()
	}
	if c.cfg.QuestionDuration <= 0 {
		c.cfg.QuestionDuration = DefaultConfig().QuestionDuration
	}
	c.store = NewStore(c.cfg.QuestionDuration)
	c.dispatcher = newDispatcher(c.store, c.logger)
	c.timer = newQuestionTimer(c.clock)
	c.loopCtx, c.loopCancel = context.WithCancel(context.Background())
	go c.run(c.loopCtx)
	return c
}

// SetLogger overrides the logger (optional).
func (c *Client) SetLogger(l Logger) {
	if l == nil {
		return
	}
	c.logger = l
	c.dispatcher.logger = l
}

// SetClock overrides the clock used for the countdown and reconnect waits.
// Call before Connect; tests inject a fake clock here.
func (c *Client) SetClock(clock clockwork.Clock) {
	if clock == nil {
		return
	}
	c.clock = clock
	c.timer.clock = clock
}

// OnNavigate registers the callback for consumer navigation events.
func (c *Client) OnNavigate(fn func(Navigation)) { c.dispatcher.SetOnNavigate(fn) }

// OnChange registers the callback fired with a fresh snapshot after every
// applied event.
func (c *Client) OnChange(fn func(Session)) { c.dispatcher.SetOnChange(fn) }

// OnError registers the callback for protocol and connection errors.
func (c *Client) OnError(fn func(error)) { c.dispatcher.SetOnError(fn) }

// OnStateChanged registers the callback for connection state transitions.
func (c *Client) OnStateChanged(fn func(StateEvent)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// Snapshot returns a deep copy of the current session state.
func (c *Client) Snapshot() Session { return c.store.Snapshot() }

// Leaderboard returns the roster ordered by descending score. This is a
// derived view; the stored roster keeps server order.
func (c *Client) Leaderboard() []Player { return c.store.Leaderboard() }

// State reports the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the transport session and starts the read/write pumps. At
// most one session is live at a time; calling Connect while a session is
// open or opening leaves it untouched and returns an ErrorAlreadyConnected
// error.
func (c *Client) Connect(ctx context.Context) error {
	if c.loopCtx.Err() != nil {
		return NewError(ErrorDisconnected, "client closed")
	}

	c.mu.Lock()
	switch c.state {
	case StateConnected, StateConnecting, StateReconnecting:
		c.mu.Unlock()
		return NewError(ErrorAlreadyConnected, "session already open")
	}
	ev, fn := c.setStateLocked(StateConnecting, nil)
	c.mu.Unlock()
	if ev != nil && fn != nil {
		fn(*ev)
	}

	ws, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected, err)
		var qe *QuizError
		if errors.As(err, &qe) {
			return err
		}
		return WrapError(ErrorConnection, "dial failed", err)
	}

	c.attach(ws)
	c.setState(StateConnected, nil)
	c.post(connUpTask{})
	return nil
}

// Close shuts down the client: pending reconnects are cancelled, the
// transport is released and the state is cleared to Disconnected.
func (c *Client) Close() error {
	c.loopCancel()

	c.mu.Lock()
	if c.connCancel != nil {
		c.connCancel()
		c.connCancel = nil
	}
	conn := c.conn
	c.conn = nil
	ev, fn := c.setStateLocked(StateDisconnected, nil)
	c.mu.Unlock()
	if ev != nil && fn != nil {
		fn(*ev)
	}

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client close")
	}
	return nil
}

// JoinRoom creates a room (empty roomCode, sender becomes host) or joins an
// existing one. Requires an open connection.
func (c *Client) JoinRoom(ctx context.Context, username, avatar, roomCode string) error {
	return c.do(ctx, func() error {
		if !c.isConnected() {
			return NewError(ErrorNotConnected, "joining a room requires an open connection")
		}
		payload := JoinRoomPayload{
			Username: username,
			Avatar:   avatar,
			IsHost:   roomCode == "",
		}
		if roomCode != "" {
			code := roomCode
			payload.RoomCode = &code
		}
		c.emit(Command{Type: cmdJoinRoom, Data: payload})
		return nil
	})
}

// StartGame asks the server to start the match. Requires a known room; host
// authority is checked by the server, not locally.
func (c *Client) StartGame(ctx context.Context, settings GameSettings) error {
	return c.do(ctx, func() error {
		snap := c.store.Snapshot()
		if snap.Room == nil {
			return NewError(ErrorNoRoom, "starting a game requires a room")
		}
		c.emit(Command{Type: cmdStartGame, Data: StartGamePayload{
			RoomID:         snap.Room.ID,
			Category:       settings.Category,
			Difficulty:     settings.Difficulty,
			TotalQuestions: settings.TotalQuestions,
		}})
		return nil
	})
}

// SubmitAnswer records the local answer optimistically and sends it. A nil
// choice submits a pass. At most one submission is accepted per question; a
// second call is rejected with ErrorAlreadyAnswered.
func (c *Client) SubmitAnswer(ctx context.Context, choice *string) error {
	return c.do(ctx, func() error {
		payload, err := c.store.submitLocally(choice)
		if err != nil {
			return err
		}
		c.timer.Stop()
		c.dispatcher.changed()
		c.emit(Command{Type: cmdSubmitAnswer, Data: payload})
		return nil
	})
}

// SendChat publishes a chat line to the room. Requires a known room and a
// non-empty message.
func (c *Client) SendChat(ctx context.Context, text string) error {
	return c.do(ctx, func() error {
		snap := c.store.Snapshot()
		if snap.Room == nil {
			return NewError(ErrorNoRoom, "chat requires a room")
		}
		if text == "" {
			return NewError(ErrorBadRequest, "empty chat message")
		}
		c.emit(Command{Type: cmdChatMessage, Data: ChatPayload{
			RoomID:  snap.Room.ID,
			Message: text,
		}})
		return nil
	})
}

// PlayAgain requests a rematch. Without a connection and room it records a
// session error instead of emitting.
func (c *Client) PlayAgain(ctx context.Context) error {
	return c.do(ctx, func() error {
		snap := c.store.Snapshot()
		if !c.isConnected() || snap.Room == nil {
			c.store.setSessionError("Connection error. Please refresh the page.")
			c.dispatcher.changed()
			if snap.Room == nil {
				return NewError(ErrorNoRoom, "rematch requires a room")
			}
			return NewError(ErrorNotConnected, "rematch requires an open connection")
		}
		c.emit(Command{Type: cmdPlayAgain, Data: PlayAgainPayload{RoomID: snap.Room.ID}})
		return nil
	})
}

// ReturnToHome resets the session store to its initial empty configuration
// and navigates home. Leaving is a purely local decision, so this is the only
// operation that clears state without a server event. The connection, if
// open, stays open.
func (c *Client) ReturnToHome(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.timer.Stop()
		c.store.reset()
		c.dispatcher.changed()
		c.dispatcher.navigate(Navigation{View: ViewHome})
		return nil
	})
}

// ClearError clears the session error. Best effort once the client is closed.
func (c *Client) ClearError() {
	_ = c.do(context.Background(), func() error {
		c.store.clearSessionError()
		c.dispatcher.changed()
		return nil
	})
}

// do runs fn on the task loop and waits for it, so commands serialize with
// inbound events and countdown ticks.
func (c *Client) do(ctx context.Context, fn func() error) error {
	t := commandTask{run: fn, reply: make(chan error, 1)}
	select {
	case c.tasks <- t:
	case <-c.loopCtx.Done():
		return NewError(ErrorDisconnected, "client closed")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-t.reply:
		return err
	case <-c.loopCtx.Done():
		return NewError(ErrorDisconnected, "client closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) post(t task) {
	select {
	case c.tasks <- t:
	case <-c.loopCtx.Done():
	}
}

func (c *Client) run(ctx context.Context) {
	for {
		select {
		case t := <-c.tasks:
			c.handle(t)
		case <-ctx.Done():
			c.timer.Stop()
			return
		}
	}
}

func (c *Client) handle(t task) {
	switch t := t.(type) {
	case inboundTask:
		c.handleInbound(t.msg)
	case tickTask:
		c.handleTick(t)
	case connUpTask:
		c.handleConnUp()
	case disconnectTask:
		c.handleDisconnect(t)
	case reconnectedTask:
		c.attach(t.ws)
		c.setState(StateConnected, nil)
		c.handleConnUp()
	case reconnectFailedTask:
		c.handleReconnectFailed(t.err)
	case commandTask:
		t.reply <- t.run()
	}
}

func (c *Client) handleInbound(msg ServerMessage) {
	if !c.dispatcher.Dispatch(msg) {
		return
	}
	switch msg.Event {
	case eventNewQuestion:
		// A question outside a running game keeps the frozen countdown; no
		// ticker should spin for it.
		if c.store.phase() == PhasePlaying {
			c.startCountdown()
		}
	case eventAnswerReveal, eventGameEnded, eventGameReset:
		c.timer.Stop()
	}
}

func (c *Client) startCountdown() {
	c.timer.Start(func(gen int) {
		select {
		case c.tasks <- tickTask{gen: gen}:
		case <-c.loopCtx.Done():
		}
	})
}

func (c *Client) handleTick(t tickTask) {
	if t.gen != c.timer.Gen() {
		return
	}
	if _, expired := c.store.tickCountdown(); expired {
		c.timer.Stop()
		c.autoSubmit()
	}
	c.dispatcher.changed()
}

// autoSubmit sends the null answer when the countdown expires with nothing
// recorded. submitLocally enforces exactly-once, so a race with a just-landed
// submission or reveal degrades to a no-op.
func (c *Client) autoSubmit() {
	payload, err := c.store.submitLocally(nil)
	if err != nil {
		return
	}
	c.logger.Info("countdown expired, submitting null answer", map[string]any{
		"answerTimeMs": payload.AnswerTimeMs,
	})
	c.emit(Command{Type: cmdSubmitAnswer, Data: payload})
}

// handleConnUp runs once per successful (re)connection: it clears any
// connection error and, when a room was previously known, emits exactly one
// rejoin so the participant resumes the match instead of dropping to the
// lobby.
func (c *Client) handleConnUp() {
	c.store.clearSessionError()
	c.dispatcher.changed()
	if roomID, playerID, ok := c.store.identity(); ok {
		c.logger.Info("rejoining room after reconnect", map[string]any{
			"roomId":   roomID,
			"playerId": playerID,
		})
		c.emit(Command{Type: cmdRejoinRoom, Data: RejoinRoomPayload{
			RoomID:   roomID,
			PlayerID: playerID,
		}})
	}
}

func (c *Client) handleDisconnect(t disconnectTask) {
	c.mu.Lock()
	if t.connID != c.connID || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	if c.connCancel != nil {
		c.connCancel()
		c.connCancel = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusGoingAway, "connection lost")
	}

	if isGracefulClose(t.err) || !c.cfg.AutoReconnect || c.cfg.MaxReconnectTries <= 0 {
		c.setState(StateDisconnected, t.err)
		return
	}

	c.logger.Warn("connection lost, reconnecting", map[string]any{"error": errString(t.err)})
	c.setState(StateReconnecting, t.err)
	c.store.setSessionError("Connection lost. Attempting to reconnect...")
	c.dispatcher.changed()
	go c.reconnect(c.loopCtx, t.err)
}

func (c *Client) handleReconnectFailed(err error) {
	c.setState(StateFailed, err)
	c.store.setSessionError("Connection lost. Please refresh the page.")
	c.dispatcher.changed()
	c.dispatcher.fireError(WrapError(ErrorDisconnected, "reconnect attempts exhausted", err))
}

// reconnect retries the dial on the injected clock's schedule and reports the
// outcome back to the loop. Teardown cancels it via the loop context.
func (c *Client) reconnect(ctx context.Context, lastErr error) {
	for attempt := 1; attempt <= c.cfg.MaxReconnectTries; attempt++ {
		select {
		case <-c.clock.After(c.cfg.ReconnectInterval):
		case <-ctx.Done():
			return
		}

		c.logger.Info("reconnect attempt", map[string]any{"attempt": attempt})
		ws, err := c.dial(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		select {
		case c.tasks <- reconnectedTask{ws: ws}:
		case <-ctx.Done():
			_ = ws.Close(websocket.StatusNormalClosure, "client close")
		}
		return
	}

	select {
	case c.tasks <- reconnectFailedTask{err: lastErr}:
	case <-ctx.Done():
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	if c.cfg.URL == "" {
		return nil, NewError(ErrorInvalidConfig, "empty server URL")
	}
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, WrapError(ErrorInvalidConfig, "invalid server URL", err)
	}
	return internal.Dial(ctx, u.String(), c.cfg.HandshakeTimeout)
}

// attach installs a fresh connection and starts its pumps.
func (c *Client) attach(ws *websocket.Conn) {
	connCtx, cancel := context.WithCancel(c.loopCtx)

	c.mu.Lock()
	c.connID++
	id := c.connID
	conn := internal.NewConn(ws, c.cfg.ReadTimeout, c.cfg.WriteTimeout)
	c.conn = conn
	c.connCancel = cancel
	c.mu.Unlock()

	go c.readLoop(connCtx, conn, id)
	go c.writeLoop(connCtx, conn, id)
}

func (c *Client) readLoop(ctx context.Context, conn *internal.Conn, id int) {
	for {
		var msg ServerMessage
		if err := conn.Read(ctx, &msg); err != nil {
			if isTeardown(ctx, err) {
				return
			}
			c.logger.Warn("read loop exit", map[string]any{"error": err.Error()})
			c.post(disconnectTask{err: err, connID: id})
			return
		}
		c.post(inboundTask{msg: msg})
	}
}

func (c *Client) writeLoop(ctx context.Context, conn *internal.Conn, id int) {
	for {
		select {
		case cmd := <-c.writeCh:
			if err := conn.Write(ctx, cmd); err != nil {
				if isTeardown(ctx, err) {
					return
				}
				c.logger.Warn("write loop exit", map[string]any{"error": err.Error()})
				c.post(disconnectTask{err: err, connID: id})
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// emit queues cmd for the write pump. The queue survives reconnects, so
// commands issued mid-retry flush after the rejoin. If it fills up anyway
// (a long outage with a chatty consumer) the command is dropped; the loss is
// recorded as the session error and reported, never blocking the loop.
func (c *Client) emit(cmd Command) {
	select {
	case c.writeCh <- cmd:
	default:
		c.logger.Warn("outbound queue full, dropping command", map[string]any{"type": cmd.Type})
		c.store.setSessionError("Could not send " + cmd.Type + ". Please try again.")
		c.dispatcher.fireError(NewError(ErrorConnection, "outbound queue full, dropped "+cmd.Type))
		c.dispatcher.changed()
	}
}

func (c *Client) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

func (c *Client) setState(newState ConnectionState, err error) {
	c.mu.Lock()
	ev, fn := c.setStateLocked(newState, err)
	c.mu.Unlock()
	if ev != nil && fn != nil {
		fn(*ev)
	}
}

// setStateLocked records the transition. Caller holds c.mu and fires the
// returned event after unlocking, so callbacks may call State() safely and
// transitions are reported in order.
func (c *Client) setStateLocked(newState ConnectionState, err error) (*StateEvent, func(StateEvent)) {
	old := c.state
	if old == newState {
		return nil, nil
	}
	c.state = newState
	return &StateEvent{OldState: old, NewState: newState, Error: err}, c.onState
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// isTeardown reports whether the pump exited because of our own shutdown
// rather than a transport failure.
func isTeardown(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// isGracefulClose reports a deliberate server goodbye, which ends the session
// without triggering the retry loop. A raw transport loss (EOF, reset, any
// abnormal status) is what reconnection exists for.
func isGracefulClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
