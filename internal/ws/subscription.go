package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/felipemacedo1/go-msg-wss-app/internal/observability"
)

// State of a subscription's underlying transport connection.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// FrameHandler receives raw frames from the transport. The subscription does
// not parse or interpret frame content.
type FrameHandler func(data []byte)

// StateHandler observes transport transitions: StateOpen on every successful
// connect, StateErrored on a drop, and StateClosed only when the reconnect
// policy is exhausted. An explicit Close is not reported back to its caller.
type StateHandler func(state State)

// Subscription owns one live websocket connection to a room's subscribe
// endpoint. On an unexpected drop it reconnects per its policy; Close is
// idempotent and terminal.
type Subscription struct {
	url     string
	handler FrameHandler
	onState StateHandler
	policy  ReconnectPolicy
	dialer  *websocket.Dialer
	ctx     context.Context

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	timer    *time.Timer
	closed   bool
	attempts int
	connID   string
	openedAt time.Time
}

// Open starts a subscription to url, delivering frames to handler and
// transitions to onState (which may be nil). It returns immediately; the
// connection is established in the background.
func Open(ctx context.Context, url string, handler FrameHandler, policy ReconnectPolicy, onState StateHandler) *Subscription {
	if policy.Delay <= 0 {
		policy.Delay = DefaultReconnectPolicy().Delay
	}
	s := &Subscription{
		url:     url,
		handler: handler,
		onState: onState,
		policy:  policy,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		ctx:     ctx,
		state:   StateConnecting,
	}
	go s.connect()
	return s
}

// State returns the current connection state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close tears the subscription down. It cancels any pending reconnect and
// may be called any number of times.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	conn := s.conn
	s.conn = nil
	wasOpen := s.state == StateOpen
	s.state = StateClosed
	connID := s.connID
	openedAt := s.openedAt
	s.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
	if wasOpen {
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		log.Printf("ws closed url=%s conn_id=%s duration_ms=%d", s.url, connID, time.Since(openedAt).Milliseconds())
	}
}

func (s *Subscription) connect() {
	ctx, span := otel.Tracer("go-msg-wss-app/ws").Start(s.ctx, "ws.dial")
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	span.End()
	if err != nil {
		log.Printf("ws connect failed url=%s: %v", s.url, err)
		observability.IncWSEvent("ws_error")
		s.scheduleReconnect()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.state = StateOpen
	s.attempts = 0
	s.connID = newConnID()
	s.openedAt = time.Now()
	connID := s.connID
	s.mu.Unlock()

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	log.Printf("ws connected url=%s conn_id=%s", s.url, connID)
	s.notify(StateOpen)

	go s.readLoop(conn)
}

func (s *Subscription) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.onDrop(err)
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		s.handler(data)
	}
}

func (s *Subscription) onDrop(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state = StateErrored
	conn := s.conn
	s.conn = nil
	connID := s.connID
	openedAt := s.openedAt
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	observability.DecWSActive()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		observability.IncWSEvent("ws_disconnect")
	} else {
		observability.IncWSEvent("ws_error")
	}
	log.Printf("ws dropped url=%s conn_id=%s duration_ms=%d reason=%v", s.url, connID, time.Since(openedAt).Milliseconds(), err)
	s.notify(StateErrored)

	s.scheduleReconnect()
}

func (s *Subscription) scheduleReconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.attempts++
	if s.policy.MaxAttempts > 0 && s.attempts > s.policy.MaxAttempts {
		s.state = StateClosed
		attempts := s.attempts - 1
		s.mu.Unlock()
		log.Printf("ws giving up url=%s after %d attempts", s.url, attempts)
		s.notify(StateClosed)
		return
	}
	s.state = StateConnecting
	s.timer = time.AfterFunc(s.policy.Delay, s.connect)
	s.mu.Unlock()
	observability.IncWSEvent("ws_reconnect")
}

func (s *Subscription) notify(state State) {
	if s.onState != nil {
		s.onState(state)
	}
}

func newConnID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "sub-unknown"
	}
	return "sub-" + hex.EncodeToString(buf)
}
