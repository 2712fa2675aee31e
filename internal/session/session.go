package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/felipemacedo1/go-msg-wss-app/internal/archive"
	"github.com/felipemacedo1/go-msg-wss-app/internal/models"
	"github.com/felipemacedo1/go-msg-wss-app/internal/observability"
	"github.com/felipemacedo1/go-msg-wss-app/internal/rabbitmq"
	"github.com/felipemacedo1/go-msg-wss-app/internal/telemetry"
	"github.com/felipemacedo1/go-msg-wss-app/internal/ws"
)

// ErrLiveFeedLost is reported through OnError when the live subscription
// exhausts its reconnect policy. The session keeps its installed messages
// but receives no further events.
var ErrLiveFeedLost = errors.New("live subscription lost")

// Pre-snapshot frames beyond this are dropped oldest-first; a snapshot that
// keeps failing must not grow the buffer without bound.
const maxBufferedFrames = 256

// SnapshotSource fetches the initial message history of a room.
type SnapshotSource interface {
	ListMessages(ctx context.Context, roomID string) ([]models.Message, error)
}

// Options configures a Session. Mirror, Archive and Audit are optional.
type Options struct {
	Policy   ws.ReconnectPolicy
	OnChange func(msgs []models.Message)
	OnError  func(err error)
	Mirror   rabbitmq.Publisher
	Archive  archive.Store
	Audit    *telemetry.AuditEmitter
	Nickname string
}

// MirrorEnvelope is the shape republished to the event mirror exchange.
type MirrorEnvelope struct {
	RoomID string          `json:"room_id"`
	Kind   string          `json:"kind"`
	Frame  json.RawMessage `json:"frame"`
}

// Session synchronizes one room: it installs the history snapshot, keeps a
// live subscription open and reconciles inbound events into an ordered
// message collection. All state mutation happens on a single internal loop.
//
// Events that arrive before the snapshot is installed are buffered and
// replayed, in arrival order, once it is.
type Session struct {
	roomID string
	wsURL  string
	source SnapshotSource
	opts   Options

	frames    chan []byte
	snapshots chan snapshotResult
	states    chan ws.State
	refresh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	sub *ws.Subscription

	mu        sync.RWMutex
	messages  []models.Message
	installed bool
}

type snapshotResult struct {
	msgs []models.Message
	err  error
}

// New builds a session for roomID. Call Start to begin synchronizing.
func New(roomID, wsURL string, source SnapshotSource, opts Options) *Session {
	return &Session{
		roomID:    roomID,
		wsURL:     wsURL,
		source:    source,
		opts:      opts,
		frames:    make(chan []byte, 64),
		snapshots: make(chan snapshotResult, 1),
		states:    make(chan ws.State, 8),
		refresh:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Start opens the live subscription, kicks off the snapshot fetch and runs
// the reconcile loop until Close.
func (s *Session) Start(ctx context.Context) {
	s.sub = ws.Open(ctx, s.wsURL, s.enqueueFrame, s.opts.Policy, s.enqueueState)
	go s.fetchSnapshot(ctx)
	go s.run()

	s.opts.Audit.Emit(ctx, "INFO", "session opened", s.roomID, s.nickname())
}

// Refresh re-issues the snapshot fetch, e.g. after a surfaced load error.
func (s *Session) Refresh(ctx context.Context) {
	select {
	case s.refresh <- struct{}{}:
		go s.fetchSnapshot(ctx)
	default:
	}
}

// Close releases the subscription and stops the loop. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.sub != nil {
			s.sub.Close()
		}
		s.opts.Audit.Emit(context.Background(), "INFO", "session closed", s.roomID, s.nickname())
	})
}

// Messages returns a copy of the current ordered collection.
func (s *Session) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Info describes the session for the status endpoint.
type Info struct {
	RoomID    string `json:"room_id"`
	State     string `json:"state"`
	Installed bool   `json:"snapshot_installed"`
	Messages  int    `json:"messages"`
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := "connecting"
	if s.sub != nil {
		state = s.sub.State().String()
	}
	return Info{
		RoomID:    s.roomID,
		State:     state,
		Installed: s.installed,
		Messages:  len(s.messages),
	}
}

func (s *Session) enqueueFrame(data []byte) {
	frame := make([]byte, len(data))
	copy(frame, data)
	select {
	case s.frames <- frame:
	case <-s.done:
	}
}

func (s *Session) enqueueState(state ws.State) {
	select {
	case s.states <- state:
	case <-s.done:
	}
}

func (s *Session) fetchSnapshot(ctx context.Context) {
	msgs, err := s.source.ListMessages(ctx, s.roomID)
	select {
	case s.snapshots <- snapshotResult{msgs: msgs, err: err}:
	case <-s.done:
		// Stale-response guard: a snapshot resolving after teardown is dropped.
	}
}

func (s *Session) run() {
	var buffered [][]byte
	everOpen := false

	for {
		select {
		case <-s.done:
			return

		case state := <-s.states:
			switch state {
			case ws.StateOpen:
				if everOpen {
					log.Printf("session %s: live subscription recovered", s.roomID)
					s.opts.Audit.Emit(context.Background(), "INFO", "session recovered", s.roomID, s.nickname())
				}
				everOpen = true
			case ws.StateClosed:
				log.Printf("session %s: live subscription lost, reconnect attempts exhausted", s.roomID)
				s.opts.Audit.Emit(context.Background(), "ERROR", "session lost", s.roomID, s.nickname())
				if s.opts.OnError != nil {
					s.opts.OnError(ErrLiveFeedLost)
				}
			}

		case res := <-s.snapshots:
			drainRefresh(s.refresh)
			if res.err != nil {
				log.Printf("session %s: snapshot fetch failed: %v", s.roomID, res.err)
				if s.opts.OnError != nil {
					s.opts.OnError(res.err)
				}
				continue
			}
			s.install(res.msgs)
			for _, frame := range buffered {
				s.applyFrame(frame)
			}
			buffered = nil

		case frame := <-s.frames:
			if !s.isInstalled() {
				if len(buffered) == maxBufferedFrames {
					buffered = buffered[1:]
				}
				buffered = append(buffered, frame)
				continue
			}
			s.applyFrame(frame)
		}
	}
}

func (s *Session) install(msgs []models.Message) {
	s.mu.Lock()
	s.messages = msgs
	s.installed = true
	s.mu.Unlock()

	if err := s.archive().SaveSnapshot(context.Background(), s.roomID, msgs); err != nil {
		log.Printf("session %s: archive snapshot failed: %v", s.roomID, err)
	}
	s.notify()
}

func (s *Session) applyFrame(frame []byte) {
	ev, err := models.DecodeEvent(frame)
	if err != nil {
		log.Printf("session %s: dropping frame: %v", s.roomID, err)
		observability.IncDecodeError()
		return
	}

	s.mu.Lock()
	next, changed := apply(s.messages, ev)
	s.messages = next
	s.mu.Unlock()
	if !changed {
		return
	}

	observability.IncEventApplied(ev.Kind)

	if msg, ok := find(next, ev.TargetID()); ok {
		if msg.RoomID == "" {
			msg.RoomID = s.roomID
		}
		if err := s.archive().SaveMessage(context.Background(), msg); err != nil {
			log.Printf("session %s: archive message failed: %v", s.roomID, err)
		}
	}

	if s.opts.Mirror != nil {
		envelope := MirrorEnvelope{RoomID: s.roomID, Kind: ev.Kind, Frame: frame}
		_ = s.opts.Mirror.Publish(context.Background(), "room_events."+ev.Kind, envelope)
	}

	s.notify()
}

func (s *Session) notify() {
	if s.opts.OnChange != nil {
		s.opts.OnChange(s.Messages())
	}
}

func (s *Session) isInstalled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.installed
}

func (s *Session) archive() archive.Store {
	if s.opts.Archive != nil {
		return s.opts.Archive
	}
	return nopArchive{}
}

func (s *Session) nickname() *string {
	if s.opts.Nickname == "" {
		return nil
	}
	return &s.opts.Nickname
}

func find(msgs []models.Message, id string) (models.Message, bool) {
	for _, m := range msgs {
		if m.ID == id {
			return m, true
		}
	}
	return models.Message{}, false
}

func drainRefresh(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}

type nopArchive struct{}

func (nopArchive) SaveSnapshot(ctx context.Context, roomID string, msgs []models.Message) error {
	return nil
}
func (nopArchive) SaveMessage(ctx context.Context, msg models.Message) error { return nil }
func (nopArchive) Close() error                                              { return nil }
