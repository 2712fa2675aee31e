package session_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felipemacedo1/go-msg-wss-app/internal/mocks"
	"github.com/felipemacedo1/go-msg-wss-app/internal/models"
	"github.com/felipemacedo1/go-msg-wss-app/internal/session"
	"github.com/felipemacedo1/go-msg-wss-app/internal/telemetry"
	"github.com/felipemacedo1/go-msg-wss-app/internal/ws"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// feedServer upgrades each connection and writes the given frames, then
// holds the connection open until the test server shuts down.
func feedServer(t *testing.T, frames []string, sent chan<- struct{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		if sent != nil {
			close(sent)
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testPolicy() ws.ReconnectPolicy {
	return ws.ReconnectPolicy{Delay: 10 * time.Millisecond, MaxAttempts: 3}
}

func TestSessionInstallsSnapshotThenAppliesEvents(t *testing.T) {
	frames := []string{
		`{"kind":"message_created","value":{"id":"m2","message":"from the wire"}}`,
	}
	srv := feedServer(t, frames, nil)

	source := new(mocks.SnapshotSourceMock)
	source.On("ListMessages", mock.Anything, "r1").
		Return([]models.Message{{ID: "m1", RoomID: "r1", Body: "history"}}, nil).Once()

	s := session.New("r1", wsURL(srv), source, session.Options{Policy: testPolicy()})
	s.Start(context.Background())
	defer s.Close()

	require.Eventually(t, func() bool {
		return len(s.Messages()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	msgs := s.Messages()
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
	source.AssertExpectations(t)
}

func TestSessionBuffersEventsUntilSnapshotInstalled(t *testing.T) {
	frames := []string{
		`{"kind":"message_created","value":{"id":"m2","message":"early"}}`,
		`{"kind":"message_reaction_increased","value":{"id":"m1","count":3}}`,
	}
	sent := make(chan struct{})
	srv := feedServer(t, frames, sent)

	source := new(mocks.SnapshotSourceMock)
	source.On("ListMessages", mock.Anything, "r1").
		Run(func(args mock.Arguments) {
			// Hold the snapshot back until the live events are on the wire.
			<-sent
		}).
		Return([]models.Message{{ID: "m1", RoomID: "r1", Body: "history"}}, nil).Once()

	s := session.New("r1", wsURL(srv), source, session.Options{Policy: testPolicy()})
	s.Start(context.Background())
	defer s.Close()

	require.Eventually(t, func() bool {
		msgs := s.Messages()
		return len(msgs) == 2 && msgs[0].ReactionCount == 3
	}, 2*time.Second, 10*time.Millisecond)

	msgs := s.Messages()
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestSessionIgnoresDuplicatesUnknownKindsAndBadFrames(t *testing.T) {
	frames := []string{
		`{"kind":"message_created","value":{"id":"m1","message":"hi"}}`,
		`{"kind":"message_created","value":{"id":"m1","message":"dup"}}`,
		`this is not json`,
		`{"kind":"message_created","value":null}`,
		`{"kind":"room_renamed","value":{"id":"r1"}}`,
		`{"kind":"message_answered","value":{"id":"m1"}}`,
	}
	srv := feedServer(t, frames, nil)

	source := new(mocks.SnapshotSourceMock)
	source.On("ListMessages", mock.Anything, "r1").Return([]models.Message{}, nil).Once()

	s := session.New("r1", wsURL(srv), source, session.Options{Policy: testPolicy()})
	s.Start(context.Background())
	defer s.Close()

	require.Eventually(t, func() bool {
		msgs := s.Messages()
		return len(msgs) == 1 && msgs[0].Answered
	}, 2*time.Second, 10*time.Millisecond)

	msgs := s.Messages()
	assert.Equal(t, "hi", msgs[0].Body)
}

func TestSessionSurfacesSnapshotErrorAndRecoversOnRefresh(t *testing.T) {
	srv := feedServer(t, nil, nil)

	source := new(mocks.SnapshotSourceMock)
	source.On("ListMessages", mock.Anything, "r1").
		Return(nil, assert.AnError).Once()
	source.On("ListMessages", mock.Anything, "r1").
		Return([]models.Message{{ID: "m1", RoomID: "r1"}}, nil).Once()

	errs := make(chan error, 1)
	s := session.New("r1", wsURL(srv), source, session.Options{
		Policy:  testPolicy(),
		OnError: func(err error) { errs <- err },
	})
	s.Start(context.Background())
	defer s.Close()

	select {
	case err := <-errs:
		require.ErrorIs(t, err, assert.AnError)
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot error was not surfaced")
	}
	assert.Empty(t, s.Messages())

	s.Refresh(context.Background())
	require.Eventually(t, func() bool {
		return len(s.Messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	source.AssertExpectations(t)
}

func TestSessionMirrorsAppliedEvents(t *testing.T) {
	frames := []string{
		`{"kind":"message_created","value":{"id":"m1","message":"hi"}}`,
	}
	srv := feedServer(t, frames, nil)

	source := new(mocks.SnapshotSourceMock)
	source.On("ListMessages", mock.Anything, "r1").Return([]models.Message{}, nil).Once()

	mirror := new(mocks.PublisherMock)
	mirror.On("Publish", mock.Anything, "room_events.message_created", mock.Anything).Return(nil).Once()

	store := new(mocks.StoreMock)
	store.On("SaveSnapshot", mock.Anything, "r1", mock.Anything).Return(nil).Once()
	store.On("SaveMessage", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.ID == "m1" && m.RoomID == "r1"
	})).Return(nil).Once()

	s := session.New("r1", wsURL(srv), source, session.Options{
		Policy:  testPolicy(),
		Mirror:  mirror,
		Archive: store,
	})
	s.Start(context.Background())
	defer s.Close()

	require.Eventually(t, func() bool {
		return len(s.Messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mirror.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestSessionResumesAfterReconnectWithoutNewSnapshot(t *testing.T) {
	var mu sync.Mutex
	connects := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		connects++
		n := connects
		mu.Unlock()

		if n == 1 {
			// Drop the first connection without a close handshake.
			conn.Close()
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"kind":"message_created","value":{"id":"m2","message":"post-reconnect"}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	source := new(mocks.SnapshotSourceMock)
	source.On("ListMessages", mock.Anything, "r1").
		Return([]models.Message{{ID: "m1", RoomID: "r1"}}, nil).Once()

	s := session.New("r1", wsURL(srv), source, session.Options{Policy: testPolicy()})
	s.Start(context.Background())
	defer s.Close()

	require.Eventually(t, func() bool {
		return len(s.Messages()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Exactly one snapshot fetch: continuity across the reconnect.
	source.AssertNumberOfCalls(t, "ListMessages", 1)
}

func TestSessionEmitsRecoveredAuditAfterReconnect(t *testing.T) {
	var mu sync.Mutex
	connects := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		connects++
		n := connects
		mu.Unlock()

		if n == 1 {
			// Drop the first connection without a close handshake.
			conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	source := new(mocks.SnapshotSourceMock)
	source.On("ListMessages", mock.Anything, "r1").Return([]models.Message{}, nil).Once()

	recovered := make(chan struct{})
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "audit.sessions", mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.Payload.Text == "session recovered" && env.RoomID == "r1"
	})).Run(func(mock.Arguments) { close(recovered) }).Return(nil).Once()
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	emitter := telemetry.NewAuditEmitter(publisher, "audit.sessions", "test", "test")

	s := session.New("r1", wsURL(srv), source, session.Options{
		Policy: testPolicy(),
		Audit:  emitter,
	})
	s.Start(context.Background())
	defer s.Close()

	select {
	case <-recovered:
	case <-time.After(2 * time.Second):
		t.Fatal("no recovery audit event after reconnect")
	}
	publisher.AssertExpectations(t)
}

func TestSessionReportsLostLiveFeed(t *testing.T) {
	// A plain HTTP response fails the websocket handshake on every dial.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	source := new(mocks.SnapshotSourceMock)
	source.On("ListMessages", mock.Anything, "r1").Return([]models.Message{}, nil).Maybe()

	errs := make(chan error, 1)
	s := session.New("r1", wsURL(srv), source, session.Options{
		Policy:  ws.ReconnectPolicy{Delay: 5 * time.Millisecond, MaxAttempts: 1},
		OnError: func(err error) { errs <- err },
	})
	s.Start(context.Background())
	defer s.Close()

	select {
	case err := <-errs:
		require.ErrorIs(t, err, session.ErrLiveFeedLost)
	case <-time.After(2 * time.Second):
		t.Fatal("exhausted reconnects were not surfaced")
	}
}

func TestSessionCapsPreSnapshotBuffer(t *testing.T) {
	frames := make([]string, 300)
	for i := range frames {
		frames[i] = fmt.Sprintf(`{"kind":"message_created","value":{"id":"m%03d","message":"flood"}}`, i)
	}
	sent := make(chan struct{})
	srv := feedServer(t, frames, sent)

	source := new(mocks.SnapshotSourceMock)
	source.On("ListMessages", mock.Anything, "r1").
		Run(func(mock.Arguments) {
			// Hold the snapshot back until the whole flood is on the wire.
			<-sent
		}).
		Return([]models.Message{}, nil).Once()

	s := session.New("r1", wsURL(srv), source, session.Options{Policy: testPolicy()})
	s.Start(context.Background())
	defer s.Close()

	// Only the newest 256 frames survive; the oldest are shed.
	require.Eventually(t, func() bool {
		return len(s.Messages()) == 256
	}, 2*time.Second, 10*time.Millisecond)

	msgs := s.Messages()
	assert.Equal(t, "m044", msgs[0].ID)
	assert.Equal(t, "m299", msgs[len(msgs)-1].ID)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	srv := feedServer(t, nil, nil)

	source := new(mocks.SnapshotSourceMock)
	source.On("ListMessages", mock.Anything, "r1").Return([]models.Message{}, nil).Maybe()

	s := session.New("r1", wsURL(srv), source, session.Options{Policy: testPolicy()})
	s.Start(context.Background())

	s.Close()
	assert.NotPanics(t, s.Close)
	assert.Equal(t, "closed", s.Info().State)
}
