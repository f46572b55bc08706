package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/julez-dev/chatoverlay/badge"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordingRenderer struct {
	mu      sync.Mutex
	chats   []ChatMessage
	events  []SystemEvent
	notices []string
	errors  []string
}

func (r *recordingRenderer) RenderChat(msg ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = append(r.chats, msg)
}

func (r *recordingRenderer) RenderSystemEvent(event SystemEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingRenderer) RenderNotice(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, text)
}

func (r *recordingRenderer) RenderError(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, text)
}

func (r *recordingRenderer) Notices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.notices)
}

func (r *recordingRenderer) Chats() []ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.chats)
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped atomic.Bool
}

func (f *fakeTimer) Stop() bool {
	return !f.stopped.Swap(true)
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) afterFunc(d time.Duration, fn func()) stopper {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &fakeTimer{delay: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) all() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.timers)
}

func (s *fakeScheduler) pending() []*fakeTimer {
	var pending []*fakeTimer
	for _, t := range s.all() {
		if !t.stopped.Load() {
			pending = append(pending, t)
		}
	}
	return pending
}

func newTestRelay(t *testing.T, handler func(ws *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("websocket accept error: %v", err)
			return
		}
		defer ws.Close(websocket.StatusNormalClosure, "")
		handler(ws)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func readUntilClosed(ws *websocket.Conn) {
	for {
		if _, _, err := ws.Read(context.Background()); err != nil {
			return
		}
	}
}

func newTestConn(url string, renderer Renderer, cache *badge.Cache) (*Conn, *fakeScheduler) {
	sched := &fakeScheduler{}
	conn := NewConn(zerolog.Nop(), Config{URL: url}, renderer, cache)
	conn.afterFunc = sched.afterFunc
	return conn, sched
}

func TestConn_ConnectRequestsBadges(t *testing.T) {
	t.Parallel()

	received := make(chan string, 1)
	server := newTestRelay(t, func(ws *websocket.Conn) {
		_, data, err := ws.Read(context.Background())
		if err != nil {
			return
		}
		received <- string(data)
		readUntilClosed(ws)
	})
	defer server.Close()

	renderer := &recordingRenderer{}
	conn, _ := newTestConn(wsURL(server), renderer, badge.NewCache())
	defer conn.Close()

	conn.Connect()

	select {
	case frame := <-received:
		require.JSONEq(t, `{"action":"get_badges"}`, frame)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for get_badges")
	}

	require.Eventually(t, func() bool {
		return conn.State() == Connected
	}, 2*time.Second, 10*time.Millisecond)
	require.Contains(t, renderer.Notices(), "Connection established.")
}

func TestConn_Dispatch(t *testing.T) {
	t.Parallel()

	frames := []string{
		`{"event":"BadgeMapping","data":{"broadcaster":{"1":"https://example.com/b.png"}}}`,
		`{"event":"ChatMessage","data":{"user":"alice","message":"hi <b>","platform":"twitch"}}`,
		`{"event":"BotStatus","data":{"status":"live"}}`,
		`{"event":"SystemEvent","data":{"type":"follow","message":"bob followed"}}`,
		`{"event":"Error","data":{"message":"boom"}}`,
		`{"event":"Unheard","data":{"x":1}}`,
		`{not json`,
		`{"event":"ChatMessage","data":{"user":"carol","message":"last","platform":"youtube"}}`,
	}

	server := newTestRelay(t, func(ws *websocket.Conn) {
		if _, _, err := ws.Read(context.Background()); err != nil {
			return
		}
		for _, f := range frames {
			if err := ws.Write(context.Background(), websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}
		readUntilClosed(ws)
	})
	defer server.Close()

	renderer := &recordingRenderer{}
	cache := badge.NewCache()
	conn, _ := newTestConn(wsURL(server), renderer, cache)
	defer conn.Close()

	conn.Connect()

	require.Eventually(t, func() bool {
		return len(renderer.Chats()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	chats := renderer.Chats()
	require.Equal(t, "alice", chats[0].User)
	require.Equal(t, "hi <b>", chats[0].Message)
	require.Equal(t, PlatformTwitch, chats[0].Platform)
	require.Equal(t, PlatformYouTube, chats[1].Platform)

	url, ok := cache.Mapping().Lookup("broadcaster", "1")
	require.True(t, ok)
	require.Equal(t, "https://example.com/b.png", url)

	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	require.Contains(t, renderer.notices, "Status: live")
	require.Equal(t, []SystemEvent{{Type: "follow", Message: "bob followed"}}, renderer.events)
	require.Equal(t, []string{"boom"}, renderer.errors)
	require.Equal(t, Connected, conn.State())
}

func TestConn_ReconnectAfterClose(t *testing.T) {
	t.Parallel()

	var connections atomic.Int32
	server := newTestRelay(t, func(ws *websocket.Conn) {
		n := connections.Add(1)
		if _, _, err := ws.Read(context.Background()); err != nil {
			return
		}
		if n == 1 {
			return
		}
		readUntilClosed(ws)
	})
	defer server.Close()

	renderer := &recordingRenderer{}
	conn, sched := newTestConn(wsURL(server), renderer, badge.NewCache())
	defer conn.Close()

	conn.Connect()

	require.Eventually(t, func() bool {
		return len(sched.pending()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, Disconnected, conn.State())
	require.Equal(t, 10*time.Second, sched.pending()[0].delay)
	require.Contains(t, renderer.Notices(), "Connection lost. Reconnecting in 10s...")

	sched.pending()[0].fn()

	require.Eventually(t, func() bool {
		return connections.Load() == 2 && conn.State() == Connected
	}, 5*time.Second, 10*time.Millisecond)
	require.Len(t, sched.all(), 1)
}

func TestConn_SingleReconnectTimer(t *testing.T) {
	t.Parallel()

	var connections atomic.Int32
	server := newTestRelay(t, func(ws *websocket.Conn) {
		connections.Add(1)
		_, _, _ = ws.Read(context.Background())
	})
	defer server.Close()

	renderer := &recordingRenderer{}
	conn, sched := newTestConn(wsURL(server), renderer, badge.NewCache())
	defer conn.Close()

	conn.Connect()

	require.Eventually(t, func() bool {
		return len(sched.pending()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	first := sched.pending()[0]

	// a manual connect replaces the pending reconnect
	conn.Connect()
	require.True(t, first.stopped.Load())

	require.Eventually(t, func() bool {
		return len(sched.all()) == 2 && len(sched.pending()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// the stale timer must not trigger another connection
	first.fn()
	time.Sleep(100 * time.Millisecond)

	require.Equal(t, int32(2), connections.Load())
	require.Equal(t, Disconnected, conn.State())
	require.Len(t, sched.pending(), 1)
}

func TestConn_ConnectReplacesLiveConnection(t *testing.T) {
	t.Parallel()

	var connections atomic.Int32
	firstClosed := make(chan struct{})
	server := newTestRelay(t, func(ws *websocket.Conn) {
		n := connections.Add(1)
		readUntilClosed(ws)
		if n == 1 {
			close(firstClosed)
		}
	})
	defer server.Close()

	renderer := &recordingRenderer{}
	conn, sched := newTestConn(wsURL(server), renderer, badge.NewCache())
	defer conn.Close()

	conn.Connect()
	require.Eventually(t, func() bool {
		return connections.Load() == 1 && conn.State() == Connected
	}, 5*time.Second, 10*time.Millisecond)

	conn.Connect()

	select {
	case <-firstClosed:
	case <-time.After(5 * time.Second):
		t.Fatal("old connection was not closed")
	}

	require.Eventually(t, func() bool {
		return connections.Load() == 2 && conn.State() == Connected
	}, 5*time.Second, 10*time.Millisecond)

	require.Empty(t, sched.all())
	for _, n := range renderer.Notices() {
		require.NotContains(t, n, "Connection lost")
	}
}

func TestConn_DialFailureSchedulesReconnect(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(server)
	server.Close()

	renderer := &recordingRenderer{}
	conn, sched := newTestConn(url, renderer, badge.NewCache())
	defer conn.Close()

	conn.Connect()

	require.Eventually(t, func() bool {
		return len(sched.pending()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, Disconnected, conn.State())
	require.Contains(t, renderer.Notices(), "Connection lost. Reconnecting in 10s...")
}

func TestConn_SendWhileDisconnected(t *testing.T) {
	t.Parallel()

	renderer := &recordingRenderer{}
	conn, _ := newTestConn("ws://localhost:0", renderer, badge.NewCache())
	defer conn.Close()

	err := conn.Send(context.Background(), SendChat("hello"))
	require.ErrorIs(t, err, ErrNotConnected)
	require.Equal(t, []string{"Error: not connected!"}, renderer.Notices())
}

func TestConn_SendChat(t *testing.T) {
	t.Parallel()

	received := make(chan string, 2)
	server := newTestRelay(t, func(ws *websocket.Conn) {
		for {
			_, data, err := ws.Read(context.Background())
			if err != nil {
				return
			}
			received <- string(data)
		}
	})
	defer server.Close()

	renderer := &recordingRenderer{}
	conn, _ := newTestConn(wsURL(server), renderer, badge.NewCache())
	defer conn.Close()

	conn.Connect()
	require.Eventually(t, func() bool {
		return conn.State() == Connected
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Send(context.Background(), SendChat("hello")))

	var got []string
	for range 2 {
		select {
		case frame := <-received:
			got = append(got, frame)
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for frames")
		}
	}

	require.JSONEq(t, `{"action":"get_badges"}`, got[0])
	require.JSONEq(t, `{"action":"send_chat","message":"hello"}`, got[1])
}

func TestConn_CloseStopsReconnect(t *testing.T) {
	t.Parallel()

	server := newTestRelay(t, func(ws *websocket.Conn) {
		_, _, _ = ws.Read(context.Background())
	})
	defer server.Close()

	renderer := &recordingRenderer{}
	conn, sched := newTestConn(wsURL(server), renderer, badge.NewCache())

	conn.Connect()
	require.Eventually(t, func() bool {
		return len(sched.pending()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	timer := sched.pending()[0]
	conn.Close()

	require.True(t, timer.stopped.Load())

	timer.fn()
	conn.Connect()
	require.Equal(t, Disconnected, conn.State())
}
