package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AbdoElsaed/ufd/internal/domain"
)

// channelServer is a minimal background-context stand-in: it upgrades
// channels, records their names, and lets each test script the replies.
type channelServer struct {
	srv *httptest.Server

	mu    sync.Mutex
	conns int
	names []string
}

func startChannelServer(t *testing.T, handle func(conn *websocket.Conn, msg domain.ChannelMessage)) *channelServer {
	t.Helper()
	s := &channelServer{}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns++
		s.names = append(s.names, r.URL.Query().Get("name"))
		s.mu.Unlock()
		defer conn.Close()

		for {
			var msg domain.ChannelMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			handle(conn, msg)
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *channelServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *channelServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *channelServer) channelNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

func ackInit(conn *websocket.Conn, msg domain.ChannelMessage) {
	if msg.Kind == domain.KindInit {
		reply, _ := domain.NewMessage(domain.KindConnected, domain.ConnectedStatus{
			CookieAPIAvailable: true,
			ActiveChannelCount: 1,
			APIBaseURL:         "http://localhost:8000/api/v1",
		})
		conn.WriteJSON(reply)
	}
}

func testConnConfig() domain.ConnectionConfig {
	return domain.ConnectionConfig{
		ConnectTimeout:       time.Second,
		MaxReconnectAttempts: 3,
		ReconnectDelay:       10 * time.Millisecond,
	}
}

func TestConnectionManager_ConnectHandshake(t *testing.T) {
	srv := startChannelServer(t, ackInit)
	cm := NewConnectionManager(srv.wsURL(), testConnConfig(), zap.NewNop())
	defer cm.Disconnect()

	require.NoError(t, cm.Connect())
	assert.Equal(t, StateConnected, cm.State())
	assert.Equal(t, "http://localhost:8000/api/v1", cm.APIBaseURL())

	names := srv.channelNames()
	require.Len(t, names, 1)
	assert.Regexp(t, regexp.MustCompile(`^ufd_\d+_[0-9a-f]{8}$`), names[0])
}

func TestConnectionManager_ConnectIsIdempotent(t *testing.T) {
	srv := startChannelServer(t, func(conn *websocket.Conn, msg domain.ChannelMessage) {
		time.Sleep(50 * time.Millisecond) // keep the first attempt in flight
		ackInit(conn, msg)
	})
	cm := NewConnectionManager(srv.wsURL(), testConnConfig(), zap.NewNop())
	defer cm.Disconnect()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = cm.Connect()
		}(i)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, 1, srv.connCount(), "concurrent Connect calls must share one channel")

	require.NoError(t, cm.Connect()) // already connected, no new channel
	assert.Equal(t, 1, srv.connCount())
}

func TestConnectionManager_HandshakeTimeout(t *testing.T) {
	srv := startChannelServer(t, func(conn *websocket.Conn, msg domain.ChannelMessage) {
		// never acknowledge init
	})
	cfg := testConnConfig()
	cfg.ConnectTimeout = 50 * time.Millisecond
	cfg.MaxReconnectAttempts = 1
	cm := NewConnectionManager(srv.wsURL(), cfg, zap.NewNop())
	defer cm.Disconnect()

	assert.ErrorIs(t, cm.Connect(), domain.ErrConnectTimeout)
}

func TestConnectionManager_ReconnectsAfterChannelLoss(t *testing.T) {
	var mu sync.Mutex
	dropped := false
	srv := startChannelServer(t, func(conn *websocket.Conn, msg domain.ChannelMessage) {
		ackInit(conn, msg)
		mu.Lock()
		first := !dropped
		dropped = true
		mu.Unlock()
		if first {
			conn.Close() // simulate the background context going away
		}
	})
	cm := NewConnectionManager(srv.wsURL(), testConnConfig(), zap.NewNop())
	defer cm.Disconnect()

	lost := make(chan error, 1)
	cm.OnDisconnect(func(err error) {
		select {
		case lost <- err:
		default:
		}
	})

	// the server may drop the channel before the handshake settles, in which
	// case Connect reports the loss and the retry cycle takes over
	_ = cm.Connect()

	select {
	case err := <-lost:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect listener was not notified")
	}

	assert.Eventually(t, func() bool {
		return cm.State() == StateConnected && srv.connCount() == 2
	}, 2*time.Second, 10*time.Millisecond, "expected a second channel after the drop")
}

func TestConnectionManager_GivesUpAfterMaxAttempts(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	// plain HTTP server: every upgrade attempt is refused
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		http.Error(w, "no", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testConnConfig()
	cm := NewConnectionManager("ws"+strings.TrimPrefix(srv.URL, "http"), cfg, zap.NewNop())

	var finalErr error
	done := make(chan struct{})
	cm.OnDisconnect(func(err error) {
		if err == domain.ErrMaxReconnects {
			finalErr = err
			close(done)
		}
	})

	assert.Error(t, cm.Connect())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retry cycle did not reach the terminal state")
	}
	assert.ErrorIs(t, finalErr, domain.ErrMaxReconnects)
	assert.Equal(t, StateDisconnected, cm.State())

	// 1 initial attempt + MaxReconnectAttempts retries, then nothing more
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1+cfg.MaxReconnectAttempts, attempts)
	mu.Unlock()
}

func TestConnectionManager_ManualConnectStartsFreshCycle(t *testing.T) {
	var refuse = true
	var mu sync.Mutex
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		blocked := refuse
		mu.Unlock()
		if blocked {
			http.Error(w, "no", http.StatusNotFound)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg domain.ChannelMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			ackInit(conn, msg)
		}
	}))
	defer srv.Close()

	cfg := testConnConfig()
	cm := NewConnectionManager("ws"+strings.TrimPrefix(srv.URL, "http"), cfg, zap.NewNop())
	defer cm.Disconnect()

	done := make(chan struct{})
	cm.OnDisconnect(func(err error) {
		if err == domain.ErrMaxReconnects {
			close(done)
		}
	})

	assert.Error(t, cm.Connect())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retry cycle did not exhaust")
	}

	mu.Lock()
	refuse = false
	mu.Unlock()

	require.NoError(t, cm.Connect())
	assert.Equal(t, StateConnected, cm.State())
}

func TestConnectionManager_DisconnectSuppressesReconnect(t *testing.T) {
	srv := startChannelServer(t, ackInit)
	cm := NewConnectionManager(srv.wsURL(), testConnConfig(), zap.NewNop())

	notified := make(chan error, 1)
	cm.OnDisconnect(func(err error) { notified <- err })

	require.NoError(t, cm.Connect())
	cm.Disconnect()

	assert.Equal(t, StateDisconnected, cm.State())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, srv.connCount(), "manual disconnect must not trigger reconnection")
	select {
	case err := <-notified:
		t.Fatalf("unexpected disconnect notification: %v", err)
	default:
	}
}

func TestConnectionManager_Request(t *testing.T) {
	srv := startChannelServer(t, func(conn *websocket.Conn, msg domain.ChannelMessage) {
		switch msg.Kind {
		case domain.KindInit:
			ackInit(conn, msg)
		case domain.KindGetCurrentTab:
			reply, _ := domain.NewMessage(domain.KindCurrentTab, domain.TabInfo{URL: "https://youtu.be/abc", Title: "clip"})
			conn.WriteJSON(reply)
		case domain.KindGetVideoInfo:
			conn.WriteJSON(domain.ErrorMessage("extraction failed"))
		}
	})
	cm := NewConnectionManager(srv.wsURL(), testConnConfig(), zap.NewNop())
	defer cm.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Send auto-connects, so no explicit Connect here
	tabMsg, _ := domain.NewMessage(domain.KindGetCurrentTab, nil)
	reply, err := cm.Request(ctx, tabMsg, domain.KindCurrentTab)
	require.NoError(t, err)

	var tab domain.TabInfo
	require.NoError(t, reply.Decode(&tab))
	assert.Equal(t, "https://youtu.be/abc", tab.URL)

	infoMsg, _ := domain.NewMessage(domain.KindGetVideoInfo, domain.DownloadRequest{URL: tab.URL, Platform: domain.PlatformYouTube, Format: domain.FormatVideo})
	_, err = cm.Request(ctx, infoMsg, domain.KindVideoInfo)
	assert.ErrorContains(t, err, "extraction failed")
}

func TestConnectionManager_ListenerRemoval(t *testing.T) {
	srv := startChannelServer(t, func(conn *websocket.Conn, msg domain.ChannelMessage) {
		ackInit(conn, msg)
		if msg.Kind == domain.KindGetCurrentTab {
			reply, _ := domain.NewMessage(domain.KindCurrentTab, domain.TabInfo{URL: "https://example.com"})
			conn.WriteJSON(reply)
		}
	})
	cm := NewConnectionManager(srv.wsURL(), testConnConfig(), zap.NewNop())
	defer cm.Disconnect()

	got := make(chan domain.ChannelMessage, 4)
	remove := cm.On(domain.KindCurrentTab, func(msg domain.ChannelMessage) { got <- msg })

	require.NoError(t, cm.Connect())
	tabMsg, _ := domain.NewMessage(domain.KindGetCurrentTab, nil)
	require.NoError(t, cm.Send(tabMsg))

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not receive the reply")
	}

	remove()
	require.NoError(t, cm.Send(tabMsg))
	select {
	case msg := <-got:
		t.Fatalf("removed listener still received %s", msg.Kind)
	case <-time.After(200 * time.Millisecond):
	}
}
