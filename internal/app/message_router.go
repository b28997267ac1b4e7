package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AbdoElsaed/ufd/internal/domain"
	"github.com/AbdoElsaed/ufd/internal/infrastructure"
)

// Channel is one open connection from a UI context. Writes are serialized so
// replies from concurrent handlers keep a consistent wire framing.
type Channel struct {
	name   string
	conn   *websocket.Conn
	router *MessageRouter

	writeMu     sync.Mutex
	downloadMu  sync.Mutex
	downloading bool
}

// send delivers a reply on the channel. Replies for channels that already
// closed are dropped silently; in-flight work is allowed to finish either way.
func (ch *Channel) send(msg domain.ChannelMessage) {
	if !ch.router.registered(ch.name) {
		ch.router.logger.Debug("Dropping reply for closed channel",
			zap.String("channel", ch.name),
			zap.String("kind", string(msg.Kind)))
		return
	}
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	if err := ch.conn.WriteJSON(msg); err != nil {
		ch.router.logger.Warn("Failed to write to channel",
			zap.String("channel", ch.name),
			zap.Error(err))
	}
}

func (ch *Channel) sendError(text string) {
	ch.send(domain.ErrorMessage(text))
}

// beginDownload marks the channel busy; it fails when a download is already
// in flight because each channel carries at most one download at a time.
func (ch *Channel) beginDownload() bool {
	ch.downloadMu.Lock()
	defer ch.downloadMu.Unlock()
	if ch.downloading {
		return false
	}
	ch.downloading = true
	return true
}

func (ch *Channel) endDownload() {
	ch.downloadMu.Lock()
	ch.downloading = false
	ch.downloadMu.Unlock()
}

// MessageRouter runs in the persistent background context. It owns the
// registry of open channels and dispatches each inbound message to its
// handler; every handler failure is converted into an error reply so a
// request never leaves the channel without an answer and never crashes the
// process.
type MessageRouter struct {
	aggregator   *CookieAggregator
	backend      *infrastructure.BackendClient
	orchestrator *DownloadOrchestrator
	tabs         domain.TabProvider
	history      domain.HistoryRepository
	store        domain.CookieStore
	infoTimeout  domain.BackendConfig
	logger       *zap.Logger

	mu       sync.RWMutex
	channels map[string]*Channel
}

// NewMessageRouter wires the router with its collaborators. The registry is
// owned by the returned router; nothing else mutates it.
func NewMessageRouter(
	aggregator *CookieAggregator,
	backend *infrastructure.BackendClient,
	orchestrator *DownloadOrchestrator,
	tabs domain.TabProvider,
	history domain.HistoryRepository,
	store domain.CookieStore,
	backendCfg domain.BackendConfig,
	logger *zap.Logger,
) *MessageRouter {
	return &MessageRouter{
		aggregator:   aggregator,
		backend:      backend,
		orchestrator: orchestrator,
		tabs:         tabs,
		history:      history,
		store:        store,
		infoTimeout:  backendCfg,
		logger:       logger,
		channels:     make(map[string]*Channel),
	}
}

// ActiveChannels returns the number of open channels.
func (r *MessageRouter) ActiveChannels() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

func (r *MessageRouter) registered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.channels[name]
	return ok
}

// Serve owns one channel for its whole life: it registers the connection,
// reads messages until the peer goes away, and removes the channel from the
// registry on the way out. It blocks until the channel closes.
func (r *MessageRouter) Serve(name string, conn *websocket.Conn) {
	ch := &Channel{name: name, conn: conn, router: r}

	r.mu.Lock()
	r.channels[name] = ch
	count := len(r.channels)
	r.mu.Unlock()

	r.logger.Info("Channel opened",
		zap.String("channel", name),
		zap.Int("active_channels", count))

	defer func() {
		r.mu.Lock()
		delete(r.channels, name)
		remaining := len(r.channels)
		r.mu.Unlock()
		conn.Close()
		r.logger.Info("Channel closed",
			zap.String("channel", name),
			zap.Int("active_channels", remaining))
	}()

	for {
		var msg domain.ChannelMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		r.handle(ch, msg)
	}
}

// handle dispatches one message. Quick handlers run inline to preserve
// processing order; handlers doing backend I/O run concurrently, with reply
// ordering per channel kept by the serialized writer.
func (r *MessageRouter) handle(ch *Channel, msg domain.ChannelMessage) {
	r.logger.Debug("Received message",
		zap.String("channel", ch.name),
		zap.String("kind", string(msg.Kind)))

	switch msg.Kind {
	case domain.KindInit:
		r.guarded(ch, func() { r.handleInit(ch) })
	case domain.KindGetCurrentTab:
		r.guarded(ch, func() { r.handleGetCurrentTab(ch) })
	case domain.KindGetVideoInfo:
		go r.guarded(ch, func() { r.handleGetVideoInfo(ch, msg) })
	case domain.KindDownloadVideo:
		go r.guarded(ch, func() { r.handleDownloadVideo(ch, msg) })
	default:
		// Unknown kinds are a protocol error on the peer's side, not ours.
		r.logger.Warn("Unknown message kind, ignoring",
			zap.String("channel", ch.name),
			zap.String("kind", string(msg.Kind)))
	}
}

// guarded converts handler panics into error replies instead of letting them
// take down the background context.
func (r *MessageRouter) guarded(ch *Channel, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Handler panic recovered",
				zap.String("channel", ch.name),
				zap.Any("panic", rec))
			ch.sendError("An error occurred processing your request")
		}
	}()
	fn()
}

func (r *MessageRouter) handleInit(ch *Channel) {
	status := domain.ConnectedStatus{
		CookieAPIAvailable: r.store != nil && r.store.Available(),
		ActiveChannelCount: r.ActiveChannels(),
		APIBaseURL:         r.backend.BaseURL(),
	}
	msg, err := domain.NewMessage(domain.KindConnected, status)
	if err != nil {
		ch.sendError(err.Error())
		return
	}
	ch.send(msg)
}

func (r *MessageRouter) handleGetCurrentTab(ch *Channel) {
	tab, err := r.tabs.CurrentTab()
	if err != nil {
		r.logger.Warn("Failed to get current tab", zap.Error(err))
		ch.sendError("Failed to get current tab information")
		return
	}
	msg, err := domain.NewMessage(domain.KindCurrentTab, tab)
	if err != nil {
		ch.sendError(err.Error())
		return
	}
	ch.send(msg)
}

// resolveRequest decodes and re-validates a request: the caller already
// resolved the platform, but the router defends against non-extractable URLs
// arriving on the channel.
func (r *MessageRouter) resolveRequest(msg domain.ChannelMessage) (*domain.DownloadRequest, *domain.PlatformDescriptor, error) {
	var req domain.DownloadRequest
	if err := msg.Decode(&req); err != nil {
		return nil, nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	platform, ok := domain.Resolve(req.URL)
	if !ok {
		return nil, nil, fmt.Errorf("unsupported or invalid URL: %s", req.URL)
	}
	if platform.ID != req.Platform {
		return nil, nil, fmt.Errorf("URL does not belong to platform %s", req.Platform)
	}
	req.URL = platform.Normalize(req.URL)
	return &req, platform, nil
}

func (r *MessageRouter) handleGetVideoInfo(ch *Channel, msg domain.ChannelMessage) {
	req, platform, err := r.resolveRequest(msg)
	if err != nil {
		ch.sendError(err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.infoTimeout.InfoTimeout)
	defer cancel()

	headers := r.aggregator.Collect(ctx, platform)

	info, err := r.backend.FetchInfo(ctx, req, headers)
	if err != nil {
		r.logger.Warn("Failed to fetch video info",
			zap.String("url", req.URL),
			zap.Error(err))
		ch.sendError(err.Error())
		return
	}

	reply, err := domain.NewMessage(domain.KindVideoInfo, info)
	if err != nil {
		ch.sendError(err.Error())
		return
	}
	ch.send(reply)
}

func (r *MessageRouter) handleDownloadVideo(ch *Channel, msg domain.ChannelMessage) {
	req, platform, err := r.resolveRequest(msg)
	if err != nil {
		ch.sendStatus(domain.DownloadStatusPayload{Status: domain.StatusError, Error: err.Error()})
		return
	}

	if !ch.beginDownload() {
		ch.sendStatus(domain.DownloadStatusPayload{
			Status: domain.StatusError,
			Error:  domain.ErrDownloadInFlight.Error(),
		})
		return
	}
	defer ch.endDownload()

	headers := r.aggregator.Collect(context.Background(), platform)

	// The download runs on its own context: closing the channel does not
	// abort the transfer, only its replies are dropped.
	events := r.orchestrator.Start(context.Background(), req, headers)

	for ev := range events {
		ch.sendStatus(ev.StatusPayload())

		if ev.Terminal() {
			r.recordOutcome(req, ev)
		}
	}
}

func (ch *Channel) sendStatus(payload domain.DownloadStatusPayload) {
	msg, err := domain.NewMessage(domain.KindDownloadStatus, payload)
	if err != nil {
		ch.sendError(err.Error())
		return
	}
	ch.send(msg)
}

func (r *MessageRouter) recordOutcome(req *domain.DownloadRequest, ev domain.DownloadProgressEvent) {
	if r.history == nil {
		return
	}
	if err := r.history.Create(domain.NewHistoryRecord(req, ev)); err != nil {
		r.logger.Warn("Failed to record download outcome", zap.Error(err))
	}
}
