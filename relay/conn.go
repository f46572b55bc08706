package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/julez-dev/chatoverlay/badge"
	"github.com/rs/zerolog"
)

const (
	DefaultURL            = "ws://localhost:8080"
	DefaultReconnectDelay = 10 * time.Second

	dialTimeout    = 5 * time.Second
	writeTimeout   = 5 * time.Second
	maxMessageSize = 1 * 1024 * 1024 // 1MiB
)

var ErrNotConnected = errors.New("not connected to relay")

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}

	return "disconnected"
}

// Renderer receives everything the connection wants to show to the user.
type Renderer interface {
	RenderChat(msg ChatMessage)
	RenderSystemEvent(event SystemEvent)
	RenderNotice(text string)
	RenderError(text string)
}

type Config struct {
	URL            string
	ReconnectDelay time.Duration
}

type Option func(*Conn)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Conn) {
		c.httpClient = client
	}
}

// WithStateListener registers fn to be called after every state transition.
func WithStateListener(fn func(State)) Option {
	return func(c *Conn) {
		c.onState = fn
	}
}

type stopper interface {
	Stop() bool
}

// Conn owns the single relay connection. It reconnects after a fixed delay for as long as it is
// not closed and dispatches decoded events to the renderer and the badge cache.
type Conn struct {
	url            string
	reconnectDelay time.Duration
	logger         zerolog.Logger
	renderer       Renderer
	badges         *badge.Cache
	httpClient     *http.Client
	onState        func(State)
	afterFunc      func(time.Duration, func()) stopper

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	ws         *websocket.Conn
	generation uint64
	reconnect  stopper
	timerSeq   uint64
	closed     bool
}

func NewConn(logger zerolog.Logger, conf Config, renderer Renderer, badges *badge.Cache, opts ...Option) *Conn {
	if conf.URL == "" {
		conf.URL = DefaultURL
	}

	if conf.ReconnectDelay <= 0 {
		conf.ReconnectDelay = DefaultReconnectDelay
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Conn{
		url:            conf.URL,
		reconnectDelay: conf.ReconnectDelay,
		logger:         logger.With().Str("component", "relay").Str("url", conf.URL).Logger(),
		renderer:       renderer,
		badges:         badges,
		httpClient:     http.DefaultClient,
		onState:        func(State) {},
		afterFunc: func(d time.Duration, fn func()) stopper {
			return time.AfterFunc(d, fn)
		},
		ctx:    ctx,
		cancel: cancel,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run connects and keeps the connection alive until ctx is done.
func (c *Conn) Run(ctx context.Context) error {
	c.Connect()

	select {
	case <-ctx.Done():
	case <-c.ctx.Done():
	}

	c.Close()
	return nil
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Connect tears down the current connection, if any, and starts a new one in the background.
// A pending reconnect is cancelled.
func (c *Conn) Connect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.stopReconnectLocked()

	old := c.ws
	c.ws = nil
	c.generation++
	gen := c.generation
	c.state = Connecting
	c.mu.Unlock()

	if old != nil {
		_ = old.Close(websocket.StatusNormalClosure, "reconnecting")
	}

	c.onState(Connecting)

	go c.connect(gen)
}

// Close stops the connection for good, no reconnect is attempted afterwards.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.closed = true
	c.stopReconnectLocked()

	ws := c.ws
	c.ws = nil
	c.state = Disconnected
	c.mu.Unlock()

	c.cancel()

	if ws != nil {
		_ = ws.Close(websocket.StatusNormalClosure, "shutting down")
	}

	c.onState(Disconnected)
	c.logger.Info().Msg("relay connection closed")
}

// Send writes action to the relay. Nothing is queued, if there is no live connection a notice is
// rendered and ErrNotConnected is returned.
func (c *Conn) Send(ctx context.Context, action Action) error {
	c.mu.Lock()
	ws := c.ws
	connected := c.state == Connected && ws != nil
	c.mu.Unlock()

	if !connected {
		c.renderer.RenderNotice("Error: not connected!")
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := wsjson.Write(ctx, ws, action); err != nil {
		c.logger.Warn().Err(err).Str("action", string(action.Action)).Msg("failed to send action")
		return fmt.Errorf("failed to send %s: %w", action.Action, err)
	}

	c.logger.Debug().Str("action", string(action.Action)).Msg("action sent")

	return nil
}

func (c *Conn) connect(gen uint64) {
	dialCtx, cancel := context.WithTimeout(c.ctx, dialTimeout)
	defer cancel()

	ws, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
		HTTPClient: c.httpClient,
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("dial failed")
		c.handleClose(gen, fmt.Errorf("dial failed: %w", err))
		return
	}

	ws.SetReadLimit(maxMessageSize)

	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		_ = ws.Close(websocket.StatusNormalClosure, "superseded")
		return
	}

	c.ws = ws
	c.state = Connected
	c.mu.Unlock()

	c.logger.Info().Msg("connected to relay")
	c.onState(Connected)
	c.renderer.RenderNotice("Connection established.")

	// badges are never pushed on their own
	if err := c.Send(c.ctx, GetBadges()); err != nil {
		c.logger.Warn().Err(err).Msg("failed to request badges")
	}

	c.readLoop(gen, ws)
}

func (c *Conn) readLoop(gen uint64, ws *websocket.Conn) {
	for {
		_, data, err := ws.Read(c.ctx)
		if err != nil {
			c.handleClose(gen, err)
			return
		}

		c.dispatch(data)
	}
}

func (c *Conn) dispatch(frame []byte) {
	event, err := Decode(frame)
	if err != nil {
		c.logger.Warn().Err(err).Int("size", len(frame)).Msg("dropping malformed frame")
		return
	}

	switch e := event.(type) {
	case ChatMessage:
		c.renderer.RenderChat(e)
	case BotStatus:
		c.renderer.RenderNotice("Status: " + e.Status)
	case SystemEvent:
		c.renderer.RenderSystemEvent(e)
	case BadgeMapping:
		c.badges.Replace(e.Mapping)
		c.logger.Info().Int("sets", len(e.Mapping)).Msg("badge mapping received")
	case ErrorEvent:
		c.renderer.RenderError(e.Message)
	default:
		c.logger.Debug().Str("event", string(event.Tag())).Msg("ignoring unknown event")
	}
}

// handleClose treats errors and closes alike. Closes of a superseded connection are ignored.
func (c *Conn) handleClose(gen uint64, cause error) {
	c.mu.Lock()
	if c.closed || gen != c.generation || c.state == Disconnected {
		c.mu.Unlock()
		return
	}

	ws := c.ws
	c.ws = nil
	c.state = Disconnected
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	if ws != nil {
		_ = ws.Close(websocket.StatusGoingAway, "connection lost")
	}

	c.logger.Warn().Err(cause).Dur("delay", c.reconnectDelay).Msg("connection lost, will reconnect")
	c.onState(Disconnected)
	c.renderer.RenderNotice(fmt.Sprintf("Connection lost. Reconnecting in %s...", c.reconnectDelay))
}

// scheduleReconnectLocked replaces any pending reconnect, so at most one is ever armed.
func (c *Conn) scheduleReconnectLocked() {
	c.stopReconnectLocked()

	c.timerSeq++
	seq := c.timerSeq

	c.reconnect = c.afterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		if c.closed || seq != c.timerSeq || c.reconnect == nil {
			c.mu.Unlock()
			return
		}
		c.reconnect = nil
		c.mu.Unlock()

		c.logger.Info().Msg("reconnecting")
		c.Connect()
	})
}

func (c *Conn) stopReconnectLocked() {
	if c.reconnect == nil {
		return
	}

	c.reconnect.Stop()
	c.reconnect = nil
	c.timerSeq++
}
