package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/storekit/config-hub/internal/logging"
	"github.com/storekit/config-hub/internal/registry"
	"github.com/storekit/config-hub/pkg/core"
)

const DefaultShop = "default"

// client tracks one connection's position in the lifecycle:
// connected (no shop) -> authenticated (shop bound, in the registry) ->
// gone (removed on disconnect). A connection never moves between shops.
type client struct {
	conn          core.Conn
	shop          string
	authenticated bool
	lastPong      time.Time
}

// Hub owns the connection registry and mediates all configuration fan-out.
// Transports feed it raw messages; the admin write path calls
// BroadcastConfigUpdate after persisting a change.
type Hub struct {
	store        core.ConfigStore
	validate     core.TokenValidator
	registry     *registry.Registry
	logger       *slog.Logger
	broadcastLog *logging.BroadcastLogger
	defaultShop  string

	mu      sync.Mutex
	clients map[string]*client

	// Serializes fan-outs so every subscriber of a shop observes updates
	// in the order the admin write path issued them.
	broadcastMu sync.Mutex
}

type Option func(*Hub)

// WithDefaultShop sets the shop bound when an auth message omits one.
func WithDefaultShop(shop string) Option {
	return func(h *Hub) { h.defaultShop = shop }
}

// WithBroadcastLogger enables per-broadcast structured logging.
func WithBroadcastLogger(l *logging.BroadcastLogger) Option {
	return func(h *Hub) { h.broadcastLog = l }
}

func New(store core.ConfigStore, validate core.TokenValidator, logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		store:       store,
		validate:    validate,
		registry:    registry.New(),
		logger:      logger,
		defaultShop: DefaultShop,
		clients:     make(map[string]*client),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnConnect registers a raw transport connection. No shop is bound until the
// connection authenticates. A connection arriving with a pinned ID that is
// already live supersedes the old one: the old connection is dropped here so
// its late teardown cannot evict the newcomer's tracking.
func (h *Hub) OnConnect(conn core.Conn) {
	h.mu.Lock()
	old, dup := h.clients[conn.ID()]
	h.mu.Unlock()
	if dup {
		h.logger.Warn("duplicate connection id, superseding", "connection_id", conn.ID())
		h.dropConn(old.conn)
	}

	h.mu.Lock()
	h.clients[conn.ID()] = &client{conn: conn}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client connected", "connection_id", conn.ID(), "connections", total)
}

// HandleMessage parses and dispatches one inbound message. Malformed input
// and unknown kinds are answered with an error envelope on the offending
// connection only; nothing here can take down the hub or other connections.
func (h *Hub) HandleMessage(ctx context.Context, conn core.Conn, raw []byte) {
	var env core.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.logger.Warn("malformed message", "connection_id", conn.ID(), "error", err)
		h.sendError(conn, "malformed message: expected a JSON envelope")
		return
	}

	switch env.Type {
	case core.MsgAuth:
		var payload core.AuthPayload
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				h.sendError(conn, "malformed auth payload")
				return
			}
		}
		h.handleAuth(ctx, conn, payload)

	case core.MsgPong:
		h.mu.Lock()
		if c, ok := h.clients[conn.ID()]; ok {
			c.lastPong = time.Now()
		}
		h.mu.Unlock()

	default:
		h.sendError(conn, fmt.Sprintf("unrecognized message type %q", env.Type))
	}
}

func (h *Hub) handleAuth(ctx context.Context, conn core.Conn, payload core.AuthPayload) {
	err := h.Authenticate(ctx, conn, payload.Shop, payload.Token)
	switch {
	case errors.Is(err, core.ErrAlreadyAuthenticated):
		// Re-authentication is rejected rather than silently rebinding the
		// connection to another shop; the connection stays usable.
		h.sendError(conn, "connection is already authenticated")
	case errors.Is(err, core.ErrAuthFailed):
		h.sendError(conn, "authentication failed")
		h.OnDisconnect(conn)
		if closeErr := conn.Close(); closeErr != nil {
			h.logger.Warn("close after failed auth", "connection_id", conn.ID(), "error", closeErr)
		}
	case err != nil:
		h.logger.Error("auth error", "connection_id", conn.ID(), "error", err)
		h.sendError(conn, "authentication failed")
	}
}

// Authenticate validates the token, binds the connection to its shop, adds
// it to the registry and delivers auth_success followed by the shop's
// current configuration snapshot. Shared by the websocket auth message and
// the SSE query-parameter handshake.
func (h *Hub) Authenticate(ctx context.Context, conn core.Conn, shop, token string) error {
	h.mu.Lock()
	c, ok := h.clients[conn.ID()]
	if !ok {
		c = &client{conn: conn}
		h.clients[conn.ID()] = c
	}
	if c.authenticated {
		h.mu.Unlock()
		return core.ErrAlreadyAuthenticated
	}
	h.mu.Unlock()

	if !h.validate(shop, token) {
		h.logger.Info("auth rejected", "connection_id", conn.ID(), "shop", shop)
		return core.ErrAuthFailed
	}

	if shop == "" {
		shop = h.defaultShop
	}

	h.mu.Lock()
	if c.authenticated {
		h.mu.Unlock()
		return core.ErrAlreadyAuthenticated
	}
	c.shop = shop
	c.authenticated = true
	h.mu.Unlock()

	h.registry.Add(shop, conn)
	h.logger.Info("client authenticated",
		"connection_id", conn.ID(),
		"shop", shop,
		"subscribers", h.registry.Count(shop),
	)

	ack, err := core.NewEnvelope(core.MsgAuthSuccess, nil)
	if err != nil {
		return err
	}
	if err := conn.Send(ack); err != nil {
		h.dropConn(conn)
		return fmt.Errorf("send auth_success: %w", err)
	}

	snapshot, err := core.NewEnvelope(core.MsgConfigUpdate, h.currentConfig(ctx, shop))
	if err != nil {
		return err
	}
	if err := conn.Send(snapshot); err != nil {
		h.dropConn(conn)
		return fmt.Errorf("send config snapshot: %w", err)
	}
	return nil
}

// currentConfig reads the shop's persisted document, falling back to the
// built-in default when the shop was never written or the store is down. A
// failing store must not block clients from joining.
func (h *Hub) currentConfig(ctx context.Context, shop string) *core.Document {
	doc, err := h.store.Get(ctx, shop)
	if err != nil {
		if !errors.Is(err, core.ErrConfigNotFound) {
			h.logger.Error("config read failed, serving default", "shop", shop, "error", err)
		}
		return core.DefaultDocument()
	}
	return doc
}

// BroadcastConfigUpdate pushes a config_update carrying payload to every
// live subscriber of the shop and returns the number of successful sends.
// Delivery is fire-and-forget: a connection that fails mid-iteration is
// dropped from the registry and closed, and the rest still receive the
// update. Broadcasting to a shop with no subscribers is a no-op.
//
// Broadcasts are serialized with each other, not with the persists that
// precede them: when two admin writes race, the final broadcast may carry
// the older document. Clients joining afterwards read the persisted state.
func (h *Hub) BroadcastConfigUpdate(ctx context.Context, shop string, payload any) int {
	data, err := core.NewEnvelope(core.MsgConfigUpdate, payload)
	if err != nil {
		h.logger.Error("broadcast marshal failed", "shop", shop, "error", err)
		return 0
	}

	h.broadcastMu.Lock()
	defer h.broadcastMu.Unlock()

	conns := h.registry.Connections(shop)
	if len(conns) == 0 {
		h.logger.Info("broadcast skipped, no subscribers", "shop", shop)
		return 0
	}

	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(data); err != nil {
			h.logger.Warn("broadcast send failed, dropping connection",
				"connection_id", conn.ID(), "shop", shop, "error", err)
			h.dropConn(conn)
			continue
		}
		delivered++
	}

	if h.broadcastLog != nil {
		h.broadcastLog.Log(shop, len(conns), delivered, len(data))
	}
	return delivered
}

// OnDisconnect removes a connection from the hub and, when it was
// authenticated, from its shop's registry set. Safe to call more than once.
// A disconnect from a connection whose ID was since taken over by a newer
// connection is ignored; only the connection actually tracked under the ID
// may evict it.
func (h *Hub) OnDisconnect(conn core.Conn) {
	h.mu.Lock()
	c, ok := h.clients[conn.ID()]
	if ok && c.conn != conn {
		h.mu.Unlock()
		return
	}
	if ok {
		delete(h.clients, conn.ID())
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	if c.authenticated {
		h.registry.Remove(c.shop, conn.ID())
	}
	h.logger.Info("client disconnected", "connection_id", conn.ID(), "shop", c.shop)
}

// dropConn is the lazy-cleanup path for connections discovered dead during
// a send.
func (h *Hub) dropConn(conn core.Conn) {
	h.OnDisconnect(conn)
	_ = conn.Close()
}

func (h *Hub) sendError(conn core.Conn, message string) {
	if err := conn.Send(core.NewErrorEnvelope(message)); err != nil {
		h.logger.Warn("error reply failed", "connection_id", conn.ID(), "error", err)
	}
}

// Subscribers reports the live subscriber count for a shop.
func (h *Hub) Subscribers(shop string) int {
	return h.registry.Count(shop)
}

// Connections reports the total number of tracked connections, including
// ones that have not authenticated yet.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
