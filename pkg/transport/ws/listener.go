package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/storekit/config-hub/internal/hub"
	"github.com/storekit/config-hub/pkg/core"
)

const DefaultPingInterval = 30 * time.Second

// Listener accepts websocket subscriber connections and hands them to the
// hub. Bind is separate from Serve so the caller can distinguish a port
// conflict from a runtime failure.
type Listener struct {
	name         string
	port         int
	upgrader     websocket.Upgrader
	hub          *hub.Hub
	server       *http.Server
	ln           net.Listener
	logger       *slog.Logger
	pingInterval time.Duration
}

type Option func(*Listener)

func WithPingInterval(d time.Duration) Option {
	return func(l *Listener) { l.pingInterval = d }
}

func New(name string, port int, h *hub.Hub, logger *slog.Logger, opts ...Option) *Listener {
	l := &Listener{
		name: name,
		port: port,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		hub:          h,
		logger:       logger,
		pingInterval: DefaultPingInterval,
	}
	for _, opt := range opts {
		opt(l)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handleConnection)
	l.server = &http.Server{Handler: mux}
	return l
}

func (l *Listener) Name() string { return l.name }
func (l *Listener) Type() string { return "websocket" }

// Bind claims the listen port. A port held by another process (a stale
// instance after a hot reload, typically) is reported as core.ErrPortInUse
// so callers can fall back instead of crashing.
func (l *Listener) Bind() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", l.port))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("%w: %d", core.ErrPortInUse, l.port)
		}
		return fmt.Errorf("ws listen: %w", err)
	}
	l.ln = ln
	return nil
}

// Addr returns the bound address, useful when the configured port is 0.
func (l *Listener) Addr() string {
	if l.ln == nil {
		return ""
	}
	return l.ln.Addr().String()
}

func (l *Listener) Start(ctx context.Context) error {
	if l.ln == nil {
		if err := l.Bind(); err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.server.Shutdown(shutdownCtx)
	}()

	l.logger.Info("websocket listener starting", "name", l.name, "addr", l.Addr())
	if err := l.server.Serve(l.ln); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains the http server and releases the listen port. Closing the raw
// listener as well covers the window where Bind has run but Serve has not
// picked the listener up yet.
func (l *Listener) Stop(ctx context.Context) error {
	err := l.server.Shutdown(ctx)
	if l.ln != nil {
		l.ln.Close()
	}
	return err
}

func (l *Listener) handleConnection(w http.ResponseWriter, r *http.Request) {
	wsc, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Error("ws upgrade failed", "error", err)
		return
	}

	conn := newConn(core.GenerateConnectionID(r), wsc, l.hub, l.logger, l.pingInterval)
	conn.start()
}
