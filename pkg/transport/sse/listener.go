package sse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/storekit/config-hub/internal/hub"
	"github.com/storekit/config-hub/pkg/core"
)

// Listener is the read-only alternative to the websocket transport for
// clients behind proxies that cannot hold a socket open. Authentication
// happens via query parameters instead of an auth message; after that the
// stream carries the same envelopes the websocket transport sends.
type Listener struct {
	name   string
	port   int
	hub    *hub.Hub
	server *http.Server
	ln     net.Listener
	logger *slog.Logger
}

func New(name string, port int, h *hub.Hub, logger *slog.Logger) *Listener {
	l := &Listener{name: name, port: port, hub: h, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", l.handleStream)
	l.server = &http.Server{Handler: mux}
	return l
}

func (l *Listener) Name() string { return l.name }
func (l *Listener) Type() string { return "sse" }

func (l *Listener) Bind() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", l.port))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("%w: %d", core.ErrPortInUse, l.port)
		}
		return fmt.Errorf("sse listen: %w", err)
	}
	l.ln = ln
	return nil
}

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

	l.logger.Info("sse listener starting", "name", l.name, "addr", l.Addr())
	if err := l.server.Serve(l.ln); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (l *Listener) Stop(ctx context.Context) error {
	err := l.server.Shutdown(ctx)
	if l.ln != nil {
		l.ln.Close()
	}
	return err
}

func (l *Listener) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	conn := newConn(core.GenerateConnectionID(r))
	l.hub.OnConnect(conn)

	shop := r.URL.Query().Get("shop")
	token := r.URL.Query().Get("token")
	if err := l.hub.Authenticate(r.Context(), conn, shop, token); err != nil {
		l.hub.OnDisconnect(conn)
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	defer func() {
		l.hub.OnDisconnect(conn)
		conn.Close()
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-conn.done:
			return
		case data := <-conn.ch:
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// conn adapts the one-directional SSE stream to core.Conn. Sends queue into
// a channel drained by the handler goroutine.
type conn struct {
	id        string
	ch        chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newConn(id string) *conn {
	return &conn{
		id:   id,
		ch:   make(chan []byte, 64),
		done: make(chan struct{}),
	}
}

func (c *conn) ID() string { return c.id }

func (c *conn) Send(data []byte) error {
	select {
	case <-c.done:
		return errors.New("sse stream closed")
	case c.ch <- data:
		return nil
	default:
		return errors.New("sse stream not draining")
	}
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}
