package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/storekit/config-hub/internal/hub"
	"github.com/storekit/config-hub/internal/logging"
	"github.com/storekit/config-hub/pkg/core"
	"github.com/storekit/config-hub/pkg/transport/ws"
)

const DefaultPort = 8080

type Options struct {
	Port         int
	Store        core.ConfigStore
	Validate     core.TokenValidator
	Logger       *slog.Logger
	DefaultShop  string
	PingInterval time.Duration
	BroadcastLog *logging.BroadcastLogger
}

// Server bundles the hub with its websocket listener. The composition root
// builds one explicitly and passes it by reference; the package-level
// Default accessor exists for hosts that cannot thread a reference through
// per-request handlers.
type Server struct {
	hub       *hub.Hub
	listener  *ws.Listener
	logger    *slog.Logger
	cancel    context.CancelFunc
	listening bool
}

func New(opts Options) *Server {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = ws.DefaultPingInterval
	}
	if opts.Validate == nil {
		opts.Validate = func(shop, token string) bool { return true }
	}

	hubOpts := []hub.Option{}
	if opts.DefaultShop != "" {
		hubOpts = append(hubOpts, hub.WithDefaultShop(opts.DefaultShop))
	}
	if opts.BroadcastLog != nil {
		hubOpts = append(hubOpts, hub.WithBroadcastLogger(opts.BroadcastLog))
	}

	h := hub.New(opts.Store, opts.Validate, opts.Logger, hubOpts...)
	listener := ws.New("ws", opts.Port, h, opts.Logger, ws.WithPingInterval(opts.PingInterval))

	return &Server{
		hub:      h,
		listener: listener,
		logger:   opts.Logger,
	}
}

// Start binds the listen port and begins serving in the background. Bind
// errors surface here synchronously; serve errors after a successful bind
// are logged.
func (s *Server) Start() error {
	if err := s.listener.Bind(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		if err := s.listener.Start(ctx); err != nil {
			s.logger.Error("websocket listener failed", "error", err)
		}
	}()

	s.listening = true
	return nil
}

func (s *Server) Hub() *hub.Hub { return s.hub }

// Addr is the bound listen address, empty when the server never bound.
func (s *Server) Addr() string { return s.listener.Addr() }

// Listening reports whether the server holds its listen port.
func (s *Server) Listening() bool { return s.listening }

func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.listening = false
	return s.listener.Stop(ctx)
}
