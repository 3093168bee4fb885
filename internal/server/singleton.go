package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/storekit/config-hub/pkg/core"
)

var (
	defaultMu  sync.Mutex
	defaultSrv *Server
)

// Default returns the process-wide server, constructing and starting one on
// first use. Construction is guarded by a lock, never a bare existence
// check: concurrent callers always observe the same instance and only one
// listener is ever created for a port.
//
// A listen port already held by another process (typically a stale instance
// left behind by a hot reload) is logged and tolerated: the instance is
// still tracked so later callers share it instead of failing, it just never
// serves until Reset brings up a fresh one.
func Default(opts Options) *Server {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultSrv != nil {
		return defaultSrv
	}

	s := New(opts)
	if err := s.Start(); err != nil {
		if errors.Is(err, core.ErrPortInUse) {
			s.logger.Warn("listen port in use, tracking instance without a listener", "error", err)
		} else {
			s.logger.Error("server start failed", "error", err)
		}
	}
	defaultSrv = s
	return s
}

// SetDefault registers an explicitly constructed server as the process-wide
// instance, for hosts that build it at their composition root.
func SetDefault(s *Server) {
	defaultMu.Lock()
	defaultSrv = s
	defaultMu.Unlock()
}

// Reset shuts the default instance down and clears it so Default can build
// a fresh one on the same port. Calling it with no instance is a no-op.
func Reset() {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultSrv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := defaultSrv.Shutdown(ctx); err != nil {
		defaultSrv.logger.Warn("shutdown during reset", "error", err)
	}
	defaultSrv = nil
}
