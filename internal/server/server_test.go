package server

import (
	"context"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/storekit/config-hub/pkg/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// freePort grabs an ephemeral port and releases it so the server under test
// can bind it. Another process could steal it in between, but in practice
// the window is too small to matter for tests.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func testOptions(t *testing.T, port int) Options {
	t.Helper()
	return Options{
		Port:   port,
		Store:  store.NewMemoryStore(),
		Logger: testLogger(),
	}
}

func TestDefaultReturnsSameInstance(t *testing.T) {
	t.Cleanup(Reset)
	opts := testOptions(t, freePort(t))

	first := Default(opts)
	second := Default(opts)
	if first != second {
		t.Fatal("Default must hand every caller the same instance")
	}
	if !first.Listening() {
		t.Fatal("first instance should be listening")
	}
}

func TestDefaultConcurrentCallersShareOneInstance(t *testing.T) {
	t.Cleanup(Reset)
	opts := testOptions(t, freePort(t))

	const callers = 16
	results := make([]*Server, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Default(opts)
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if results[i] != results[0] {
			t.Fatalf("caller %d got a different instance", i)
		}
	}
}

func TestResetIsIdempotent(t *testing.T) {
	t.Cleanup(Reset)
	opts := testOptions(t, freePort(t))

	Default(opts)
	Reset()
	Reset()
}

func TestResetThenDefaultRebindsSamePort(t *testing.T) {
	t.Cleanup(Reset)
	port := freePort(t)
	opts := testOptions(t, port)

	first := Default(opts)
	if !first.Listening() {
		t.Fatal("first instance should be listening")
	}
	addr := first.Addr()

	Reset()

	second := Default(testOptions(t, port))
	if second == first {
		t.Fatal("Reset must clear the tracked instance")
	}
	if !second.Listening() {
		t.Fatal("fresh instance should reclaim the released port")
	}
	if second.Addr() != addr {
		t.Fatalf("rebound addr = %q, want %q", second.Addr(), addr)
	}
}

func TestDefaultToleratesPortInUse(t *testing.T) {
	t.Cleanup(Reset)
	port := freePort(t)

	blocker, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		t.Fatalf("blocker listen: %v", err)
	}
	defer blocker.Close()

	s := Default(testOptions(t, port))
	if s == nil {
		t.Fatal("Default must still return an instance when the port is held")
	}
	if s.Listening() {
		t.Fatal("instance must not report listening on a held port")
	}

	if again := Default(testOptions(t, port)); again != s {
		t.Fatal("later callers must share the tracked instance")
	}
}

func TestNewDoesNotBindUntilStart(t *testing.T) {
	port := freePort(t)
	s := New(testOptions(t, port))

	if s.Listening() {
		t.Fatal("server must not listen before Start")
	}
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		t.Fatalf("port must stay free before Start: %v", err)
	}
	ln.Close()

	// The hub is usable without a listener, e.g. when only other
	// transports are configured.
	if s.Hub() == nil {
		t.Fatal("hub must be available without a listener")
	}
	if s.Hub().Subscribers("acme") != 0 {
		t.Fatal("fresh hub must have no subscribers")
	}
}

func TestShutdownReleasesPort(t *testing.T) {
	port := freePort(t)
	s := New(testOptions(t, port))
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if s.Listening() {
		t.Fatal("server must not report listening after shutdown")
	}

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		t.Fatalf("port not released: %v", err)
	}
	ln.Close()
}

