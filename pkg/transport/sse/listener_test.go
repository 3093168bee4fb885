package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/storekit/config-hub/internal/hub"
	"github.com/storekit/config-hub/pkg/core"
	"github.com/storekit/config-hub/pkg/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// startListener binds an ephemeral port, serves in the background and returns
// the hub plus the base URL of the event stream.
func startListener(t *testing.T, st core.ConfigStore) (*hub.Hub, string) {
	t.Helper()

	logger := testLogger()
	h := hub.New(st, func(shop, token string) bool { return token != "bad" }, logger)
	l := New("sse", 0, h, logger)

	if err := l.Bind(); err != nil {
		t.Fatalf("bind: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go l.Start(ctx)
	t.Cleanup(func() {
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		l.Stop(stopCtx)
	})

	_, port, err := net.SplitHostPort(l.Addr())
	if err != nil {
		t.Fatalf("split addr %q: %v", l.Addr(), err)
	}
	return h, "http://127.0.0.1:" + port + "/events"
}

func openStream(t *testing.T, url string) *bufio.Reader {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q, want text/event-stream", ct)
	}
	return bufio.NewReader(resp.Body)
}

func readEvent(t *testing.T, r *bufio.Reader) core.Envelope {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			t.Fatalf("unexpected stream line %q", line)
		}
		var env core.Envelope
		if err := json.Unmarshal([]byte(data), &env); err != nil {
			t.Fatalf("unmarshal %q: %v", data, err)
		}
		return env
	}
}

func TestStreamHandshakeDeliversSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	doc := core.DefaultDocument()
	doc.Header.LogoURL = "https://cdn.acme.test/logo.svg"
	if err := st.Put(context.Background(), "acme", doc); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	_, base := startListener(t, st)
	stream := openStream(t, base+"?shop=acme&token=ok")

	if env := readEvent(t, stream); env.Type != core.MsgAuthSuccess {
		t.Fatalf("first event type = %q, want auth_success", env.Type)
	}

	env := readEvent(t, stream)
	if env.Type != core.MsgConfigUpdate {
		t.Fatalf("second event type = %q, want config_update", env.Type)
	}
	var got core.Document
	if err := json.Unmarshal(env.Payload, &got); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if got.Header == nil || got.Header.LogoURL != "https://cdn.acme.test/logo.svg" {
		t.Fatalf("snapshot header = %+v, want seeded logo", got.Header)
	}
}

func TestBroadcastReachesStream(t *testing.T) {
	h, base := startListener(t, store.NewMemoryStore())
	stream := openStream(t, base+"?shop=acme&token=ok")

	readEvent(t, stream) // auth_success
	readEvent(t, stream) // snapshot

	if n := h.Subscribers("acme"); n != 1 {
		t.Fatalf("subscribers = %d, want 1", n)
	}

	delivered := h.BroadcastConfigUpdate(context.Background(), "acme",
		map[string]string{"hello": "world"})
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}

	env := readEvent(t, stream)
	if env.Type != core.MsgConfigUpdate {
		t.Fatalf("event type = %q, want config_update", env.Type)
	}
	var payload map[string]string
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["hello"] != "world" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestRejectedTokenReturns403(t *testing.T) {
	h, base := startListener(t, store.NewMemoryStore())

	resp, err := http.Get(base + "?shop=acme&token=bad")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if h.Subscribers("acme") != 0 || h.Connections() != 0 {
		t.Fatal("rejected stream must leave no registry trace")
	}
}

func TestConnSendAfterCloseFails(t *testing.T) {
	c := newConn("c1")
	c.Close()
	if err := c.Send([]byte("x")); err == nil {
		t.Fatal("expected error sending on a closed stream")
	}
	// Close is idempotent.
	c.Close()
}

func TestConnSendWithoutDrainFails(t *testing.T) {
	c := newConn("c1")
	for i := 0; i < cap(c.ch); i++ {
		if err := c.Send([]byte("x")); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := c.Send([]byte("x")); err == nil {
		t.Fatal("expected error once the buffer is full")
	}
}
