package publish

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/storekit/config-hub/pkg/core"
)

type mockPublisher struct {
	name       string
	connectErr error
	publishErr error
	published  []core.ChangeEvent
	closed     bool
}

func (m *mockPublisher) Name() string { return m.name }
func (m *mockPublisher) Type() string { return "mock" }

func (m *mockPublisher) Connect(ctx context.Context) error { return m.connectErr }

func (m *mockPublisher) Publish(ctx context.Context, evt core.ChangeEvent) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, evt)
	return nil
}

func (m *mockPublisher) Close(ctx context.Context) error {
	m.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEvent(shop string) core.ChangeEvent {
	return core.ChangeEvent{
		ID:        "evt-1",
		Shop:      shop,
		Payload:   []byte(`{}`),
		Timestamp: time.Now().UTC(),
	}
}

func TestConnectAllTracksHealth(t *testing.T) {
	reg := NewRegistry(testLogger())
	good := &mockPublisher{name: "good"}
	bad := &mockPublisher{name: "bad", connectErr: errors.New("broker down")}
	reg.Register(good)
	reg.Register(bad)

	if connected := reg.ConnectAll(context.Background()); connected != 1 {
		t.Fatalf("connected = %d, want 1", connected)
	}
	if !reg.IsHealthy("good") {
		t.Fatal("good publisher should be healthy")
	}
	if reg.IsHealthy("bad") {
		t.Fatal("failed publisher must not be healthy")
	}
}

func TestPublishAllSkipsUnhealthy(t *testing.T) {
	reg := NewRegistry(testLogger())
	good := &mockPublisher{name: "good"}
	bad := &mockPublisher{name: "bad", connectErr: errors.New("broker down")}
	reg.Register(good)
	reg.Register(bad)
	reg.ConnectAll(context.Background())

	reg.PublishAll(context.Background(), testEvent("acme"))

	if len(good.published) != 1 || good.published[0].Shop != "acme" {
		t.Fatalf("healthy publisher got %v", good.published)
	}
	if len(bad.published) != 0 {
		t.Fatal("unhealthy publisher must be skipped")
	}
}

func TestPublishFailureDoesNotAffectOthers(t *testing.T) {
	reg := NewRegistry(testLogger())
	failing := &mockPublisher{name: "failing", publishErr: errors.New("write timeout")}
	working := &mockPublisher{name: "working"}
	reg.Register(failing)
	reg.Register(working)
	reg.ConnectAll(context.Background())

	reg.PublishAll(context.Background(), testEvent("acme"))

	if len(working.published) != 1 {
		t.Fatalf("working publisher got %d events, want 1", len(working.published))
	}
}

func TestCloseAll(t *testing.T) {
	reg := NewRegistry(testLogger())
	a := &mockPublisher{name: "a"}
	b := &mockPublisher{name: "b"}
	reg.Register(a)
	reg.Register(b)
	reg.ConnectAll(context.Background())

	reg.CloseAll(context.Background())

	if !a.closed || !b.closed {
		t.Fatal("CloseAll must close every registered publisher")
	}
}
