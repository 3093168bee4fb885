package core

import "context"

// Conn is a live bidirectional channel to one client. Implementations own
// their transport details; Send must be safe for concurrent use and must
// fail (rather than block indefinitely) once the peer is gone.
type Conn interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// ConfigStore persists one configuration document per shop. Get returns
// ErrConfigNotFound for a shop that was never written.
type ConfigStore interface {
	Get(ctx context.Context, shop string) (*Document, error)
	Put(ctx context.Context, shop string, doc *Document) error
	Close() error
}

// TokenValidator decides whether a client token grants access to a shop's
// configuration stream. The policy is injected; the hub never interprets
// tokens itself.
type TokenValidator func(shop, token string) bool

// Publisher republishes configuration change events to an external broker.
type Publisher interface {
	Name() string
	Type() string
	Connect(ctx context.Context) error
	Publish(ctx context.Context, evt ChangeEvent) error
	Close(ctx context.Context) error
}
