package store

import (
	"context"
	"errors"
	"testing"

	"github.com/storekit/config-hub/pkg/core"
)

func TestMemoryPutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	doc := core.DefaultDocument()
	doc.Banners = &core.BannersSection{
		Enabled: true,
		Banners: []core.Banner{{ID: "b1", Title: "Sale"}},
	}
	if err := s.Put(ctx, "acme", doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Get(ctx, "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Banners == nil || got.Banners.Banners[0].ID != "b1" {
		t.Fatalf("unexpected document: %+v", got.Banners)
	}
}

func TestMemoryGetNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, core.ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	doc := core.DefaultDocument()
	doc.Banners.Enabled = true
	_ = s.Put(ctx, "acme", doc)

	first, _ := s.Get(ctx, "acme")
	first.Banners.Enabled = false

	second, _ := s.Get(ctx, "acme")
	if !second.Banners.Enabled {
		t.Fatal("store state aliased by a previous Get")
	}
}

func TestMemoryOverwrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.Put(ctx, "acme", core.DefaultDocument())
	doc := core.DefaultDocument()
	doc.Header = &core.HeaderSection{LogoURL: "https://cdn/logo.png"}
	_ = s.Put(ctx, "acme", doc)

	got, _ := s.Get(ctx, "acme")
	if got.Header.LogoURL != "https://cdn/logo.png" {
		t.Fatalf("expected overwrite, got %+v", got.Header)
	}
}

func TestMemoryClosed(t *testing.T) {
	s := NewMemoryStore()
	s.Close()

	if err := s.Put(context.Background(), "acme", core.DefaultDocument()); !errors.Is(err, core.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
	if _, err := s.Get(context.Background(), "acme"); !errors.Is(err, core.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

func TestFactoryDefaultsToMemory(t *testing.T) {
	s, err := New(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}
}

func TestFactoryUnknownType(t *testing.T) {
	if _, err := New(Config{Type: "cassandra"}); err == nil {
		t.Fatal("expected error for unknown store type")
	}
}
