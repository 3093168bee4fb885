package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storekit/config-hub/pkg/core"
	"github.com/storekit/config-hub/pkg/publish"
)

// Broadcaster is the slice of the hub the write path needs. Admin handlers
// never touch the connection registry directly.
type Broadcaster interface {
	BroadcastConfigUpdate(ctx context.Context, shop string, payload any) int
	Subscribers(shop string) int
}

// API is the admin write path: validate, persist, then fan out. A failed
// fan-out after a successful persist is reported as a warning, never rolled
// back.
type API struct {
	store       core.ConfigStore
	broadcaster Broadcaster
	publishers  *publish.Registry
	logger      *slog.Logger
	token       string
}

func New(store core.ConfigStore, b Broadcaster, publishers *publish.Registry, logger *slog.Logger, token string) *API {
	return &API{
		store:       store,
		broadcaster: b,
		publishers:  publishers,
		logger:      logger,
		token:       token,
	}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", a.handleHealth)
	r.Route("/api/shops/{shop}", func(r chi.Router) {
		r.Use(a.requireToken)
		r.Get("/config", a.handleGetConfig)
		r.Put("/config", a.handlePutConfig)
		r.Patch("/config/sections/{section}", a.handlePatchSection)
		r.Get("/subscribers", a.handleSubscribers)
	})
	return r
}

func (a *API) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.token != "" && r.Header.Get("X-Admin-Token") != a.token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid admin token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	shop := chi.URLParam(r, "shop")

	doc, err := a.store.Get(r.Context(), shop)
	if err != nil {
		if !errors.Is(err, core.ErrConfigNotFound) {
			a.logger.Error("config read failed", "shop", shop, "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "config store unavailable"})
			return
		}
		doc = core.DefaultDocument()
	}
	writeJSON(w, http.StatusOK, doc)
}

type updateResponse struct {
	Persisted bool   `json:"persisted"`
	Delivered int    `json:"delivered"`
	Warning   string `json:"warning,omitempty"`
}

// handlePutConfig replaces the whole document for a shop.
func (a *API) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	shop := chi.URLParam(r, "shop")

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var doc core.Document
	if err := dec.Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid configuration document: " + err.Error()})
		return
	}

	if err := a.store.Put(r.Context(), shop, &doc); err != nil {
		a.logger.Error("config persist failed", "shop", shop, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "persist failed"})
		return
	}

	resp := a.fanOut(r.Context(), shop, "", &doc)
	writeJSON(w, http.StatusOK, resp)
}

// handlePatchSection replaces one named section wholesale; fields within a
// section are never merged. Subscribers receive only the changed fragment.
func (a *API) handlePatchSection(w http.ResponseWriter, r *http.Request) {
	shop := chi.URLParam(r, "shop")
	section := chi.URLParam(r, "section")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body: " + err.Error()})
		return
	}

	doc, err := a.store.Get(r.Context(), shop)
	if err != nil {
		if !errors.Is(err, core.ErrConfigNotFound) {
			a.logger.Error("config read failed", "shop", shop, "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "config store unavailable"})
			return
		}
		doc = core.DefaultDocument()
	}

	if err := doc.ApplySection(section, body); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, core.ErrUnknownSection) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	if err := a.store.Put(r.Context(), shop, doc); err != nil {
		a.logger.Error("config persist failed", "shop", shop, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "persist failed"})
		return
	}

	fragment := map[string]json.RawMessage{section: body}
	resp := a.fanOut(r.Context(), shop, section, fragment)
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	shop := chi.URLParam(r, "shop")
	writeJSON(w, http.StatusOK, map[string]any{
		"shop":        shop,
		"subscribers": a.broadcaster.Subscribers(shop),
	})
}

// fanOut pushes the persisted change to live subscribers and republishes it
// to external brokers. The write has already succeeded by the time this
// runs; anything that goes wrong here becomes a warning in the response.
func (a *API) fanOut(ctx context.Context, shop, section string, payload any) updateResponse {
	subscribers := a.broadcaster.Subscribers(shop)
	delivered := a.broadcaster.BroadcastConfigUpdate(ctx, shop, payload)

	resp := updateResponse{Persisted: true, Delivered: delivered}
	if delivered < subscribers {
		resp.Warning = fmt.Sprintf("delivered to %d of %d subscribers", delivered, subscribers)
	}

	if a.publishers != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			a.logger.Error("change event marshal failed", "shop", shop, "error", err)
			return resp
		}
		a.publishers.PublishAll(ctx, core.ChangeEvent{
			ID:        uuid.New().String(),
			Shop:      shop,
			Section:   section,
			Payload:   raw,
			Timestamp: time.Now().UTC(),
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
