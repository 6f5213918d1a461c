// Package api exposes the core to external front ends (the windowed
// editor, the menu-bar shortcut, scripts) over a local HTTP + websocket
// interface. It performs no business logic of its own.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sitedock/sitedock/pkg/events"
	"github.com/sitedock/sitedock/pkg/proxy"
	"github.com/sitedock/sitedock/pkg/registry"
)

type Server struct {
	Port         int
	Registry     *registry.Registry
	Orchestrator *proxy.Orchestrator
	Bus          *events.Bus

	// mu serializes every registry mutation and reload: handlers run
	// concurrently, but the registry and orchestrator require callers
	// to serialize mutating calls.
	mu         sync.Mutex
	httpServer *http.Server
}

func NewServer(port int, reg *registry.Registry, orch *proxy.Orchestrator, bus *events.Bus) *Server {
	return &Server{
		Port:         port,
		Registry:     reg,
		Orchestrator: orch,
		Bus:          bus,
	}
}

// SiteStatusView pairs a site with its probed state for status displays.
type SiteStatusView struct {
	Site   registry.Site   `json:"site"`
	Status proxy.SiteState `json:"status"`
}

// StatusView is the full status payload.
type StatusView struct {
	Proxy proxy.State      `json:"proxy"`
	Sites []SiteStatusView `json:"sites"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/sites", s.handleSites)
	mux.HandleFunc("/api/sites/upsert", s.handleUpsert)
	mux.HandleFunc("/api/sites/remove", s.handleRemove)
	mux.HandleFunc("/api/sites/serve", s.handleServe)
	mux.HandleFunc("/api/apply", s.handleApply)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	hub := NewHub()
	go hub.Run()
	SetupEventBridge(hub, s.Bus)
	mux.HandleFunc("/api/ws", s.handleWebSocket(hub))

	return mux
}

// Start blocks serving the API on the loopback interface only.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.Port),
		Handler: s.Handler(),
	}
	fmt.Printf("API listening on http://%s\n", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() {
	if s.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.httpServer.Shutdown(ctx)
}

// ReloadRegistry re-reads the registry file under the handler lock,
// for callers reacting to external file changes.
func (s *Server) ReloadRegistry() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Registry.Load(); err != nil {
		return err
	}
	s.Bus.Publish(events.Event{Type: events.SitesUpdated})
	return nil
}

// PublishStatus derives the proxy and per-site status and announces
// them on the bus, recording metrics along the way. Used by the
// daemon's periodic probe.
func (s *Server) PublishStatus(ctx context.Context) {
	s.mu.Lock()
	served := s.Registry.ServedSites()
	s.mu.Unlock()

	state := s.Orchestrator.Status(ctx)
	SetProxyState(state)
	s.Bus.Publish(events.Event{Type: events.ProxyStateChanged, Payload: string(state)})

	for _, site := range served {
		status := s.Orchestrator.SiteStatus(ctx, site)
		ObserveProbe(status)
		s.Bus.Publish(events.Event{Type: events.SiteProbed, Payload: map[string]interface{}{
			"id":     site.ID,
			"status": string(status),
		}})
	}
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reload so external edits (CLI, editor) are visible immediately.
	if _, err := s.Registry.Load(); err != nil {
		jsonError(w, err)
		return
	}
	jsonResponse(w, s.Registry.Sites)
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var site registry.Site
	if err := json.NewDecoder(r.Body).Decode(&site); err != nil {
		http.Error(w, "invalid site payload", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Registry.Upsert(site); err != nil {
		jsonError(w, err)
		return
	}
	s.Bus.Publish(events.Event{Type: events.SitesUpdated})
	jsonResponse(w, map[string]bool{"ok": true})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Registry.Remove(req.ID); err != nil {
		jsonError(w, err)
		return
	}
	s.Bus.Publish(events.Event{Type: events.SitesUpdated})
	jsonResponse(w, map[string]bool{"ok": true})
}

func (s *Server) handleServe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID     string `json:"id"`
		Served bool   `json:"served"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Registry.SetOnlyServed(req.ID, req.Served); err != nil {
		jsonError(w, err)
		return
	}
	s.Bus.Publish(events.Event{Type: events.SitesUpdated})

	if err := s.Orchestrator.Apply(r.Context()); err != nil {
		ObserveApply(err)
		jsonError(w, err)
		return
	}
	ObserveApply(nil)
	jsonResponse(w, map[string]bool{"ok": true})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.Orchestrator.Apply(r.Context())
	ObserveApply(err)
	if err != nil {
		jsonError(w, err)
		return
	}
	jsonResponse(w, map[string]bool{"ok": true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Orchestrator.StopAll(r.Context()); err != nil {
		jsonError(w, err)
		return
	}
	jsonResponse(w, map[string]bool{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.Orchestrator.Status(r.Context())
	SetProxyState(state)

	view := StatusView{Proxy: state}
	for _, site := range s.Registry.Sites {
		view.Sites = append(view.Sites, SiteStatusView{
			Site:   site,
			Status: s.Orchestrator.SiteStatus(r.Context(), site),
		})
	}
	jsonResponse(w, view)
}

func jsonResponse(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// jsonError surfaces a failure as a single line of diagnostic text,
// keeping the raw message intact.
func jsonError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
