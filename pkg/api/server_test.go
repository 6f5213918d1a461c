package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sitedock/sitedock/pkg/events"
	"github.com/sitedock/sitedock/pkg/registry"
)

func newTestServer(t *testing.T) (*Server, *registry.Registry) {
	t.Helper()
	reg := registry.New(filepath.Join(t.TempDir(), "sites.json"))
	if _, err := reg.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	return NewServer(0, reg, nil, events.NewBus()), reg
}

func TestHandleSitesListsRegistry(t *testing.T) {
	srv, reg := newTestServer(t)
	if err := reg.Upsert(registry.Site{Name: "myblog", Folder: "/tmp/myblog"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.handleSites(rec, httptest.NewRequest(http.MethodGet, "/api/sites", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var sites []registry.Site
	if err := json.NewDecoder(rec.Body).Decode(&sites); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sites) != 1 || sites[0].Name != "myblog" {
		t.Fatalf("sites = %+v", sites)
	}
}

func TestHandleUpsertPersistsAndNotifies(t *testing.T) {
	srv, reg := newTestServer(t)

	notified := false
	srv.Bus.Subscribe(events.SitesUpdated, func(events.Event) { notified = true })

	body, _ := json.Marshal(registry.Site{Name: "shop", Folder: "/tmp/shop"})
	rec := httptest.NewRecorder()
	srv.handleUpsert(rec, httptest.NewRequest(http.MethodPost, "/api/sites/upsert", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !notified {
		t.Error("expected a sites:updated event")
	}

	if _, err := reg.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := reg.ByName("shop"); !ok {
		t.Error("site was not persisted")
	}
}

func TestHandleUpsertRejectsBadPayload(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleUpsert(rec, httptest.NewRequest(http.MethodPost, "/api/sites/upsert", bytes.NewReader([]byte("{"))))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRemoveUnknownSiteSucceeds(t *testing.T) {
	srv, _ := newTestServer(t)

	body := []byte(`{"id":"does-not-exist"}`)
	rec := httptest.NewRecorder()
	srv.handleRemove(rec, httptest.NewRequest(http.MethodPost, "/api/sites/remove", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

// Handlers run on concurrent goroutines but share one registry; they
// must serialize every reload and mutation.
func TestHandlersSerializeRegistryAccess(t *testing.T) {
	srv, _ := newTestServer(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			body, _ := json.Marshal(registry.Site{
				ID:     fmt.Sprintf("s%d", i),
				Name:   fmt.Sprintf("site-%d", i),
				Folder: "/tmp/x",
			})
			rec := httptest.NewRecorder()
			srv.handleUpsert(rec, httptest.NewRequest(http.MethodPost, "/api/sites/upsert", bytes.NewReader(body)))
		}()
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			srv.handleSites(rec, httptest.NewRequest(http.MethodGet, "/api/sites", nil))
		}()
	}
	wg.Wait()

	if _, err := srv.Registry.Load(); err != nil {
		t.Fatalf("Registry unreadable after concurrent handlers: %v", err)
	}
	if len(srv.Registry.Sites) != 8 {
		t.Errorf("Expected all 8 upserts persisted, got %d sites", len(srv.Registry.Sites))
	}
}

func TestReloadRegistryPicksUpExternalEdits(t *testing.T) {
	srv, reg := newTestServer(t)

	notified := false
	srv.Bus.Subscribe(events.SitesUpdated, func(events.Event) { notified = true })

	// Another process rewrites the backing file.
	other := registry.New(reg.Path())
	if _, err := other.Load(); err != nil {
		t.Fatal(err)
	}
	if err := other.Upsert(registry.Site{Name: "external", Folder: "/tmp/e"}); err != nil {
		t.Fatal(err)
	}

	if err := srv.ReloadRegistry(); err != nil {
		t.Fatalf("ReloadRegistry failed: %v", err)
	}
	if _, ok := srv.Registry.ByName("external"); !ok {
		t.Error("External edit not visible after reload")
	}
	if !notified {
		t.Error("Expected a sites:updated event after reload")
	}
}

func TestHandleRemoveRequiresID(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleRemove(rec, httptest.NewRequest(http.MethodPost, "/api/sites/remove", bytes.NewReader([]byte("{}"))))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
