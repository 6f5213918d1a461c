package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSite_SuccessStatuses(t *testing.T) {
	for _, status := range []int{200, 204, 301, 302} {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodHead {
				t.Errorf("Expected HEAD request, got %s", r.Method)
			}
			w.Header().Set("Location", "/elsewhere")
			w.WriteHeader(status)
		}))

		if err := Site(context.Background(), srv.URL); err != nil {
			t.Errorf("Status %d should classify as up, got: %v", status, err)
		}
		srv.Close()
	}
}

func TestSite_ErrorStatuses(t *testing.T) {
	for _, status := range []int{404, 500, 503} {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		if err := Site(context.Background(), srv.URL); err == nil {
			t.Errorf("Status %d should classify as error", status)
		}
		srv.Close()
	}
}

func TestSite_ConnectionRefused(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	if err := Site(context.Background(), url); err == nil {
		t.Error("Refused connection should classify as error")
	}
}
