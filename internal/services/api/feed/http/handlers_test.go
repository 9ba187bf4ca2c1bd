package http_test

import (
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	phttp "facewarden/internal/platform/net/http"
	feedhttp "facewarden/internal/services/api/feed/http"
)

type fakeFeed struct{ hits int }

func (f *fakeFeed) ServeWS(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
	f.hits++
	w.WriteHeader(stdhttp.StatusSwitchingProtocols)
}

func serve(t *testing.T, d feedhttp.Deps) *httptest.ResponseRecorder {
	t.Helper()
	m := chi.NewRouter()
	feedhttp.Register(phttp.AdaptChi(m), d)
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/ws", nil))
	return rec
}

func TestWS_DelegatesToHub(t *testing.T) {
	t.Parallel()

	hub := &fakeFeed{}
	rec := serve(t, feedhttp.Deps{Feed: hub})
	if hub.hits != 1 {
		t.Fatalf("hub hits = %d, want 1", hub.hits)
	}
	if rec.Code != stdhttp.StatusSwitchingProtocols {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWS_UnavailableWhenDisabled(t *testing.T) {
	t.Parallel()

	rec := serve(t, feedhttp.Deps{})
	if rec.Code != stdhttp.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
