package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	pnet "facewarden/internal/platform/net"
)

func TestCameraScope_StampsContext(t *testing.T) {
	t.Parallel()

	var got string
	h := CameraScope("front_door")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = pnet.CameraID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got != "front_door" {
		t.Fatalf("camera id = %q, want front_door", got)
	}
}

func TestCameraScope_EmptyIsNoOp(t *testing.T) {
	t.Parallel()

	var got string
	h := CameraScope("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = pnet.CameraID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got != "" {
		t.Fatalf("camera id = %q, want empty", got)
	}
}
