package httpkit

import (
	"errors"
	"net/http"
	"testing"

	perrs "facewarden/internal/platform/errors"
)

func TestPort_Parse_MissingHeaders(t *testing.T) {
	t.Parallel()

	p := NewPortFunc(func(string) (string, error) {
		t.Fatalf("validator should not be called when headers are missing")
		return "", nil
	})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	cid, err := p.Parse(req)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if cid != "" {
		t.Fatalf("expected empty client id, got %q", cid)
	}

	var pe *perrs.Error
	if !errors.As(err, &pe) || pe.Code() != perrs.ErrorCodeUnauthorized {
		t.Fatalf("expected unauthorized perrs error, got %#v", err)
	}
}

func TestPort_Parse_WrongSchemeAndEmptyToken(t *testing.T) {
	t.Parallel()

	p := NewPortFunc(func(string) (string, error) {
		t.Fatalf("validator should not be called on malformed headers")
		return "", nil
	})

	// wrong scheme
	req1, _ := http.NewRequest(http.MethodGet, "/", nil)
	req1.Header.Set("Authorization", "Basic abc")
	_, err := p.Parse(req1)
	if err == nil {
		t.Fatalf("expected error for wrong scheme")
	}

	// empty token after Bearer
	req2, _ := http.NewRequest(http.MethodGet, "/", nil)
	req2.Header.Set("Authorization", "Bearer   \t ")
	_, err = p.Parse(req2)
	if err == nil {
		t.Fatalf("expected error for empty token")
	}
}

func TestPort_Parse_RejectedKey(t *testing.T) {
	t.Parallel()

	calls := 0
	p := NewPortFunc(func(key string) (string, error) {
		calls++
		if key != "bad-key" {
			t.Fatalf("expected raw key bad-key, got %q", key)
		}
		return "", errors.New("no such key")
	})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "bad-key")

	cid, err := p.Parse(req)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if cid != "" {
		t.Fatalf("expected empty client id on rejected key, got %q", cid)
	}
	if calls != 1 {
		t.Fatalf("expected validator called once, got %d", calls)
	}
}

func TestPort_Parse_ValidKey_HeaderAndBearer(t *testing.T) {
	t.Parallel()

	calls := 0
	p := NewPortFunc(func(key string) (string, error) {
		calls++
		if key != "abc123" {
			t.Fatalf("expected trimmed key abc123, got %q", key)
		}
		return "client-1", nil
	})

	// plain header
	req1, _ := http.NewRequest(http.MethodGet, "/", nil)
	req1.Header.Set("X-API-Key", "abc123")
	cid, err := p.Parse(req1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cid != "client-1" {
		t.Fatalf("unexpected client id %q", cid)
	}

	// bearer fallback, case-insensitive prefix and trimmed token
	req2, _ := http.NewRequest(http.MethodGet, "/", nil)
	req2.Header.Set("Authorization", "BEARER   abc123")
	cid, err = p.Parse(req2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cid != "client-1" {
		t.Fatalf("unexpected client id %q", cid)
	}

	if calls != 2 {
		t.Fatalf("expected validator called twice, got %d", calls)
	}
}

func TestPort_Parse_NilValidator(t *testing.T) {
	t.Parallel()

	// zero value friendly guard when parse is nil
	var p Port

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "tok")

	_, err := p.Parse(req)
	if err == nil {
		t.Fatalf("expected error when validator is nil")
	}
}
