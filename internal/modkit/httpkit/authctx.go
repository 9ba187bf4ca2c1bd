package httpkit

import (
	"net/http"
	"strings"

	perrs "facewarden/internal/platform/errors"
	pnet "facewarden/internal/platform/net"
)

// Client returns the authenticated api client id from the request context
func Client(r *http.Request) (string, error) {
	cid := pnet.ClientID(r.Context())
	if cid == "" {
		return "", perrs.Unauthorizedf("missing api key")
	}
	return cid, nil
}

// APIKey returns the raw api key from the request headers
// X-API-Key wins, an Authorization Bearer token is accepted as fallback
func APIKey(r *http.Request) (string, error) {
	if k := strings.TrimSpace(r.Header.Get("X-API-Key")); k != "" {
		return k, nil
	}

	authz := r.Header.Get("Authorization")
	if strings.TrimSpace(authz) == "" {
		return "", perrs.Unauthorizedf("missing api key")
	}
	// case-insensitive Bearer prefix (don't trim the whole header first)
	const prefix = "bearer "
	if len(authz) < len(prefix) || strings.ToLower(authz[:len(prefix)]) != prefix {
		return "", perrs.Unauthorizedf("missing api key")
	}
	raw := strings.TrimSpace(authz[len(prefix):])
	if raw == "" {
		return "", perrs.Unauthorizedf("missing api key")
	}
	return raw, nil
}
