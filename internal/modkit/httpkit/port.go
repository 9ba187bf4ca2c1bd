// Package httpkit provides tiny HTTP helpers and adapters
package httpkit

import (
	"net/http"

	perrs "facewarden/internal/platform/errors"
)

// KeyFunc validates a presented api key and returns the client id it belongs to
type KeyFunc func(key string) (clientID string, err error)

// Port implements middleware.AuthPort by reading the api key headers and
// delegating to a KeyFunc
type Port struct {
	parse KeyFunc
}

// NewPortFunc builds a Port from a simple validator function
func NewPortFunc(fn KeyFunc) *Port {
	return &Port{parse: fn}
}

// Parse extracts the client id from X-API-Key or an Authorization Bearer token
// returns unauthorized when the key is missing, malformed, or rejected
func (p *Port) Parse(r *http.Request) (string, error) {
	raw, err := APIKey(r)
	if err != nil {
		return "", err
	}

	if p.parse == nil {
		return "", perrs.Unauthorizedf("invalid api key")
	}

	cid, err := p.parse(raw)
	if err != nil {
		return "", perrs.Unauthorizedf("invalid api key")
	}
	return cid, nil
}
