// Package net provides utilities for working with request contexts
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// ctxKey is an unexported key type for context values
type ctxKey string

const (
	keyCameraID ctxKey = "camera_id"
	keyClientID ctxKey = "client_id"
)

// WithRequest annotates context with common request scoped ids
func WithRequest(ctx context.Context, reqID, cameraID string) context.Context {
	if reqID != "" {
		// set chi RequestID so chimw.GetReqID can retrieve it
		ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	}
	if cameraID != "" {
		ctx = context.WithValue(ctx, keyCameraID, cameraID)
	}
	return ctx
}

// WithClient annotates context with the authenticated API client id
func WithClient(ctx context.Context, clientID string) context.Context {
	if clientID != "" {
		ctx = context.WithValue(ctx, keyClientID, clientID)
	}
	return ctx
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string {
	if v := chimw.GetReqID(ctx); v != "" {
		return v
	}
	return ""
}

// CameraID returns the camera id on the context if present
func CameraID(ctx context.Context) string {
	if v, ok := ctx.Value(keyCameraID).(string); ok {
		return v
	}
	return ""
}

// ClientID returns the API client id on the context if present
func ClientID(ctx context.Context) string {
	if v, ok := ctx.Value(keyClientID).(string); ok {
		return v
	}
	return ""
}
