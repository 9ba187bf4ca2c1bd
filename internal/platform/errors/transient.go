package errors

// Transport-specific helpers for mapping network and webhook failures to project ErrorCode and retry semantics

import (
	"context"
	stderrs "errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
)

// ExtractNetError returns (net.Error, true) if the root cause is a net.Error.
func ExtractNetError(err error) (net.Error, bool) {
	var nerr net.Error
	if stderrs.As(Root(err), &nerr) {
		return nerr, true
	}
	return nil, false
}

// IsTimeout reports whether the error is a network timeout
func IsTimeout(err error) bool {
	nerr, ok := ExtractNetError(err)
	return ok && nerr.Timeout()
}

// IsConnRefused reports whether the error is a refused connection
func IsConnRefused(err error) bool { return stderrs.Is(Root(err), syscall.ECONNREFUSED) }

// IsConnReset reports whether the peer reset the connection mid-exchange
func IsConnReset(err error) bool { return stderrs.Is(Root(err), syscall.ECONNRESET) }

// IsDNSFailure reports whether hostname resolution failed
func IsDNSFailure(err error) bool {
	var derr *net.DNSError
	return stderrs.As(Root(err), &derr)
}

// TransientStatus reports whether a downstream HTTP status is worth one retry.
// 5xx plus the explicit throttle/timeout statuses; 4xx means the request itself is bad
func TransientStatus(status int) bool {
	if status >= http.StatusInternalServerError {
		return true
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return false
}

// StatusErrorCode maps a downstream HTTP status to an ErrorCode with an ok flag
// !ok means the status is a success status; caller should not treat it as an error
func StatusErrorCode(status int) (ErrorCode, bool) {
	switch {
	case status < http.StatusBadRequest:
		return ErrorCodeUnknown, false

	case status == http.StatusRequestTimeout:
		return ErrorCodeUnavailable, true

	case status == http.StatusTooManyRequests:
		return ErrorCodeTooManyRequests, true

	case status >= http.StatusInternalServerError:
		// Server-side trouble; retry may succeed
		return ErrorCodeUnavailable, true
	}

	// Remaining 4xx: the event itself was refused
	return ErrorCodeRejected, true
}

// FromStatus turns a downstream HTTP status into an error, or nil for success statuses
func FromStatus(status int, msg string) error {
	code, ok := StatusErrorCode(status)
	if !ok {
		return nil
	}
	return Newf(code, "%s: status %d", msg, status)
}

// FromTransport wraps a transport error with a code matching its retry class.
// If err is nil, returns nil
func FromTransport(err error, msg string) error {
	if err == nil {
		return nil
	}
	if IsRetryable(err) {
		return Wrap(err, ErrorCodeUnavailable, msg)
	}
	return Wrap(err, ErrorCodeUnknown, msg)
}

// IsRetryable reports whether an error represents a transient condition worth
// retrying. It handles net.Error timeouts, common socket errnos, url.Error
// wrapping from http.Client, and our own Unavailable/TooManyRequests codes
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Do not retry local cancellations/timeouts; let the caller decide higher-level retries
	if stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Our own classification wins when present
	switch CodeOf(err) {
	case ErrorCodeUnavailable, ErrorCodeTooManyRequests:
		return true
	case ErrorCodeRejected:
		return false
	}

	// http.Client wraps everything in *url.Error; unwrap to the transport cause
	var uerr *url.Error
	if stderrs.As(err, &uerr) {
		if uerr.Timeout() {
			return true
		}
		err = uerr.Err
	}

	root := Root(err)

	var nerr net.Error
	if stderrs.As(root, &nerr) && nerr.Timeout() {
		return true
	}

	switch {
	case stderrs.Is(root, syscall.ECONNREFUSED),
		stderrs.Is(root, syscall.ECONNRESET),
		stderrs.Is(root, syscall.EPIPE),
		stderrs.Is(root, syscall.EHOSTUNREACH),
		stderrs.Is(root, syscall.ENETUNREACH),
		stderrs.Is(root, io.ErrUnexpectedEOF),
		stderrs.Is(root, io.EOF):
		return true
	}

	var derr *net.DNSError
	if stderrs.As(root, &derr) {
		return derr.IsTimeout || derr.IsTemporary || derr.IsNotFound
	}

	// Fallback: text patterns from http.Client/net on half-closed or dropped conns
	s := strings.ToLower(root.Error())
	switch {
	case strings.Contains(s, "connection refused"),
		strings.Contains(s, "connection reset by peer"),
		strings.Contains(s, "broken pipe"),
		strings.Contains(s, "no such host"),
		strings.Contains(s, "i/o timeout"),
		strings.Contains(s, "tls handshake timeout"),
		strings.Contains(s, "server closed idle connection"),
		strings.Contains(s, "http: server closed"):
		return true
	default:
		return false
	}
}
