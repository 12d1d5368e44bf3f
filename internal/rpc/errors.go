package rpc

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	gethRpc "github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrMalformedResponse marks a node response that cannot be trusted, such
	// as logs outside the requested range. Retrying does not help.
	ErrMalformedResponse = errors.New("malformed rpc response")
	// ErrMissingResult marks a block or transaction the node does not know
	// about yet, usually a lagging load-balanced backend.
	ErrMissingResult = errors.New("rpc result missing")
)

// IsTransient reports whether err is worth retrying: timeouts, rate limits,
// transport failures and JSON-RPC server errors. Everything unrecognised is
// treated as fatal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, ErrMalformedResponse):
		return false
	case errors.Is(err, ErrMissingResult), errors.Is(err, gethRpc.ErrNoResult):
		return true
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.EPIPE):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}

	var httpErr gethRpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= http.StatusInternalServerError
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	lower := strings.ToLower(err.Error())
	var rpcErr gethRpc.Error
	if errors.As(err, &rpcErr) {
		if containsAny(lower, fatalMessageTokens) {
			return false
		}
		return isTransientCode(rpcErr.ErrorCode())
	}

	if containsAny(lower, fatalMessageTokens) {
		return false
	}
	return containsAny(lower, transientMessageTokens)
}

func isTransientCode(code int) bool {
	switch {
	case code == -32005 || code == -32603:
		return true
	case code <= -32000 && code >= -32099:
		return true
	default:
		return false
	}
}

func containsAny(msg string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

var transientMessageTokens = []string{
	"timeout",
	"timed out",
	"temporar",
	"unavailable",
	"connection reset",
	"connection refused",
	"broken pipe",
	"too many requests",
	"rate limit",
	"bad gateway",
	"gateway timeout",
	"server closed idle connection",
}

// a node refusing the window size fails the same way on every attempt
var fatalMessageTokens = []string{
	"invalid argument",
	"invalid params",
	"method not found",
	"parse error",
	"query returned more than",
	"block range",
	"exceed maximum block range",
	"range too large",
}
