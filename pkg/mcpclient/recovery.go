package mcpclient

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// RecoveryAction determines how run_with_recovery should handle an MCP
// operation failure.
type RecoveryAction int

const (
	// NoRetry — the error is not recoverable (bad request, auth failure, timeout).
	NoRetry RecoveryAction = iota
	// RetrySameSession — transient error (e.g. rate limit), retry on the existing session.
	RetrySameSession
	// RetryNewSession — transport or session failure, tear down and reinitialize before retrying.
	RetryNewSession
)

// Recovery configuration constants.
const (
	// MaxRetries is the number of retry attempts after the initial failure.
	MaxRetries = 1

	// ReinitTimeout is the deadline for recreating an MCP session during recovery.
	ReinitTimeout = 10 * time.Second

	// OperationTimeout is the per-call deadline for ListTools and CallTool.
	OperationTimeout = 60 * time.Second

	// RetryBackoffMin is the minimum jittered backoff between retries.
	RetryBackoffMin = 250 * time.Millisecond

	// RetryBackoffMax is the maximum jittered backoff between retries.
	RetryBackoffMax = 750 * time.Millisecond

	// MCPInitTimeout is the per-server initialization timeout (transport + handshake).
	MCPInitTimeout = 30 * time.Second
)

// rateLimitMarkers and authErrorMarkers are checked against the lowercased
// error string for transports (HTTP, SSE) that surface status codes only as
// text, not as a structured type.
var (
	rateLimitMarkers = []string{"429", "rate limit", "too many requests"}
	authErrorMarkers = []string{"401", "403", "unauthorized", "forbidden"}
	upstreamMarkers  = []string{"502", "503", "504", "500", "bad gateway", "service unavailable", "gateway timeout"}
)

// ClassifyError determines the recovery action for an MCP operation error.
func ClassifyError(err error) RecoveryAction {
	if err == nil {
		return NoRetry
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NoRetry
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NoRetry
	}

	msg := strings.ToLower(err.Error())

	if containsAny(msg, authErrorMarkers) {
		return NoRetry
	}

	if containsAny(msg, rateLimitMarkers) {
		return RetrySameSession
	}

	if isConnectionError(err) || containsAny(msg, upstreamMarkers) {
		return RetryNewSession
	}

	if isMCPProtocolError(err) {
		return NoRetry
	}

	return NoRetry
}

func containsAny(haystack string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(haystack, m) {
			return true
		}
	}
	return false
}

// isConnectionError detects connection-level transport failures: closed
// pipes, reset connections, unreachable hosts.
func isConnectionError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}

	msg := strings.ToLower(err.Error())
	markers := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"connection closed",
		"no such host",
	}
	return containsAny(msg, markers)
}

// isMCPProtocolError detects MCP JSON-RPC semantic errors using the SDK's
// typed jsonrpc.Error, rather than string matching, for robustness.
func isMCPProtocolError(err error) bool {
	var wireErr *jsonrpc.Error
	if !errors.As(err, &wireErr) {
		return false
	}
	switch wireErr.Code {
	case jsonrpc.CodeParseError,
		jsonrpc.CodeInvalidRequest,
		jsonrpc.CodeMethodNotFound,
		jsonrpc.CodeInvalidParams:
		return true
	default:
		return false
	}
}
