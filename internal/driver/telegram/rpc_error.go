package telegram

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gotd/td/tgerr"
)

// RPCErrorKind classifies a failed Telegram call.
type RPCErrorKind string

const (
	// RPCErrorUnknown is a failure that could not be classified, including
	// transport errors that never reached the server.
	RPCErrorUnknown RPCErrorKind = "unknown"
	// RPCErrorRateLimited is a FLOOD_WAIT or 420/429 response.
	RPCErrorRateLimited RPCErrorKind = "rate_limited"
	// RPCErrorTemporary is a migrate redirect or server side failure.
	RPCErrorTemporary RPCErrorKind = "temporary"
	// RPCErrorPermanent is a request the server rejects as invalid or forbidden.
	RPCErrorPermanent RPCErrorKind = "permanent"
)

// RPCError describes one failed Telegram call.
type RPCError struct {
	// Operation is the TL method name, for example payments.getStarsTransactions.
	Operation string
	// Kind classifies the failure for retry decisions.
	Kind RPCErrorKind
	// Code is the RPC error code, zero when the server never answered.
	Code int
	// Type is the RPC error type such as CHANNEL_PRIVATE.
	Type string
	// RetryAfter is the server requested wait for rate limited calls.
	RetryAfter time.Duration
	// Cause is the original gotd error.
	Cause error
}

// Error implements error.
func (e *RPCError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: %s (%d %s): %v", e.Operation, e.Kind, e.Code, e.Type, e.Cause)
	}

	return fmt.Sprintf("%s: %s: %v", e.Operation, e.Kind, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *RPCError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether repeating the call later may succeed.
func (e *RPCError) Retryable() bool {
	return e.Kind == RPCErrorRateLimited || e.Kind == RPCErrorTemporary
}

func mapRPCError(operation string, err error) error {
	if err == nil {
		return nil
	}

	rpcErr := &RPCError{
		Operation: operation,
		Kind:      RPCErrorUnknown,
		Cause:     err,
	}

	if retryAfter, ok := tgerr.AsFloodWait(err); ok {
		rpcErr.Kind = RPCErrorRateLimited
		rpcErr.RetryAfter = retryAfter
		if typed, hasRPC := tgerr.As(err); hasRPC {
			rpcErr.Code = typed.Code
			rpcErr.Type = typed.Type
		}

		return rpcErr
	}

	typed, ok := tgerr.As(err)
	if !ok {
		return rpcErr
	}

	rpcErr.Code = typed.Code
	rpcErr.Type = typed.Type
	rpcErr.Kind = classifyRPCError(typed)

	return rpcErr
}

func classifyRPCError(rpcErr *tgerr.Error) RPCErrorKind {
	if rpcErr == nil {
		return RPCErrorUnknown
	}

	errorType := strings.ToUpper(strings.TrimSpace(rpcErr.Type))
	if rpcErr.Code == 420 || rpcErr.Code == 429 || strings.Contains(errorType, "FLOOD") {
		return RPCErrorRateLimited
	}

	switch rpcErr.Code {
	case 303:
		return RPCErrorTemporary
	case 400, 401, 403, 404, 405, 406:
		return RPCErrorPermanent
	}
	if rpcErr.Code >= 500 {
		return RPCErrorTemporary
	}

	return RPCErrorUnknown
}

// IsPermanent reports whether err is an RPC failure that will not go away on retry.
func IsPermanent(err error) bool {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Kind == RPCErrorPermanent
	}

	return false
}
