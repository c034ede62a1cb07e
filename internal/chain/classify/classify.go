// Package classify sorts ledger, indexer and wallet errors into transient
// and terminal failures.
package classify

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/phuchtq/iota-donation-platform/internal/chain/iota/rpc"
)

type Class string

const (
	ClassTerminal  Class = "terminal"
	ClassTransient Class = "transient"
)

// Decision is the outcome of Classify. Reason is a stable label suitable
// for metrics and logs.
type Decision struct {
	Class  Class
	Reason string
}

func (d Decision) IsTransient() bool {
	return d.Class == ClassTransient
}

func terminal(reason string) Decision  { return Decision{Class: ClassTerminal, Reason: reason} }
func transient(reason string) Decision { return Decision{Class: ClassTransient, Reason: reason} }

// marked carries a class chosen by the caller; it wins over every rule.
type marked struct {
	error
	decision Decision
}

func (m *marked) Unwrap() error { return m.error }

// Transient marks err as transient regardless of its content.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &marked{error: err, decision: transient("explicit_transient")}
}

// Terminal marks err as terminal regardless of its content.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &marked{error: err, decision: terminal("explicit_terminal")}
}

// Wallet bridges follow the EIP-1193 provider codes.
const (
	walletUserRejected = 4001
	walletUnauthorized = 4100
	walletUnsupported  = 4200
	walletDisconnected = 4900
	walletChainGone    = 4901
)

// rule inspects err and reports a decision when it applies.
type rule func(err error) (Decision, bool)

// rules run in order; the first match decides.
var rules = []rule{
	fromMarker,
	fromContext,
	fromNetwork,
	fromRPCCode,
	fromHTTPStatus,
	fromMessage,
}

func Classify(err error) Decision {
	if err == nil {
		return terminal("nil_error")
	}
	for _, r := range rules {
		if d, ok := r(err); ok {
			return d
		}
	}
	return terminal("unknown_terminal_default")
}

func fromMarker(err error) (Decision, bool) {
	var m *marked
	if errors.As(err, &m) {
		return m.decision, true
	}
	return Decision{}, false
}

func fromContext(err error) (Decision, bool) {
	switch {
	case errors.Is(err, context.Canceled):
		return terminal("context_canceled"), true
	case errors.Is(err, context.DeadlineExceeded):
		return transient("context_deadline_exceeded"), true
	}
	return Decision{}, false
}

func fromNetwork(err error) (Decision, bool) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return transient("net_timeout"), true
	}
	return Decision{}, false
}

func fromRPCCode(err error) (Decision, bool) {
	var rpcErr *rpc.RPCError
	if !errors.As(err, &rpcErr) {
		return Decision{}, false
	}
	switch code := rpcErr.Code; {
	case code == walletUserRejected:
		return terminal("wallet_user_rejected"), true
	case code == walletUnauthorized || code == walletUnsupported:
		return terminal("wallet_unauthorized"), true
	case code == walletDisconnected || code == walletChainGone:
		return transient("wallet_disconnected"), true
	case code == -32603:
		return transient("jsonrpc_internal"), true
	case code <= -32000 && code >= -32099:
		return transient("jsonrpc_server_range"), true
	default:
		return terminal("jsonrpc_terminal"), true
	}
}

// fromHTTPStatus reads the "http status NNN" prefix written by the rpc and
// graphql clients.
func fromHTTPStatus(err error) (Decision, bool) {
	msg := err.Error()
	idx := strings.Index(msg, "http status ")
	if idx < 0 {
		return Decision{}, false
	}
	rest := msg[idx+len("http status "):]
	if len(rest) < 3 {
		return Decision{}, false
	}
	code, convErr := strconv.Atoi(rest[:3])
	if convErr != nil {
		return Decision{}, false
	}
	switch {
	case code == 408 || code == 429:
		return transient("http_" + rest[:3]), true
	case code >= 500:
		return transient("http_5xx"), true
	default:
		return terminal("http_" + rest[:3]), true
	}
}

func fromMessage(err error) (Decision, bool) {
	lower := strings.ToLower(err.Error())
	for _, token := range terminalTokens {
		if strings.Contains(lower, token) {
			return terminal("message_terminal"), true
		}
	}
	for _, token := range transientTokens {
		if strings.Contains(lower, token) {
			return transient("message_transient"), true
		}
	}
	return Decision{}, false
}

// Object lookups and Move aborts never succeed on a second attempt.
var terminalTokens = []string{
	"notexists",
	"deleted",
	"not found",
	"invalid params",
	"moveabort",
	"insufficient",
	"user rejected",
}

var transientTokens = []string{
	"timeout",
	"timed out",
	"temporar",
	"unavailable",
	"connection reset",
	"connection refused",
	"broken pipe",
	"rate limit",
	"server closed idle connection",
}
