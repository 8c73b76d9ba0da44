package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"
)

// Transaction status codes reported by the node.
const (
	TxStatusFailed    = 0
	TxStatusFinalized = 1
	TxStatusProcessed = 2
)

// Node error codes carried inside chain-level rejections.
const (
	NodeErrInvalidNonce  = "invalid_nonce"
	NodeErrNonceTooLow   = "nonce_too_low"
	NodeErrNonceTooHigh  = "nonce_too_high"
	NodeErrInsufficient  = "insufficient_funds"
	NodeErrDuplicateTx   = "duplicate_transaction"
	NodeErrTxNotFound    = "transaction_not_found"
	NodeErrorUnspecified = ""
)

// ErrInclusionTimeout is returned by AwaitInclusion when the transaction was
// not seen in a finalized block within the deadline. The transaction may
// still land later; this is indeterminate, not a guaranteed failure.
var ErrInclusionTimeout = errors.New("transaction inclusion timed out")

// RPCError is a chain-level rejection, distinct from a transport error.
// Transport errors are retried with bounded backoff inside the client;
// RPCErrors are surfaced to the dispatcher untouched.
type RPCError struct {
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("chain rejected request (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("chain rejected request: %s", e.Message)
}

// IsNonceConflict reports whether the rejection indicates the submitted nonce
// is stale or colliding, which is the one case the dispatcher resyncs and
// retries once.
func (e *RPCError) IsNonceConflict() bool {
	switch e.Code {
	case NodeErrInvalidNonce, NodeErrNonceTooLow, NodeErrNonceTooHigh:
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "nonce")
}

// IsChainRejection reports whether err is a chain-level rejection and returns it.
func IsChainRejection(err error) (*RPCError, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

// Gateway is the faucet's view of the chain node. All calls may fail with a
// transport error; SubmitTransfer may additionally fail with *RPCError when
// the node itself rejects the transaction.
type Gateway interface {
	// GetBalance returns the free balance of address.
	GetBalance(ctx context.Context, address string) (*uint256.Int, error)

	// GetAccountNonce returns the authoritative next-usable nonce source
	// value for address (the count of its committed transactions).
	GetAccountNonce(ctx context.Context, address string) (uint64, error)

	// SubmitTransfer signs nothing; it submits the already signed transfer
	// and returns the transaction hash the node accepted it under.
	SubmitTransfer(ctx context.Context, tx *SignedTransfer) (string, error)

	// AwaitInclusion blocks until txHash is finalized, fails, or timeout
	// elapses. Returns nil on inclusion, ErrInclusionTimeout on deadline,
	// *RPCError when the chain reports the transaction failed.
	AwaitInclusion(ctx context.Context, txHash string, timeout time.Duration) error
}
