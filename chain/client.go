package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/holiman/uint256"

	"github.com/mezonai/mmn-faucet/jsonx"
	"github.com/mezonai/mmn-faucet/logx"
)

// Config holds the RPC client settings.
type Config struct {
	Endpoint       string
	SubmitTimeout  time.Duration
	PollInterval   time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

func (c *Config) applyDefaults() {
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 200 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 5 * time.Second
	}
}

// RPCClient talks to the chain node over its JSON-RPC surface. Safe for
// concurrent use.
type RPCClient struct {
	cfg Config
	cli *jrpc2.Client
}

// NewRPCClient connects to the node's JSON-RPC bridge at cfg.Endpoint.
func NewRPCClient(cfg Config) *RPCClient {
	cfg.applyDefaults()
	ch := jhttp.NewChannel(cfg.Endpoint, nil)
	return &RPCClient{
		cfg: cfg,
		cli: jrpc2.NewClient(ch, nil),
	}
}

// Close tears down the underlying channel.
func (c *RPCClient) Close() error {
	return c.cli.Close()
}

// --- Params/Results mirroring the node's JSON-RPC surface ---

type txMsgParams struct {
	Type      int32  `json:"type"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Timestamp uint64 `json:"timestamp"`
	TextData  string `json:"text_data"`
	Nonce     uint64 `json:"nonce"`
	ExtraInfo string `json:"extra_info"`
}

type signedTxParams struct {
	TxMsg     txMsgParams `json:"tx_msg"`
	Signature string      `json:"signature"`
}

type addTxResponse struct {
	Ok     bool   `json:"ok"`
	TxHash string `json:"tx_hash"`
	Error  string `json:"error"`
}

type getAccountRequest struct {
	Address string `json:"address"`
}

type getAccountResponse struct {
	Address  string `json:"address"`
	Balance  string `json:"balance"`
	Nonce    uint64 `json:"nonce"`
	Decimals uint32 `json:"decimals"`
}

type getCurrentNonceRequest struct {
	Address string `json:"address"`
	Tag     string `json:"tag"`
}

type getCurrentNonceResponse struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
	Tag     string `json:"tag"`
	Error   string `json:"error"`
}

type getTxStatusRequest struct {
	TxHash string `json:"tx_hash"`
}

type txStatusInfo struct {
	TxHash        string `json:"tx_hash"`
	Status        int32  `json:"status"`
	BlockSlot     uint64 `json:"block_slot"`
	BlockHash     string `json:"block_hash"`
	Confirmations uint64 `json:"confirmations"`
	ErrorMessage  string `json:"error_message"`
	Timestamp     uint64 `json:"timestamp"`
}

type nodeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GetBalance returns the free balance of address.
func (c *RPCClient) GetBalance(ctx context.Context, address string) (*uint256.Int, error) {
	var res getAccountResponse
	if err := c.callWithRetry(ctx, "account.getaccount", getAccountRequest{Address: address}, &res); err != nil {
		return nil, err
	}
	balance, err := uint256.FromDecimal(res.Balance)
	if err != nil {
		return nil, fmt.Errorf("node returned unparseable balance %q: %w", res.Balance, err)
	}
	return balance, nil
}

// GetAccountNonce returns the authoritative committed nonce for address.
func (c *RPCClient) GetAccountNonce(ctx context.Context, address string) (uint64, error) {
	var res getCurrentNonceResponse
	if err := c.callWithRetry(ctx, "account.getcurrentnonce", getCurrentNonceRequest{Address: address, Tag: "latest"}, &res); err != nil {
		return 0, err
	}
	if res.Error != "" {
		return 0, &RPCError{Message: res.Error}
	}
	return res.Nonce, nil
}

// SubmitTransfer submits the signed transfer and returns the accepted hash.
func (c *RPCClient) SubmitTransfer(ctx context.Context, tx *SignedTransfer) (string, error) {
	amountStr := "0"
	if tx.Tx.Amount != nil {
		amountStr = tx.Tx.Amount.Dec()
	}
	params := signedTxParams{
		TxMsg: txMsgParams{
			Type:      tx.Tx.Type,
			Sender:    tx.Tx.Sender,
			Recipient: tx.Tx.Recipient,
			Amount:    amountStr,
			Timestamp: tx.Tx.Timestamp,
			TextData:  tx.Tx.TextData,
			Nonce:     tx.Tx.Nonce,
			ExtraInfo: tx.Tx.ExtraInfo,
		},
		Signature: tx.Sig,
	}

	submitCtx, cancel := context.WithTimeout(ctx, c.cfg.SubmitTimeout)
	defer cancel()

	var res addTxResponse
	if err := c.callWithRetry(submitCtx, "tx.addtx", params, &res); err != nil {
		return "", err
	}
	if !res.Ok {
		return "", &RPCError{Message: res.Error}
	}
	return res.TxHash, nil
}

// AwaitInclusion polls the node until txHash finalizes, fails, or the timeout
// elapses.
func (c *RPCClient) AwaitInclusion(ctx context.Context, txHash string, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrInclusionTimeout
		case <-ticker.C:
			var res txStatusInfo
			err := c.callWithRetry(ctx, "tx.gettransactionstatus", getTxStatusRequest{TxHash: txHash}, &res)
			if err != nil {
				if rpcErr, ok := IsChainRejection(err); ok && rpcErr.Code == NodeErrTxNotFound {
					// still in the mempool, keep polling
					continue
				}
				logx.Warn("CHAIN", "status poll failed for ", txHash, ": ", err)
				continue
			}
			switch res.Status {
			case TxStatusFinalized:
				return nil
			case TxStatusFailed:
				return &RPCError{Message: res.ErrorMessage}
			default:
				// processed but not finalized yet
			}
		}
	}
}

// callWithRetry performs one JSON-RPC call, retrying transport errors with
// bounded exponential backoff. Chain-level rejections are returned
// immediately as *RPCError and never retried here.
func (c *RPCClient) callWithRetry(ctx context.Context, method string, params, result interface{}) error {
	var lastErr error
	delay := c.cfg.RetryBaseDelay

	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.cfg.RetryMaxDelay {
				delay = c.cfg.RetryMaxDelay
			}
		}

		err := c.cli.CallResult(ctx, method, params, result)
		if err == nil {
			return nil
		}

		var jerr *jrpc2.Error
		if errors.As(err, &jerr) {
			return toRPCError(jerr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		logx.Warn("CHAIN", fmt.Sprintf("transport error calling %s (attempt %d/%d): %v", method, attempt+1, c.cfg.MaxAttempts, err))
	}
	return fmt.Errorf("rpc %s failed after %d attempts: %w", method, c.cfg.MaxAttempts, lastErr)
}

// toRPCError converts a JSON-RPC error response into a chain rejection,
// lifting the node's structured error code out of the data field when present.
func toRPCError(jerr *jrpc2.Error) *RPCError {
	var ne nodeError
	if len(jerr.Data) > 0 && jsonx.Unmarshal(jerr.Data, &ne) == nil && ne.Code != "" {
		return &RPCError{Code: ne.Code, Message: ne.Message}
	}
	return &RPCError{Message: jerr.Message}
}
