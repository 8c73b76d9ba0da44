package faucet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ReneKroon/ttlcache/v2"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	uatomic "go.uber.org/atomic"

	"github.com/mezonai/mmn-faucet/chain"
	"github.com/mezonai/mmn-faucet/common"
	"github.com/mezonai/mmn-faucet/config"
	"github.com/mezonai/mmn-faucet/errors"
	"github.com/mezonai/mmn-faucet/logx"
	"github.com/mezonai/mmn-faucet/monitoring"
	"github.com/mezonai/mmn-faucet/queue"
	"github.com/mezonai/mmn-faucet/ratelimit"
	"github.com/mezonai/mmn-faucet/recaptcha"
	"github.com/mezonai/mmn-faucet/store"
	"github.com/mezonai/mmn-faucet/types"
)

// Dispatcher is the faucet core. Both front-ends funnel normalized requests
// through Request; a single submission loop serializes every accepted request
// against the funding account and is the sole writer of the nonce cursor.
type Dispatcher struct {
	cfg     *config.FaucetConfig
	gateway chain.Gateway
	signer  *chain.Signer
	limiter *ratelimit.DripLimiter
	gate    *recaptcha.Gate
	queue   *queue.RequestQueue
	store   store.DripStore

	amount         *uint256.Int
	confirmTimeout time.Duration

	// Nonce cursor. Touched only from the submission loop goroutine; the
	// single-writer rule is the sole correctness mechanism for nonce safety.
	nonceInitialized bool
	lastAssigned     uint64

	// inflight holds requests between enqueue and terminal state; terminal
	// requests move to retention for the duplicate-suppression window.
	inflight  sync.Map // request id -> *types.DripRequest
	retention *ttlcache.Cache

	running uatomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// DripStatus is the front-end visible view of a request.
type DripStatus struct {
	RequestID string                  `json:"request_id"`
	State     types.DripState         `json:"state"`
	Record    *types.SubmissionRecord `json:"record,omitempty"`
}

// NewDispatcher wires the faucet core together.
func NewDispatcher(
	cfg *config.FaucetConfig,
	tuning *config.TuningConfig,
	gateway chain.Gateway,
	signer *chain.Signer,
	limiter *ratelimit.DripLimiter,
	gate *recaptcha.Gate,
	dripStore store.DripStore,
) *Dispatcher {
	if tuning == nil {
		tuning = config.DefaultTuning()
	}

	retention := ttlcache.NewCache()
	retention.SetTTL(time.Duration(tuning.Retention.Seconds) * time.Second)
	retention.SkipTTLExtensionOnHit(true)

	return &Dispatcher{
		cfg:            cfg,
		gateway:        gateway,
		signer:         signer,
		limiter:        limiter,
		gate:           gate,
		queue:          queue.NewRequestQueue(tuning.Queue.MaxRequests),
		store:          dripStore,
		amount:         cfg.DripAmount(),
		confirmTimeout: time.Duration(cfg.Chain.ConfirmTimeoutMs) * time.Millisecond,
		retention:      retention,
	}
}

// Amount returns the fixed drip amount.
func (d *Dispatcher) Amount() *uint256.Int {
	return d.amount.Clone()
}

// Unit returns the token unit label used in replies.
func (d *Dispatcher) Unit() string {
	return d.cfg.Drip.Unit
}

// FundingAddress returns the faucet account address.
func (d *Dispatcher) FundingAddress() string {
	return d.signer.Address()
}

// Start launches the submission loop. It must be called exactly once.
func (d *Dispatcher) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running.Store(true)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.submissionLoop(loopCtx)
	}()
	logx.Info("DISPATCHER", "submission loop started for account ", d.signer.Address())
}

// Stop shuts the dispatcher down: intake closes, the loop finishes its
// current request, and every still-queued request is failed explicitly
// rather than silently discarded.
func (d *Dispatcher) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}

	d.queue.Close()
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()

	for _, req := range d.queue.Drain() {
		d.failRequest(req, errors.NewFaucetError(errors.ErrCodeBackpressure, "faucet is shutting down, try again later"))
	}
	d.retention.Close()
	logx.Info("DISPATCHER", "submission loop stopped")
}

// Request validates, gates and enqueues a drip for recipient. Rejections
// (bad address, recaptcha, rate limit, backpressure) are returned
// synchronously and never create queue state. On success the caller receives
// the pending request and must wait on its Result channel.
func (d *Dispatcher) Request(ctx context.Context, recipient string, source types.DripSource, recaptchaToken string) (*types.DripRequest, error) {
	monitoring.RecordDripRequest(string(source))

	if err := common.ValidateAddress(recipient); err != nil {
		monitoring.RecordRejectedDrip(string(errors.ErrCodeInvalidAddress))
		return nil, errors.NewFaucetError(errors.ErrCodeInvalidAddress, err.Error())
	}

	// The recaptcha check precedes the rate limit on the HTTP path so a
	// failed captcha never consumes drip quota. The chat path carries no
	// captcha at all.
	if source == types.SourceHttp {
		ok, err := d.gate.Check(ctx, recaptchaToken)
		if err != nil {
			monitoring.RecordRejectedDrip(string(errors.ErrCodeRecaptchaFailed))
			return nil, errors.NewFaucetError(errors.ErrCodeRecaptchaFailed, fmt.Sprintf("recaptcha verification unavailable: %v", err))
		}
		if !ok {
			monitoring.RecordRejectedDrip(string(errors.ErrCodeRecaptchaFailed))
			return nil, errors.NewFaucetError(errors.ErrCodeRecaptchaFailed, "recaptcha verification failed")
		}
	}

	if !d.limiter.TryAcquire(recipient) {
		monitoring.RecordRejectedDrip(string(errors.ErrCodeRateLimited))
		return nil, errors.NewFaucetError(errors.ErrCodeRateLimited, fmt.Sprintf("drip limit reached for %s, try again later", recipient))
	}

	req := types.NewDripRequest(uuid.NewString(), recipient, source, d.amount.Clone())

	// Registered before enqueue so the submission loop can never finish and
	// retire the request while its inflight entry is still missing.
	d.inflight.Store(req.ID, req)
	req.SetState(types.StateQueued)

	if err := d.queue.Enqueue(req); err != nil {
		// Quota stays consumed; refunding here would let a full queue be
		// used to re-drain the limiter.
		d.inflight.Delete(req.ID)
		monitoring.RecordRejectedDrip(string(errors.ErrCodeBackpressure))
		return nil, errors.NewFaucetError(errors.ErrCodeBackpressure, "faucet is busy, try again later")
	}

	monitoring.SetQueueDepth(d.queue.Len())
	logx.Debug("DISPATCHER", "queued drip ", req.ID, " for ", recipient, " via ", string(source))
	return req, nil
}

// Await blocks until the request's submission result arrives or ctx is done.
func (d *Dispatcher) Await(ctx context.Context, req *types.DripRequest) (types.DripResult, error) {
	select {
	case res := <-req.Result:
		return res, res.Err
	case <-ctx.Done():
		return types.DripResult{RequestID: req.ID}, ctx.Err()
	}
}

// Balance returns the funding account's current balance.
func (d *Dispatcher) Balance(ctx context.Context) (*uint256.Int, error) {
	balance, err := d.gateway.GetBalance(ctx, d.signer.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to query faucet balance: %w", err)
	}
	monitoring.SetFaucetBalance(float64(balance.Uint64()))
	return balance, nil
}

// Status reports the current state of a request, consulting in-flight
// requests, the retention cache and finally the persistent store.
func (d *Dispatcher) Status(requestID string) (*DripStatus, error) {
	if v, ok := d.inflight.Load(requestID); ok {
		req := v.(*types.DripRequest)
		state := req.State()
		if state.Terminal() {
			// Terminal but not yet retired; attach the persisted record
			// when it already exists.
			if record, err := d.store.Get(requestID); err == nil && record != nil {
				return &DripStatus{RequestID: requestID, State: state, Record: record}, nil
			}
		}
		return &DripStatus{RequestID: requestID, State: state}, nil
	}

	if v, err := d.retention.Get(requestID); err == nil {
		return v.(*DripStatus), nil
	}

	record, err := d.store.Get(requestID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errors.NewFaucetError(errors.ErrCodeRequestNotFound, fmt.Sprintf("request %s not found", requestID))
	}

	state := types.StateSubmitted
	switch record.Outcome {
	case types.OutcomeConfirmed:
		state = types.StateConfirmed
	case types.OutcomeFailed:
		state = types.StateFailed
	}
	return &DripStatus{RequestID: requestID, State: state, Record: record}, nil
}

// submissionLoop is the single consumer of the queue and the only code that
// reads or advances the nonce cursor.
func (d *Dispatcher) submissionLoop(ctx context.Context) {
	for {
		req, ok := d.queue.Dequeue(ctx)
		if !ok {
			return
		}
		monitoring.SetQueueDepth(d.queue.Len())
		d.submit(ctx, req)
	}
}

// submit drives one request from Submitting to Submitted or Failed.
func (d *Dispatcher) submit(ctx context.Context, req *types.DripRequest) {
	req.SetState(types.StateSubmitting)

	nonce, err := d.nextNonce(ctx)
	if err != nil {
		d.markCursorUnknown()
		d.failRequest(req, errors.NewFaucetError(errors.ErrCodeChainUnavailable, fmt.Sprintf("failed to obtain nonce: %v", err)))
		return
	}

	txHash, usedNonce, err := d.submitWithNonce(ctx, req, nonce)
	if err != nil {
		if rpcErr, ok := chain.IsChainRejection(err); ok && rpcErr.IsNonceConflict() {
			// The cursor was stale. Resync once from the chain's
			// authoritative value; a second rejection is terminal.
			logx.Warn("DISPATCHER", "nonce conflict at ", nonce, ", resyncing cursor: ", rpcErr.Message)
			d.markCursorUnknown()
			retryNonce, nErr := d.nextNonce(ctx)
			if nErr != nil {
				d.failRequest(req, errors.NewFaucetError(errors.ErrCodeChainUnavailable, fmt.Sprintf("nonce resync failed: %v", nErr)))
				return
			}
			txHash, usedNonce, err = d.submitWithNonce(ctx, req, retryNonce)
		}
	}
	if err != nil {
		if _, ok := chain.IsChainRejection(err); ok {
			d.failRequest(req, errors.NewFaucetError(errors.ErrCodeSubmissionRejected, err.Error()))
		} else {
			// Transport failure: the node may or may not have seen the
			// transaction, so the cursor is back in doubt.
			d.markCursorUnknown()
			d.failRequest(req, errors.NewFaucetError(errors.ErrCodeChainUnavailable, err.Error()))
		}
		return
	}

	d.lastAssigned = usedNonce
	req.SetState(types.StateSubmitted)

	record := &types.SubmissionRecord{
		RequestID:   req.ID,
		Recipient:   req.Recipient,
		Amount:      req.Amount.Dec(),
		Nonce:       usedNonce,
		TxHash:      txHash,
		Outcome:     types.OutcomePending,
		SubmittedAt: time.Now(),
	}
	if err := d.store.Put(record); err != nil {
		logx.Error("DISPATCHER", "failed to persist submission record ", req.ID, ": ", err)
	}

	monitoring.IncreaseDripsSubmitted()
	logx.Info("DISPATCHER", fmt.Sprintf("submitted drip %s to %s nonce=%d tx=%s", req.ID, req.Recipient, usedNonce, txHash))

	req.Result <- types.DripResult{RequestID: req.ID, TxHash: txHash}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.watchConfirmation(ctx, req, record)
	}()
}

// nextNonce returns the nonce to use for the next submission, fetching the
// authoritative account nonce when the cursor is uninitialized or in doubt.
func (d *Dispatcher) nextNonce(ctx context.Context) (uint64, error) {
	if !d.nonceInitialized {
		chainNonce, err := d.gateway.GetAccountNonce(ctx, d.signer.Address())
		if err != nil {
			return 0, err
		}
		d.lastAssigned = chainNonce
		d.nonceInitialized = true
		logx.Info("DISPATCHER", "nonce cursor synced from chain: ", chainNonce)
	}
	return d.lastAssigned + 1, nil
}

func (d *Dispatcher) markCursorUnknown() {
	d.nonceInitialized = false
}

func (d *Dispatcher) submitWithNonce(ctx context.Context, req *types.DripRequest, nonce uint64) (string, uint64, error) {
	monitoring.IncreaseSubmissionAttempts()
	tx := chain.NewTransfer(d.signer.Address(), req.Recipient, req.Amount, nonce)
	logx.Debug("DISPATCHER", "submitting drip ", req.ID, " nonce=", nonce, " local hash ", tx.Hash())
	txHash, err := d.gateway.SubmitTransfer(ctx, d.signer.Sign(tx))
	if err != nil {
		return "", nonce, err
	}
	return txHash, nonce, nil
}

// failRequest finalizes a request that never reached the chain.
func (d *Dispatcher) failRequest(req *types.DripRequest, ferr *errors.FaucetError) {
	req.SetState(types.StateFailed)
	monitoring.RecordDripFailed(string(ferr.Code))
	logx.Warn("DISPATCHER", "drip ", req.ID, " failed: ", ferr.Error())

	select {
	case req.Result <- types.DripResult{RequestID: req.ID, Err: ferr}:
	default:
	}
	d.retire(req, &DripStatus{RequestID: req.ID, State: types.StateFailed})
}

// retire moves a terminal request out of the in-flight set into the
// retention cache, where status queries can still see it for a while.
func (d *Dispatcher) retire(req *types.DripRequest, status *DripStatus) {
	d.retention.Set(req.ID, status)
	d.inflight.Delete(req.ID)
}
