package types

import (
	"sync"
	"time"

	"github.com/holiman/uint256"
)

// DripSource identifies which front-end created a request. It is used only
// for response routing and logging.
type DripSource string

const (
	SourceChat DripSource = "chat"
	SourceHttp DripSource = "http"
)

// DripState is the lifecycle state of a drip request.
type DripState string

const (
	StateReceived    DripState = "received"
	StateRateLimited DripState = "rate_limited"
	StateQueued      DripState = "queued"
	StateSubmitting  DripState = "submitting"
	StateSubmitted   DripState = "submitted"
	StateConfirmed   DripState = "confirmed"
	StateFailed      DripState = "failed"
)

// Terminal reports whether a request in this state will never advance again.
func (s DripState) Terminal() bool {
	return s == StateRateLimited || s == StateConfirmed || s == StateFailed
}

// DripRequest is a normalized funding request. It is created by a front-end
// adapter at intake and mutated only by the dispatcher after enqueue. The
// lifecycle state is guarded so front-end goroutines can read it while the
// submission loop and watchers advance it.
type DripRequest struct {
	ID          string
	Recipient   string
	Source      DripSource
	Amount      *uint256.Int
	RequestedAt time.Time

	mu    sync.Mutex
	state DripState

	// Result receives exactly one DripResult once the request either fails
	// before submission or is accepted by the chain. Buffered so the
	// dispatcher never blocks on a front-end that went away.
	Result chan DripResult
}

// NewDripRequest creates a request in the received state.
func NewDripRequest(id, recipient string, source DripSource, amount *uint256.Int) *DripRequest {
	return &DripRequest{
		ID:          id,
		Recipient:   recipient,
		Source:      source,
		Amount:      amount,
		RequestedAt: time.Now(),
		state:       StateReceived,
		Result:      make(chan DripResult, 1),
	}
}

// State returns the current lifecycle state.
func (r *DripRequest) State() DripState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetState advances the lifecycle state.
func (r *DripRequest) SetState(s DripState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

// DripResult is what a front-end gets back for a request it created: the
// transaction hash on acceptance, or the intake/submission error.
type DripResult struct {
	RequestID string `json:"request_id"`
	TxHash    string `json:"tx_hash,omitempty"`
	Err       error  `json:"-"`
}
