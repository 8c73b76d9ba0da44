package types

import (
	"time"
)

// SubmissionOutcome is the tri-state result of a submitted transaction.
// Pending means the chain accepted the submission but has not reported
// inclusion yet; Failed carries a reason code and, for confirmation
// timeouts, is explicitly indeterminate rather than a guaranteed loss.
type SubmissionOutcome string

const (
	OutcomePending   SubmissionOutcome = "pending"
	OutcomeConfirmed SubmissionOutcome = "confirmed"
	OutcomeFailed    SubmissionOutcome = "failed"
)

// SubmissionRecord is the one-to-one companion of a DripRequest that reached
// the submitted state. Owned by the dispatcher; read-only to front-ends.
type SubmissionRecord struct {
	RequestID   string            `json:"request_id"`
	Recipient   string            `json:"recipient"`
	Amount      string            `json:"amount"`
	Nonce       uint64            `json:"nonce"`
	TxHash      string            `json:"tx_hash"`
	Outcome     SubmissionOutcome `json:"outcome"`
	Reason      string            `json:"reason,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
	FinalizedAt time.Time         `json:"finalized_at,omitempty"`
}
