package faucet

import (
	"context"
	"time"

	"github.com/mezonai/mmn-faucet/chain"
	"github.com/mezonai/mmn-faucet/errors"
	"github.com/mezonai/mmn-faucet/logx"
	"github.com/mezonai/mmn-faucet/monitoring"
	"github.com/mezonai/mmn-faucet/types"
)

// watchConfirmation tracks one submitted transaction to a terminal outcome.
// Watchers run concurrently with the submission loop and with each other;
// they only touch the submission record, never the nonce cursor.
func (d *Dispatcher) watchConfirmation(ctx context.Context, req *types.DripRequest, record *types.SubmissionRecord) {
	err := d.gateway.AwaitInclusion(ctx, record.TxHash, d.confirmTimeout)
	record.FinalizedAt = time.Now()

	switch {
	case err == nil:
		record.Outcome = types.OutcomeConfirmed
		req.SetState(types.StateConfirmed)
		monitoring.IncreaseDripsConfirmed()
		monitoring.RecordConfirmationTime(record.FinalizedAt.Sub(record.SubmittedAt))
		logx.Info("WATCHER", "drip ", req.ID, " confirmed in tx ", record.TxHash)

	case err == chain.ErrInclusionTimeout:
		// Indeterminate: the transfer may still land after the deadline.
		// Reported as a timeout, never as "funds not sent".
		record.Outcome = types.OutcomeFailed
		record.Reason = string(errors.ErrCodeConfirmationTimeout)
		req.SetState(types.StateFailed)
		monitoring.RecordDripFailed(string(errors.ErrCodeConfirmationTimeout))
		logx.Warn("WATCHER", "drip ", req.ID, " confirmation timed out for tx ", record.TxHash, " (outcome indeterminate)")

	case ctx.Err() != nil:
		// Shutdown while waiting; leave the record pending so a later
		// status query does not claim a failure that never happened.
		logx.Warn("WATCHER", "shutdown while awaiting inclusion of tx ", record.TxHash)
		return

	default:
		record.Outcome = types.OutcomeFailed
		record.Reason = string(errors.ErrCodeSubmissionRejected)
		req.SetState(types.StateFailed)
		monitoring.RecordDripFailed(string(errors.ErrCodeSubmissionRejected))
		logx.Error("WATCHER", "drip ", req.ID, " failed on chain: ", err)
	}

	if putErr := d.store.Put(record); putErr != nil {
		logx.Error("WATCHER", "failed to persist final record ", req.ID, ": ", putErr)
	}
	d.retire(req, &DripStatus{RequestID: req.ID, State: req.State(), Record: record})
}
