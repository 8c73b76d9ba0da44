package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mezonai/mmn-faucet/types"
)

func newTestStore(t *testing.T) *BoltDripStore {
	t.Helper()
	s, err := NewBoltDripStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(s.MustClose)
	return s
}

func sampleRecord(id string) *types.SubmissionRecord {
	return &types.SubmissionRecord{
		RequestID:   id,
		Recipient:   "recipient-" + id,
		Amount:      "10",
		Nonce:       7,
		TxHash:      "tx-" + id,
		Outcome:     types.OutcomePending,
		SubmittedAt: time.Now(),
	}
}

func TestPutAndGetRecord(t *testing.T) {
	s := newTestStore(t)

	record := sampleRecord("req-1")
	require.NoError(t, s.Put(record))

	got, err := s.Get("req-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, record.Recipient, got.Recipient)
	require.Equal(t, record.Nonce, got.Nonce)
	require.Equal(t, types.OutcomePending, got.Outcome)
}

func TestGetMissingRecord(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get("nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestPutUpsertsFinalOutcome(t *testing.T) {
	s := newTestStore(t)

	record := sampleRecord("req-2")
	require.NoError(t, s.Put(record))

	record.Outcome = types.OutcomeConfirmed
	record.FinalizedAt = time.Now()
	require.NoError(t, s.Put(record))

	got, err := s.Get("req-2")
	require.NoError(t, err)
	require.Equal(t, types.OutcomeConfirmed, got.Outcome)
	require.False(t, got.FinalizedAt.IsZero())
}

func TestGetByTxHash(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put(sampleRecord("req-3")))

	got, err := s.GetByTxHash("tx-req-3")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "req-3", got.RequestID)

	got, err = s.GetByTxHash("tx-unknown")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestListHonorsLimit(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Put(sampleRecord(fmt.Sprintf("req-%d", i))))
	}

	records, err := s.List(3)
	require.NoError(t, err)
	require.Len(t, records, 3)

	records, err = s.List(0)
	require.NoError(t, err)
	require.Len(t, records, 5)
}

func TestReopenKeepsRecords(t *testing.T) {
	dir := t.TempDir()

	s, err := NewBoltDripStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(sampleRecord("req-persist")))
	s.MustClose()

	s, err = NewBoltDripStore(dir)
	require.NoError(t, err)
	defer s.MustClose()

	got, err := s.Get("req-persist")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "tx-req-persist", got.TxHash)
}
