package store

import (
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/mezonai/mmn-faucet/jsonx"
	"github.com/mezonai/mmn-faucet/types"
)

var (
	bucketSubmissions = []byte("submissions")
	bucketTxIndex     = []byte("tx_index")
)

// DripStore persists submission records so the faucet never loses track of a
// request's final state across restarts, and so drips can be looked up by
// transaction hash.
type DripStore interface {
	Put(record *types.SubmissionRecord) error
	Get(requestID string) (*types.SubmissionRecord, error)
	GetByTxHash(txHash string) (*types.SubmissionRecord, error)
	List(limit int) ([]*types.SubmissionRecord, error)
	MustClose()
}

// BoltDripStore is the bbolt-backed DripStore.
type BoltDripStore struct {
	db *bolt.DB
}

// NewBoltDripStore opens (creating if needed) the drip database under dir.
func NewBoltDripStore(dir string) (*BoltDripStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}

	db, err := bolt.Open(filepath.Join(dir, "drips.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open drip db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSubmissions); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketTxIndex)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltDripStore{db: db}, nil
}

// Put upserts a submission record and maintains the tx hash index.
func (s *BoltDripStore) Put(record *types.SubmissionRecord) error {
	data, err := jsonx.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal submission record: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketSubmissions).Put([]byte(record.RequestID), data); err != nil {
			return fmt.Errorf("failed to write submission record: %w", err)
		}
		if record.TxHash != "" {
			if err := tx.Bucket(bucketTxIndex).Put([]byte(record.TxHash), []byte(record.RequestID)); err != nil {
				return fmt.Errorf("failed to write tx index: %w", err)
			}
		}
		return nil
	})
}

// Get returns the record for a request id, or nil when absent.
func (s *BoltDripStore) Get(requestID string) (*types.SubmissionRecord, error) {
	var record *types.SubmissionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSubmissions).Get([]byte(requestID))
		if data == nil {
			return nil
		}
		record = &types.SubmissionRecord{}
		return jsonx.Unmarshal(data, record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read submission record: %w", err)
	}
	return record, nil
}

// GetByTxHash resolves a transaction hash to its submission record.
func (s *BoltDripStore) GetByTxHash(txHash string) (*types.SubmissionRecord, error) {
	var requestID []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		requestID = tx.Bucket(bucketTxIndex).Get([]byte(txHash))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if requestID == nil {
		return nil, nil
	}
	return s.Get(string(requestID))
}

// List returns up to limit records in key order.
func (s *BoltDripStore) List(limit int) ([]*types.SubmissionRecord, error) {
	var records []*types.SubmissionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSubmissions).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit > 0 && len(records) >= limit {
				break
			}
			record := &types.SubmissionRecord{}
			if err := jsonx.Unmarshal(v, record); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list submission records: %w", err)
	}
	return records, nil
}

// MustClose closes the database, panicking on error like the node stores do.
func (s *BoltDripStore) MustClose() {
	if err := s.db.Close(); err != nil {
		panic(fmt.Sprintf("failed to close drip store: %v", err))
	}
}
