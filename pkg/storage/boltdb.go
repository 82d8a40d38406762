package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/rangeworks/drover/pkg/types"
)

var (
	// Bucket names
	bucketAgent    = []byte("agent")
	bucketSessions = []byte("sessions")

	// Keys inside the agent bucket
	keyRegistration = []byte("registration")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens the agent database inside dataDir, creating buckets
// on first use.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "drover.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketAgent, bucketSessions} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Registration operations

func (s *BoltStore) SaveRegistration(reg *types.Registration) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgent)
		data, err := json.Marshal(reg)
		if err != nil {
			return err
		}
		return b.Put(keyRegistration, data)
	})
}

func (s *BoltStore) GetRegistration() (*types.Registration, error) {
	var reg types.Registration
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgent)
		data := b.Get(keyRegistration)
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &reg)
	})
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (s *BoltStore) DeleteRegistration() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgent)
		return b.Delete(keyRegistration)
	})
}

// Session journal operations

func (s *BoltStore) RecordSession(rec *types.SessionRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.SessionID), data)
	})
}

func (s *BoltStore) GetSession(id string) (*types.SessionRecord, error) {
	var rec types.SessionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BoltStore) ListSessions() ([]*types.SessionRecord, error) {
	var records []*types.SessionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		return b.ForEach(func(k, v []byte) error {
			var rec types.SessionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// PruneSessions drops all but the keep most recently finished journal
// entries. The journal is an audit aid, not an unbounded log.
func (s *BoltStore) PruneSessions(keep int) error {
	if keep < 0 {
		keep = 0
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)

		var records []*types.SessionRecord
		err := b.ForEach(func(k, v []byte) error {
			var rec types.SessionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, &rec)
			return nil
		})
		if err != nil {
			return err
		}
		if len(records) <= keep {
			return nil
		}

		sort.Slice(records, func(i, j int) bool {
			return records[i].FinishedAt.After(records[j].FinishedAt)
		})
		for _, rec := range records[keep:] {
			if err := b.Delete([]byte(rec.SessionID)); err != nil {
				return err
			}
		}
		return nil
	})
}
