package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"

	"borealis/internal/config"
)

const (
	bucketTransactions = "transactions"
	bucketSecurity     = "security"
)

// Store manages the audit journal using BoltDB.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the journal database at the default data path.
func Open() (*Store, error) {
	if err := config.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return OpenAt(config.JournalPath())
}

// OpenAt opens or creates the journal database at an explicit path.
func OpenAt(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketTransactions, bucketSecurity} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record saves one transaction record.
func (s *Store) Record(rec *Record) error {
	return s.put(bucketTransactions, rec.Timestamp, rec)
}

// RecordSecurity saves one security event.
func (s *Store) RecordSecurity(ev *SecurityEvent) error {
	return s.put(bucketSecurity, ev.Timestamp, ev)
}

func (s *Store) put(bucket string, ts time.Time, v any) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("%s bucket not found", bucket)
		}

		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		// Timestamp keys keep each bucket in chronological order.
		return b.Put([]byte(ts.Format(time.RFC3339Nano)), data)
	})
}

// List returns the most recent transaction records, newest first.
// A limit of zero or less returns everything.
func (s *Store) List(limit int) ([]Record, error) {
	var recs []Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketTransactions))
		if b == nil {
			return nil
		}

		c := b.Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(recs) < limit); k, v = c.Prev() {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				continue // skip malformed records
			}
			recs = append(recs, r)
		}
		return nil
	})

	return recs, err
}

// ListSecurity returns the most recent security events, newest first.
func (s *Store) ListSecurity(limit int) ([]SecurityEvent, error) {
	var evs []SecurityEvent

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketSecurity))
		if b == nil {
			return nil
		}

		c := b.Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(evs) < limit); k, v = c.Prev() {
			var e SecurityEvent
			if err := json.Unmarshal(v, &e); err != nil {
				continue
			}
			evs = append(evs, e)
		}
		return nil
	})

	return evs, err
}

// Last returns the most recent transaction record, or nil when the journal
// is empty.
func (s *Store) Last() (*Record, error) {
	var rec *Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketTransactions))
		if b == nil {
			return nil
		}

		k, v := b.Cursor().Last()
		if k == nil {
			return nil
		}

		var r Record
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		rec = &r
		return nil
	})

	return rec, err
}

// Counts returns how many records each bucket holds.
func (s *Store) Counts() (transactions, security int, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket([]byte(bucketTransactions)); b != nil {
			transactions = b.Stats().KeyN
		}
		if b := tx.Bucket([]byte(bucketSecurity)); b != nil {
			security = b.Stats().KeyN
		}
		return nil
	})
	return
}

// Prune removes records older than maxAge from both buckets and reports
// how many were deleted.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	var deleted int

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketTransactions, bucketSecurity} {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}

			var toDelete [][]byte
			c := b.Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				var stamp struct {
					Timestamp time.Time `json:"timestamp"`
				}
				if err := json.Unmarshal(v, &stamp); err != nil {
					continue
				}
				if stamp.Timestamp.Before(cutoff) {
					toDelete = append(toDelete, k)
				}
			}

			for _, k := range toDelete {
				if err := b.Delete(k); err != nil {
					return err
				}
				deleted++
			}
		}
		return nil
	})

	return deleted, err
}

// Clear removes all transaction records. Security events are deliberately
// retained; they only age out through Prune.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketTransactions)); err != nil && !errors.Is(err, berrors.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketTransactions))
		return err
	})
}
