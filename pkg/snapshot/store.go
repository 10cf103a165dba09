package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"borealis/internal/config"
)

const bucketSnapshots = "snapshots"

const (
	// MaxManual is how many user-created snapshots automatic pruning keeps.
	MaxManual = 50

	// MaxAuto is how many pre-transaction snapshots automatic pruning keeps.
	MaxAuto = 20
)

// ErrNotFound is returned when a snapshot ID does not exist in the store.
var ErrNotFound = errors.New("snapshot not found")

// Store persists snapshots using BoltDB.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the snapshot database at the default data path.
func Open() (*Store, error) {
	if err := config.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return OpenAt(config.SnapshotPath())
}

// OpenAt opens or creates the snapshot database at an explicit path.
func OpenAt(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketSnapshots))
		return err
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

// Save stores snap under its ID. IDs embed the capture time, so the bucket
// stays in chronological order.
func (s *Store) Save(snap *Snapshot) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketSnapshots))
		if b == nil {
			return fmt.Errorf("%s bucket not found", bucketSnapshots)
		}

		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		return b.Put([]byte(snap.ID), data)
	})
}

// Get returns the snapshot with the given ID.
func (s *Store) Get(id string) (*Snapshot, error) {
	var snap *Snapshot

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketSnapshots))
		if b == nil {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}

		v := b.Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}

		var sn Snapshot
		if err := json.Unmarshal(v, &sn); err != nil {
			return fmt.Errorf("failed to unmarshal snapshot %s: %w", id, err)
		}
		snap = &sn
		return nil
	})

	return snap, err
}

// Latest returns the most recent snapshot, or nil when the store is empty.
func (s *Store) Latest() (*Snapshot, error) {
	var snap *Snapshot

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketSnapshots))
		if b == nil {
			return nil
		}

		k, v := b.Cursor().Last()
		if k == nil {
			return nil
		}

		var sn Snapshot
		if err := json.Unmarshal(v, &sn); err != nil {
			return err
		}
		snap = &sn
		return nil
	})

	return snap, err
}

// List returns the most recent snapshots, newest first. A limit of zero or
// less returns everything.
func (s *Store) List(limit int) ([]Snapshot, error) {
	var snaps []Snapshot

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketSnapshots))
		if b == nil {
			return nil
		}

		c := b.Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(snaps) < limit); k, v = c.Prev() {
			var sn Snapshot
			if err := json.Unmarshal(v, &sn); err != nil {
				continue // skip malformed records
			}
			snaps = append(snaps, sn)
		}
		return nil
	})

	return snaps, err
}

// Delete removes the snapshot with the given ID.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketSnapshots))
		if b == nil || b.Get([]byte(id)) == nil {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return b.Delete([]byte(id))
	})
}

// Count returns how many snapshots the store holds.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket([]byte(bucketSnapshots)); b != nil {
			count = b.Stats().KeyN
		}
		return nil
	})
	return count, err
}

// Prune deletes the oldest snapshots beyond the keep budgets, counting
// manual and automatic snapshots separately so routine pre-transaction
// captures cannot push out states the user chose to keep. Records that no
// longer decode are deleted with the overflow. Returns how many were
// removed.
func (s *Store) Prune(keepManual, keepAuto int) (int, error) {
	var deleted int

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketSnapshots))
		if b == nil {
			return nil
		}

		var toDelete [][]byte
		manual, auto := 0, 0

		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var sn Snapshot
			if err := json.Unmarshal(v, &sn); err != nil {
				toDelete = append(toDelete, k)
				continue
			}

			if sn.Trigger == TriggerManual {
				manual++
				if manual > keepManual {
					toDelete = append(toDelete, k)
				}
				continue
			}
			auto++
			if auto > keepAuto {
				toDelete = append(toDelete, k)
			}
		}

		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})

	return deleted, err
}

// CaptureAndSave captures the current state and persists it. Automatic
// captures prune the store afterwards; manual snapshots never trigger
// pruning.
func (s *Store) CaptureAndSave(ctx context.Context, trigger Trigger, description string, from Lister) (*Snapshot, error) {
	snap, err := Capture(ctx, trigger, description, from)
	if err != nil {
		return nil, err
	}
	if err := s.Save(snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	if trigger != TriggerManual {
		if _, err := s.Prune(MaxManual, MaxAuto); err != nil {
			return snap, fmt.Errorf("pruning old snapshots: %w", err)
		}
	}
	return snap, nil
}
