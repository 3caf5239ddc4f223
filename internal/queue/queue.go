// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package queue provides a durable pending-persistence queue in front of
// the event store. The UDP listener writes a raw PSS line here before the
// store commits; once the insert succeeds the entry is confirmed and
// dropped on the next compaction. On restart, GetPending recovers any
// entries the store never confirmed.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Entry is one durable pending-persistence record.
type Entry struct {
	ID            string    `json:"id"`
	Raw           string    `json:"raw"`
	Peer          string    `json:"peer,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Attempts      int       `json:"attempts"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	Confirmed     bool      `json:"confirmed"`
}

// Stats summarizes queue depth for observability.
type Stats struct {
	PendingCount   int64
	ConfirmedCount int64
	TotalWrites    int64
	TotalConfirms  int64
}

// Queue is a durable, Badger-backed pending-persistence queue.
type Queue struct {
	db             *badger.DB
	totalWrites    int64
	totalConfirms  int64
	lastCompaction time.Time
}

// Open creates or opens a Badger-backed queue at path.
func Open(path string) (*Queue, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	return &Queue{db: db, lastCompaction: time.Now()}, nil
}

// Write durably persists raw before the caller attempts to commit it to
// the event store. Returns the entry ID needed for Confirm.
func (q *Queue) Write(ctx context.Context, raw string, peer string) (string, error) {
	id := uuid.NewString()
	entry := Entry{ID: id, Raw: raw, Peer: peer, CreatedAt: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshal queue entry: %w", err)
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("pending:"+id), data)
	})
	if err != nil {
		return "", fmt.Errorf("write queue entry: %w", err)
	}
	q.totalWrites++
	return id, nil
}

// Confirm marks entryID as successfully persisted to the event store. The
// key is moved under the confirmed: prefix for cleanup by Compact.
func (q *Queue) Confirm(ctx context.Context, entryID string) error {
	return q.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("pending:" + entryID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("confirm %s: entry not found", entryID)
			}
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			return err
		}
		entry.Confirmed = true
		confirmedData, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := txn.Delete([]byte("pending:" + entryID)); err != nil {
			return err
		}
		if err := txn.Set([]byte("confirmed:"+entryID), confirmedData); err != nil {
			return err
		}
		q.totalConfirms++
		return nil
	})
}

// GetPending returns every entry not yet confirmed, for startup recovery.
func (q *Queue) GetPending(ctx context.Context) ([]*Entry, error) {
	var entries []*Entry
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("pending:")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				var entry Entry
				if err := json.Unmarshal(v, &entry); err != nil {
					return err
				}
				entries = append(entries, &entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}

// Compact removes confirmed entries older than olderThan.
func (q *Queue) Compact(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	var removed int
	err := q.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("confirmed:")
		it := txn.NewIterator(opts)
		defer it.Close()

		var toDelete [][]byte
		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			key := append([]byte{}, item.Key()...)
			err := item.Value(func(v []byte) error {
				var entry Entry
				if err := json.Unmarshal(v, &entry); err != nil {
					return err
				}
				if entry.CreatedAt.Before(cutoff) {
					toDelete = append(toDelete, key)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		for _, k := range toDelete {
			if err := txn.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	q.lastCompaction = time.Now()
	return removed, err
}

// Stats returns queue depth metrics.
func (q *Queue) Stats() Stats {
	pending, _ := q.GetPending(context.Background())
	return Stats{
		PendingCount:  int64(len(pending)),
		TotalWrites:   q.totalWrites,
		TotalConfirms: q.totalConfirms,
	}
}

// Close releases the underlying Badger database.
func (q *Queue) Close() error {
	return q.db.Close()
}
