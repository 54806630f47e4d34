// Package history persists finished practice sessions so learners can
// revisit transcripts and feedback later.
//
// Records are stored in BadgerDB, msgpack-encoded under time-partitioned
// keys, so lexicographic key order matches chronological order:
//
//	conv:{YYYYMMDD}:{ts_ns}  → msgpack-encoded Record
//	cid:{id}                 → primary key bytes (reverse index)
//
// The cid reverse index maps record ID → primary key, enabling lookups
// by ID without scanning.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/linguacafe/linguacafe/pkg/chat"
)

// ErrNotFound is returned when no record exists for an ID.
var ErrNotFound = errors.New("history: not found")

// Record is one finished practice session.
type Record struct {
	// ID uniquely identifies the session.
	ID string `msgpack:"id" json:"id"`

	// Language is the BCP-47 code the session was practiced in.
	Language string `msgpack:"lang" json:"language"`

	// Scenario is the roleplay scenario title.
	Scenario string `msgpack:"scenario" json:"scenario"`

	// StartedAt and EndedAt bound the session.
	StartedAt time.Time `msgpack:"started_at" json:"started_at"`
	EndedAt   time.Time `msgpack:"ended_at" json:"ended_at"`

	// Turns is the full annotated transcript in conversation order.
	Turns []*chat.Turn `msgpack:"turns" json:"turns"`
}

// Options configures a Store.
type Options struct {
	// Dir is the directory for data files. Required unless InMemory.
	Dir string

	// InMemory runs the store without disk persistence. Useful for
	// tests against the real storage engine.
	InMemory bool
}

// Store is a BadgerDB-backed session archive.
type Store struct {
	db *badger.DB
}

// Open opens or creates the archive.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("history: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("history: open store: %w", err)
	}
	return &Store{db: db}, nil
}

// Save persists a record, overwriting any previous version with the
// same ID.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		return errors.New("history: record has no ID")
	}
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("history: encode record: %w", err)
	}

	key := recordKey(rec.StartedAt)
	if old, err := s.primaryKey(rec.ID); err == nil {
		key = old
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(idKey(rec.ID), key)
	})
}

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	key, err := s.primaryKey(id)
	if err != nil {
		return nil, err
	}
	var rec Record
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes a record by ID. Deleting a missing record is not an
// error.
func (s *Store) Delete(ctx context.Context, id string) error {
	key, err := s.primaryKey(id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(idKey(id))
	})
}

// Recent returns the n most recent records, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]*Record, error) {
	if n <= 0 {
		return nil, nil
	}
	var out []*Record
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte(recordPrefix)
		iterOpts.Reverse = true
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		// Reverse iteration starts past the last record key.
		seek := append([]byte(recordPrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix([]byte(recordPrefix)) && len(out) < n; it.Next() {
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &rec)
			})
			if err != nil {
				slog.Warn("history: skipping malformed record", "key", string(it.Item().Key()), "err", err)
				continue
			}
			out = append(out, &rec)
		}
		return nil
	})
	return out, err
}

// Close releases the underlying store.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) primaryKey(id string) ([]byte, error) {
	var key []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if err != nil {
			return err
		}
		key, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return key, err
}

const recordPrefix = "conv:"

// recordKey builds the primary key for a session started at t.
// Format: conv:{YYYYMMDD}:{ts_ns}
func recordKey(t time.Time) []byte {
	date := t.UTC().Format("20060102")
	return []byte(recordPrefix + date + ":" + strconv.FormatInt(t.UnixNano(), 10))
}

// idKey builds the reverse index key for a record ID.
func idKey(id string) []byte {
	return []byte("cid:" + id)
}

// badgerLogger routes badger output to slog, dropping debug noise.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...interface{}) {
	slog.Error("history: " + fmt.Sprintf(f, v...))
}

func (badgerLogger) Warningf(f string, v ...interface{}) {
	slog.Warn("history: " + fmt.Sprintf(f, v...))
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
