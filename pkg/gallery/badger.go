package gallery

import (
	"context"
	"errors"
	"log"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// keyPrefix namespaces job records within the badger keyspace.
const keyPrefix = "job:"

// Badger is an Index backed by BadgerDB v4.
type Badger struct {
	db *badger.DB
}

var _ Index = (*Badger)(nil)

// BadgerOptions configures the badger index.
type BadgerOptions struct {
	// Dir is the directory for badger data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs badger without disk persistence. Useful for tests
	// that want the real engine.
	InMemory bool

	// Logger sets the badger logger. If nil, info and debug output is
	// suppressed.
	Logger badger.Logger
}

// NewBadger opens a badger-backed index.
func NewBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("gallery: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		dbOpts = dbOpts.WithLogger(opts.Logger)
	} else {
		dbOpts = dbOpts.WithLogger(quietLogger{})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db}, nil
}

// jobKey builds the badger key for a request ID.
func jobKey(requestID string) []byte {
	return append([]byte(keyPrefix), requestID...)
}

func (b *Badger) Add(_ context.Context, rec Record) error {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(jobKey(rec.RequestID), data)
	})
}

func (b *Badger) Get(_ context.Context, requestID string) (*Record, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(jobKey(requestID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recent scans all job records and sorts by creation time. A session
// produces at most a few hundred jobs, so a full scan per listing is
// acceptable.
func (b *Badger) Recent(_ context.Context, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	prefix := []byte(keyPrefix)
	var all []Record
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec Record
			if err := msgpack.Unmarshal(data, &rec); err != nil {
				continue // skip malformed entries
			}
			all = append(all, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(all)
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (b *Badger) Remove(_ context.Context, requestID string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(jobKey(requestID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// quietLogger wraps the standard log package for badger, suppressing
// debug and info level messages.
type quietLogger struct{}

func (quietLogger) Errorf(f string, v ...interface{})   { log.Printf("[badger] ERROR: "+f, v...) }
func (quietLogger) Warningf(f string, v ...interface{}) { log.Printf("[badger] WARN: "+f, v...) }
func (quietLogger) Infof(string, ...interface{})        {}
func (quietLogger) Debugf(string, ...interface{})       {}
