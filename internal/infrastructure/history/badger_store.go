package history

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/doeshing/phocache/internal/domain"
	"github.com/doeshing/phocache/internal/ports"
)

// Key prefixes for BadgerDB storage
const (
	badgerRecordPrefix    = "rec/"
	badgerIndexPrefix     = "idx/"
	badgerPartitionPrefix = "part/"
)

// BadgerStore keeps records and a timestamp index in BadgerDB.
//
// Layout per category:
//
//	rec/<category>/<id>                  -> record JSON
//	idx/<category>/<timestamp be64><id>  -> empty
//	part/<category>                      -> schema version
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens a BadgerDB directory. An empty dir keeps everything in memory.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

// BadgerOpener adapts OpenBadger to an Opener.
func BadgerOpener(dir string) Opener {
	return func(context.Context) (ports.TransactionalStore, error) {
		return OpenBadger(dir)
	}
}

func badgerRecordKey(category domain.Category, id string) []byte {
	return []byte(badgerRecordPrefix + string(category) + "/" + id)
}

func badgerIndexCategoryPrefix(category domain.Category) []byte {
	return []byte(badgerIndexPrefix + string(category) + "/")
}

func badgerIndexKey(category domain.Category, timestamp int64, id string) []byte {
	prefix := badgerIndexCategoryPrefix(category)
	key := make([]byte, 0, len(prefix)+8+len(id))
	key = append(key, prefix...)
	// flip the sign bit so negative timestamps still sort first
	key = binary.BigEndian.AppendUint64(key, uint64(timestamp)^(1<<63))
	return append(key, id...)
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	end[len(end)-1]++
	return end
}

// OpenPartition marks the category as created.
func (s *BadgerStore) OpenPartition(_ context.Context, category domain.Category) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerPartitionPrefix+string(category)), []byte{schemaVersion})
	})
}

// Insert writes the record and its index entry in one transaction.
func (s *BadgerStore) Insert(_ context.Context, category domain.Category, record domain.Record) error {
	data, err := encodeRecord(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := badgerRecordKey(category, record.ID)
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateKey, record.ID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get record: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set record: %w", err)
		}
		if err := txn.Set(badgerIndexKey(category, record.Timestamp, record.ID), nil); err != nil {
			return fmt.Errorf("set index: %w", err)
		}
		return nil
	})
}

// Scan walks the timestamp index backwards.
func (s *BadgerStore) Scan(_ context.Context, category domain.Category) ([]domain.Record, error) {
	records := []domain.Record{}
	prefix := badgerIndexCategoryPrefix(category)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefixEnd(prefix)); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			id := string(key[len(prefix)+8:])

			item, err := txn.Get(badgerRecordKey(category, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get record %s: %w", id, err)
			}
			err = item.Value(func(val []byte) error {
				rec, err := decodeRecord(val)
				if err != nil {
					return err
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return fmt.Errorf("decode record %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Delete removes the record and its index entry; missing ids are ignored.
func (s *BadgerStore) Delete(_ context.Context, category domain.Category, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := badgerRecordKey(category, id)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}

		var rec domain.Record
		if err := item.Value(func(val []byte) error {
			var err error
			rec, err = decodeRecord(val)
			return err
		}); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}

		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
		if err := txn.Delete(badgerIndexKey(category, rec.Timestamp, id)); err != nil {
			return fmt.Errorf("delete index: %w", err)
		}
		return nil
	})
}

// Clear drops every record and index key of the category.
func (s *BadgerStore) Clear(_ context.Context, category domain.Category) error {
	return s.db.DropPrefix(
		[]byte(badgerRecordPrefix+string(category)+"/"),
		badgerIndexCategoryPrefix(category),
	)
}

// Count counts index entries without loading values.
func (s *BadgerStore) Count(_ context.Context, category domain.Category) (int, error) {
	n := 0
	prefix := badgerIndexCategoryPrefix(category)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// UsedBytes returns the LSM and value log sizes.
func (s *BadgerStore) UsedBytes(context.Context) (int64, error) {
	lsm, vlog := s.db.Size()
	return lsm + vlog, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

var _ ports.TransactionalStore = (*BadgerStore)(nil)
