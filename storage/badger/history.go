package badger

import (
	"bytes"
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
)

// HistoryRepository implements storage.HistoryRepository for BadgerDB.
type HistoryRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(backend *Backend) (*HistoryRepository, error) {
	idSeq, err := backend.GetSequence(queryRecordIDSeq)
	if err != nil {
		return nil, err
	}

	return &HistoryRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *HistoryRepository) Close() error {
	return r.idSeq.Release()
}

// AddQueryRecords stores records with fresh sequence IDs.
func (r *HistoryRepository) AddQueryRecords(ctx context.Context, records ...*core.QueryRecord) ([]*core.QueryRecord, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			nextID, err := r.idSeq.Next()
			if err != nil {
				return err
			}
			// BadgerDB sequences can return 0 on first call, so we skip it
			if nextID == 0 {
				if nextID, err = r.idSeq.Next(); err != nil {
					return err
				}
			}
			record.Id = core.ID(nextID)
			if record.Timestamp.IsZero() {
				record.Timestamp = time.Now().UTC()
			}

			value, err := storage.Marshal(record)
			if err != nil {
				return err
			}
			if err := tx.Set(makeQueryRecordKey(record.Id), value); err != nil {
				return err
			}
			dateKey := makeQueryDateKey(record.Timestamp, record.Id)
			if err := tx.Set(dateKey, storage.MarshalID(record.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return records, err
}

// GetRecentQueryRecords walks the date index backwards.
func (r *HistoryRepository) GetRecentQueryRecords(ctx context.Context, limit int) ([]*core.QueryRecord, error) {
	if limit < 1 {
		return nil, storage.ErrInvalidRange
	}

	var results []*core.QueryRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek to the last possible key with the date prefix
		startKey := makePartialQueryDateKey(time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC))
		startKey = append(startKey, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		prefix := []byte(queryDatePrefix)

		for iter.Seek(startKey); iter.Valid() && len(results) < limit; iter.Next() {
			if !bytes.HasPrefix(iter.Item().Key(), prefix) {
				break
			}
			record, err := r.readIndexed(tx, iter.Item())
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	}, false)

	return results, err
}

// GetQueryRecordsByDateRange returns records with start <= Timestamp < end.
func (r *HistoryRepository) GetQueryRecordsByDateRange(ctx context.Context, start, end time.Time) ([]*core.QueryRecord, error) {
	if end.Before(start) {
		return nil, storage.ErrInvalidRange
	}

	var results []*core.QueryRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		startKey := makePartialQueryDateKey(start)
		endKey := makePartialQueryDateKey(end)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(queryDatePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			if bytes.Compare(iter.Item().Key(), endKey) >= 0 {
				break
			}
			record, err := r.readIndexed(tx, iter.Item())
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	}, false)

	return results, err
}

// readIndexed resolves a date index entry to its record. A dangling
// index entry yields nil.
func (r *HistoryRepository) readIndexed(tx *badger.Txn, item *badger.Item) (*core.QueryRecord, error) {
	var id core.ID
	if err := item.Value(func(val []byte) error {
		var err error
		id, err = storage.UnmarshalID(val)
		return err
	}); err != nil {
		return nil, err
	}

	var record *core.QueryRecord
	err := getValue(tx, makeQueryRecordKey(id), func(val []byte) error {
		var err error
		record, err = storage.Unmarshal[core.QueryRecord](val)
		return err
	})
	if err == storage.ErrNotFound {
		return nil, nil
	}
	return record, err
}
