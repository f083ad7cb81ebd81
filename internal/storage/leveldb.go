package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/gasless-relayer/gasless-relayer/internal/relay"
)

const (
	RequestPrefix = "request/"
	PendingPrefix = "pending/"
	CreatedPrefix = "created/"
)

// LevelDBStorage keeps three keyspaces:
// request/<id> -> json encoded relay.RequestRecord
// pending/<id> -> empty value, present while the request is Pending
// created/<created_at unix nanos, zero padded>/<id> -> id, used to list requests newest first
type LevelDBStorage struct {
	sync.Mutex
	db  *leveldb.DB
	now func() time.Time
}

func NewLevelDBStorage(path string) (*LevelDBStorage, error) {
	database, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}

	return &LevelDBStorage{db: database, now: time.Now}, nil
}

func (s *LevelDBStorage) InsertPending(_ context.Context, chainID uint64, requestID string, isBatch bool) (*relay.RequestRecord, error) {
	s.Lock()
	defer s.Unlock()

	existing, err := s.getRecord(requestID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	record := &relay.RequestRecord{
		ChainID:   chainID,
		RequestID: requestID,
		State:     relay.Pending,
		CreatedAt: s.now().UTC(),
		IsBatch:   isBatch,
	}

	t, err := s.db.OpenTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb transaction: %w", err)
	}
	defer t.Discard()

	if err := putRecord(t, record); err != nil {
		return nil, err
	}
	if err := t.Put(pendingKey(requestID), nil, nil); err != nil {
		return nil, fmt.Errorf("failed to put pending key: %w", err)
	}
	if err := t.Put(createdKey(record.CreatedAt, requestID), []byte(requestID), nil); err != nil {
		return nil, fmt.Errorf("failed to put created key: %w", err)
	}

	if err := t.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit leveldb transaction: %w", err)
	}

	return record, nil
}

func (s *LevelDBStorage) MarkSubmitted(_ context.Context, requestID string, txHash string) error {
	s.Lock()
	defer s.Unlock()

	record, err := s.pendingRecord(requestID)
	if err != nil {
		return err
	}
	record.TransactionHash = txHash

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal RequestRecord: %w", err)
	}
	if err := s.db.Put(requestKey(requestID), data, nil); err != nil {
		return fmt.Errorf("failed to put request: %w", err)
	}

	return nil
}

// Finalize moves a Pending request into params.State and drops it from the pending keyspace.
func (s *LevelDBStorage) Finalize(_ context.Context, requestID string, params relay.FinalizeParams) error {
	if !params.State.IsTerminal() {
		return fmt.Errorf("cannot finalize request %s with state %q", requestID, params.State)
	}

	s.Lock()
	defer s.Unlock()

	record, err := s.pendingRecord(requestID)
	if err != nil {
		return err
	}

	record.State = params.State
	record.BlockNumber = params.BlockNumber
	record.GasUsed = params.GasUsed
	record.ErrorMessage = params.ErrorMessage
	if params.TransactionHash != "" {
		record.TransactionHash = params.TransactionHash
	}
	record.MinedAt = nil
	if !params.MinedAt.IsZero() {
		minedAt := params.MinedAt.UTC()
		record.MinedAt = &minedAt
	}

	t, err := s.db.OpenTransaction()
	if err != nil {
		return fmt.Errorf("failed to open leveldb transaction: %w", err)
	}
	defer t.Discard()

	if err := putRecord(t, record); err != nil {
		return err
	}
	if err := t.Delete(pendingKey(requestID), nil); err != nil {
		return fmt.Errorf("failed to remove request %s from pending: %w", requestID, err)
	}

	return t.Commit()
}

func (s *LevelDBStorage) GetRequest(_ context.Context, requestID string) (*relay.RequestRecord, error) {
	s.Lock()
	defer s.Unlock()

	return s.getRecord(requestID)
}

func (s *LevelDBStorage) ListRequests(_ context.Context, page, pageSize int) ([]*relay.RequestRecord, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("%w: page=%d page_size=%d", relay.ErrInvalidPage, page, pageSize)
	}

	s.Lock()
	defer s.Unlock()

	iterator := s.db.NewIterator(util.BytesPrefix([]byte(CreatedPrefix)), nil)
	defer iterator.Release()

	skip := (page - 1) * pageSize
	records := make([]*relay.RequestRecord, 0, pageSize)
	for ok := iterator.Last(); ok && len(records) < pageSize; ok = iterator.Prev() {
		if skip > 0 {
			skip--
			continue
		}

		record, err := s.getRecord(string(iterator.Value()))
		if err != nil {
			return nil, err
		}
		if record != nil {
			records = append(records, record)
		}
	}
	if err := iterator.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate requests: %w", err)
	}

	return records, nil
}

// GetPendingRequests returns Pending requests, oldest first.
func (s *LevelDBStorage) GetPendingRequests(_ context.Context) ([]*relay.RequestRecord, error) {
	s.Lock()
	defer s.Unlock()

	iterator := s.db.NewIterator(util.BytesPrefix([]byte(PendingPrefix)), nil)
	defer iterator.Release()

	var records []*relay.RequestRecord
	for iterator.Next() {
		requestID := string(iterator.Key()[len(PendingPrefix):])
		record, err := s.getRecord(requestID)
		if err != nil {
			return nil, err
		}
		if record != nil {
			records = append(records, record)
		}
	}
	if err := iterator.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending requests: %w", err)
	}

	sortByCreatedAt(records)
	return records, nil
}

func (s *LevelDBStorage) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

// pendingRecord must be called with the lock held.
func (s *LevelDBStorage) pendingRecord(requestID string) (*relay.RequestRecord, error) {
	record, err := s.getRecord(requestID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", relay.ErrRequestNotFound, requestID)
	}
	if record.State != relay.Pending {
		return nil, fmt.Errorf("%w: %s is %s", relay.ErrAlreadyFinalized, requestID, record.State)
	}

	return record, nil
}

// getRecord must be called with the lock held.
func (s *LevelDBStorage) getRecord(requestID string) (*relay.RequestRecord, error) {
	data, err := s.db.Get(requestKey(requestID), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed getting data from db: %w", err)
	}

	var record relay.RequestRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal data into RequestRecord: %w", err)
	}

	return &record, nil
}

func putRecord(t *leveldb.Transaction, record *relay.RequestRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal RequestRecord: %w", err)
	}

	if err := t.Put(requestKey(record.RequestID), data, nil); err != nil {
		return fmt.Errorf("failed to put request %s: %w", record.RequestID, err)
	}

	return nil
}

func requestKey(requestID string) []byte {
	return []byte(RequestPrefix + requestID)
}

func pendingKey(requestID string) []byte {
	return []byte(PendingPrefix + requestID)
}

func createdKey(createdAt time.Time, requestID string) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", CreatedPrefix, createdAt.UnixNano(), requestID))
}
