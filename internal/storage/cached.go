package storage

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/gasless-relayer/gasless-relayer/internal/relay"
)

const (
	defaultCacheExpiration = time.Minute
	defaultCacheCleanup    = 5 * time.Minute
)

// CachedStorage serves GetRequest for terminal records from memory. Terminal records never
// change, so a cached copy can't go stale. Everything else goes to the wrapped storage.
type CachedStorage struct {
	relay.Storage
	cacheStore *cache.Cache
	expiration time.Duration
}

func WithCacheStore(store *cache.Cache) func(s *CachedStorage) {
	return func(s *CachedStorage) {
		s.cacheStore = store
	}
}

func NewCachedStorage(inner relay.Storage, expiration time.Duration, opts ...func(s *CachedStorage)) *CachedStorage {
	if expiration <= 0 {
		expiration = defaultCacheExpiration
	}

	s := &CachedStorage{
		Storage:    inner,
		cacheStore: cache.New(expiration, defaultCacheCleanup),
		expiration: expiration,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *CachedStorage) GetRequest(ctx context.Context, requestID string) (*relay.RequestRecord, error) {
	if value, found := s.cacheStore.Get(requestID); found {
		if record, ok := value.(relay.RequestRecord); ok {
			return &record, nil
		}
	}

	record, err := s.Storage.GetRequest(ctx, requestID)
	if err != nil || record == nil {
		return record, err
	}

	if record.State.IsTerminal() {
		s.cacheStore.Set(requestID, *record, s.expiration)
	}

	return record, nil
}
