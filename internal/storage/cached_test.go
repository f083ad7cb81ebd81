package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/gasless-relayer/gasless-relayer/internal/relay"
	"github.com/gasless-relayer/gasless-relayer/internal/storage"
	mock_relay "github.com/gasless-relayer/gasless-relayer/testutil/mocks/relay"
)

func TestCachedStorageGetRequest(t *testing.T) {
	tt := []struct {
		name          string
		record        *relay.RequestRecord
		expectedCalls int
	}{
		{
			name:          "terminal record is served from cache",
			record:        &relay.RequestRecord{RequestID: "req-1", State: relay.Success},
			expectedCalls: 1,
		},
		{
			name:          "pending record is always fetched",
			record:        &relay.RequestRecord{RequestID: "req-1", State: relay.Pending},
			expectedCalls: 3,
		},
		{
			name:          "missing record is always fetched",
			record:        nil,
			expectedCalls: 3,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			inner := mock_relay.NewMockStorage(ctrl)
			inner.EXPECT().GetRequest(gomock.Any(), "req-1").Return(tc.record, nil).Times(tc.expectedCalls)

			sut := storage.NewCachedStorage(inner, time.Minute, storage.WithCacheStore(cache.New(time.Minute, time.Minute)))
			for i := 0; i < 3; i++ {
				record, err := sut.GetRequest(context.Background(), "req-1")
				require.NoError(t, err)
				assert.Equal(t, tc.record, record)
			}
		})
	}
}

func TestCachedStorageReturnsCopies(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	inner := mock_relay.NewMockStorage(ctrl)
	inner.EXPECT().GetRequest(gomock.Any(), "req-1").
		Return(&relay.RequestRecord{RequestID: "req-1", State: relay.Failed, ErrorMessage: "boom"}, nil)

	sut := storage.NewCachedStorage(inner, time.Minute)
	first, err := sut.GetRequest(context.Background(), "req-1")
	require.NoError(t, err)
	first.ErrorMessage = "changed"

	second, err := sut.GetRequest(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "boom", second.ErrorMessage)
}

func TestCachedStoragePassesThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	inner := mock_relay.NewMockStorage(ctrl)
	boom := errors.New("boom")
	inner.EXPECT().GetRequest(gomock.Any(), "req-1").Return(nil, boom)
	inner.EXPECT().Finalize(gomock.Any(), "req-1", relay.FinalizeParams{State: relay.Timeout}).Return(nil)
	inner.EXPECT().Close().Return(nil)

	sut := storage.NewCachedStorage(inner, 0)
	_, err := sut.GetRequest(context.Background(), "req-1")
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, sut.Finalize(context.Background(), "req-1", relay.FinalizeParams{State: relay.Timeout}))
	assert.NoError(t, sut.Close())
}
