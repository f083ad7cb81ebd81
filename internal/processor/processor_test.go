package processor_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/gasless-relayer/gasless-relayer/internal/accounts"
	"github.com/gasless-relayer/gasless-relayer/internal/processor"
	"github.com/gasless-relayer/gasless-relayer/internal/relay"
	mock_relay "github.com/gasless-relayer/gasless-relayer/testutil/mocks/relay"
)

const testChainID = 31337

func newPool(t *testing.T, n int) (*accounts.Pool, []*accounts.Credential) {
	creds := make([]*accounts.Credential, 0, n)
	for i := 0; i < n; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		creds = append(creds, accounts.NewCredential(key))
	}
	pool, err := accounts.NewPool(creds)
	require.NoError(t, err)
	return pool, creds
}

func forwardRequest() relay.ForwardRequest {
	return relay.ForwardRequest{
		ChainID:   testChainID,
		From:      "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		To:        "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Value:     big.NewInt(0),
		Gas:       100000,
		Deadline:  1700000000,
		Data:      "0x",
		Signature: "0x" + common.Bytes2Hex(make([]byte, 65)),
	}
}

func TestSubmitSingle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pool, creds := newPool(t, 2)
	client := mock_relay.NewMockChainClient(ctrl)
	pendingTx := mock_relay.NewMockPendingTx(ctrl)
	pendingTx.EXPECT().Hash().Return("0xabc").AnyTimes()

	req := forwardRequest()
	client.EXPECT().Execute(gomock.Any(), creds[0], req).Return(pendingTx, nil)

	p := processor.NewProcessor(map[uint64]processor.Chain{testChainID: {Client: client, Pool: pool}}, zap.NewNop())
	conf, err := p.SubmitSingle(context.Background(), "req-1", req)
	require.NoError(t, err)
	assert.Equal(t, "req-1", conf.RequestID)
	assert.Equal(t, uint64(testChainID), conf.ChainID)
	assert.Equal(t, pendingTx, conf.Tx)
	assert.False(t, conf.SubmittedAt.IsZero())

	// the credential was checked out
	assert.Equal(t, []common.Address{creds[1].Address(), creds[0].Address()}, pool.Addresses())
}

func TestSubmitSingleUnknownChain(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pool, _ := newPool(t, 2)
	client := mock_relay.NewMockChainClient(ctrl)
	p := processor.NewProcessor(map[uint64]processor.Chain{testChainID: {Client: client, Pool: pool}}, zap.NewNop())

	req := forwardRequest()
	req.ChainID = 1
	_, err := p.SubmitSingle(context.Background(), "req-1", req)
	assert.ErrorIs(t, err, relay.ErrUnknownChain)
	assert.True(t, p.SupportsChain(testChainID))
	assert.False(t, p.SupportsChain(1))
}

func TestSubmitSingleWrapsErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pool, creds := newPool(t, 2)
	client := mock_relay.NewMockChainClient(ctrl)
	p := processor.NewProcessor(map[uint64]processor.Chain{testChainID: {Client: client, Pool: pool}}, zap.NewNop())

	rejected := relay.NewSubmissionError(relay.SubmissionRejected, testChainID, errors.New("execution reverted"))
	client.EXPECT().Execute(gomock.Any(), creds[0], gomock.Any()).Return(nil, rejected).Times(1)
	client.EXPECT().Execute(gomock.Any(), creds[1], gomock.Any()).Return(nil, errors.New("connection refused")).Times(1)

	_, err := p.SubmitSingle(context.Background(), "req-1", forwardRequest())
	var subErr *relay.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, relay.SubmissionRejected, subErr.Kind)

	// a plain error is a transport failure; the pool rotated even though the first send failed
	_, err = p.SubmitSingle(context.Background(), "req-2", forwardRequest())
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, relay.SubmissionTransport, subErr.Kind)
	assert.Equal(t, uint64(testChainID), subErr.ChainID)
}

func TestSubmitBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pool, creds := newPool(t, 1)
	client := mock_relay.NewMockChainClient(ctrl)
	pendingTx := mock_relay.NewMockPendingTx(ctrl)
	pendingTx.EXPECT().Hash().Return("0xdef").AnyTimes()
	p := processor.NewProcessor(map[uint64]processor.Chain{testChainID: {Client: client, Pool: pool}}, zap.NewNop())

	batch := relay.BatchRequest{
		ChainID:        testChainID,
		RefundReceiver: "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC",
		Requests:       []relay.ForwardRequest{forwardRequest(), forwardRequest()},
	}
	client.EXPECT().
		ExecuteBatch(gomock.Any(), creds[0], batch.Requests, common.HexToAddress(batch.RefundReceiver)).
		Return(pendingTx, nil)

	conf, err := p.SubmitBatch(context.Background(), "batch-1", batch)
	require.NoError(t, err)
	assert.Equal(t, "batch-1", conf.RequestID)
	assert.Equal(t, pendingTx, conf.Tx)
}

func TestSubmitBatchValidatesBeforeCheckout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pool, creds := newPool(t, 2)
	// no calls expected on the client
	client := mock_relay.NewMockChainClient(ctrl)
	p := processor.NewProcessor(map[uint64]processor.Chain{testChainID: {Client: client, Pool: pool}}, zap.NewNop())

	_, err := p.SubmitBatch(context.Background(), "batch-1", relay.BatchRequest{ChainID: testChainID})
	assert.ErrorIs(t, err, relay.ErrEmptyBatch)

	_, err = p.SubmitBatch(context.Background(), "batch-2", relay.BatchRequest{
		ChainID:        testChainID,
		RefundReceiver: "0xnot-an-address",
		Requests:       []relay.ForwardRequest{forwardRequest()},
	})
	assert.ErrorIs(t, err, relay.ErrInvalidAddress)

	_, err = p.SubmitBatch(context.Background(), "batch-3", relay.BatchRequest{
		ChainID:  1,
		Requests: []relay.ForwardRequest{forwardRequest()},
	})
	assert.ErrorIs(t, err, relay.ErrUnknownChain)

	// rotation state is untouched
	assert.Equal(t, []common.Address{creds[0].Address(), creds[1].Address()}, pool.Addresses())
}

func TestSendsFromSameCredentialAreSerialized(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pool, _ := newPool(t, 1)
	client := mock_relay.NewMockChainClient(ctrl)
	pendingTx := mock_relay.NewMockPendingTx(ctrl)
	pendingTx.EXPECT().Hash().Return("0x1").AnyTimes()

	var (
		inFlight    int32
		maxInFlight int32
	)
	client.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *accounts.Credential, _ relay.ForwardRequest) (relay.PendingTx, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				m := atomic.LoadInt32(&maxInFlight)
				if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return pendingTx, nil
		}).Times(5)

	p := processor.NewProcessor(map[uint64]processor.Chain{testChainID: {Client: client, Pool: pool}}, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.SubmitSingle(context.Background(), "req", forwardRequest())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}
