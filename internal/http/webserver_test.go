package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	relayerhttp "github.com/gasless-relayer/gasless-relayer/internal/http"
	"github.com/gasless-relayer/gasless-relayer/internal/relay"
	mock_relay "github.com/gasless-relayer/gasless-relayer/testutil/mocks/relay"
)

const requestID = "3f1c1d3e-7d0b-4a7e-9a43-5a4c1f3e2b10"

type fakeRelayer struct {
	err     error
	record  *relay.RequestRecord
	records []*relay.RequestRecord

	single   relay.ForwardRequest
	batch    relay.BatchRequest
	page     int
	pageSize int
}

func (f *fakeRelayer) SubmitSingle(_ context.Context, req relay.ForwardRequest) (*relay.RequestRecord, error) {
	f.single = req
	return f.record, f.err
}

func (f *fakeRelayer) SubmitBatch(_ context.Context, batch relay.BatchRequest) (*relay.RequestRecord, error) {
	f.batch = batch
	return f.record, f.err
}

func (f *fakeRelayer) GetRequest(_ context.Context, _ string) (*relay.RequestRecord, error) {
	return f.record, f.err
}

func (f *fakeRelayer) ListRequests(_ context.Context, page, pageSize int) ([]*relay.RequestRecord, error) {
	f.page, f.pageSize = page, pageSize
	return f.records, f.err
}

func serve(t *testing.T, relayer relayerhttp.Relayer, storage relay.Storage, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	relayerhttp.Router(zap.NewNop(), relayer, storage).ServeHTTP(rec, req)
	return rec
}

func TestSubmitSingleHandler(t *testing.T) {
	relayer := &fakeRelayer{record: &relay.RequestRecord{RequestID: requestID, ChainID: 1, State: relay.Pending}}
	body := `{"chain_id":1,"from":"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266","to":"0x5FbDB2315678afecb367f032d93F642f64180aa3",` +
		`"value":0,"gas":100000,"deadline":1900000000,"data":"0x","nonce":3,"signature":"0x00","access_key":"secret"}`

	rec := serve(t, relayer, nil, http.MethodPost, "/relay", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var record relay.RequestRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, requestID, record.RequestID)
	assert.Equal(t, relay.Pending, record.State)

	assert.Equal(t, uint64(1), relayer.single.ChainID)
	assert.Equal(t, uint64(3), relayer.single.Nonce)
	assert.Equal(t, "secret", relayer.single.AccessKey)
	assert.Equal(t, int64(0), relayer.single.Value.Int64())
}

func TestSubmitBatchHandler(t *testing.T) {
	relayer := &fakeRelayer{record: &relay.RequestRecord{RequestID: requestID, IsBatch: true}}
	body := `{"chain_id":1,"access_key":"secret","refund_receiver":"0x70997970C51812dc3A010C7d01b50e0d17dc79C8",` +
		`"requests":[{"from":"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"},{"from":"0x70997970C51812dc3A010C7d01b50e0d17dc79C8"}]}`

	rec := serve(t, relayer, nil, http.MethodPost, "/relay/batch", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, relayer.batch.Requests, 2)
	assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", relayer.batch.RefundReceiver)
}

func TestErrorStatusCodes(t *testing.T) {
	tt := []struct {
		name         string
		err          error
		expectedCode int
		hidden       bool
	}{
		{
			name:         "unauthorized",
			err:          relay.ErrUnauthorized,
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "validation",
			err:          relay.NewValidationError("gas", errors.New("must be greater than zero")),
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "unknown chain",
			err:          fmt.Errorf("%w: 5", relay.ErrUnknownChain),
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "not found",
			err:          fmt.Errorf("%w: %s", relay.ErrRequestNotFound, requestID),
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "rejected",
			err:          relay.NewSubmissionError(relay.SubmissionRejected, 1, errors.New("execution reverted")),
			expectedCode: http.StatusUnprocessableEntity,
		},
		{
			name:         "invalid input",
			err:          relay.NewSubmissionError(relay.SubmissionInvalidInput, 1, errors.New("bad abi")),
			expectedCode: http.StatusUnprocessableEntity,
		},
		{
			name:         "transport",
			err:          relay.NewSubmissionError(relay.SubmissionTransport, 1, errors.New("connection refused")),
			expectedCode: http.StatusBadGateway,
		},
		{
			name:         "storage",
			err:          errors.New("failed to insert pending request: pq: connection reset"),
			expectedCode: http.StatusInternalServerError,
			hidden:       true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, &fakeRelayer{err: tc.err}, nil, http.MethodPost, "/relay", `{}`)
			assert.Equal(t, tc.expectedCode, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			if tc.hidden {
				assert.NotContains(t, resp["error"], "pq")
			} else {
				assert.Equal(t, tc.err.Error(), resp["error"])
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	rec := serve(t, &fakeRelayer{}, nil, http.MethodPost, "/relay", `{"chain_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRequestHandler(t *testing.T) {
	rec := serve(t, &fakeRelayer{record: &relay.RequestRecord{RequestID: requestID, State: relay.Success}}, nil,
		http.MethodGet, "/requests/"+requestID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var record relay.RequestRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, relay.Success, record.State)
}

func TestListRequestsHandler(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		relayer := &fakeRelayer{}
		rec := serve(t, relayer, nil, http.MethodGet, "/requests", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, relayer.page)
		assert.Equal(t, 20, relayer.pageSize)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("explicit paging", func(t *testing.T) {
		relayer := &fakeRelayer{records: []*relay.RequestRecord{{RequestID: requestID}}}
		rec := serve(t, relayer, nil, http.MethodGet, "/requests?page=3&page_size=5", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3, relayer.page)
		assert.Equal(t, 5, relayer.pageSize)
	})

	t.Run("malformed page", func(t *testing.T) {
		rec := serve(t, &fakeRelayer{}, nil, http.MethodGet, "/requests?page=first", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCORSPreflight(t *testing.T) {
	rec := serve(t, &fakeRelayer{}, nil, http.MethodOptions, "/relay", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestIndex(t *testing.T) {
	rec := serve(t, &fakeRelayer{}, nil, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Gasless Relayer.", rec.Body.String())
}

func TestMetricsRefreshPendingGauge(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	storage := mock_relay.NewMockStorage(ctrl)
	storage.EXPECT().GetPendingRequests(gomock.Any()).Return([]*relay.RequestRecord{{}, {}, {}}, nil)

	rec := serve(t, &fakeRelayer{}, storage, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "relayer_pending_requests 3")
}

func newClient(t *testing.T, relayer relayerhttp.Relayer) *relayerhttp.RelayerClient {
	t.Helper()

	server := httptest.NewServer(relayerhttp.Router(zap.NewNop(), relayer, nil))
	t.Cleanup(server.Close)

	client, err := relayerhttp.NewRelayerClient(server.URL + "/some/path?x=1")
	require.NoError(t, err)
	return client
}

func TestRelayerClient(t *testing.T) {
	client := newClient(t, &fakeRelayer{
		record:  &relay.RequestRecord{RequestID: requestID, State: relay.Timeout},
		records: []*relay.RequestRecord{{RequestID: requestID}},
	})

	record, err := client.GetRequest(context.Background(), requestID)
	require.NoError(t, err)
	assert.Equal(t, relay.Timeout, record.State)

	records, err := client.ListRequests(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRelayerClientError(t *testing.T) {
	client := newClient(t, &fakeRelayer{err: fmt.Errorf("%w: %s", relay.ErrRequestNotFound, requestID)})

	_, err := client.GetRequest(context.Background(), requestID)
	assert.ErrorContains(t, err, "404")
	assert.ErrorContains(t, err, "request not found")
}

func TestNewRelayerClientRejectsMalformedHost(t *testing.T) {
	_, err := relayerhttp.NewRelayerClient("localhost")
	assert.Error(t, err)
}
