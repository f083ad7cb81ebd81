package http

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gasless-relayer/gasless-relayer/internal/metrics"
	"github.com/gasless-relayer/gasless-relayer/internal/relay"
)

const pendingLookupTimeout = 3 * time.Second

// PromWrapper refreshes the gauges that are read from the storage before serving the metrics.
type PromWrapper struct {
	promHandler http.Handler
	storage     relay.Storage
	logger      *zap.Logger
}

func NewPromWrapper(logger *zap.Logger, storage relay.Storage) PromWrapper {
	return PromWrapper{
		promHandler: promhttp.Handler(),
		storage:     storage,
		logger:      logger,
	}
}

func (p PromWrapper) fillPendingRequestsMetric(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, pendingLookupTimeout)
	defer cancel()

	records, err := p.storage.GetPendingRequests(ctx)
	if err != nil {
		p.logger.Error("failed to get pending requests from storage", zap.Error(err))
		return
	}
	metrics.SetPendingRequests(len(records))
}

func (p PromWrapper) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	p.fillPendingRequestsMetric(req.Context())
	p.promHandler.ServeHTTP(res, req)
}
