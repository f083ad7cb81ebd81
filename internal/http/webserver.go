package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	nlogger "github.com/neutron-org/neutron-logger"

	"go.uber.org/zap"

	"github.com/gasless-relayer/gasless-relayer/internal/relay"

	"github.com/gorilla/mux"
)

const (
	ServerContext     = "http"
	RelayResource     = "/relay"
	BatchResource     = "/relay/batch"
	RequestsResource  = "/requests"
	RequestResource   = "/requests/{request_id}"
	PrometheusMetrics = "/metrics"

	defaultPage     = 1
	defaultPageSize = 20
	maxBodySize     = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Relayer is the relay api served over http.
type Relayer interface {
	SubmitSingle(ctx context.Context, req relay.ForwardRequest) (*relay.RequestRecord, error)
	SubmitBatch(ctx context.Context, batch relay.BatchRequest) (*relay.RequestRecord, error)
	GetRequest(ctx context.Context, requestID string) (*relay.RequestRecord, error)
	ListRequests(ctx context.Context, page, pageSize int) ([]*relay.RequestRecord, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

// Run serves the api on listenAddr until ctx is done, then shuts the server down gracefully.
func Run(ctx context.Context, logRegistry *nlogger.Registry, relayer Relayer, storage relay.Storage, listenAddr string) error {
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}

	return Serve(ctx, logRegistry.Get(ServerContext), relayer, storage, listener)
}

// Serve serves the api on listener until ctx is done. Request contexts are derived from ctx, so
// handlers blocked on the relayer observe the shutdown.
func Serve(ctx context.Context, logger *zap.Logger, relayer Relayer, storage relay.Storage, listener net.Listener) error {
	server := &http.Server{
		Handler:           Router(logger, relayer, storage),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	errch := make(chan error, 1)

	go func() {
		logger.Info("api http listening", zap.String("addr", listener.Addr().String()))
		if err := server.Serve(listener); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error("failed to serve http", zap.Error(err))
				errch <- err
			}
		}
	}()

	select {
	case err := <-errch:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down the api http")
	webserverCtx, cancelWebserverCtx := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelWebserverCtx()
	if err := server.Shutdown(webserverCtx); err != nil {
		logger.Error("failed to shutdown api http gracefully", zap.Error(err))
		return fmt.Errorf("failed to shutdown api http: %w", err)
	}

	logger.Info("api http shut down successfully")
	return nil
}

func Router(logger *zap.Logger, relayer Relayer, storage relay.Storage) *mux.Router {
	promHandler := NewPromWrapper(logger, storage)
	router := mux.NewRouter().StrictSlash(true)
	router.Use(corsMiddleware, metricsMiddleware)

	router.HandleFunc("/", index).Methods(http.MethodGet)
	router.HandleFunc(RelayResource, submitSingle(logger, relayer)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc(BatchResource, submitBatch(logger, relayer)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc(RequestResource, getRequest(logger, relayer)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc(RequestsResource, listRequests(logger, relayer)).Methods(http.MethodGet, http.MethodOptions)
	router.Handle(PrometheusMetrics, promHandler)
	return router
}

func index(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("Gasless Relayer."))
}

func submitSingle(logger *zap.Logger, relayer Relayer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req relay.ForwardRequest
		if !decodeBody(logger, w, r, &req) {
			return
		}

		record, err := relayer.SubmitSingle(r.Context(), req)
		if err != nil {
			writeError(logger, w, "failed to relay forward request", err)
			return
		}

		writeJSON(logger, w, http.StatusOK, record)
	}
}

func submitBatch(logger *zap.Logger, relayer Relayer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var batch relay.BatchRequest
		if !decodeBody(logger, w, r, &batch) {
			return
		}

		record, err := relayer.SubmitBatch(r.Context(), batch)
		if err != nil {
			writeError(logger, w, "failed to relay batch", err)
			return
		}

		writeJSON(logger, w, http.StatusOK, record)
	}
}

func getRequest(logger *zap.Logger, relayer Relayer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := relayer.GetRequest(r.Context(), mux.Vars(r)["request_id"])
		if err != nil {
			writeError(logger, w, "failed to get request", err)
			return
		}

		writeJSON(logger, w, http.StatusOK, record)
	}
}

func listRequests(logger *zap.Logger, relayer Relayer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := queryInt(r, "page", defaultPage)
		if err != nil {
			writeError(logger, w, "failed to list requests", err)
			return
		}
		pageSize, err := queryInt(r, "page_size", defaultPageSize)
		if err != nil {
			writeError(logger, w, "failed to list requests", err)
			return
		}

		records, err := relayer.ListRequests(r.Context(), page, pageSize)
		if err != nil {
			writeError(logger, w, "failed to list requests", err)
			return
		}
		if records == nil {
			records = []*relay.RequestRecord{}
		}

		writeJSON(logger, w, http.StatusOK, records)
	}
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, relay.NewValidationError(name, errors.New("must be an integer"))
	}
	return v, nil
}

func decodeBody(logger *zap.Logger, w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := decoder.Decode(dst); err != nil {
		writeError(logger, w, "failed to decode request body", relay.NewValidationError("body", err))
		return false
	}
	return true
}

// statusCode maps an error returned by the relayer to the http status of the response.
func statusCode(err error) int {
	var (
		validationErr *relay.ValidationError
		submissionErr *relay.SubmissionError
	)

	switch {
	case errors.Is(err, relay.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, relay.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.As(err, &validationErr),
		errors.Is(err, relay.ErrUnknownChain),
		errors.Is(err, relay.ErrInvalidPage):
		return http.StatusBadRequest
	case errors.As(err, &submissionErr):
		if submissionErr.Kind == relay.SubmissionTransport {
			return http.StatusBadGateway
		}
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, msg string, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		logger.Error(msg, zap.Int("code", code), zap.Error(err))
	} else {
		logger.Debug(msg, zap.Int("code", code), zap.Error(err))
	}

	message := err.Error()
	if code == http.StatusInternalServerError {
		message = "Error processing request"
	}
	writeJSON(logger, w, code, errorResponse{Error: message})
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
