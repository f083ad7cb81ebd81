package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	labelKind   = "kind"
	labelType   = "type"
	labelReason = "reason"
	labelState  = "state"
	labelRoute  = "route"
	labelCode   = "code"
	typeSuccess = "success"
	typeFailed  = "failed"
)

var (
	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_submissions",
		Help: "The total number of forwarder calls submitted (counter)",
	}, []string{labelKind, labelType, labelReason})

	submissionTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relayer_submission_time",
		Help:    "A histogram of forwarder call submission duration",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 30},
	}, []string{labelKind, labelType})

	finalizedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_finalized_requests",
		Help: "The total number of requests moved to a terminal state (counter)",
	}, []string{labelState})

	confirmationTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relayer_confirmation_time",
		Help:    "A histogram of time between submission and finalization",
		Buckets: []float64{1, 2, 5, 10, 15, 30, 60, 120, 300, 600},
	}, []string{labelState})

	confirmationQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_confirmation_queue_size",
		Help: "The number of pending confirmations waiting in the queue",
	})

	inFlightConfirmations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_in_flight_confirmations",
		Help: "The number of confirmations the monitor is awaiting right now",
	})

	pendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_pending_requests",
		Help: "The total number of Pending requests in the storage",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_http_requests",
		Help: "The total number of api requests by route and status code (counter)",
	}, []string{labelRoute, labelCode})
)

func AddSuccessSubmission(kind string, dur float64) {
	submissions.With(prometheus.Labels{
		labelKind:   kind,
		labelType:   typeSuccess,
		labelReason: "",
	}).Inc()
	submissionTime.With(prometheus.Labels{
		labelKind: kind,
		labelType: typeSuccess,
	}).Observe(dur)
}

func AddFailedSubmission(kind string, reason string, dur float64) {
	submissions.With(prometheus.Labels{
		labelKind:   kind,
		labelType:   typeFailed,
		labelReason: reason,
	}).Inc()
	submissionTime.With(prometheus.Labels{
		labelKind: kind,
		labelType: typeFailed,
	}).Observe(dur)
}

func AddFinalizedRequest(state string, dur float64) {
	finalizedRequests.With(prometheus.Labels{
		labelState: state,
	}).Inc()
	confirmationTime.With(prometheus.Labels{
		labelState: state,
	}).Observe(dur)
}

func SetConfirmationQueueSize(size int) {
	confirmationQueueSize.Set(float64(size))
}

func IncInFlightConfirmations() {
	inFlightConfirmations.Inc()
}

func DecInFlightConfirmations() {
	inFlightConfirmations.Dec()
}

func SetPendingRequests(size int) {
	pendingRequests.Set(float64(size))
}

func IncHTTPRequest(route string, code int) {
	httpRequests.With(prometheus.Labels{
		labelRoute: route,
		labelCode:  codeLabel(code),
	}).Inc()
}

func codeLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
