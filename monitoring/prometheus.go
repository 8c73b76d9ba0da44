package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mezonai/mmn-faucet/logx"
)

type faucetPromMetrics struct {
	upUnixSeconds      prometheus.Gauge
	dripRequestCount   *prometheus.CounterVec
	rejectedDripCount  *prometheus.CounterVec
	dripsSubmitted     prometheus.Counter
	dripsConfirmed     prometheus.Counter
	dripsFailed        *prometheus.CounterVec
	queueDepth         prometheus.Gauge
	faucetBalance      prometheus.Gauge
	confirmationsTime  prometheus.Histogram
	submissionAttempts prometheus.Counter
}

func newFaucetPromMetrics() *faucetPromMetrics {
	return &faucetPromMetrics{
		upUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "faucet_up_timestamp_unix_seconds",
				Help: "Unix timestamp of when the faucet started",
			},
		),
		dripRequestCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faucet_drip_request_count",
				Help: "The total number of drip requests received, per source",
			},
			[]string{"source"},
		),
		rejectedDripCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faucet_rejected_drip_count",
				Help: "The total number of drip requests rejected before submission",
			},
			[]string{"reason"},
		),
		dripsSubmitted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "faucet_drips_submitted_count",
				Help: "The total number of drip transactions accepted by the chain",
			},
		),
		dripsConfirmed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "faucet_drips_confirmed_count",
				Help: "The total number of drip transactions confirmed on chain",
			},
		),
		dripsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faucet_drips_failed_count",
				Help: "The total number of drip transactions that ended failed",
			},
			[]string{"reason"},
		),
		queueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "faucet_queue_depth",
				Help: "The number of drip requests waiting in the intake queue",
			},
		),
		faucetBalance: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "faucet_balance",
				Help: "The last observed balance of the funding account",
			},
		),
		confirmationsTime: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "faucet_confirmation_seconds",
				Help: "Latency in seconds from submission until chain inclusion",
			},
		),
		submissionAttempts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "faucet_submission_attempts_count",
				Help: "The total number of transfer submissions attempted, including the nonce-resync retry",
			},
		),
	}
}

var faucetMetrics *faucetPromMetrics

// InitMetrics initializes metrics but does not expose them yet
func InitMetrics() {
	faucetMetrics = newFaucetPromMetrics()
	faucetMetrics.upUnixSeconds.SetToCurrentTime()
}

func RegisterMetrics(mux *http.ServeMux) {
	logx.Info("MONITORING", "Registering prometheus metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

func enabled() bool {
	return faucetMetrics != nil
}

func RecordDripRequest(source string) {
	if enabled() {
		faucetMetrics.dripRequestCount.With(prometheus.Labels{"source": source}).Inc()
	}
}

func RecordRejectedDrip(reason string) {
	if enabled() {
		faucetMetrics.rejectedDripCount.With(prometheus.Labels{"reason": reason}).Inc()
	}
}

func IncreaseDripsSubmitted() {
	if enabled() {
		faucetMetrics.dripsSubmitted.Inc()
	}
}

func IncreaseDripsConfirmed() {
	if enabled() {
		faucetMetrics.dripsConfirmed.Inc()
	}
}

func RecordDripFailed(reason string) {
	if enabled() {
		faucetMetrics.dripsFailed.With(prometheus.Labels{"reason": reason}).Inc()
	}
}

func SetQueueDepth(depth int) {
	if enabled() {
		faucetMetrics.queueDepth.Set(float64(depth))
	}
}

func SetFaucetBalance(balance float64) {
	if enabled() {
		faucetMetrics.faucetBalance.Set(balance)
	}
}

func RecordConfirmationTime(duration time.Duration) {
	if enabled() {
		faucetMetrics.confirmationsTime.Observe(duration.Seconds())
	}
}

func IncreaseSubmissionAttempts() {
	if enabled() {
		faucetMetrics.submissionAttempts.Inc()
	}
}
