package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/cmdclient/internal/protocol/command"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdclient",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cmdclient",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	commandsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdclient",
			Subsystem: "sender",
			Name:      "commands_total",
			Help:      "Command send attempts by type and outcome.",
		},
		[]string{"type", "success"},
	)
	bytesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdclient",
			Subsystem: "sender",
			Name:      "bytes_total",
			Help:      "Frame bytes written by successful sends.",
		},
		[]string{"type"},
	)
	sendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cmdclient",
			Subsystem: "sender",
			Name:      "send_duration_seconds",
			Help:      "Time from permit wait to last flush.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)
	dispatchResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdclient",
			Subsystem: "dispatch",
			Name:      "results_total",
			Help:      "Dispatched commands by final outcome.",
		},
		[]string{"type", "success"},
	)
	dispatchAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cmdclient",
			Subsystem: "dispatch",
			Name:      "attempts",
			Help:      "Send attempts per dispatched command.",
			Buckets:   []float64{1, 2, 3, 5, 8},
		},
	)
	dispatchQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cmdclient",
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Commands waiting behind the dispatch worker.",
		},
	)
	dispatchRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdclient",
			Subsystem: "dispatch",
			Name:      "retries_total",
			Help:      "Send retries scheduled by the dispatcher.",
		},
		[]string{"type"},
	)
	commandsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdclient",
			Subsystem: "server",
			Name:      "commands_received_total",
			Help:      "Commands decoded by the reference server.",
		},
		[]string{"type"},
	)
	decodeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cmdclient",
			Subsystem: "server",
			Name:      "decode_errors_total",
			Help:      "Connections dropped on a malformed frame.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			commandsSent, bytesSent, sendDuration,
			dispatchResults, dispatchAttempts, dispatchQueueDepth, dispatchRetries,
			commandsReceived, decodeErrors,
		)
	})
}

// typeLabel folds every ordinal outside the known enum into one series so
// peers cannot grow label cardinality.
func typeLabel(t command.Type) string {
	if !t.Valid() {
		return "unknown"
	}
	return t.String()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordSend has the sender.Observer shape; wrap it in sender.ObserverFunc.
func RecordSend(cmd command.Command, bytes int, err error, elapsed time.Duration) {
	RegisterMetrics()
	typ := typeLabel(cmd.Type)
	commandsSent.WithLabelValues(typ, strconv.FormatBool(err == nil)).Inc()
	if err == nil {
		bytesSent.WithLabelValues(typ).Add(float64(bytes))
	}
	sendDuration.WithLabelValues(typ).Observe(elapsed.Seconds())
}

func RecordDispatch(cmd command.Command, attempts int, err error) {
	RegisterMetrics()
	dispatchResults.WithLabelValues(typeLabel(cmd.Type), strconv.FormatBool(err == nil)).Inc()
	dispatchAttempts.Observe(float64(attempts))
}

func RecordReceived(cmd command.Command) {
	RegisterMetrics()
	commandsReceived.WithLabelValues(typeLabel(cmd.Type)).Inc()
}

func SetDispatchQueueDepth(n int) {
	RegisterMetrics()
	dispatchQueueDepth.Set(float64(n))
}

func RecordDispatchRetry(cmd command.Command) {
	RegisterMetrics()
	dispatchRetries.WithLabelValues(typeLabel(cmd.Type)).Inc()
}

func RecordDecodeError() {
	RegisterMetrics()
	decodeErrors.Inc()
}
