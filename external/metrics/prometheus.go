package metrics

import (
	"net/http"
	"time"

	"github.com/foxseedlab/speechrelay/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder keeps its collectors on a private registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	activeConnections  prometheus.Gauge
	connectionsOpened  prometheus.Counter
	connectionsClosed  *prometheus.CounterVec
	connectionDuration prometheus.Histogram
	sessionRestarts    prometheus.Counter
	results            *prometheus.CounterVec
	replayedChunks     prometheus.Counter
	bytesReceived      prometheus.Counter
	queueDepth         prometheus.Histogram
}

var _ metrics.Recorder = (*PrometheusRecorder)(nil)

func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		registry: reg,
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "speechrelay_active_connections",
			Help: "Current number of relayed client connections",
		}),
		connectionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "speechrelay_connections_opened_total",
			Help: "Total number of accepted client connections",
		}),
		connectionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "speechrelay_connections_closed_total",
			Help: "Total number of closed client connections by close reason",
		}, []string{"reason"}),
		connectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "speechrelay_connection_duration_seconds",
			Help:    "Lifetime of client connections",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2.3h
		}),
		sessionRestarts: factory.NewCounter(prometheus.CounterOpts{
			Name: "speechrelay_session_restarts_total",
			Help: "Total number of recognition session restarts",
		}),
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "speechrelay_recognition_results_total",
			Help: "Total number of recognition results by kind",
		}, []string{"kind"}),
		replayedChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "speechrelay_replayed_chunks_total",
			Help: "Total number of audio chunks replayed to bridge session restarts",
		}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "speechrelay_socket_bytes_received_total",
			Help: "Total number of PCM bytes read from client sockets",
		}),
		queueDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "speechrelay_ingestion_queue_depth",
			Help:    "Ingestion queue length observed when outbound audio is generated",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

func (r *PrometheusRecorder) ConnectionOpened() {
	r.activeConnections.Inc()
	r.connectionsOpened.Inc()
}

func (r *PrometheusRecorder) ConnectionClosed(reason string, duration time.Duration) {
	r.activeConnections.Dec()
	r.connectionsClosed.WithLabelValues(reason).Inc()
	r.connectionDuration.Observe(duration.Seconds())
}

func (r *PrometheusRecorder) SessionRestarted() {
	r.sessionRestarts.Inc()
}

func (r *PrometheusRecorder) ResultReceived(isFinal bool) {
	kind := "interim"
	if isFinal {
		kind = "final"
	}
	r.results.WithLabelValues(kind).Inc()
}

func (r *PrometheusRecorder) ChunksReplayed(n int) {
	r.replayedChunks.Add(float64(n))
}

func (r *PrometheusRecorder) BytesReceived(n int) {
	r.bytesReceived.Add(float64(n))
}

func (r *PrometheusRecorder) QueueDepth(n int) {
	r.queueDepth.Observe(float64(n))
}

func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
