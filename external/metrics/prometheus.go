package metrics

import (
	"net/http"
	"time"

	"github.com/foxseedlab/streameval/internal/streaming"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "streameval"

// SessionObserver exports streaming session activity as Prometheus metrics.
type SessionObserver struct {
	registry *prometheus.Registry

	sessionsStarted   *prometheus.CounterVec
	sessionsFinished  *prometheus.CounterVec
	sessionDuration   prometheus.Histogram
	chunksSent        prometheus.Counter
	audioBytesSent    prometheus.Counter
	responses         *prometheus.CounterVec
	protocolViolation prometheus.Counter
}

func NewSessionObserver(registry *prometheus.Registry) *SessionObserver {
	factory := promauto.With(registry)
	return &SessionObserver{
		registry: registry,
		sessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Streaming sessions started, by pipeline.",
		}, []string{"pipeline"}),
		sessionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Streaming sessions finished, by outcome.",
		}, []string{"outcome"}),
		sessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall time from session start to resolution.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		chunksSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_sent_total",
			Help:      "Audio chunks emitted to the gateway.",
		}),
		audioBytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_sent_total",
			Help:      "Encoded audio bytes emitted to the gateway, before base64.",
		}),
		responses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Stage responses accepted by the collector.",
		}, []string{"depth", "final"}),
		protocolViolation: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_violations_total",
			Help:      "Inbound responses discarded as malformed or out of range.",
		}),
	}
}

var _ streaming.Observer = (*SessionObserver)(nil)

func (o *SessionObserver) SessionStarted(pipeline string) {
	o.sessionsStarted.WithLabelValues(pipeline).Inc()
}

func (o *SessionObserver) ChunkSent(bytes int) {
	o.chunksSent.Inc()
	o.audioBytesSent.Add(float64(bytes))
}

func (o *SessionObserver) ResponseReceived(depth int, final bool) {
	finality := "partial"
	if final {
		finality = "final"
	}
	o.responses.WithLabelValues(depthLabel(depth), finality).Inc()
}

func (o *SessionObserver) ProtocolViolation() {
	o.protocolViolation.Inc()
}

func (o *SessionObserver) SessionFinished(outcome string, elapsed time.Duration) {
	o.sessionsFinished.WithLabelValues(outcome).Inc()
	o.sessionDuration.Observe(elapsed.Seconds())
}

func (o *SessionObserver) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

func depthLabel(depth int) string {
	switch depth {
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3"
	default:
		return "other"
	}
}
