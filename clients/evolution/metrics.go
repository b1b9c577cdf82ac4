package evolution

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records dispatcher activity. A nil *Metrics records nothing.
type Metrics struct {
	mu         sync.Mutex
	registered bool

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	retriesTotal     *prometheus.CounterVec
	rateLimitedTotal *prometheus.CounterVec
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wagate",
			Subsystem: "evolution",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewMetrics creates unregistered collectors
func NewMetrics() *Metrics {
	return &Metrics{
		requestsTotal: newCounterVec("requests_total", "Gateway calls by outcome", []string{"connection", "class", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "wagate",
				Subsystem: "evolution",
				Name:      "request_duration_seconds",
				Help:      "Duration of gateway calls including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"connection", "class"},
		),
		retriesTotal:     newCounterVec("retries_total", "Retried gateway attempts", []string{"connection"}),
		rateLimitedTotal: newCounterVec("rate_limited_total", "Calls denied by the local rate limiter", []string{"connection", "class", "policy"}),
	}
}

// Register adds the collectors to reg. Safe to call multiple times.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	for _, c := range []prometheus.Collector{m.requestsTotal, m.requestDuration, m.retriesTotal, m.rateLimitedTotal} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	m.registered = true
	return nil
}

// status is the HTTP status, or "error" when no response arrived
func (m *Metrics) observeRequest(connection, class, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requestsTotal.WithLabelValues(connection, class, method, label).Inc()
	m.requestDuration.WithLabelValues(connection, class).Observe(d.Seconds())
}

func (m *Metrics) observeRetry(connection string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(connection).Inc()
}

func (m *Metrics) observeRateLimited(connection, class, policy string) {
	if m == nil {
		return
	}
	m.rateLimitedTotal.WithLabelValues(connection, class, policy).Inc()
}
