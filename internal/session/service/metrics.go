package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts authority outcomes. A nil *Metrics records nothing.
type Metrics struct {
	sessionsCreated prometheus.Counter
	refreshes       *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	revocations     *prometheus.CounterVec
	swept           prometheus.Counter
	touchFailures   prometheus.Counter
}

// NewMetrics registers the authority collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authority",
			Name:      "sessions_created_total",
			Help:      "Sessions opened.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authority",
			Name:      "refreshes_total",
			Help:      "Refresh attempts by result.",
		}, []string{"result"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authority",
			Name:      "access_verifications_total",
			Help:      "Session-backed access token verifications by result.",
		}, []string{"result"}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authority",
			Name:      "revocations_total",
			Help:      "Revocation calls by kind.",
		}, []string{"kind"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authority",
			Name:      "sessions_swept_total",
			Help:      "Sessions deleted by the retention sweep.",
		}),
		touchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authority",
			Name:      "touch_failures_total",
			Help:      "Liveness updates that failed and were ignored.",
		}),
	}
	reg.MustRegister(m.sessionsCreated, m.refreshes, m.verifications, m.revocations, m.swept, m.touchFailures)
	return m
}

func (m *Metrics) created() {
	if m != nil {
		m.sessionsCreated.Inc()
	}
}

func (m *Metrics) refresh(result string) {
	if m != nil {
		m.refreshes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) verify(result string) {
	if m != nil {
		m.verifications.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) revoke(kind string) {
	if m != nil {
		m.revocations.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) sweep(n int64) {
	if m != nil {
		m.swept.Add(float64(n))
	}
}

func (m *Metrics) touchFailed() {
	if m != nil {
		m.touchFailures.Inc()
	}
}

// resultLabel buckets an error into a low-cardinality label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isExpired(err):
		return "expired"
	case isReuse(err):
		return "reuse"
	case isStore(err):
		return "store_unavailable"
	default:
		return "rejected"
	}
}
