// Package metrics exposes per-session transcoder activity as
// Prometheus collectors, behind the same pluggable Observer shape the
// teacher's block-device metrics use — only the concerns differ
// (bytes/ops here become frames, retries, keep-alive heartbeats, and
// SEI emission counts).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Observer is called by a session on every notable event. Sessions
// hold an Observer, not a *Collector, so callers can swap in a no-op
// implementation when metrics collection isn't wanted.
type Observer interface {
	ObserveWrite(sessionID uint16, bytes int, success bool)
	ObserveRead(sessionID uint16, bytes int, success bool)
	ObserveRetry(sessionID uint16, op string)
	ObserveKeepAlive(sessionID uint16, success bool)
	ObserveSEIEmitted(sessionID uint16, count int)
	ObserveErrorClassified(sessionID uint16, fatal bool)
}

// NoOpObserver discards every event. It is the default when a caller
// opens a session without supplying a Collector.
type NoOpObserver struct{}

func (NoOpObserver) ObserveWrite(uint16, int, bool)    {}
func (NoOpObserver) ObserveRead(uint16, int, bool)     {}
func (NoOpObserver) ObserveRetry(uint16, string)       {}
func (NoOpObserver) ObserveKeepAlive(uint16, bool)     {}
func (NoOpObserver) ObserveSEIEmitted(uint16, int)     {}
func (NoOpObserver) ObserveErrorClassified(uint16, bool) {}

var _ Observer = NoOpObserver{}

// Collector implements Observer on top of standard Prometheus metric
// types and itself implements prometheus.Collector, so it can be
// registered once with a caller's registry and shared across every
// session the process opens.
type Collector struct {
	writeBytes   *prometheus.CounterVec
	writeErrors  *prometheus.CounterVec
	readBytes    *prometheus.CounterVec
	readErrors   *prometheus.CounterVec
	retries      *prometheus.CounterVec
	keepAliveOK  *prometheus.CounterVec
	keepAliveErr *prometheus.CounterVec
	seiEmitted   *prometheus.CounterVec
	errorsFatal  *prometheus.CounterVec
	errorsSoft   *prometheus.CounterVec
}

// NewCollector builds a Collector with the given namespace (e.g.
// "xcoder"). Callers register it with prometheus.Register /
// MustRegister themselves.
func NewCollector(namespace string) *Collector {
	sessionLabel := []string{"session_id"}
	return &Collector{
		writeBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "write_bytes_total",
			Help: "Total bytes written to sessions.",
		}, sessionLabel),
		writeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "write_errors_total",
			Help: "Total failed write calls.",
		}, sessionLabel),
		readBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "read_bytes_total",
			Help: "Total bytes read from sessions.",
		}, sessionLabel),
		readErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "read_errors_total",
			Help: "Total failed read calls.",
		}, sessionLabel),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "retries_total",
			Help: "Total retry-class errors (ErrRetry) by operation.",
		}, []string{"session_id", "op"}),
		keepAliveOK: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "keepalive_success_total",
			Help: "Total successful keep-alive heartbeats.",
		}, sessionLabel),
		keepAliveErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "keepalive_failure_total",
			Help: "Total failed keep-alive heartbeats.",
		}, sessionLabel),
		seiEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sei_entries_emitted_total",
			Help: "Total SEI metadata entries emitted.",
		}, sessionLabel),
		errorsFatal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_fatal_total",
			Help: "Total status verdicts classified as fatal.",
		}, sessionLabel),
		errorsSoft: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_soft_total",
			Help: "Total status verdicts classified as non-fatal.",
		}, sessionLabel),
	}
}

func (c *Collector) ObserveWrite(sessionID uint16, bytes int, success bool) {
	label := sessionLabelValue(sessionID)
	if !success {
		c.writeErrors.WithLabelValues(label).Inc()
		return
	}
	c.writeBytes.WithLabelValues(label).Add(float64(bytes))
}

func (c *Collector) ObserveRead(sessionID uint16, bytes int, success bool) {
	label := sessionLabelValue(sessionID)
	if !success {
		c.readErrors.WithLabelValues(label).Inc()
		return
	}
	c.readBytes.WithLabelValues(label).Add(float64(bytes))
}

func (c *Collector) ObserveRetry(sessionID uint16, op string) {
	c.retries.WithLabelValues(sessionLabelValue(sessionID), op).Inc()
}

func (c *Collector) ObserveKeepAlive(sessionID uint16, success bool) {
	label := sessionLabelValue(sessionID)
	if success {
		c.keepAliveOK.WithLabelValues(label).Inc()
	} else {
		c.keepAliveErr.WithLabelValues(label).Inc()
	}
}

func (c *Collector) ObserveSEIEmitted(sessionID uint16, count int) {
	c.seiEmitted.WithLabelValues(sessionLabelValue(sessionID)).Add(float64(count))
}

func (c *Collector) ObserveErrorClassified(sessionID uint16, fatal bool) {
	label := sessionLabelValue(sessionID)
	if fatal {
		c.errorsFatal.WithLabelValues(label).Inc()
	} else {
		c.errorsSoft.WithLabelValues(label).Inc()
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, v := range c.vecs() {
		v.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, v := range c.vecs() {
		v.Collect(ch)
	}
}

func (c *Collector) vecs() []*prometheus.CounterVec {
	return []*prometheus.CounterVec{
		c.writeBytes, c.writeErrors, c.readBytes, c.readErrors,
		c.retries, c.keepAliveOK, c.keepAliveErr, c.seiEmitted,
		c.errorsFatal, c.errorsSoft,
	}
}

func sessionLabelValue(sessionID uint16) string {
	return formatUint16(sessionID)
}

func formatUint16(v uint16) string {
	if v == 0 {
		return "0"
	}
	var buf [5]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

var _ prometheus.Collector = (*Collector)(nil)
