// Package lockmetrics exports rwlock events as Prometheus metrics.
package lockmetrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rogov-ks/rwlock/rwlock"
)

// Metrics is an rwlock.Observer that counts acquisitions and releases and
// records wait times for one named lock.
type Metrics struct {
	acquisitions *prometheus.CounterVec
	contended    *prometheus.CounterVec
	releases     *prometheus.CounterVec
	wait         *prometheus.HistogramVec
	lock         string
}

var _ rwlock.Observer = (*Metrics)(nil)

// New registers the lock metrics in reg. name becomes the value of the
// "lock" label, so several locks can share one registry.
func New(reg prometheus.Registerer, name string) (*Metrics, error) {
	labels := []string{"lock", "mode"}
	m := &Metrics{
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rwlock_acquisitions_total",
			Help: "Number of granted lock acquisitions.",
		}, labels),
		contended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rwlock_contended_acquisitions_total",
			Help: "Number of acquisitions that had to wait.",
		}, labels),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rwlock_releases_total",
			Help: "Number of lock releases.",
		}, labels),
		wait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rwlock_wait_seconds",
			Help:    "Time spent blocked before a contended acquisition was granted.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, labels),
		lock: name,
	}

	var err error
	if m.acquisitions, err = register(reg, m.acquisitions); err != nil {
		return nil, fmt.Errorf("lockmetrics: register %q: %w", name, err)
	}
	if m.contended, err = register(reg, m.contended); err != nil {
		return nil, fmt.Errorf("lockmetrics: register %q: %w", name, err)
	}
	if m.releases, err = register(reg, m.releases); err != nil {
		return nil, fmt.Errorf("lockmetrics: register %q: %w", name, err)
	}
	if m.wait, err = register(reg, m.wait); err != nil {
		return nil, fmt.Errorf("lockmetrics: register %q: %w", name, err)
	}
	return m, nil
}

// register returns the collector that is already registered under the same
// descriptor, so that several locks can report into the same vectors.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

func (m *Metrics) Acquired(mode rwlock.Mode, waited time.Duration) {
	m.acquisitions.WithLabelValues(m.lock, mode.String()).Inc()
	if waited > 0 {
		m.contended.WithLabelValues(m.lock, mode.String()).Inc()
		m.wait.WithLabelValues(m.lock, mode.String()).Observe(waited.Seconds())
	}
}

func (m *Metrics) Released(mode rwlock.Mode) {
	m.releases.WithLabelValues(m.lock, mode.String()).Inc()
}
