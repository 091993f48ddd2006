// ABOUTME: Prometheus metrics fed by the notification bus.
// ABOUTME: Counts ride events per kind and records when each kind last occurred.
package metrics

import (
	"errors"

	"github.com/harperreed/bikey/internal/notify"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the ride event metrics and implements notify.Listener.
type Metrics struct {
	RideEventsTotal *prometheus.CounterVec
	LastEventTime   *prometheus.GaugeVec
}

// New creates the metrics and registers them with reg. Metrics that are
// already registered are reused.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RideEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bikey_ride_events_total",
			Help: "Total number of ride events delivered by the notification bus",
		}, []string{"event"}),

		LastEventTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bikey_ride_last_event_timestamp_seconds",
			Help: "Unix time of the most recent ride event per kind",
		}, []string{"event"}),
	}

	m.RideEventsTotal = registerOrGet(reg, m.RideEventsTotal)
	m.LastEventTime = registerOrGet(reg, m.LastEventTime)
	return m
}

// HandleEvent records e.
func (m *Metrics) HandleEvent(e notify.Event) error {
	kind := string(e.Kind)
	m.RideEventsTotal.WithLabelValues(kind).Inc()
	m.LastEventTime.WithLabelValues(kind).Set(float64(e.At.UnixNano()) / 1e9)
	return nil
}

// registerOrGet registers c, returning the existing collector if one is already registered.
func registerOrGet[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}
