// ABOUTME: Wires storage, the notification bus and the ride services into one engine.
// ABOUTME: Optional listeners publish events to NATS and count them in Prometheus.
package engine

import (
	"github.com/charmbracelet/log"
	"github.com/harperreed/bikey/internal/geo"
	"github.com/harperreed/bikey/internal/keylock"
	"github.com/harperreed/bikey/internal/logbook"
	"github.com/harperreed/bikey/internal/metrics"
	"github.com/harperreed/bikey/internal/notify"
	"github.com/harperreed/bikey/internal/ride"
	"github.com/harperreed/bikey/internal/stats"
	"github.com/harperreed/bikey/internal/storage"
	"github.com/harperreed/bikey/internal/timeutil"
	"github.com/prometheus/client_golang/prometheus"
)

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Logger    *log.Logger
	Clock     timeutil.Clock
	Threshold float64
	Collector ride.Collector

	// NATSURL enables the NATS event publisher when set.
	NATSURL string
	// Registerer enables Prometheus event counters when set.
	Registerer prometheus.Registerer
}

// Engine bundles the services operating on one store.
type Engine struct {
	Store storage.Store
	Bus   *notify.Bus
	Logs  *logbook.Logbook
	Stats *stats.Engine
	Rides *ride.Manager

	Metrics   *metrics.Metrics
	publisher notify.Publisher
}

// New builds an Engine over store. Call Close to release listeners.
func New(store storage.Store, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Threshold <= 0 {
		opts.Threshold = geo.SpeedMinThreshold
	}
	if opts.Collector == nil {
		opts.Collector = ride.NopCollector{}
	}

	locks := keylock.New()
	bus := notify.NewBus(opts.Logger, opts.Clock)

	e := &Engine{
		Store: store,
		Bus:   bus,
		Logs: logbook.New(store, bus,
			logbook.WithLocks(locks),
			logbook.WithLogger(opts.Logger),
			logbook.WithThreshold(opts.Threshold),
		),
		Stats: stats.New(store, stats.WithThreshold(opts.Threshold)),
		Rides: ride.New(store, bus,
			ride.WithLocks(locks),
			ride.WithClock(opts.Clock),
			ride.WithLogger(opts.Logger),
			ride.WithCollector(opts.Collector),
			ride.WithThreshold(opts.Threshold),
		),
		publisher: notify.NewPublisher(opts.NATSURL, opts.Logger),
	}
	bus.Add(e.publisher)

	if opts.Registerer != nil {
		e.Metrics = metrics.New(opts.Registerer)
		bus.Add(e.Metrics)
	}
	return e
}

// Close shuts down the event publisher.
func (e *Engine) Close() error {
	return e.publisher.Close()
}
