package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/netwatch/internal/domain"
)

// Config holds poll loop configuration.
type Config struct {
	Interval time.Duration // Time between cycles (default 2s)
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() Config {
	return Config{
		Interval: 2 * time.Second,
	}
}

// Monitor drives the reachability prober and the diff engine on a fixed
// interval. Cycles run sequentially on a single goroutine and never overlap,
// so the tracker and its resolver need no internal locking. Events from one
// cycle are emitted in full before the next one gathers data.
type Monitor struct {
	config  Config
	reader  domain.TableReader
	tracker *Tracker
	prober  domain.Prober
	sinks   []domain.EventSink
	logger  *zap.Logger

	probed    bool
	reachable bool
}

// New creates a monitor. Sinks receive the per-tick reachability value and
// every new-connection event.
func New(
	config Config,
	reader domain.TableReader,
	tracker *Tracker,
	prober domain.Prober,
	logger *zap.Logger,
	sinks ...domain.EventSink,
) *Monitor {
	return &Monitor{
		config:  config,
		reader:  reader,
		tracker: tracker,
		prober:  prober,
		sinks:   sinks,
		logger:  logger,
	}
}

// Run executes poll cycles until ctx is canceled. The first cycle starts
// immediately. Cancellation interrupts the inter-cycle sleep but never a
// cycle already in flight; sub-probes finish within their own timeouts.
// Returns ctx.Err() - cancellation is the only way the loop terminates.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started",
		zap.Duration("interval", m.config.Interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping")
			return ctx.Err()

		case <-timer.C:
			m.runCycle(ctx)
			timer.Reset(m.config.Interval)
		}
	}
}

// runCycle performs one tick: probe reachability, snapshot the table, diff,
// emit. Internal failures are absorbed; a failed snapshot shows up as zero
// events for this tick, never as a crash.
func (m *Monitor) runCycle(ctx context.Context) {
	reachable := m.prober.Probe(ctx)
	if !m.probed || reachable != m.reachable {
		m.logger.Info("reachability changed", zap.Bool("reachable", reachable))
	}
	m.probed = true
	m.reachable = reachable

	for _, sink := range m.sinks {
		if err := sink.PublishReachability(reachable); err != nil {
			m.logger.Warn("sink rejected reachability update", zap.Error(err))
		}
	}

	conns, err := m.reader.Snapshot()
	if err != nil {
		conns = nil
		m.logger.Warn("failed to snapshot connection table", zap.Error(err))
	}

	events := m.tracker.Diff(conns)
	for _, event := range events {
		for _, sink := range m.sinks {
			if err := sink.Publish(event); err != nil {
				m.logger.Warn("sink rejected event",
					zap.Int32("pid", event.PID),
					zap.Error(err))
			}
		}
	}

	m.logger.Debug("cycle completed",
		zap.Bool("reachable", reachable),
		zap.Int("connections", len(conns)),
		zap.Int("new_connections", len(events)),
		zap.Int("seen_total", m.tracker.SeenCount()))
}

// Reachable returns the result of the most recent probe.
func (m *Monitor) Reachable() bool {
	return m.reachable
}
