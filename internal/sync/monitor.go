package sync

import (
	"context"
	"log/slog"
	gosync "sync"
	"time"
)

// DefaultMonitorInterval is how often the connectivity monitor polls
// the probe.
const DefaultMonitorInterval = 30 * time.Second

// Monitor watches connectivity and drains the offline queue on the
// offline-to-online transition. It polls rather than subscribes: the
// probe is a cheap dial and the queue is tolerant of redundant drains.
type Monitor struct {
	engine   *Engine
	interval time.Duration
	log      *slog.Logger

	mu      gosync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	wasUp   bool
	started bool
}

// NewMonitor builds a Monitor over the engine. interval <= 0 selects
// DefaultMonitorInterval.
func NewMonitor(e *Engine, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	return &Monitor{engine: e, interval: interval, log: e.log}
}

// Start launches the polling loop. Calling Start on a running monitor
// is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.started = true
	go m.loop(ctx)
}

// Stop terminates the polling loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.started = false
	m.mu.Unlock()

	cancel()
	<-done
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.wasUp = m.engine.online(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	up := m.engine.online(ctx)
	cameUp := up && !m.wasUp
	m.wasUp = up
	if !cameUp {
		return
	}
	m.log.Info("connectivity restored, draining queue")
	if err := m.engine.ProcessQueue(ctx); err != nil {
		m.log.Warn("queue drain after reconnect failed", "error", err)
	}
}
