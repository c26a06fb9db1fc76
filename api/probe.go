/*
probe.go - Background storage health probe

PURPOSE:
  Periodically reads every registered collection so /health can report
  whether the store is reachable without waiting for a user request to
  fail. Results are also exported as dashboard_storage_up.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - A corrupt collection is readable (it lists as empty), so only
    storage-unavailable errors count as failures
  - The latest result is kept for the /health handler

USAGE:
  probe := NewStorageProbe(svc, reg, WithProbeLogger(logger))
  probe.Start()
  // ... later
  probe.Stop()

SEE ALSO:
  - handlers.go: Health endpoint
  - resource/service.go: List
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/warp/dashboard-engine/generic"
	"github.com/warp/dashboard-engine/resource"
)

// DefaultProbeInterval is how often the store is checked.
const DefaultProbeInterval = 30 * time.Second

// ProbeResult is the outcome of one check.
type ProbeResult struct {
	OK          bool
	CheckedAt   time.Time
	FailedTypes []generic.EntityType
}

// StorageProbe checks store reachability on a ticker.
type StorageProbe struct {
	Resources     *resource.Service
	CheckInterval time.Duration
	Timeout       time.Duration
	Logger        *slog.Logger

	clock generic.Clock
	up    prometheus.Gauge

	mu      sync.Mutex
	last    ProbeResult
	checked bool
	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
}

// ProbeOption configures a StorageProbe.
type ProbeOption func(*StorageProbe)

// WithProbeInterval sets the check interval.
func WithProbeInterval(d time.Duration) ProbeOption {
	return func(p *StorageProbe) {
		if d > 0 {
			p.CheckInterval = d
		}
	}
}

// WithProbeLogger sets the logger.
func WithProbeLogger(l *slog.Logger) ProbeOption {
	return func(p *StorageProbe) {
		if l != nil {
			p.Logger = l
		}
	}
}

// WithProbeClock pins CheckedAt.
func WithProbeClock(c generic.Clock) ProbeOption {
	return func(p *StorageProbe) { p.clock = c }
}

// NewStorageProbe creates a probe and registers its gauge on reg (nil skips
// registration).
func NewStorageProbe(svc *resource.Service, reg prometheus.Registerer, opts ...ProbeOption) *StorageProbe {
	p := &StorageProbe{
		Resources:     svc,
		CheckInterval: DefaultProbeInterval,
		Timeout:       5 * time.Second,
		Logger:        slog.New(slog.DiscardHandler),
		clock:         generic.SystemClock,
		up: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: "storage",
			Name:      "up",
			Help:      "1 if the last storage probe read every collection, 0 otherwise.",
		}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if reg != nil {
		reg.MustRegister(p.up)
	}
	return p
}

// Start begins checking. It runs one check immediately.
func (p *StorageProbe) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ticker != nil {
		return
	}
	p.ticker = time.NewTicker(p.CheckInterval)
	p.stop = make(chan struct{})
	p.wg.Add(1)

	go p.run(p.ticker, p.stop)

	p.Logger.Info("storage probe started", "interval", p.CheckInterval)
}

// Stop halts the probe and waits for an in-flight check.
func (p *StorageProbe) Stop() {
	p.mu.Lock()
	ticker, stop := p.ticker, p.stop
	p.ticker, p.stop = nil, nil
	p.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(stop)
	p.wg.Wait()
	p.Logger.Info("storage probe stopped")
}

func (p *StorageProbe) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer p.wg.Done()

	p.checkWithTimeout()

	for {
		select {
		case <-ticker.C:
			p.checkWithTimeout()
		case <-stop:
			return
		}
	}
}

func (p *StorageProbe) checkWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()
	p.Check(ctx)
}

// Check reads every registered collection once and records the result.
func (p *StorageProbe) Check(ctx context.Context) ProbeResult {
	result := ProbeResult{OK: true}
	for _, t := range p.Resources.Types() {
		if _, err := p.Resources.List(ctx, t, generic.Params{}); err != nil {
			result.OK = false
			result.FailedTypes = append(result.FailedTypes, t)
			p.Logger.Warn("storage probe failed", "type", t, "error", err)
		}
	}
	result.CheckedAt = p.clock()

	if result.OK {
		p.up.Set(1)
	} else {
		p.up.Set(0)
	}

	p.mu.Lock()
	p.last, p.checked = result, true
	p.mu.Unlock()
	return result
}

// Last returns the most recent result; ok is false before the first check.
func (p *StorageProbe) Last() (ProbeResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.checked
}
