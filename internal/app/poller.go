package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/five82/panelwatch/internal/monitor"
	"github.com/five82/panelwatch/internal/registration"
	"github.com/five82/panelwatch/internal/state"
	"github.com/five82/panelwatch/internal/sysstat"
)

const (
	defaultPollInterval = time.Second
	maxBackoff          = 30 * time.Second
)

// Poller moves registry state into the store once per tick.
type Poller struct {
	registry    *monitor.Registry
	sampler     sysstat.Sampler
	store       *state.Store
	dir         string
	forceReload time.Duration
	logger      *zap.Logger
	now         func() time.Time

	// changes signals registry directory edits; nil means rescan every tick.
	changes <-chan struct{}
	scanned bool

	reloadRequested atomic.Bool
	wake            chan struct{}
	lastReload      time.Time
	failures        int
	skipped         map[string]string
}

// NewPoller wires a poller. sampler may be nil.
func NewPoller(registry *monitor.Registry, sampler sysstat.Sampler, store *state.Store, dir string, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		registry: registry,
		sampler:  sampler,
		store:    store,
		dir:      dir,
		logger:   logger,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
		skipped:  make(map[string]string),
	}
}

// SetForceReload enables clearing every script and re-reading its log from
// the start at the given cadence.
func (p *Poller) SetForceReload(d time.Duration) {
	p.forceReload = d
}

// Watch rescans registrations only when changes fires.
func (p *Poller) Watch(changes <-chan struct{}) {
	p.changes = changes
}

// RequestReload clears all scripts on the next tick and wakes the poller.
func (p *Poller) RequestReload() {
	p.reloadRequested.Store(true)
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// StartPoller launches a background goroutine that refreshes the store at a
// fixed cadence, backing off while the registry directory is unreadable. It
// returns immediately.
func StartPoller(ctx context.Context, p *Poller, interval time.Duration) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go func() {
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			wait := interval
			if err := p.refresh(ctx); err != nil {
				wait = calculateBackoff(p.failures, interval)
			}
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			case <-p.wake:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
		}
	}()
}

// calculateBackoff doubles base once per consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func (p *Poller) refresh(ctx context.Context) error {
	now := p.now()
	if p.lastReload.IsZero() {
		p.lastReload = now
	}

	reload := p.reloadRequested.Swap(false)
	if p.forceReload > 0 && now.Sub(p.lastReload) >= p.forceReload {
		reload = true
	}
	if reload {
		p.registry.ClearAll()
		p.scanned = false
		p.lastReload = now
		p.logger.Debug("reloading all scripts")
	}

	if p.needsScan() {
		if err := p.scan(); err != nil {
			p.failures++
			p.store.Update(nil, nil, err)
			p.logger.Warn("registry scan failed", zap.Error(err), zap.Int("failures", p.failures))
			return err
		}
	}
	p.failures = 0

	for id, res := range p.registry.PollAll(ctx) {
		if res.Warning != "" {
			p.store.Warn(fmt.Sprintf("%s: %s", id, res.Warning))
		}
	}

	var system *sysstat.Stats
	if p.sampler != nil {
		stats, err := p.sampler.Sample(ctx)
		if err != nil {
			p.logger.Debug("system sample incomplete", zap.Error(err))
		}
		if stats.Valid() {
			system = &stats
		}
	}

	p.store.Update(p.registry.Snapshots(), system, nil)
	return nil
}

func (p *Poller) needsScan() bool {
	if !p.scanned || p.changes == nil {
		return true
	}
	select {
	case _, ok := <-p.changes:
		if !ok {
			p.logger.Warn("registry watcher stopped, rescanning every tick")
			p.changes = nil
		}
		return true
	default:
		return false
	}
}

func (p *Poller) scan() error {
	scan, err := registration.LoadDir(p.dir)
	if err != nil {
		return err
	}
	for path, reason := range scan.Skipped {
		msg := reason.Error()
		if p.skipped[path] == msg {
			continue
		}
		p.skipped[path] = msg
		p.logger.Info("registration skipped", zap.String("path", path), zap.Error(reason))
	}
	for _, rec := range scan.Records {
		delete(p.skipped, rec.Path)
		if !p.registry.Register(rec.Registration()) {
			p.logger.Warn("registration rejected", zap.String("path", rec.Path))
		}
	}
	// Records waiting for their log file to appear produce no directory
	// event, so keep scanning every tick until none are left.
	p.scanned = len(scan.Skipped) == 0
	return nil
}
