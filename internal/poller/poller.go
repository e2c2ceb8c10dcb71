// Package poller drives the fetch/build/diff pipeline on a fixed
// interval.
package poller

import (
	"context"
	"log"
	"sync"
	"time"
)

// Poller runs a cycle function immediately on start and then on every
// tick until stopped. Cycles are independent: a slow cycle does not delay
// or cancel the next tick, and a cycle finishing after Stop sees a
// cancelled context and is discarded.
type Poller struct {
	run      func(ctx context.Context)
	interval chan time.Duration

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	current  time.Duration
}

// New creates a poller invoking run on the given interval. Intervals at
// or below zero fall back to one second.
func New(interval time.Duration, run func(ctx context.Context)) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		run:      run,
		interval: make(chan time.Duration, 1),
		current:  interval,
	}
}

// Start launches the poll loop. It runs one cycle immediately, then one
// per interval. Start must be called at most once.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	ctx, p.cancel = context.WithCancel(ctx)
	interval := p.current
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.run(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.run(ctx)
			case d := <-p.interval:
				ticker.Reset(d)
				log.Printf("poller: interval set to %s", d)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// SetInterval retunes the ticker for subsequent ticks.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.current = d
	p.mu.Unlock()

	select {
	case p.interval <- d:
	default:
		// A pending update is already queued; drop the older one.
		select {
		case <-p.interval:
		default:
		}
		p.interval <- d
	}
}

// Interval returns the currently configured interval.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Stop cancels the loop and waits for it to exit. Stop is idempotent and
// safe to call concurrently.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		cancel := p.cancel
		p.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		p.wg.Wait()
	})
}
