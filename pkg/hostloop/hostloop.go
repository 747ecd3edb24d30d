// Package hostloop drives HostServer mode: a server tick loop and an
// in-process loopback client tick loop, running side by side in one
// process. It is the one place two single-threaded connection loops share
// a process, so they are coordinated through an errgroup.Group rather
// than shared memory, per SPEC_FULL.md §5.
package hostloop

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// TickFunc advances one loop by a single tick at wall-clock time now.
type TickFunc func(now time.Time)

// Runner ticks a server loop and a loopback client loop at the same fixed
// rate, each in its own goroutine, until ctx is canceled. TickFunc returns
// no error and Run recovers no panics; Run exists to bound the two loops'
// lifetimes together, not to add error handling neither loop has.
type Runner struct {
	tickDuration time.Duration
	serverTick   TickFunc
	clientTick   TickFunc
}

// New returns a Runner that calls serverTick and clientTick once every
// tickDuration.
func New(tickDuration time.Duration, serverTick, clientTick TickFunc) *Runner {
	return &Runner{tickDuration: tickDuration, serverTick: serverTick, clientTick: clientTick}
}

// Run blocks until ctx is canceled, ticking the server loop and the
// loopback client loop, each on its own ticker at the same rate (the two
// are not synchronized with each other). Canceling ctx stops both; there is no
// partial shutdown.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.loop(ctx, r.serverTick) })
	g.Go(func() error { return r.loop(ctx, r.clientTick) })
	return g.Wait()
}

func (r *Runner) loop(ctx context.Context, tick TickFunc) error {
	ticker := time.NewTicker(r.tickDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			tick(now)
		}
	}
}
