// Package arm7 simulates the peripherals behind the second processor. Each
// simulator registers a handler for its tag on the ARM7 side of a link and
// answers requests the way the hardware does, so the drivers can be run
// without hardware.
package arm7

import (
	"context"
	"time"

	"github.com/clktmr/twl/pxi"

	"golang.org/x/sync/errgroup"
)

// System bundles all simulators of a link.
type System struct {
	Sound      *Sound
	Mic        *Mic
	TouchPanel *TouchPanel
}

// New starts all simulators on the ARM7 side of link. mem holds the buffers
// of microphone auto sampling.
func New(link *pxi.Link, mem *pxi.Memory) *System {
	ch := link.ARM7()
	return &System{
		Sound:      NewSound(ch),
		Mic:        NewMic(ch, &link.Work, mem),
		TouchPanel: NewTouchPanel(ch, &link.Work),
	}
}

// Run ticks the microphone every tick and the touch panel every frame
// until ctx is done.
func (s *System) Run(ctx context.Context, tick, frame time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return every(ctx, tick, s.Mic.Tick) })
	g.Go(func() error { return every(ctx, frame, s.TouchPanel.Tick) })
	return g.Wait()
}

func every(ctx context.Context, d time.Duration, fn func()) error {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			fn()
		}
	}
}
