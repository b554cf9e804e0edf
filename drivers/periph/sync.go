package periph

import (
	"context"
	"sync"
	"time"

	"github.com/clktmr/twl/debug"
	"github.com/clktmr/twl/pxi"
)

// Await turns an asynchronous request into a blocking call. issue is called
// with a callback that posts the final result to a single-slot queue. If
// issue doesn't return success, its result is returned immediately.
//
// Await must not be called from a handler: in that case illegal is returned
// and issue isn't called. There is no cancellation, once issued the request
// is waited for.
func Await[R comparable](ctx context.Context, success, illegal R, issue func(cb func(context.Context, R)) R) R {
	if pxi.IsInterrupt(ctx) {
		debug.Warn("periph: synchronous call in interrupt context")
		return illegal
	}

	done := make(chan R, 1)
	r := issue(func(_ context.Context, r R) {
		select {
		case done <- r:
		default:
			debug.Error("periph: result queue is full")
		}
	})
	if r != success {
		return r
	}
	return <-done
}

// Flags is a set of bits with waiters, used by drivers that track several
// requests at once.
type Flags struct {
	mu      sync.Mutex
	bits    uint32
	changed cond
}

func (f *Flags) Load() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bits
}

// Test returns the bits of mask that are set.
func (f *Flags) Test(mask uint32) uint32 { return f.Load() & mask }

func (f *Flags) Set(mask uint32) {
	f.mu.Lock()
	f.bits |= mask
	f.changed.broadcast()
	f.mu.Unlock()
}

// TrySet sets mask if none of its bits are set and reports whether it did.
func (f *Flags) TrySet(mask uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bits&mask != 0 {
		return false
	}
	f.bits |= mask
	f.changed.broadcast()
	return true
}

func (f *Flags) Clear(mask uint32) {
	f.mu.Lock()
	f.bits &^= mask
	f.changed.broadcast()
	f.mu.Unlock()
}

// Reset clears all bits.
func (f *Flags) Reset() { f.Clear(^uint32(0)) }

// Wait blocks until all bits in mask are clear.
func (f *Flags) Wait(ctx context.Context, mask uint32, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		f.mu.Lock()
		if f.bits&mask == 0 {
			f.mu.Unlock()
			return nil
		}
		ch := f.changed.wait()
		f.mu.Unlock()

		select {
		case <-ch:
		case <-timer.C:
			return ErrTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitReady polls until the peer has installed its handler for tag.
func WaitReady(ctx context.Context, ch pxi.Channel, tag pxi.Tag, timeout time.Duration) error {
	if ch.IsReady(tag) {
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(readyPoll)
	defer ticker.Stop()
	for !ch.IsReady(tag) {
		select {
		case <-ticker.C:
		case <-timer.C:
			return ErrTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

const readyPoll = 100 * time.Microsecond
