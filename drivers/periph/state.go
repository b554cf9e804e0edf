// Package periph implements the request lifecycle shared by the drivers of
// peripherals behind the processor link: exclusive locking, the single
// pending request and the synchronous wrappers around asynchronous calls.
package periph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type State uint8

const (
	BeforeInit State = iota
	Initializing
	Initialized
	Locked
	BusyPhase1 // first phase of a multi-phase sequence
	BusyPhase2 // second phase of a multi-phase sequence
)

func (s State) String() string {
	switch s {
	case BeforeInit:
		return "before-init"
	case Initializing:
		return "initializing"
	case Initialized:
		return "initialized"
	case Locked:
		return "locked"
	case BusyPhase1:
		return "busy-phase1"
	case BusyPhase2:
		return "busy-phase2"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Busy reports whether a request or sequence owns the peripheral.
func (s State) Busy() bool { return s >= Locked }

var (
	ErrBeforeInit       = errors.New("periph: not initialized")
	ErrExclusive        = errors.New("periph: another request is in progress")
	ErrTimeout          = errors.New("periph: timeout")
	ErrInterruptContext = errors.New("periph: called from interrupt context")
)

// Request is the record of the single request in flight.
type Request[R any] struct {
	Callback func(ctx context.Context, r R) // Called once the reply arrived
	Dest     func(v uint32)                 // Stores the decoded reply value
	Command  uint8                          // Command the reply must match
}

// Machine guards a peripheral. All transitions are made with its mutex held,
// which stands in for disabled interrupts.
type Machine[R any] struct {
	mu      sync.Mutex
	state   State
	req     Request[R]
	changed cond
}

func (m *Machine[R]) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pending returns a copy of the pending request.
func (m *Machine[R]) Pending() Request[R] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.req
}

// Begin starts initialization. It returns false if it was started before.
func (m *Machine[R]) Begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != BeforeInit {
		return false
	}
	m.set(Initializing)
	return true
}

// Ready finishes initialization.
func (m *Machine[R]) Ready() {
	m.mu.Lock()
	m.req = Request[R]{}
	m.set(Initialized)
	m.mu.Unlock()
}

// Lock acquires the peripheral for one request. It fails without side
// effects unless the state is exactly Initialized.
func (m *Machine[R]) Lock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lock()
}

// Acquire is like Lock but also succeeds without a transition if the machine
// is in state keep. Multi-phase sequences use it to repeat a phase.
func (m *Machine[R]) Acquire(keep State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == keep {
		return nil
	}
	return m.lock()
}

// Swap moves from state from to state to. It reports false and does nothing
// if the machine is in any other state.
func (m *Machine[R]) Swap(from, to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from {
		return false
	}
	m.set(to)
	return true
}

func (m *Machine[R]) lock() error {
	switch m.state {
	case BeforeInit, Initializing:
		return ErrBeforeInit
	case Initialized:
		m.set(Locked)
		return nil
	}
	return ErrExclusive
}

// Arm records req as the pending request.
func (m *Machine[R]) Arm(req Request[R]) {
	m.mu.Lock()
	m.req = req
	m.mu.Unlock()
}

// Send calls send with the machine locked. If send fails the peripheral is
// released and the pending request cleared.
func (m *Machine[R]) Send(send func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := send()
	if err != nil {
		m.req = Request[R]{}
		m.set(Initialized)
	}
	return err
}

// Expects reports whether a reply to cmd is awaited.
func (m *Machine[R]) Expects(cmd uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Busy() && m.req.Command == cmd
}

// Finish completes the pending request with r. settle picks the next state
// for the completed command, nil means Initialized. It runs with the machine
// locked. The request's callback is called after the machine was released.
func (m *Machine[R]) Finish(ctx context.Context, r R, settle func(cmd uint8) State) {
	m.mu.Lock()
	req := m.req
	m.req = Request[R]{}
	next := Initialized
	if settle != nil {
		next = settle(req.Command)
	}
	m.set(next)
	m.mu.Unlock()

	if req.Callback != nil {
		req.Callback(ctx, r)
	}
}

// Enter moves to s unconditionally. Used by multi-phase sequences.
func (m *Machine[R]) Enter(s State) {
	m.mu.Lock()
	m.set(s)
	m.mu.Unlock()
}

// Update runs fn with the machine locked and wakes all waiters afterwards.
// Drivers use it for flags that waiters test in their conditions.
func (m *Machine[R]) Update(fn func(s State)) {
	m.mu.Lock()
	fn(m.state)
	m.changed.broadcast()
	m.mu.Unlock()
}

// Wait blocks until cond holds or timeout expires. cond is evaluated with the
// machine locked after every change. The reply path keeps running while
// waiting.
func (m *Machine[R]) Wait(ctx context.Context, cond func(s State) bool, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		m.mu.Lock()
		if cond(m.state) {
			m.mu.Unlock()
			return nil
		}
		ch := m.changed.wait()
		m.mu.Unlock()

		select {
		case <-ch:
		case <-timer.C:
			return ErrTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Relock waits interval for the peer to process the last fire-and-forget
// command, then waits until the peripheral can be locked again.
func (m *Machine[R]) Relock(ctx context.Context, interval, timeout time.Duration) error {
	select {
	case <-time.After(interval):
	case <-ctx.Done():
		return ctx.Err()
	}
	return m.Wait(ctx, func(State) bool { return m.lock() == nil }, timeout)
}

func (m *Machine[R]) set(s State) {
	m.state = s
	m.changed.broadcast()
}

// cond is a broadcast channel guarded by its owner's mutex.
type cond struct {
	ch chan struct{}
}

func (c *cond) wait() <-chan struct{} {
	if c.ch == nil {
		c.ch = make(chan struct{})
	}
	return c.ch
}

func (c *cond) broadcast() {
	if c.ch != nil {
		close(c.ch)
		c.ch = nil
	}
}
