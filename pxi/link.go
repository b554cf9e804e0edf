package pxi

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/clktmr/twl/debug"

	"github.com/sigurn/crc8"
	"golang.org/x/sync/errgroup"
)

// DefaultDepth is the number of words a direction buffers before Send fails.
const DefaultDepth = 16

var wordCRC8 = crc8.MakeTable(crc8.Params{Poly: 0x07, Init: 0x00, RefIn: false, RefOut: false, XorOut: 0x00, Check: 0xF4, Name: "CRC-8 PXI"})

func checksum(w Word) uint8 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(w))
	csum := crc8.Init(wordCRC8)
	csum = crc8.Update(csum, buf[:], wordCRC8)
	return crc8.Complete(csum, wordCRC8)
}

// Config configures a Link.
type Config struct {
	Depth int // Words buffered per direction, DefaultDepth if zero
}

// Link connects two endpoints, one per processor. Each direction is drained
// by its own dispatcher goroutine while Run is active.
type Link struct {
	arm9, arm7 *Endpoint

	Work SystemWork
}

func NewLink(cfg Config) *Link {
	depth := cfg.Depth
	if depth <= 0 {
		depth = DefaultDepth
	}
	l := &Link{
		arm9: newEndpoint("arm9", depth),
		arm7: newEndpoint("arm7", depth),
	}
	l.arm9.peer, l.arm7.peer = l.arm7, l.arm9
	return l
}

// ARM9 returns the endpoint used by the drivers.
func (l *Link) ARM9() *Endpoint { return l.arm9 }

// ARM7 returns the endpoint used by the peripheral side.
func (l *Link) ARM7() *Endpoint { return l.arm7 }

// Run dispatches words in both directions until ctx is done. Handlers are
// called with a context derived from ctx and marked by WithInterrupt.
func (l *Link) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.arm9.dispatch(ctx) })
	g.Go(func() error { return l.arm7.dispatch(ctx) })
	return g.Wait()
}

// Close makes all further sends fail with ErrClosed.
func (l *Link) Close() {
	l.arm9.closed.Store(true)
	l.arm7.closed.Store(true)
}

// Endpoint is one side of a Link. It implements Channel.
type Endpoint struct {
	name string
	peer *Endpoint

	out  *queue
	bell chan struct{}

	mu       sync.RWMutex
	handlers [NumTags]Handler

	closed  atomic.Bool
	corrupt atomic.Bool
	sent    atomic.Uint64
	dropped atomic.Uint64
}

var _ Channel = (*Endpoint)(nil)

func newEndpoint(name string, depth int) *Endpoint {
	return &Endpoint{
		name: name,
		out:  newQueue(depth),
		bell: make(chan struct{}, 1),
	}
}

func (e *Endpoint) Send(tag Tag, data uint32) error {
	if tag >= NumTags {
		return ErrInvalidTag
	}
	if e.closed.Load() {
		return ErrClosed
	}
	debug.Assert(data&^DataMask == 0, "pxi: data exceeds 26 bits")

	w := MakeWord(tag, data, false)
	p := packet{word: w, sum: checksum(w)}
	if e.corrupt.Swap(false) {
		p.word ^= 1 << wordDataShift
	}
	if !e.out.push(p) {
		return ErrFifoFull
	}
	e.sent.Add(1)

	select {
	case e.bell <- struct{}{}:
	default:
	}
	return nil
}

func (e *Endpoint) SetHandler(tag Tag, h Handler) {
	if tag >= NumTags {
		panic(ErrInvalidTag)
	}
	e.mu.Lock()
	e.handlers[tag] = h
	e.mu.Unlock()
}

func (e *Endpoint) Handler(tag Tag) Handler {
	if tag >= NumTags {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.handlers[tag]
}

func (e *Endpoint) IsReady(tag Tag) bool {
	return e.peer.Handler(tag) != nil
}

// CorruptNext damages the next word sent, so that the receiver sees its
// error flag set.
func (e *Endpoint) CorruptNext() { e.corrupt.Store(true) }

// Pending returns the number of words sent but not yet dispatched.
func (e *Endpoint) Pending() int { return e.out.len() }

// Sent returns the number of words accepted by Send.
func (e *Endpoint) Sent() uint64 { return e.sent.Load() }

// Dropped returns the number of words received for tags without a handler.
func (e *Endpoint) Dropped() uint64 { return e.dropped.Load() }

func (e *Endpoint) dispatch(ctx context.Context) error {
	ictx := WithInterrupt(ctx)
	for {
		for {
			p, ok := e.out.pop()
			if !ok {
				break
			}
			e.peer.receive(ictx, p)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.bell:
		}
	}
}

func (e *Endpoint) receive(ctx context.Context, p packet) {
	tag := p.word.Tag()
	h := e.Handler(tag)
	if h == nil {
		e.dropped.Add(1)
		debug.Warn("pxi: no handler", "endpoint", e.name, "tag", tag)
		return
	}
	bad := p.word.Err() || checksum(p.word) != p.sum
	h(ctx, tag, p.word.Data(), bad)
}
