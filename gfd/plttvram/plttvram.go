// Package plttvram manages palette VRAM.
package plttvram

import (
	"fmt"
	"io"

	"github.com/clktmr/twl/debug"
	"github.com/clktmr/twl/gfd"
	"github.com/clktmr/twl/gfd/lnkvram"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

const (
	// MaxManaged is the largest palette VRAM supported.
	MaxManaged = 0x18000

	// MaxSize is the exclusive upper bound for the size of a palette.
	MaxSize = 0x80000

	// Max4ColorAddr is the end of the region addressable by 4-color
	// palettes.
	Max4ColorAddr = 0x10000
)

// Key identifies an allocated palette region.
type Key uint32

// ErrorKey is returned by failed allocations.
const ErrorKey Key = 0

// MakeKey encodes addr and size, which must be multiples of gfd.KeyUnit.
func MakeKey(addr, size uint32) Key {
	debug.Assert(addr%gfd.KeyUnit == 0 && size%gfd.KeyUnit == 0, "plttvram: unaligned key")
	return Key(addr>>3&0xffff | (size>>3&0xffff)<<16)
}

func (k Key) Addr() uint32 { return uint32(k&0xffff) << 3 }
func (k Key) Size() uint32 { return uint32(k>>16) << 3 }

func (k Key) String() string { return fmt.Sprintf("0x%05x+0x%x", k.Addr(), k.Size()) }

// Manager allocates palettes. It is not safe for concurrent use.
type Manager struct {
	size uint32
	pool *lnkvram.Pool
	mgr  lnkvram.Manager
}

// New returns a manager for size bytes of palette VRAM using a pool of
// numBlocks blocks.
func New(size uint32, numBlocks int) (*Manager, error) {
	if size == 0 || size > MaxManaged {
		return nil, errors.Newf("plttvram: can't manage 0x%x bytes", size)
	}
	if numBlocks <= 0 {
		return nil, errors.Newf("plttvram: need at least one block, got %d", numBlocks)
	}
	m := &Manager{size: size, pool: lnkvram.NewPool(numBlocks)}
	m.Reset()
	return m, nil
}

// Reset frees all palettes.
func (m *Manager) Reset() {
	ok := m.mgr.Initialize(m.size, m.pool)
	debug.Assert(ok, "plttvram: reset failed")
}

// Alloc allocates a palette of size bytes, rounded up to gfd.KeyUnit.
// 4-color palettes are aligned to 8 bytes and must end below Max4ColorAddr,
// all others are aligned to 16 bytes.
func (m *Manager) Alloc(size uint32, is4Color bool) (Key, error) {
	size = gfd.RoundUp(size)
	if size >= MaxSize {
		debug.Warn("plttvram: allocation too big", "size", size)
		return ErrorKey, errors.Wrapf(gfd.ErrTooLarge, "palette of 0x%x bytes", size)
	}

	align := uint32(0x10)
	if is4Color {
		align = 0x08
	}
	addr, ok := m.mgr.AllocAligned(size, align)
	if !ok {
		debug.Warn("plttvram: allocation failed", "size", size, "4color", is4Color)
		return ErrorKey, errors.Wrapf(gfd.ErrAllocFailed, "palette of 0x%x bytes", size)
	}
	if is4Color && addr+size > Max4ColorAddr {
		if !m.mgr.Free(addr, size) {
			debug.Warn("plttvram: lost region", "addr", addr, "size", size)
		}
		return ErrorKey, errors.Wrapf(gfd.ErrOutOfRange, "4-color palette at 0x%x", addr)
	}
	return MakeKey(addr, size), nil
}

// Free releases the palette identified by key.
func (m *Manager) Free(key Key) error {
	if key.Size() == 0 {
		return errors.Wrapf(gfd.ErrInvalidSize, "key %v", key)
	}
	if !m.mgr.Free(key.Addr(), key.Size()) {
		return errors.Wrapf(gfd.ErrFreeFailed, "key %v", key)
	}
	return nil
}

// Size returns the number of bytes managed.
func (m *Manager) Size() uint32 { return m.size }

// FreeBlocks returns the free regions.
func (m *Manager) FreeBlocks() []lnkvram.Region { return m.mgr.Blocks() }

// Validate checks the consistency of the free list.
func (m *Manager) Validate() error { return m.mgr.Validate() }

// Dump writes the free blocks to w.
func (m *Manager) Dump(w io.Writer) {
	fmt.Fprint(w, "=== LnkPlttVramManager Dump ===========\n")
	fmt.Fprint(w, "   address:        size    \n")
	fmt.Fprint(w, "=======================================\n")
	fmt.Fprint(w, "------ Free Blocks                -----\n")
	m.mgr.Dump(w, m.size)
	fmt.Fprint(w, "=======================================\n")
}

// DumpFunc calls fn for each free block.
func (m *Manager) DumpFunc(fn func(addr, size uint32)) { m.mgr.DumpFunc(fn) }

// WriteJSON writes the state of the manager as a JSON object.
func (m *Manager) WriteJSON(w *jwriter.Writer) {
	obj := w.Object()
	obj.Name("Size").Int(int(m.size))
	m.mgr.WriteJSON(obj.Name("Palettes"))
	obj.End()
}
