// Package frmplttvram manages palette VRAM as a stack growing from both ends.
// Palettes are only freed as a whole, by Reset or by restoring a State taken
// earlier.
package frmplttvram

import (
	"fmt"
	"io"

	"github.com/clktmr/twl/debug"
	"github.com/clktmr/twl/gfd"
	"github.com/clktmr/twl/gfd/plttvram"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// End selects the end of the free space an allocation is taken from.
type End uint8

const (
	FromLow End = iota
	FromHigh
)

// State is a snapshot of both ends of the free space.
type State struct {
	Lo, Hi uint32
}

// Manager allocates palettes. It is not safe for concurrent use.
type Manager struct {
	size   uint32
	lo, hi uint32
}

// New returns a manager for size bytes of palette VRAM.
func New(size uint32) (*Manager, error) {
	if size == 0 || size > plttvram.MaxManaged {
		return nil, errors.Newf("frmplttvram: can't manage 0x%x bytes", size)
	}
	m := &Manager{size: size}
	m.Reset()
	return m, nil
}

// Reset frees all palettes.
func (m *Manager) Reset() { m.lo, m.hi = 0, m.size }

func alignMask(is4Color bool) uint32 {
	if is4Color {
		return 0x07
	}
	return 0x0f
}

// Alloc allocates a palette of size bytes, rounded up to gfd.KeyUnit, from
// the given end. 4-color palettes are aligned to 8 bytes and must end below
// plttvram.Max4ColorAddr, all others are aligned to 16 bytes. The padding
// needed for alignment is lost until the space is freed.
func (m *Manager) Alloc(size uint32, is4Color bool, from End) (plttvram.Key, error) {
	size = gfd.RoundUp(size)
	if size >= plttvram.MaxSize {
		debug.Warn("frmplttvram: allocation too big", "size", size)
		return plttvram.ErrorKey, errors.Wrapf(gfd.ErrTooLarge, "palette of 0x%x bytes", size)
	}

	mask := alignMask(is4Color)
	var addr, end uint32
	switch from {
	case FromLow:
		pad := -m.lo & mask
		if m.hi-m.lo < size+pad {
			return plttvram.ErrorKey, m.failed(size, is4Color)
		}
		addr = m.lo + pad
		end = addr + size
	case FromHigh:
		if m.hi < size || m.hi-m.lo < size+(m.hi-size)&mask {
			return plttvram.ErrorKey, m.failed(size, is4Color)
		}
		addr = (m.hi - size) &^ mask
		end = m.hi
	default:
		return plttvram.ErrorKey, errors.Newf("frmplttvram: unknown end %d", from)
	}
	if is4Color && end > plttvram.Max4ColorAddr {
		debug.Warn("frmplttvram: 4-color palette out of range", "addr", addr, "size", size)
		return plttvram.ErrorKey, errors.Wrapf(gfd.ErrOutOfRange, "4-color palette at 0x%x", addr)
	}

	if from == FromLow {
		m.lo = end
	} else {
		m.hi = addr
	}
	return plttvram.MakeKey(addr, size), nil
}

func (m *Manager) failed(size uint32, is4Color bool) error {
	debug.Warn("frmplttvram: allocation failed", "size", size, "4color", is4Color)
	return errors.Wrapf(gfd.ErrAllocFailed, "palette of 0x%x bytes", size)
}

// Free does nothing. Palettes are released by Reset or SetState.
func (m *Manager) Free(key plttvram.Key) error {
	if key.Size() == 0 {
		return errors.Wrapf(gfd.ErrInvalidSize, "key %v", key)
	}
	return nil
}

// State returns the current allocation state.
func (m *Manager) State() State { return State{m.lo, m.hi} }

// SetState frees everything allocated after s was taken.
func (m *Manager) SetState(s State) error {
	if s.Lo > s.Hi || s.Hi > m.size {
		return errors.Newf("frmplttvram: invalid state 0x%x-0x%x", s.Lo, s.Hi)
	}
	m.lo, m.hi = s.Lo, s.Hi
	return nil
}

// Size returns the number of bytes managed.
func (m *Manager) Size() uint32 { return m.size }

// FreeBytes returns the unallocated bytes between both ends.
func (m *Manager) FreeBytes() uint32 { return m.hi - m.lo }

// Dump writes the free space and the usage to w.
func (m *Manager) Dump(w io.Writer) {
	free := m.FreeBytes()
	used := m.size - free
	fmt.Fprint(w, "=== FrmPlttVramManager Dump ===========\n")
	fmt.Fprint(w, "head-addr   : tail-addr   : free-size \n")
	fmt.Fprintf(w, "0x%08x  : 0x%08x  : 0x%08x  \n", m.lo, m.hi, free)
	fmt.Fprintf(w, "    %08d / %08d bytes (%6.2f%%) used \n",
		used, m.size, float64(used)/float64(m.size)*100)
	fmt.Fprint(w, "=======================================\n")
}

// WriteJSON writes the state of the manager as a JSON object.
func (m *Manager) WriteJSON(w *jwriter.Writer) {
	obj := w.Object()
	obj.Name("Size").Int(int(m.size))
	obj.Name("Lo").Int(int(m.lo))
	obj.Name("Hi").Int(int(m.hi))
	obj.Name("FreeBytes").Int(int(m.FreeBytes()))
	obj.End()
}
