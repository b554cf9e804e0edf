// Package frmtexvram manages texture VRAM as stacks. Each region hands out
// space from one end and is only freed as a whole, by Reset or by restoring a
// State taken earlier.
//
// Slot 1 is split in two halves which hold the palette index tables of 4x4
// compressed textures in slot 0 and slot 2. Normal textures are taken from
// the tail of a region, compressed textures and their index tables from the
// head.
package frmtexvram

import (
	"github.com/clktmr/twl/debug"
	"github.com/clktmr/twl/gfd"
	"github.com/clktmr/twl/gfd/texvram"

	"github.com/cockroachdb/errors"
)

const numRegions = 5

type region struct {
	head, tail uint32
	active     bool
}

// layout holds base address and size of each region. Heads and tails are
// relative to the base.
var layout = [numRegions]struct {
	base, size uint32
}{
	{0, texvram.SlotSize},
	{texvram.SlotSize, texvram.SlotSize / 2},
	{texvram.SlotSize + texvram.SlotSize/2, texvram.SlotSize / 2},
	{2 * texvram.SlotSize, texvram.SlotSize},
	{3 * texvram.SlotSize, texvram.SlotSize},
}

// Compressed textures live in slot 0 and 2, their index table in the
// matching half of slot 1.
var (
	search4x4  = [...]int{0, 3}
	indexTable = [numRegions]int{0: 1, 3: 2}
)

func (r *region) capacity() uint32 { return r.tail - r.head }

// State is a snapshot of the head and tail of every region.
type State [2 * numRegions]uint32

// Manager allocates textures. It is not safe for concurrent use.
type Manager struct {
	slots   int
	regions [numRegions]region
	search  [numRegions]int
}

// New returns a manager for the first slots texture slots.
func New(slots int) (*Manager, error) {
	if slots <= 0 || slots > texvram.NumSlots {
		return nil, errors.Newf("frmtexvram: can't manage %d slots", slots)
	}
	m := &Manager{slots: slots}
	// Normal textures fill the slots not usable for compressed textures
	// first.
	if slots <= 2 {
		m.search = [numRegions]int{4, 3, 2, 0, 1}
	} else {
		m.search = [numRegions]int{4, 3, 0, 2, 1}
	}
	m.Reset()
	return m, nil
}

// Reset frees all textures.
func (m *Manager) Reset() {
	active := m.slots
	if active > 1 {
		active++ // slot 1 counts twice
	}
	for i := range m.regions {
		m.regions[i] = region{tail: layout[i].size, active: i < active}
	}
}

// Alloc allocates a texture of size bytes, rounded up to gfd.KeyUnit. A
// compressed texture also takes half its size from the index table.
func (m *Manager) Alloc(size uint32, is4x4 bool) (texvram.Key, error) {
	size = gfd.RoundUp(size)
	if size >= texvram.MaxSize {
		debug.Warn("frmtexvram: allocation too big", "size", size)
		return texvram.ErrorKey, errors.Wrapf(gfd.ErrTooLarge, "texture of 0x%x bytes", size)
	}

	var (
		addr uint32
		ok   bool
	)
	if is4x4 {
		addr, ok = m.alloc4x4(size)
	} else {
		addr, ok = m.allocNormal(size)
	}
	if !ok {
		debug.Warn("frmtexvram: allocation failed", "size", size, "4x4", is4x4)
		return texvram.ErrorKey, errors.Wrapf(gfd.ErrAllocFailed, "texture of 0x%x bytes", size)
	}
	return texvram.MakeKey(addr, size, is4x4), nil
}

func (m *Manager) alloc4x4(size uint32) (uint32, bool) {
	for _, i := range search4x4 {
		r, idx := &m.regions[i], &m.regions[indexTable[i]]
		if !r.active || r.capacity() < size || !idx.active || idx.capacity() < size/2 {
			continue
		}
		addr := r.head
		r.head += size
		idx.head += size / 2
		return layout[i].base + addr, true
	}
	return 0, false
}

func (m *Manager) allocNormal(size uint32) (uint32, bool) {
	for _, i := range m.search {
		r := &m.regions[i]
		if !r.active || r.capacity() < size {
			continue
		}
		r.tail -= size
		return layout[i].base + r.tail, true
	}
	return 0, false
}

// Free does nothing. Textures are released by Reset or SetState.
func (m *Manager) Free(key texvram.Key) error {
	if key.Size() == 0 {
		return errors.Wrapf(gfd.ErrInvalidSize, "key %v", key)
	}
	return nil
}

// State returns the current allocation state.
func (m *Manager) State() State {
	var s State
	for i, r := range m.regions {
		s[2*i], s[2*i+1] = r.head, r.tail
	}
	return s
}

// SetState frees everything allocated after s was taken.
func (m *Manager) SetState(s State) error {
	for i := range m.regions {
		if head, tail := s[2*i], s[2*i+1]; head > tail || tail > layout[i].size {
			return errors.Newf("frmtexvram: region %d: invalid state 0x%x-0x%x", i, head, tail)
		}
	}
	for i := range m.regions {
		m.regions[i].head, m.regions[i].tail = s[2*i], s[2*i+1]
	}
	return nil
}

// Slots returns the number of slots managed.
func (m *Manager) Slots() int { return m.slots }

// FreeBytes returns the unallocated bytes of all active regions.
func (m *Manager) FreeBytes() uint32 {
	var free uint32
	for _, r := range m.regions {
		if r.active {
			free += r.capacity()
		}
	}
	return free
}
