// Package texvram manages texture VRAM. Normal textures and 4x4 compressed
// textures are allocated from separate regions. The palette index table of
// the compressed textures is reserved at the start of slot 1.
package texvram

import (
	"fmt"

	"github.com/clktmr/twl/debug"
	"github.com/clktmr/twl/gfd"
	"github.com/clktmr/twl/gfd/lnkvram"

	"github.com/cockroachdb/errors"
)

const (
	SlotSize = 0x20000
	NumSlots = 4

	// MaxSize is the exclusive upper bound for the size of a texture.
	MaxSize = 0x40000
)

func slotBase(n int) uint32 { return uint32(n) * SlotSize }

// Key identifies an allocated texture region.
type Key uint32

// ErrorKey is returned by failed allocations.
const ErrorKey Key = 0

const flag4x4 = 1 << 31

// MakeKey encodes addr and size, which must be multiples of gfd.KeyUnit.
func MakeKey(addr, size uint32, is4x4 bool) Key {
	debug.Assert(addr%gfd.KeyUnit == 0 && size%gfd.KeyUnit == 0, "texvram: unaligned key")
	k := Key(addr>>3&0xffff | (size>>3&0x7fff)<<16)
	if is4x4 {
		k |= flag4x4
	}
	return k
}

func (k Key) Addr() uint32 { return uint32(k&0xffff) << 3 }
func (k Key) Size() uint32 { return uint32(k>>16&0x7fff) << 3 }
func (k Key) Is4x4() bool  { return k&flag4x4 != 0 }

func (k Key) String() string {
	if k.Is4x4() {
		return fmt.Sprintf("4x4:0x%05x+0x%x", k.Addr(), k.Size())
	}
	return fmt.Sprintf("0x%05x+0x%x", k.Addr(), k.Size())
}

// Manager allocates textures. It is not safe for concurrent use.
type Manager struct {
	size    uint32
	size4x4 uint32

	pool *lnkvram.Pool
	nrm  lnkvram.Manager
	c4x4 lnkvram.Manager
}

// New returns a manager for size bytes of VRAM starting at slot 0, of which
// size4x4 bytes are used for compressed textures. Both regions share a pool
// of numBlocks blocks.
func New(size, size4x4 uint32, numBlocks int) (*Manager, error) {
	if !validSizes(size, size4x4) {
		return nil, errors.Newf("texvram: can't manage 0x%x bytes with 0x%x for 4x4 textures", size, size4x4)
	}
	if numBlocks <= 0 {
		return nil, errors.Newf("texvram: need at least one block, got %d", numBlocks)
	}
	m := &Manager{
		size:    size,
		size4x4: size4x4,
		pool:    lnkvram.NewPool(numBlocks),
	}
	if err := m.Reset(); err != nil {
		return nil, err
	}
	return m, nil
}

func validSizes(size, size4x4 uint32) bool {
	switch {
	case size == 0 || size > NumSlots*SlotSize || size4x4 > 2*SlotSize:
		return false
	case size4x4 == 0:
		return true
	case size4x4 <= SlotSize:
		return size >= slotBase(1)+size4x4/2
	default:
		return size >= size4x4+SlotSize
	}
}

type slot struct {
	free, nrm, c4x4 uint32
}

// Reset frees all textures.
func (m *Manager) Reset() error {
	var slots [NumSlots]slot
	for i := range slots {
		slots[i].free = SlotSize
	}
	indexTable := m.size4x4 / 2
	restNrm := m.size - m.size4x4 - indexTable
	rest4x4 := m.size4x4

	// Compressed textures need their index table in slot 1, so they can
	// only go to slots 0 and 2.
	for _, i := range []int{0, 2} {
		n := min(slots[i].free, rest4x4)
		slots[i].c4x4 += n
		slots[i].free -= n
		rest4x4 -= n
	}
	slots[1].free -= indexTable
	for i := range slots {
		n := min(slots[i].free, restNrm)
		slots[i].nrm += n
		slots[i].free -= n
		restNrm -= n
	}

	m.pool.Reset()
	m.nrm.Init(m.pool)
	m.c4x4.Init(m.pool)
	regions := []struct {
		mgr        *lnkvram.Manager
		addr, size uint32
	}{
		{&m.c4x4, slotBase(0), slots[0].c4x4},
		{&m.nrm, slotBase(0) + slots[0].c4x4, slots[0].nrm},
		{&m.c4x4, slotBase(2), slots[2].c4x4},
		{&m.nrm, slotBase(2) + slots[2].c4x4, slots[2].nrm},
		{&m.nrm, slotBase(3), slots[3].nrm},
		{&m.nrm, slotBase(1) + indexTable, slots[1].nrm},
	}
	for _, r := range regions {
		if r.size > 0 && !r.mgr.AddNewFreeBlock(r.addr, r.size) {
			return errors.Newf("texvram: %d blocks not enough to reset", m.pool.Len())
		}
	}
	m.nrm.MergeAllFreeBlocks()
	m.c4x4.MergeAllFreeBlocks()
	return nil
}

// Alloc allocates a texture of size bytes, rounded up to gfd.KeyUnit.
func (m *Manager) Alloc(size uint32, is4x4 bool) (Key, error) {
	size = gfd.RoundUp(size)
	if size >= MaxSize {
		debug.Warn("texvram: allocation too big", "size", size)
		return ErrorKey, errors.Wrapf(gfd.ErrTooLarge, "texture of 0x%x bytes", size)
	}

	mgr := &m.nrm
	if is4x4 {
		mgr = &m.c4x4
	}
	addr, ok := mgr.Alloc(size)
	if !ok {
		debug.Warn("texvram: allocation failed", "size", size, "4x4", is4x4)
		return ErrorKey, errors.Wrapf(gfd.ErrAllocFailed, "texture of 0x%x bytes", size)
	}
	return MakeKey(addr, size, is4x4), nil
}

// Free releases the texture identified by key.
func (m *Manager) Free(key Key) error {
	if key.Size() == 0 {
		return errors.Wrapf(gfd.ErrInvalidSize, "key %v", key)
	}
	mgr := &m.nrm
	if key.Is4x4() {
		mgr = &m.c4x4
	}
	if !mgr.Free(key.Addr(), key.Size()) {
		return errors.Wrapf(gfd.ErrFreeFailed, "key %v", key)
	}
	return nil
}

// Size returns the number of bytes managed, including the index table.
func (m *Manager) Size() uint32 { return m.size }

// Size4x4 returns the number of bytes for compressed textures.
func (m *Manager) Size4x4() uint32 { return m.size4x4 }

// FreeBlocks returns the free regions for normal or compressed textures.
func (m *Manager) FreeBlocks(is4x4 bool) []lnkvram.Region {
	if is4x4 {
		return m.c4x4.Blocks()
	}
	return m.nrm.Blocks()
}

// Validate checks the consistency of both free lists.
func (m *Manager) Validate() error {
	if err := m.nrm.Validate(); err != nil {
		return errors.Wrap(err, "normal textures")
	}
	if err := m.c4x4.Validate(); err != nil {
		return errors.Wrap(err, "4x4 textures")
	}
	return nil
}
