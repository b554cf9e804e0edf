// Package lnkvram tracks the free regions of a linear address space in a
// linked list of blocks drawn from a fixed Pool. It never allocates after the
// pool was created, so every operation may fail once the pool is exhausted.
//
// A Manager is not safe for concurrent use. Callers sharing a Manager or a
// Pool must serialize access.
package lnkvram

import (
	"github.com/clktmr/twl/debug"

	"golang.org/x/exp/constraints"
)

// Region is an address range.
type Region struct {
	Addr, Size uint32
}

// End returns the first address after r.
func (r Region) End() uint32 { return r.Addr + r.Size }

// AlignUp rounds v up to a multiple of align, which must be a power of two.
func AlignUp[T constraints.Unsigned](v, align T) T {
	return (v + align - 1) &^ (align - 1)
}

// Manager is a first-fit allocator over a free list.
type Manager struct {
	pool  *Pool
	head  int32
	total uint32
}

// New returns a manager for [0, total). It resets pool, so all other managers
// using the same pool become invalid.
func New(total uint32, pool *Pool) *Manager {
	m := &Manager{}
	m.Initialize(total, pool)
	return m
}

// Initialize resets pool and m and registers [0, total) as free. It reports
// false if the pool has no blocks for the initial region.
func (m *Manager) Initialize(total uint32, pool *Pool) bool {
	pool.Reset()
	m.Init(pool)
	if total == 0 {
		return true
	}
	return m.AddNewFreeBlock(0, total)
}

// Init empties the free list of m without touching the pool. Use it together
// with AddNewFreeBlock to let several managers share one pool.
func (m *Manager) Init(pool *Pool) {
	m.pool = pool
	m.head = nilIndex
	m.total = 0
}

// AddNewFreeBlock registers [addr, addr+size) as free and counts it towards
// the managed size. The block is not merged with its neighbours.
func (m *Manager) AddNewFreeBlock(addr, size uint32) bool {
	debug.Assert(size > 0, "lnkvram: empty block")
	i, ok := m.pool.get()
	if !ok {
		return false
	}
	*m.node(i) = Block{Addr: addr, Size: size}
	m.insert(i)
	m.total += size
	return true
}

// Alloc returns the address of size free bytes, taken from the front of the
// first block large enough.
func (m *Manager) Alloc(size uint32) (uint32, bool) {
	return m.AllocAligned(size, 1)
}

// AllocAligned is like Alloc but the returned address is a multiple of align.
// An align of 0 or 1 means no alignment. The bytes skipped for alignment stay
// free in a block of their own, which fails the allocation if the pool is
// empty.
func (m *Manager) AllocAligned(size, align uint32) (uint32, bool) {
	debug.Assert(size > 0, "lnkvram: zero size allocation")
	debug.Assert(align&(align-1) == 0, "lnkvram: alignment not a power of two")
	if size == 0 {
		return 0, false
	}
	if align == 0 {
		align = 1
	}

	for i := m.head; i != nilIndex; i = m.node(i).next {
		b := m.node(i)
		addr := AlignUp(b.Addr, align)
		gap := addr - b.Addr
		if uint64(b.Size) < uint64(size)+uint64(gap) {
			continue
		}

		if gap > 0 {
			j, ok := m.pool.get()
			if !ok {
				return 0, false
			}
			*m.node(j) = Block{Addr: b.Addr, Size: gap}
			m.insert(j)
		}

		b.Addr += size + gap
		b.Size -= size + gap
		if b.Size == 0 {
			m.release(i)
		}
		return addr, true
	}
	return 0, false
}

// Free returns [addr, addr+size) to m, merging it with adjacent free blocks.
// If no block is left in the pool for the region, Free reports false and the
// region is lost.
func (m *Manager) Free(addr, size uint32) bool {
	debug.Assert(size > 0, "lnkvram: zero size free")
	if size == 0 {
		return false
	}

	r := Region{addr, size}
	m.merge(&r, nilIndex)

	i, ok := m.pool.get()
	if !ok {
		return false
	}
	*m.node(i) = Block{Addr: r.Addr, Size: r.Size}
	m.insert(i)
	return true
}

// MergeAllFreeBlocks merges all adjacent blocks of the free list.
func (m *Manager) MergeAllFreeBlocks() {
	for i := m.head; i != nilIndex; {
		b := m.node(i)
		r := Region{b.Addr, b.Size}
		if m.merge(&r, i) {
			b.Addr, b.Size = r.Addr, r.Size
			i = m.head
			continue
		}
		i = b.next
	}
}

// merge extends r by every free block adjacent to it, except skip, and
// releases the merged blocks.
func (m *Manager) merge(r *Region, skip int32) bool {
	merged := false
	for {
		i := m.adjacent(*r, skip)
		if i == nilIndex {
			return merged
		}
		b := m.node(i)
		if b.Addr < r.Addr {
			r.Addr = b.Addr
		}
		r.Size += b.Size
		m.release(i)
		merged = true
	}
}

func (m *Manager) adjacent(r Region, skip int32) int32 {
	for i := m.head; i != nilIndex; i = m.node(i).next {
		if i == skip {
			continue
		}
		b := m.node(i)
		if b.Addr == r.End() || b.end() == r.Addr {
			return i
		}
	}
	return nilIndex
}

func (m *Manager) node(i int32) *Block { return &m.pool.nodes[i] }

func (m *Manager) insert(i int32) {
	b := m.node(i)
	b.prev, b.next = nilIndex, m.head
	if m.head != nilIndex {
		m.node(m.head).prev = i
	}
	m.head = i
}

func (m *Manager) release(i int32) {
	b := m.node(i)
	if b.prev != nilIndex {
		m.node(b.prev).next = b.next
	} else {
		m.head = b.next
	}
	if b.next != nilIndex {
		m.node(b.next).prev = b.prev
	}
	m.pool.put(i)
}

// Total returns the number of bytes registered with m.
func (m *Manager) Total() uint32 { return m.total }

// Len returns the number of blocks in the free list.
func (m *Manager) Len() (n int) {
	for i := m.head; i != nilIndex; i = m.node(i).next {
		n++
	}
	return n
}

// FreeBytes returns the sum of all free block sizes.
func (m *Manager) FreeBytes() (n uint32) {
	for i := m.head; i != nilIndex; i = m.node(i).next {
		n += m.node(i).Size
	}
	return n
}

// Blocks returns the free blocks in list order.
func (m *Manager) Blocks() []Region {
	var blocks []Region
	m.DumpFunc(func(addr, size uint32) {
		blocks = append(blocks, Region{addr, size})
	})
	return blocks
}
