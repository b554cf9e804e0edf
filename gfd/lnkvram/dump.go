package lnkvram

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// DumpFunc calls fn for each free block in list order.
func (m *Manager) DumpFunc(fn func(addr, size uint32)) {
	for i := m.head; i != nilIndex; i = m.node(i).next {
		if b := m.node(i); b.Size != 0 {
			fn(b.Addr, b.Size)
		}
	}
}

// Dump writes one line per free block to w, followed by the usage relative to
// reserved bytes.
func (m *Manager) Dump(w io.Writer, reserved uint32) {
	var free uint32
	m.DumpFunc(func(addr, size uint32) {
		fmt.Fprintf(w, "0x%08x:  0x%08x    \n", addr, size)
		free += size
	})
	if free == 0 {
		fmt.Fprintf(w, "0x--------:  0x--------    \n")
	}
	if reserved == 0 || free > reserved {
		return
	}
	used := reserved - free
	fmt.Fprintf(w, "    %08d / %08d bytes (%6.2f%%) used \n",
		used, reserved, float64(used)/float64(reserved)*100)
}

// WriteJSON writes the managed size, the free size and the free blocks as a
// JSON object.
func (m *Manager) WriteJSON(w *jwriter.Writer) {
	obj := w.Object()
	obj.Name("TotalBytes").Int(int(m.total))
	obj.Name("FreeBytes").Int(int(m.FreeBytes()))
	blocks := obj.Name("FreeBlocks").Array()
	m.DumpFunc(func(addr, size uint32) {
		b := blocks.Object()
		b.Name("Addr").Int(int(addr))
		b.Name("Size").Int(int(size))
		b.End()
	})
	blocks.End()
	obj.End()
}

// Validate checks the consistency of the free list: links are symmetric, no
// block is empty, blocks don't overlap and their sizes don't exceed the
// managed size.
func (m *Manager) Validate() error {
	var (
		blocks []Region
		free   uint64
		prev   int32 = nilIndex
	)
	for i := m.head; i != nilIndex; i = m.node(i).next {
		if len(blocks) > m.pool.Len() {
			return errors.New("free list contains a cycle")
		}
		b := m.node(i)
		if b.prev != prev {
			return errors.Newf("block %d: prev link %d, want %d", i, b.prev, prev)
		}
		if b.Size == 0 {
			return errors.Newf("block %d at 0x%08x is empty", i, b.Addr)
		}
		blocks = append(blocks, Region{b.Addr, b.Size})
		free += uint64(b.Size)
		prev = i
	}
	if len(blocks)+m.pool.Free() > m.pool.Len() {
		return errors.Newf("%d blocks listed but only %d taken from pool",
			len(blocks), m.pool.Len()-m.pool.Free())
	}
	if free > uint64(m.total) {
		return errors.Newf("%d bytes free exceeds managed size %d", free, m.total)
	}

	slices.SortFunc(blocks, func(a, b Region) int { return cmp.Compare(a.Addr, b.Addr) })
	for k := 1; k < len(blocks); k++ {
		if blocks[k-1].End() > blocks[k].Addr {
			return errors.Newf("block 0x%08x+0x%x overlaps 0x%08x",
				blocks[k-1].Addr, blocks[k-1].Size, blocks[k].Addr)
		}
	}
	return nil
}

// Coalesced reports whether no two free blocks are adjacent.
func (m *Manager) Coalesced() bool {
	blocks := m.Blocks()
	slices.SortFunc(blocks, func(a, b Region) int { return cmp.Compare(a.Addr, b.Addr) })
	for k := 1; k < len(blocks); k++ {
		if blocks[k-1].End() == blocks[k].Addr {
			return false
		}
	}
	return true
}
