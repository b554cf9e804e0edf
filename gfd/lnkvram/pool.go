package lnkvram

import (
	"unsafe"

	"github.com/clktmr/twl/debug"
)

const nilIndex = -1

// Block describes a free region. Blocks are linked by index into the nodes of
// a Pool.
type Block struct {
	Addr, Size uint32
	prev, next int32
}

func (b *Block) end() uint32 { return b.Addr + b.Size }

// Pool holds a fixed number of blocks. Free lists take blocks from the pool
// and return them when a region is consumed or merged. Several managers may
// share one pool.
type Pool struct {
	nodes  []Block
	unused []int32
}

// NewPool returns a pool of n blocks.
func NewPool(n int) *Pool {
	p := &Pool{
		nodes:  make([]Block, n),
		unused: make([]int32, 0, n),
	}
	p.Reset()
	return p
}

// WorkSize returns the bytes needed to manage n blocks.
func WorkSize(n int) int { return n * int(unsafe.Sizeof(Block{})) }

// PoolFromWorkSize returns a pool with as many blocks as fit in size bytes.
func PoolFromWorkSize(size int) *Pool {
	return NewPool(size / int(unsafe.Sizeof(Block{})))
}

// Reset returns all blocks to the pool. Managers using the pool must be
// reinitialized.
func (p *Pool) Reset() {
	p.unused = p.unused[:0]
	for i := len(p.nodes) - 1; i >= 0; i-- {
		p.nodes[i] = Block{prev: nilIndex, next: nilIndex}
		p.unused = append(p.unused, int32(i))
	}
}

// Len returns the number of blocks in the pool.
func (p *Pool) Len() int { return len(p.nodes) }

// Free returns the number of blocks not used by any free list.
func (p *Pool) Free() int { return len(p.unused) }

func (p *Pool) get() (int32, bool) {
	n := len(p.unused)
	if n == 0 {
		return nilIndex, false
	}
	i := p.unused[n-1]
	p.unused = p.unused[:n-1]
	return i, true
}

func (p *Pool) put(i int32) {
	debug.Assert(i >= 0 && int(i) < len(p.nodes), "lnkvram: block index out of range")
	p.nodes[i] = Block{prev: nilIndex, next: nilIndex}
	p.unused = append(p.unused, i)
}
