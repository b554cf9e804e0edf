package pxi

import (
	"errors"
	"sync"
)

var ErrOutOfMemory = errors.New("pxi: out of shared memory")

// Memory is main memory visible to both processors, addressed by 32-bit
// addresses starting at a base. The peer accesses it by DMA, so all access
// goes through copies.
type Memory struct {
	mu   sync.Mutex
	base uint32
	next uint32
	buf  []byte
}

func NewMemory(base uint32, size int) *Memory {
	return &Memory{base: base, next: base, buf: make([]byte, size)}
}

func (m *Memory) Base() uint32 { return m.base }
func (m *Memory) Size() int    { return len(m.buf) }

// Alloc reserves size bytes aligned to align and returns their address.
// Memory is never returned.
func (m *Memory) Alloc(size int, align uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if align == 0 {
		align = 1
	}
	addr := (m.next + align - 1) &^ (align - 1)
	if size < 0 || uint64(addr-m.base)+uint64(size) > uint64(len(m.buf)) {
		return 0, ErrOutOfMemory
	}
	m.next = addr + uint32(size)
	return addr, nil
}

// Contains reports whether [addr, addr+n) lies inside m.
func (m *Memory) Contains(addr uint32, n int) bool {
	return addr >= m.base && n >= 0 && uint64(addr-m.base)+uint64(n) <= uint64(len(m.buf))
}

func (m *Memory) Read(addr uint32, p []byte) {
	if !m.Contains(addr, len(p)) {
		panic("pxi: memory read out of range")
	}
	m.mu.Lock()
	copy(p, m.buf[addr-m.base:])
	m.mu.Unlock()
}

func (m *Memory) Write(addr uint32, p []byte) {
	if !m.Contains(addr, len(p)) {
		panic("pxi: memory write out of range")
	}
	m.mu.Lock()
	copy(m.buf[addr-m.base:], p)
	m.mu.Unlock()
}
