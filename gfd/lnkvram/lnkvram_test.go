package lnkvram_test

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/clktmr/twl/gfd/lnkvram"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type region = lnkvram.Region

func TestAllocFreeMerge(t *testing.T) {
	m := lnkvram.New(0x1000, lnkvram.NewPool(8))

	a, ok := m.AllocAligned(0x100, 1)
	require.True(t, ok)
	assert.Equal(t, uint32(0), a)
	b, ok := m.Alloc(0x100)
	require.True(t, ok)
	assert.Equal(t, uint32(0x100), b)
	assert.Equal(t, []region{{0x200, 0xe00}}, m.Blocks())

	require.True(t, m.Free(0, 0x100))
	require.True(t, m.Free(0x100, 0x100))
	m.MergeAllFreeBlocks()
	assert.Equal(t, []region{{0, 0x1000}}, m.Blocks())
	assert.NoError(t, m.Validate())
}

func TestMergeAllFreeBlocks(t *testing.T) {
	tests := map[string][]region{
		"ascending":  {{0, 0x100}, {0x100, 0x100}, {0x200, 0x100}, {0x300, 0x100}},
		"descending": {{0x300, 0x100}, {0x200, 0x100}, {0x100, 0x100}, {0, 0x100}},
		"shuffled":   {{0x100, 0x100}, {0x300, 0x100}, {0, 0x100}, {0x200, 0x100}},
	}
	for name, blocks := range tests {
		t.Run(name, func(t *testing.T) {
			m := &lnkvram.Manager{}
			m.Init(lnkvram.NewPool(len(blocks)))
			for _, b := range blocks {
				require.True(t, m.AddNewFreeBlock(b.Addr, b.Size))
			}
			assert.False(t, m.Coalesced())

			m.MergeAllFreeBlocks()
			assert.Equal(t, []region{{0, 0x400}}, m.Blocks())
			m.MergeAllFreeBlocks()
			assert.Equal(t, []region{{0, 0x400}}, m.Blocks())
			assert.NoError(t, m.Validate())
		})
	}
}

func TestAllocAlignedGap(t *testing.T) {
	m := &lnkvram.Manager{}
	m.Init(lnkvram.NewPool(4))
	require.True(t, m.AddNewFreeBlock(4, 96))

	addr, ok := m.AllocAligned(32, 16)
	require.True(t, ok)
	assert.Equal(t, uint32(16), addr)
	assert.Equal(t, []region{{4, 12}, {48, 52}}, m.Blocks())
	assert.NoError(t, m.Validate())
}

func TestAllocConsumesBlock(t *testing.T) {
	pool := lnkvram.NewPool(2)
	m := lnkvram.New(0x100, pool)
	require.Equal(t, 1, pool.Free())

	addr, ok := m.Alloc(0x100)
	require.True(t, ok)
	assert.Equal(t, uint32(0), addr)
	assert.Empty(t, m.Blocks())
	assert.Equal(t, 2, pool.Free())

	_, ok = m.Alloc(8)
	assert.False(t, ok)
}

func TestPoolExhausted(t *testing.T) {
	t.Run("alloc", func(t *testing.T) {
		m := &lnkvram.Manager{}
		pool := lnkvram.NewPool(1)
		m.Init(pool)
		require.True(t, m.AddNewFreeBlock(4, 96))
		require.Zero(t, pool.Free())

		_, ok := m.AllocAligned(32, 16)
		assert.False(t, ok)
		assert.Equal(t, []region{{4, 96}}, m.Blocks())

		addr, ok := m.Alloc(12)
		assert.True(t, ok)
		assert.Equal(t, uint32(4), addr)
	})
	t.Run("free", func(t *testing.T) {
		m := lnkvram.New(0x1000, lnkvram.NewPool(1))
		_, ok := m.Alloc(0x100)
		require.True(t, ok)
		_, ok = m.Alloc(0x100)
		require.True(t, ok)

		assert.False(t, m.Free(0, 0x100))
		assert.Equal(t, []region{{0x200, 0xe00}}, m.Blocks())

		assert.True(t, m.Free(0x100, 0x100))
		assert.Equal(t, []region{{0x100, 0xf00}}, m.Blocks())
	})
}

func TestConservation(t *testing.T) {
	const total = 0x10000
	rnd := rand.New(rand.NewPCG(1, 2))
	aligns := []uint32{0, 1, 8, 16, 0x100}

	m := lnkvram.New(total, lnkvram.NewPool(256))
	var live []region
	allocated := func() (n uint32) {
		for _, r := range live {
			n += r.Size
		}
		return n
	}

	for i := range 2000 {
		if len(live) < 64 && rnd.IntN(3) != 0 {
			size := uint32(rnd.IntN(0x200) + 1)
			addr, ok := m.AllocAligned(size, aligns[rnd.IntN(len(aligns))])
			if ok {
				live = append(live, region{addr, size})
			}
		} else if len(live) > 0 {
			k := rnd.IntN(len(live))
			r := live[k]
			live = append(live[:k], live[k+1:]...)
			require.True(t, m.Free(r.Addr, r.Size), "op %d", i)
		}

		require.NoError(t, m.Validate(), "op %d", i)
		require.True(t, m.Coalesced(), "op %d", i)
		require.Equal(t, uint32(total), m.FreeBytes()+allocated(), "op %d", i)
	}

	for _, r := range live {
		require.True(t, m.Free(r.Addr, r.Size))
	}
	assert.Equal(t, []region{{0, total}}, m.Blocks())
}

func TestDump(t *testing.T) {
	m := lnkvram.New(0x1000, lnkvram.NewPool(4))
	_, ok := m.Alloc(0x100)
	require.True(t, ok)

	var buf bytes.Buffer
	m.Dump(&buf, 0x1000)
	assert.Equal(t, "0x00000100:  0x00000f00    \n"+
		"    00000256 / 00004096 bytes (  6.25%) used \n", buf.String())

	_, ok = m.Alloc(0xf00)
	require.True(t, ok)
	buf.Reset()
	m.Dump(&buf, 0x1000)
	assert.Equal(t, "0x--------:  0x--------    \n"+
		"    00004096 / 00004096 bytes (100.00%) used \n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	m := lnkvram.New(0x1000, lnkvram.NewPool(4))
	_, ok := m.Alloc(0x100)
	require.True(t, ok)

	w := jwriter.NewWriter()
	m.WriteJSON(&w)
	require.NoError(t, w.Error())
	assert.JSONEq(t, `{"TotalBytes":4096,"FreeBytes":3840,"FreeBlocks":[{"Addr":256,"Size":3840}]}`,
		string(w.Bytes()))
}

func TestWorkSize(t *testing.T) {
	assert.Equal(t, 16*10, lnkvram.WorkSize(10))
	assert.Equal(t, 10, lnkvram.PoolFromWorkSize(16*10+8).Len())
}
