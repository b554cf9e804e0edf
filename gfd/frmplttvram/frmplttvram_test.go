package frmplttvram_test

import (
	"bytes"
	"testing"

	"github.com/clktmr/twl/gfd"
	"github.com/clktmr/twl/gfd/frmplttvram"
	"github.com/clktmr/twl/gfd/plttvram"
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := map[string]struct {
		size  uint32
		valid bool
	}{
		"max":       {plttvram.MaxManaged, true},
		"small":     {0x200, true},
		"empty":     {0, false},
		"too large": {plttvram.MaxManaged + 8, false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			m, err := frmplttvram.New(tc.size)
			if !tc.valid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.size, m.FreeBytes())
			assert.Equal(t, frmplttvram.State{Lo: 0, Hi: tc.size}, m.State())
		})
	}
}

func TestAlloc(t *testing.T) {
	type alloc struct {
		size     uint32
		is4Color bool
		addr     uint32
	}
	tests := map[string]struct {
		from   frmplttvram.End
		allocs []alloc
		state  frmplttvram.State
	}{
		"from low": {
			from: frmplttvram.FromLow,
			allocs: []alloc{
				{8, true, 0x00},
				{0x20, false, 0x10},
				{3, true, 0x30},
				{0x10, false, 0x40},
			},
			state: frmplttvram.State{Lo: 0x50, Hi: 0x1000},
		},
		"from high": {
			from: frmplttvram.FromHigh,
			allocs: []alloc{
				{0x20, false, 0xfe0},
				{8, true, 0xfd8},
				{0x10, false, 0xfc0},
				{5, true, 0xfb8},
			},
			state: frmplttvram.State{Lo: 0, Hi: 0xfb8},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			m, err := frmplttvram.New(0x1000)
			require.NoError(t, err)
			for i, a := range tc.allocs {
				k, err := m.Alloc(a.size, a.is4Color, tc.from)
				require.NoError(t, err)
				assert.Equal(t, a.addr, k.Addr(), "palette %d", i)
				assert.Equal(t, gfd.RoundUp(a.size), k.Size())
			}
			assert.Equal(t, tc.state, m.State())
		})
	}
}

func TestAllocFull(t *testing.T) {
	m, err := frmplttvram.New(0x100)
	require.NoError(t, err)

	k, err := m.Alloc(0x80, false, frmplttvram.FromLow)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), k.Addr())
	k, err = m.Alloc(0x80, false, frmplttvram.FromHigh)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x80), k.Addr())
	assert.Zero(t, m.FreeBytes())

	for _, from := range []frmplttvram.End{frmplttvram.FromLow, frmplttvram.FromHigh} {
		k, err = m.Alloc(8, true, from)
		assert.True(t, errors.Is(err, gfd.ErrAllocFailed), err)
		assert.Equal(t, plttvram.ErrorKey, k)
	}

	_, err = m.Alloc(8, false, frmplttvram.End(2))
	assert.Error(t, err)
}

func TestAllocPadding(t *testing.T) {
	m, err := frmplttvram.New(0x40)
	require.NoError(t, err)
	_, err = m.Alloc(8, true, frmplttvram.FromLow)
	require.NoError(t, err)

	// 0x38 bytes are free but a 16 byte aligned palette loses 8 of them.
	_, err = m.Alloc(0x38, false, frmplttvram.FromLow)
	assert.True(t, errors.Is(err, gfd.ErrAllocFailed), err)
	assert.Equal(t, frmplttvram.State{Lo: 8, Hi: 0x40}, m.State())

	k, err := m.Alloc(0x30, false, frmplttvram.FromLow)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x10), k.Addr())
	assert.Zero(t, m.FreeBytes())
}

func TestAlloc4ColorOutOfRange(t *testing.T) {
	m, err := frmplttvram.New(plttvram.MaxManaged)
	require.NoError(t, err)

	k, err := m.Alloc(8, true, frmplttvram.FromHigh)
	assert.True(t, errors.Is(err, gfd.ErrOutOfRange), err)
	assert.Equal(t, plttvram.ErrorKey, k)

	_, err = m.Alloc(plttvram.Max4ColorAddr-8, false, frmplttvram.FromLow)
	require.NoError(t, err)
	k, err = m.Alloc(8, true, frmplttvram.FromLow)
	require.NoError(t, err)
	assert.Equal(t, uint32(plttvram.Max4ColorAddr-8), k.Addr())

	_, err = m.Alloc(8, true, frmplttvram.FromLow)
	assert.True(t, errors.Is(err, gfd.ErrOutOfRange), err)
	assert.Equal(t, uint32(plttvram.Max4ColorAddr), m.State().Lo)

	k, err = m.Alloc(8, false, frmplttvram.FromLow)
	require.NoError(t, err)
	assert.Equal(t, uint32(plttvram.Max4ColorAddr), k.Addr())
}

func TestState(t *testing.T) {
	m, err := frmplttvram.New(0x1000)
	require.NoError(t, err)
	_, err = m.Alloc(0x20, false, frmplttvram.FromLow)
	require.NoError(t, err)

	mark := m.State()
	k1, err := m.Alloc(0x40, false, frmplttvram.FromLow)
	require.NoError(t, err)
	_, err = m.Alloc(0x40, false, frmplttvram.FromHigh)
	require.NoError(t, err)

	require.NoError(t, m.SetState(mark))
	assert.Equal(t, uint32(0x1000-0x20), m.FreeBytes())
	k2, err := m.Alloc(0x40, false, frmplttvram.FromLow)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	assert.Error(t, m.SetState(frmplttvram.State{Lo: 0x20, Hi: 0x10}))
	assert.Error(t, m.SetState(frmplttvram.State{Lo: 0, Hi: 0x1008}))
	assert.Equal(t, frmplttvram.State{Lo: 0x60, Hi: 0x1000}, m.State())

	m.Reset()
	assert.Equal(t, frmplttvram.State{Lo: 0, Hi: 0x1000}, m.State())
}

func TestFree(t *testing.T) {
	m, err := frmplttvram.New(0x1000)
	require.NoError(t, err)

	_, err = m.Alloc(plttvram.MaxSize, false, frmplttvram.FromLow)
	assert.True(t, errors.Is(err, gfd.ErrTooLarge), err)

	k, err := m.Alloc(0x100, false, frmplttvram.FromLow)
	require.NoError(t, err)
	require.NoError(t, m.Free(k))
	assert.Equal(t, uint32(0xf00), m.FreeBytes())

	err = m.Free(plttvram.ErrorKey)
	assert.True(t, errors.Is(err, gfd.ErrInvalidSize), err)
}

func TestDump(t *testing.T) {
	m, err := frmplttvram.New(0x1000)
	require.NoError(t, err)
	_, err = m.Alloc(0x800, false, frmplttvram.FromLow)
	require.NoError(t, err)

	var buf bytes.Buffer
	m.Dump(&buf)
	assert.Equal(t, ""+
		"=== FrmPlttVramManager Dump ===========\n"+
		"head-addr   : tail-addr   : free-size \n"+
		"0x00000800  : 0x00001000  : 0x00000800  \n"+
		"    00002048 / 00004096 bytes ( 50.00%) used \n"+
		"=======================================\n", buf.String())

	w := jwriter.NewWriter()
	m.WriteJSON(&w)
	require.NoError(t, w.Error())
	assert.JSONEq(t, `{"Size": 4096, "Lo": 2048, "Hi": 4096, "FreeBytes": 2048}`, string(w.Bytes()))
}
