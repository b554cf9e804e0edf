package plttvram_test

import (
	"bytes"
	"testing"

	"github.com/clktmr/twl/gfd"
	"github.com/clktmr/twl/gfd/lnkvram"
	"github.com/clktmr/twl/gfd/plttvram"
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type region = lnkvram.Region

func TestNew(t *testing.T) {
	tests := map[string]struct {
		size      uint32
		numBlocks int
		valid     bool
	}{
		"max":       {plttvram.MaxManaged, 8, true},
		"empty":     {0, 8, false},
		"too large": {plttvram.MaxManaged + 8, 8, false},
		"no blocks": {0x1000, 0, false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			m, err := plttvram.New(tc.size, tc.numBlocks)
			if !tc.valid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []region{{Addr: 0, Size: tc.size}}, m.FreeBlocks())
		})
	}
}

func TestAlignment(t *testing.T) {
	m, err := plttvram.New(plttvram.MaxManaged, 8)
	require.NoError(t, err)

	k, err := m.Alloc(8, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), k.Addr())

	k, err = m.Alloc(0x20, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x10), k.Addr())
	assert.Equal(t, []region{{Addr: 8, Size: 8}, {Addr: 0x30, Size: plttvram.MaxManaged - 0x30}}, m.FreeBlocks())

	k, err = m.Alloc(3, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), k.Addr())
	assert.Equal(t, uint32(8), k.Size())
	assert.NoError(t, m.Validate())
}

func TestAlloc4ColorOutOfRange(t *testing.T) {
	m, err := plttvram.New(plttvram.MaxManaged, 8)
	require.NoError(t, err)

	_, err = m.Alloc(plttvram.Max4ColorAddr, false)
	require.NoError(t, err)

	k, err := m.Alloc(8, true)
	assert.True(t, errors.Is(err, gfd.ErrOutOfRange), err)
	assert.Equal(t, plttvram.ErrorKey, k)
	assert.Equal(t, []region{{Addr: plttvram.Max4ColorAddr, Size: plttvram.MaxManaged - plttvram.Max4ColorAddr}}, m.FreeBlocks())

	k, err = m.Alloc(8, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(plttvram.Max4ColorAddr), k.Addr())
}

func TestAllocFree(t *testing.T) {
	m, err := plttvram.New(0x1000, 8)
	require.NoError(t, err)

	_, err = m.Alloc(plttvram.MaxSize, false)
	assert.True(t, errors.Is(err, gfd.ErrTooLarge), err)
	_, err = m.Alloc(0x1008, false)
	assert.True(t, errors.Is(err, gfd.ErrAllocFailed), err)

	var keys []plttvram.Key
	for range 4 {
		k, err := m.Alloc(0x400, false)
		require.NoError(t, err)
		keys = append(keys, k)
	}
	assert.Empty(t, m.FreeBlocks())

	for _, i := range []int{1, 3, 0, 2} {
		require.NoError(t, m.Free(keys[i]))
	}
	assert.Equal(t, []region{{Addr: 0, Size: 0x1000}}, m.FreeBlocks())

	err = m.Free(plttvram.ErrorKey)
	assert.True(t, errors.Is(err, gfd.ErrInvalidSize), err)

	m.Reset()
	assert.Equal(t, []region{{Addr: 0, Size: 0x1000}}, m.FreeBlocks())
}

func TestDump(t *testing.T) {
	m, err := plttvram.New(0x1000, 8)
	require.NoError(t, err)
	_, err = m.Alloc(0x800, false)
	require.NoError(t, err)

	var buf bytes.Buffer
	m.Dump(&buf)
	assert.Equal(t, ""+
		"=== LnkPlttVramManager Dump ===========\n"+
		"   address:        size    \n"+
		"=======================================\n"+
		"------ Free Blocks                -----\n"+
		"0x00000800:  0x00000800    \n"+
		"    00002048 / 00004096 bytes ( 50.00%) used \n"+
		"=======================================\n", buf.String())

	w := jwriter.NewWriter()
	m.WriteJSON(&w)
	require.NoError(t, w.Error())
	assert.JSONEq(t, `{"Size": 4096, "Palettes": {"TotalBytes": 4096, "FreeBytes": 2048,
		"FreeBlocks": [{"Addr": 2048, "Size": 2048}]}}`, string(w.Bytes()))
}
