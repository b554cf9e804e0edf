package texvram_test

import (
	"bytes"
	"testing"

	"github.com/clktmr/twl/gfd"
	"github.com/clktmr/twl/gfd/lnkvram"
	"github.com/clktmr/twl/gfd/texvram"
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type region = lnkvram.Region

func TestNew(t *testing.T) {
	tests := map[string]struct {
		size, size4x4 uint32
		valid         bool
	}{
		"empty":              {0, 0, false},
		"four slots":         {0x80000, 0, true},
		"too large":          {0x80008, 0, false},
		"one 4x4 slot":       {0x30000, 0x20000, true},
		"no index table":     {0x2fff8, 0x20000, false},
		"two 4x4 slots":      {0x60000, 0x40000, true},
		"no normal slot":     {0x5fff8, 0x40000, false},
		"too many 4x4 slots": {0x80000, 0x40008, false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			m, err := texvram.New(tc.size, tc.size4x4, 16)
			if !tc.valid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, m.Validate())
		})
	}

	_, err := texvram.New(0x20000, 0, 0)
	assert.Error(t, err)
}

func TestReset(t *testing.T) {
	tests := map[string]struct {
		size, size4x4 uint32
		nrm, c4x4     []region
	}{
		"normal only": {
			size: 0x40000,
			nrm:  []region{{Addr: 0, Size: 0x40000}},
		},
		"one 4x4 slot": {
			size: 0x80000, size4x4: 0x20000,
			nrm:  []region{{Addr: 0x30000, Size: 0x50000}},
			c4x4: []region{{Addr: 0, Size: 0x20000}},
		},
		"two 4x4 slots": {
			size: 0x80000, size4x4: 0x40000,
			nrm:  []region{{Addr: 0x60000, Size: 0x20000}},
			c4x4: []region{{Addr: 0, Size: 0x20000}, {Addr: 0x40000, Size: 0x20000}},
		},
		"partial 4x4 slot": {
			size: 0x40000, size4x4: 0x8000,
			nrm:  []region{{Addr: 0x8000, Size: 0x18000}, {Addr: 0x24000, Size: 0x1c000}},
			c4x4: []region{{Addr: 0, Size: 0x8000}},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			m, err := texvram.New(tc.size, tc.size4x4, 16)
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.nrm, m.FreeBlocks(false))
			assert.ElementsMatch(t, tc.c4x4, m.FreeBlocks(true))

			_, err = m.Alloc(0x100, false)
			require.NoError(t, err)
			require.NoError(t, m.Reset())
			assert.ElementsMatch(t, tc.nrm, m.FreeBlocks(false))
		})
	}
}

func TestResetPoolExhausted(t *testing.T) {
	_, err := texvram.New(0x80000, 0x20000, 2)
	assert.Error(t, err)
}

func TestAllocFree(t *testing.T) {
	m, err := texvram.New(0x80000, 0x20000, 16)
	require.NoError(t, err)

	nrm, err := m.Alloc(100, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x30000), nrm.Addr())
	assert.Equal(t, uint32(104), nrm.Size())
	assert.False(t, nrm.Is4x4())

	c4x4, err := m.Alloc(1, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), c4x4.Addr())
	assert.Equal(t, uint32(8), c4x4.Size())
	assert.True(t, c4x4.Is4x4())

	require.NoError(t, m.Free(nrm))
	require.NoError(t, m.Free(c4x4))
	assert.Equal(t, []region{{Addr: 0x30000, Size: 0x50000}}, m.FreeBlocks(false))
	assert.Equal(t, []region{{Addr: 0, Size: 0x20000}}, m.FreeBlocks(true))
	assert.NoError(t, m.Validate())

	err = m.Free(texvram.ErrorKey)
	assert.True(t, errors.Is(err, gfd.ErrInvalidSize), err)
}

func TestAllocErrors(t *testing.T) {
	m, err := texvram.New(0x40000, 0, 4)
	require.NoError(t, err)

	key, err := m.Alloc(texvram.MaxSize-7, false)
	assert.True(t, errors.Is(err, gfd.ErrTooLarge), err)
	assert.Equal(t, texvram.ErrorKey, key)

	_, err = m.Alloc(texvram.MaxSize-8, false)
	require.NoError(t, err)
	_, err = m.Alloc(16, false)
	assert.True(t, errors.Is(err, gfd.ErrAllocFailed), err)

	_, err = m.Alloc(8, true)
	assert.True(t, errors.Is(err, gfd.ErrAllocFailed), err)
}

func TestKey(t *testing.T) {
	k := texvram.MakeKey(0x7fff8, 0x3fff8, true)
	assert.Equal(t, uint32(0x7fff8), k.Addr())
	assert.Equal(t, uint32(0x3fff8), k.Size())
	assert.True(t, k.Is4x4())
	assert.Equal(t, "4x4:0x7fff8+0x3fff8", k.String())

	k = texvram.MakeKey(0x100, 0x20, false)
	assert.False(t, k.Is4x4())
	assert.Equal(t, "0x00100+0x20", k.String())
}

func TestDump(t *testing.T) {
	m, err := texvram.New(0x40000, 0, 4)
	require.NoError(t, err)

	var buf bytes.Buffer
	m.Dump(&buf)
	assert.Equal(t, ""+
		"=== LnkTexVramManager Dump ============\n"+
		"   address:        size    \n"+
		"=======================================\n"+
		"------ Normal Texture Free Blocks -----\n"+
		"0x00000000:  0x00040000    \n"+
		"    00000000 / 00262144 bytes (  0.00%) used \n"+
		"------ 4x4    Texture Free Blocks -----\n"+
		"=======================================\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	m, err := texvram.New(0x30000, 0x20000, 4)
	require.NoError(t, err)

	w := jwriter.NewWriter()
	m.WriteJSON(&w)
	require.NoError(t, w.Error())
	assert.JSONEq(t, `{
		"Size": 196608,
		"Size4x4": 131072,
		"Normal": {"TotalBytes": 0, "FreeBytes": 0, "FreeBlocks": []},
		"Compressed4x4": {"TotalBytes": 131072, "FreeBytes": 131072,
			"FreeBlocks": [{"Addr": 0, "Size": 131072}]}
	}`, string(w.Bytes()))
}
