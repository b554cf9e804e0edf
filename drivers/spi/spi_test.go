package spi_test

import (
	"testing"

	"github.com/clktmr/twl/drivers/spi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacket(t *testing.T) {
	words := spi.Packet(0x41, 0x13, 0x0200, 0x0040)
	require.Len(t, words, 3)
	assert.Equal(t, uint32(spi.StartBit|0x4113), words[0])
	assert.Equal(t, uint32(1<<16|0x0200), words[1])
	assert.Equal(t, uint32(spi.EndBit|2<<16|0x0040), words[2])

	single := spi.Packet(0x40, 3)
	assert.Equal(t, []uint32{spi.StartBit | spi.EndBit | 0x4003}, single)
}

func TestReader(t *testing.T) {
	tests := map[string]struct {
		words []uint32
		cmd   uint8
		arg   uint8
		rest  []uint16
		err   error
	}{
		"single":        {spi.Packet(0x42, 0), 0x42, 0, nil, nil},
		"multi":         {spi.Packet(0x43, 1, 0xabcd, 0x1234), 0x43, 1, []uint16{0xabcd, 0x1234}, nil},
		"restart":       {append(spi.Packet(0x41, 1, 5)[:1], spi.Packet(0x40, 2)...), 0x40, 2, nil, nil},
		"missing start": {spi.Packet(0x41, 1, 5, 6)[1:], 0, 0, nil, spi.ErrSequence},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var r spi.Reader
			var (
				cmd, arg uint8
				rest     []uint16
				done     bool
				err      error
			)
			for _, w := range tc.words {
				cmd, arg, rest, done, err = r.Push(w)
				if err != nil {
					break
				}
			}
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.True(t, done)
			assert.Equal(t, tc.cmd, cmd)
			assert.Equal(t, tc.arg, arg)
			assert.Equal(t, tc.rest, rest)
		})
	}
}

func TestReply(t *testing.T) {
	w := spi.Reply(0x43, spi.IllegalStatus)
	assert.True(t, spi.IsReply(w))
	cmd, r, end := spi.ParseReply(w)
	assert.Equal(t, uint8(0x43), cmd)
	assert.Equal(t, spi.IllegalStatus, r)
	assert.True(t, end)

	hi, lo := spi.Split(0x02001f40)
	assert.Equal(t, uint16(0x0200), hi)
	assert.Equal(t, uint16(0x1f40), lo)
	assert.Equal(t, uint32(0x02001f40), spi.Join(hi, lo))
}
