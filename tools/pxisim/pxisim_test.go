package pxisim_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/clktmr/twl/drivers/sndex"
	"github.com/clktmr/twl/tools/pxisim"
	twltesting "github.com/clktmr/twl/testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) { twltesting.TestMain(m) }

func run(t *testing.T, script string) (*pxisim.Sim, string, error) {
	t.Helper()
	cfg := pxisim.DefaultConfig
	cfg.Tick = 50 * time.Microsecond
	cfg.MemSize = 0x1000
	var out bytes.Buffer
	sim := pxisim.New(cfg, &out)
	sim.System().Mic.SetSource(func(int) uint16 { return 0xabc })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := sim.Run(ctx, strings.NewReader(script))
	return sim, out.String(), err
}

func TestSound(t *testing.T) {
	sim, out, err := run(t, `
volume 12
volume
mute on
mute
device headphone
device
iir adc2 1 2 3 4 5
shutter on
shutter off
`)
	require.NoError(t, err)
	assert.Equal(t, "volume 12\nmute on\ndevice headphone\n", out)

	snd := sim.System().Sound
	assert.Equal(t, uint8(12), snd.Volume())
	assert.Equal(t, sndex.MuteOn, snd.Mute())
	assert.Equal(t, sndex.DeviceHeadphone, snd.Device())
	assert.False(t, snd.Shutter())
	assert.Equal(t, sndex.IirFilterParam{N0: 1, N1: 2, N2: 3, D1: 4, D2: 5}, snd.Filter(sndex.IirADC2))
}

func TestMicAndTouchPanel(t *testing.T) {
	_, out, err := run(t, `
mic sample 8bit
mic sample
mic auto 64
mic limited 32
tp touch 100 200
tp sample
tp release
tp sample
`)
	require.NoError(t, err)
	assert.Equal(t, ""+
		"mic 8bit 0x00ab\n"+
		"mic 12bit 0xabc0\n"+
		"mic auto 64 bytes at 0x02000000, last 0x0200003f\n"+
		"mic limited 32 bytes at 0x02000040, last 0x0200005f\n"+
		"tp 100 200\n"+
		"tp released\n", out)
}

func TestFailedOperations(t *testing.T) {
	_, out, err := run(t, "shutter off\nvolume 3\n")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "1: sndex: "), out)
	assert.NotContains(t, out, "2:")
}

func TestSyntaxErrors(t *testing.T) {
	tests := map[string]string{
		"unknown command": "beep",
		"volume range":    "volume 32",
		"mute value":      "mute loud",
		"iir target":      "iir adc9 1 2 3 4 5",
		"iir arguments":   "iir adc1 1 2",
		"mic type":        "mic sample 16bit",
		"tp arguments":    "tp touch 1",
	}
	for name, script := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := run(t, "mute off\n"+script+"\nvolume 1\n")
			assert.True(t, errors.Is(err, pxisim.ErrSyntax), err)
			assert.ErrorContains(t, err, "line 2")
		})
	}
}
