package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, script string, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, path))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVram(t *testing.T) {
	out, err := execute(t, "alloc a 0x100 4color\n", "vram", "pltt", "--size", "0x1000")
	require.NoError(t, err)
	assert.Equal(t, "a = 0x00000+0x100\n", out)

	_, err = execute(t, "", "vram", "vtx")
	assert.ErrorContains(t, err, "unknown manager")
}

func TestVramFrames(t *testing.T) {
	out, err := execute(t, "alloc a 0x100\nalloc b 0x100 4x4\n", "vram", "frmtex", "--slots", "1")
	require.NoError(t, err)
	assert.Equal(t, ""+
		"a = 0x1ff00+0x100\n"+
		"2: alloc b: texture of 0x100 bytes: gfd: no free region large enough\n", out)

	out, err = execute(t, "alloc a 0x100 high\n", "vram", "frmpltt", "--size", "0x1000")
	require.NoError(t, err)
	assert.Equal(t, "a = 0x00f00+0x100\n", out)

	_, err = execute(t, "", "vram", "frmtex", "--slots", "5")
	assert.Error(t, err)
}

func TestPxi(t *testing.T) {
	out, err := execute(t, "volume 7\nvolume\n", "pxi")
	require.NoError(t, err)
	assert.Equal(t, "volume 7\n", out)
}
