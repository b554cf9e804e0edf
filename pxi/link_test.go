package pxi_test

import (
	"context"
	"testing"
	"time"

	"github.com/clktmr/twl/pxi"
	twltesting "github.com/clktmr/twl/testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) { twltesting.TestMain(m) }

type received struct {
	tag  pxi.Tag
	data uint32
	err  bool
	intr bool
}

func collect(ep pxi.Channel, tag pxi.Tag) <-chan received {
	ch := make(chan received, 64)
	ep.SetHandler(tag, func(ctx context.Context, tag pxi.Tag, data uint32, err bool) {
		ch <- received{tag, data, err, pxi.IsInterrupt(ctx)}
	})
	return ch
}

func next(t *testing.T, ch <-chan received) received {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for word")
	}
	return received{}
}

func TestSendReceive(t *testing.T) {
	link := twltesting.StartLink(t)
	arm9, arm7 := link.ARM9(), link.ARM7()

	assert.False(t, arm9.IsReady(pxi.TagSndex))
	got := collect(arm7, pxi.TagSndex)
	assert.True(t, arm9.IsReady(pxi.TagSndex))

	for i := uint32(0); i < 10; i++ {
		require.NoError(t, arm9.Send(pxi.TagSndex, i<<8|i))
	}
	for i := uint32(0); i < 10; i++ {
		r := next(t, got)
		assert.Equal(t, pxi.TagSndex, r.tag)
		assert.Equal(t, i<<8|i, r.data)
		assert.False(t, r.err)
		assert.True(t, r.intr, "handler must run in interrupt context")
	}
}

func TestCorruptWord(t *testing.T) {
	link := twltesting.StartLink(t)
	got := collect(link.ARM9(), pxi.TagMic)

	link.ARM7().CorruptNext()
	require.NoError(t, link.ARM7().Send(pxi.TagMic, 0x40))
	require.NoError(t, link.ARM7().Send(pxi.TagMic, 0x41))

	assert.True(t, next(t, got).err)
	r := next(t, got)
	assert.False(t, r.err)
	assert.Equal(t, uint32(0x41), r.data)
}

func TestFifoFull(t *testing.T) {
	link := pxi.NewLink(pxi.Config{Depth: 2})
	ep := link.ARM9()

	require.NoError(t, ep.Send(pxi.TagTouchPanel, 1))
	require.NoError(t, ep.Send(pxi.TagTouchPanel, 2))
	assert.ErrorIs(t, ep.Send(pxi.TagTouchPanel, 3), pxi.ErrFifoFull)
	assert.Equal(t, 2, ep.Pending())

	link.Close()
	assert.ErrorIs(t, ep.Send(pxi.TagTouchPanel, 4), pxi.ErrClosed)
}

func TestDropUnhandled(t *testing.T) {
	link := twltesting.StartLink(t)
	got := collect(link.ARM7(), pxi.TagUser1)

	require.NoError(t, link.ARM9().Send(pxi.TagUser0, 1))
	require.NoError(t, link.ARM9().Send(pxi.TagUser1, 2))
	assert.Equal(t, uint32(2), next(t, got).data)
	assert.Equal(t, uint64(1), link.ARM7().Dropped())
}

func TestTouchPacking(t *testing.T) {
	v := pxi.PackTouch(0xabc, 0x123, true, 2)
	x, y, touch, validity := pxi.UnpackTouch(v)
	assert.Equal(t, uint16(0xabc), x)
	assert.Equal(t, uint16(0x123), y)
	assert.True(t, touch)
	assert.Equal(t, uint8(2), validity)
}

func TestMemory(t *testing.T) {
	mem := pxi.NewMemory(0x02000000, 256)

	a, err := mem.Alloc(10, 32)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x02000000), a)
	b, err := mem.Alloc(64, 32)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x02000020), b)

	mem.Write(b, []byte{1, 2, 3})
	buf := make([]byte, 3)
	mem.Read(b, buf)
	assert.Equal(t, []byte{1, 2, 3}, buf)

	_, err = mem.Alloc(512, 1)
	assert.ErrorIs(t, err, pxi.ErrOutOfMemory)
	assert.False(t, mem.Contains(0x01ffffff, 1))
}
